package domain

import (
	"fmt"
	"regexp"
)

var (
	youtubePattern = regexp.MustCompile(`^.*(youtu\.be/|v/|u/\w/|embed/|watch\?v=|&v=)([^#&?]*).*`)
	vimeoPattern   = regexp.MustCompile(`vimeo\.com/(\d+)`)
)

// EmbedURL converts a YouTube or Vimeo page URL into its player URL.
// Anything else yields "".
func EmbedURL(raw string) string {
	if raw == "" {
		return ""
	}
	if m := youtubePattern.FindStringSubmatch(raw); m != nil && len(m[2]) == 11 {
		return fmt.Sprintf("https://www.youtube.com/embed/%s?autoplay=1&rel=0&controls=1&modestbranding=1", m[2])
	}
	if m := vimeoPattern.FindStringSubmatch(raw); m != nil {
		return fmt.Sprintf("https://player.vimeo.com/video/%s?autoplay=1", m[1])
	}
	return ""
}

// VideoSource returns the playable source for the lesson's active video
// variant, or "" when the lesson has none.
func (l Lesson) VideoSource() string {
	switch l.VideoType {
	case VideoTypeURL:
		return EmbedURL(l.VideoURL)
	case VideoTypeFile:
		if l.VideoFile != nil {
			return l.VideoFile.URL
		}
	}
	return ""
}
