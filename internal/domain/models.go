package domain

import (
	"errors"
	"strings"
	"time"
)

var ErrMissingFields = errors.New("missing required fields")

const (
	VideoTypeURL  = "url"
	VideoTypeFile = "file"

	ResourceTypeFile = "file"
	ResourceTypeLink = "link"
)

type Asset struct {
	URL              string `json:"url" yaml:"url"`
	OriginalFilename string `json:"originalFilename,omitempty" yaml:"originalFilename"`
}

type Resource struct {
	Key          string `json:"key" yaml:"key"`
	Title        string `json:"title" yaml:"title"`
	ResourceType string `json:"resourceType" yaml:"resourceType"`
	URL          string `json:"url,omitempty" yaml:"url"`
	File         *Asset `json:"file,omitempty" yaml:"file"`
}

// Href is the link target for the resource's active variant.
func (r Resource) Href() string {
	if r.ResourceType == ResourceTypeFile {
		if r.File == nil {
			return ""
		}
		return r.File.URL
	}
	return r.URL
}

// DownloadName is empty for link resources.
func (r Resource) DownloadName() string {
	if r.ResourceType != ResourceTypeFile || r.File == nil {
		return ""
	}
	return r.File.OriginalFilename
}

type Lesson struct {
	Key         string     `json:"key" yaml:"key"`
	Title       string     `json:"title" yaml:"title"`
	Slug        string     `json:"slug" yaml:"slug"`
	Description string     `json:"description,omitempty" yaml:"description"`
	VideoType   string     `json:"videoType,omitempty" yaml:"videoType"`
	VideoURL    string     `json:"videoUrl,omitempty" yaml:"videoUrl"`
	VideoFile   *Asset     `json:"videoFile,omitempty" yaml:"videoFile"`
	Resources   []Resource `json:"resources" yaml:"resources"`
}

// Matches reports whether ref names this lesson by key or slug.
func (l Lesson) Matches(ref string) bool {
	if ref == "" {
		return false
	}
	return l.Key == ref || l.Slug == ref
}

type Module struct {
	Key     string   `json:"key" yaml:"key"`
	Title   string   `json:"title" yaml:"title"`
	Lessons []Lesson `json:"lessons" yaml:"lessons"`
}

type Course struct {
	ID      string   `json:"id" yaml:"id"`
	Title   string   `json:"title" yaml:"title"`
	Slug    string   `json:"slug" yaml:"slug"`
	Modules []Module `json:"modules" yaml:"modules"`
}

// Lessons flattens the course: module order first, then lesson order.
func (c Course) Lessons() []Lesson {
	total := 0
	for _, m := range c.Modules {
		total += len(m.Lessons)
	}
	out := make([]Lesson, 0, total)
	for _, m := range c.Modules {
		out = append(out, m.Lessons...)
	}
	return out
}

const (
	CommentStatusPending   = "pending"
	CommentStatusConfirmed = "confirmed"
)

type Comment struct {
	ID            string    `json:"id" yaml:"id"`
	Name          string    `json:"name" yaml:"name"`
	Email         string    `json:"-" yaml:"email"`
	Comment       string    `json:"comment" yaml:"comment"`
	PostID        string    `json:"postId,omitempty" yaml:"postId"`
	ParentID      string    `json:"parentId,omitempty" yaml:"parentId"`
	CreatedAt     time.Time `json:"createdAt" yaml:"createdAt"`
	IsAdmin       bool      `json:"isAdmin" yaml:"isAdmin"`
	Status        string    `json:"status,omitempty" yaml:"-"`
	CorrelationID string    `json:"correlationId,omitempty" yaml:"-"`
	Replies       []Comment `json:"replies,omitempty" yaml:"replies"`
}

func (c Comment) Pending() bool {
	return c.Status == CommentStatusPending
}

type CommentInput struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	Comment       string `json:"comment"`
	PostID        string `json:"postId"`
	ParentID      string `json:"parentId,omitempty"`
	IsAdmin       bool   `json:"isAdmin"`
	CorrelationID string `json:"correlationId,omitempty"`
}

func (in CommentInput) Validate() error {
	if blank(in.Name) || blank(in.Email) || blank(in.Comment) || blank(in.PostID) {
		return ErrMissingFields
	}
	return nil
}

type ContactSubmission struct {
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Project   string    `json:"project,omitempty"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

func (s ContactSubmission) Validate() error {
	if blank(s.Name) || blank(s.Email) || blank(s.Message) {
		return ErrMissingFields
	}
	return nil
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
