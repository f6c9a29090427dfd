package services

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/guriuo/hiigsitech/internal/domain"
)

type fixtureFile struct {
	Courses  []domain.Course  `yaml:"courses"`
	Comments []domain.Comment `yaml:"comments"`
}

// FixtureSource serves courses and comments from a YAML file and keeps
// writes in memory. It stands in for the hosted content store in local
// development and tests.
type FixtureSource struct {
	mu       sync.RWMutex
	courses  map[string]domain.Course
	comments []domain.Comment
	contacts []domain.ContactSubmission
}

func LoadFixtures(path string) (*FixtureSource, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	return ParseFixtures(raw)
}

func ParseFixtures(raw []byte) (*FixtureSource, error) {
	var file fixtureFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}

	src := &FixtureSource{courses: make(map[string]domain.Course, len(file.Courses))}
	for _, c := range file.Courses {
		src.courses[c.Slug] = c
	}
	for _, c := range file.Comments {
		replies := c.Replies
		c.Replies = nil
		src.comments = append(src.comments, c)
		for _, r := range replies {
			r.Replies = nil
			r.ParentID = c.ID
			if r.PostID == "" {
				r.PostID = c.PostID
			}
			src.comments = append(src.comments, r)
		}
	}
	return src, nil
}

func (f *FixtureSource) Course(_ context.Context, slug string) (domain.Course, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	c, ok := f.courses[slug]
	if !ok {
		return domain.Course{}, fmt.Errorf("%w: %s", ErrCourseNotFound, slug)
	}
	return c, nil
}

func (f *FixtureSource) Comments(_ context.Context, postID string) ([]domain.Comment, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := []domain.Comment{}
	index := map[string]int{}
	for _, c := range f.comments {
		if c.PostID == postID && c.ParentID == "" {
			c.Status = domain.CommentStatusConfirmed
			index[c.ID] = len(out)
			out = append(out, c)
		}
	}
	for _, c := range f.comments {
		if c.ParentID == "" {
			continue
		}
		if i, ok := index[c.ParentID]; ok {
			c.Status = domain.CommentStatusConfirmed
			out[i].Replies = append(out[i].Replies, c)
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	for i := range out {
		replies := out[i].Replies
		sort.SliceStable(replies, func(a, b int) bool { return replies[a].CreatedAt.Before(replies[b].CreatedAt) })
	}
	return out, nil
}

func (f *FixtureSource) Comment(_ context.Context, id string) (domain.Comment, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for _, c := range f.comments {
		if c.ID == id {
			return c, nil
		}
	}
	return domain.Comment{}, fmt.Errorf("%w: %s", ErrCommentNotFound, id)
}

func (f *FixtureSource) CreateComment(_ context.Context, c domain.Comment) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	c.Replies = nil
	f.comments = append(f.comments, c)
	return nil
}

func (f *FixtureSource) CreateContact(_ context.Context, s domain.ContactSubmission) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.contacts = append(f.contacts, s)
	return nil
}

func (f *FixtureSource) Contacts() []domain.ContactSubmission {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]domain.ContactSubmission(nil), f.contacts...)
}
