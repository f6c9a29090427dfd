package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/guriuo/hiigsitech/internal/lesson"
	"github.com/guriuo/hiigsitech/internal/logger"
	"github.com/guriuo/hiigsitech/internal/storage"
)

const overviewConcurrency = 4

var ErrMissingLearner = errors.New("missing learner id")

// LearningService builds per-learner navigators over the shared progress
// store. Navigators are cheap and rebuilt per request; all durable state
// lives in the store.
type LearningService struct {
	courses CourseSource
	kv      storage.KV
	log     *logger.Logger
}

func NewLearningService(courses CourseSource, kv storage.KV, log *logger.Logger) *LearningService {
	return &LearningService{courses: courses, kv: kv, log: log}
}

func (s *LearningService) Navigator(ctx context.Context, learner, slug string) (*lesson.Navigator, error) {
	learner = strings.TrimSpace(learner)
	if learner == "" {
		return nil, badRequest(ErrMissingLearner.Error(), ErrMissingLearner)
	}

	course, err := s.courses.Course(ctx, slug)
	if err != nil {
		if errors.Is(err, ErrCourseNotFound) {
			return nil, err
		}
		s.log.Error("course fetch failed", "course", slug, "err", err)
		return nil, internalError("Error loading course", err)
	}

	return lesson.New(ctx, course, storage.Scoped(s.kv, learner), s.log.With("learner", learner)), nil
}

type CourseProgress struct {
	Slug      string `json:"slug"`
	Title     string `json:"title"`
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
	Progress  int    `json:"progress"`
}

// Overview reports progress for several courses at once. Results keep the
// order of slugs; any failing course fails the whole overview.
func (s *LearningService) Overview(ctx context.Context, learner string, slugs []string) ([]CourseProgress, error) {
	out := make([]CourseProgress, len(slugs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(overviewConcurrency)
	for i, slug := range slugs {
		i, slug := i, slug
		g.Go(func() error {
			nav, err := s.Navigator(gctx, learner, slug)
			if err != nil {
				return err
			}
			course := nav.Course()
			out[i] = CourseProgress{
				Slug:      slug,
				Title:     course.Title,
				Completed: len(nav.Completed()),
				Total:     len(nav.Lessons()),
				Progress:  nav.ProgressPercentage(),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

type ExportLesson struct {
	Module    string
	Title     string
	Completed bool
	Notes     string
}

// NotesExport is everything the notes PDF needs for one learner and course.
type NotesExport struct {
	CourseTitle string
	Learner     string
	Progress    int
	Lessons     []ExportLesson
}

func (s *LearningService) Export(ctx context.Context, learner, slug string) (NotesExport, error) {
	nav, err := s.Navigator(ctx, learner, slug)
	if err != nil {
		return NotesExport{}, err
	}

	course := nav.Course()
	export := NotesExport{
		CourseTitle: course.Title,
		Learner:     learner,
		Progress:    nav.ProgressPercentage(),
	}
	for _, m := range course.Modules {
		for _, l := range m.Lessons {
			export.Lessons = append(export.Lessons, ExportLesson{
				Module:    m.Title,
				Title:     l.Title,
				Completed: nav.IsCompleted(l.Key),
				Notes:     nav.NoteFor(ctx, l.Key),
			})
		}
	}
	if len(export.Lessons) == 0 {
		return NotesExport{}, badRequest(fmt.Sprintf("course %s has no lessons", slug), nil)
	}
	return export, nil
}
