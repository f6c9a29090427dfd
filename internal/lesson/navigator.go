// Package lesson tracks a learner's position, completion state and notes
// within a single course.
package lesson

import (
	"context"
	"encoding/json"
	"math"
	"sync"

	"github.com/guriuo/hiigsitech/internal/domain"
	"github.com/guriuo/hiigsitech/internal/logger"
	"github.com/guriuo/hiigsitech/internal/storage"
)

const (
	LabelMarkComplete = "Mark as Complete"
	LabelNextLesson   = "Next Lesson"
)

// Navigator is the single source of truth for one learner viewing one
// course. Persistence is best effort: storage failures are logged and never
// block navigation.
type Navigator struct {
	mu sync.Mutex

	course   domain.Course
	courseID string
	lessons  []domain.Lesson
	index    int

	completed    []string
	completedSet map[string]struct{}
	notes        string

	kv  storage.KV
	log *logger.Logger
}

// New builds a navigator positioned on the first lesson, with completion
// state loaded from kv.
func New(ctx context.Context, course domain.Course, kv storage.KV, log *logger.Logger) *Navigator {
	if log == nil {
		log = logger.Nop()
	}
	n := &Navigator{
		course:       course,
		courseID:     courseIdentity(course),
		lessons:      course.Lessons(),
		index:        -1,
		completedSet: map[string]struct{}{},
		kv:           kv,
		log:          log.With("component", "LessonNavigator", "course", courseIdentity(course)),
	}
	n.loadProgress(ctx)
	if len(n.lessons) > 0 {
		n.setIndexLocked(ctx, 0)
	}
	return n
}

// Open resolves a route's lesson reference. An unmatched or empty ref falls
// back to the first lesson; the return value reports whether ref matched.
func (n *Navigator) Open(ctx context.Context, ref string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	if idx := n.indexOf(ref); idx >= 0 {
		n.setIndexLocked(ctx, idx)
		return true
	}
	if len(n.lessons) > 0 {
		n.setIndexLocked(ctx, 0)
	}
	return false
}

// SelectLesson moves to the lesson named by ref. Unknown refs are a no-op.
func (n *Navigator) SelectLesson(ctx context.Context, ref string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	idx := n.indexOf(ref)
	if idx < 0 {
		return false
	}
	n.setIndexLocked(ctx, idx)
	return true
}

// Advance moves to the next lesson. It is a no-op on the last lesson.
func (n *Navigator) Advance(ctx context.Context) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.advanceLocked(ctx)
}

// Retreat moves to the previous lesson. It is a no-op on the first lesson.
func (n *Navigator) Retreat(ctx context.Context) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.index <= 0 {
		return false
	}
	n.setIndexLocked(ctx, n.index-1)
	return true
}

// MarkComplete records the active lesson as completed if it is not already,
// then advances.
func (n *Navigator) MarkComplete(ctx context.Context) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.index < 0 {
		return
	}
	key := n.lessons[n.index].Key
	if _, done := n.completedSet[key]; !done {
		n.completed = append(n.completed, key)
		n.completedSet[key] = struct{}{}
		n.saveProgress(ctx)
	}
	n.advanceLocked(ctx)
}

// UpdateNote replaces the active lesson's note and persists it immediately.
func (n *Navigator) UpdateNote(ctx context.Context, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.notes = text
	if n.index < 0 {
		return
	}
	key := storage.NoteKey(n.courseID, n.lessons[n.index].Key)
	if err := n.kv.Set(ctx, key, text); err != nil {
		n.log.Warn("Failed to persist lesson note", "lesson", n.lessons[n.index].Key, "error", err)
	}
}

// ProgressPercentage is the rounded share of lessons completed, 0 for a
// course without lessons.
func (n *Navigator) ProgressPercentage() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.progressLocked()
}

func (n *Navigator) Active() (domain.Lesson, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.index < 0 {
		return domain.Lesson{}, false
	}
	return n.lessons[n.index], true
}

func (n *Navigator) Index() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.index
}

func (n *Navigator) Completed() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.completed...)
}

func (n *Navigator) IsCompleted(key string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, ok := n.completedSet[key]
	return ok
}

func (n *Navigator) Notes() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.notes
}

func (n *Navigator) Lessons() []domain.Lesson {
	return append([]domain.Lesson(nil), n.lessons...)
}

func (n *Navigator) Course() domain.Course {
	return n.course
}

// NoteFor reads a stored note without changing the active lesson.
func (n *Navigator) NoteFor(ctx context.Context, lessonKey string) string {
	val, _, err := n.kv.Get(ctx, storage.NoteKey(n.courseID, lessonKey))
	if err != nil {
		n.log.Warn("Failed to load lesson note", "lesson", lessonKey, "error", err)
		return ""
	}
	return val
}

func (n *Navigator) advanceLocked(ctx context.Context) bool {
	if n.index < 0 || n.index >= len(n.lessons)-1 {
		return false
	}
	n.setIndexLocked(ctx, n.index+1)
	return true
}

func (n *Navigator) setIndexLocked(ctx context.Context, idx int) {
	n.index = idx
	n.notes = n.NoteFor(ctx, n.lessons[idx].Key)
}

func (n *Navigator) indexOf(ref string) int {
	for i, l := range n.lessons {
		if l.Matches(ref) {
			return i
		}
	}
	return -1
}

func (n *Navigator) progressLocked() int {
	if len(n.lessons) == 0 {
		return 0
	}
	return int(math.Round(100 * float64(len(n.completed)) / float64(len(n.lessons))))
}

func (n *Navigator) loadProgress(ctx context.Context) {
	raw, ok, err := n.kv.Get(ctx, storage.ProgressKey(n.courseID))
	if err != nil {
		n.log.Warn("Failed to load course progress", "error", err)
		return
	}
	if !ok || raw == "" {
		return
	}

	var keys []string
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		n.log.Warn("Ignoring unreadable course progress", "error", err)
		return
	}
	for _, k := range keys {
		if _, dup := n.completedSet[k]; dup {
			continue
		}
		n.completed = append(n.completed, k)
		n.completedSet[k] = struct{}{}
	}
}

func (n *Navigator) saveProgress(ctx context.Context) {
	raw, err := json.Marshal(n.completed)
	if err != nil {
		n.log.Warn("Failed to encode course progress", "error", err)
		return
	}
	if err := n.kv.Set(ctx, storage.ProgressKey(n.courseID), string(raw)); err != nil {
		n.log.Warn("Failed to persist course progress", "error", err)
	}
}

func courseIdentity(c domain.Course) string {
	if c.Slug != "" {
		return c.Slug
	}
	return c.ID
}

func (n *Navigator) CourseID() string {
	return n.courseID
}
