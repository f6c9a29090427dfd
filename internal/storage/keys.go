package storage

import (
	"context"
	"net/url"
	"strings"
)

const (
	KindProgress = "progress"
	KindNotes    = "notes"
)

// Key identifies one value in a KV store. Namespace pins the key to a
// learner; the remaining fields name what is stored.
type Key struct {
	Namespace string
	Kind      string
	CourseID  string
	LessonID  string
}

func ProgressKey(courseID string) Key {
	return Key{Kind: KindProgress, CourseID: courseID}
}

func NoteKey(courseID, lessonID string) Key {
	return Key{Kind: KindNotes, CourseID: courseID, LessonID: lessonID}
}

func (k Key) In(namespace string) Key {
	k.Namespace = namespace
	return k
}

// String encodes every segment separately, so identities containing the
// separator cannot collide with one another.
func (k Key) String() string {
	parts := []string{k.Namespace, k.Kind, k.CourseID}
	if k.LessonID != "" {
		parts = append(parts, k.LessonID)
	}
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// KV is string storage keyed by Key. Every write is a full overwrite.
type KV interface {
	Get(ctx context.Context, key Key) (string, bool, error)
	Set(ctx context.Context, key Key, value string) error
}

type scopedKV struct {
	kv        KV
	namespace string
}

// Scoped pins every key passed through it to namespace.
func Scoped(kv KV, namespace string) KV {
	return &scopedKV{kv: kv, namespace: namespace}
}

func (s *scopedKV) Get(ctx context.Context, key Key) (string, bool, error) {
	return s.kv.Get(ctx, key.In(s.namespace))
}

func (s *scopedKV) Set(ctx context.Context, key Key, value string) error {
	return s.kv.Set(ctx, key.In(s.namespace), value)
}
