// Package comments keeps a post's two-level comment tree in memory and
// applies writes optimistically: new comments appear immediately as pending,
// are replaced by the server's copy once confirmed, and are removed again if
// the submission fails.
package comments

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/guriuo/hiigsitech/internal/domain"
	"github.com/guriuo/hiigsitech/internal/logger"
)

var (
	ErrParentNotFound = errors.New("reply target is not a top-level comment of this post")
	ErrParentPending  = errors.New("reply target has not been confirmed yet")
)

const tempIDPrefix = "optimistic-"

// Submitter persists a comment and returns the confirmed copy.
type Submitter interface {
	Submit(ctx context.Context, in domain.CommentInput) (domain.Comment, error)
}

// Notifier is told about submissions that were rolled back.
type Notifier interface {
	CommentFailed(c domain.Comment, err error)
}

type NotifierFunc func(c domain.Comment, err error)

func (f NotifierFunc) CommentFailed(c domain.Comment, err error) { f(c, err) }

// Form is what a commenter fills in.
type Form struct {
	Name    string
	Email   string
	Comment string
	IsAdmin bool
}

type Option func(*Thread)

func WithNotifier(n Notifier) Option {
	return func(t *Thread) { t.notifier = n }
}

func WithLogger(log *logger.Logger) Option {
	return func(t *Thread) { t.log = log }
}

func WithClock(now func() time.Time) Option {
	return func(t *Thread) { t.now = now }
}

func WithIDGenerator(next func() string) Option {
	return func(t *Thread) { t.newID = next }
}

type Thread struct {
	mu       sync.Mutex
	postID   string
	comments []domain.Comment

	submitter Submitter
	notifier  Notifier
	log       *logger.Logger
	now       func() time.Time
	newID     func() string

	inflight sync.WaitGroup
}

func NewThread(postID string, initial []domain.Comment, submitter Submitter, opts ...Option) *Thread {
	t := &Thread{
		postID:    postID,
		comments:  cloneComments(initial),
		submitter: submitter,
		log:       logger.Nop(),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.log = t.log.With("component", "CommentThread", "post_id", postID)
	for i := range t.comments {
		t.comments[i].Replies = flattenReplies(t.comments[i].Replies)
	}
	return t
}

// Post inserts a pending comment (a reply when parentID is set) and submits
// it in the background. The returned comment is the pending entry.
func (t *Thread) Post(ctx context.Context, form Form, parentID string) (domain.Comment, error) {
	correlationID := t.newID()
	pending := domain.Comment{
		ID:            tempIDPrefix + correlationID,
		Name:          form.Name,
		Email:         form.Email,
		Comment:       form.Comment,
		PostID:        t.postID,
		ParentID:      parentID,
		CreatedAt:     t.now().UTC(),
		IsAdmin:       form.IsAdmin,
		Status:        domain.CommentStatusPending,
		CorrelationID: correlationID,
	}

	t.mu.Lock()
	if parentID != "" {
		idx := t.topLevelIndex(parentID)
		if idx < 0 {
			t.mu.Unlock()
			return domain.Comment{}, fmt.Errorf("%w: %s", ErrParentNotFound, parentID)
		}
		if t.comments[idx].Pending() {
			t.mu.Unlock()
			return domain.Comment{}, fmt.Errorf("%w: %s", ErrParentPending, parentID)
		}
		t.comments[idx].Replies = append(t.comments[idx].Replies, pending)
	} else {
		t.comments = append(t.comments, pending)
	}
	t.mu.Unlock()

	in := domain.CommentInput{
		Name:          form.Name,
		Email:         form.Email,
		Comment:       form.Comment,
		PostID:        t.postID,
		ParentID:      parentID,
		IsAdmin:       form.IsAdmin,
		CorrelationID: correlationID,
	}

	t.inflight.Add(1)
	go func() {
		defer t.inflight.Done()
		confirmed, err := t.submitter.Submit(context.WithoutCancel(ctx), in)
		if err != nil {
			t.rollback(pending, err)
			return
		}
		t.confirm(pending, confirmed)
	}()

	return pending, nil
}

// Wait blocks until every in-flight submission has settled.
func (t *Thread) Wait() {
	t.inflight.Wait()
}

// Comments returns a copy of the tree.
func (t *Thread) Comments() []domain.Comment {
	t.mu.Lock()
	defer t.mu.Unlock()
	return cloneComments(t.comments)
}

// Pending counts entries still awaiting confirmation.
func (t *Thread) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, c := range t.comments {
		if c.Pending() {
			n++
		}
		for _, r := range c.Replies {
			if r.Pending() {
				n++
			}
		}
	}
	return n
}

func (t *Thread) rollback(pending domain.Comment, cause error) {
	t.mu.Lock()
	if pending.ParentID == "" {
		t.comments = removeByID(t.comments, pending.ID)
	} else if idx := t.topLevelIndex(pending.ParentID); idx >= 0 {
		t.comments[idx].Replies = removeByID(t.comments[idx].Replies, pending.ID)
	}
	t.mu.Unlock()

	t.log.Warn("Comment submission failed, rolled back", "correlation_id", pending.CorrelationID, "error", cause)
	if t.notifier != nil {
		t.notifier.CommentFailed(pending, cause)
	}
}

func (t *Thread) confirm(pending, confirmed domain.Comment) {
	confirmed.Status = domain.CommentStatusConfirmed
	confirmed.CorrelationID = pending.CorrelationID
	if confirmed.ID == "" {
		confirmed.ID = pending.ID
	}
	if confirmed.PostID == "" {
		confirmed.PostID = pending.PostID
	}
	confirmed.ParentID = pending.ParentID

	t.mu.Lock()
	defer t.mu.Unlock()

	if pending.ParentID == "" {
		for i := range t.comments {
			if t.comments[i].CorrelationID == pending.CorrelationID {
				confirmed.Replies = t.comments[i].Replies
				t.comments[i] = confirmed
				return
			}
		}
		return
	}

	idx := t.topLevelIndex(pending.ParentID)
	if idx < 0 {
		return
	}
	replies := t.comments[idx].Replies
	for i := range replies {
		if replies[i].CorrelationID == pending.CorrelationID {
			confirmed.Replies = nil
			replies[i] = confirmed
			return
		}
	}
}

func (t *Thread) topLevelIndex(id string) int {
	for i, c := range t.comments {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func removeByID(list []domain.Comment, id string) []domain.Comment {
	out := list[:0]
	for _, c := range list {
		if c.ID != id {
			out = append(out, c)
		}
	}
	return out
}

// flattenReplies drops any nesting below the first reply level.
func flattenReplies(replies []domain.Comment) []domain.Comment {
	for i := range replies {
		replies[i].Replies = nil
	}
	return replies
}

func cloneComments(in []domain.Comment) []domain.Comment {
	if in == nil {
		return []domain.Comment{}
	}
	out := make([]domain.Comment, len(in))
	for i, c := range in {
		out[i] = c
		if c.Replies != nil {
			out[i].Replies = append([]domain.Comment(nil), c.Replies...)
		}
	}
	return out
}
