package comments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guriuo/hiigsitech/internal/domain"
)

// gatedSubmitter holds every submission until release is called for its
// correlation id, then answers with the configured outcome.
type gatedSubmitter struct {
	mu      sync.Mutex
	gates   map[string]chan error
	arrived chan domain.CommentInput
	seq     atomic.Int64
}

func newGatedSubmitter() *gatedSubmitter {
	return &gatedSubmitter{gates: map[string]chan error{}, arrived: make(chan domain.CommentInput, 16)}
}

func (g *gatedSubmitter) gate(id string) chan error {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.gates[id]
	if !ok {
		ch = make(chan error, 1)
		g.gates[id] = ch
	}
	return ch
}

func (g *gatedSubmitter) Submit(_ context.Context, in domain.CommentInput) (domain.Comment, error) {
	g.arrived <- in
	if err := <-g.gate(in.CorrelationID); err != nil {
		return domain.Comment{}, err
	}
	n := g.seq.Add(1)
	return domain.Comment{
		ID:            fmt.Sprintf("srv-%d", n),
		Name:          in.Name,
		Comment:       in.Comment,
		PostID:        in.PostID,
		ParentID:      in.ParentID,
		IsAdmin:       in.IsAdmin,
		CreatedAt:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		CorrelationID: in.CorrelationID,
	}, nil
}

func (g *gatedSubmitter) release(id string, err error) {
	g.gate(id) <- err
}

type recordingNotifier struct {
	mu     sync.Mutex
	failed []domain.Comment
}

func (r *recordingNotifier) CommentFailed(c domain.Comment, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, c)
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.failed)
}

func sequentialIDs() func() string {
	var n atomic.Int64
	return func() string { return fmt.Sprintf("tmp%d", n.Add(1)) }
}

func seedComments() []domain.Comment {
	return []domain.Comment{
		{ID: "c1", Name: "Lee", Comment: "Nice", Status: domain.CommentStatusConfirmed, Replies: []domain.Comment{
			{ID: "r1", ParentID: "c1", Name: "Admin", Comment: "Thanks", IsAdmin: true},
		}},
		{ID: "c2", Name: "Sam", Comment: "Helpful"},
	}
}

func TestPostTopLevelRollbackOnFailure(t *testing.T) {
	sub := newGatedSubmitter()
	notes := &recordingNotifier{}
	thread := NewThread("p1", seedComments(), sub, WithNotifier(notes), WithIDGenerator(sequentialIDs()))
	before := thread.Comments()

	pending, err := thread.Post(context.Background(), Form{Name: "Amina", Email: "amina@example.com", Comment: "Great post"}, "")
	require.NoError(t, err)
	assert.Equal(t, "optimistic-tmp1", pending.ID)
	assert.True(t, pending.Pending())

	in := <-sub.arrived
	assert.Equal(t, "p1", in.PostID)
	assert.Equal(t, "tmp1", in.CorrelationID)
	assert.Empty(t, in.ParentID)

	during := thread.Comments()
	require.Len(t, during, 3)
	assert.Equal(t, pending.ID, during[2].ID)
	assert.Equal(t, 1, thread.Pending())

	sub.release("tmp1", errors.New("500 Error submitting comment"))
	thread.Wait()

	assert.Equal(t, before, thread.Comments())
	assert.Equal(t, 1, notes.count())
	assert.Equal(t, 0, thread.Pending())
}

func TestPostReplyScopedToParent(t *testing.T) {
	sub := newGatedSubmitter()
	thread := NewThread("p1", seedComments(), sub, WithIDGenerator(sequentialIDs()))

	pending, err := thread.Post(context.Background(), Form{Name: "Amina", Email: "a@x", Comment: "Agreed"}, "c2")
	require.NoError(t, err)
	<-sub.arrived

	got := thread.Comments()
	require.Len(t, got, 2)
	require.Len(t, got[1].Replies, 1)
	assert.Equal(t, pending.ID, got[1].Replies[0].ID)
	assert.Len(t, got[0].Replies, 1)
	for _, c := range got {
		assert.NotEqual(t, pending.ID, c.ID)
	}

	sub.release("tmp1", nil)
	thread.Wait()

	got = thread.Comments()
	require.Len(t, got, 2)
	require.Len(t, got[1].Replies, 1)
	reply := got[1].Replies[0]
	assert.Equal(t, "srv-1", reply.ID)
	assert.Equal(t, domain.CommentStatusConfirmed, reply.Status)
	assert.Equal(t, "c2", reply.ParentID)
	assert.Nil(t, reply.Replies)
}

func TestReplyRollbackRestoresParent(t *testing.T) {
	sub := newGatedSubmitter()
	thread := NewThread("p1", seedComments(), sub, WithIDGenerator(sequentialIDs()))
	before := thread.Comments()

	_, err := thread.Post(context.Background(), Form{Name: "A", Email: "a@x", Comment: "reply"}, "c1")
	require.NoError(t, err)
	<-sub.arrived
	require.Len(t, thread.Comments()[0].Replies, 2)

	sub.release("tmp1", errors.New("boom"))
	thread.Wait()
	assert.Equal(t, before, thread.Comments())
}

func TestConfirmReplacesInPlace(t *testing.T) {
	sub := newGatedSubmitter()
	thread := NewThread("p1", nil, sub, WithIDGenerator(sequentialIDs()))

	_, err := thread.Post(context.Background(), Form{Name: "A", Email: "a@x", Comment: "one"}, "")
	require.NoError(t, err)
	_, err = thread.Post(context.Background(), Form{Name: "B", Email: "b@x", Comment: "two"}, "")
	require.NoError(t, err)
	<-sub.arrived
	<-sub.arrived

	sub.release("tmp2", nil)
	sub.release("tmp1", nil)
	thread.Wait()

	got := thread.Comments()
	require.Len(t, got, 2)
	assert.Equal(t, "one", got[0].Comment)
	assert.Equal(t, "two", got[1].Comment)
	for _, c := range got {
		assert.Equal(t, domain.CommentStatusConfirmed, c.Status)
		assert.NotContains(t, c.ID, tempIDPrefix)
	}
}

func TestParallelSubmissionsSettleIndependently(t *testing.T) {
	sub := newGatedSubmitter()
	notes := &recordingNotifier{}
	thread := NewThread("p1", nil, sub, WithNotifier(notes), WithIDGenerator(sequentialIDs()))

	for i := 0; i < 3; i++ {
		_, err := thread.Post(context.Background(), Form{Name: "A", Email: "a@x", Comment: fmt.Sprint(i)}, "")
		require.NoError(t, err)
	}
	for i := 0; i < 3; i++ {
		<-sub.arrived
	}

	sub.release("tmp2", errors.New("rejected"))
	sub.release("tmp1", nil)
	sub.release("tmp3", nil)
	thread.Wait()

	got := thread.Comments()
	require.Len(t, got, 2)
	assert.Equal(t, "0", got[0].Comment)
	assert.Equal(t, "2", got[1].Comment)
	assert.Equal(t, 1, notes.count())
}

func TestPostToMissingParent(t *testing.T) {
	sub := newGatedSubmitter()
	thread := NewThread("p1", seedComments(), sub)
	before := thread.Comments()

	_, err := thread.Post(context.Background(), Form{Name: "A", Email: "a@x", Comment: "hi"}, "r1")
	assert.ErrorIs(t, err, ErrParentNotFound)

	_, err = thread.Post(context.Background(), Form{Name: "A", Email: "a@x", Comment: "hi"}, "nope")
	assert.ErrorIs(t, err, ErrParentNotFound)

	thread.Wait()
	assert.Equal(t, before, thread.Comments())
	assert.Empty(t, sub.arrived)
}

func TestReplyToPendingParentRejected(t *testing.T) {
	sub := newGatedSubmitter()
	thread := NewThread("p1", nil, sub, WithIDGenerator(sequentialIDs()))

	parent, err := thread.Post(context.Background(), Form{Name: "A", Email: "a@x", Comment: "top"}, "")
	require.NoError(t, err)
	<-sub.arrived

	_, err = thread.Post(context.Background(), Form{Name: "B", Email: "b@x", Comment: "reply"}, parent.ID)
	assert.ErrorIs(t, err, ErrParentPending)

	sub.release("tmp1", nil)
	thread.Wait()
}

func TestNestedRepliesAreFlattened(t *testing.T) {
	initial := []domain.Comment{{ID: "c1", Replies: []domain.Comment{
		{ID: "r1", Replies: []domain.Comment{{ID: "deep"}}},
	}}}
	thread := NewThread("p1", initial, newGatedSubmitter())

	got := thread.Comments()
	assert.Nil(t, got[0].Replies[0].Replies)
	assert.NotNil(t, initial[0].Replies[0].Replies)
}

func TestCommentsReturnsCopy(t *testing.T) {
	thread := NewThread("p1", seedComments(), newGatedSubmitter())
	got := thread.Comments()
	got[0].Replies[0].Comment = "mutated"
	got[1].Comment = "mutated"

	again := thread.Comments()
	assert.Equal(t, "Thanks", again[0].Replies[0].Comment)
	assert.Equal(t, "Helpful", again[1].Comment)
}

func TestHTTPSubmitter(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/comment", r.URL.Path)
			var in domain.CommentInput
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
			assert.Equal(t, "amina@example.com", in.Email)
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"message": "Comment submitted!",
				"comment": map[string]any{"id": "real-1", "name": in.Name, "comment": in.Comment, "correlationId": in.CorrelationID},
			})
		}))
		defer srv.Close()

		c, err := NewHTTPSubmitter(srv.URL+"/", nil).Submit(context.Background(), domain.CommentInput{
			Name: "Amina", Email: "amina@example.com", Comment: "Great post", PostID: "p1", CorrelationID: "x1",
		})
		require.NoError(t, err)
		assert.Equal(t, "real-1", c.ID)
	})

	t.Run("server error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"Error submitting comment"}`))
		}))
		defer srv.Close()

		_, err := NewHTTPSubmitter(srv.URL, nil).Submit(context.Background(), domain.CommentInput{CorrelationID: "x1"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Error submitting comment")
		assert.Contains(t, err.Error(), "500")
	})

	t.Run("correlation mismatch", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"message":"ok","comment":{"id":"z","correlationId":"other"}}`))
		}))
		defer srv.Close()

		_, err := NewHTTPSubmitter(srv.URL, nil).Submit(context.Background(), domain.CommentInput{CorrelationID: "x1"})
		assert.Error(t, err)
	})
}
