package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/guriuo/hiigsitech/internal/domain"
	"github.com/guriuo/hiigsitech/internal/logger"
)

const (
	msgMissingFields   = "Missing required fields"
	msgSubmitFailed    = "Error submitting comment"
	msgCommentAccepted = "Comment submitted!"
)

// CommentService is the server half of the comment endpoint.
type CommentService struct {
	backend CommentBackend
	log     *logger.Logger
	now     func() time.Time
}

func NewCommentService(backend CommentBackend, log *logger.Logger) *CommentService {
	return &CommentService{backend: backend, log: log.With("component", "comments"), now: time.Now}
}

// Accepted is the success message returned with a stored comment.
func (s *CommentService) Accepted() string { return msgCommentAccepted }

func (s *CommentService) List(ctx context.Context, postID string) ([]domain.Comment, error) {
	comments, err := s.backend.Comments(ctx, postID)
	if err != nil {
		s.log.Error("list comments failed", "postId", postID, "err", err)
		return nil, internalError("Error loading comments", err)
	}
	return comments, nil
}

// Submit validates and stores one comment. Replies must target an existing
// top-level comment on the same post.
func (s *CommentService) Submit(ctx context.Context, in domain.CommentInput) (domain.Comment, error) {
	if err := in.Validate(); err != nil {
		return domain.Comment{}, badRequest(msgMissingFields, err)
	}

	parentID := strings.TrimSpace(in.ParentID)
	if parentID != "" {
		parent, err := s.backend.Comment(ctx, parentID)
		switch {
		case errors.Is(err, ErrCommentNotFound):
			return domain.Comment{}, badRequest("Parent comment not found", err)
		case err != nil:
			s.log.Error("parent lookup failed", "parentId", parentID, "err", err)
			return domain.Comment{}, internalError(msgSubmitFailed, err)
		case parent.ParentID != "":
			return domain.Comment{}, badRequest("Replies cannot be nested", nil)
		case parent.PostID != "" && parent.PostID != in.PostID:
			return domain.Comment{}, badRequest("Parent comment belongs to another post", nil)
		}
	}

	c := domain.Comment{
		ID:            uuid.NewString(),
		Name:          strings.TrimSpace(in.Name),
		Email:         strings.TrimSpace(in.Email),
		Comment:       strings.TrimSpace(in.Comment),
		PostID:        in.PostID,
		ParentID:      parentID,
		CreatedAt:     s.now().UTC(),
		IsAdmin:       in.IsAdmin,
		Status:        domain.CommentStatusConfirmed,
		CorrelationID: in.CorrelationID,
	}

	if err := s.backend.CreateComment(ctx, c); err != nil {
		s.log.Error("store comment failed", "postId", c.PostID, "email", c.Email, "err", err)
		return domain.Comment{}, internalError(msgSubmitFailed, err)
	}

	s.log.Info("comment stored", "id", c.ID, "postId", c.PostID, "reply", parentID != "")
	return c, nil
}
