package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/guriuo/hiigsitech/internal/domain"
	"github.com/guriuo/hiigsitech/internal/storage"
)

// SQLBackend keeps comments and contact submissions in the local database.
type SQLBackend struct {
	comments storage.CommentRepo
	contacts storage.ContactRepo
}

func NewSQLBackend(comments storage.CommentRepo, contacts storage.ContactRepo) *SQLBackend {
	return &SQLBackend{comments: comments, contacts: contacts}
}

func (b *SQLBackend) Comments(ctx context.Context, postID string) ([]domain.Comment, error) {
	return b.comments.ListThread(ctx, nil, postID)
}

func (b *SQLBackend) Comment(ctx context.Context, id string) (domain.Comment, error) {
	c, err := b.comments.GetByID(ctx, nil, id)
	if errors.Is(err, storage.ErrNotFound) {
		return domain.Comment{}, fmt.Errorf("%w: %s", ErrCommentNotFound, id)
	}
	return c, err
}

func (b *SQLBackend) CreateComment(ctx context.Context, c domain.Comment) error {
	return b.comments.Create(ctx, nil, c)
}

func (b *SQLBackend) CreateContact(ctx context.Context, s domain.ContactSubmission) error {
	return b.contacts.Create(ctx, nil, s)
}
