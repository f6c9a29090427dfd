package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/guriuo/hiigsitech/internal/domain"
	"github.com/guriuo/hiigsitech/internal/logger"
)

var ErrNotFound = errors.New("record not found")

type CommentRecord struct {
	ID        string  `gorm:"primaryKey;size:36"`
	PostID    string  `gorm:"index;not null"`
	ParentID  *string `gorm:"index"`
	Name      string  `gorm:"not null"`
	Email     string  `gorm:"not null"`
	Body      string  `gorm:"type:text;not null"`
	IsAdmin   bool    `gorm:"not null;default:false"`
	CreatedAt time.Time
}

func (CommentRecord) TableName() string { return "comments" }

type ContactRecord struct {
	ID        uint `gorm:"primaryKey"`
	Name      string
	Email     string
	Phone     string
	Project   string
	Message   string `gorm:"type:text"`
	CreatedAt time.Time
}

func (ContactRecord) TableName() string { return "contact_submissions" }

func OpenDatabase(driver, dsn string, log *logger.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		if dir := filepath.Dir(dsn); dir != "." && dir != "" && dsn != ":memory:" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		log.Error("Failed to open database", "driver", driver, "error", err)
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	return db, nil
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&CommentRecord{}, &ContactRecord{})
}

type CommentRepo interface {
	Create(ctx context.Context, tx *gorm.DB, c domain.Comment) error
	GetByID(ctx context.Context, tx *gorm.DB, id string) (domain.Comment, error)
	ListThread(ctx context.Context, tx *gorm.DB, postID string) ([]domain.Comment, error)
}

type commentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCommentRepo(db *gorm.DB, baseLog *logger.Logger) CommentRepo {
	return &commentRepo{db: db, log: baseLog.With("repo", "CommentRepo")}
}

func (r *commentRepo) Create(ctx context.Context, tx *gorm.DB, c domain.Comment) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	rec := CommentRecord{
		ID:        c.ID,
		PostID:    c.PostID,
		Name:      c.Name,
		Email:     c.Email,
		Body:      c.Comment,
		IsAdmin:   c.IsAdmin,
		CreatedAt: c.CreatedAt,
	}
	if c.ParentID != "" {
		parent := c.ParentID
		rec.ParentID = &parent
	}
	return transaction.WithContext(ctx).Create(&rec).Error
}

func (r *commentRepo) GetByID(ctx context.Context, tx *gorm.DB, id string) (domain.Comment, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var rec CommentRecord
	err := transaction.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Comment{}, ErrNotFound
	}
	if err != nil {
		return domain.Comment{}, err
	}
	return rec.toDomain(), nil
}

// ListThread returns the post's top-level comments, oldest first, each
// carrying its replies. Replies never appear at the top level.
func (r *commentRepo) ListThread(ctx context.Context, tx *gorm.DB, postID string) ([]domain.Comment, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var top []CommentRecord
	if err := transaction.WithContext(ctx).
		Where("post_id = ? AND parent_id IS NULL", postID).
		Order("created_at ASC").
		Find(&top).Error; err != nil {
		return nil, err
	}

	out := make([]domain.Comment, 0, len(top))
	if len(top) == 0 {
		return out, nil
	}

	ids := make([]string, 0, len(top))
	for _, rec := range top {
		ids = append(ids, rec.ID)
	}

	var replies []CommentRecord
	if err := transaction.WithContext(ctx).
		Where("parent_id IN ?", ids).
		Order("created_at ASC").
		Find(&replies).Error; err != nil {
		return nil, err
	}

	byParent := make(map[string][]domain.Comment, len(top))
	for _, rec := range replies {
		byParent[*rec.ParentID] = append(byParent[*rec.ParentID], rec.toDomain())
	}

	for _, rec := range top {
		c := rec.toDomain()
		c.Replies = byParent[rec.ID]
		out = append(out, c)
	}
	return out, nil
}

func (rec CommentRecord) toDomain() domain.Comment {
	c := domain.Comment{
		ID:        rec.ID,
		Name:      rec.Name,
		Email:     rec.Email,
		Comment:   rec.Body,
		PostID:    rec.PostID,
		CreatedAt: rec.CreatedAt.UTC(),
		IsAdmin:   rec.IsAdmin,
		Status:    domain.CommentStatusConfirmed,
	}
	if rec.ParentID != nil {
		c.ParentID = *rec.ParentID
	}
	return c
}

type ContactRepo interface {
	Create(ctx context.Context, tx *gorm.DB, s domain.ContactSubmission) error
}

type contactRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewContactRepo(db *gorm.DB, baseLog *logger.Logger) ContactRepo {
	return &contactRepo{db: db, log: baseLog.With("repo", "ContactRepo")}
}

func (r *contactRepo) Create(ctx context.Context, tx *gorm.DB, s domain.ContactSubmission) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	rec := ContactRecord{
		Name:      s.Name,
		Email:     s.Email,
		Phone:     s.Phone,
		Project:   s.Project,
		Message:   s.Message,
		CreatedAt: s.CreatedAt,
	}
	return transaction.WithContext(ctx).Create(&rec).Error
}
