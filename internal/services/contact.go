package services

import (
	"context"
	"strings"
	"time"

	"github.com/guriuo/hiigsitech/internal/domain"
	"github.com/guriuo/hiigsitech/internal/logger"
)

type ContactService struct {
	backend ContactBackend
	log     *logger.Logger
	now     func() time.Time
}

func NewContactService(backend ContactBackend, log *logger.Logger) *ContactService {
	return &ContactService{backend: backend, log: log.With("component", "contact"), now: time.Now}
}

func (s *ContactService) Submit(ctx context.Context, sub domain.ContactSubmission) error {
	sub.Name = strings.TrimSpace(sub.Name)
	sub.Email = strings.TrimSpace(sub.Email)
	sub.Message = strings.TrimSpace(sub.Message)
	if err := sub.Validate(); err != nil {
		return badRequest(msgMissingFields, err)
	}

	sub.CreatedAt = s.now().UTC()
	if err := s.backend.CreateContact(ctx, sub); err != nil {
		s.log.Error("store contact submission failed", "email", sub.Email, "phone", sub.Phone, "err", err)
		return internalError("Error submitting form", err)
	}
	s.log.Info("contact submission stored", "project", sub.Project)
	return nil
}
