package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/url"
	"time"

	"github.com/guriuo/hiigsitech/internal/config"
)

func SignURL(path string, expiresAt int64, secret string) string {
	signature := computeSignature(path, expiresAt, secret)
	return fmt.Sprintf("%s?exp=%d&sig=%s", path, expiresAt, signature)
}

func ValidateSignature(path string, expiresAt int64, signature, secret string) bool {
	expected := computeSignature(path, expiresAt, secret)
	return hmac.Equal([]byte(signature), []byte(expected))
}

// ExportPath is the public path of a learner's notes export for a course.
func ExportPath(slug, learner string) string {
	return fmt.Sprintf("/exports/%s/%s", url.PathEscape(slug), url.PathEscape(learner))
}

// ShareService issues expiring signed links to notes exports, so a PDF can
// be opened in a browser tab without the learner header.
type ShareService struct {
	secret  string
	baseURL string
	ttl     time.Duration
	now     func() time.Time
}

func NewShareService(cfg config.Config) *ShareService {
	return &ShareService{
		secret:  cfg.ShareSecret,
		baseURL: cfg.BaseURL,
		ttl:     cfg.ShareTTL,
		now:     time.Now,
	}
}

func (s *ShareService) Generate(slug, learner string) (string, time.Time) {
	expiresAt := s.now().Add(s.ttl)
	signedPath := SignURL(ExportPath(slug, learner), expiresAt.Unix(), s.secret)
	return s.baseURL + signedPath, expiresAt
}

// Validate checks a link's signature; expiry is checked by the caller so it
// can answer with a distinct status.
func (s *ShareService) Validate(path string, expires int64, signature string) bool {
	return ValidateSignature(path, expires, signature, s.secret)
}

func (s *ShareService) Expired(expires int64) bool {
	return expires < s.now().Unix()
}

func computeSignature(path string, expiresAt int64, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(fmt.Sprintf("%s:%d", path, expiresAt)))
	sig := h.Sum(nil)
	return base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(sig)
}
