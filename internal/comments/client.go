package comments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/guriuo/hiigsitech/internal/domain"
)

const submitTimeout = 15 * time.Second

// HTTPSubmitter posts comments to the site's comment endpoint.
type HTTPSubmitter struct {
	endpoint   string
	httpClient *http.Client
}

func NewHTTPSubmitter(baseURL string, client *http.Client) *HTTPSubmitter {
	if client == nil {
		client = &http.Client{Timeout: submitTimeout}
	}
	return &HTTPSubmitter{
		endpoint:   strings.TrimRight(baseURL, "/") + "/api/comment",
		httpClient: client,
	}
}

type submitResponse struct {
	Message string         `json:"message"`
	Error   string         `json:"error"`
	Comment domain.Comment `json:"comment"`
}

func (s *HTTPSubmitter) Submit(ctx context.Context, in domain.CommentInput) (domain.Comment, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return domain.Comment{}, fmt.Errorf("encode comment: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return domain.Comment{}, fmt.Errorf("create comment request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return domain.Comment{}, fmt.Errorf("post comment: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.Comment{}, fmt.Errorf("read comment response: %w", err)
	}

	var body submitResponse
	_ = json.Unmarshal(raw, &body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := body.Error
		if msg == "" {
			msg = body.Message
		}
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		return domain.Comment{}, fmt.Errorf("comment rejected (%d): %s", resp.StatusCode, msg)
	}

	if body.Comment.CorrelationID != "" && body.Comment.CorrelationID != in.CorrelationID {
		return domain.Comment{}, fmt.Errorf("comment response correlation mismatch")
	}
	return body.Comment, nil
}
