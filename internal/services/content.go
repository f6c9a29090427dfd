package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/guriuo/hiigsitech/internal/config"
	"github.com/guriuo/hiigsitech/internal/domain"
)

const contentRequestTimeout = 20 * time.Second

var (
	ErrCourseNotFound  = errors.New("course not found")
	ErrCommentNotFound = errors.New("comment not found")
)

// CourseSource returns a course with its full module/lesson tree.
type CourseSource interface {
	Course(ctx context.Context, slug string) (domain.Course, error)
}

// CommentBackend stores comments. Comments returns top-level comments with
// their replies attached, replies excluded from the top level.
type CommentBackend interface {
	Comments(ctx context.Context, postID string) ([]domain.Comment, error)
	Comment(ctx context.Context, id string) (domain.Comment, error)
	CreateComment(ctx context.Context, c domain.Comment) error
}

type ContactBackend interface {
	CreateContact(ctx context.Context, s domain.ContactSubmission) error
}

const courseQuery = `*[_type == "course" && slug.current == $slug][0]{
  "id": _id,
  title,
  "slug": slug.current,
  modules[]{
    "key": _key,
    title,
    lessons[]{
      "key": _key,
      title,
      "slug": slug.current,
      description,
      videoType,
      videoUrl,
      "videoFile": videoFile{ "url": asset->url },
      resources[]{
        "key": _key,
        title,
        resourceType,
        url,
        "file": file{ "url": asset->url, "originalFilename": asset->originalFilename }
      }
    }
  }
}`

const commentProjection = `"id": _id, name, comment, createdAt, isAdmin, "postId": post._ref, "parentId": parent._ref`

var commentsQuery = `*[_type == "comment" && post._ref == $postId && !defined(parent)] | order(createdAt asc){
  ` + commentProjection + `,
  "replies": *[_type == "comment" && parent._ref == ^._id] | order(createdAt asc){ ` + commentProjection + ` }
}`

var commentByIDQuery = `*[_type == "comment" && _id == $id][0]{ ` + commentProjection + ` }`

// ContentClient talks to the hosted structured-content store: reads go
// through the query endpoint, writes through the mutate endpoint.
type ContentClient struct {
	baseURL    string
	apiVersion string
	dataset    string
	token      string
	reqTimeout time.Duration
	httpClient *http.Client
}

func NewContentClient(cfg config.Config) *ContentClient {
	return &ContentClient{
		baseURL:    fmt.Sprintf("https://%s.api.sanity.io", cfg.ContentProjectID),
		apiVersion: cfg.ContentAPIVersion,
		dataset:    cfg.ContentDataset,
		token:      cfg.ContentToken,
		reqTimeout: contentRequestTimeout,
		httpClient: &http.Client{Timeout: contentRequestTimeout},
	}
}

// WithBaseURL points the client at another host, e.g. a test server.
func (s *ContentClient) WithBaseURL(base string) *ContentClient {
	s.baseURL = strings.TrimRight(base, "/")
	return s
}

func (s *ContentClient) Course(ctx context.Context, slug string) (domain.Course, error) {
	raw, err := s.Query(ctx, courseQuery, map[string]any{"slug": slug})
	if err != nil {
		return domain.Course{}, err
	}
	if isNull(raw) {
		return domain.Course{}, fmt.Errorf("%w: %s", ErrCourseNotFound, slug)
	}

	var course domain.Course
	if err := json.Unmarshal(raw, &course); err != nil {
		return domain.Course{}, fmt.Errorf("decode course: %w", err)
	}
	return course, nil
}

func (s *ContentClient) Comments(ctx context.Context, postID string) ([]domain.Comment, error) {
	raw, err := s.Query(ctx, commentsQuery, map[string]any{"postId": postID})
	if err != nil {
		return nil, err
	}

	comments := []domain.Comment{}
	if isNull(raw) {
		return comments, nil
	}
	if err := json.Unmarshal(raw, &comments); err != nil {
		return nil, fmt.Errorf("decode comments: %w", err)
	}
	for i := range comments {
		comments[i].Status = domain.CommentStatusConfirmed
		for j := range comments[i].Replies {
			comments[i].Replies[j].Status = domain.CommentStatusConfirmed
			comments[i].Replies[j].Replies = nil
		}
	}
	return comments, nil
}

func (s *ContentClient) Comment(ctx context.Context, id string) (domain.Comment, error) {
	raw, err := s.Query(ctx, commentByIDQuery, map[string]any{"id": id})
	if err != nil {
		return domain.Comment{}, err
	}
	if isNull(raw) {
		return domain.Comment{}, fmt.Errorf("%w: %s", ErrCommentNotFound, id)
	}

	var c domain.Comment
	if err := json.Unmarshal(raw, &c); err != nil {
		return domain.Comment{}, fmt.Errorf("decode comment: %w", err)
	}
	return c, nil
}

func (s *ContentClient) CreateComment(ctx context.Context, c domain.Comment) error {
	doc := map[string]any{
		"_id":       c.ID,
		"_type":     "comment",
		"name":      c.Name,
		"email":     c.Email,
		"comment":   c.Comment,
		"isAdmin":   c.IsAdmin,
		"createdAt": c.CreatedAt.UTC().Format(time.RFC3339),
		"post":      map[string]any{"_type": "reference", "_ref": c.PostID},
	}
	if c.ParentID != "" {
		doc["parent"] = map[string]any{"_type": "reference", "_ref": c.ParentID}
	}
	return s.create(ctx, doc)
}

func (s *ContentClient) CreateContact(ctx context.Context, sub domain.ContactSubmission) error {
	return s.create(ctx, map[string]any{
		"_type":     "contactSubmission",
		"name":      sub.Name,
		"email":     sub.Email,
		"phone":     sub.Phone,
		"project":   sub.Project,
		"message":   sub.Message,
		"createdAt": sub.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// Query runs a filter+projection expression and returns the raw result.
func (s *ContentClient) Query(ctx context.Context, query string, params map[string]any) (json.RawMessage, error) {
	values := url.Values{}
	values.Set("query", query)
	for name, val := range params {
		encoded, err := json.Marshal(val)
		if err != nil {
			return nil, fmt.Errorf("encode query param %s: %w", name, err)
		}
		values.Set("$"+name, string(encoded))
	}

	endpoint := fmt.Sprintf("%s/v%s/data/query/%s?%s", s.baseURL, s.apiVersion, s.dataset, values.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create query request: %w", err)
	}
	s.authorize(req)

	resp, err := s.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, s.decodeAPIError(resp)
	}

	var payload struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode query response: %w", err)
	}
	return payload.Result, nil
}

func (s *ContentClient) create(ctx context.Context, doc map[string]any) error {
	if strings.TrimSpace(s.token) == "" {
		return errors.New("content write token is not configured")
	}

	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(map[string]any{
		"mutations": []map[string]any{{"create": doc}},
	}); err != nil {
		return fmt.Errorf("encode mutation: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v%s/data/mutate/%s?returnIds=true", s.baseURL, s.apiVersion, s.dataset)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, buf)
	if err != nil {
		return fmt.Errorf("create mutation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	s.authorize(req)

	resp, err := s.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return s.decodeAPIError(resp)
	}
	return nil
}

func (s *ContentClient) authorize(req *http.Request) {
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
}

func (s *ContentClient) do(req *http.Request) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(req.Context(), s.reqTimeout)
	req = req.WithContext(ctx)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("content request failed: %w", err)
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

func (s *ContentClient) decodeAPIError(resp *http.Response) error {
	var apiErr struct {
		Error struct {
			Description string `json:"description"`
			Type        string `json:"type"`
		} `json:"error"`
		Message string `json:"message"`
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err := json.Unmarshal(body, &apiErr); err == nil {
		if apiErr.Error.Description != "" {
			return fmt.Errorf("content api error: status %d type %s message %s", resp.StatusCode, apiErr.Error.Type, apiErr.Error.Description)
		}
		if apiErr.Message != "" {
			return fmt.Errorf("content api error: status %d message %s", resp.StatusCode, apiErr.Message)
		}
	}
	return fmt.Errorf("content api error: status %d body %s", resp.StatusCode, strings.TrimSpace(string(body)))
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
