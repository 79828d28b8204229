package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"task-navigator/internal/models"
	"task-navigator/internal/tracker"

	"github.com/gofrs/uuid"
	"golang.org/x/oauth2"
)

const tasksPath = "/rest/v1/user_tasks"

// APIError is a non-success response from the backend.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
}

// decodeAPIError reads either error shape the backend writes:
// {error, error_description} from the auth endpoints or {error, message}
// from everything else.
func decodeAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var payload struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
		Message          string `json:"message"`
	}
	apiErr := &APIError{StatusCode: resp.StatusCode}
	if err := json.Unmarshal(body, &payload); err != nil {
		apiErr.Message = strings.TrimSpace(string(body))
		return apiErr
	}

	apiErr.Code = payload.Error
	switch {
	case payload.ErrorDescription != "":
		apiErr.Message = payload.ErrorDescription
	case payload.Message != "":
		apiErr.Message = payload.Message
	default:
		apiErr.Message = payload.Error
	}
	return apiErr
}

// TaskStore is the user_tasks collection over HTTP. Every request carries
// the bearer token from source.
type TaskStore struct {
	baseURL string
	client  *http.Client
}

var _ tracker.Store = (*TaskStore)(nil)

func NewTaskStore(baseURL string, source oauth2.TokenSource, base *http.Client) *TaskStore {
	if base == nil {
		base = http.DefaultClient
	}
	return &TaskStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout:   base.Timeout,
			Transport: &oauth2.Transport{Source: source, Base: base.Transport},
		},
	}
}

func (s *TaskStore) do(ctx context.Context, method, path string, in, out interface{}, want int) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (s *TaskStore) List(ctx context.Context) ([]models.Task, error) {
	var tasks []models.Task
	if err := s.do(ctx, http.MethodGet, tasksPath, nil, &tasks, http.StatusOK); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (s *TaskStore) Insert(ctx context.Context, task tracker.NewTask) (*models.Task, error) {
	var created models.Task
	if err := s.do(ctx, http.MethodPost, tasksPath, task, &created, http.StatusCreated); err != nil {
		return nil, err
	}
	return &created, nil
}

func (s *TaskStore) Update(ctx context.Context, id uuid.UUID, patch tracker.Patch) (*models.Task, error) {
	var updated models.Task
	if err := s.do(ctx, http.MethodPatch, tasksPath+"/"+id.String(), patch, &updated, http.StatusOK); err != nil {
		return nil, err
	}
	return &updated, nil
}
