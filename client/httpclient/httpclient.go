package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wtcops/resyncd/internal/httpserver"
	"github.com/wtcops/resyncd/internal/task"
)

const DefaultURL = "http://127.0.0.1:3000"

// APIError is a non-successful response of the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.StatusCode)
}

// IsNotFoundError checks if the given error is a 404 response.
func IsNotFoundError(err error) bool {
	var e *APIError

	if errors.As(err, &e) {
		return e.StatusCode == http.StatusNotFound
	}

	return false
}

type Client struct {
	baseURL string
	apiKey  string

	// Used for regular requests
	client *http.Client
	// Used for streams, no timeout
	streamClient *http.Client
}

func New(baseURL, apiKey string) *Client {
	if len(baseURL) == 0 {
		baseURL = DefaultURL
	}

	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		client:       &http.Client{Timeout: 30 * time.Second},
		streamClient: &http.Client{},
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body interface{}) (*http.Request, error) {
	var r io.Reader

	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}

		r = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if len(c.apiKey) > 0 {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, resp interface{}) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	res, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if err := checkResponse(res); err != nil {
		return err
	}

	if err := json.NewDecoder(res.Body).Decode(resp); err != nil {
		return fmt.Errorf("invalid response: %w", err)
	}

	return nil
}

func checkResponse(res *http.Response) error {
	if res.StatusCode == http.StatusOK {
		return nil
	}

	apiErr := APIError{
		StatusCode: res.StatusCode,
		Message:    http.StatusText(res.StatusCode),
	}

	var e httpserver.ErrorResponse

	if err := json.NewDecoder(res.Body).Decode(&e); err == nil && len(e.Error) > 0 {
		apiErr.Message = e.Error
	}

	return &apiErr
}

func (c *Client) Submit(ctx context.Context, kind task.Kind, req *httpserver.SubmitRequest) (*httpserver.SubmitResponse, error) {
	var resp httpserver.SubmitResponse

	if err := c.do(ctx, http.MethodPost, "/api/tasks/"+string(kind), req, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

func (c *Client) Status(ctx context.Context, id string) (*task.Record, error) {
	var resp httpserver.StatusResponse

	if err := c.do(ctx, http.MethodGet, httpserver.StatusPath(id), nil, &resp); err != nil {
		return nil, err
	}

	return resp.Task, nil
}

func (c *Client) List(ctx context.Context) ([]*task.Summary, error) {
	var resp httpserver.ListResponse

	if err := c.do(ctx, http.MethodGet, "/api/tasks", nil, &resp); err != nil {
		return nil, err
	}

	return resp.Tasks, nil
}

func (c *Client) Health(ctx context.Context) (*httpserver.HealthResponse, error) {
	var resp httpserver.HealthResponse

	if err := c.do(ctx, http.MethodGet, "/health", nil, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

// Stream calls fn for every frame of the task stream until the server
// sends the end frame, fn returns an error or ctx is cancelled.
func (c *Client) Stream(ctx context.Context, id string, fn func(*httpserver.Frame) error) error {
	req, err := c.newRequest(ctx, http.MethodGet, httpserver.StreamPath(id), nil)
	if err != nil {
		return err
	}

	req.Header.Set("Accept", "text/event-stream")

	res, err := c.streamClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if err := checkResponse(res); err != nil {
		return err
	}

	err = readEvents(res.Body, func(ev *event) error {
		var f httpserver.Frame

		if err := json.Unmarshal([]byte(ev.data), &f); err != nil {
			return fmt.Errorf("invalid frame: %w", err)
		}

		if len(f.Type) == 0 {
			f.Type = ev.name
		}

		if err := fn(&f); err != nil {
			return err
		}

		if f.Type == httpserver.FrameEnd {
			return errStreamEnded
		}

		return nil
	})

	switch {
	case errors.Is(err, errStreamEnded):
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case err != nil:
		return err
	}

	// The connection was closed before the end frame
	return io.ErrUnexpectedEOF
}
