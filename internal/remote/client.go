package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/lucasew/assetcache/internal/errutil"
)

const (
	revalidatePath = "/get_multifiles"
	uploadPath     = "/post_file"
)

// Credentials injects caller identity into outgoing requests.
type Credentials interface {
	Apply(req *http.Request)
}

// StaticCredentials sends a bearer API key plus project and bucket headers.
type StaticCredentials struct {
	APIKey  string
	Project string
	Bucket  string
}

func (c StaticCredentials) Apply(req *http.Request) {
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	if c.Project != "" {
		req.Header.Set("X-Visdax-Project", c.Project)
	}
	if c.Bucket != "" {
		req.Header.Set("X-Visdax-Bucket", c.Bucket)
	}
}

// Client talks to the remote asset store over HTTP.
//
// It never retries: every failure is handed back to the caller as is.
type Client struct {
	BaseURL     string
	HTTP        *http.Client
	Credentials Credentials
	Timeout     time.Duration
}

func NewClient(baseURL string, client *http.Client, creds Credentials, timeout time.Duration) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	if creds == nil {
		creds = StaticCredentials{}
	}
	return &Client{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		HTTP:        client,
		Credentials: creds,
		Timeout:     timeout,
	}
}

// Revalidate sends one batched conditional fetch.
func (c *Client) Revalidate(ctx context.Context, in RevalidateRequest) (*RevalidateResponse, error) {
	if in.ETags == nil {
		in.ETags = map[string]string{}
	}
	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	url := c.BaseURL + revalidatePath + "?restore=true"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var out RevalidateResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	if err := out.validate(); err != nil {
		return nil, err
	}
	return &out, nil
}

// Upload sends content as a multipart "file" field and returns the raw
// acknowledgment document.
func (c *Client) Upload(ctx context.Context, filename string, content io.Reader) (json.RawMessage, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", filename)
		if err == nil {
			_, err = io.Copy(part, content)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+uploadPath, pr)
	if err != nil {
		_ = pr.Close()
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var ack json.RawMessage
	if err := c.do(req, &ack); err != nil {
		// Unblocks the writer goroutine if the request never read the body.
		_ = pr.CloseWithError(err)
		return nil, err
	}
	return ack, nil
}

func (c *Client) do(req *http.Request, out any) error {
	c.Credentials.Apply(req)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		errutil.LogMsg(resp.Body.Close(), "Failed to close response body")
	}()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &HTTPStatusError{StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	return nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout > 0 {
		return context.WithTimeout(ctx, c.Timeout)
	}
	return context.WithCancel(ctx)
}
