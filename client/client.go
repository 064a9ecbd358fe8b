// Package client is a Go client of the chore-server HTTP API.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/pkg/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ctfer-io/chore-server/pkg/fs"
)

const statePath = "/api/chore-state"

// maxResponseSize bounds what the client reads back from the server.
const maxResponseSize = 16 << 20

// Client calls a chore-server instance.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a Client for the server at baseURL (e.g. http://localhost:3000).
// If hc is nil, a client with an OpenTelemetry-instrumented transport is used.
func New(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    hc,
	}
}

// APIError is returned when the server answers with a non-200 status.
type APIError struct {
	Status  int
	Message string
}

func (err *APIError) Error() string {
	if err.Message == "" {
		return fmt.Sprintf("chore-server answered %d", err.Status)
	}
	return fmt.Sprintf("chore-server answered %d: %s", err.Status, err.Message)
}

// Fetch returns the stored chore state, {} when there is none.
func (c *Client) Fetch(ctx context.Context) (fs.Document, error) {
	b, err := c.do(ctx, http.MethodGet, statePath, nil)
	if err != nil {
		return nil, err
	}
	return fs.ParseDocument(b)
}

// Replace overwrites the stored chore state with doc.
func (c *Client) Replace(ctx context.Context, doc fs.Document) error {
	b, err := c.do(ctx, http.MethodPost, statePath, doc.Bytes())
	if err != nil {
		return err
	}

	resp := struct {
		OK bool `json:"ok"`
	}{}
	if err := json.Unmarshal(b, &resp); err != nil {
		return errors.Wrap(err, "decoding replace response")
	}
	if !resp.OK {
		return errors.New("chore-server did not acknowledge the replace")
	}
	return nil
}

// Alive checks the liveness probe of the server.
func (c *Client) Alive(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/", nil)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = res.Body.Close()
	}()

	b, err := io.ReadAll(io.LimitReader(res.Body, maxResponseSize))
	if err != nil {
		return nil, errors.Wrap(err, "reading response")
	}
	if res.StatusCode != http.StatusOK {
		apiErr := &APIError{Status: res.StatusCode}
		msg := struct {
			Error string `json:"error"`
		}{}
		if json.Unmarshal(b, &msg) == nil {
			apiErr.Message = msg.Error
		}
		return nil, apiErr
	}
	return b, nil
}
