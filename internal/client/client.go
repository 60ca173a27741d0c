// Package client talks to the moneymap HTTP API. A Client bound to one
// variant serves as a canvas.Backend, so an editor session can load and save
// against a remote server.
package client

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

	"github.com/roach88/moneymap/internal/api"
	"github.com/roach88/moneymap/internal/graph"
	"github.com/roach88/moneymap/internal/store"
	"github.com/roach88/moneymap/internal/workspace"
)

// DefaultTimeout bounds each request when no http.Client is supplied.
const DefaultTimeout = 10 * time.Second

// Client calls one moneymap server.
type Client struct {
	baseURL string
	http    *http.Client
	variant store.Variant
	actorID string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithVariant selects the workspace Load and Save use. Default live.
func WithVariant(v store.Variant) Option {
	return func(c *Client) { c.variant = v }
}

// WithActor sets the X-Actor-ID sent with every request.
func WithActor(id string) Option {
	return func(c *Client) { c.actorID = id }
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		variant: store.VariantLive,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is a non-2xx response. It unwraps to the matching sentinel
// error where one exists, so errors.Is(err, workspace.ErrNoPair) works
// across the wire.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

var sentinels = map[string]error{
	api.CodeNotFound:         store.ErrNotFound,
	api.CodeNoPair:           workspace.ErrNoPair,
	api.CodeLiveDelete:       workspace.ErrLiveDelete,
	api.CodePendingRequest:   workspace.ErrPendingRequest,
	api.CodeApprovalRequired: workspace.ErrApprovalRequired,
	api.CodeInvalidVariant:   workspace.ErrInvalidVariant,
}

func (e *APIError) Unwrap() error {
	return sentinels[e.Code]
}

// Load implements canvas.Backend.
func (c *Client) Load(ctx context.Context, householdID string) (graph.Snapshot, error) {
	resp, err := c.Graph(ctx, householdID, c.variant)
	if err != nil {
		return graph.Snapshot{}, err
	}
	return resp.Graph, nil
}

// Save implements canvas.Backend.
func (c *Client) Save(ctx context.Context, householdID string, s graph.Snapshot) (graph.IDMaps, error) {
	resp, err := c.Publish(ctx, householdID, c.variant, s)
	if err != nil {
		return graph.IDMaps{}, err
	}
	return resp.IDMaps, nil
}

// Graph fetches one variant's graph.
func (c *Client) Graph(ctx context.Context, householdID string, v store.Variant) (api.GraphResponse, error) {
	var out api.GraphResponse
	err := c.do(ctx, http.MethodGet, c.householdPath(householdID, "/graph")+"?variant="+url.QueryEscape(string(v)), nil, &out)
	return out, err
}

// Publish replaces one variant's graph.
func (c *Client) Publish(ctx context.Context, householdID string, v store.Variant, s graph.Snapshot) (api.PublishResponse, error) {
	var out api.PublishResponse
	err := c.do(ctx, http.MethodPut, c.householdPath(householdID, "/graph")+"?variant="+url.QueryEscape(string(v)), s, &out)
	return out, err
}

// SubmitChangeRequest writes s to the sandbox as a change request.
func (c *Client) SubmitChangeRequest(ctx context.Context, householdID string, s graph.Snapshot) (api.PublishResponse, error) {
	var out api.PublishResponse
	err := c.do(ctx, http.MethodPost, c.householdPath(householdID, "/change-requests"), s, &out)
	return out, err
}

// ResetSandbox copies live into the sandbox.
func (c *Client) ResetSandbox(ctx context.Context, householdID string) (workspace.Result, error) {
	var out workspace.Result
	err := c.do(ctx, http.MethodPost, c.householdPath(householdID, "/sandbox/reset"), nil, &out)
	return out, err
}

// ApplySandbox promotes the sandbox to live.
func (c *Client) ApplySandbox(ctx context.Context, householdID string) (workspace.Result, error) {
	var out workspace.Result
	err := c.do(ctx, http.MethodPost, c.householdPath(householdID, "/sandbox/apply"), nil, &out)
	return out, err
}

// AuditEvents returns the household's audit log.
func (c *Client) AuditEvents(ctx context.Context, householdID string) ([]store.AuditEvent, error) {
	var out api.AuditResponse
	if err := c.do(ctx, http.MethodGet, c.householdPath(householdID, "/audit"), nil, &out); err != nil {
		return nil, err
	}
	return out.Events, nil
}

// Diffs returns the sandbox's recorded change requests.
func (c *Client) Diffs(ctx context.Context, householdID string) ([]store.Diff, error) {
	var out api.DiffsResponse
	if err := c.do(ctx, http.MethodGet, c.householdPath(householdID, "/diffs"), nil, &out); err != nil {
		return nil, err
	}
	return out.Diffs, nil
}

// DeleteWorkspace deletes one variant. Live is always refused.
func (c *Client) DeleteWorkspace(ctx context.Context, householdID string, v store.Variant) error {
	return c.do(ctx, http.MethodDelete, c.householdPath(householdID, "/workspaces/"+url.PathEscape(string(v))), nil, nil)
}

// DeleteHousehold deletes both workspaces and returns how many were removed.
func (c *Client) DeleteHousehold(ctx context.Context, householdID string) (int, error) {
	var out struct {
		Deleted int `json:"deleted"`
	}
	if err := c.do(ctx, http.MethodDelete, c.householdPath(householdID, ""), nil, &out); err != nil {
		return 0, err
	}
	return out.Deleted, nil
}

func (c *Client) householdPath(householdID, suffix string) string {
	return c.baseURL + "/api/v1/households/" + url.PathEscape(householdID) + suffix
}

func (c *Client) do(ctx context.Context, method, target string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.actorID != "" {
		req.Header.Set(api.ActorHeader, c.actorID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	var body api.ErrorResponse
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err := json.Unmarshal(data, &body); err == nil && body.Error.Code != "" {
		apiErr.Code = body.Error.Code
		apiErr.Message = body.Error.Message
		return apiErr
	}
	apiErr.Code = http.StatusText(resp.StatusCode)
	apiErr.Message = strings.TrimSpace(string(data))
	return apiErr
}

// IsValidation reports whether err is a 422 rejection of the submitted
// graph.
func IsValidation(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnprocessableEntity
}
