package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/alfredjeanlab/drip/internal/model"
)

// HTTPClient implements DripClient using the drip HTTP/JSON REST API.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:8080"). When token is non-empty, an Authorization
// header is set on every request.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

// --- Streams ---

func (c *HTTPClient) OpenStream(ctx context.Context, req *OpenStreamRequest) (*model.Stream, error) {
	var stream model.Stream
	if err := c.doJSON(ctx, http.MethodPost, "/v1/streams", req, &stream); err != nil {
		return nil, err
	}
	return &stream, nil
}

func (c *HTTPClient) GetStream(ctx context.Context, id int64) (*StreamView, error) {
	var view StreamView
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/v1/streams/%d", id), nil, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func (c *HTTPClient) StopStream(ctx context.Context, id int64, caller string) (*StopResult, error) {
	body := map[string]string{"caller": caller}
	var result StopResult
	if err := c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/v1/streams/%d/stop", id), body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *HTTPClient) Withdraw(ctx context.Context, id int64, caller string) (*WithdrawResult, error) {
	body := map[string]string{"caller": caller}
	var result WithdrawResult
	if err := c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/v1/streams/%d/withdraw", id), body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *HTTPClient) StreamBalance(ctx context.Context, id int64) (*StreamBalance, error) {
	var balance StreamBalance
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/v1/streams/%d/balance", id), nil, &balance); err != nil {
		return nil, err
	}
	return &balance, nil
}

func (c *HTTPClient) StreamEvents(ctx context.Context, id int64) ([]*model.Event, error) {
	var resp struct {
		Events []*model.Event `json:"events"`
	}
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/v1/streams/%d/events", id), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

// --- Messages ---

func (c *HTTPClient) AttachMessage(ctx context.Context, streamID int64, req *AttachMessageRequest) (*model.Message, error) {
	var msg model.Message
	if err := c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/v1/streams/%d/messages", streamID), req, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *HTTPClient) GetMessage(ctx context.Context, id int64) (*model.Message, error) {
	var msg model.Message
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/v1/messages/%d", id), nil, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// --- Accounts ---

func (c *HTTPClient) CreateAccount(ctx context.Context, id string) (*model.Account, error) {
	body := map[string]string{"id": id}
	var account model.Account
	if err := c.doJSON(ctx, http.MethodPost, "/v1/accounts", body, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

func (c *HTTPClient) GetAccount(ctx context.Context, id string) (*AccountView, error) {
	var view AccountView
	if err := c.doJSON(ctx, http.MethodGet, "/v1/accounts/"+url.PathEscape(id), nil, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func (c *HTTPClient) CreditAccount(ctx context.Context, id string, amount int64) (*model.Account, error) {
	body := map[string]int64{"amount": amount}
	var account model.Account
	if err := c.doJSON(ctx, http.MethodPost, "/v1/accounts/"+url.PathEscape(id)+"/credit", body, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

func (c *HTTPClient) FreezeAccount(ctx context.Context, id string) (*model.Account, error) {
	var account model.Account
	if err := c.doJSON(ctx, http.MethodPost, "/v1/accounts/"+url.PathEscape(id)+"/freeze", nil, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

func (c *HTTPClient) UnfreezeAccount(ctx context.Context, id string) (*model.Account, error) {
	var account model.Account
	if err := c.doJSON(ctx, http.MethodPost, "/v1/accounts/"+url.PathEscape(id)+"/unfreeze", nil, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

func (c *HTTPClient) AccountStreams(ctx context.Context, id, role string) ([]int64, error) {
	path := "/v1/accounts/" + url.PathEscape(id) + "/streams"
	if role != "" {
		path += "?role=" + url.QueryEscape(role)
	}
	var resp struct {
		StreamIDs []int64 `json:"stream_ids"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.StreamIDs, nil
}

func (c *HTTPClient) AccountMessages(ctx context.Context, id string) ([]int64, error) {
	var resp struct {
		MessageIDs []int64 `json:"message_ids"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/accounts/"+url.PathEscape(id)+"/messages", nil, &resp); err != nil {
		return nil, err
	}
	return resp.MessageIDs, nil
}

// --- Health ---

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// --- internal helpers ---

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// doJSON performs an HTTP request with optional JSON body and decodes the JSON response.
// If result is nil, the response body is discarded.
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	// 204 No Content — success with no body.
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}
