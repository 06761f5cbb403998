package libraryclient

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hondana-app/hondana/pkg/eligibility"
	"github.com/hondana-app/hondana/pkg/errcodes"
	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
)

// Config configures a Client.
type Config struct {
	// BaseURL is the backend's root URL, without a trailing slash.
	BaseURL string
	// Token is the bearer token for authenticated calls. Login does not
	// need one.
	Token string
	// HTTPClient overrides the transport; a default with a sane timeout is
	// used when nil.
	HTTPClient *http.Client
}

// Client is the typed HTTP client for the library backend's borrowing API.
// Transport failures come back wrapped; non-2xx responses come back as the
// backend's structured error (*errcodes.Error), so business failures survive
// the round trip and can be shown to the patron as-is.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		http:    httpClient,
	}
}

// SetToken replaces the bearer token, e.g. after a fresh login.
func (c *Client) SetToken(token string) {
	c.token = token
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// Login exchanges credentials for a bearer token. The token is not stored on
// the client automatically; call SetToken or put it in the config file.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var resp loginResponse
	err := c.post(ctx, "/auth/login", false, loginRequest{Username: username, Password: password}, &resp)
	if err != nil {
		return "", errors.WithStack(err)
	}
	return resp.Token, nil
}

type eligibilityRequest struct {
	LibraryItemIDs []eligibility.ItemID `json:"libraryItemIds"`
}

// CheckEligibility asks the backend to classify each candidate into one of
// the five eligibility buckets.
func (c *Client) CheckEligibility(ctx context.Context, ids []eligibility.ItemID) (*eligibility.Snapshot, error) {
	if err := c.checkToken(); err != nil {
		return nil, errors.WithStack(err)
	}

	snapshot := &eligibility.Snapshot{}
	err := c.post(ctx, "/borrows/eligibility", true, eligibilityRequest{LibraryItemIDs: ids}, snapshot)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return snapshot, nil
}

type borrowResponse struct {
	Message string `json:"message"`
}

// SubmitBorrow creates the borrow transaction and returns the backend's
// confirmation message.
func (c *Client) SubmitBorrow(ctx context.Context, req eligibility.BorrowRequest) (string, error) {
	if err := c.checkToken(); err != nil {
		return "", errors.WithStack(err)
	}

	var resp borrowResponse
	err := c.post(ctx, "/borrows", true, req, &resp)
	if err != nil {
		return "", errors.WithStack(err)
	}
	return resp.Message, nil
}

// checkToken fails fast on a missing or expired token so an obviously
// unauthorized call never leaves the client. The signature is the server's
// to verify; only the expiry claim is inspected here.
func (c *Client) checkToken() error {
	if c.token == "" {
		return errcodes.Unauthorized("You need to log in first.")
	}

	claims := jwt.RegisteredClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(c.token, &claims)
	if err != nil {
		return errcodes.Unauthorized("Your session token is malformed. Log in again.")
	}
	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
		return errcodes.Unauthorized("Your session has expired. Log in again.")
	}

	return nil
}

type errorEnvelope struct {
	Error struct {
		Code       string `json:"code"`
		Message    string `json:"message"`
		StatusCode int    `json:"status_code"`
	} `json:"error"`
}

func (c *Client) post(ctx context.Context, path string, authed bool, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.WithStack(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return errors.WithStack(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "library backend request failed")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.WithStack(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		envelope := errorEnvelope{}
		if err := json.Unmarshal(data, &envelope); err == nil && envelope.Error.Message != "" {
			return &errcodes.Error{
				HTTPCode: resp.StatusCode,
				Message:  envelope.Error.Message,
				Code:     envelope.Error.Code,
			}
		}
		return errors.Errorf("library backend returned status %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrap(err, "failed to decode library backend response")
	}
	return nil
}
