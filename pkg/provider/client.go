package provider

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

	"github.com/grubsquad/grubsquad-backend/pkg/config"
	pkgerrors "github.com/grubsquad/grubsquad-backend/pkg/errors"
	"github.com/grubsquad/grubsquad-backend/pkg/logger"
)

var (
	errBaseURLRequired = errors.New("provider proxy base url is required")
	errLoggerRequired  = errors.New("provider logger is required")
)

// Request is the single proxy boundary payload: everything an outbound
// provider call needs, nothing provider-specific.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Body    any
	Headers map[string]string
	Timeout time.Duration
}

// Client proxies commerce-provider calls through a partner gateway.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	timeout    time.Duration
	logger     *logger.Logger
}

// NewClient validates the proxy configuration and builds a client.
func NewClient(cfg config.ProviderConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errBaseURLRequired
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		timeout:    timeout,
		logger:     logg,
	}, nil
}

// proxyError is the structured error shape the gateway returns. A response
// without one is treated as success regardless of payload shape.
type proxyError struct {
	Error *struct {
		Message string `json:"message"`
		Code    string `json:"code,omitempty"`
	} `json:"error"`
}

// Do executes one proxied call and returns the raw result payload. Errors
// carry a domain code derived from the HTTP status and any structured error
// body.
func (c *Client) Do(ctx context.Context, req Request) (json.RawMessage, error) {
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}

	endpoint := c.baseURL + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		endpoint += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "provider request encode failed")
		}
		body = bytes.NewReader(payload)
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(callCtx, method, endpoint, body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "provider request build failed")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	ctx = c.logger.WithFields(ctx, map[string]any{
		"provider_method": method,
		"provider_path":   req.Path,
	})
	c.logger.Info(ctx, "provider request")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Error(ctx, "provider request failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "provider call failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		c.logger.Error(ctx, "provider response read failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "provider response read failed")
	}

	if err := errorFrom(resp.StatusCode, raw); err != nil {
		c.logger.Error(ctx, "provider returned error", err)
		return nil, err
	}
	return raw, nil
}

// errorFrom maps a proxy response to a domain error. Absence of a
// structured error body on a 2xx is success.
func errorFrom(status int, raw []byte) error {
	var structured proxyError
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &structured)
	}

	if status < 400 {
		if structured.Error == nil {
			return nil
		}
		return pkgerrors.New(pkgerrors.CodeDependency, providerMessage(structured))
	}

	code := domainCodeForStatus(status)
	if structured.Error != nil {
		return pkgerrors.New(code, providerMessage(structured))
	}
	return pkgerrors.New(code, fmt.Sprintf("provider call failed with status %d", status))
}

func providerMessage(structured proxyError) string {
	msg := strings.TrimSpace(structured.Error.Message)
	if msg == "" {
		msg = "provider call failed"
	}
	if code := strings.TrimSpace(structured.Error.Code); code != "" {
		return fmt.Sprintf("%s (%s)", msg, code)
	}
	return msg
}

func domainCodeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return pkgerrors.CodeForbidden
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusConflict:
		return pkgerrors.CodeConflict
	case http.StatusUnprocessableEntity:
		return pkgerrors.CodeStateConflict
	default:
		if status >= 400 && status < 500 {
			return pkgerrors.CodeValidation
		}
		return pkgerrors.CodeDependency
	}
}
