package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-ghapp/core"
	"github.com/goliatone/go-ghapp/transport"
)

type ClientConfig struct {
	BaseURL        string
	HTTPClient     transport.HTTPDoer
	Authorizer     transport.Authorizer
	Timeout        time.Duration
	Logger         core.Logger
	LoggerProvider core.LoggerProvider
}

// Client performs authenticated REST calls. The authorization mode is fixed
// when the client is built.
type Client struct {
	baseURL string
	rest    *transport.RESTAdapter
	timeout time.Duration
	logger  core.Logger
}

func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Authorizer == nil {
		return nil, core.NewError(core.KindBadInput, "github: client requires an authorizer", nil)
	}
	timeout := resolveTimeout(cfg.Timeout)
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = transport.NewHTTPClient(timeout)
	}
	rest := transport.NewRESTAdapter(httpClient)
	rest.Authorizer = cfg.Authorizer
	rest.FailureKind = core.KindAPICall
	rest.DefaultHeaders["Accept"] = AcceptREST
	rest.DefaultHeaders["Content-Type"] = ContentJSON

	_, logger := glog.Resolve("ghapp.github", cfg.LoggerProvider, cfg.Logger)
	return &Client{
		baseURL: resolveBaseURL(cfg.BaseURL),
		rest:    rest,
		timeout: timeout,
		logger:  logger,
	}, nil
}

func (c *Client) AuthMode() string {
	return c.rest.Authorizer.Mode()
}

// Call sends body as JSON to path and returns the decoded JSON answer, nil
// for an empty body.
func (c *Client) Call(ctx context.Context, path string, method string, body any) (any, error) {
	var out any
	if err := c.CallInto(ctx, path, method, body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CallInto is Call decoding the answer into out.
func (c *Client) CallInto(ctx context.Context, path string, method string, body any, out any) error {
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = http.MethodGet
	}
	endpoint := transport.JoinURL(c.baseURL, path)
	metadata := map[string]any{"method": method, "url": endpoint}

	var payload []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return core.WrapError(err, core.KindBadInput, "github: encode request body", metadata)
		}
		payload = encoded
		metadata["request_body"] = string(encoded)
	}

	c.logger.Info(fmt.Sprintf("making %s request to %s", method, endpoint),
		"method", method,
		"url", endpoint,
		"auth_mode", c.AuthMode(),
	)

	res, err := c.rest.Do(ctx, transport.Request{
		Method:  method,
		URL:     endpoint,
		Body:    payload,
		Timeout: c.timeout,
	})
	if err != nil {
		return core.WrapContext(err, fmt.Sprintf("github: %s %s", method, endpoint), metadata)
	}
	if !res.IsSuccess() {
		metadata["status_code"] = res.StatusCode
		metadata["response_body"] = truncateBody(res.Body, 4096)
		return core.NewError(
			core.KindAPICall,
			fmt.Sprintf("github: error making %s request to %s: status %d", method, endpoint, res.StatusCode),
			metadata,
		)
	}
	if out == nil || len(bytes.TrimSpace(res.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(res.Body, out); err != nil {
		metadata["status_code"] = res.StatusCode
		metadata["response_body"] = truncateBody(res.Body, 4096)
		return core.WrapError(err, core.KindAPICall, "github: decode response body", metadata)
	}
	return nil
}
