/*
Copyright 2024 Gravitational, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package api

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/gravitational/trace"
	jsoniter "github.com/json-iterator/go"
	"github.com/sethvargo/go-limiter"
	"github.com/sethvargo/go-limiter/memorystore"
	"golang.org/x/sync/singleflight"

	"github.com/gravitational/session-client/lib/logger"
)

const (
	// DefaultTimeout is the per-request timeout used when none is configured.
	DefaultTimeout = 10 * time.Second
	// DefaultMaxConns is the default connection limit per API host.
	DefaultMaxConns = 10

	requestIDHeader = "X-Request-Id"
)

type anonymousKey struct{}

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Config configures the API client.
type Config struct {
	// URL is the base URL of the API.
	URL string `toml:"url"`
	// Timeout bounds every request.
	Timeout time.Duration `toml:"timeout"`
	// MaxConns limits connections per host.
	MaxConns int `toml:"max-conns"`
	// RateLimit is the number of requests per RateInterval allowed for a
	// single endpoint. Zero disables client-side throttling.
	RateLimit uint64 `toml:"rate-limit"`
	// RateInterval is the throttling window.
	RateInterval time.Duration `toml:"rate-interval"`
}

// CheckAndSetDefaults validates the config and fills in defaults.
func (c *Config) CheckAndSetDefaults() error {
	if c.URL == "" {
		return trace.BadParameter("missing required value url")
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return trace.BadParameter("invalid url %q: %v", c.URL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return trace.BadParameter("url %q must use http or https", c.URL)
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxConns <= 0 {
		c.MaxConns = DefaultMaxConns
	}
	if c.RateLimit > 0 && c.RateInterval <= 0 {
		c.RateInterval = time.Second
	}
	return nil
}

// Client is a wrapper around resty.Client that carries the session
// credential and reports rejected credentials to Hooks.
type Client struct {
	client  *resty.Client
	auth    *AuthorizationState
	hooks   *Hooks
	limiter limiter.Store
	refresh singleflight.Group
}

// NewClient builds an API client.
func NewClient(conf Config, auth *AuthorizationState, hooks *Hooks) (*Client, error) {
	if err := conf.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	if auth == nil {
		return nil, trace.BadParameter("missing authorization state")
	}
	if hooks == nil {
		return nil, trace.BadParameter("missing hooks")
	}

	c := &Client{auth: auth, hooks: hooks}

	if conf.RateLimit > 0 {
		store, err := memorystore.New(&memorystore.Config{
			Tokens:   conf.RateLimit,
			Interval: conf.RateInterval,
		})
		if err != nil {
			return nil, trace.Wrap(err)
		}
		c.limiter = store
	}

	client := resty.NewWithClient(&http.Client{
		Timeout: conf.Timeout,
		Transport: &http.Transport{
			MaxConnsPerHost:     conf.MaxConns,
			MaxIdleConnsPerHost: conf.MaxConns,
		},
	})
	client.SetBaseURL(conf.URL)
	client.SetHeader("Accept", "application/json")
	client.SetHeader("Content-Type", "application/json")
	client.SetLogger(restyLogger{})
	client.JSONMarshal = json.Marshal
	client.JSONUnmarshal = json.Unmarshal
	client.OnBeforeRequest(c.onBeforeRequest)
	client.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		if resp.IsError() {
			return newError(resp.StatusCode(), resp.Body())
		}
		return nil
	})
	c.client = client

	return c, nil
}

func (c *Client) onBeforeRequest(_ *resty.Client, req *resty.Request) error {
	ctx := req.Context()

	if c.limiter != nil {
		_, _, _, ok, err := c.limiter.Take(ctx, req.Method+" "+req.URL)
		if err != nil {
			return trace.Wrap(err)
		}
		if !ok {
			return trace.LimitExceeded("too many requests to %s %s", req.Method, req.URL)
		}
	}

	requestID := uuid.NewString()
	req.SetHeader(requestIDHeader, requestID)

	// Anonymous requests never carry the session credential.
	if anonymous, _ := ctx.Value(anonymousKey{}).(bool); !anonymous {
		if token := c.auth.Get(); token != "" {
			req.SetAuthToken(token)
		}
	}

	logger.Get(ctx).WithField("request_id", requestID).Debugf("%s %s", req.Method, req.URL)
	return nil
}

type request struct {
	method    string
	path      string
	body      interface{}
	result    interface{}
	anonymous bool
}

// do executes req. A request rejected with an expired or invalid token is
// retried once after a successful refresh.
func (c *Client) do(ctx context.Context, req request) error {
	retried := false
	for {
		sent, err := c.execute(ctx, req)
		if err == nil {
			return nil
		}
		apiErr, ok := AsError(err)
		if !ok || apiErr.StatusCode != http.StatusUnauthorized || req.anonymous || sent == "" {
			return trace.Wrap(err)
		}
		if retried || !c.handleRejection(ctx, apiErr, sent) {
			if retried {
				c.hooks.Invalidate()
			}
			return trace.Wrap(err)
		}
		retried = true
	}
}

// execute sends a single request and returns the access token it carried.
func (c *Client) execute(ctx context.Context, req request) (string, error) {
	if req.anonymous {
		ctx = context.WithValue(ctx, anonymousKey{}, true)
	}
	r := c.client.R().SetContext(ctx)
	if req.body != nil {
		r.SetBody(req.body)
	}
	if req.result != nil {
		r.SetResult(req.result)
	}
	resp, err := r.Execute(req.method, req.path)
	sent := ""
	if resp != nil && resp.Request != nil {
		sent = resp.Request.Token
	}
	if err != nil {
		return sent, trace.Wrap(err)
	}
	return sent, nil
}

// restyLogger routes resty's own diagnostics to debug level: failed
// requests are already reported to the caller.
type restyLogger struct{}

func (restyLogger) Errorf(format string, v ...interface{}) {
	logger.Standard().Debugf(format, v...)
}

func (restyLogger) Warnf(format string, v ...interface{}) {
	logger.Standard().Debugf(format, v...)
}

func (restyLogger) Debugf(format string, v ...interface{}) {
	logger.Standard().Debugf(format, v...)
}
