// Package api is the HTTP client for the marketplace REST API.
//
// Every response passes through one place (call) that attaches the bearer
// token, decodes the {code,message,data} envelope and classifies failures.
// A 401 outside login/register ends the session: the store is cleared and
// a Revoked signal is published for whoever owns navigation.
package api

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
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"secondhand/internal/client/session"
	applog "secondhand/internal/log"
)

const (
	DefaultBaseURL = "http://localhost:8080/api"
	DefaultTimeout = 10 * time.Second

	maxBody = 10 << 20
)

type Config struct {
	BaseURL string
	Timeout time.Duration
	// RequestsPerSecond paces outgoing calls; 0 disables pacing.
	RequestsPerSecond float64
	Burst             int
}

// Notifier receives the messages meant for the user.
type Notifier interface {
	Error(msg string)
	Success(msg string)
}

type nopNotifier struct{}

func (nopNotifier) Error(string)   {}
func (nopNotifier) Success(string) {}

type Client struct {
	base    string
	http    *http.Client
	store   session.Store
	notify  Notifier
	log     logrus.FieldLogger
	limiter *rate.Limiter

	mu      sync.Mutex
	nextSub int
	revoked map[int]func(Revoked)
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

func WithNotifier(n Notifier) Option { return func(c *Client) { c.notify = n } }

// WithLogger sends failure entries to l instead of the shared logger.
func WithLogger(l logrus.FieldLogger) Option { return func(c *Client) { c.log = l } }

func New(cfg Config, store session.Store, opts ...Option) (*Client, error) {
	if store == nil {
		return nil, errors.New("api: session store is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	c := &Client{
		base:    strings.TrimRight(cfg.BaseURL, "/"),
		store:   store,
		notify:  nopNotifier{},
		revoked: map[int]func(Revoked){},
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	for _, o := range opts {
		o(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: cfg.Timeout}
	}
	if c.notify == nil {
		c.notify = nopNotifier{}
	}
	return c, nil
}

// Notifier returns the sink the client reports to.
func (c *Client) Notifier() Notifier { return c.notify }

// Store returns the session store the client reads its token from.
func (c *Client) Store() session.Store { return c.store }

// OnRevoked registers fn for every session revocation and returns its cancel func.
func (c *Client) OnRevoked(fn func(Revoked)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.revoked[id] = fn
	return func() {
		c.mu.Lock()
		delete(c.revoked, id)
		c.mu.Unlock()
	}
}

func (c *Client) publish(r Revoked) {
	c.mu.Lock()
	fns := make([]func(Revoked), 0, len(c.revoked))
	for _, fn := range c.revoked {
		fns = append(fns, fn)
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn(r)
	}
}

type callOpts struct {
	silent bool
}

type CallOption func(*callOpts)

// Silent suppresses user notifications for one call. Session revocation
// still happens.
func Silent() CallOption { return func(o *callOpts) { o.silent = true } }

func collect(opts []CallOption) callOpts {
	var o callOpts
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

type request struct {
	method string
	path   string
	query  url.Values
	body   any
	// raw, when set, is sent as is with contentType.
	raw         io.Reader
	contentType string
}

// call performs req and decodes the envelope's data into T.
func call[T any](ctx context.Context, c *Client, req request, opts []CallOption) (T, error) {
	var zero T
	o := collect(opts)

	httpReq, sent, err := c.build(ctx, req)
	if err != nil {
		return zero, c.failed(ctx, o, &Error{Kind: KindConfig, Message: MsgConfig, Path: req.path, Err: err})
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return zero, c.failed(ctx, o, &Error{Kind: KindTransport, Message: MsgNetwork, Path: req.path, Err: err})
		}
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return zero, c.failed(ctx, o, &Error{Kind: KindTransport, Message: MsgNetwork, Path: req.path, Err: err})
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return zero, c.failed(ctx, o, &Error{Kind: KindTransport, Status: resp.StatusCode, Message: MsgNetwork, Path: req.path, Err: err})
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		e := c.statusError(req.path, resp.StatusCode, body)
		e.sentToken = sent
		return zero, c.failed(ctx, o, e)
	}

	switch out := Decide[T](body).(type) {
	case Success[T]:
		return out.Data, nil
	case Failure:
		e := &Error{Kind: KindApplication, Status: resp.StatusCode, Path: req.path, ServerMessage: out.Message, Message: MsgFailed}
		if out.Code != undecodable {
			e.Code = out.Code
		}
		if out.Message != "" {
			e.Message = out.Message
		}
		return zero, c.failed(ctx, o, e)
	default:
		return zero, c.failed(ctx, o, &Error{Kind: KindApplication, Status: resp.StatusCode, Message: MsgFailed, Path: req.path})
	}
}

// build returns the request and the bearer token it carries.
func (c *Client) build(ctx context.Context, req request) (*http.Request, string, error) {
	u, err := url.Parse(c.base + req.path)
	if err != nil {
		return nil, "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if len(req.query) > 0 {
		u.RawQuery = req.query.Encode()
	}

	var body io.Reader
	contentType := ""
	switch {
	case req.raw != nil:
		body, contentType = req.raw, req.contentType
	case req.body != nil:
		b, err := json.Marshal(req.body)
		if err != nil {
			return nil, "", err
		}
		body, contentType = bytes.NewReader(b), "application/json"
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, u.String(), body)
	if err != nil {
		return nil, "", err
	}
	httpReq.Header.Set("Accept", "application/json")
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	tok, ok := c.store.Token()
	if ok {
		httpReq.Header.Set("Authorization", "Bearer "+tok)
	}
	return httpReq, tok, nil
}

// credentialPaths answer 401 for bad credentials, not for a dead session.
var credentialPaths = map[string]bool{
	"/auth/login":    true,
	"/auth/register": true,
}

func (c *Client) statusError(path string, status int, body []byte) *Error {
	e := &Error{Kind: KindStatus, Status: status, Path: path, ServerMessage: serverMessage(body)}
	if r := gjson.GetBytes(body, "code"); r.Type == gjson.Number {
		e.Code = int(r.Int())
	}
	switch status {
	case http.StatusUnauthorized:
		if credentialPaths[path] {
			e.Message = orFailed(e.ServerMessage)
			return e
		}
		e.Message = MsgSessionExpired
		e.revoked = true
	case http.StatusForbidden:
		e.Message = MsgForbidden
	case http.StatusNotFound:
		e.Message = MsgNotFound
	case http.StatusInternalServerError:
		e.Message = MsgServerError
	default:
		e.Message = orFailed(e.ServerMessage)
	}
	return e
}

func orFailed(msg string) string {
	if msg == "" {
		return MsgFailed
	}
	return msg
}

// failed runs the side effects of a failure and returns it. Revocation
// clears the session the request was sent with, even for silent calls.
// Notification is skipped for silent calls and for callers that have
// already gone away.
func (c *Client) failed(ctx context.Context, o callOpts, e *Error) *Error {
	c.logFail(e)
	if e.revoked {
		cleared, err := c.store.ClearIf(e.sentToken)
		if err != nil {
			applog.Fail("api.session.clear", err, map[string]any{"path": e.Path})
		}
		if !cleared && err == nil {
			// the session was replaced while the request was in flight
			e.revoked = false
			c.logEvent("api.session.stale", map[string]any{"path": e.Path})
			return e
		}
		c.logEvent("api.session.revoked", map[string]any{"path": e.Path})
		c.publish(Revoked{Path: e.Path, At: time.Now()})
	}
	if !o.silent && ctx.Err() == nil {
		c.notify.Error(e.Message)
	}
	return e
}

func (c *Client) logFail(e *Error) {
	const action = "api.request.fail"
	fields := map[string]any{"path": e.Path, "kind": e.Kind.String(), "status": e.Status}
	if e.Code != 0 {
		fields["code"] = e.Code
	}
	if c.log != nil {
		l := c.log.WithFields(logrus.Fields(fields))
		if e.Err != nil {
			l = l.WithError(e.Err)
		}
		l.Warn(action)
		return
	}
	var err error = e
	if e.Err != nil {
		err = e.Err
	}
	applog.Fail(action, err, fields)
}

func (c *Client) logEvent(action string, fields map[string]any) {
	if c.log != nil {
		c.log.WithFields(logrus.Fields(fields)).Info(action)
		return
	}
	applog.Event(action, fields)
}
