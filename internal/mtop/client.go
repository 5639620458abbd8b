// Package mtop implements the signed-request protocol spoken by the primary
// ticketing vendor's mobile gateway: md5-signed query strings, jsonp-wrapped
// bodies, and a session token that the server may silently rotate on any
// response via Set-Cookie.
package mtop

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Leejhua/concert-calendar/internal/util"
)

const (
	tokenCookie    = "_m_h5_tk"
	tokenEncCookie = "_m_h5_tk_enc"

	// Bounded retry budget for token-expired/token-empty responses. The
	// failing response rotates the token, so the re-issued request signs
	// with fresh credentials.
	maxTokenRetries = 3
)

// ErrNoToken is returned by Handshake when the bootstrap call did not yield
// a session token. This is a fatal configuration problem, not a transient
// failure.
var ErrNoToken = errors.New("mtop: handshake returned no token")

// Session holds the rotating credentials for one sync run. It is mutated in
// place by every response that carries a refreshed token and is never
// persisted or shared across concurrent runs.
type Session struct {
	AppKey        string
	TokenWithTime string // full _m_h5_tk value, format "token_timestamp"
	Cookie        string
	Referer       string
}

// Token returns the signing portion of the stored token (before the first
// underscore), or "" when no token is held.
func (s *Session) Token() string {
	if s.TokenWithTime == "" {
		return ""
	}
	return strings.SplitN(s.TokenWithTime, "_", 2)[0]
}

func (s *Session) HasToken() bool { return s.TokenWithTime != "" }

// Options configures a Client. BaseURL exists so tests can point the client
// at a local server.
type Options struct {
	BaseURL   string // default https://mtop.damai.cn
	UserAgent string
	Timeout   time.Duration
}

// ReqOpts carries per-API protocol overrides.
type ReqOpts struct {
	Callback string // jsonp callback name, ignored when JSON is set
	Version  string // protocol version, default "1.2"
	JSON     bool   // request plain JSON instead of jsonp (listings endpoint)
}

// Response is the common mtop envelope.
type Response struct {
	API  string          `json:"api"`
	V    string          `json:"v"`
	Ret  []string        `json:"ret"`
	Data json.RawMessage `json:"data"`
}

// RetCode returns the first ret entry, e.g. "SUCCESS::调用成功".
func (r *Response) RetCode() string {
	if len(r.Ret) == 0 {
		return ""
	}
	return r.Ret[0]
}

func (r *Response) Success() bool {
	return strings.HasPrefix(r.RetCode(), "SUCCESS")
}

func (r *Response) tokenInvalid() bool {
	code := r.RetCode()
	return strings.HasPrefix(code, "FAIL_SYS_TOKEN_EXPIRED") ||
		strings.HasPrefix(code, "FAIL_SYS_TOKEN_EMPTY")
}

type Client struct {
	base      string
	userAgent string
	http      *http.Client
	sess      *Session

	now func() time.Time // stubbed in tests
}

func NewClient(opts Options, sess *Session) *Client {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = "https://mtop.damai.cn"
	}
	to := opts.Timeout
	if to == 0 {
		to = 15 * time.Second
	}
	return &Client{
		base:      base,
		userAgent: opts.UserAgent,
		http:      util.NewHTTPClient(to),
		sess:      sess,
		now:       time.Now,
	}
}

// Session returns the credential state the client mutates.
func (c *Client) Session() *Session { return c.sess }

// Sign derives the request signature over token, timestamp, app key and the
// serialized payload. md5 is mandated by the upstream wire protocol.
func Sign(token string, t int64, appKey, data string) string {
	sum := md5.Sum([]byte(token + "&" + strconv.FormatInt(t, 10) + "&" + appKey + "&" + data))
	return hex.EncodeToString(sum[:])
}

// Request performs one logical signed API call. Token-expired and
// token-empty responses are retried up to maxTokenRetries times, re-signing
// with the token rotated by the failed response; the error surfaces only
// after the budget is exhausted.
func (c *Client) Request(ctx context.Context, api string, payload any, opts ReqOpts) (*Response, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("mtop %s: marshal payload: %w", api, err)
	}
	var lastCode string
	for attempt := 0; attempt <= maxTokenRetries; attempt++ {
		resp, err := c.do(ctx, api, string(data), opts)
		if err != nil {
			return nil, err
		}
		if resp.tokenInvalid() {
			lastCode = resp.RetCode()
			continue
		}
		return resp, nil
	}
	return nil, fmt.Errorf("mtop %s: token invalid after %d retries: %s", api, maxTokenRetries, lastCode)
}

// Handshake performs the unauthenticated bootstrap call whose only purpose
// is to trigger a token-issuing response. The request is signed with an
// empty token and its body is expected to be a token-empty failure.
func (c *Client) Handshake(ctx context.Context, api string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("mtop handshake: marshal payload: %w", err)
	}
	c.sess.TokenWithTime = ""
	if _, err := c.do(ctx, api, string(data), ReqOpts{}); err != nil {
		return fmt.Errorf("mtop handshake: %w", err)
	}
	if !c.sess.HasToken() {
		return ErrNoToken
	}
	return nil
}

func (c *Client) do(ctx context.Context, api, data string, opts ReqOpts) (*Response, error) {
	t := c.now().UnixMilli()
	version := opts.Version
	if version == "" {
		version = "1.2"
	}

	params := url.Values{}
	params.Set("jsv", "2.7.5")
	params.Set("appKey", c.sess.AppKey)
	params.Set("t", strconv.FormatInt(t, 10))
	params.Set("sign", Sign(c.sess.Token(), t, c.sess.AppKey, data))
	params.Set("api", api)
	params.Set("v", version)
	params.Set("H5Request", "true")
	params.Set("timeout", "10000")
	params.Set("forceAntiCreep", "true")
	params.Set("AntiCreep", "true")
	params.Set("data", data)
	if opts.JSON {
		params.Set("type", "json")
		params.Set("dataType", "json")
	} else {
		params.Set("type", "jsonp")
		params.Set("dataType", "jsonp")
		if opts.Callback != "" {
			params.Set("callback", opts.Callback)
		}
	}

	reqURL := c.base + "/h5/" + api + "/" + version + "/?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9")
	if c.sess.Cookie != "" {
		req.Header.Set("Cookie", c.sess.Cookie)
	}
	if c.sess.Referer != "" {
		req.Header.Set("Referer", c.sess.Referer)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mtop %s: %w", api, err)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("mtop %s: read body: %w", api, err)
	}

	// Token rotation happens before the body is even looked at: any
	// response may carry a refreshed token.
	c.rotateToken(resp.Header.Values("Set-Cookie"))

	var parsed Response
	if err := json.Unmarshal(unwrapJSONP(body), &parsed); err != nil {
		return nil, fmt.Errorf("mtop %s: parse response: %w", api, err)
	}
	return &parsed, nil
}

func (c *Client) rotateToken(setCookies []string) {
	for _, sc := range setCookies {
		for _, part := range strings.Split(sc, ";") {
			part = strings.TrimSpace(part)
			if v, ok := strings.CutPrefix(part, tokenCookie+"="); ok {
				c.sess.TokenWithTime = v
				c.sess.Cookie = setCookieValue(c.sess.Cookie, tokenCookie, v)
			}
			if v, ok := strings.CutPrefix(part, tokenEncCookie+"="); ok {
				c.sess.Cookie = setCookieValue(c.sess.Cookie, tokenEncCookie, v)
			}
		}
	}
}

// unwrapJSONP strips a callbackName(...) wrapper by locating the outermost
// parentheses. Plain JSON bodies pass through untouched.
func unwrapJSONP(body []byte) []byte {
	s := strings.TrimSpace(string(body))
	if strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[") {
		return []byte(s)
	}
	open := strings.Index(s, "(")
	end := strings.LastIndex(s, ")")
	if open >= 0 && end > open {
		return []byte(s[open+1 : end])
	}
	return []byte(s)
}

// setCookieValue replaces (or appends) one name=value pair inside a raw
// Cookie header string.
func setCookieValue(cookie, name, value string) string {
	if cookie == "" {
		return name + "=" + value
	}
	parts := strings.Split(cookie, ";")
	for i, p := range parts {
		if strings.HasPrefix(strings.TrimSpace(p), name+"=") {
			parts[i] = " " + name + "=" + value
			out := strings.Join(parts, ";")
			return strings.TrimSpace(out)
		}
	}
	return cookie + "; " + name + "=" + value
}
