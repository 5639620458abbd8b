package mtop

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSign(t *testing.T) {
	got := Sign("abc", 1700000000000, "12574478", "{}")
	want := "45762c9dfdec3201811682ed052e9254"
	if got != want {
		t.Errorf("Sign = %s, want %s", got, want)
	}
	// Empty token (handshake mode) still produces a valid signature.
	got = Sign("", 1700000000000, "12574478", `{"platform":"8"}`)
	want = "1dc48d15d55ddee498f49b5470899a0b"
	if got != want {
		t.Errorf("Sign with empty token = %s, want %s", got, want)
	}
}

func TestSessionToken(t *testing.T) {
	s := &Session{TokenWithTime: "deadbeef_1700000000000"}
	if got := s.Token(); got != "deadbeef" {
		t.Errorf("Token = %q, want deadbeef", got)
	}
	s.TokenWithTime = ""
	if s.Token() != "" || s.HasToken() {
		t.Error("empty session must report no token")
	}
}

func TestUnwrapJSONP(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"jsonp", `mtopjsonp4({"ret":["SUCCESS::ok"]})`, `{"ret":["SUCCESS::ok"]}`},
		{"plain object", `{"ret":["SUCCESS::ok"]}`, `{"ret":["SUCCESS::ok"]}`},
		{"plain array", `[1,2]`, `[1,2]`},
		{"nested parens in body", `cb({"msg":"a(b)c"})`, `{"msg":"a(b)c"}`},
		{"leading whitespace", "\n  cb({})", `{}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := string(unwrapJSONP([]byte(tc.in))); got != tc.want {
				t.Errorf("unwrapJSONP(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestSetCookieValue(t *testing.T) {
	cases := []struct {
		name   string
		cookie string
		want   string
	}{
		{"empty", "", "_m_h5_tk=new"},
		{"append", "a=1; b=2", "a=1; b=2; _m_h5_tk=new"},
		{"replace", "a=1; _m_h5_tk=old; b=2", "a=1; _m_h5_tk=new; b=2"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := setCookieValue(tc.cookie, "_m_h5_tk", "new"); got != tc.want {
				t.Errorf("setCookieValue = %q, want %q", got, tc.want)
			}
		})
	}
}

func newTestClient(t *testing.T, handler http.Handler, sess *Session) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient(Options{BaseURL: srv.URL, Timeout: 5 * time.Second}, sess)
	return c, srv
}

func TestRequestRotatesToken(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "_m_h5_tk", Value: "fresh_1700000000001", Path: "/"})
		http.SetCookie(w, &http.Cookie{Name: "_m_h5_tk_enc", Value: "enc2", Path: "/"})
		fmt.Fprint(w, `{"api":"x","ret":["SUCCESS::ok"],"data":{}}`)
	})
	sess := &Session{AppKey: "12574478", TokenWithTime: "stale_1700000000000", Cookie: "_m_h5_tk=stale_1700000000000; _m_h5_tk_enc=enc1"}
	c, _ := newTestClient(t, h, sess)

	resp, err := c.Request(context.Background(), "mtop.test.api", map[string]string{}, ReqOpts{})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if !resp.Success() {
		t.Errorf("Success = false, ret %v", resp.Ret)
	}
	if sess.TokenWithTime != "fresh_1700000000001" {
		t.Errorf("token not rotated: %q", sess.TokenWithTime)
	}
	if !strings.Contains(sess.Cookie, "_m_h5_tk=fresh_1700000000001") {
		t.Errorf("cookie not updated: %q", sess.Cookie)
	}
	if !strings.Contains(sess.Cookie, "_m_h5_tk_enc=enc2") {
		t.Errorf("enc cookie not updated: %q", sess.Cookie)
	}
}

func TestRequestRetriesOnExpiredTokenThenSucceeds(t *testing.T) {
	calls := 0
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.SetCookie(w, &http.Cookie{Name: "_m_h5_tk", Value: "rotated_2", Path: "/"})
			fmt.Fprint(w, `{"ret":["FAIL_SYS_TOKEN_EXPIRED::令牌过期"]}`)
			return
		}
		// The retry must sign with the rotated token.
		if got := r.URL.Query().Get("sign"); got != Sign("rotated", mustT(r), "k", "{}") {
			t.Errorf("retry signed with wrong token")
		}
		fmt.Fprint(w, `{"ret":["SUCCESS::ok"],"data":{}}`)
	})
	sess := &Session{AppKey: "k", TokenWithTime: "stale_1"}
	c, _ := newTestClient(t, h, sess)

	if _, err := c.Request(context.Background(), "mtop.test.api", map[string]string{}, ReqOpts{}); err != nil {
		t.Fatalf("Request: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func mustT(r *http.Request) int64 {
	var t int64
	fmt.Sscan(r.URL.Query().Get("t"), &t)
	return t
}

func TestRequestGivesUpAfterRetryBudget(t *testing.T) {
	calls := 0
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, `{"ret":["FAIL_SYS_TOKEN_EMPTY::令牌为空"]}`)
	})
	c, _ := newTestClient(t, h, &Session{AppKey: "k"})

	_, err := c.Request(context.Background(), "mtop.test.api", map[string]string{}, ReqOpts{})
	if err == nil {
		t.Fatal("want error after exhausted retries")
	}
	if !strings.Contains(err.Error(), "FAIL_SYS_TOKEN_EMPTY") {
		t.Errorf("error should carry the last ret code: %v", err)
	}
	if calls != maxTokenRetries+1 {
		t.Errorf("calls = %d, want %d", calls, maxTokenRetries+1)
	}
}

func TestRequestParams(t *testing.T) {
	var q map[string][]string
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q = r.URL.Query()
		fmt.Fprint(w, `{"ret":["SUCCESS::ok"]}`)
	})
	c, _ := newTestClient(t, h, &Session{AppKey: "12574478", TokenWithTime: "tok_1"})

	_, err := c.Request(context.Background(), "mtop.damai.mec.aristotle.get",
		map[string]string{"platform": "8"}, ReqOpts{Version: "3.0", JSON: true})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	want := map[string]string{
		"api":      "mtop.damai.mec.aristotle.get",
		"v":        "3.0",
		"type":     "json",
		"dataType": "json",
		"appKey":   "12574478",
		"data":     `{"platform":"8"}`,
	}
	for k, v := range want {
		if len(q[k]) == 0 || q[k][0] != v {
			t.Errorf("param %s = %v, want %q", k, q[k], v)
		}
	}
	if len(q["callback"]) != 0 {
		t.Error("JSON mode must not send a jsonp callback")
	}
}

func TestHandshake(t *testing.T) {
	t.Run("acquires token", func(t *testing.T) {
		h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if sign := r.URL.Query().Get("sign"); sign != Sign("", mustT(r), "k", `{"platform":"8"}`) {
				t.Errorf("handshake must sign with empty token")
			}
			http.SetCookie(w, &http.Cookie{Name: "_m_h5_tk", Value: "issued_1700000000002", Path: "/"})
			fmt.Fprint(w, `{"ret":["FAIL_SYS_TOKEN_EMPTY::令牌为空"]}`)
		})
		sess := &Session{AppKey: "k", TokenWithTime: "leftover_0"}
		c, _ := newTestClient(t, h, sess)
		if err := c.Handshake(context.Background(), "mtop.test.api", map[string]string{"platform": "8"}); err != nil {
			t.Fatalf("Handshake: %v", err)
		}
		if sess.TokenWithTime != "issued_1700000000002" {
			t.Errorf("token = %q", sess.TokenWithTime)
		}
	})

	t.Run("no token issued", func(t *testing.T) {
		h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"ret":["FAIL_SYS_TOKEN_EMPTY::令牌为空"]}`)
		})
		c, _ := newTestClient(t, h, &Session{AppKey: "k"})
		if err := c.Handshake(context.Background(), "mtop.test.api", map[string]string{}); err == nil {
			t.Fatal("want ErrNoToken")
		}
	})
}
