package syncer

import (
	"errors"
	"regexp"
)

var (
	cookieFlagRe   = regexp.MustCompile(`(?:-b|--cookie)\s+['"]([^'"]+)['"]`)
	cookieHeaderRe = regexp.MustCompile(`(?i)-H\s+['"]cookie:\s*([^'"]+)['"]`)
	h5TokenRe      = regexp.MustCompile(`_m_h5_tk=([^;\s'"]+)`)
)

// ParseCurlCredentials extracts the cookie header and the _m_h5_tk
// token+timestamp from a browser-copied curl command. Operators paste the
// whole command as-is; only the cookie material is used.
func ParseCurlCredentials(curl string) (cookie, tokenWithTime string, err error) {
	if m := cookieFlagRe.FindStringSubmatch(curl); m != nil {
		cookie = m[1]
	} else if m := cookieHeaderRe.FindStringSubmatch(curl); m != nil {
		cookie = m[1]
	} else {
		return "", "", errors.New("could not extract cookie from curl command")
	}
	m := h5TokenRe.FindStringSubmatch(cookie)
	if m == nil {
		return "", "", errors.New("cookie has no _m_h5_tk token")
	}
	return cookie, m[1], nil
}
