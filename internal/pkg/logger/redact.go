package logger

import (
	"net/url"
	"strings"
)

var secretKeyParts = []string{"key", "token", "secret", "password", "dsn"}

func redactValue(key, val string) string {
	key = strings.ToLower(key)
	for _, part := range secretKeyParts {
		if strings.Contains(key, part) {
			return RedactSecret(val)
		}
	}
	if strings.Contains(key, "url") {
		return RedactURL(val)
	}
	return val
}

// RedactSecret masks all but the last four characters of a credential.
// "AIzaSyD-abcdef1234" -> "***1234". Values of 8 chars or fewer are fully masked.
func RedactSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "***"
	}
	return "***" + s[len(s)-4:]
}

// RedactURL strips userinfo and masks credential-like query parameters.
// "postgres://u:p@db/x?sslmode=disable" -> "postgres://***@db/x?sslmode=disable"
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	if u.User != nil {
		u.User = url.User("***")
	}
	q := u.Query()
	changed := false
	for k := range q {
		lk := strings.ToLower(k)
		for _, part := range secretKeyParts {
			if strings.Contains(lk, part) {
				q.Set(k, "***")
				changed = true
				break
			}
		}
	}
	if changed {
		u.RawQuery = q.Encode()
	}
	return u.String()
}
