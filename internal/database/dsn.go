package database

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	kvPairRegex   = regexp.MustCompile(`(?i)\b(host|user|password|dbname|port|sslmode)=`)
	passwordRegex = regexp.MustCompile(`(?i)(password=)([^\s]+)`)
)

// NormalizeDSN accepts either a URL style DSN (postgres://...) or a key=value
// list and returns the URL form golang-migrate and pgx both understand. Input
// that is neither is returned trimmed and the driver reports the error.
func NormalizeDSN(raw string) string {
	s := strings.Trim(strings.TrimSpace(raw), "\"'")
	lower := strings.ToLower(s)
	if s == "" || strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return s
	}
	if !kvPairRegex.MatchString(s) {
		return s
	}

	m := map[string]string{}
	for _, part := range strings.Fields(s) {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) == 2 {
			m[strings.ToLower(kv[0])] = kv[1]
		}
	}
	if m["host"] == "" || m["user"] == "" || m["dbname"] == "" {
		return strings.Join(strings.Fields(s), " ")
	}

	u := &url.URL{Scheme: "postgres", Host: m["host"], Path: "/" + m["dbname"]}
	if m["port"] != "" {
		u.Host += ":" + m["port"]
	}
	if m["password"] != "" {
		u.User = url.UserPassword(m["user"], m["password"])
	} else {
		u.User = url.User(m["user"])
	}
	q := url.Values{}
	sslmode := m["sslmode"]
	if sslmode == "" {
		sslmode = "disable"
	}
	q.Set("sslmode", sslmode)
	u.RawQuery = q.Encode()
	return u.String()
}

// SQLiteDSN turns a bare file path into a DSN with foreign keys enabled.
func SQLiteDSN(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		s = "pos.db"
	}
	if strings.Contains(s, "_foreign_keys") || strings.Contains(s, "_fk=") {
		return s
	}
	sep := "?"
	if strings.Contains(s, "?") {
		sep = "&"
	}
	return s + sep + "_foreign_keys=on"
}

// MaskDSN hides the password in both DSN forms, for logging.
func MaskDSN(dsn string) string {
	if u, err := url.Parse(dsn); err == nil && u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), "***")
			return u.String()
		}
	}
	return passwordRegex.ReplaceAllString(dsn, "${1}***")
}
