package config

import (
	"net/url"
	"strings"
)

const redactedPassword = "***"

// RedactIdentifier hides the password of a PostgreSQL connection URL so the
// identifier can be printed. SQLite paths, URLs without a password and
// anything that does not parse are returned unchanged.
func RedactIdentifier(raw string) string {
	if !strings.Contains(raw, "://") {
		return raw
	}

	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}

	if _, hasPassword := u.User.Password(); !hasPassword {
		return raw
	}

	u.User = url.UserPassword(u.User.Username(), redactedPassword)

	return u.String()
}
