package utils

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"regexp"
	"strings"
	"time"
)

var usernameRe = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]{1,62}[a-z0-9]$`)

func ValidateUsername(name string) error {
	if !usernameRe.MatchString(strings.ToLower(strings.TrimSpace(name))) {
		return errors.New("invalid username")
	}
	return nil
}

// RandString returns a URL-safe random string of n bytes of entropy.
func RandString(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func NowUTC() time.Time {
	return time.Now().UTC()
}
