// Package publicid issues the unguessable tracking identifiers handed to
// reporters. An identifier carries no timestamp, sequence number or any
// store-internal value; uniqueness is enforced by the report store at
// insertion time and collisions are resolved by regenerating.
package publicid

import (
	"crypto/rand"
	"encoding/base32"
	"errors"
	"io"
)

const (
	// Prefix makes tracking ids recognizable without reducing entropy.
	Prefix = "RPT-"

	// 16 random bytes, 128 bits. Base32 without padding gives 26 chars.
	entropyBytes = 16

	// MaxAttempts bounds the insert-retry loop on store collisions.
	// Exhausting it means the entropy source is broken or the id space
	// was misconfigured, which is a deployment fault, not a user error.
	MaxAttempts = 5
)

// ErrExhausted is returned when MaxAttempts collisions occur in a row.
var ErrExhausted = errors.New("publicid: uniqueness retry budget exhausted")

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

type Generator struct {
	rand io.Reader
}

func NewGenerator() *Generator {
	return &Generator{rand: rand.Reader}
}

// Generate returns a fresh tracking identifier such as
// RPT-MFRGG2LTMVZSA2LOMNUWIZLOOQ.
func (g *Generator) Generate() (string, error) {
	buf := make([]byte, entropyBytes)
	if _, err := io.ReadFull(g.rand, buf); err != nil {
		return "", err
	}
	return Prefix + encoding.EncodeToString(buf), nil
}
