// Package token decodes session tokens on the client side. The client
// trusts the transport, so payloads are read without signature
// verification; every malformed input degrades to "absent/expired" and
// never escapes as a panic or error.
package token

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Payload is the subset of token claims the client acts on.
type Payload struct {
	Subject   string
	UserID    int64
	ExpiresAt time.Time // zero when the token carries no expiry
}

// Codec decodes and inspects tokens. The zero value uses the real clock;
// tests inject Now.
type Codec struct {
	Now func() time.Time
}

func (c *Codec) now() time.Time {
	if c != nil && c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// ValidateFormat reports whether the token has exactly three non-empty
// dot-separated segments.
func ValidateFormat(tok string) bool {
	parts := strings.Split(tok, ".")
	if len(parts) != 3 {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
	}
	return true
}

// Decode extracts the payload without verifying the signature. Fails
// closed: any malformed segment, bad encoding, or non-JSON payload yields
// (nil, false).
func (c *Codec) Decode(tok string) (*Payload, bool) {
	if !ValidateFormat(tok) {
		return nil, false
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, claims); err != nil {
		return nil, false
	}

	p := &Payload{}
	if sub, err := claims.GetSubject(); err == nil {
		p.Subject = sub
	}
	if uid, ok := claims["uid"].(float64); ok {
		p.UserID = int64(uid)
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		p.ExpiresAt = exp.Time
	}
	return p, true
}

// IsExpired reports whether the token can no longer back a session. An
// empty, undecodable, or expiry-less token counts as expired.
func (c *Codec) IsExpired(tok string) bool {
	if tok == "" {
		return true
	}
	p, ok := c.Decode(tok)
	if !ok || p.ExpiresAt.IsZero() {
		return true
	}
	return p.ExpiresAt.Unix() <= c.now().Unix()
}

// IsExpiringSoon reports whether the token expires within threshold but has
// not expired yet. Expired or undecodable tokens return false; they are
// IsExpired's problem.
func (c *Codec) IsExpiringSoon(tok string, threshold time.Duration) bool {
	if tok == "" {
		return false
	}
	p, ok := c.Decode(tok)
	if !ok || p.ExpiresAt.IsZero() {
		return false
	}
	remaining := p.ExpiresAt.Sub(c.now())
	return remaining > 0 && remaining <= threshold
}
