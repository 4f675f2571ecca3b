package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("anykey"))
	require.NoError(t, err)
	return tok
}

func fixedCodec(at time.Time) *Codec {
	return &Codec{Now: func() time.Time { return at }}
}

func TestValidateFormat(t *testing.T) {
	tests := []struct {
		name string
		tok  string
		want bool
	}{
		{"well formed", "aaa.bbb.ccc", true},
		{"empty", "", false},
		{"two segments", "aaa.bbb", false},
		{"four segments", "a.b.c.d", false},
		{"empty middle segment", "aaa..ccc", false},
		{"empty leading segment", ".bbb.ccc", false},
		{"empty trailing segment", "aaa.bbb.", false},
		{"no dots", "aaabbbccc", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateFormat(tt.tok))
		})
	}
}

func TestCodec_Decode(t *testing.T) {
	now := time.Now()
	tok := signedToken(t, jwt.MapClaims{
		"sub": "alice",
		"uid": int64(42),
		"exp": now.Add(time.Hour).Unix(),
	})

	c := &Codec{}
	p, ok := c.Decode(tok)
	require.True(t, ok)
	assert.Equal(t, "alice", p.Subject)
	assert.Equal(t, int64(42), p.UserID)
	assert.Equal(t, now.Add(time.Hour).Unix(), p.ExpiresAt.Unix())
}

func TestCodec_Decode_MalformedFailsClosed(t *testing.T) {
	c := &Codec{}
	for _, tok := range []string{
		"",
		"garbage",
		"aaa.bbb",
		"!!!.###.$$$",
		"aaa.not-base64-json.ccc",
	} {
		p, ok := c.Decode(tok)
		assert.False(t, ok, "token %q should not decode", tok)
		assert.Nil(t, p)
	}
}

func TestCodec_Decode_NoExpiry(t *testing.T) {
	tok := signedToken(t, jwt.MapClaims{"sub": "alice"})

	c := &Codec{}
	p, ok := c.Decode(tok)
	require.True(t, ok)
	assert.True(t, p.ExpiresAt.IsZero())
}

func TestCodec_IsExpired(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	c := fixedCodec(now)

	live := signedToken(t, jwt.MapClaims{"sub": "a", "exp": now.Add(time.Hour).Unix()})
	dead := signedToken(t, jwt.MapClaims{"sub": "a", "exp": now.Add(-time.Hour).Unix()})
	atBoundary := signedToken(t, jwt.MapClaims{"sub": "a", "exp": now.Unix()})
	noExp := signedToken(t, jwt.MapClaims{"sub": "a"})

	assert.False(t, c.IsExpired(live))
	assert.True(t, c.IsExpired(dead))
	// Expiry exactly now counts as expired.
	assert.True(t, c.IsExpired(atBoundary))
	assert.True(t, c.IsExpired(noExp))
	assert.True(t, c.IsExpired(""))
	assert.True(t, c.IsExpired("not.a.token"))
	assert.True(t, c.IsExpired("a.b"))
}

func TestCodec_IsExpiringSoon(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	c := fixedCodec(now)
	threshold := 5 * time.Minute

	within := signedToken(t, jwt.MapClaims{"sub": "a", "exp": now.Add(2 * time.Minute).Unix()})
	beyond := signedToken(t, jwt.MapClaims{"sub": "a", "exp": now.Add(time.Hour).Unix()})
	expired := signedToken(t, jwt.MapClaims{"sub": "a", "exp": now.Add(-time.Minute).Unix()})
	noExp := signedToken(t, jwt.MapClaims{"sub": "a"})

	assert.True(t, c.IsExpiringSoon(within, threshold))
	assert.False(t, c.IsExpiringSoon(beyond, threshold))
	// Already expired is not "expiring soon".
	assert.False(t, c.IsExpiringSoon(expired, threshold))
	assert.False(t, c.IsExpiringSoon(noExp, threshold))
	assert.False(t, c.IsExpiringSoon("", threshold))
}

func TestCodec_ZeroValueUsesRealClock(t *testing.T) {
	var c Codec
	tok := signedToken(t, jwt.MapClaims{"sub": "a", "exp": time.Now().Add(time.Hour).Unix()})
	assert.False(t, c.IsExpired(tok))
}
