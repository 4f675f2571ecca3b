// Package session holds the client's belief about its current identity:
// the durable token/profile store and the in-memory guard that keeps the
// belief honest.
package session

import (
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/taskapp/taskstream/internal/client/token"
	"github.com/taskapp/taskstream/internal/core/domain"
)

// Storage keys. TokenKey and UserKey are exported so external
// change-watchers can tell the guard which entry mutated.
const (
	TokenKey    = "token"
	UserKey     = "user"
	redirectKey = "redirectAfterLogin"
)

// Store persists the session token and profile. It validates on every
// read: an expired token or a malformed profile record degrades to a full
// clear, never to a partial session.
type Store struct {
	kv    KV
	codec *token.Codec
	log   zerolog.Logger
}

func NewStore(kv KV, codec *token.Codec, log zerolog.Logger) *Store {
	return &Store{kv: kv, codec: codec, log: log}
}

// Save writes the token and profile. Rejects without touching storage when
// the token is already expired or the profile shape is invalid.
func (s *Store) Save(tok string, user *domain.Profile) bool {
	if tok == "" || s.codec.IsExpired(tok) {
		s.log.Warn().Msg("refusing to store expired or empty token")
		return false
	}
	if !user.Valid() {
		s.log.Warn().Msg("refusing to store invalid profile")
		return false
	}

	raw, err := json.Marshal(user)
	if err != nil {
		return false
	}
	if err := s.kv.Set(TokenKey, tok); err != nil {
		s.Clear()
		return false
	}
	if err := s.kv.Set(UserKey, string(raw)); err != nil {
		s.Clear()
		return false
	}
	return true
}

// Load returns the stored session, or ("", nil) when none exists. Any
// inconsistency (expired token, corrupt or malformed profile) clears
// both entries before returning absent.
func (s *Store) Load() (string, *domain.Profile) {
	tok, ok := s.kv.Get(TokenKey)
	if !ok || absent(tok) {
		return "", nil
	}
	if s.codec.IsExpired(tok) {
		s.Clear()
		return "", nil
	}

	raw, ok := s.kv.Get(UserKey)
	if !ok || absent(raw) {
		// Token without profile is no session, but the token itself is
		// still well-formed; leave it for the writer to complete.
		return "", nil
	}

	var p domain.Profile
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		s.log.Warn().Err(err).Msg("stored profile unreadable, clearing session")
		s.Clear()
		return "", nil
	}
	if !p.Valid() {
		s.log.Warn().Msg("stored profile fails shape validation, clearing session")
		s.Clear()
		return "", nil
	}

	return tok, &p
}

// Clear removes both entries. Idempotent; never fails on absence.
func (s *Store) Clear() {
	s.kv.Delete(TokenKey)
	s.kv.Delete(UserKey)
}

// SetRedirect records where to land after the next successful login.
func (s *Store) SetRedirect(route string) {
	_ = s.kv.Set(redirectKey, route)
}

// ConsumeRedirect returns and removes the recorded post-login route.
func (s *Store) ConsumeRedirect() string {
	route, ok := s.kv.Get(redirectKey)
	s.kv.Delete(redirectKey)
	if !ok || absent(route) {
		return ""
	}
	return route
}

// absent treats the literal strings some storage layers write for missing
// values as missing.
func absent(v string) bool {
	return v == "" || v == "undefined" || v == "null"
}
