package identity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthkeep/hearth/pkg/types"
)

func TestTokenIssuer(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)

	t.Run("issue and verify round trip", func(t *testing.T) {
		token, expiresAt, err := issuer.Issue("u1", "h1", "d1")
		require.NoError(t, err)
		assert.True(t, expiresAt.After(time.Now()))

		claims, err := issuer.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, "u1", claims.UserID)
		assert.Equal(t, "h1", claims.HouseholdID)
		assert.Equal(t, "d1", claims.DeviceID)
		assert.NotEmpty(t, claims.SessionID)
	})

	t.Run("each token gets a distinct session id", func(t *testing.T) {
		tok1, _, err := issuer.Issue("u1", "h1", "d1")
		require.NoError(t, err)
		tok2, _, err := issuer.Issue("u1", "h1", "d1")
		require.NoError(t, err)

		c1, err := issuer.Verify(tok1)
		require.NoError(t, err)
		c2, err := issuer.Verify(tok2)
		require.NoError(t, err)
		assert.NotEqual(t, c1.SessionID, c2.SessionID)
	})

	t.Run("wrong secret is rejected", func(t *testing.T) {
		token, _, err := issuer.Issue("u1", "h1", "d1")
		require.NoError(t, err)

		_, err = NewTokenIssuer("other-secret", time.Hour).Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired token is rejected", func(t *testing.T) {
		stale := NewTokenIssuer("test-secret", -time.Minute)
		token, _, err := stale.Issue("u1", "h1", "d1")
		require.NoError(t, err)

		_, err = issuer.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage is rejected", func(t *testing.T) {
		_, err := issuer.Verify("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestPasscode(t *testing.T) {
	t.Run("hash and check round trip", func(t *testing.T) {
		hash, err := HashPasscode("correct horse battery")
		require.NoError(t, err)
		assert.True(t, CheckPasscode(hash, "correct horse battery"))
		assert.False(t, CheckPasscode(hash, "wrong passcode"))
	})

	t.Run("short passcode rejected", func(t *testing.T) {
		_, err := HashPasscode("short")
		assert.Error(t, err)
	})
}

func TestFileSession(t *testing.T) {
	creds := types.Credentials{Token: "tok", HouseholdID: "h1", UserID: "u1", DeviceID: "d1"}

	t.Run("missing file means logged out", func(t *testing.T) {
		s := LoadSession(t.TempDir())
		assert.False(t, s.Authenticated())
		_, err := s.Credentials()
		assert.ErrorIs(t, err, types.ErrNotAuthenticated)
	})

	t.Run("save then reload", func(t *testing.T) {
		dir := t.TempDir()
		s := LoadSession(dir)
		require.NoError(t, s.Save(creds, time.Now().Add(time.Hour)))
		require.True(t, s.Authenticated())

		reloaded := LoadSession(dir)
		assert.True(t, reloaded.Authenticated())
		got, err := reloaded.Credentials()
		require.NoError(t, err)
		assert.Equal(t, creds, got)
	})

	t.Run("expired session reads as unauthenticated", func(t *testing.T) {
		s := LoadSession(t.TempDir())
		require.NoError(t, s.Save(creds, time.Now().Add(-time.Minute)))
		assert.False(t, s.Authenticated())
		_, err := s.Credentials()
		assert.ErrorIs(t, err, types.ErrNotAuthenticated)
	})

	t.Run("clear logs out and removes the file", func(t *testing.T) {
		dir := t.TempDir()
		s := LoadSession(dir)
		require.NoError(t, s.Save(creds, time.Now().Add(time.Hour)))
		require.NoError(t, s.Clear())
		assert.False(t, s.Authenticated())
		assert.False(t, LoadSession(dir).Authenticated())
	})

	t.Run("clear without a session is not an error", func(t *testing.T) {
		s := LoadSession(t.TempDir())
		assert.NoError(t, s.Clear())
	})
}
