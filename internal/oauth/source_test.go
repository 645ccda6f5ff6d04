package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/joshp123/gobotvac/internal/blob"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenServer(t *testing.T, wantRefresh string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		assert.Equal(t, wantRefresh, r.Form.Get("refresh_token"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "access-1",
			"token_type":    "bearer",
			"refresh_token": "rotated",
			"expires_in":    3600,
		})
	}))
}

func TestTokenSourcePersistsRotatedRefreshToken(t *testing.T) {
	server := tokenServer(t, "seed")
	defer server.Close()

	store, err := blob.NewFileStore(t.TempDir())
	require.NoError(t, err)

	decl := Declaration{Provider: "botvac", TokenURL: server.URL}
	source, err := NewTokenSource(context.Background(), decl, Bootstrap{ClientID: "cid", RefreshToken: "seed"}, store)
	require.NoError(t, err)

	token, err := source.Token()
	require.NoError(t, err)
	assert.Equal(t, "access-1", token.AccessToken)

	data, err := store.Load(context.Background(), "botvac")
	require.NoError(t, err)
	state, err := DecodeState(data)
	require.NoError(t, err)
	assert.Equal(t, "rotated", state.RefreshToken)
}

func TestTokenSourcePrefersPersistedState(t *testing.T) {
	server := tokenServer(t, "persisted")
	defer server.Close()

	store, err := blob.NewFileStore(t.TempDir())
	require.NoError(t, err)
	data, err := json.Marshal(State{SchemaVersion: SchemaVersion, ClientID: "cid", RefreshToken: "persisted"})
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), "botvac", data))

	decl := Declaration{Provider: "botvac", TokenURL: server.URL}
	source, err := NewTokenSource(context.Background(), decl, Bootstrap{ClientID: "cid", RefreshToken: "seed"}, store)
	require.NoError(t, err)

	_, err = source.Token()
	require.NoError(t, err)
}

func TestTokenSourceRejectsScopeMismatch(t *testing.T) {
	store, err := blob.NewFileStore(t.TempDir())
	require.NoError(t, err)
	data, err := json.Marshal(State{SchemaVersion: SchemaVersion, ClientID: "cid", RefreshToken: "r", Scope: "public_profile"})
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), "botvac", data))

	decl := Declaration{Provider: "botvac", TokenURL: "https://auth.example.com/token", Scope: "control_robots"}
	_, err = NewTokenSource(context.Background(), decl, Bootstrap{ClientID: "cid"}, store)
	assert.ErrorIs(t, err, ErrScopeMismatch)
}

func TestTokenSourceNeedsRefreshToken(t *testing.T) {
	store, err := blob.NewFileStore(t.TempDir())
	require.NoError(t, err)

	decl := Declaration{Provider: "botvac", TokenURL: "https://auth.example.com/token"}
	_, err = NewTokenSource(context.Background(), decl, Bootstrap{ClientID: "cid"}, store)
	assert.Error(t, err)
}

func TestStateRotate(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	base := State{SchemaVersion: SchemaVersion, ClientID: "cid", RefreshToken: "r1"}

	_, rotated := base.rotate("", at)
	assert.False(t, rotated)
	_, rotated = base.rotate("r1", at)
	assert.False(t, rotated)

	next, rotated := base.rotate("r2", at)
	require.True(t, rotated)
	assert.Equal(t, "r2", next.RefreshToken)
	assert.Equal(t, at, next.RotatedAt)
	assert.Equal(t, "r1", base.RefreshToken)
}

func TestDecodeStateRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"garbage":    `{`,
		"schema":     `{"schema_version":2,"refresh_token":"r"}`,
		"no refresh": `{"schema_version":1}`,
	}
	for name, data := range cases {
		_, err := DecodeState([]byte(data))
		assert.Error(t, err, name)
	}
}

func TestStateEncodeOmitsUnrotated(t *testing.T) {
	data, err := State{SchemaVersion: SchemaVersion, ClientID: "cid", RefreshToken: "r"}.Encode()
	require.NoError(t, err)
	assert.NotContains(t, string(data), "rotated_at")

	state, err := DecodeState(data)
	require.NoError(t, err)
	assert.Equal(t, "r", state.RefreshToken)
}
