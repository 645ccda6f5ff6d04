package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshp123/gobotvac/internal/blob"
	"github.com/joshp123/gobotvac/plugins/botvac"
)

type testEnv struct {
	dir           string
	credentialDir string
	passwordFile  string
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	env := testEnv{
		dir:           dir,
		credentialDir: filepath.Join(dir, "credentials"),
		passwordFile:  filepath.Join(dir, "password"),
	}
	require.NoError(t, os.WriteFile(env.passwordFile, []byte("hunter2\n"), 0o600))
	return env
}

func (e testEnv) writeConfig(t *testing.T, fleetURL string) string {
	t.Helper()
	path := filepath.Join(e.dir, "config.yaml")
	body := fmt.Sprintf(`
schema_version: 1
botvac:
  email: owner@example.com
  password_file: %s
  fleet_base_url: %s
  device_base_url: %s
  auth_retry: {max_attempts: 1}
  list_retry: {max_attempts: 1}
  refresh_retry: {max_attempts: 1}
  credential_store:
    dir: %s
`, e.passwordFile, fleetURL, fleetURL, e.credentialDir)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&out)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCheckConfig(t *testing.T) {
	env := newTestEnv(t)
	path := env.writeConfig(t, "https://beehive.example.com")

	out, err := run(t, "--config", path, "check-config")
	require.NoError(t, err)
	assert.Contains(t, out, "config ok: enabled [botvac], compiled [botvac]")
}

func TestCheckConfigRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("schema_version: 2\n"), 0o600))

	_, err := run(t, "--config", path, "check-config")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema_version")
}

func TestLoginKeepsStoredSession(t *testing.T) {
	neato := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer neato.Close()

	env := newTestEnv(t)
	store, err := blob.NewFileStore(env.credentialDir)
	require.NoError(t, err)
	require.NoError(t, botvac.NewCredentialStore(store).Save(context.Background(),
		botvac.Credential{Token: "stored", Type: botvac.TokenSession}))

	out, err := run(t, "--config", env.writeConfig(t, neato.URL), "login")
	require.NoError(t, err)
	assert.Contains(t, out, "session already stored")
}

func TestLoginAuthenticatesAndPersists(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /sessions", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"access_token":"fresh"}`))
	})
	mux.HandleFunc("GET /users/me/robots", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Token token=fresh", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[]`))
	})
	neato := httptest.NewServer(mux)
	defer neato.Close()

	env := newTestEnv(t)
	out, err := run(t, "--config", env.writeConfig(t, neato.URL), "login", "--force")
	require.NoError(t, err)
	assert.Contains(t, out, "logged in as owner@example.com, 0 robot(s)")

	store, err := blob.NewFileStore(env.credentialDir)
	require.NoError(t, err)
	cred, err := botvac.NewCredentialStore(store).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh", cred.Token)
}

func TestLoginRequiresPassword(t *testing.T) {
	env := newTestEnv(t)
	path := filepath.Join(env.dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf(`
schema_version: 1
botvac:
  email: owner@example.com
  credential_store:
    dir: %s
`, env.credentialDir)), 0o600))

	_, err := run(t, "--config", path, "login")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "password_file")
}
