package blob

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	data    map[string][]byte
	saveErr error
}

func (m *memoryStore) Load(_ context.Context, name string) ([]byte, error) {
	if data, ok := m.data[name]; ok {
		return data, nil
	}
	return nil, ErrNotFound
}

func (m *memoryStore) Save(_ context.Context, name string, data []byte) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	if m.data == nil {
		m.data = make(map[string][]byte)
	}
	m.data[name] = data
	return nil
}

func TestFileStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	_, err = store.Load(context.Background(), "botvac-session")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Save(context.Background(), "botvac-session", []byte(`{"token":"abc"}`)))

	data, err := store.Load(context.Background(), "botvac-session")
	require.NoError(t, err)
	assert.JSONEq(t, `{"token":"abc"}`, string(data))

	info, err := os.Stat(filepath.Join(dir, "botvac-session.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileStoreRejectsBadNames(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"", "../escape", "Upper", "a/b"} {
		err := store.Save(context.Background(), name, []byte("{}"))
		assert.Error(t, err, name)
	}

	_, err = NewFileStore("relative/dir")
	assert.Error(t, err)
}

func TestMirrorFallsBackAndRestoresPrimary(t *testing.T) {
	primary := &memoryStore{}
	secondary := &memoryStore{data: map[string][]byte{"botvac-session": []byte("remote")}}
	mirror := Mirror{Primary: primary, Secondary: secondary}

	data, err := mirror.Load(context.Background(), "botvac-session")
	require.NoError(t, err)
	assert.Equal(t, "remote", string(data))
	assert.Equal(t, "remote", string(primary.data["botvac-session"]))
}

func TestMirrorSaveToleratesSecondaryFailure(t *testing.T) {
	primary := &memoryStore{}
	secondary := &memoryStore{saveErr: errors.New("offline")}
	mirror := Mirror{Primary: primary, Secondary: secondary}

	require.NoError(t, mirror.Save(context.Background(), "botvac-session", []byte("local")))
	assert.Equal(t, "local", string(primary.data["botvac-session"]))
}

func TestParseEndpoint(t *testing.T) {
	host, secure, err := parseEndpoint("http://minio.local:9000")
	require.NoError(t, err)
	assert.Equal(t, "minio.local:9000", host)
	assert.False(t, secure)

	host, secure, err = parseEndpoint("s3.example.com")
	require.NoError(t, err)
	assert.Equal(t, "s3.example.com", host)
	assert.True(t, secure)
}
