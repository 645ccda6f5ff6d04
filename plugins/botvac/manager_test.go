package botvac

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func connectedManager(t *testing.T) (*fakeNeato, *Manager) {
	t.Helper()
	fake, server := newFakeNeato(t)
	manager := NewManager(testClient(server.URL), "user@example.com", "hunter2")
	_, err := manager.Connect(context.Background())
	require.NoError(t, err)
	return fake, manager
}

func TestManagerConnectLogsInAndLoadsRobots(t *testing.T) {
	fake, manager := connectedManager(t)

	assert.Equal(t, 1, fake.sessions())
	require.Len(t, manager.Robots(), 2)

	robot, err := manager.Robot("kitchen")
	require.NoError(t, err)
	assert.Equal(t, "OPS01", robot.Serial())

	robot, err = manager.Robot("OPS02")
	require.NoError(t, err)
	assert.Equal(t, "Upstairs", robot.Name())

	_, err = manager.Robot("garage")
	assert.ErrorIs(t, err, ErrRobotNotFound)

	_, err = manager.Robot("")
	var missing *MissingParameterError
	assert.ErrorAs(t, err, &missing)
}

func TestManagerRelogsInWhenStoredSessionIsRejected(t *testing.T) {
	fake, server := newFakeNeato(t)
	blobs := &memoryStore{}
	store := NewCredentialStore(blobs)
	require.NoError(t, store.Save(context.Background(), Credential{Token: "expired"}))

	client := testClient(server.URL, WithCredentialStore(store))
	manager := NewManager(client, "user@example.com", "hunter2")

	fleet, err := manager.Connect(context.Background())
	require.NoError(t, err)
	assert.Len(t, fleet.Robots, 2)
	assert.Equal(t, 1, fake.sessions())
	assert.Equal(t, 2, fake.lists())

	saved, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", saved.Token)
}

func TestManagerUsesStoredSessionWithoutLogin(t *testing.T) {
	fake, server := newFakeNeato(t)
	store := NewCredentialStore(&memoryStore{})
	require.NoError(t, store.Save(context.Background(), Credential{Token: "abc"}))

	manager := NewManager(testClient(server.URL, WithCredentialStore(store)), "user@example.com", "")
	_, err := manager.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, fake.sessions())
}

func TestManagerWithoutPasswordOrCredential(t *testing.T) {
	fake, server := newFakeNeato(t)
	manager := NewManager(testClient(server.URL), "user@example.com", "")

	_, err := manager.Connect(context.Background())
	require.ErrorIs(t, err, ErrNotAuthorized)
	assert.Equal(t, 0, fake.sessions())
	assert.Empty(t, manager.Robots())
}

func TestManagerRefresh(t *testing.T) {
	fake, manager := connectedManager(t)
	before := len(fake.sent())

	results := manager.Refresh(context.Background())
	require.Len(t, results, 2)
	assert.NoError(t, results[0].Err)
	assert.True(t, results[0].Snapshot.Refreshed)
	assert.Error(t, results[1].Err)

	// Only the kitchen robot accepts signed messages.
	assert.Len(t, fake.sent(), before+1)
}
