package botvac

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/joshp123/gobotvac/internal/blob"
)

var ErrRobotNotFound = errors.New("botvac: robot not found")

// Manager keeps the account's robots loaded for the daemon surfaces.
type Manager struct {
	client   *Client
	email    string
	password string

	mu     sync.RWMutex
	robots []*Robot
}

func NewManager(client *Client, email, password string) *Manager {
	return &Manager{client: client, email: email, password: password}
}

func (m *Manager) Client() *Client {
	return m.client
}

// Connect restores or obtains a credential and loads the robot list. A stored
// session token rejected by the fleet service triggers one forced login.
func (m *Manager) Connect(ctx context.Context) (Fleet, error) {
	if _, err := m.client.RestoreCredential(ctx); err != nil && !errors.Is(err, blob.ErrNotFound) {
		log.Printf("botvac credential restore failed: %v", err)
	}
	if err := m.login(ctx, false); err != nil {
		return Fleet{}, err
	}

	fleet, err := m.client.Robots(ctx)
	if isUnauthorized(err) && m.password != "" {
		log.Printf("botvac session rejected, logging in again")
		if err := m.login(ctx, true); err != nil {
			return Fleet{}, err
		}
		fleet, err = m.client.Robots(ctx)
	}
	if err != nil {
		return Fleet{}, err
	}

	m.mu.Lock()
	m.robots = fleet.Robots
	m.mu.Unlock()
	return fleet, nil
}

func (m *Manager) login(ctx context.Context, force bool) error {
	if !force && (m.client.Credential().Valid() || m.client.tokenSource != nil) {
		return nil
	}
	if m.password == "" {
		return fmt.Errorf("%w: no password configured", ErrNotAuthorized)
	}
	return m.client.Authenticate(ctx, m.email, m.password, force)
}

// Robots returns the loaded robots in server order.
func (m *Manager) Robots() []*Robot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*Robot(nil), m.robots...)
}

// Robot finds a robot by serial, or by name ignoring case.
func (m *Manager) Robot(key string) (*Robot, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, &MissingParameterError{Name: "robot"}
	}
	for _, robot := range m.Robots() {
		if robot.Serial() == key || strings.EqualFold(robot.Name(), key) {
			return robot, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrRobotNotFound, key)
}

// Refresh fetches the state of every loaded robot.
func (m *Manager) Refresh(ctx context.Context) []RefreshResult {
	robots := m.Robots()
	results := make([]RefreshResult, 0, len(robots))
	for _, robot := range robots {
		err := m.client.Refresh(ctx, robot)
		results = append(results, RefreshResult{
			Serial:   robot.Serial(),
			Name:     robot.Name(),
			Snapshot: robot.Snapshot(),
			Err:      err,
		})
	}
	return results
}

func isUnauthorized(err error) bool {
	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		return false
	}
	return transportErr.StatusCode == http.StatusUnauthorized || transportErr.StatusCode == http.StatusForbidden
}
