package oauth

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const SchemaVersion = 1

var errNoRefreshToken = errors.New("refresh_token is empty")

// State is what the token source persists under the provider's blob key.
// RotatedAt is zero until the provider hands out its first new refresh token.
type State struct {
	SchemaVersion int       `json:"schema_version"`
	ClientID      string    `json:"client_id"`
	RefreshToken  string    `json:"refresh_token"`
	Scope         string    `json:"scope,omitempty"`
	RotatedAt     time.Time `json:"rotated_at,omitzero"`
}

// Bootstrap seeds the first refresh token when nothing has been persisted.
type Bootstrap struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
}

func DecodeState(data []byte) (State, error) {
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return State{}, fmt.Errorf("decode oauth state: %w", err)
	}
	if s.SchemaVersion != SchemaVersion {
		return State{}, fmt.Errorf("oauth state schema_version %d, want %d", s.SchemaVersion, SchemaVersion)
	}
	if s.RefreshToken == "" {
		return State{}, fmt.Errorf("oauth state: %w", errNoRefreshToken)
	}
	return s, nil
}

func (s State) Encode() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// rotate returns a copy of s carrying refreshToken, or false when the token
// did not change.
func (s State) rotate(refreshToken string, at time.Time) (State, bool) {
	if refreshToken == "" || refreshToken == s.RefreshToken {
		return s, false
	}
	s.RefreshToken = refreshToken
	s.RotatedAt = at.UTC()
	return s, true
}

func (b Bootstrap) state(scope string) (State, error) {
	if b.RefreshToken == "" {
		return State{}, fmt.Errorf("bootstrap: %w", errNoRefreshToken)
	}
	return State{
		SchemaVersion: SchemaVersion,
		ClientID:      b.ClientID,
		RefreshToken:  b.RefreshToken,
		Scope:         scope,
	}, nil
}
