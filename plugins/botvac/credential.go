package botvac

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joshp123/gobotvac/internal/blob"
)

// TokenType selects how a credential is rendered into the Authorization header.
type TokenType int

const (
	TokenSession TokenType = iota
	TokenOAuth
)

func (t TokenType) String() string {
	if t == TokenOAuth {
		return "oauth"
	}
	return "session"
}

func ParseTokenType(value string) (TokenType, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "session", "token":
		return TokenSession, nil
	case "oauth", "bearer":
		return TokenOAuth, nil
	default:
		return TokenSession, fmt.Errorf("unknown token type %q", value)
	}
}

func (t TokenType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TokenType) UnmarshalText(text []byte) error {
	parsed, err := ParseTokenType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Credential is an account-level token.
type Credential struct {
	Token string
	Type  TokenType
}

// Header renders the Authorization header value.
func (c Credential) Header() string {
	if c.Type == TokenOAuth {
		return "Bearer " + c.Token
	}
	return "Token token=" + c.Token
}

func (c Credential) Valid() bool {
	return c.Token != ""
}

const (
	credentialBlobName      = "botvac-session"
	credentialSchemaVersion = 1
)

type credentialRecord struct {
	SchemaVersion int       `json:"schema_version"`
	Token         string    `json:"token"`
	TokenType     TokenType `json:"token_type"`
	SavedAt       time.Time `json:"saved_at"`
}

// CredentialStore persists the session credential between daemon restarts.
type CredentialStore struct {
	store blob.Store
	now   func() time.Time
}

func NewCredentialStore(store blob.Store) *CredentialStore {
	return &CredentialStore{store: store, now: time.Now}
}

// Load returns blob.ErrNotFound when nothing has been saved yet.
func (s *CredentialStore) Load(ctx context.Context) (Credential, error) {
	data, err := s.store.Load(ctx, credentialBlobName)
	if err != nil {
		return Credential{}, err
	}
	var record credentialRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return Credential{}, fmt.Errorf("decode credential: %w", err)
	}
	if record.SchemaVersion != credentialSchemaVersion {
		return Credential{}, fmt.Errorf("credential schema_version %d not supported", record.SchemaVersion)
	}
	if record.Token == "" {
		return Credential{}, errors.New("stored credential has no token")
	}
	return Credential{Token: record.Token, Type: record.TokenType}, nil
}

func (s *CredentialStore) Save(ctx context.Context, cred Credential) error {
	data, err := json.MarshalIndent(credentialRecord{
		SchemaVersion: credentialSchemaVersion,
		Token:         cred.Token,
		TokenType:     cred.Type,
		SavedAt:       s.now().UTC(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credential: %w", err)
	}
	return s.store.Save(ctx, credentialBlobName, data)
}
