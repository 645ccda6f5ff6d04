// Package oauth provides refresh-token backed access tokens whose rotated
// refresh tokens are persisted to a blob store.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/joshp123/gobotvac/internal/blob"
	"golang.org/x/oauth2"
)

var ErrScopeMismatch = errors.New("oauth scope mismatch")

// NewTokenSource returns a caching token source. The persisted state in store
// wins over bootstrap.RefreshToken so rotated tokens survive restarts.
func NewTokenSource(ctx context.Context, decl Declaration, bootstrap Bootstrap, store blob.Store) (oauth2.TokenSource, error) {
	if decl.Provider == "" {
		return nil, fmt.Errorf("provider is required")
	}
	if decl.TokenURL == "" {
		return nil, fmt.Errorf("tokenURL is required")
	}
	if store == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if bootstrap.ClientID == "" {
		return nil, fmt.Errorf("bootstrap missing client_id")
	}

	state, err := initialState(ctx, decl, bootstrap, store)
	if err != nil {
		return nil, err
	}

	cfg := &oauth2.Config{
		ClientID:     bootstrap.ClientID,
		ClientSecret: bootstrap.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: decl.TokenURL},
		Scopes:       strings.Fields(decl.Scope),
	}
	httpCtx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: 15 * time.Second})
	base := cfg.TokenSource(httpCtx, &oauth2.Token{RefreshToken: state.RefreshToken})

	return oauth2.ReuseTokenSource(nil, &persistingSource{
		decl:  decl,
		base:  base,
		store: store,
		state: state,
	}), nil
}

func initialState(ctx context.Context, decl Declaration, bootstrap Bootstrap, store blob.Store) (State, error) {
	data, err := store.Load(ctx, decl.Provider)
	switch {
	case err == nil:
		state, err := DecodeState(data)
		if err != nil {
			return State{}, err
		}
		if state.Scope != "" && state.Scope != decl.Scope {
			scopeMismatch.WithLabelValues(decl.Provider).Inc()
			return State{}, ErrScopeMismatch
		}
		return state, nil
	case !errors.Is(err, blob.ErrNotFound):
		return State{}, fmt.Errorf("load oauth state: %w", err)
	}

	return bootstrap.state(decl.Scope)
}

// persistingSource saves the refresh token whenever the provider rotates it.
type persistingSource struct {
	decl  Declaration
	base  oauth2.TokenSource
	store blob.Store

	mu    sync.Mutex
	state State
}

func (s *persistingSource) Token() (*oauth2.Token, error) {
	token, err := s.base.Token()
	refreshTotal.WithLabelValues(s.decl.Provider, resultLabel(err)).Inc()
	if err != nil {
		tokenExpiry.WithLabelValues(s.decl.Provider).Set(0)
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			body := strings.TrimSpace(string(retrieveErr.Body))
			return nil, fmt.Errorf("token refresh failed %d: %s", retrieveErr.Response.StatusCode, body)
		}
		return nil, err
	}
	if !token.Expiry.IsZero() {
		tokenExpiry.WithLabelValues(s.decl.Provider).Set(float64(token.Expiry.Unix()))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	next, rotated := s.state.rotate(token.RefreshToken, time.Now())
	if !rotated {
		return token, nil
	}
	s.state = next

	data, err := next.Encode()
	if err == nil {
		err = s.store.Save(context.Background(), s.decl.Provider, data)
	}
	rotationsTotal.WithLabelValues(s.decl.Provider, resultLabel(err)).Inc()
	if err != nil {
		log.Printf("oauth %s: persist rotated refresh token: %v", s.decl.Provider, err)
	}
	return token, nil
}
