package botvac

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/joshp123/gobotvac/internal/retry"
	"golang.org/x/oauth2"
)

const defaultRetryDelay = 5 * time.Second

// Client is the account session: it owns the credential and materializes
// robots from the fleet service.
type Client struct {
	robotCfg     RobotConfig
	authRetry    retry.Policy
	listRetry    retry.Policy
	refreshRetry retry.Policy
	tokenSource  oauth2.TokenSource
	store        *CredentialStore

	mu   sync.RWMutex
	cred Credential
}

type Option func(*Client)

func WithTransport(t Transport) Option {
	return func(c *Client) { c.robotCfg.Transport = t }
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.robotCfg.Transport = NewHTTPTransport(httpClient) }
}

func WithCounter(counter RequestCounter) Option {
	return func(c *Client) { c.robotCfg.Counter = counter }
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.robotCfg.Now = now }
}

func WithFleetURL(url string) Option {
	return func(c *Client) { c.robotCfg.FleetURL = url }
}

func WithDeviceURL(url string) Option {
	return func(c *Client) { c.robotCfg.DeviceURL = url }
}

// WithCredential seeds the client with an existing token.
func WithCredential(cred Credential) Option {
	return func(c *Client) { c.cred = cred }
}

// WithTokenSource derives OAuth credentials on demand when no explicit
// credential is set.
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(c *Client) { c.tokenSource = ts }
}

func WithCredentialStore(store *CredentialStore) Option {
	return func(c *Client) { c.store = store }
}

func WithAuthRetry(p retry.Policy) Option {
	return func(c *Client) { c.authRetry = p }
}

func WithListRetry(p retry.Policy) Option {
	return func(c *Client) { c.listRetry = p }
}

func WithRefreshRetry(p retry.Policy) Option {
	return func(c *Client) { c.refreshRetry = p }
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		authRetry:    retry.Unbounded(defaultRetryDelay),
		listRetry:    retry.Unbounded(defaultRetryDelay),
		refreshRetry: retry.Attempts(3, 0),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.robotCfg = c.robotCfg.withDefaults()
	return c
}

// Credential returns the explicit credential, if any.
func (c *Client) Credential() Credential {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cred
}

// RestoreCredential loads a previously saved credential from the configured
// store. It reports whether one was found.
func (c *Client) RestoreCredential(ctx context.Context) (bool, error) {
	if c.store == nil {
		return false, nil
	}
	cred, err := c.store.Load(ctx)
	if err != nil {
		return false, err
	}
	c.mu.Lock()
	c.cred = cred
	c.mu.Unlock()
	return true, nil
}

// Authenticate exchanges email and password for a session token. It is a
// no-op when a credential is already held and force is false.
func (c *Client) Authenticate(ctx context.Context, email, password string, force bool) error {
	if !force && c.Credential().Valid() {
		return nil
	}

	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return fmt.Errorf("encode session request: %w", err)
	}

	var token string
	err = retry.Do(ctx, c.authRetry, "botvac authenticate", func() error {
		env, err := c.robotCfg.Transport.Do(ctx, Request{
			Method: http.MethodPost,
			URL:    c.robotCfg.FleetURL + "/sessions",
			Body:   body,
		})
		if err != nil {
			observeTransportFailure(serviceBeehive)
			if msg := rejectionMessage(err); msg != "" {
				return retry.Permanent(&AuthenticationError{Message: msg})
			}
			if IsTransient(err) {
				return err
			}
			return retry.Permanent(err)
		}

		outcome := classify(env)
		observeOutcome(serviceBeehive, outcome.Kind)

		var resp struct {
			AccessToken string `json:"access_token"`
		}
		if outcome.Kind == OutcomeSuccess || outcome.Kind == OutcomeDomainError {
			if err := json.Unmarshal(outcome.Data, &resp); err != nil {
				return retry.Permanent(fmt.Errorf("decode session response: %w", err))
			}
		}
		switch {
		case resp.AccessToken != "":
			token = resp.AccessToken
			return nil
		case outcome.Kind == OutcomeDomainError:
			return retry.Permanent(&AuthenticationError{Message: outcome.Message})
		default:
			return retry.Permanent(&AuthenticationError{Message: "session response carried neither access token nor message"})
		}
	})
	if err != nil {
		return err
	}

	cred := Credential{Token: token, Type: TokenSession}
	c.mu.Lock()
	c.cred = cred
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.Save(ctx, cred); err != nil {
			log.Printf("botvac credential save failed: %v", err)
		}
	}
	return nil
}

// RefreshResult reports the initial state fetch of one listed robot.
type RefreshResult struct {
	Serial   string
	Name     string
	Snapshot Snapshot
	Err      error
}

// Fleet is the outcome of a robot listing, in server order.
type Fleet struct {
	Robots    []*Robot
	Refreshes []RefreshResult
}

// Failed returns the refresh results that carry an error.
func (f Fleet) Failed() []RefreshResult {
	var failed []RefreshResult
	for _, r := range f.Refreshes {
		if r.Err != nil {
			failed = append(failed, r)
		}
	}
	return failed
}

type robotRecord struct {
	Name           string   `json:"name"`
	Serial         string   `json:"serial"`
	SecretKey      string   `json:"secret_key"`
	Model          string   `json:"model"`
	Firmware       string   `json:"firmware"`
	MacAddress     string   `json:"mac_address"`
	NucleoURL      string   `json:"nucleo_url"`
	PersistentMaps []string `json:"persistent_maps"`
}

// Robots lists the account's robots and refreshes each one's state once.
// A failed refresh is logged and recorded; the robot is still returned.
func (c *Client) Robots(ctx context.Context) (Fleet, error) {
	cred, err := c.credential()
	if err != nil {
		return Fleet{}, err
	}

	var records []robotRecord
	err = retry.Do(ctx, c.listRetry, "botvac list robots", func() error {
		header := http.Header{}
		header.Set("Authorization", cred.Header())
		env, err := c.robotCfg.Transport.Do(ctx, Request{
			Method: http.MethodGet,
			URL:    c.robotCfg.FleetURL + "/users/me/robots",
			Header: header,
		})
		if err != nil {
			observeTransportFailure(serviceBeehive)
			if IsTransient(err) {
				return err
			}
			return retry.Permanent(err)
		}

		outcome := classify(env)
		observeOutcome(serviceBeehive, outcome.Kind)
		switch outcome.Kind {
		case OutcomeEmpty:
			return retry.Permanent(ErrNoResult)
		case OutcomeDomainError:
			return retry.Permanent(&DeviceListError{Message: outcome.Message})
		case OutcomeSoftFailure:
			return retry.Permanent(ErrInternalRemote)
		}
		if err := json.Unmarshal(outcome.Data, &records); err != nil {
			return retry.Permanent(fmt.Errorf("decode robot list: %w", err))
		}
		return nil
	})
	if err != nil {
		return Fleet{}, err
	}

	fleet := Fleet{}
	for _, rec := range records {
		robot := NewRobot(Identity{
			Name:   rec.Name,
			Serial: rec.Serial,
			Secret: rec.SecretKey,
			Token:  cred.Header(),
		}, c.robotCfg)
		robot.info = Info{
			Model:          rec.Model,
			Firmware:       rec.Firmware,
			MacAddress:     rec.MacAddress,
			NucleoURL:      rec.NucleoURL,
			PersistentMaps: rec.PersistentMaps,
		}

		result := RefreshResult{Serial: rec.Serial, Name: rec.Name}
		result.Err = c.refresh(ctx, robot)
		if result.Err != nil {
			log.Printf("botvac refresh %s (%s) failed: %v", rec.Name, rec.Serial, result.Err)
		}
		result.Snapshot = robot.Snapshot()

		fleet.Robots = append(fleet.Robots, robot)
		fleet.Refreshes = append(fleet.Refreshes, result)
	}
	return fleet, nil
}

// Refresh fetches a robot's state under the client's refresh policy.
func (c *Client) Refresh(ctx context.Context, robot *Robot) error {
	return c.refresh(ctx, robot)
}

func (c *Client) refresh(ctx context.Context, robot *Robot) error {
	return retry.Do(ctx, c.refreshRetry, "botvac refresh "+robot.Serial(), func() error {
		_, err := robot.GetState(ctx)
		if err != nil && !IsTransient(err) {
			return retry.Permanent(err)
		}
		return err
	})
}

func (c *Client) credential() (Credential, error) {
	if cred := c.Credential(); cred.Valid() {
		return cred, nil
	}
	if c.tokenSource == nil {
		return Credential{}, ErrNotAuthorized
	}
	token, err := c.tokenSource.Token()
	if err != nil {
		return Credential{}, fmt.Errorf("%w: %v", ErrNotAuthorized, err)
	}
	if token.AccessToken == "" {
		return Credential{}, ErrNotAuthorized
	}
	return Credential{Token: token.AccessToken, Type: TokenOAuth}, nil
}

// rejectionMessage extracts the message of a 4xx response, if it has one.
func rejectionMessage(err error) string {
	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		return ""
	}
	if transportErr.StatusCode < 400 || transportErr.StatusCode >= 500 {
		return ""
	}
	var body struct {
		Message string `json:"message"`
	}
	if json.Unmarshal([]byte(strings.TrimSpace(transportErr.Body)), &body) != nil {
		return ""
	}
	return body.Message
}
