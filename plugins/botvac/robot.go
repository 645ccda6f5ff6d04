package botvac

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	serviceNucleo  = "nucleo"
	serviceBeehive = "beehive"

	DefaultFleetURL  = "https://beehive.neatocloud.com"
	DefaultDeviceURL = "https://nucleo.neatocloud.com:4443"
)

// Identity holds the keys issued for one robot.
type Identity struct {
	Name   string
	Serial string
	Secret string
	// Token is the formatted Authorization value used for fleet-path calls.
	Token string
}

// Info is read-only metadata from the robot list.
type Info struct {
	Model          string   `json:"model"`
	Firmware       string   `json:"firmware"`
	MacAddress     string   `json:"mac_address"`
	NucleoURL      string   `json:"nucleo_url"`
	PersistentMaps []string `json:"persistent_maps,omitempty"`
}

// RobotConfig carries the collaborators a robot shares with its client.
type RobotConfig struct {
	Transport Transport
	Counter   RequestCounter
	Now       func() time.Time
	FleetURL  string
	DeviceURL string
}

func (c RobotConfig) withDefaults() RobotConfig {
	if c.Transport == nil {
		c.Transport = NewHTTPTransport(nil)
	}
	if c.Counter == nil {
		c.Counter = DefaultCounter()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.FleetURL == "" {
		c.FleetURL = DefaultFleetURL
	}
	if c.DeviceURL == "" {
		c.DeviceURL = DefaultDeviceURL
	}
	c.FleetURL = strings.TrimRight(c.FleetURL, "/")
	c.DeviceURL = strings.TrimRight(c.DeviceURL, "/")
	return c
}

// Robot drives one physical robot and mirrors its last reported state.
//
// Operations on the same Robot are not serialized: when two state-bearing
// calls overlap, the response that completes last wins the snapshot.
type Robot struct {
	id   Identity
	info Info
	cfg  RobotConfig

	mu       sync.RWMutex
	snapshot Snapshot
}

func NewRobot(id Identity, cfg RobotConfig) *Robot {
	return &Robot{id: id, cfg: cfg.withDefaults()}
}

func (r *Robot) Name() string   { return r.id.Name }
func (r *Robot) Serial() string { return r.id.Serial }
func (r *Robot) Info() Info     { return r.info }

// Snapshot returns a deep copy of the mirrored state.
func (r *Robot) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot.clone()
}

func (r *Robot) GetState(ctx context.Context) (RobotState, error) {
	return r.stateCommand(ctx, cmdGetRobotState, nil)
}

// GetSchedule returns the schedule data as sent by the robot. Use
// DecodeSchedule for a typed view.
func (r *Robot) GetSchedule(ctx context.Context) (json.RawMessage, error) {
	return r.command(ctx, cmdGetSchedule, nil)
}

func (r *Robot) EnableSchedule(ctx context.Context) error {
	if _, err := r.command(ctx, cmdEnableSchedule, nil); err != nil {
		return err
	}
	r.mu.Lock()
	r.snapshot.IsScheduleEnabled = true
	r.mu.Unlock()
	return nil
}

func (r *Robot) DisableSchedule(ctx context.Context) error {
	if _, err := r.command(ctx, cmdDisableSchedule, nil); err != nil {
		return err
	}
	r.mu.Lock()
	r.snapshot.IsScheduleEnabled = false
	r.mu.Unlock()
	return nil
}

func (r *Robot) SendToBase(ctx context.Context) error {
	_, err := r.stateCommand(ctx, cmdSendToBase, nil)
	return err
}

func (r *Robot) StopCleaning(ctx context.Context) error {
	_, err := r.stateCommand(ctx, cmdStopCleaning, nil)
	return err
}

func (r *Robot) PauseCleaning(ctx context.Context) error {
	_, err := r.stateCommand(ctx, cmdPauseCleaning, nil)
	return err
}

func (r *Robot) ResumeCleaning(ctx context.Context) error {
	_, err := r.stateCommand(ctx, cmdResumeCleaning, nil)
	return err
}

// StartCleaning starts a house clean. Options not given default to the
// current snapshot values.
func (r *Robot) StartCleaning(ctx context.Context, opts ...CleanOption) error {
	params := houseCleaningParams(settingsFrom(r.Snapshot(), opts))
	_, err := r.stateCommand(ctx, cmdStartCleaning, params)
	return err
}

func (r *Robot) StartSpotCleaning(ctx context.Context, opts ...CleanOption) error {
	params := spotCleaningParams(settingsFrom(r.Snapshot(), opts))
	_, err := r.stateCommand(ctx, cmdStartCleaning, params)
	return err
}

// StartCleaningBoundary cleans a single zone of a persistent map.
func (r *Robot) StartCleaningBoundary(ctx context.Context, boundaryID string, opts ...CleanOption) error {
	if strings.TrimSpace(boundaryID) == "" {
		return &MissingParameterError{Name: "boundaryId"}
	}
	params := boundaryCleaningParams(boundaryID, settingsFrom(r.Snapshot(), opts))
	_, err := r.stateCommand(ctx, cmdStartCleaning, params)
	return err
}

// FindMe makes the robot play a sound and blink.
func (r *Robot) FindMe(ctx context.Context) error {
	_, err := r.stateCommand(ctx, cmdFindMe, map[string]any{})
	return err
}

func (r *Robot) GetMapBoundaries(ctx context.Context, mapID string) (MapBoundaries, error) {
	if strings.TrimSpace(mapID) == "" {
		return MapBoundaries{}, &MissingParameterError{Name: "mapId"}
	}
	data, err := r.command(ctx, cmdGetMapBoundaries, map[string]string{"mapId": mapID})
	if err != nil {
		return MapBoundaries{}, err
	}

	var resp struct {
		Boundaries []Boundary `json:"boundaries"`
		Data       *struct {
			Boundaries []Boundary `json:"boundaries"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return MapBoundaries{}, fmt.Errorf("%s: decode: %w", cmdGetMapBoundaries, err)
	}
	boundaries := resp.Boundaries
	if boundaries == nil && resp.Data != nil {
		boundaries = resp.Data.Boundaries
	}
	return MapBoundaries{MapID: mapID, Boundaries: boundaries}, nil
}

// GetPersistentMaps lists the floor maps the fleet service stores for this robot.
func (r *Robot) GetPersistentMaps(ctx context.Context) ([]PersistentMap, error) {
	env, err := r.request(ctx, serviceBeehive, http.MethodGet, "/persistent_maps", nil)
	if err != nil {
		return nil, fmt.Errorf("persistent maps: %w", err)
	}
	outcome := classify(env)
	observeOutcome(serviceBeehive, outcome.Kind)
	if err := outcome.commandError(); err != nil {
		return nil, fmt.Errorf("persistent maps: %w", err)
	}

	var maps []PersistentMap
	if err := json.Unmarshal(outcome.Data, &maps); err != nil {
		return nil, fmt.Errorf("persistent maps: decode: %w", err)
	}
	return maps, nil
}

func (r *Robot) stateCommand(ctx context.Context, cmd string, params any) (RobotState, error) {
	data, err := r.command(ctx, cmd, params)
	if err != nil {
		return RobotState{}, err
	}
	var state RobotState
	if err := json.Unmarshal(data, &state); err != nil {
		return RobotState{}, fmt.Errorf("%s: decode state: %w", cmd, err)
	}

	r.mu.Lock()
	r.snapshot = Normalize(r.snapshot, state, r.cfg.Now())
	r.mu.Unlock()
	return state, nil
}

func (r *Robot) command(ctx context.Context, cmd string, params any) (json.RawMessage, error) {
	payload, err := json.Marshal(commandEnvelope{
		ReqID:  r.cfg.Counter.Next(),
		Cmd:    cmd,
		Params: params,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: encode: %w", cmd, err)
	}

	env, err := r.request(ctx, serviceNucleo, http.MethodPost, "/messages", payload)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cmd, err)
	}
	outcome := classify(env)
	observeOutcome(serviceNucleo, outcome.Kind)
	if err := outcome.commandError(); err != nil {
		return nil, fmt.Errorf("%s: %w", cmd, err)
	}
	return outcome.Data, nil
}

// request routes a call to the device-command service (HMAC signed) or to the
// fleet service (credential header).
func (r *Robot) request(ctx context.Context, service, method, endpoint string, payload []byte) (Envelope, error) {
	if r.id.Serial == "" || r.id.Secret == "" {
		return Envelope{}, ErrUnconfiguredDevice
	}

	date := r.cfg.Now().UTC().Format(http.TimeFormat)
	header := http.Header{}
	header.Set("Date", date)

	var target string
	switch service {
	case serviceNucleo:
		header.Set("Authorization", Sign(r.id.Serial, r.id.Secret, date, payload).Authorization())
		header.Set("Content-Type", "application/json")
		target = r.cfg.DeviceURL + "/vendors/neato/robots/" + url.PathEscape(r.id.Serial) + endpoint
	case serviceBeehive:
		header.Set("Authorization", r.id.Token)
		target = r.cfg.FleetURL + "/users/me/robots/" + url.PathEscape(r.id.Serial) + endpoint
	default:
		return Envelope{}, &ServiceUnknownError{Service: service}
	}

	env, err := r.cfg.Transport.Do(ctx, Request{
		Method: method,
		URL:    target,
		Body:   bytes.Clone(payload),
		Header: header,
	})
	if err != nil {
		observeTransportFailure(service)
		return Envelope{}, err
	}
	return env, nil
}
