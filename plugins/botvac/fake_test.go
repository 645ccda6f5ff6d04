package botvac

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/joshp123/gobotvac/internal/blob"
	"github.com/joshp123/gobotvac/internal/retry"
)

const stateIdleDocked = `{"version":1,"reqId":"1","result":"ok","error":null,"alert":null,"state":1,"action":0,
"cleaning":{"category":2,"mode":1,"modifier":1,"navigationMode":1,"spotWidth":0,"spotHeight":0},
"details":{"isCharging":false,"isDocked":true,"isScheduleEnabled":true,"dockHasBeenSeen":false,"charge":98},
"availableCommands":{"start":true,"stop":false,"pause":false,"resume":false,"goToBase":false},
"availableServices":{"houseCleaning":"basic-3","findMe":"basic-1"},
"meta":{"modelName":"BotVacD7Connected","firmware":"4.5.3-189"}}`

const robotList = `[
{"name":"Kitchen","serial":"OPS01","secret_key":"kitchen-secret","model":"BotVacD7Connected","firmware":"4.5.3-189","mac_address":"40:bd:32:00:00:01","nucleo_url":"https://nucleo.neatocloud.com:4443","persistent_maps":["map-1"]},
{"name":"Upstairs","serial":"OPS02","secret_key":"stale-secret","model":"BotVacConnected","firmware":"3.4.0","mac_address":"40:bd:32:00:00:02","nucleo_url":"https://nucleo.neatocloud.com:4443"}
]`

var fixedNow = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

// sentCommand is one signed message received by the fake device service.
type sentCommand struct {
	Serial string
	Header http.Header
	ReqID  uint64          `json:"reqId"`
	Cmd    string          `json:"cmd"`
	Params json.RawMessage `json:"params"`
}

// fakeNeato serves the fleet and device endpoints for tests. Device messages
// are verified against secrets; a bad signature gets a 403.
type fakeNeato struct {
	t *testing.T

	mu              sync.Mutex
	secrets         map[string]string
	sessionToken    string
	oauthToken      string
	sessionStatus   int
	sessionBody     string
	sessionFailures int
	sessionCalls    int
	listCalls       int
	robots          string
	maps            string
	commands        []sentCommand
	reply           func(cmd sentCommand) string
}

func newFakeNeato(t *testing.T) (*fakeNeato, *httptest.Server) {
	t.Helper()
	f := &fakeNeato{
		t:            t,
		secrets:      map[string]string{"OPS01": "kitchen-secret", "OPS02": "right-secret"},
		sessionToken: "abc",
		oauthToken:   "oat",
		robots:       robotList,
		maps:         `[{"id":"map-1","name":"Ground floor","url":"https://maps.example/1.png","url_valid_for_seconds":3600}]`,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /sessions", f.session)
	mux.HandleFunc("GET /users/me/robots", f.list)
	mux.HandleFunc("GET /users/me/robots/{serial}/persistent_maps", f.persistentMaps)
	mux.HandleFunc("POST /vendors/neato/robots/{serial}/messages", f.message)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return f, server
}

func (f *fakeNeato) session(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessionCalls++

	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad body", http.StatusBadRequest)
		return
	}
	if f.sessionFailures > 0 {
		f.sessionFailures--
		http.Error(w, "upstream unavailable", http.StatusInternalServerError)
		return
	}
	if f.sessionStatus != 0 {
		w.WriteHeader(f.sessionStatus)
		_, _ = io.WriteString(w, f.sessionBody)
		return
	}
	if f.sessionBody != "" {
		_, _ = io.WriteString(w, f.sessionBody)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"access_token": f.sessionToken})
}

func (f *fakeNeato) authorized(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return auth == "Token token="+f.sessionToken || auth == "Bearer "+f.oauthToken
}

func (f *fakeNeato) list(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if !f.authorized(r) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"message":"Unauthorized"}`)
		return
	}
	_, _ = io.WriteString(w, f.robots)
}

func (f *fakeNeato) persistentMaps(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.authorized(r) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	_, _ = io.WriteString(w, f.maps)
}

func (f *fakeNeato) message(w http.ResponseWriter, r *http.Request) {
	serial := r.PathValue("serial")
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	secret := f.secrets[serial]
	f.mu.Unlock()
	want := Sign(serial, secret, r.Header.Get("Date"), payload).Authorization()
	if secret == "" || r.Header.Get("Authorization") != want {
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"message":"Could not find robot_serial for specified vendor_name"}`)
		return
	}

	cmd := sentCommand{Serial: serial, Header: r.Header.Clone()}
	if err := json.Unmarshal(payload, &cmd); err != nil {
		f.t.Errorf("decode command: %v", err)
	}

	f.mu.Lock()
	f.commands = append(f.commands, cmd)
	reply := f.reply
	f.mu.Unlock()

	if reply != nil {
		_, _ = io.WriteString(w, reply(cmd))
		return
	}
	_, _ = io.WriteString(w, stateIdleDocked)
}

// configure mutates the fake under its lock.
func (f *fakeNeato) configure(fn func(f *fakeNeato)) {
	f.mu.Lock()
	fn(f)
	f.mu.Unlock()
}

func (f *fakeNeato) sessions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessionCalls
}

func (f *fakeNeato) lists() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

func (f *fakeNeato) sent() []sentCommand {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentCommand(nil), f.commands...)
}

func (f *fakeNeato) setReply(reply func(cmd sentCommand) string) {
	f.mu.Lock()
	f.reply = reply
	f.mu.Unlock()
}

func testClient(serverURL string, opts ...Option) *Client {
	base := []Option{
		WithFleetURL(serverURL),
		WithDeviceURL(serverURL),
		WithCounter(&AtomicCounter{}),
		WithClock(func() time.Time { return fixedNow }),
		WithAuthRetry(retry.Attempts(3, 0)),
		WithListRetry(retry.Attempts(3, 0)),
		WithRefreshRetry(retry.Once()),
	}
	return NewClient(append(base, opts...)...)
}

func testRobot(serverURL, serial, secret string) *Robot {
	return NewRobot(Identity{Name: "Kitchen", Serial: serial, Secret: secret, Token: "Token token=abc"}, RobotConfig{
		Counter:   &AtomicCounter{},
		Now:       func() time.Time { return fixedNow },
		FleetURL:  serverURL,
		DeviceURL: serverURL,
	})
}

type memoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memoryStore) Load(_ context.Context, name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if data, ok := m.data[name]; ok {
		return data, nil
	}
	return nil, blob.ErrNotFound
}

func (m *memoryStore) Save(_ context.Context, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = make(map[string][]byte)
	}
	m.data[name] = data
	return nil
}
