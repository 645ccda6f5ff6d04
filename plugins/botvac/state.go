package botvac

import (
	"encoding/json"
	"time"
)

// RobotState is the raw state document returned by getRobotState and by every
// command that reports state back. Sections absent from a reply stay nil.
type RobotState struct {
	Version           int               `json:"version"`
	ReqID             json.RawMessage   `json:"reqId,omitempty"`
	Result            string            `json:"result"`
	Error             *string           `json:"error"`
	Alert             *string           `json:"alert"`
	State             int               `json:"state"`
	Action            int               `json:"action"`
	Cleaning          *CleaningState     `json:"cleaning"`
	Details           *StateDetails      `json:"details"`
	AvailableCommands *AvailableCommands `json:"availableCommands"`
	AvailableServices json.RawMessage    `json:"availableServices"`
	Meta              json.RawMessage    `json:"meta"`
}

// HasState reports whether the reply carries a state document at all. findMe
// and similar commands may answer with only {"result":"ok","data":{}}.
func (s RobotState) HasState() bool {
	return s.Details != nil || s.AvailableCommands != nil || s.Cleaning != nil
}

type CleaningState struct {
	Category       Category          `json:"category"`
	Mode           Mode              `json:"mode"`
	Modifier       CleaningFrequency `json:"modifier"`
	NavigationMode NavigationMode    `json:"navigationMode"`
	SpotWidth      int               `json:"spotWidth"`
	SpotHeight     int               `json:"spotHeight"`
	BoundaryID     *string           `json:"boundaryId"`
}

type StateDetails struct {
	IsCharging        bool    `json:"isCharging"`
	IsDocked          bool    `json:"isDocked"`
	IsScheduleEnabled bool    `json:"isScheduleEnabled"`
	DockHasBeenSeen   bool    `json:"dockHasBeenSeen"`
	Charge            float64 `json:"charge"`
}

type AvailableCommands struct {
	Start    bool `json:"start"`
	Stop     bool `json:"stop"`
	Pause    bool `json:"pause"`
	Resume   bool `json:"resume"`
	GoToBase bool `json:"goToBase"`
}

// Snapshot mirrors the last known state of a robot.
type Snapshot struct {
	Refreshed bool      `json:"refreshed"`
	UpdatedAt time.Time `json:"updated_at"`

	State  int    `json:"state"`
	Action int    `json:"action"`
	Error  string `json:"error,omitempty"`
	Alert  string `json:"alert,omitempty"`

	IsCharging        bool    `json:"is_charging"`
	IsDocked          bool    `json:"is_docked"`
	IsScheduleEnabled bool    `json:"is_schedule_enabled"`
	DockHasBeenSeen   bool    `json:"dock_has_been_seen"`
	Charge            float64 `json:"charge"`

	CanStart    bool `json:"can_start"`
	CanStop     bool `json:"can_stop"`
	CanPause    bool `json:"can_pause"`
	CanResume   bool `json:"can_resume"`
	CanGoToBase bool `json:"can_go_to_base"`

	Eco                bool    `json:"eco"`
	NoGoLines          bool    `json:"no_go_lines"`
	ExtraCare          bool    `json:"extra_care"`
	SpotWidth          int     `json:"spot_width"`
	SpotHeight         int     `json:"spot_height"`
	SpotRepeat         bool    `json:"spot_repeat"`
	CleaningBoundaryID *string `json:"cleaning_boundary_id"`

	Meta              json.RawMessage `json:"meta,omitempty"`
	AvailableServices json.RawMessage `json:"available_services,omitempty"`
}

func (s Snapshot) StateName() string {
	return stateName(s.State)
}

func (s Snapshot) ActionName() string {
	return actionName(s.Action)
}

// Normalize folds a raw state document into prev. Sections missing from raw
// keep their previous values, and a reply without any state section leaves
// prev untouched. A zero spot width or height means "not reported".
func Normalize(prev Snapshot, raw RobotState, now time.Time) Snapshot {
	if !raw.HasState() {
		return prev
	}
	next := prev
	next.Refreshed = true
	next.UpdatedAt = now

	next.State = raw.State
	next.Action = raw.Action
	next.Error = stringOrEmpty(raw.Error)
	next.Alert = stringOrEmpty(raw.Alert)

	if d := raw.Details; d != nil {
		next.IsCharging = d.IsCharging
		next.IsDocked = d.IsDocked
		next.IsScheduleEnabled = d.IsScheduleEnabled
		next.DockHasBeenSeen = d.DockHasBeenSeen
		next.Charge = d.Charge
	}

	if c := raw.AvailableCommands; c != nil {
		next.CanStart = c.Start
		next.CanStop = c.Stop
		next.CanPause = c.Pause
		next.CanResume = c.Resume
		next.CanGoToBase = c.GoToBase
	}

	if c := raw.Cleaning; c != nil {
		next.Eco = c.Mode == ModeEco
		next.NoGoLines = c.Category == CategoryHousePersistentMap
		next.ExtraCare = c.NavigationMode == NavigationExtraCare
		if c.SpotWidth != 0 {
			next.SpotWidth = c.SpotWidth
		}
		if c.SpotHeight != 0 {
			next.SpotHeight = c.SpotHeight
		}
		next.SpotRepeat = c.Modifier == FrequencyDouble
		next.CleaningBoundaryID = cloneString(c.BoundaryID)
	}

	if raw.Meta != nil {
		next.Meta = cloneRaw(raw.Meta)
	}
	if raw.AvailableServices != nil {
		next.AvailableServices = cloneRaw(raw.AvailableServices)
	}
	return next
}

// clone returns s with no memory shared with the receiver.
func (s Snapshot) clone() Snapshot {
	s.CleaningBoundaryID = cloneString(s.CleaningBoundaryID)
	s.Meta = cloneRaw(s.Meta)
	s.AvailableServices = cloneRaw(s.AvailableServices)
	return s
}

var stateNames = map[int]string{
	0: "invalid",
	1: "idle",
	2: "busy",
	3: "paused",
	4: "error",
}

var actionNames = map[int]string{
	0:  "invalid",
	1:  "house_cleaning",
	2:  "spot_cleaning",
	3:  "manual_cleaning",
	4:  "docking",
	5:  "user_menu_active",
	6:  "suspended_cleaning",
	7:  "updating",
	8:  "copying_logs",
	9:  "recovering_location",
	10: "iec_test",
	11: "map_cleaning",
	12: "exploring_map",
	13: "acquiring_persistent_map_ids",
	14: "creating_and_uploading_map",
	15: "suspended_exploration",
}

func stateName(code int) string {
	if name, ok := stateNames[code]; ok {
		return name
	}
	return "unknown"
}

func actionName(code int) string {
	if name, ok := actionNames[code]; ok {
		return name
	}
	return "unknown"
}

func stringOrEmpty(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	out := *value
	return &out
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	out := make(json.RawMessage, len(raw))
	copy(out, raw)
	return out
}
