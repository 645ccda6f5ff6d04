package botvac

import "encoding/json"

type Category int

const (
	CategoryOff                Category = 0
	CategoryManual             Category = 1
	CategoryHouse              Category = 2
	CategorySpot               Category = 3
	CategoryHousePersistentMap Category = 4
)

type Mode int

const (
	ModeEco   Mode = 1
	ModeTurbo Mode = 2
)

type CleaningFrequency int

const (
	FrequencyNormal CleaningFrequency = 1
	FrequencyDouble CleaningFrequency = 2
)

type NavigationMode int

const (
	NavigationNormal    NavigationMode = 1
	NavigationExtraCare NavigationMode = 2
)

const (
	cmdGetRobotState    = "getRobotState"
	cmdGetSchedule      = "getSchedule"
	cmdEnableSchedule   = "enableSchedule"
	cmdDisableSchedule  = "disableSchedule"
	cmdSendToBase       = "sendToBase"
	cmdStopCleaning     = "stopCleaning"
	cmdPauseCleaning    = "pauseCleaning"
	cmdResumeCleaning   = "resumeCleaning"
	cmdStartCleaning    = "startCleaning"
	cmdFindMe           = "findMe"
	cmdGetMapBoundaries = "getMapBoundaries"
)

// commandEnvelope is the body posted to the messages endpoint.
type commandEnvelope struct {
	ReqID  uint64 `json:"reqId"`
	Cmd    string `json:"cmd"`
	Params any    `json:"params,omitempty"`
}

type cleaningParams struct {
	BoundaryID     string             `json:"boundaryId,omitempty"`
	Category       Category           `json:"category"`
	Mode           Mode               `json:"mode"`
	Modifier       *CleaningFrequency `json:"modifier,omitempty"`
	NavigationMode NavigationMode     `json:"navigationMode"`
	SpotWidth      *int               `json:"spotWidth,omitempty"`
	SpotHeight     *int               `json:"spotHeight,omitempty"`
}

// cleanSettings are the effective cleaning choices; unset options fall back to
// the robot's snapshot.
type cleanSettings struct {
	eco        bool
	extraCare  bool
	noGoLines  bool
	repeat     bool
	spotWidth  int
	spotHeight int
}

// CleanOption overrides one cleaning setting for a single start call.
type CleanOption func(*cleanSettings)

func Eco(enabled bool) CleanOption {
	return func(s *cleanSettings) { s.eco = enabled }
}

func ExtraCare(enabled bool) CleanOption {
	return func(s *cleanSettings) { s.extraCare = enabled }
}

func NoGoLines(enabled bool) CleanOption {
	return func(s *cleanSettings) { s.noGoLines = enabled }
}

func SpotRepeat(enabled bool) CleanOption {
	return func(s *cleanSettings) { s.repeat = enabled }
}

// SpotSize sets the spot dimensions in centimetres. A zero dimension keeps the
// current value.
func SpotSize(width, height int) CleanOption {
	return func(s *cleanSettings) {
		if width > 0 {
			s.spotWidth = width
		}
		if height > 0 {
			s.spotHeight = height
		}
	}
}

func settingsFrom(snapshot Snapshot, opts []CleanOption) cleanSettings {
	settings := cleanSettings{
		eco:        snapshot.Eco,
		extraCare:  snapshot.ExtraCare,
		noGoLines:  snapshot.NoGoLines,
		repeat:     snapshot.SpotRepeat,
		spotWidth:  snapshot.SpotWidth,
		spotHeight: snapshot.SpotHeight,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&settings)
		}
	}
	return settings
}

func houseCleaningParams(s cleanSettings) cleaningParams {
	category := CategoryHouse
	if s.noGoLines {
		category = CategoryHousePersistentMap
	}
	modifier := FrequencyNormal
	return cleaningParams{
		Category:       category,
		Mode:           modeFor(s.eco),
		Modifier:       &modifier,
		NavigationMode: navigationFor(s.extraCare),
	}
}

func spotCleaningParams(s cleanSettings) cleaningParams {
	modifier := FrequencyNormal
	if s.repeat {
		modifier = FrequencyDouble
	}
	width, height := s.spotWidth, s.spotHeight
	return cleaningParams{
		Category:       CategorySpot,
		Mode:           modeFor(s.eco),
		Modifier:       &modifier,
		NavigationMode: navigationFor(s.extraCare),
		SpotWidth:      &width,
		SpotHeight:     &height,
	}
}

func boundaryCleaningParams(boundaryID string, s cleanSettings) cleaningParams {
	return cleaningParams{
		BoundaryID:     boundaryID,
		Category:       CategoryHousePersistentMap,
		Mode:           modeFor(s.eco),
		NavigationMode: navigationFor(s.extraCare),
	}
}

func modeFor(eco bool) Mode {
	if eco {
		return ModeEco
	}
	return ModeTurbo
}

func navigationFor(extraCare bool) NavigationMode {
	if extraCare {
		return NavigationExtraCare
	}
	return NavigationNormal
}

// PersistentMap is one floor map stored by the fleet service.
type PersistentMap struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	RawFloorMapURL     string `json:"raw_floor_map_url"`
	URL                string `json:"url"`
	URLValidForSeconds int    `json:"url_valid_for_seconds"`
}

// Boundary is a zone (polygon) or no-go line (polyline) on a persistent map.
type Boundary struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Type      string      `json:"type"`
	Color     string      `json:"color"`
	Enabled   bool        `json:"enabled"`
	Relevancy []float64   `json:"relevancy,omitempty"`
	Vertices  [][]float64 `json:"vertices"`
}

type MapBoundaries struct {
	MapID      string     `json:"map_id"`
	Boundaries []Boundary `json:"boundaries"`
}

// Schedule is the decoded form of getSchedule data.
type Schedule struct {
	Enabled bool            `json:"enabled"`
	Events  []ScheduleEvent `json:"events"`
}

type ScheduleEvent struct {
	Mode      Mode   `json:"mode"`
	Day       int    `json:"day"`
	StartTime string `json:"startTime"`
}

// DecodeSchedule parses the raw data returned by GetSchedule. The schedule
// lives under "data" in the command response.
func DecodeSchedule(raw json.RawMessage) (Schedule, error) {
	var wrapper struct {
		Data *Schedule `json:"data"`
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return Schedule{}, err
	}
	if wrapper.Data != nil {
		return *wrapper.Data, nil
	}
	var schedule Schedule
	if err := json.Unmarshal(raw, &schedule); err != nil {
		return Schedule{}, err
	}
	return schedule, nil
}
