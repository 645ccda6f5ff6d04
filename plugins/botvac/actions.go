package botvac

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownCommand = errors.New("botvac: unknown command")

// Command names accepted by the daemon surfaces.
const (
	ActionStart           = "start"
	ActionSpot            = "spot"
	ActionBoundary        = "boundary"
	ActionStop            = "stop"
	ActionPause           = "pause"
	ActionResume          = "resume"
	ActionDock            = "dock"
	ActionFindMe          = "find_me"
	ActionEnableSchedule  = "enable_schedule"
	ActionDisableSchedule = "disable_schedule"
	ActionRefresh         = "refresh"
)

// Actions lists the command names in help order.
var Actions = []string{
	ActionStart, ActionSpot, ActionBoundary, ActionStop, ActionPause, ActionResume,
	ActionDock, ActionFindMe, ActionEnableSchedule, ActionDisableSchedule, ActionRefresh,
}

// CommandRequest is the wire form of a robot command.
type CommandRequest struct {
	Robot      string `json:"robot"`
	Command    string `json:"command"`
	BoundaryID string `json:"boundary_id,omitempty"`
	Eco        *bool  `json:"eco,omitempty"`
	ExtraCare  *bool  `json:"extra_care,omitempty"`
	NoGoLines  *bool  `json:"no_go_lines,omitempty"`
	SpotRepeat *bool  `json:"spot_repeat,omitempty"`
	SpotWidth  int    `json:"spot_width,omitempty"`
	SpotHeight int    `json:"spot_height,omitempty"`
}

func (r CommandRequest) options() []CleanOption {
	var opts []CleanOption
	if r.Eco != nil {
		opts = append(opts, Eco(*r.Eco))
	}
	if r.ExtraCare != nil {
		opts = append(opts, ExtraCare(*r.ExtraCare))
	}
	if r.NoGoLines != nil {
		opts = append(opts, NoGoLines(*r.NoGoLines))
	}
	if r.SpotRepeat != nil {
		opts = append(opts, SpotRepeat(*r.SpotRepeat))
	}
	if r.SpotWidth > 0 || r.SpotHeight > 0 {
		opts = append(opts, SpotSize(r.SpotWidth, r.SpotHeight))
	}
	return opts
}

// Execute runs req against robot.
func Execute(ctx context.Context, robot *Robot, req CommandRequest) error {
	switch strings.ToLower(strings.TrimSpace(req.Command)) {
	case ActionStart:
		return robot.StartCleaning(ctx, req.options()...)
	case ActionSpot:
		return robot.StartSpotCleaning(ctx, req.options()...)
	case ActionBoundary:
		return robot.StartCleaningBoundary(ctx, req.BoundaryID, req.options()...)
	case ActionStop:
		return robot.StopCleaning(ctx)
	case ActionPause:
		return robot.PauseCleaning(ctx)
	case ActionResume:
		return robot.ResumeCleaning(ctx)
	case ActionDock:
		return robot.SendToBase(ctx)
	case ActionFindMe:
		return robot.FindMe(ctx)
	case ActionEnableSchedule:
		return robot.EnableSchedule(ctx)
	case ActionDisableSchedule:
		return robot.DisableSchedule(ctx)
	case ActionRefresh:
		_, err := robot.GetState(ctx)
		return err
	case "":
		return &MissingParameterError{Name: "command"}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, req.Command)
	}
}

// RobotView is the wire form of a managed robot.
type RobotView struct {
	Serial     string   `json:"serial"`
	Name       string   `json:"name"`
	Info       Info     `json:"info"`
	StateName  string   `json:"state_name"`
	ActionName string   `json:"action_name"`
	Snapshot   Snapshot `json:"snapshot"`
}

func ViewOf(robot *Robot) RobotView {
	snap := robot.Snapshot()
	return RobotView{
		Serial:     robot.Serial(),
		Name:       robot.Name(),
		Info:       robot.Info(),
		StateName:  snap.StateName(),
		ActionName: snap.ActionName(),
		Snapshot:   snap,
	}
}

// scheduleView pairs the typed schedule with the data the robot sent.
type scheduleView struct {
	Schedule Schedule        `json:"schedule"`
	Raw      json.RawMessage `json:"raw"`
}

func scheduleOf(ctx context.Context, robot *Robot) (scheduleView, error) {
	raw, err := robot.GetSchedule(ctx)
	if err != nil {
		return scheduleView{}, err
	}
	schedule, err := DecodeSchedule(raw)
	if err != nil {
		return scheduleView{}, err
	}
	return scheduleView{Schedule: schedule, Raw: raw}, nil
}
