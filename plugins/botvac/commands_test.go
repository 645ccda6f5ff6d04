package botvac

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHouseCleaningParamsJSON(t *testing.T) {
	params := houseCleaningParams(cleanSettings{eco: true, noGoLines: true})
	data, err := json.Marshal(params)
	require.NoError(t, err)
	assert.JSONEq(t, `{"category":4,"mode":1,"modifier":1,"navigationMode":1}`, string(data))
}

func TestSpotCleaningParamsJSON(t *testing.T) {
	params := spotCleaningParams(cleanSettings{repeat: true, extraCare: true, spotWidth: 100, spotHeight: 200})
	data, err := json.Marshal(params)
	require.NoError(t, err)
	assert.JSONEq(t, `{"category":3,"mode":2,"modifier":2,"navigationMode":2,"spotWidth":100,"spotHeight":200}`, string(data))
}

func TestOptionsOverrideSnapshot(t *testing.T) {
	snap := Snapshot{Eco: true, ExtraCare: true, SpotWidth: 150, SpotHeight: 150}
	settings := settingsFrom(snap, []CleanOption{Eco(false), nil, SpotSize(300, 100)})
	assert.False(t, settings.eco)
	assert.True(t, settings.extraCare)
	assert.Equal(t, 300, settings.spotWidth)
	assert.Equal(t, 100, settings.spotHeight)
}

func TestDecodeScheduleWithoutWrapper(t *testing.T) {
	schedule, err := DecodeSchedule(json.RawMessage(`{"enabled":true,"events":[{"mode":2,"day":6,"startTime":"10:15"}]}`))
	require.NoError(t, err)
	assert.True(t, schedule.Enabled)
	assert.Equal(t, []ScheduleEvent{{Mode: ModeTurbo, Day: 6, StartTime: "10:15"}}, schedule.Events)
}

func TestCommandRequestOptions(t *testing.T) {
	eco, repeat := true, false
	req := CommandRequest{Eco: &eco, SpotRepeat: &repeat, SpotWidth: 120}
	settings := settingsFrom(Snapshot{SpotRepeat: true, SpotHeight: 80}, req.options())
	assert.True(t, settings.eco)
	assert.False(t, settings.repeat)
	assert.Equal(t, 120, settings.spotWidth)
	assert.Equal(t, 80, settings.spotHeight)
}

func TestExecuteDispatch(t *testing.T) {
	tests := map[string]string{
		ActionStop:            cmdStopCleaning,
		ActionPause:           cmdPauseCleaning,
		ActionResume:          cmdResumeCleaning,
		ActionDock:            cmdSendToBase,
		ActionFindMe:          cmdFindMe,
		ActionEnableSchedule:  cmdEnableSchedule,
		ActionDisableSchedule: cmdDisableSchedule,
		ActionRefresh:         cmdGetRobotState,
		" Start ":             cmdStartCleaning,
	}
	for action, want := range tests {
		t.Run(action, func(t *testing.T) {
			fake, server := newFakeNeato(t)
			robot := testRobot(server.URL, "OPS01", "kitchen-secret")

			require.NoError(t, Execute(context.Background(), robot, CommandRequest{Command: action}))
			sent := fake.sent()
			require.Len(t, sent, 1)
			assert.Equal(t, want, sent[0].Cmd)
		})
	}
}

func TestExecuteRejectsBadCommands(t *testing.T) {
	robot := testRobot("http://127.0.0.1:1", "OPS01", "kitchen-secret")

	err := Execute(context.Background(), robot, CommandRequest{})
	var missing *MissingParameterError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "command", missing.Name)

	err = Execute(context.Background(), robot, CommandRequest{Command: "dance"})
	assert.ErrorIs(t, err, ErrUnknownCommand)
}
