package botvac

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeState(t *testing.T, body string) RobotState {
	t.Helper()
	var state RobotState
	require.NoError(t, json.Unmarshal([]byte(body), &state))
	return state
}

func TestNormalizeMapsCleaningSettings(t *testing.T) {
	state := decodeState(t, `{"state":2,"action":2,"error":"ui_error_dust_bin_full","alert":null,
"cleaning":{"category":4,"mode":1,"modifier":2,"navigationMode":2,"spotWidth":200,"spotHeight":100,"boundaryId":"zone-1"},
"details":{"isCharging":true,"isDocked":false,"isScheduleEnabled":false,"dockHasBeenSeen":true,"charge":55}}`)

	snap := Normalize(Snapshot{}, state, fixedNow)
	assert.True(t, snap.Refreshed)
	assert.Equal(t, fixedNow, snap.UpdatedAt)
	assert.Equal(t, "busy", snap.StateName())
	assert.Equal(t, "spot_cleaning", snap.ActionName())
	assert.Equal(t, "ui_error_dust_bin_full", snap.Error)
	assert.Empty(t, snap.Alert)
	assert.True(t, snap.Eco)
	assert.True(t, snap.NoGoLines)
	assert.True(t, snap.ExtraCare)
	assert.True(t, snap.SpotRepeat)
	assert.Equal(t, 200, snap.SpotWidth)
	assert.Equal(t, 100, snap.SpotHeight)
	require.NotNil(t, snap.CleaningBoundaryID)
	assert.Equal(t, "zone-1", *snap.CleaningBoundaryID)
	assert.True(t, snap.IsCharging)
	assert.True(t, snap.DockHasBeenSeen)
}

func TestNormalizeKeepsSpotSizeWhenNotReported(t *testing.T) {
	prev := Snapshot{SpotWidth: 250, SpotHeight: 150}
	state := decodeState(t, `{"state":1,"cleaning":{"category":2,"mode":2,"spotWidth":0,"spotHeight":0}}`)

	snap := Normalize(prev, state, fixedNow)
	assert.Equal(t, 250, snap.SpotWidth)
	assert.Equal(t, 150, snap.SpotHeight)
	assert.False(t, snap.Eco)
	assert.Nil(t, snap.CleaningBoundaryID)
}

func TestNormalizeIsIdempotent(t *testing.T) {
	state := decodeState(t, stateIdleDocked)
	once := Normalize(Snapshot{}, state, fixedNow)
	twice := Normalize(once, state, fixedNow)
	assert.Equal(t, once, twice)
}

func TestNormalizeDoesNotAliasRawDocument(t *testing.T) {
	state := decodeState(t, stateIdleDocked)
	snap := Normalize(Snapshot{}, state, fixedNow)
	state.Meta[0] = 'X'
	assert.True(t, json.Valid(snap.Meta))
}

func TestUnknownStateAndActionNames(t *testing.T) {
	snap := Snapshot{State: 9, Action: 99}
	assert.Equal(t, "unknown", snap.StateName())
	assert.Equal(t, "unknown", snap.ActionName())
	assert.Equal(t, "invalid", Snapshot{}.StateName())
}

func TestNormalizeFoldsOnlyReportedSections(t *testing.T) {
	prev := Normalize(Snapshot{}, decodeState(t, stateIdleDocked), fixedNow)
	later := fixedNow.Add(time.Minute)

	partial := decodeState(t, `{"state":2,"action":1,"details":{"isCharging":false,"isDocked":false,"charge":90}}`)
	snap := Normalize(prev, partial, later)
	assert.Equal(t, later, snap.UpdatedAt)
	assert.Equal(t, 90.0, snap.Charge)
	assert.False(t, snap.IsDocked)
	assert.Equal(t, "busy", snap.StateName())
	assert.Equal(t, prev.CanStart, snap.CanStart)
	assert.Equal(t, prev.Eco, snap.Eco)
	assert.Equal(t, prev.Meta, snap.Meta)
	assert.Equal(t, prev.AvailableServices, snap.AvailableServices)
}

func TestNormalizeIgnoresReplyWithoutState(t *testing.T) {
	prev := Normalize(Snapshot{}, decodeState(t, stateIdleDocked), fixedNow)
	empty := decodeState(t, `{"version":1,"reqId":"2","result":"ok","data":{}}`)

	assert.False(t, empty.HasState())
	assert.Equal(t, prev, Normalize(prev, empty, fixedNow.Add(time.Minute)))
}
