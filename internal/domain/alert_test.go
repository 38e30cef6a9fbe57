package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activeAlert() Alert {
	return Alert{ID: "alt-1", DeviceID: "dev-1", Severity: SeverityWarning, Status: AlertActive, TriggeredAt: time.Now().UTC()}
}

func TestAlert_AcknowledgeThenResolve(t *testing.T) {
	ackAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	resAt := ackAt.Add(5 * time.Minute)

	acked, err := activeAlert().Acknowledge("usr-1", ackAt)
	require.NoError(t, err)
	assert.Equal(t, AlertAcknowledged, acked.Status)
	assert.Equal(t, "usr-1", acked.AcknowledgedBy)
	require.NotNil(t, acked.AcknowledgedAt)
	assert.Equal(t, ackAt, *acked.AcknowledgedAt)

	resolved, err := acked.Resolve("usr-2", resAt)
	require.NoError(t, err)
	assert.Equal(t, AlertResolved, resolved.Status)
	assert.Equal(t, "usr-2", resolved.ResolvedBy)
	assert.Equal(t, "usr-1", resolved.AcknowledgedBy)
	assert.Equal(t, ackAt, *resolved.AcknowledgedAt)
	assert.Equal(t, resAt, *resolved.ResolvedAt)
}

func TestAlert_ResolveDirectlyFromActive(t *testing.T) {
	resolved, err := activeAlert().Resolve("usr-2", time.Now())
	require.NoError(t, err)
	assert.Equal(t, AlertResolved, resolved.Status)
	assert.Nil(t, resolved.AcknowledgedAt)
}

func TestAlert_AcknowledgeTwiceIsIllegal(t *testing.T) {
	acked, err := activeAlert().Acknowledge("usr-1", time.Now())
	require.NoError(t, err)
	firstAt := *acked.AcknowledgedAt

	again, err := acked.Acknowledge("usr-9", time.Now().Add(time.Hour))
	assert.ErrorIs(t, err, ErrIllegalTransition)
	assert.Equal(t, "usr-1", again.AcknowledgedBy)
	assert.Equal(t, firstAt, *again.AcknowledgedAt)
}

func TestAlert_ResolvedIsTerminal(t *testing.T) {
	resolved, err := activeAlert().Resolve("usr-2", time.Now())
	require.NoError(t, err)

	after, err := resolved.Acknowledge("usr-1", time.Now())
	assert.ErrorIs(t, err, ErrIllegalTransition)
	assert.Equal(t, resolved, after)

	_, err = resolved.Resolve("usr-3", time.Now())
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestAlertFilter_Match(t *testing.T) {
	now := time.Now()
	a := Alert{DeviceID: "dev-1", Severity: SeverityCritical, Status: AlertActive, RuleID: "rule-1", TriggeredAt: now}
	earlier := now.Add(-time.Hour)
	later := now.Add(time.Hour)

	assert.True(t, AlertFilter{}.Match(a))
	assert.True(t, AlertFilter{Severity: SeverityCritical, DeviceID: "dev-1", Start: &earlier, End: &later}.Match(a))
	assert.False(t, AlertFilter{Status: AlertResolved}.Match(a))
	assert.False(t, AlertFilter{Start: &later}.Match(a))
	assert.False(t, AlertFilter{RuleID: "rule-2"}.Match(a))
}

func TestComputeAlertStats(t *testing.T) {
	stats := ComputeAlertStats([]Alert{
		{Status: AlertActive, Severity: SeverityCritical},
		{Status: AlertAcknowledged, Severity: SeverityWarning},
		{Status: AlertResolved, Severity: SeverityInfo},
		{Status: AlertActive, Severity: SeverityWarning},
	})
	assert.Equal(t, AlertStats{Total: 4, Active: 2, Acknowledged: 1, Resolved: 1, Critical: 1, Warning: 2, Info: 1}, stats)
}
