package cycle

import (
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/harvestcycle/internal/foundation"
)

// OverviewView reads and writes the cycle-wide attributes of a Store's
// document. All views from one Store share the same state.
type OverviewView struct {
	overview *Overview
}

// Mode returns the harvest mode.
func (v *OverviewView) Mode() HarvestMode { return v.overview.Mode }

// SetMode changes the harvest mode.
func (v *OverviewView) SetMode(m HarvestMode) error {
	if !m.Valid() {
		return invalidArgument("unknown harvest mode").WithContext("mode", string(m)).Build()
	}
	v.overview.Mode = m
	return nil
}

// Scenario returns the default scenario for endpoints without one of their own.
func (v *OverviewView) Scenario() Scenario { return v.overview.Scenario }

// SetScenario changes the default scenario.
func (v *OverviewView) SetScenario(s Scenario) error {
	if !s.Valid() {
		return invalidArgument("unknown scenario").WithContext("scenario", string(s)).Build()
	}
	v.overview.Scenario = s
	return nil
}

// Interval returns the minimum time between harvests of one endpoint.
func (v *OverviewView) Interval() time.Duration { return v.overview.Interval }

// SetInterval changes the harvest interval. Zero means "harvest every cycle".
func (v *OverviewView) SetInterval(d time.Duration) error {
	if d < 0 {
		return invalidArgument("harvest interval is negative").WithContext("interval", d.String()).Build()
	}
	v.overview.Interval = d
	return nil
}

// LastRun returns when the latest cycle started.
func (v *OverviewView) LastRun() foundation.Option[time.Time] {
	return foundation.FromPointer(v.overview.LastRun)
}

// SetLastRun records when a cycle started.
func (v *OverviewView) SetLastRun(t time.Time) {
	v.overview.LastRun = normalizeTime(t)
}

// CycleID returns the identifier of the latest cycle, empty before the first one.
func (v *OverviewView) CycleID() string { return v.overview.CycleID }

// StartCycle assigns a new cycle identifier, records now as the last run and returns the identifier.
func (v *OverviewView) StartCycle(now time.Time) string {
	id := uuid.NewString()
	v.overview.CycleID = id
	v.SetLastRun(now)
	return id
}
