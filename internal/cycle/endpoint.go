package cycle

import (
	"time"

	"git.home.luguber.info/inful/harvestcycle/internal/foundation"
)

// EndpointView reads and writes one endpoint record. It is bound to the
// record for its whole life; changes are visible to the Store immediately and
// durable after the next successful Save.
type EndpointView struct {
	record *EndpointRecord
}

// URI returns the endpoint URI.
func (v *EndpointView) URI() string { return v.record.URI }

// Group returns the endpoint group.
func (v *EndpointView) Group() string { return v.record.Group }

// Key returns the record identity.
func (v *EndpointView) Key() EndpointKey { return v.record.Key() }

func (v *EndpointView) Blocked() bool          { return v.record.Blocked }
func (v *EndpointView) SetBlocked(b bool)      { v.record.Blocked = b }
func (v *EndpointView) Retry() bool            { return v.record.Retry }
func (v *EndpointView) SetRetry(b bool)        { v.record.Retry = b }
func (v *EndpointView) Refresh() bool          { return v.record.Refresh }
func (v *EndpointView) SetRefresh(b bool)      { v.record.Refresh = b }
func (v *EndpointView) Incremental() bool      { return v.record.Incremental }
func (v *EndpointView) SetIncremental(b bool)  { v.record.Incremental = b }
func (v *EndpointView) Count() int64           { return v.record.Count }
func (v *EndpointView) Increment() int64       { return v.record.Increment }
func (v *EndpointView) Scenario() Scenario     { return v.record.Scenario }

// SetScenario overrides the cycle's scenario for this endpoint. The empty scenario clears the override.
func (v *EndpointView) SetScenario(s Scenario) error {
	if !s.Valid() {
		return invalidArgument("unknown scenario").
			WithContext("endpoint", v.record.URI).
			WithContext("scenario", string(s)).
			Build()
	}
	v.record.Scenario = s
	return nil
}

// SetCount overwrites the number of successful harvests.
func (v *EndpointView) SetCount(n int64) error {
	if n < 0 {
		return invalidArgument("harvest count is negative").WithContext("endpoint", v.record.URI).Build()
	}
	v.record.Count = n
	return nil
}

// SetIncrement records how many records the latest harvest gathered.
func (v *EndpointView) SetIncrement(n int64) error {
	if n < 0 {
		return invalidArgument("harvest increment is negative").WithContext("endpoint", v.record.URI).Build()
	}
	v.record.Increment = n
	return nil
}

// Attempted returns when a harvest of the endpoint was last attempted.
func (v *EndpointView) Attempted() foundation.Option[time.Time] {
	return foundation.FromPointer(v.record.Attempted)
}

func (v *EndpointView) SetAttempted(t time.Time) { v.record.Attempted = normalizeTime(t) }

// Harvested returns when the endpoint was last harvested successfully.
func (v *EndpointView) Harvested() foundation.Option[time.Time] {
	return foundation.FromPointer(v.record.Harvested)
}

func (v *EndpointView) SetHarvested(t time.Time) { v.record.Harvested = normalizeTime(t) }

// DoneHarvesting records the outcome of a harvest attempt made at now. A
// successful attempt also moves the harvested date and bumps the count.
func (v *EndpointView) DoneHarvesting(done bool, now time.Time) {
	v.SetAttempted(now)
	if done {
		v.SetHarvested(now)
		v.record.Count++
	}
}

// LastAttemptFailed reports whether the latest attempt did not end in a harvest.
func (v *EndpointView) LastAttemptFailed() bool {
	r := v.record
	if r.Attempted == nil {
		return false
	}
	return r.Harvested == nil || r.Harvested.Before(*r.Attempted)
}

// IncrementalFrom returns the date a selective harvest should start from.
// It is None when the endpoint does not allow incremental harvesting or was never harvested.
func (v *EndpointView) IncrementalFrom() foundation.Option[time.Time] {
	if !v.record.Incremental {
		return foundation.None[time.Time]()
	}
	return v.Harvested()
}

// Due reports whether the endpoint should be harvested in a cycle described by overview at now.
//
//   - blocked endpoints are never due
//   - retry mode picks endpoints that allow retries and whose last attempt failed
//   - refresh mode picks endpoints that allow a refresh
//   - normal mode picks endpoints never harvested or harvested at least one interval ago
func (v *EndpointView) Due(overview *OverviewView, now time.Time) bool {
	r := v.record
	if r.Blocked {
		return false
	}
	switch overview.Mode() {
	case ModeRetry:
		return r.Retry && v.LastAttemptFailed()
	case ModeRefresh:
		return r.Refresh
	default:
		if r.Harvested == nil {
			return true
		}
		return now.Sub(*r.Harvested) >= overview.Interval()
	}
}

// EffectiveScenario returns the endpoint's scenario, falling back to the cycle's.
func (v *EndpointView) EffectiveScenario(overview *OverviewView) Scenario {
	if v.record.Scenario != "" {
		return v.record.Scenario
	}
	if s := overview.Scenario(); s != "" {
		return s
	}
	return ScenarioListRecords
}
