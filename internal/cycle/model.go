package cycle

import (
	"slices"
	"time"
)

// HarvestMode selects how a cycle treats endpoints that were harvested before.
type HarvestMode string

const (
	ModeNormal  HarvestMode = "normal"
	ModeRetry   HarvestMode = "retry"
	ModeRefresh HarvestMode = "refresh"
)

// Valid reports whether m is a known mode.
func (m HarvestMode) Valid() bool {
	switch m {
	case ModeNormal, ModeRetry, ModeRefresh:
		return true
	}
	return false
}

// Scenario names the OAI-PMH verb sequence used to harvest an endpoint.
type Scenario string

const (
	ScenarioListRecords     Scenario = "ListRecords"
	ScenarioListIdentifiers Scenario = "ListIdentifiers"
	ScenarioListPrefixes    Scenario = "ListPrefixes"
)

// Valid reports whether s is a known scenario. The empty scenario means "use the default".
func (s Scenario) Valid() bool {
	switch s {
	case "", ScenarioListRecords, ScenarioListIdentifiers, ScenarioListPrefixes:
		return true
	}
	return false
}

// Overview holds the attributes that apply to a whole cycle.
type Overview struct {
	Mode     HarvestMode
	Scenario Scenario
	// Interval is the minimum time between two harvests of the same endpoint.
	Interval time.Duration
	LastRun  *time.Time
	CycleID  string
}

// EndpointKey identifies an endpoint record.
type EndpointKey struct {
	URI   string
	Group string
}

// EndpointRecord is the persisted state of one endpoint within one group.
type EndpointRecord struct {
	URI   string
	Group string

	Blocked     bool
	Retry       bool
	Refresh     bool
	Incremental bool
	Scenario    Scenario

	Attempted *time.Time
	Harvested *time.Time
	// Count is the number of successful harvests.
	Count int64
	// Increment is the number of records gathered by the latest harvest.
	Increment int64
}

// Key returns the record's identity.
func (r *EndpointRecord) Key() EndpointKey {
	return EndpointKey{URI: r.URI, Group: r.Group}
}

func (r *EndpointRecord) clone() *EndpointRecord {
	c := *r
	c.Attempted = cloneTime(r.Attempted)
	c.Harvested = cloneTime(r.Harvested)
	return &c
}

// Document is the root of the persisted state. It owns every EndpointRecord.
type Document struct {
	Overview  Overview
	Endpoints []*EndpointRecord
}

// NewDocument returns a document for a fresh state file.
func NewDocument() *Document {
	return &Document{Overview: Overview{Mode: ModeNormal}}
}

// find returns the first record with the given identity.
func (d *Document) find(key EndpointKey) *EndpointRecord {
	i := slices.IndexFunc(d.Endpoints, func(r *EndpointRecord) bool {
		return r.URI == key.URI && r.Group == key.Group
	})
	if i < 0 {
		return nil
	}
	return d.Endpoints[i]
}

// snapshot deep-copies the document so it can be encoded while views keep mutating the original.
func (d *Document) snapshot() *Document {
	c := &Document{Overview: d.Overview, Endpoints: make([]*EndpointRecord, len(d.Endpoints))}
	c.Overview.LastRun = cloneTime(d.Overview.LastRun)
	for i, r := range d.Endpoints {
		c.Endpoints[i] = r.clone()
	}
	return c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// normalizeTime strips the monotonic clock reading and location so stored
// times compare equal after a round trip through any codec.
func normalizeTime(t time.Time) *time.Time {
	v := t.UTC().Round(0)
	return &v
}
