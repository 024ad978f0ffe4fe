package cycle

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/harvestcycle/internal/foundation/errors"
)

// currentVersion is written to every saved document. Files without a version
// are treated as empty.
const currentVersion = 1

// Format selects the encoding of the state file.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatXML  Format = "xml"
)

// Valid reports whether f is a supported format.
func (f Format) Valid() bool {
	switch f {
	case FormatJSON, FormatYAML, FormatXML:
		return true
	}
	return false
}

// FormatForPath picks the format from the file extension, defaulting to JSON.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".xml":
		return FormatXML
	default:
		return FormatJSON
	}
}

type wireDocument struct {
	XMLName   xml.Name       `json:"-" yaml:"-" xml:"overview"`
	Version   int            `json:"version" yaml:"version" xml:"version,attr"`
	Mode      string         `json:"mode" yaml:"mode" xml:"mode"`
	Scenario  string         `json:"scenario,omitempty" yaml:"scenario,omitempty" xml:"scenario,omitempty"`
	Interval  string         `json:"interval,omitempty" yaml:"interval,omitempty" xml:"interval,omitempty"`
	LastRun   string         `json:"last_run,omitempty" yaml:"last_run,omitempty" xml:"lastRun,omitempty"`
	CycleID   string         `json:"cycle_id,omitempty" yaml:"cycle_id,omitempty" xml:"cycleId,omitempty"`
	Endpoints []wireEndpoint `json:"endpoints" yaml:"endpoints" xml:"endpoint"`
}

type wireEndpoint struct {
	URI         string `json:"uri" yaml:"uri" xml:"URI"`
	Group       string `json:"group" yaml:"group" xml:"group"`
	Blocked     bool   `json:"blocked,omitempty" yaml:"blocked,omitempty" xml:"block,omitempty"`
	Retry       bool   `json:"retry,omitempty" yaml:"retry,omitempty" xml:"retry,omitempty"`
	Refresh     bool   `json:"refresh,omitempty" yaml:"refresh,omitempty" xml:"refresh,omitempty"`
	Incremental bool   `json:"incremental,omitempty" yaml:"incremental,omitempty" xml:"incremental,omitempty"`
	Scenario    string `json:"scenario,omitempty" yaml:"scenario,omitempty" xml:"scenario,omitempty"`
	Attempted   string `json:"attempted,omitempty" yaml:"attempted,omitempty" xml:"attempted,omitempty"`
	Harvested   string `json:"harvested,omitempty" yaml:"harvested,omitempty" xml:"harvested,omitempty"`
	Count       int64  `json:"count" yaml:"count" xml:"count"`
	Increment   int64  `json:"increment" yaml:"increment" xml:"increment"`
}

// Encode serializes doc in the given format.
func Encode(doc *Document, format Format) ([]byte, error) {
	w := toWire(doc)
	var (
		data []byte
		err  error
	)
	switch format {
	case FormatJSON:
		data, err = json.MarshalIndent(w, "", "  ")
	case FormatYAML:
		data, err = yaml.Marshal(w)
	case FormatXML:
		data, err = xml.MarshalIndent(w, "", "  ")
		if err == nil {
			data = append([]byte(xml.Header), data...)
		}
	default:
		return nil, errors.ValidationError("unsupported state format").WithContext("format", string(format)).Build()
	}
	if err != nil {
		return nil, errors.PersistError("failed to encode overview").
			WithCause(err).
			WithRetry(errors.RetryNever).
			WithContext("format", string(format)).
			Build()
	}
	if format != FormatXML && !bytes.HasSuffix(data, []byte("\n")) {
		data = append(data, '\n')
	}
	return data, nil
}

// Decode parses data in the given format. Empty, unversioned and malformed
// input fails with a load error; duplicate identities fail with an integrity error.
func Decode(data []byte, format Format) (*Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.LoadError("state file is empty").Build()
	}

	var w wireDocument
	var err error
	switch format {
	case FormatJSON:
		err = json.Unmarshal(data, &w)
	case FormatYAML:
		err = yaml.Unmarshal(data, &w)
	case FormatXML:
		err = xml.Unmarshal(data, &w)
	default:
		return nil, errors.ValidationError("unsupported state format").WithContext("format", string(format)).Build()
	}
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryLoad, "failed to parse state file").
			Fatal().
			WithContext("format", string(format)).
			Build()
	}

	if w.Version == 0 {
		return nil, errors.LoadError("state file holds no versioned overview").Build()
	}
	if w.Version > currentVersion {
		return nil, errors.LoadError(fmt.Sprintf("state file version %d is newer than supported version %d", w.Version, currentVersion)).Build()
	}

	doc, err := fromWire(&w)
	if err != nil {
		return nil, err
	}
	if err := checkIntegrity(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func toWire(doc *Document) *wireDocument {
	o := doc.Overview
	w := &wireDocument{
		Version:   currentVersion,
		Mode:      string(o.Mode),
		Scenario:  string(o.Scenario),
		LastRun:   formatTime(o.LastRun),
		CycleID:   o.CycleID,
		Endpoints: make([]wireEndpoint, 0, len(doc.Endpoints)),
	}
	if o.Interval != 0 {
		w.Interval = o.Interval.String()
	}
	for _, r := range doc.Endpoints {
		w.Endpoints = append(w.Endpoints, wireEndpoint{
			URI:         r.URI,
			Group:       r.Group,
			Blocked:     r.Blocked,
			Retry:       r.Retry,
			Refresh:     r.Refresh,
			Incremental: r.Incremental,
			Scenario:    string(r.Scenario),
			Attempted:   formatTime(r.Attempted),
			Harvested:   formatTime(r.Harvested),
			Count:       r.Count,
			Increment:   r.Increment,
		})
	}
	return w
}

func fromWire(w *wireDocument) (*Document, error) {
	doc := &Document{Endpoints: make([]*EndpointRecord, 0, len(w.Endpoints))}

	mode := HarvestMode(w.Mode)
	if mode == "" {
		mode = ModeNormal
	}
	if !mode.Valid() {
		return nil, errors.LoadError("unknown harvest mode").WithContext("mode", w.Mode).Build()
	}
	scenario := Scenario(w.Scenario)
	if !scenario.Valid() {
		return nil, errors.LoadError("unknown scenario").WithContext("scenario", w.Scenario).Build()
	}
	doc.Overview.Mode = mode
	doc.Overview.Scenario = scenario
	doc.Overview.CycleID = w.CycleID

	if w.Interval != "" {
		d, err := time.ParseDuration(w.Interval)
		if err != nil || d < 0 {
			return nil, errors.WrapError(err, errors.CategoryLoad, "invalid harvest interval").
				Fatal().
				WithContext("interval", w.Interval).
				Build()
		}
		doc.Overview.Interval = d
	}
	lastRun, err := parseTime("last_run", w.LastRun)
	if err != nil {
		return nil, err
	}
	doc.Overview.LastRun = lastRun

	for i := range w.Endpoints {
		we := &w.Endpoints[i]
		r := &EndpointRecord{
			URI:         we.URI,
			Group:       we.Group,
			Blocked:     we.Blocked,
			Retry:       we.Retry,
			Refresh:     we.Refresh,
			Incremental: we.Incremental,
			Scenario:    Scenario(we.Scenario),
			Count:       we.Count,
			Increment:   we.Increment,
		}
		if !r.Scenario.Valid() {
			return nil, errors.LoadError("unknown endpoint scenario").
				WithContext("endpoint", we.URI).
				WithContext("scenario", we.Scenario).
				Build()
		}
		if r.Attempted, err = parseTime("attempted", we.Attempted); err != nil {
			return nil, err
		}
		if r.Harvested, err = parseTime("harvested", we.Harvested); err != nil {
			return nil, err
		}
		doc.Endpoints = append(doc.Endpoints, r)
	}
	return doc, nil
}

// checkIntegrity rejects records without an identity and duplicate (URI, group) pairs.
func checkIntegrity(doc *Document) error {
	seen := make(map[EndpointKey]int, len(doc.Endpoints))
	for i, r := range doc.Endpoints {
		if r.URI == "" || r.Group == "" {
			return errors.IntegrityError("endpoint record lacks an identity").
				WithContext("index", i).
				WithContext("endpoint", r.URI).
				WithContext("group", r.Group).
				Build()
		}
		if first, dup := seen[r.Key()]; dup {
			return errors.IntegrityError("duplicate endpoint record").
				WithContext("endpoint", r.URI).
				WithContext("group", r.Group).
				WithContext("first_index", first).
				WithContext("index", i).
				Build()
		}
		seen[r.Key()] = i
	}
	return nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(field, raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryLoad, "invalid timestamp").
			Fatal().
			WithContext("field", field).
			WithContext("value", raw).
			Build()
	}
	return normalizeTime(t), nil
}
