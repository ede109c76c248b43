package pipeline

import (
	"fmt"
	"time"

	"testgen/internal/types"
)

// State is the terminal state of one source file in a run.
type State int

const (
	StateScanned State = iota
	StateSkippedNoType
	StateSkippedExists
	StateWritten
	StateFailed
	StatePlanned
)

func (s State) String() string {
	switch s {
	case StateScanned:
		return "scanned"
	case StateSkippedNoType:
		return "skipped-no-type"
	case StateSkippedExists:
		return "skipped-exists"
	case StateWritten:
		return "written"
	case StateFailed:
		return "failed"
	case StatePlanned:
		return "planned"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalYAML renders the state by name.
func (s State) MarshalYAML() (interface{}, error) {
	return s.String(), nil
}

// Outcome records what happened to one source file.
type Outcome struct {
	Source      string                  `yaml:"source"`
	Rel         string                  `yaml:"rel"`
	Destination string                  `yaml:"destination,omitempty"`
	State       State                   `yaml:"state"`
	Descriptor  *types.SourceDescriptor `yaml:"descriptor,omitempty"`
	Template    types.TemplateChoice    `yaml:"template"`
	Collisions  []string                `yaml:"collisions,omitempty"`
	Err         error                   `yaml:"-"`
}

// Report summarizes one run.
type Report struct {
	RunID      string
	SourceRoot string
	TestRoot   string
	DryRun     bool
	StartedAt  time.Time
	Duration   time.Duration
	Outcomes   []Outcome
}

func (r *Report) count(states ...State) int {
	n := 0
	for _, o := range r.Outcomes {
		for _, s := range states {
			if o.State == s {
				n++
				break
			}
		}
	}
	return n
}

// Generated is the number of artifacts written.
func (r *Report) Generated() int { return r.count(StateWritten) }

// Skipped counts files without a public type and files whose test exists.
func (r *Report) Skipped() int { return r.count(StateSkippedNoType, StateSkippedExists) }

// Failed counts files that could not be processed.
func (r *Report) Failed() int { return r.count(StateFailed) }

// Planned counts dry-run artifacts.
func (r *Report) Planned() int { return r.count(StatePlanned) }

// Reporter receives per-file progress events. Calls arrive from a single
// goroutine in traversal order.
type Reporter interface {
	Scanning(root string)
	Analyzing(o Outcome)
	Generated(o Outcome)
	Skipped(o Outcome)
	Failed(o Outcome)
	Finished(r *Report)
}

// NopReporter discards all events.
type NopReporter struct{}

func (NopReporter) Scanning(string)   {}
func (NopReporter) Analyzing(Outcome) {}
func (NopReporter) Generated(Outcome) {}
func (NopReporter) Skipped(Outcome)   {}
func (NopReporter) Failed(Outcome)    {}
func (NopReporter) Finished(*Report)  {}
