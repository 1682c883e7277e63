package detect

import (
	"fmt"
	"time"

	"github.com/driftstack/drift-monitor/internal/models"
)

// Level classifies a window-comparison outcome.
type Level int

const (
	// LevelNone means the windows show no significant difference.
	LevelNone Level = iota
	// LevelWarning means a significant difference that is not yet corroborated.
	LevelWarning
	// LevelConfirmed means enough consecutive warnings accumulated to confirm
	// a drift.
	LevelConfirmed
)

func (l Level) String() string {
	switch l {
	case LevelWarning:
		return "warning"
	case LevelConfirmed:
		return "confirmed"
	default:
		return "none"
	}
}

// Outcome is one window-comparison result pulled from the stream. Successive
// outcomes carry monotonically non-decreasing running-window ends.
type Outcome struct {
	Level     Level
	Reference models.TimeWindow
	Running   models.TimeWindow
}

// Stream is a pull-based lazy sequence of window-comparison outcomes.
type Stream interface {
	// Next returns the next outcome. ok is false once the stream is exhausted.
	Next() (outcome Outcome, ok bool, err error)
}

// Config parameterises one detector stream.
type Config struct {
	WindowSize        time.Duration
	WarmUp            time.Duration
	WarningsToConfirm int
	// Threshold is the minimum absolute shift of the mean cycle time for a
	// difference to count as drift.
	Threshold    time.Duration
	Significance float64
}

// minSamples is the smallest population size worth testing.
const minSamples = 2

// Detector compares the cycle-time population of a sliding running window
// against a reference window. Each pull advances the running window to the
// end time of the next event; warnings escalate to a confirmation after the
// configured number of consecutive corroborations, at which point the
// reference window is rebased onto the running window.
type Detector struct {
	cfg       Config
	events    []models.Event
	pos       int
	start     time.Time
	reference models.TimeWindow
	warnings  int
}

// NewDetector prepares a detector stream over a merged, end-time-ordered log.
func NewDetector(log []models.Event, cfg Config) (*Detector, error) {
	if len(log) == 0 {
		return nil, fmt.Errorf("cannot detect drift on an empty log")
	}
	if cfg.WindowSize <= 0 {
		return nil, fmt.Errorf("window size must be positive, got %s", cfg.WindowSize)
	}
	if cfg.WarningsToConfirm < 1 {
		return nil, fmt.Errorf("warnings to confirm must be positive, got %d", cfg.WarningsToConfirm)
	}
	if cfg.Significance <= 0 || cfg.Significance >= 1 {
		return nil, fmt.Errorf("significance must be in (0, 1), got %f", cfg.Significance)
	}

	start := log[0].Enabled
	for _, event := range log {
		if event.Enabled.Before(start) {
			start = event.Enabled
		}
	}
	refStart := start.Add(cfg.WarmUp)

	d := &Detector{
		cfg:    cfg,
		events: log,
		start:  start,
		reference: models.TimeWindow{
			Start: refStart,
			End:   refStart.Add(cfg.WindowSize),
		},
	}

	// Outcomes begin once the first running window is complete; earlier
	// events cannot advance progress.
	firstRunEnd := refStart.Add(2 * cfg.WindowSize)
	for d.pos < len(d.events) && d.events[d.pos].End.Before(firstRunEnd) {
		d.pos++
	}
	return d, nil
}

// Next advances the running window to the next event and compares it against
// the reference window.
func (d *Detector) Next() (Outcome, bool, error) {
	if d.pos >= len(d.events) {
		return Outcome{}, false, nil
	}

	event := d.events[d.pos]
	d.pos++

	running := models.TimeWindow{
		Start: event.End.Add(-d.cfg.WindowSize),
		End:   event.End,
	}

	outcome := Outcome{
		Level:     LevelNone,
		Reference: d.reference,
		Running:   running,
	}

	refSamples := cycleTimes(d.events, d.reference)
	runSamples := cycleTimes(d.events, running)
	if len(refSamples) < minSamples || len(runSamples) < minSamples {
		d.warnings = 0
		return outcome, true, nil
	}

	shift := meanOf(runSamples) - meanOf(refSamples)
	if shift < 0 {
		shift = -shift
	}
	significant := shift >= d.cfg.Threshold.Seconds() &&
		mannWhitneyP(refSamples, runSamples) < d.cfg.Significance

	if !significant {
		d.warnings = 0
		return outcome, true, nil
	}

	d.warnings++
	if d.warnings < d.cfg.WarningsToConfirm {
		outcome.Level = LevelWarning
		return outcome, true, nil
	}

	outcome.Level = LevelConfirmed
	d.warnings = 0
	// The running window becomes the new baseline after a confirmation.
	d.reference = running
	return outcome, true, nil
}

// cycleTimes collects the cycle times, in seconds, of events completing
// inside the window.
func cycleTimes(events []models.Event, window models.TimeWindow) []float64 {
	samples := make([]float64, 0)
	for _, event := range events {
		if event.End.Before(window.Start) || event.End.After(window.End) {
			continue
		}
		if cycle := event.CycleTime(); cycle > 0 {
			samples = append(samples, cycle.Seconds())
		}
	}
	return samples
}

// Factory opens detector streams for prepared logs.
type Factory struct{}

// Open implements the stream-factory contract used by the runner.
func (Factory) Open(log []models.Event, cfg Config) (Stream, error) {
	return NewDetector(log, cfg)
}
