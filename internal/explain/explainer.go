package explain

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/driftstack/drift-monitor/internal/detect"
	"github.com/driftstack/drift-monitor/internal/models"
	"github.com/driftstack/drift-monitor/internal/utils"
)

// Cause labels of the attribution tree.
const (
	CauseCycleTime    = "cycle-time"
	CauseWaitingTime  = "cycle-time/waiting-time"
	CauseProcessing   = "cycle-time/processing-time"
	CauseAvailability = "cycle-time/waiting-time/availability"
)

// CauseNode is one node of the hierarchical drift explanation. The shape of
// the tree varies with the dimensions that actually changed, so consumers
// must look children up by label rather than position.
type CauseNode struct {
	Label     string
	Reference models.StatSummary
	Running   models.StatSummary
	Children  []*CauseNode
}

// Child returns the direct child carrying the given label, or nil.
func (n *CauseNode) Child(label string) *CauseNode {
	for _, child := range n.Children {
		if child.Label == label {
			return child
		}
	}
	return nil
}

// Flatten returns the tree's nodes as flattened causes in pre-order: root
// first, then each subtree fully before the next sibling.
func Flatten(root *CauseNode) []models.DriftCause {
	if root == nil {
		return nil
	}
	causes := []models.DriftCause{{
		Cause:     root.Label,
		Reference: root.Reference,
		Running:   root.Running,
	}}
	for _, child := range root.Children {
		causes = append(causes, Flatten(child)...)
	}
	return causes
}

// Config parameterises the explainer.
type Config struct {
	// FirstActivity/LastActivity are the labels of the synthetic boundary
	// events, which carry no duration information and are excluded from all
	// statistics.
	FirstActivity string
	LastActivity  string
	// CalendarThreshold gates the availability sub-cause: the hour-of-day
	// busy profiles of the two windows must diverge beyond it.
	CalendarThreshold float64
}

// Explainer derives causal attributions for confirmed drifts.
type Explainer struct {
	cfg    Config
	logger *slog.Logger
}

// NewExplainer constructs an Explainer.
func NewExplainer(cfg Config, logger *slog.Logger) *Explainer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Explainer{cfg: cfg, logger: logger}
}

// Explain builds the cause tree for a confirmed outcome. The root always
// carries the overall cycle-time change; waiting-time and processing-time
// children appear only when that dimension's mean shifted by at least the
// experiment's drift magnitude.
func (e *Explainer) Explain(log []models.Event, outcome detect.Outcome, magnitude time.Duration) (*CauseNode, error) {
	reference := e.windowEvents(log, outcome.Reference)
	running := e.windowEvents(log, outcome.Running)
	if len(reference) == 0 || len(running) == 0 {
		return nil, utils.AlgorithmError(
			fmt.Sprintf("no events in comparison windows (%d reference, %d running)", len(reference), len(running)),
			nil,
		)
	}

	root := &CauseNode{
		Label:     CauseCycleTime,
		Reference: summarise(reference, models.Event.CycleTime),
		Running:   summarise(running, models.Event.CycleTime),
	}

	if waiting := e.subCause(CauseWaitingTime, reference, running, magnitude, models.Event.WaitingTime); waiting != nil {
		if divergence := calendarDivergence(reference, running); divergence > e.cfg.CalendarThreshold {
			e.logger.Debug("availability profiles diverged",
				slog.Float64("divergence", divergence))
			waiting.Children = append(waiting.Children, &CauseNode{
				Label:     CauseAvailability,
				Reference: waiting.Reference,
				Running:   waiting.Running,
			})
		}
		root.Children = append(root.Children, waiting)
	}
	if processing := e.subCause(CauseProcessing, reference, running, magnitude, models.Event.ProcessingTime); processing != nil {
		root.Children = append(root.Children, processing)
	}

	return root, nil
}

// subCause builds a child node when the dimension's mean shifted by at least
// the magnitude, nil otherwise.
func (e *Explainer) subCause(label string, reference, running []models.Event, magnitude time.Duration, dimension func(models.Event) time.Duration) *CauseNode {
	ref := summarise(reference, dimension)
	run := summarise(running, dimension)
	if math.Abs(run.Mean-ref.Mean) < magnitude.Seconds() {
		return nil
	}
	return &CauseNode{Label: label, Reference: ref, Running: run}
}

// windowEvents selects the events completing inside the window, excluding the
// synthetic boundary events.
func (e *Explainer) windowEvents(log []models.Event, window models.TimeWindow) []models.Event {
	selected := make([]models.Event, 0)
	for _, event := range log {
		if event.Activity == e.cfg.FirstActivity || event.Activity == e.cfg.LastActivity {
			continue
		}
		if event.End.Before(window.Start) || event.End.After(window.End) {
			continue
		}
		selected = append(selected, event)
	}
	return selected
}

func summarise(events []models.Event, dimension func(models.Event) time.Duration) models.StatSummary {
	if len(events) == 0 {
		return models.StatSummary{}
	}

	summary := models.StatSummary{Count: len(events)}
	values := make([]float64, len(events))
	for i, event := range events {
		values[i] = dimension(event).Seconds()
	}

	summary.Min = values[0]
	summary.Max = values[0]
	total := 0.0
	for _, v := range values {
		total += v
		if v < summary.Min {
			summary.Min = v
		}
		if v > summary.Max {
			summary.Max = v
		}
	}
	summary.Mean = total / float64(len(values))

	variance := 0.0
	for _, v := range values {
		diff := v - summary.Mean
		variance += diff * diff
	}
	summary.StdDev = math.Sqrt(variance / float64(len(values)))
	return summary
}

// calendarDivergence measures how differently the two populations occupy the
// hours of the day: half the L1 distance between their normalised busy-hour
// histograms, in [0, 1].
func calendarDivergence(reference, running []models.Event) float64 {
	refProfile := busyHours(reference)
	runProfile := busyHours(running)
	if refProfile == nil || runProfile == nil {
		return 0
	}

	distance := 0.0
	for hour := 0; hour < 24; hour++ {
		distance += math.Abs(refProfile[hour] - runProfile[hour])
	}
	return distance / 2
}

// busyHours builds a normalised 24-bin histogram of the hours during which
// events were being processed.
func busyHours(events []models.Event) []float64 {
	bins := make([]float64, 24)
	total := 0.0
	for _, event := range events {
		for t := event.Start.Truncate(time.Hour); t.Before(event.End); t = t.Add(time.Hour) {
			bins[t.UTC().Hour()]++
			total++
		}
	}
	if total == 0 {
		return nil
	}
	for i := range bins {
		bins[i] /= total
	}
	return bins
}
