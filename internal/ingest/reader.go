package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/driftstack/drift-monitor/internal/models"
	"github.com/driftstack/drift-monitor/internal/utils"
)

// timestampLayouts are tried in order when parsing log columns.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Reader loads heterogeneous CSV event-log sources and merges them into a
// single sequence ordered by end time.
type Reader struct {
	logger        *slog.Logger
	basePath      string
	firstActivity string
	lastActivity  string
}

// NewReader constructs a Reader. Relative source locations are resolved
// against basePath; firstActivity/lastActivity label the synthetic boundary
// events wrapped around each case.
func NewReader(logger *slog.Logger, basePath, firstActivity, lastActivity string) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{
		logger:        logger,
		basePath:      basePath,
		firstActivity: firstActivity,
		lastActivity:  lastActivity,
	}
}

// ReadAndMerge loads every source, merges the events ordered by end time,
// applies the enablement policy from the mapping, and wraps each case in
// synthetic boundary events. A mapping enablement of
// models.EnablementDiscover requests computed enablement timestamps.
func (r *Reader) ReadAndMerge(ctx context.Context, sources []string, mapping models.EventMapping) ([]models.Event, error) {
	computeEnablement := mapping.Enablement == models.EnablementDiscover
	if computeEnablement {
		mapping.Enablement = ""
	}

	events := make([]models.Event, 0)
	for _, source := range sources {
		if err := ctx.Err(); err != nil {
			return nil, utils.ErrCancelled
		}
		parsed, err := r.readSource(source, mapping)
		if err != nil {
			return nil, utils.IngestionError(fmt.Sprintf("source %s", source), err)
		}
		r.logger.Debug("log source loaded",
			slog.String("source", source), slog.Int("events", len(parsed)))
		events = append(events, parsed...)
	}

	sortByEnd(events)

	if computeEnablement {
		events = ComputeEnablement(events)
	}
	events = r.addBoundaryEvents(events)
	sortByEnd(events)

	return events, nil
}

func (r *Reader) readSource(source string, mapping models.EventMapping) ([]models.Event, error) {
	path := source
	if r.basePath != "" && !filepath.IsAbs(source) {
		path = filepath.Join(r.basePath, "logs", source)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[name] = i
	}

	for _, required := range []string{mapping.Case, mapping.Activity, mapping.Start, mapping.End} {
		if required == "" {
			return nil, fmt.Errorf("mapping misses a required column role")
		}
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("column %q not present in log", required)
		}
	}

	events := make([]models.Event, 0)
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		line++

		event, err := buildEvent(record, columns, mapping)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		events = append(events, event)
	}
	return events, nil
}

func buildEvent(record []string, columns map[string]int, mapping models.EventMapping) (models.Event, error) {
	field := func(role string) string {
		idx, ok := columns[role]
		if !ok || idx >= len(record) {
			return ""
		}
		return record[idx]
	}

	start, err := parseTimestamp(field(mapping.Start))
	if err != nil {
		return models.Event{}, fmt.Errorf("start: %w", err)
	}
	end, err := parseTimestamp(field(mapping.End))
	if err != nil {
		return models.Event{}, fmt.Errorf("end: %w", err)
	}
	if end.Before(start) {
		return models.Event{}, fmt.Errorf("event ends before it starts (%s < %s)", end, start)
	}

	enabled := start
	if mapping.Enablement != "" {
		if raw := field(mapping.Enablement); raw != "" {
			enabled, err = parseTimestamp(raw)
			if err != nil {
				return models.Event{}, fmt.Errorf("enablement: %w", err)
			}
		}
	}

	var attributes map[string]string
	if len(mapping.Attributes) > 0 {
		attributes = make(map[string]string, len(mapping.Attributes))
		for _, attr := range mapping.Attributes {
			attributes[attr] = field(attr)
		}
	}

	return models.Event{
		Case:       field(mapping.Case),
		Activity:   field(mapping.Activity),
		Resource:   field(mapping.Resource),
		Enabled:    enabled,
		Start:      start,
		End:        end,
		Attributes: attributes,
	}, nil
}

// addBoundaryEvents wraps each case in zero-length synthetic start/end events
// so downstream consumers can recognise case boundaries. The events carry the
// configured labels and are excluded from explanation statistics by label.
func (r *Reader) addBoundaryEvents(events []models.Event) []models.Event {
	if len(events) == 0 || r.firstActivity == "" || r.lastActivity == "" {
		return events
	}

	type bounds struct {
		first models.Event
		last  models.Event
	}
	cases := make(map[string]*bounds)
	order := make([]string, 0)
	for _, event := range events {
		b, ok := cases[event.Case]
		if !ok {
			cases[event.Case] = &bounds{first: event, last: event}
			order = append(order, event.Case)
			continue
		}
		if event.Start.Before(b.first.Start) {
			b.first = event
		}
		if event.End.After(b.last.End) {
			b.last = event
		}
	}

	wrapped := make([]models.Event, 0, len(events)+2*len(cases))
	wrapped = append(wrapped, events...)
	for _, caseID := range order {
		b := cases[caseID]
		wrapped = append(wrapped,
			models.Event{
				Case:     caseID,
				Activity: r.firstActivity,
				Enabled:  b.first.Start,
				Start:    b.first.Start,
				End:      b.first.Start,
			},
			models.Event{
				Case:     caseID,
				Activity: r.lastActivity,
				Enabled:  b.last.End,
				Start:    b.last.End,
				End:      b.last.End,
			},
		)
	}
	return wrapped
}

func parseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported timestamp format %q", value)
}

func sortByEnd(events []models.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].End.Equal(events[j].End) {
			return events[i].Start.Before(events[j].Start)
		}
		return events[i].End.Before(events[j].End)
	})
}
