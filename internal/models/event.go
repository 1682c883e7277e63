package models

import "time"

// Event is one activity instance of the merged event log.
type Event struct {
	Case       string
	Activity   string
	Resource   string
	Enabled    time.Time
	Start      time.Time
	End        time.Time
	Attributes map[string]string
}

// CycleTime is the total duration from enablement to completion.
func (e Event) CycleTime() time.Duration { return e.End.Sub(e.Enabled) }

// WaitingTime is the duration from enablement to the start of processing.
func (e Event) WaitingTime() time.Duration { return e.Start.Sub(e.Enabled) }

// ProcessingTime is the duration from start to completion.
func (e Event) ProcessingTime() time.Duration { return e.End.Sub(e.Start) }
