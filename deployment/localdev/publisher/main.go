// Command publisher submits a sample experiment to the local broker so the
// worker can be exercised end to end without the upstream portal.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

type request struct {
	ID        string         `json:"id"`
	Logs      []string       `json:"logs"`
	Email     string         `json:"email"`
	Submitted string         `json:"submitted"`
	Config    requestConfig  `json:"config"`
	Mapping   map[string]any `json:"mapping"`
}

type requestConfig struct {
	WindowSize     string `json:"window_size"`
	DriftMagnitude string `json:"drift_magnitude"`
	Warnings       int    `json:"warnings"`
}

func main() {
	var (
		url     = flag.String("url", nats.DefaultURL, "broker URL")
		subject = flag.String("subject", "experiments.submit", "submission subject")
		logFile = flag.String("log", "sample.csv", "event log path, relative to the worker's data directory")
	)
	flag.Parse()

	conn, err := nats.Connect(*url, nats.Name("driftmon-publisher"))
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer conn.Close()

	js, err := conn.JetStream()
	if err != nil {
		log.Fatalf("jetstream: %v", err)
	}

	req := request{
		ID:        uuid.NewString(),
		Logs:      []string{*logFile},
		Email:     "localdev@example.com",
		Submitted: time.Now().UTC().Format(time.RFC3339),
		Config: requestConfig{
			WindowSize:     "7d",
			DriftMagnitude: "30m",
			Warnings:       3,
		},
		Mapping: map[string]any{
			"case":       "case_id",
			"activity":   "activity",
			"resource":   "resource",
			"start":      "start_time",
			"end":        "end_time",
			"enablement": "__DISCOVER__",
		},
	}

	payload, err := json.Marshal(req)
	if err != nil {
		log.Fatalf("marshal: %v", err)
	}

	ack, err := js.Publish(*subject, payload)
	if err != nil {
		log.Fatalf("publish: %v", err)
	}
	log.Printf("submitted experiment %s (stream %s, seq %d)", req.ID, ack.Stream, ack.Sequence)
}
