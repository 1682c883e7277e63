package models

// StatSummary summarises a duration population. All values are seconds.
type StatSummary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	StdDev float64 `json:"stddev"`
}

// DriftOverview summarises one confirmed drift. Index values are assigned in
// confirmation order and never reused.
type DriftOverview struct {
	Index           int        `json:"index"`
	Experiment      string     `json:"experiment"`
	Description     string     `json:"description"`
	ReferenceWindow TimeWindow `json:"referenceWindow"`
	RunningWindow   TimeWindow `json:"runningWindow"`
}

// DriftCause is one flattened node of the causal attribution tree. Labels are
// hierarchical paths such as "cycle-time/waiting-time".
type DriftCause struct {
	Cause     string      `json:"cause"`
	Reference StatSummary `json:"reference"`
	Running   StatSummary `json:"running"`
}

// DriftDetails extends the overview with the flattened cause list, in
// pre-order of the attribution tree. Persisted once per confirmed drift and
// never mutated afterwards.
type DriftDetails struct {
	DriftOverview
	Causes []DriftCause `json:"causes"`
}
