package model

import "time"

// DateFormat partitions the archive by calendar day.
const DateFormat = "2006-01-02"

// ArtifactKind identifies one of the two files kept per instrument per run date.
type ArtifactKind string

const (
	ArtifactGraphic ArtifactKind = "graphic"
	ArtifactData    ArtifactKind = "data"
)

// FileName returns the artifact's file name inside an instrument directory.
func (k ArtifactKind) FileName() string {
	switch k {
	case ArtifactGraphic:
		return "graphic.svg"
	case ArtifactData:
		return "data.json"
	default:
		return string(k)
	}
}

// ArtifactAction records what the pipeline did for one artifact.
type ArtifactAction string

const (
	ActionFetched ArtifactAction = "FETCHED"
	ActionSkipped ArtifactAction = "SKIPPED"
)

// ArtifactEvent describes the outcome for a single artifact.
type ArtifactEvent struct {
	RunDate    string
	Instrument string
	Kind       ArtifactKind
	Action     ArtifactAction
	Path       string
	Bytes      int
}

// RunStatus is the final state of a harvesting run.
type RunStatus string

const (
	RunOK     RunStatus = "OK"
	RunFailed RunStatus = "FAILED"
)

// RunSummary aggregates one invocation of the collector.
type RunSummary struct {
	ID               string
	RunDate          string
	StartedAt        time.Time
	FinishedAt       time.Time
	Status           RunStatus
	Err              error
	Instruments      int
	WatchlistCreated bool
	Fetched          int
	Skipped          int
}

// Count tallies an artifact event into the summary.
func (s *RunSummary) Count(evt *ArtifactEvent) {
	switch evt.Action {
	case ActionFetched:
		s.Fetched++
	case ActionSkipped:
		s.Skipped++
	}
}
