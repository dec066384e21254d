package recorder

import "quotearchiver/internal/model"

// Recorder persists run history for later inspection.
type Recorder interface {
	RecordRunStart(run *model.RunSummary) error
	RecordRunEnd(run *model.RunSummary) error
	RecordArtifact(runID string, evt *model.ArtifactEvent) error
	Close() error
}
