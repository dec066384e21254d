package recorder

import "quotearchiver/internal/model"

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordRunStart(_ *model.RunSummary) error              { return nil }
func (n *NoopRecorder) RecordRunEnd(_ *model.RunSummary) error                { return nil }
func (n *NoopRecorder) RecordArtifact(_ string, _ *model.ArtifactEvent) error { return nil }
func (n *NoopRecorder) Close() error                                          { return nil }
