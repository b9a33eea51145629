package types

import (
	"context"
)

// SourceInfo describes an input source a CaptureDevice can open.
type SourceInfo struct {
	ID         string
	Name       string
	SampleRate SampleRate
	Channels   Channel
	IsDefault  bool
}

// SourceLister is optionally implemented by a CaptureDevice that can
// enumerate its input sources.
type SourceLister interface {
	ListSources(ctx context.Context) ([]SourceInfo, error)
}
