// Package sink writes converted journal entries somewhere durable: a module
// directory on disk or a remote key-value store.
package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgallion1/docjournal/internal/journal"
)

// Publication is one converted document ready to be written.
type Publication struct {
	ModID   string
	Title   string
	Entries []*journal.Entry
}

// Validate checks the module id and every entry before anything is written.
func (p Publication) Validate() error {
	if p.ModID == "" {
		return errors.New("publication has no mod id")
	}
	for _, e := range p.Entries {
		if err := journal.ValidateEntry(e); err != nil {
			return err
		}
	}
	return nil
}

// Sink stores a publication.
type Sink interface {
	Publish(ctx context.Context, pub Publication) error
}

// Multi publishes to every sink in order and stops at the first failure.
type Multi []Sink

func (m Multi) Publish(ctx context.Context, pub Publication) error {
	for i, s := range m {
		if err := s.Publish(ctx, pub); err != nil {
			return fmt.Errorf("sink %d: %w", i, err)
		}
	}
	return nil
}

// Settings selects which sinks are enabled.
type Settings struct {
	OutputDir     string
	PublishURL    string
	PublishAPIKey string
	Version       string
}

// New returns the sinks enabled by s, file first. It returns nil when
// neither an output directory nor a publish URL is set.
func New(s Settings) Sink {
	var sinks Multi
	if s.OutputDir != "" {
		sinks = append(sinks, &FileSink{Root: s.OutputDir, Version: s.Version})
	}
	if s.PublishURL != "" {
		sinks = append(sinks, NewHTTPSink(s.PublishURL, s.PublishAPIKey))
	}
	switch len(sinks) {
	case 0:
		return nil
	case 1:
		return sinks[0]
	default:
		return sinks
	}
}
