package store

import (
	"context"
	"log/slog"

	"github.com/roach88/modeltree/internal/engine"
)

// Journal returns an engine observer that appends every processed action
// to the journal. Write failures are logged and never fail the dispatch.
func (s *Store) Journal(logger *slog.Logger) engine.Observer {
	return func(r engine.Record) {
		err := s.WriteAction(context.Background(), ActionRecord{
			Cascade: r.Cascade,
			Seq:     r.Seq,
			Depth:   r.Depth,
			Type:    r.Type,
			Payload: r.Payload,
			Result:  r.Result,
			Error:   r.Error,
			Changed: r.Changed,
		})
		if err != nil {
			logger.Error("journal write failed", "action", r.Type, "cascade", r.Cascade, "error", err)
		}
	}
}
