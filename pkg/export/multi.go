package export

import (
	"context"
	stderrors "errors"
)

// MultiSink fans records out to several sinks, in order.
type MultiSink []Sink

// Write writes to every sink and stops at the first error.
func (m MultiSink) Write(ctx context.Context, id int, segments []Segment) error {
	for _, s := range m {
		if err := s.Write(ctx, id, segments); err != nil {
			return err
		}
	}
	return nil
}

// Finalize finalizes every sink, even after a failure, and joins the errors.
func (m MultiSink) Finalize(ctx context.Context) error {
	var errs []error
	for _, s := range m {
		if err := s.Finalize(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

var _ Sink = MultiSink(nil)
