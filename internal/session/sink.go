package session

import (
	"context"

	"github.com/verte-zerg/speedtype/internal/model"
)

// ResultSink receives finished results. Submit may fail; the engine logs the
// failure and keeps the attempt finished.
type ResultSink interface {
	Submit(ctx context.Context, r model.Result) error
}

// SinkFunc adapts a function to ResultSink.
type SinkFunc func(ctx context.Context, r model.Result) error

// Submit implements ResultSink.
func (f SinkFunc) Submit(ctx context.Context, r model.Result) error {
	return f(ctx, r)
}

// Discard drops every result.
var Discard ResultSink = SinkFunc(func(context.Context, model.Result) error { return nil })
