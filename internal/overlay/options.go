package overlay

import "log/slog"

type options struct {
	logger *slog.Logger
	debug  bool
}

// Option configures a Registry or a Channel.
type Option func(*options)

// WithLogger sets the logger used for subscriber panics and debug checks.
// A nil logger discards output.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithDebugChecks turns on warnings for caller mistakes: publishing with no
// subscriber, update or dismiss for an id that is not live, and completions
// invoked more than once. Delivery is unchanged.
func WithDebugChecks(on bool) Option {
	return func(o *options) { o.debug = on }
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	return o
}
