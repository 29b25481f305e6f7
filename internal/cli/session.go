package cli

import (
	"context"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel"

	"github.com/roach88/tickmerge/internal/config"
	"github.com/roach88/tickmerge/internal/observe"
)

const tracerName = "github.com/roach88/tickmerge"

// session holds what a command needs besides its flags: the loaded
// configuration and the observer the core reports through.
type session struct {
	cfg      config.Config
	obs      observe.Observer
	shutdown func(context.Context) error
}

// newSession loads the configuration and sets up logging to logs. Tracing
// is installed when the configuration enables it.
func newSession(ctx context.Context, opts *RootOptions, logs io.Writer) (*session, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}

	level, err := cfg.Log.SlogLevel()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid log level", err)
	}
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: level}))

	s := &session{
		cfg:      cfg,
		obs:      observe.NewSlog(logger),
		shutdown: func(context.Context) error { return nil },
	}

	if cfg.Tracing.Enabled {
		shutdown, err := observe.SetupTracing(ctx, cfg.Tracing.ServiceName, cfg.Tracing.Endpoint)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to set up tracing", err)
		}
		s.shutdown = shutdown
		s.obs = observe.NewTracing(ctx, otel.Tracer(tracerName), s.obs)
	}
	return s, nil
}

// close flushes pending spans. Export failures are logged, not returned.
func (s *session) close(ctx context.Context) {
	if err := s.shutdown(ctx); err != nil {
		s.obs.Log(slog.LevelWarn, "tracing shutdown failed", "error", err)
	}
}
