// Package pipeline wraps command execution in middleware. Each middleware
// receives its collaborators explicitly when it is built.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"ambientsaga/internal/command"
	"ambientsaga/internal/observe"
	"ambientsaga/internal/sagaerr"
)

// Handler executes one command.
type Handler func(ctx context.Context, cmd command.Command) (command.Result, error)

type Middleware func(Handler) Handler

// Chain wraps h so the first middleware runs outermost.
func Chain(h Handler, mws ...Middleware) Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

func status(err error) string {
	if err == nil {
		return "ok"
	}
	if code := sagaerr.CodeOf(err); code != "" {
		return string(code)
	}
	return "error"
}

// Logging records a span, duration, and one log line per command. It never
// changes the outcome.
func Logging(logger *slog.Logger, metrics *observe.Metrics) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Handler) Handler {
		return func(ctx context.Context, cmd command.Command) (command.Result, error) {
			start := time.Now()
			ctx, span := observe.StartSpan(ctx, "command "+cmd.Name(),
				trace.WithAttributes(
					attribute.String("command", cmd.Name()),
					attribute.String("avatar_id", cmd.Avatar()),
					attribute.String("saga", cmd.Saga()),
				),
			)
			defer span.End()

			res, err := next(ctx, cmd)
			elapsed := time.Since(start)
			st := status(err)
			if metrics != nil {
				metrics.RecordCommand(ctx, cmd.Name(), st, elapsed)
			}

			log := observe.Logger(ctx, logger).With(
				"command", cmd.Name(),
				"avatar_id", cmd.Avatar(),
				"saga", cmd.Saga(),
				"status", st,
				"duration", elapsed,
			)
			switch {
			case err == nil:
				span.SetAttributes(attribute.Int64("seq", int64(res.NewSequenceNumber)))
				log.DebugContext(ctx, "command executed", "instance_id", res.SagaInstanceID, "transactions", len(res.TransactionIDs))
			case sagaerr.IsDomain(err):
				log.InfoContext(ctx, "command rejected", "err", err)
			default:
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				log.ErrorContext(ctx, "command failed", "err", err)
			}
			return res, err
		}
	}
}

// Validation rejects commands with missing addressing or malformed fields
// before they reach the store.
func Validation() Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, cmd command.Command) (command.Result, error) {
			if err := validate(cmd); err != nil {
				return command.Result{ErrorMessage: err.Error()}, err
			}
			return next(ctx, cmd)
		}
	}
}

func validate(cmd command.Command) error {
	if cmd == nil {
		return sagaerr.New(sagaerr.CodeValidation, "command is required")
	}
	if cmd.Avatar() == "" {
		return sagaerr.Newf(sagaerr.CodeValidation, "%s: avatar id is required", cmd.Name())
	}
	if cmd.Saga() == "" {
		return sagaerr.Newf(sagaerr.CodeValidation, "%s: saga ref is required", cmd.Name())
	}
	if v, ok := cmd.(command.Validator); ok {
		if err := v.Validate(); err != nil {
			if sagaerr.CodeOf(err) == "" {
				err = sagaerr.Wrap(sagaerr.CodeValidation, cmd.Name(), err)
			}
			return err
		}
	}
	return nil
}

// Retry re-runs a command that lost a compare-and-append race. attempts is
// the number of retries after the first try.
func Retry(attempts int, logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Handler) Handler {
		return func(ctx context.Context, cmd command.Command) (command.Result, error) {
			res, err := next(ctx, cmd)
			for i := 0; i < attempts && errors.Is(err, sagaerr.ErrConcurrencyConflict); i++ {
				if ctx.Err() != nil {
					return res, err
				}
				logger.DebugContext(ctx, "retrying after concurrency conflict", "command", cmd.Name(), "attempt", i+1)
				res, err = next(ctx, cmd)
			}
			return res, err
		}
	}
}
