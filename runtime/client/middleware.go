package client

import (
	"context"
	"time"

	"github.com/satishbabariya/relquery/query/executor"
	"github.com/satishbabariya/relquery/query/sqlgen"
)

// QueryEvent represents the execution of one command
type QueryEvent struct {
	Query    string
	Args     []any
	Duration time.Duration
	Error    error
	Start    time.Time
	End      time.Time
}

// Middleware is a function that intercepts commands. It must call next at
// most once.
type Middleware func(ctx context.Context, event *QueryEvent, next func() error) error

// chain turns middlewares into an executor interceptor, outermost first
func chain(middlewares []Middleware) executor.Interceptor {
	if len(middlewares) == 0 {
		return nil
	}
	return func(ctx context.Context, cmd *sqlgen.Command, args []any, exec func(context.Context) error) error {
		event := &QueryEvent{
			Query: cmd.Text,
			Args:  args,
			Start: time.Now(),
		}

		var next func() error
		index := 0
		next = func() error {
			if index >= len(middlewares) {
				err := exec(ctx)
				event.End = time.Now()
				event.Duration = event.End.Sub(event.Start)
				event.Error = err
				return err
			}
			middleware := middlewares[index]
			index++
			return middleware(ctx, event, next)
		}
		return next()
	}
}

// LoggingMiddleware creates a middleware that logs commands
func LoggingMiddleware(logger func(format string, args ...any)) Middleware {
	return func(ctx context.Context, event *QueryEvent, next func() error) error {
		logger("Executing query: %s with args: %v", event.Query, event.Args)
		err := next()
		if err != nil {
			logger("Query failed: %v", err)
		} else {
			logger("Query completed in %v", event.Duration)
		}
		return err
	}
}

// TimingMiddleware creates a middleware that measures command execution time
func TimingMiddleware(onTiming func(query string, duration time.Duration)) Middleware {
	return func(ctx context.Context, event *QueryEvent, next func() error) error {
		err := next()
		if onTiming != nil {
			onTiming(event.Query, event.Duration)
		}
		return err
	}
}

// ErrorMiddleware creates a middleware that handles errors
func ErrorMiddleware(onError func(query string, err error)) Middleware {
	return func(ctx context.Context, event *QueryEvent, next func() error) error {
		err := next()
		if err != nil && onError != nil {
			onError(event.Query, err)
		}
		return err
	}
}
