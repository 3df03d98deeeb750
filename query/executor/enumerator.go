package executor

import (
	"context"
	"iter"
	"sync"
	"time"

	"github.com/satishbabariya/relquery/diagnostics"
	"github.com/satishbabariya/relquery/internal/debug"
	"github.com/satishbabariya/relquery/query/compiler"
	"github.com/satishbabariya/relquery/query/shaper"
	"github.com/satishbabariya/relquery/query/sqlgen"
	"github.com/satishbabariya/relquery/query/translate"
)

// Interceptor wraps the execution of one command. exec runs the command;
// an interceptor must call it at most once and return its error.
type Interceptor func(ctx context.Context, cmd *sqlgen.Command, args []any, exec func(ctx context.Context) error) error

// Options configures enumerations
type Options struct {
	Diagnostics diagnostics.Sink
	Intercept   Interceptor
}

// Executor starts enumerations of compiled queries on one connection
type Executor struct {
	conn Connection
	opts Options
}

// New creates an executor on conn
func New(conn Connection, opts Options) *Executor {
	if opts.Diagnostics == nil {
		opts.Diagnostics = diagnostics.Discard
	}
	return &Executor{conn: conn, opts: opts}
}

// Enumerate returns an enumerator over the results of cq for values.
// Nothing is executed until the first call to Next.
func (x *Executor) Enumerate(cq *compiler.CompiledQuery, values map[string]any) *Enumerator {
	return &Enumerator{x: x, query: cq, values: values}
}

// Enumerator streams the results of one execution. The main command runs
// on the first Next; the commands of split collections run when the first
// owner needs their rows. An Enumerator must not be used from several
// goroutines at once.
type Enumerator struct {
	x      *Executor
	query  *compiler.CompiledQuery
	values map[string]any

	opened  bool
	done    bool
	closed  bool
	reader  RowReader
	sides   []RowReader
	state   *shaper.State
	current any

	errMu sync.Mutex
	err   error
}

// Next advances to the next result. It returns false when the results are
// exhausted or an error occurred; Err tells which.
func (e *Enumerator) Next(ctx context.Context) bool {
	if e.closed {
		e.setErr(ErrEnumeratorClosed)
		return false
	}
	guard := e.x.conn.Guard()
	if err := guard.Enter(); err != nil {
		e.setErr(err)
		return false
	}
	defer guard.Exit()

	e.current = nil
	if e.done {
		return false
	}
	if !e.opened {
		e.opened = true
		if err := e.open(ctx); err != nil {
			e.finish(err)
			return false
		}
	}
	for {
		ok, err := e.reader.Next(ctx)
		if err != nil {
			e.finish(err)
			return false
		}
		if !ok {
			v, ready := e.state.Flush()
			e.finish(nil)
			if ready {
				e.current = v
			}
			return ready
		}
		v, ready, err := e.state.ProcessRow(ctx, e.reader)
		if err != nil {
			e.finish(err)
			return false
		}
		if ready {
			e.current = v
			return true
		}
	}
}

// Current returns the result Next advanced to
func (e *Enumerator) Current() any {
	return e.current
}

// Err returns the error that ended the enumeration, if any
func (e *Enumerator) Err() error {
	e.errMu.Lock()
	defer e.errMu.Unlock()
	return e.err
}

// Close releases the readers of the enumeration. It is safe to call more
// than once.
func (e *Enumerator) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	e.done = true
	return e.release()
}

// All reads the remaining results and closes the enumerator
func (e *Enumerator) All(ctx context.Context) ([]any, error) {
	defer e.Close()
	var out []any
	for e.Next(ctx) {
		out = append(out, e.current)
	}
	return out, e.Err()
}

// Iter returns the remaining results as an iterator. An error ends the
// sequence as its last element. The enumerator is closed when iteration
// stops.
func (e *Enumerator) Iter(ctx context.Context) iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		defer e.Close()
		for e.Next(ctx) {
			if !yield(e.current, nil) {
				return
			}
		}
		if err := e.Err(); err != nil {
			yield(nil, err)
		}
	}
}

// Result reads the enumeration according to the cardinality of the query:
// a []any for sequences, otherwise the single result, or nil where the
// operator allows no result.
func (e *Enumerator) Result(ctx context.Context) (any, error) {
	defer e.Close()
	card := e.query.Cardinality
	if card == translate.Sequence {
		return e.All(ctx)
	}
	if !e.Next(ctx) {
		if err := e.Err(); err != nil {
			return nil, err
		}
		switch card {
		case translate.FirstOrDefault, translate.SingleOrDefault:
			return nil, nil
		}
		return nil, ErrNoElements
	}
	v := e.current
	if card == translate.Single || card == translate.SingleOrDefault {
		if e.Next(ctx) {
			return nil, ErrMoreThanOneElement
		}
		if err := e.Err(); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func (e *Enumerator) open(ctx context.Context) error {
	cmd, args, err := e.query.Command(e.values)
	if err != nil {
		return err
	}
	if e.reader, err = e.execute(ctx, cmd, args); err != nil {
		return err
	}
	e.state = e.query.Program.NewState(e.side)
	return nil
}

// side opens the reader of related query i for the shaper
func (e *Enumerator) side(ctx context.Context, i int) (shaper.Cursor, error) {
	cmd, args, err := e.query.RelatedCommand(i, e.values)
	if err != nil {
		return nil, err
	}
	r, err := e.execute(ctx, cmd, args)
	if err != nil {
		return nil, err
	}
	e.sides = append(e.sides, r)
	return r, nil
}

func (e *Enumerator) execute(ctx context.Context, cmd *sqlgen.Command, args []any) (RowReader, error) {
	var r RowReader
	exec := func(ctx context.Context) error {
		var err error
		r, err = e.x.conn.Query(ctx, cmd, args)
		return err
	}

	start := time.Now()
	var err error
	if e.x.opts.Intercept != nil {
		err = e.x.opts.Intercept(ctx, cmd, args, exec)
	} else {
		err = exec(ctx)
	}
	elapsed := time.Since(start)

	ev := diagnostics.NewEvent(diagnostics.CommandExecuted, e.query.ID)
	ev.Command = cmd.Text
	ev.Duration = elapsed
	if err != nil {
		ev = diagnostics.NewEvent(diagnostics.CommandFailed, e.query.ID).WithError(err)
		ev.Command = cmd.Text
		ev.Duration = elapsed
		if code := ErrorCode(err); code != "" {
			ev.Metadata = map[string]any{"code": code}
		}
		if r != nil {
			r.Close()
		}
		e.x.opts.Diagnostics.Record(ev)
		debug.Error("Command failed", "query", e.query.ID.String(), "error", err)
		return nil, err
	}
	e.x.opts.Diagnostics.Record(ev)
	debug.Debug("Command executed", "query", e.query.ID.String(), "sql", cmd.Text, "duration", elapsed)
	return r, nil
}

// finish ends the enumeration, releasing its readers
func (e *Enumerator) finish(err error) {
	e.done = true
	if rerr := e.release(); err == nil {
		err = rerr
	}
	if err == nil {
		return
	}
	e.setErr(err)
	ev := diagnostics.NewEvent(diagnostics.IterationFailed, e.query.ID).WithError(err)
	e.x.opts.Diagnostics.Record(ev)
	debug.Error("Iteration failed", "query", e.query.ID.String(), "error", err)
}

func (e *Enumerator) release() error {
	var first error
	if e.reader != nil {
		first = e.reader.Close()
		e.reader = nil
	}
	for _, r := range e.sides {
		if err := r.Close(); err != nil && first == nil {
			first = err
		}
	}
	e.sides = nil
	return first
}

func (e *Enumerator) setErr(err error) {
	e.errMu.Lock()
	defer e.errMu.Unlock()
	if e.err == nil {
		e.err = err
	}
}
