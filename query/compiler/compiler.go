// Package compiler compiles object queries into reusable compiled queries:
// translated, postprocessed IR plus the shaper program reading its rows.
package compiler

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/satishbabariya/relquery/diagnostics"
	"github.com/satishbabariya/relquery/internal/debug"
	"github.com/satishbabariya/relquery/metadata"
	"github.com/satishbabariya/relquery/query/ast"
	"github.com/satishbabariya/relquery/query/cache"
	"github.com/satishbabariya/relquery/query/ir"
	"github.com/satishbabariya/relquery/query/params"
	"github.com/satishbabariya/relquery/query/postprocess"
	"github.com/satishbabariya/relquery/query/shaper"
	"github.com/satishbabariya/relquery/query/sqlgen"
	"github.com/satishbabariya/relquery/query/translate"
)

// Options configures a compiler. Every option is part of the compiled-query
// cache key.
type Options struct {
	Provider      string
	ServerVersion string
	NullSemantics postprocess.NullSemantics
	// SplitQuery loads collections with related queries by default
	SplitQuery         bool
	DetailedErrors     bool
	IdentityResolution bool
	// CacheSize bounds the compiled-query cache; zero uses the default
	CacheSize   int
	Registry    *translate.Registry
	Diagnostics diagnostics.Sink
}

// Compiler compiles queries against one model and caches the results by
// query shape. It is safe for concurrent use.
type Compiler struct {
	model      *metadata.Model
	translator *translate.Translator
	generator  sqlgen.Generator
	opts       Options
	flags      []string
	cache      *cache.Compiled[*CompiledQuery]
}

// NewCompiler creates a new query compiler
func NewCompiler(model *metadata.Model, opts Options) (*Compiler, error) {
	if model == nil {
		return nil, fmt.Errorf("%w: nil model", ErrInvalidQuery)
	}
	if opts.Provider == "" {
		opts.Provider = "postgresql"
	}
	var genOpts []sqlgen.Option
	if opts.ServerVersion != "" {
		genOpts = append(genOpts, sqlgen.WithServerVersion(opts.ServerVersion))
	}
	gen, err := sqlgen.NewGenerator(opts.Provider, genOpts...)
	if err != nil {
		return nil, err
	}
	if opts.Diagnostics == nil {
		opts.Diagnostics = diagnostics.Discard
	}
	return &Compiler{
		model:      model,
		translator: translate.New(model, opts.Registry, translate.Options{SplitQuery: opts.SplitQuery}),
		generator:  gen,
		opts:       opts,
		flags: []string{
			"provider=" + gen.Provider(),
			"server=" + opts.ServerVersion,
			"nulls=" + opts.NullSemantics.String(),
			"split=" + strconv.FormatBool(opts.SplitQuery),
			"detailed=" + strconv.FormatBool(opts.DetailedErrors),
			"identity=" + strconv.FormatBool(opts.IdentityResolution),
		},
		cache: cache.NewCompiled[*CompiledQuery](opts.CacheSize),
	}, nil
}

// Model returns the model queries are compiled against
func (c *Compiler) Model() *metadata.Model {
	return c.model
}

// Provider returns the provider commands are generated for
func (c *Compiler) Provider() string {
	return c.generator.Provider()
}

// Key returns the compiled-query cache key of q
func (c *Compiler) Key(q ast.Query) ast.Key {
	return ast.Fingerprint(q, c.flags...)
}

// Compile returns the compiled query for q, compiling it on a cache miss
func (c *Compiler) Compile(q ast.Query) (*CompiledQuery, error) {
	if q == nil {
		return nil, fmt.Errorf("%w: nil query", ErrInvalidQuery)
	}
	key := c.Key(q)
	cq, hit, err := c.cache.GetOrCompile(key, func() (*CompiledQuery, error) {
		return c.compile(q, key)
	})
	if err != nil {
		return nil, err
	}
	debug.Debug("Compiled query cache", "key", key.String(), "hit", hit)
	return cq, nil
}

// CacheStats returns the statistics of the compiled-query cache
func (c *Compiler) CacheStats() cache.Stats {
	return c.cache.Stats()
}

func (c *Compiler) compile(q ast.Query, key ast.Key) (*CompiledQuery, error) {
	start := time.Now()
	res, err := c.translator.Translate(q)
	if err != nil {
		return nil, err
	}

	popts := postprocess.Options{NullSemantics: c.opts.NullSemantics}
	main, err := postprocess.Process(res.Select, popts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCompilationFailed, err)
	}
	related := make([]*ir.Select, len(res.Related))
	for i, r := range res.Related {
		if related[i], err = postprocess.Process(r, popts); err != nil {
			return nil, fmt.Errorf("%w: related query %d: %w", ErrCompilationFailed, i, err)
		}
	}

	program, err := shaper.Compile(res.Shape, shaper.Options{
		DetailedErrors:     c.opts.DetailedErrors,
		IdentityResolution: c.opts.IdentityResolution,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCompilationFailed, err)
	}
	if program.Queries() != len(related) {
		return nil, fmt.Errorf("%w: shaper merges %d related queries, translation produced %d",
			ErrCompilationFailed, program.Queries(), len(related))
	}

	cq := &CompiledQuery{
		ID:          newID(),
		Key:         key,
		Select:      main,
		Related:     related,
		Program:     program,
		Cardinality: res.Cardinality,
		Parameters:  res.Parameters,
		Warnings:    res.Warnings,
		nulls:       c.opts.NullSemantics,
		generator:   c.generator,
		commands:    make([]*cache.Commands[*sqlgen.Command], len(related)+1),
	}
	for i := range cq.commands {
		cq.commands[i] = cache.NewCommands[*sqlgen.Command]()
	}

	elapsed := time.Since(start)
	debug.Debug("Query compiled", "id", cq.ID.String(), "key", key.String(), "related", len(related), "duration", elapsed)
	ev := diagnostics.NewEvent(diagnostics.QueryCompiled, cq.ID)
	ev.Duration = elapsed
	c.opts.Diagnostics.Record(ev)
	for _, w := range res.Warnings {
		if w.Code == translate.WarnMultipleCollectionInclude {
			ev := diagnostics.NewEvent(diagnostics.MultipleCollectionInclude, cq.ID)
			ev.Message = w.Message
			c.opts.Diagnostics.Record(ev)
		}
	}
	return cq, nil
}

func newID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}

// CompiledQuery is the immutable result of compiling one query shape. It
// may be shared by concurrent executions; only its command caches change.
type CompiledQuery struct {
	ID  uuid.UUID
	Key ast.Key
	// Select is the main query and Related the queries of split
	// collections, as the program numbers them
	Select      *ir.Select
	Related     []*ir.Select
	Program     *shaper.Program
	Cardinality translate.Cardinality
	Parameters  map[string]*metadata.TypeMapping
	Warnings    []translate.Warning

	nulls     postprocess.NullSemantics
	generator sqlgen.Generator
	// commands holds one command cache per select, the main query first
	commands []*cache.Commands[*sqlgen.Command]
}

// Command returns the main command for values and its arguments
func (cq *CompiledQuery) Command(values map[string]any) (*sqlgen.Command, []any, error) {
	return cq.command(0, cq.Select, values)
}

// RelatedCommand returns the command of related query i for values and its
// arguments
func (cq *CompiledQuery) RelatedCommand(i int, values map[string]any) (*sqlgen.Command, []any, error) {
	if i < 0 || i >= len(cq.Related) {
		return nil, nil, fmt.Errorf("%w: %d", ErrNoRelatedQuery, i)
	}
	return cq.command(i+1, cq.Related[i], values)
}

// command specializes s for values. Commands generated without depending on
// the values are cached by parameter shape.
func (cq *CompiledQuery) command(slot int, s *ir.Select, values map[string]any) (*sqlgen.Command, []any, error) {
	shape := params.ShapeOf(values)
	commands := cq.commands[slot]
	if cmd, ok := commands.Get(shape); ok {
		debug.Debug("Command cache hit", "query", cq.ID.String(), "shape", shape.String())
		args, err := cmd.Args(values)
		return cmd, args, err
	}

	res, err := params.Process(s, values, cq.nulls)
	if err != nil {
		return nil, nil, err
	}
	cmd, err := cq.generator.Generate(res.Select)
	if err != nil {
		return nil, nil, err
	}
	if res.CanCache {
		cmd = commands.Add(shape, cmd)
	}
	debug.Debug("Command generated", "query", cq.ID.String(), "shape", shape.String(), "cached", res.CanCache)
	args, err := cmd.Args(res.Values)
	return cmd, args, err
}

// CachedCommands returns the number of parameter shapes cached for the main
// query
func (cq *CompiledQuery) CachedCommands() int {
	return cq.commands[0].Len()
}
