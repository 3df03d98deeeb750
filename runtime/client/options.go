package client

import (
	"github.com/satishbabariya/relquery/diagnostics"
	"github.com/satishbabariya/relquery/internal/debug"
	"github.com/satishbabariya/relquery/query/compiler"
	"github.com/satishbabariya/relquery/query/postprocess"
	"github.com/satishbabariya/relquery/query/translate"
)

// Option configures a Client
type Option func(*options)

type options struct {
	compiler    compiler.Options
	middlewares []Middleware
	prepare     bool
}

// WithNullSemantics selects relational or emulated null comparisons
func WithNullSemantics(n postprocess.NullSemantics) Option {
	return func(o *options) { o.compiler.NullSemantics = n }
}

// WithSplitQuery loads included collections with separate queries unless a
// query asks otherwise
func WithSplitQuery() Option {
	return func(o *options) { o.compiler.SplitQuery = true }
}

// WithDetailedErrors reports the property and column of materialization
// failures
func WithDetailedErrors() Option {
	return func(o *options) { o.compiler.DetailedErrors = true }
}

// WithIdentityResolution returns one instance per entity key within an
// enumeration
func WithIdentityResolution() Option {
	return func(o *options) { o.compiler.IdentityResolution = true }
}

// WithServerVersion gates SQL features on the database server version
func WithServerVersion(v string) Option {
	return func(o *options) { o.compiler.ServerVersion = v }
}

// WithCacheSize bounds the compiled-query cache
func WithCacheSize(n int) Option {
	return func(o *options) { o.compiler.CacheSize = n }
}

// WithFunctions sets the method and function translations
func WithFunctions(r *translate.Registry) Option {
	return func(o *options) { o.compiler.Registry = r }
}

// WithDiagnostics records compilation and execution events to sink
func WithDiagnostics(sink diagnostics.Sink) Option {
	return func(o *options) { o.compiler.Diagnostics = sink }
}

// WithMiddleware adds command middleware, outermost first
func WithMiddleware(m ...Middleware) Option {
	return func(o *options) { o.middlewares = append(o.middlewares, m...) }
}

// WithPreparedStatements reuses prepared statements per command text
func WithPreparedStatements() Option {
	return func(o *options) { o.prepare = true }
}

// Debug turns on debug logging
func Debug() Option {
	return func(*options) { debug.Init(true) }
}
