// Package sqlgen generates command text for different database providers
// from relational IR.
package sqlgen

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-version"

	"github.com/satishbabariya/relquery/query/ir"
)

var (
	// ErrUnknownProvider is returned for a provider name no dialect serves
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrUnsupported is returned when the select uses a construct the
	// provider, or the configured server version, cannot express
	ErrUnsupported = errors.New("construct not supported by provider")

	// ErrUnexpandedParameter is returned for array parameters that should
	// have been expanded before generation
	ErrUnexpandedParameter = errors.New("array parameter was not expanded")

	// ErrRawArgument is returned when raw command text references an
	// argument that was not supplied
	ErrRawArgument = errors.New("raw command argument out of range")

	// ErrMissingValue is returned when binding a command whose parameter has
	// no value
	ErrMissingValue = errors.New("missing parameter value")
)

// Command is generated command text plus the names of the parameters bound
// to its placeholders, in placeholder order. It holds no values and can be
// reused for any values of the shape it was generated for.
type Command struct {
	Text       string
	Parameters []string
}

// Args returns the positional arguments for the command
func (c *Command) Args(values map[string]any) ([]any, error) {
	args := make([]any, len(c.Parameters))
	for i, name := range c.Parameters {
		v, ok := values[name]
		if !ok {
			return nil, fmt.Errorf("%w: @%s", ErrMissingValue, name)
		}
		args[i] = v
	}
	return args, nil
}

// Generator generates command text for a specific provider
type Generator interface {
	Provider() string
	Generate(s *ir.Select) (*Command, error)
}

// Option configures a generator
type Option func(*options)

type options struct {
	serverVersion string
}

// WithServerVersion gates constructs on the version of the database server.
// Without it every construct the provider has ever supported is allowed.
func WithServerVersion(v string) Option {
	return func(o *options) {
		o.serverVersion = v
	}
}

// NewGenerator creates a new SQL generator for the given provider
func NewGenerator(provider string, opts ...Option) (Generator, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	var d *dialect
	switch provider {
	case "postgresql", "postgres":
		d = postgres
	case "mysql":
		d = mysql
	case "sqlite":
		d = sqlite
	case "sqlserver", "mssql":
		d = sqlserver
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
	g := &generator{d: d}
	if o.serverVersion != "" {
		v, err := version.NewVersion(o.serverVersion)
		if err != nil {
			return nil, fmt.Errorf("server version: %w", err)
		}
		g.server = v
	}
	return g, nil
}

type generator struct {
	d      *dialect
	server *version.Version
}

func (g *generator) Provider() string {
	return g.d.provider
}

// Generate renders s. Tags are emitted as leading comment lines.
func (g *generator) Generate(s *ir.Select) (*Command, error) {
	w := &writer{d: g.d, server: g.server, index: make(map[string]int)}
	for _, tag := range s.Tags {
		w.comment(tag)
	}
	w.sel(s)
	if w.err != nil {
		return nil, w.err
	}
	return &Command{Text: w.b.String(), Parameters: w.params}, nil
}
