package commands

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/satishbabariya/relquery/cli/internal/config"
	"github.com/satishbabariya/relquery/metadata/schema"
	"github.com/satishbabariya/relquery/query/ast"
	"github.com/satishbabariya/relquery/query/builder"
	"github.com/satishbabariya/relquery/query/compiler"
	"github.com/satishbabariya/relquery/query/postprocess"
)

// loadSchema reads and loads the schema file
func (s *settings) loadSchema() (*schema.Schema, error) {
	src, err := afero.ReadFile(config.AppFs, s.SchemaPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}
	sc, err := schema.Load(s.SchemaPath, string(src), nil)
	if err != nil {
		return nil, err
	}
	if s.Provider == "" {
		s.Provider = sc.Provider
	}
	if s.DatabaseURL == "" {
		s.DatabaseURL = sc.URL
	}
	return sc, nil
}

// loadQuery reads a JSON query document
func (s *settings) loadQuery() (ast.Query, error) {
	if s.queryPath == "" {
		return nil, fmt.Errorf("--query is required")
	}
	data, err := afero.ReadFile(config.AppFs, s.queryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read query: %w", err)
	}
	return builder.ParseJSON(data)
}

// compilerOptions converts the settings into compiler options
func (s *settings) compilerOptions() (compiler.Options, error) {
	nulls, err := postprocess.ParseNullSemantics(s.NullSemantics)
	if err != nil {
		return compiler.Options{}, err
	}
	return compiler.Options{
		Provider:       s.Provider,
		ServerVersion:  s.ServerVersion,
		NullSemantics:  nulls,
		SplitQuery:     s.SplitQuery,
		DetailedErrors: s.DetailedErrors,
	}, nil
}

// parseParams parses name=value pairs. Values are read as YAML scalars or
// flow sequences, so 3, null, true and [1, 2] keep their types.
func parseParams(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		name, raw, ok := strings.Cut(p, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid parameter %q, want name=value", p)
		}
		var v any
		if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("parameter %s: %w", name, err)
		}
		out[name] = v
	}
	return out, nil
}

// promptMissing asks for the value of every query parameter that was not
// given on the command line
func promptMissing(names []string, values map[string]any) error {
	for _, name := range names {
		if _, ok := values[name]; ok {
			continue
		}
		var answer string
		prompt := &survey.Input{
			Message: fmt.Sprintf("@%s =", name),
			Help:    "YAML value: 3, go, null, true or [1, 2]",
		}
		if err := survey.AskOne(prompt, &answer); err != nil {
			return err
		}
		parsed, err := parseParams([]string{name + "=" + answer})
		if err != nil {
			return err
		}
		values[name] = parsed[name]
	}
	return nil
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// sortedKeys returns the keys of m in order
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
