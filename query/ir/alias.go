package ir

import (
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// AliasManager hands out table aliases unique within one query. Aliases are
// the lowercased first letter of the table name followed by a per-letter
// counter: b0, b1, p0.
type AliasManager struct {
	next map[string]int
}

// NewAliasManager creates an alias manager
func NewAliasManager() *AliasManager {
	return &AliasManager{next: make(map[string]int)}
}

// Generate returns a fresh alias for a table name
func (m *AliasManager) Generate(name string) string {
	prefix := aliasPrefix(name)
	n := m.next[prefix]
	m.next[prefix] = n + 1
	return prefix + strconv.Itoa(n)
}

// Reserve marks an alias as taken so Generate never returns it
func (m *AliasManager) Reserve(alias string) {
	prefix, n, ok := splitAlias(alias)
	if !ok {
		return
	}
	if m.next[prefix] <= n {
		m.next[prefix] = n + 1
	}
}

func aliasPrefix(name string) string {
	for _, r := range name {
		if unicode.IsLetter(r) {
			return string(unicode.ToLower(r))
		}
	}
	return "t"
}

// splitAlias splits a generated alias into its letter prefix and number
func splitAlias(alias string) (string, int, bool) {
	i := strings.IndexFunc(alias, unicode.IsDigit)
	if i <= 0 {
		return "", 0, false
	}
	n, err := strconv.Atoi(alias[i:])
	if err != nil {
		return "", 0, false
	}
	return alias[:i], n, true
}

// DeclaredAliases returns every alias declared by a table anywhere under n,
// in depth-first order.
func DeclaredAliases(n Node) []string {
	var out []string
	Inspect(n, func(c Node) bool {
		if t, ok := c.(Table); ok {
			if _, isJoin := t.(*Join); !isJoin && t.TableAlias() != "" {
				out = append(out, t.TableAlias())
			}
		}
		return true
	})
	return out
}

// Renumber closes gaps left in generated aliases, per letter and preserving
// relative order, so that t0, t2 become t0, t1. Column references follow the
// renamed tables.
func Renumber(s *Select) *Select {
	byPrefix := make(map[string][]int)
	for _, alias := range DeclaredAliases(s) {
		prefix, n, ok := splitAlias(alias)
		if !ok {
			continue
		}
		byPrefix[prefix] = append(byPrefix[prefix], n)
	}
	rename := make(map[string]string)
	for prefix, nums := range byPrefix {
		sort.Ints(nums)
		idx := 0
		for i, n := range nums {
			if i > 0 && nums[i-1] == n {
				continue
			}
			if n != idx {
				rename[prefix+strconv.Itoa(n)] = prefix + strconv.Itoa(idx)
			}
			idx++
		}
	}
	if len(rename) == 0 {
		return s
	}
	return RewriteSelect(RewriteFunc(func(n Node) Node {
		switch x := n.(type) {
		case *ColumnRef:
			if to, ok := rename[x.Table]; ok {
				cp := *x
				cp.Table = to
				return &cp
			}
		case *Join:
			return x
		case Table:
			if to, ok := rename[x.TableAlias()]; ok {
				return withAlias(x, to)
			}
		}
		return n
	}), s)
}

// RenameAlias renames the table declared as from in s to to, retargeting
// column references in s and in nested selects that do not declare from
// themselves.
func RenameAlias(s *Select, from, to string) *Select {
	r := &aliasRenamer{from: from, to: to}
	out := mapChildren(s, func(c Node) Node { return Rewrite(r, c) }).(*Select)
	cloned := false
	for i, t := range out.Tables {
		if t.TableAlias() != from {
			continue
		}
		if !cloned {
			out = out.clone()
			cloned = true
		}
		out.Tables[i] = withAlias(t, to)
	}
	return out
}

type aliasRenamer struct {
	from, to string
}

func (r *aliasRenamer) Walk(n Node) Rewriter {
	if sel, ok := n.(*Select); ok {
		for _, alias := range sel.TableAliases() {
			if alias == r.from {
				return nil
			}
		}
	}
	return r
}

func (r *aliasRenamer) Rewrite(n Node) Node {
	if x, ok := n.(*ColumnRef); ok && x.Table == r.from {
		cp := *x
		cp.Table = r.to
		return &cp
	}
	return n
}
