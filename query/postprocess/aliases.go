package postprocess

import (
	"github.com/satishbabariya/relquery/query/ir"
)

// UniquifyAliases renames tables whose alias is already declared elsewhere
// in the tree, so that every alias is unique across the whole command.
// Tables are visited outer select first.
func UniquifyAliases(s *ir.Select) *ir.Select {
	am := ir.NewAliasManager()
	for _, a := range ir.DeclaredAliases(s) {
		am.Reserve(a)
	}
	u := &uniquifier{am: am, seen: make(map[string]bool)}
	return u.sel(s)
}

type uniquifier struct {
	am   *ir.AliasManager
	seen map[string]bool
}

func (u *uniquifier) sel(s *ir.Select) *ir.Select {
	for _, alias := range s.TableAliases() {
		if alias == "" {
			continue
		}
		if u.seen[alias] {
			fresh := u.am.Generate(alias)
			s = ir.RenameAlias(s, alias, fresh)
			alias = fresh
		}
		u.seen[alias] = true
	}
	return nested(s, u.sel)
}
