package shaper

import (
	"context"
)

// Row is the current row of a reader
type Row interface {
	IsNull(ordinal int) bool
	Value(ordinal int) any
}

// Cursor is a forward-only reader over the rows of a related query
type Cursor interface {
	Row
	Next(ctx context.Context) (bool, error)
}

// SideSource opens the reader of related query i. It is called at most
// once per query and enumeration, when the first owner needs its rows.
type SideSource func(ctx context.Context, i int) (Cursor, error)

// State is the per-enumeration state of a program: the result being
// assembled, its open collections and the positions of related readers.
type State struct {
	p          *Program
	sides      SideSource
	cursors    map[int]*sideCursor
	identities map[string]any

	current any
	frame   *frame
	lastID  []any
	pending bool
}

// NewState starts an enumeration. sides may be nil when the program merges
// no related queries.
func (p *Program) NewState(sides SideSource) *State {
	s := &State{p: p, sides: sides, cursors: make(map[int]*sideCursor)}
	if p.opts.IdentityResolution {
		s.identities = make(map[string]any)
	}
	return s
}

// ProcessRow feeds the next row of the main query. It returns a result
// when one is complete: immediately for streaming programs, otherwise once
// a row belonging to the next result arrives. Flush returns the last one.
func (s *State) ProcessRow(ctx context.Context, row Row) (any, bool, error) {
	rc := &rowCtx{ctx: ctx, s: s, row: row}
	if !s.p.lookahead {
		f := &frame{}
		v, err := s.p.root.build(rc, f)
		if err != nil {
			return nil, false, err
		}
		if err := f.update(rc); err != nil {
			return nil, false, err
		}
		return v, true, nil
	}

	id := rc.identifier(s.p.identifier)
	if s.pending && identifiersEqual(id, s.lastID) {
		return nil, false, s.frame.update(rc)
	}

	prev, ready := s.current, s.pending
	f := &frame{}
	v, err := s.p.root.build(rc, f)
	if err != nil {
		return nil, false, err
	}
	if err := f.update(rc); err != nil {
		return nil, false, err
	}
	s.current, s.frame, s.lastID, s.pending = v, f, id, true
	return prev, ready, nil
}

// Flush returns the result still being assembled after the last row
func (s *State) Flush() (any, bool) {
	if !s.pending {
		return nil, false
	}
	v := s.current
	s.current, s.frame, s.lastID, s.pending = nil, nil, nil, false
	return v, true
}

// rowCtx is one row being materialized. Entities are cached per row so an
// entity projected twice is built once.
type rowCtx struct {
	ctx   context.Context
	s     *State
	row   Row
	cache map[*entityShaper]any
}

func (rc *rowCtx) remember(e *entityShaper, v any) {
	if rc.cache == nil {
		rc.cache = make(map[*entityShaper]any)
	}
	rc.cache[e] = v
}

func (rc *rowCtx) identifier(ids []Identifier) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		if !rc.row.IsNull(id.Ordinal) {
			out[i] = canonical(id.Mapping, rc.row.Value(id.Ordinal))
		}
	}
	return out
}

func (rc *rowCtx) fail(err error, ordinal int) error {
	if !rc.s.p.opts.DetailedErrors {
		return err
	}
	return &MaterializationError{Ordinal: ordinal, Err: err}
}

// frame holds the open collections of one instance that owns collections
type frame struct {
	collections []*collectionState
}

func (f *frame) update(rc *rowCtx) error {
	for _, st := range f.collections {
		if err := st.process(rc); err != nil {
			return err
		}
	}
	return nil
}

type collectionShaper struct {
	node *Collection
	elem materializer
}

func (c *collectionShaper) attach(_ *rowCtx, f *frame, add func(any) error) error {
	f.collections = append(f.collections, &collectionState{c: c, add: add})
	return nil
}

// collectionState tracks the last identifiers seen by one collection of
// one owner
type collectionState struct {
	c         *collectionShaper
	add       func(any) error
	started   bool
	complete  bool
	lastOuter []any
	lastSelf  []any
	elem      *frame
}

func (st *collectionState) process(rc *rowCtx) error {
	if st.complete {
		return nil
	}
	outer := rc.identifier(st.c.node.Outer)
	if !st.started {
		st.started = true
		st.lastOuter = outer
	} else if !identifiersEqual(outer, st.lastOuter) {
		// the rows of this collection are over for this owner
		st.complete = true
		return nil
	}

	if len(st.c.node.Self) > 0 {
		self := rc.identifier(st.c.node.Self)
		if allNull(self) {
			return nil
		}
		if st.elem != nil && identifiersEqual(self, st.lastSelf) {
			return st.elem.update(rc)
		}
		st.lastSelf = self
	}

	ef := &frame{}
	v, err := st.c.elem.build(rc, ef)
	if err != nil {
		return err
	}
	if err := st.add(v); err != nil {
		return err
	}
	st.elem = ef
	return ef.update(rc)
}

type sideCursor struct {
	cur        Cursor
	positioned bool
	done       bool
}

func (s *State) side(ctx context.Context, i int) (*sideCursor, error) {
	if sc, ok := s.cursors[i]; ok {
		return sc, nil
	}
	if s.sides == nil {
		return nil, ErrInvalidShape
	}
	cur, err := s.sides(ctx, i)
	if err != nil {
		return nil, err
	}
	sc := &sideCursor{cur: cur}
	s.cursors[i] = sc
	return sc, nil
}

type splitShaper struct {
	node *SplitCollection
	elem materializer
}

// attach merges the related rows of the owner on the current row. Related
// rows are ordered like owners, so they are consumed while their parent
// identifier matches and the first mismatching row is kept for the next
// owner.
func (sp *splitShaper) attach(rc *rowCtx, _ *frame, add func(any) error) error {
	sc, err := rc.s.side(rc.ctx, sp.node.Query)
	if err != nil {
		return err
	}
	parent := rc.identifier(sp.node.Parent)
	var lastSelf []any
	var elem *frame
	for {
		if !sc.positioned {
			if sc.done {
				return nil
			}
			ok, err := sc.cur.Next(rc.ctx)
			if err != nil {
				return err
			}
			if !ok {
				sc.done = true
				return nil
			}
			sc.positioned = true
		}
		src := &rowCtx{ctx: rc.ctx, s: rc.s, row: sc.cur}
		if !identifiersEqual(src.identifier(sp.node.ChildParent), parent) {
			return nil
		}
		self := src.identifier(sp.node.Self)
		if elem != nil && len(self) > 0 && identifiersEqual(self, lastSelf) {
			if err := elem.update(src); err != nil {
				return err
			}
		} else {
			ef := &frame{}
			v, err := sp.elem.build(src, ef)
			if err != nil {
				return err
			}
			if err := add(v); err != nil {
				return err
			}
			if err := ef.update(src); err != nil {
				return err
			}
			lastSelf, elem = self, ef
		}
		sc.positioned = false
	}
}
