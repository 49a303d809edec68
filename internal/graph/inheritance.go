package graph

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"codegraph/internal/ast"
)

// CycleError reports that an inheritance traversal reached a class through
// its own Extends chain. It is a diagnostic result, not a crash: callers
// surface it and the traversal terminates.
type CycleError struct {
	Start ast.NodeID
	Class string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("inheritance cycle detected at class %q (%s)", e.Class, e.Start.Hex())
}

// LinearizationError reports that C3 merge failed: the base-class orders
// are genuinely inconsistent and no valid MRO exists.
type LinearizationError struct {
	Class string
}

func (e *LinearizationError) Error() string {
	return fmt.Sprintf("cannot linearize %q: inconsistent base class order", e.Class)
}

// GetBaseClasses returns the one-hop Extends targets of a class, in
// declared order.
func (q *Query) GetBaseClasses(id ast.NodeID) ([]ast.Node, error) {
	if !q.store.HasNode(id) {
		return nil, fmt.Errorf("base classes: %s: %w", id.Hex(), ErrNotFound)
	}
	var out []ast.Node
	for _, e := range q.store.OutgoingEdges(id) {
		if e.Kind != ast.EdgeKindExtends {
			continue
		}
		if base, ok := q.store.GetNode(e.Target); ok {
			out = append(out, base)
		}
	}
	return out, nil
}

// GetSubclasses returns the classes extending the given class directly.
func (q *Query) GetSubclasses(id ast.NodeID) ([]ast.Node, error) {
	if !q.store.HasNode(id) {
		return nil, fmt.Errorf("subclasses: %s: %w", id.Hex(), ErrNotFound)
	}
	var out []ast.Node
	for _, e := range q.store.IncomingEdges(id) {
		if e.Kind != ast.EdgeKindExtends {
			continue
		}
		if sub, ok := q.store.GetNode(e.Source); ok {
			out = append(out, sub)
		}
	}
	return out, nil
}

// GetMetaclass returns the metaclass name a backend recorded in the node's
// metadata, plus the resolved class node when one with that name exists.
// The query engine never infers metaclasses itself.
func (q *Query) GetMetaclass(id ast.NodeID) (string, *ast.Node, error) {
	node, ok := q.store.GetNode(id)
	if !ok {
		return "", nil, fmt.Errorf("metaclass: %s: %w", id.Hex(), ErrNotFound)
	}
	name := node.MetaString(ast.MetaMetaclass)
	if name == "" {
		return "", nil, nil
	}
	for _, candidate := range q.store.NodesByName(name) {
		if candidate.Kind == ast.NodeKindClass {
			return name, &candidate, nil
		}
	}
	return name, nil, nil
}

// GetMixins returns the mixin base names the backend tagged on the class.
func (q *Query) GetMixins(id ast.NodeID) ([]string, error) {
	node, ok := q.store.GetNode(id)
	if !ok {
		return nil, fmt.Errorf("mixins: %s: %w", id.Hex(), ErrNotFound)
	}
	return node.MetaStrings(ast.MetaMixins), nil
}

// MethodResolutionOrder computes the C3 linearization of a class:
// MRO(C) = C + merge(MRO(B1), ..., MRO(Bn), [B1..Bn]), where merge takes
// the first head not appearing in the tail of any list. Base order is the
// Extends edge insertion order, i.e. the declared order.
func (q *Query) MethodResolutionOrder(id ast.NodeID) ([]ast.Node, error) {
	if !q.store.HasNode(id) {
		return nil, fmt.Errorf("mro: %s: %w", id.Hex(), ErrNotFound)
	}
	ids, err := q.linearize(id, make(map[ast.NodeID]bool))
	if err != nil {
		return nil, err
	}
	out := make([]ast.Node, 0, len(ids))
	for _, nid := range ids {
		if n, ok := q.store.GetNode(nid); ok {
			out = append(out, n)
		}
	}
	return out, nil
}

func (q *Query) linearize(id ast.NodeID, inProgress map[ast.NodeID]bool) ([]ast.NodeID, error) {
	if inProgress[id] {
		name := ""
		if n, ok := q.store.GetNode(id); ok {
			name = n.Name
		}
		return nil, &CycleError{Start: id, Class: name}
	}
	inProgress[id] = true
	defer delete(inProgress, id)

	bases := q.baseIDs(id)
	if len(bases) == 0 {
		return []ast.NodeID{id}, nil
	}

	var seqs [][]ast.NodeID
	for _, base := range bases {
		sub, err := q.linearize(base, inProgress)
		if err != nil {
			return nil, err
		}
		seqs = append(seqs, sub)
	}
	seqs = append(seqs, append([]ast.NodeID(nil), bases...))

	merged, ok := c3Merge(seqs)
	if !ok {
		name := ""
		if n, found := q.store.GetNode(id); found {
			name = n.Name
		}
		return nil, &LinearizationError{Class: name}
	}
	return append([]ast.NodeID{id}, merged...), nil
}

// baseIDs returns the Extends targets of a class in edge insertion order.
func (q *Query) baseIDs(id ast.NodeID) []ast.NodeID {
	var out []ast.NodeID
	for _, e := range q.store.OutgoingEdges(id) {
		if e.Kind == ast.EdgeKindExtends {
			out = append(out, e.Target)
		}
	}
	return out
}

// c3Merge repeatedly takes the first head that does not appear in the tail
// of any sequence, removing it everywhere. ok=false means no valid head
// exists and the hierarchy is inconsistent.
func c3Merge(seqs [][]ast.NodeID) ([]ast.NodeID, bool) {
	work := make([][]ast.NodeID, 0, len(seqs))
	for _, s := range seqs {
		if len(s) > 0 {
			work = append(work, append([]ast.NodeID(nil), s...))
		}
	}

	var out []ast.NodeID
	for len(work) > 0 {
		var chosen ast.NodeID
		found := false
		for _, seq := range work {
			head := seq[0]
			if inAnyTail(head, work) {
				continue
			}
			chosen = head
			found = true
			break
		}
		if !found {
			return nil, false
		}

		out = append(out, chosen)
		next := work[:0]
		for _, seq := range work {
			if len(seq) > 0 && seq[0] == chosen {
				seq = seq[1:]
			}
			if len(seq) > 0 {
				next = append(next, seq)
			}
		}
		work = next
	}
	return out, true
}

func inAnyTail(id ast.NodeID, seqs [][]ast.NodeID) bool {
	for _, seq := range seqs {
		for _, candidate := range seq[1:] {
			if candidate == id {
				return true
			}
		}
	}
	return false
}

// InheritsFrom reports whether the class transitively extends a base with
// the given name. Reaching the starting class again through its own chain
// is a CycleError.
func (q *Query) InheritsFrom(id ast.NodeID, baseName string) (bool, error) {
	start, ok := q.store.GetNode(id)
	if !ok {
		return false, fmt.Errorf("inherits from: %s: %w", id.Hex(), ErrNotFound)
	}

	visited := make(map[ast.NodeID]bool)
	stack := q.baseIDs(id)
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if current == id {
			return false, &CycleError{Start: id, Class: start.Name}
		}
		if visited[current] {
			continue
		}
		visited[current] = true

		if n, ok := q.store.GetNode(current); ok && n.Name == baseName {
			return true, nil
		}
		stack = append(stack, q.baseIDs(current)...)
	}
	return false, nil
}

// HasDiamond reports whether any ancestor is reachable from the class via
// more than one Extends path. Diamonds are valid input to C3 merge; this
// is informational only.
func (q *Query) HasDiamond(id ast.NodeID) (bool, error) {
	if !q.store.HasNode(id) {
		return false, fmt.Errorf("diamond check: %s: %w", id.Hex(), ErrNotFound)
	}

	// Bounded by a generous multiple of the node count so a cyclic
	// hierarchy terminates instead of looping.
	pathCount := make(map[ast.NodeID]int)
	queue := []ast.NodeID{id}
	hops := 0
	for len(queue) > 0 && hops < q.store.NodeCount()*4+8 {
		current := queue[0]
		queue = queue[1:]
		hops++
		for _, base := range q.baseIDs(current) {
			pathCount[base]++
			if pathCount[base] == 2 {
				return true, nil
			}
			if base != id {
				queue = append(queue, base)
			}
		}
	}
	return false, nil
}

// InheritanceInfo aggregates everything the engine knows about one class.
type InheritanceInfo struct {
	ClassName   string     `json:"className"`
	BaseClasses []ast.Node `json:"baseClasses,omitempty"`
	Subclasses  []ast.Node `json:"subclasses,omitempty"`
	Metaclass   string     `json:"metaclass,omitempty"`
	Mixins      []string   `json:"mixins,omitempty"`
	IsMetaclass bool       `json:"isMetaclass,omitempty"`
	HasDiamond  bool       `json:"hasDiamond,omitempty"`
	// MRO holds the C3 linearization as class names; empty when the
	// hierarchy is cyclic or inconsistent, with MROError explaining why.
	MRO      []string `json:"mro,omitempty"`
	MROError string   `json:"mroError,omitempty"`
}

// GetInheritanceInfo assembles the full inheritance picture for a class
// node. Non-class nodes yield a zero value with only the name set.
func (q *Query) GetInheritanceInfo(id ast.NodeID) (InheritanceInfo, error) {
	node, ok := q.store.GetNode(id)
	if !ok {
		return InheritanceInfo{}, fmt.Errorf("inheritance info: %s: %w", id.Hex(), ErrNotFound)
	}
	info := InheritanceInfo{ClassName: node.Name}
	if node.Kind != ast.NodeKindClass {
		return info, nil
	}

	info.BaseClasses, _ = q.GetBaseClasses(id)
	info.Subclasses, _ = q.GetSubclasses(id)
	info.Metaclass, _, _ = q.GetMetaclass(id)
	info.Mixins, _ = q.GetMixins(id)
	info.IsMetaclass = node.MetaBool(ast.MetaIsMetaclass)
	info.HasDiamond, _ = q.HasDiamond(id)

	mro, err := q.MethodResolutionOrder(id)
	if err != nil {
		info.MROError = err.Error()
	} else {
		info.MRO = make([]string, 0, len(mro))
		for _, n := range mro {
			info.MRO = append(info.MRO, n.Name)
		}
	}
	return info, nil
}

// InheritanceFilterKind selects the predicate a filter applies.
type InheritanceFilterKind string

const (
	FilterInheritsFrom InheritanceFilterKind = "inherits_from"
	FilterMetaclass    InheritanceFilterKind = "metaclass"
	FilterUsesMixin    InheritanceFilterKind = "uses_mixin"
)

// InheritanceFilter is one predicate for symbol search, e.g.
// {inherits_from, "BaseModel"}.
type InheritanceFilter struct {
	Kind InheritanceFilterKind
	Name string
}

// SearchSymbolsWithInheritance filters symbol names by pattern (regex when
// it compiles, case-insensitive substring otherwise) and keeps symbols
// matching at least one of the inheritance predicates. With no filters,
// pattern matching alone decides.
func (q *Query) SearchSymbolsWithInheritance(pattern string, filters []InheritanceFilter, limit int) ([]ast.Node, error) {
	if limit <= 0 {
		limit = 50
	}

	re, reErr := regexp.Compile(pattern)
	useRegex := reErr == nil
	lowered := strings.ToLower(pattern)

	names := q.store.SymbolNames()
	sort.Strings(names) // deterministic result order

	var out []ast.Node
	for _, name := range names {
		var matches bool
		if useRegex {
			matches = re.MatchString(name)
		} else {
			matches = strings.Contains(strings.ToLower(name), lowered)
		}
		if !matches {
			continue
		}

		for _, node := range q.store.NodesByName(name) {
			if len(filters) > 0 && !q.matchesAnyFilter(node, filters) {
				continue
			}
			out = append(out, node)
			if len(out) >= limit {
				return out, nil
			}
		}
	}
	return out, nil
}

func (q *Query) matchesAnyFilter(node ast.Node, filters []InheritanceFilter) bool {
	for _, f := range filters {
		switch f.Kind {
		case FilterInheritsFrom:
			ok, err := q.InheritsFrom(node.ID, f.Name)
			if err == nil && ok {
				return true
			}
		case FilterMetaclass:
			name, _, err := q.GetMetaclass(node.ID)
			if err == nil && name == f.Name {
				return true
			}
		case FilterUsesMixin:
			mixins, err := q.GetMixins(node.ID)
			if err != nil {
				continue
			}
			for _, m := range mixins {
				if m == f.Name {
					return true
				}
			}
		}
	}
	return false
}
