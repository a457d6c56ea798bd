package workflow

import (
	"sort"
	"strings"
)

// ConditionPath is an AND-chain of branch tokens ("<branch>.<handle>")
// accumulated along one walk from a start node. The empty path means
// unconditionally reachable.
type ConditionPath []string

// String joins the path tokens.
func (p ConditionPath) String() string { return strings.Join(p, "&") }

// Clone returns an independent copy.
func (p ConditionPath) Clone() ConditionPath {
	out := make(ConditionPath, len(p))
	copy(out, p)
	return out
}

// HasPrefix reports whether p starts with prefix.
func (p ConditionPath) HasPrefix(prefix ConditionPath) bool {
	if len(prefix) > len(p) {
		return false
	}
	for i, tok := range prefix {
		if p[i] != tok {
			return false
		}
	}
	return true
}

// Subsumes reports whether every token of p appears in q, so satisfying q
// satisfies p.
func (p ConditionPath) Subsumes(q ConditionPath) bool {
	have := make(map[string]bool, len(q))
	for _, tok := range q {
		have[tok] = true
	}
	for _, tok := range p {
		if !have[tok] {
			return false
		}
	}
	return true
}

// ConditionToken builds the token for one branch outcome.
func ConditionToken(branchNodeID, handle string) string {
	return branchNodeID + "." + handle
}

// splitToken returns the branch node id and handle of a token.
func splitToken(tok string) (branch, handle string) {
	if i := strings.IndexByte(tok, '.'); i >= 0 {
		return tok[:i], tok[i+1:]
	}
	return tok, ""
}

// ConditionSet is the OR of the alternative condition paths under which a
// node is reachable.
type ConditionSet struct {
	paths map[string]ConditionPath
}

// NewConditionSet creates a set from the given paths.
func NewConditionSet(paths ...ConditionPath) *ConditionSet {
	s := &ConditionSet{paths: make(map[string]ConditionPath)}
	for _, p := range paths {
		s.Add(p)
	}
	return s
}

// Add inserts a path, reporting whether it was new.
func (s *ConditionSet) Add(p ConditionPath) bool {
	key := p.String()
	if _, ok := s.paths[key]; ok {
		return false
	}
	s.paths[key] = p.Clone()
	return true
}

// Len returns the number of alternative paths.
func (s *ConditionSet) Len() int { return len(s.paths) }

// Unconditional reports whether the set contains the empty path.
func (s *ConditionSet) Unconditional() bool {
	_, ok := s.paths[""]
	return ok
}

// Paths returns the paths in deterministic order.
func (s *ConditionSet) Paths() []ConditionPath {
	keys := make([]string, 0, len(s.paths))
	for k := range s.paths {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]ConditionPath, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.paths[k])
	}
	return out
}

// ConditionMapping computes, for every node reachable from the start set,
// the minimal disjunction of branch-outcome conjunctions under which it is
// reachable. Start nodes themselves carry the empty path.
func (g *Graph) ConditionMapping(start []string) map[string]*ConditionSet {
	mapping := make(map[string]*ConditionSet)
	setFor := func(id string) *ConditionSet {
		s, ok := mapping[id]
		if !ok {
			s = NewConditionSet()
			mapping[id] = s
		}
		return s
	}

	var walk func(id string, path ConditionPath)
	walk = func(id string, path ConditionPath) {
		branching := TraitsOf(g.descs[id].Type).Branching
		for _, e := range g.out[id] {
			next := path
			if branching {
				next = append(path.Clone(), ConditionToken(id, g.BranchHandle(e)))
			}
			setFor(e.Target).Add(next)
			walk(e.Target, next)
		}
	}

	for _, id := range start {
		if _, ok := g.descs[id]; !ok {
			continue
		}
		setFor(id).Add(nil)
		walk(id, nil)
	}

	for _, set := range mapping {
		set.Fold(g)
	}
	return mapping
}

// Fold minimizes the set to a fixpoint: whenever every possible outcome of
// a branch decision appears among the continuations of a common prefix, the
// last token is dropped, and any path that extends a shorter remaining path
// is pruned as redundant. Each pass strictly shrinks total token or path
// count, so folding terminates.
func (s *ConditionSet) Fold(g *Graph) {
	for {
		changed := s.foldCompleteBranches(g)
		if s.pruneExtensions() {
			changed = true
		}
		if !changed {
			return
		}
	}
}

// foldCompleteBranches performs one pass of the complete-outcome-set drop.
func (s *ConditionSet) foldCompleteBranches(g *Graph) bool {
	// Group non-empty paths by their prefix (all tokens but the last).
	type group struct {
		prefix ConditionPath
		// byBranch collects, per branch node, the distinct observed
		// outcomes and the member path keys carrying them.
		byBranch map[string]map[string][]string
	}
	groups := make(map[string]*group)
	for key, p := range s.paths {
		if len(p) == 0 {
			continue
		}
		prefix := p[:len(p)-1]
		gk := prefix.String()
		grp, ok := groups[gk]
		if !ok {
			grp = &group{prefix: prefix.Clone(), byBranch: make(map[string]map[string][]string)}
			groups[gk] = grp
		}
		branch, handle := splitToken(p[len(p)-1])
		if grp.byBranch[branch] == nil {
			grp.byBranch[branch] = make(map[string][]string)
		}
		grp.byBranch[branch][handle] = append(grp.byBranch[branch][handle], key)
	}

	changed := false
	for _, grp := range groups {
		for branch, outcomes := range grp.byBranch {
			total := g.HandleCount(branch)
			if total == 0 || len(outcomes) < total {
				continue
			}
			// Every possible outcome of this decision leads here: the
			// prefix alone suffices.
			for _, keys := range outcomes {
				for _, key := range keys {
					delete(s.paths, key)
				}
			}
			s.paths[grp.prefix.String()] = grp.prefix
			changed = true
		}
	}
	return changed
}

// pruneExtensions removes every path that strictly extends another
// remaining path: the shorter path already implies all its extensions.
func (s *ConditionSet) pruneExtensions() bool {
	changed := false
	for key, p := range s.paths {
		for _, q := range s.paths {
			if len(q) < len(p) && p.HasPrefix(q) {
				delete(s.paths, key)
				changed = true
				break
			}
		}
	}
	return changed
}
