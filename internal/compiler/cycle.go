package compiler

import (
	"fmt"
	"slices"
	"strings"
)

// CycleWarning names a listener chain that can re-trigger itself.
//
// Cascades are not depth-limited, so a reported chain whose handlers never
// stop emitting will dispatch until the step limit of the runtime trips.
type CycleWarning struct {
	Path    []string `json:"path"` // first element repeated at the end
	Message string   `json:"message"`
	Level   string   `json:"level"`
}

// AnalyzeCycles reports listener chains that feed back into themselves.
//
// Listener A has an edge to listener B when some type A emits on firing is
// one B targets. Every strongly connected component with more than one
// member, or a single member with an edge to itself, becomes one warning.
// Output is ordered by registration so repeated compiles agree.
//
// Effect listeners contribute only their statically known completion types.
func AnalyzeCycles(listeners []*Entry) []CycleWarning {
	g := newTriggerGraph(listeners)
	out := []CycleWarning{}
	for _, comp := range g.components() {
		if len(comp) == 1 && !slices.Contains(g.edges[comp[0]], comp[0]) {
			continue
		}
		out = append(out, g.warning(comp))
	}
	slices.SortFunc(out, func(a, b CycleWarning) int {
		return g.rank[a.Path[0]] - g.rank[b.Path[0]]
	})
	return out
}

type triggerGraph struct {
	nodes []string // registration order
	rank  map[string]int
	edges map[string][]string
}

func newTriggerGraph(listeners []*Entry) *triggerGraph {
	g := &triggerGraph{
		rank:  make(map[string]int, len(listeners)),
		edges: make(map[string][]string, len(listeners)),
	}
	byTarget := make(map[string][]string)
	for i, l := range listeners {
		id := l.Path.String()
		g.nodes = append(g.nodes, id)
		g.rank[id] = i
		for _, t := range l.Targets {
			byTarget[t] = append(byTarget[t], id)
		}
	}
	for _, l := range listeners {
		id := l.Path.String()
		for _, t := range l.Types {
			g.edges[id] = append(g.edges[id], byTarget[t]...)
		}
	}
	return g
}

// sccWalk holds the bookkeeping of one Tarjan pass.
type sccWalk struct {
	g       *triggerGraph
	next    int
	index   map[string]int
	low     map[string]int
	stack   []string
	pending map[string]bool
	found   [][]string
}

// components returns the strongly connected components, each sorted by
// registration order.
func (g *triggerGraph) components() [][]string {
	w := &sccWalk{
		g:       g,
		index:   make(map[string]int, len(g.nodes)),
		low:     make(map[string]int, len(g.nodes)),
		pending: make(map[string]bool, len(g.nodes)),
	}
	for _, n := range g.nodes {
		if _, seen := w.index[n]; !seen {
			w.visit(n)
		}
	}
	for _, c := range w.found {
		slices.SortFunc(c, func(a, b string) int { return g.rank[a] - g.rank[b] })
	}
	return w.found
}

func (w *sccWalk) visit(n string) {
	w.index[n], w.low[n] = w.next, w.next
	w.next++
	w.stack = append(w.stack, n)
	w.pending[n] = true

	for _, m := range w.g.edges[n] {
		if _, seen := w.index[m]; !seen {
			w.visit(m)
			w.low[n] = min(w.low[n], w.low[m])
		} else if w.pending[m] {
			w.low[n] = min(w.low[n], w.index[m])
		}
	}
	if w.low[n] != w.index[n] {
		return
	}

	cut := slices.Index(w.stack, n)
	comp := slices.Clone(w.stack[cut:])
	for _, m := range comp {
		w.pending[m] = false
	}
	w.stack = w.stack[:cut]
	w.found = append(w.found, comp)
}

func (g *triggerGraph) warning(comp []string) CycleWarning {
	if len(comp) == 1 {
		id := comp[0]
		return CycleWarning{
			Path:    []string{id, id},
			Message: fmt.Sprintf("Self-triggering listener detected: %s → %s", id, id),
			Level:   "warning",
		}
	}
	loop := g.loopFrom(comp[0], comp)
	return CycleWarning{
		Path:    loop,
		Message: fmt.Sprintf("Potential listener cycle detected: %s", strings.Join(loop, " → ")),
		Level:   "warning",
	}
}

// loopFrom finds the shortest path from start back to itself that stays
// inside comp. A component always contains one.
func (g *triggerGraph) loopFrom(start string, comp []string) []string {
	inside := make(map[string]bool, len(comp))
	for _, n := range comp {
		inside[n] = true
	}
	parent := map[string]string{}
	queue := []string{start}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, m := range g.edges[n] {
			if !inside[m] {
				continue
			}
			if m == start {
				loop := []string{start}
				for cur := n; cur != start; cur = parent[cur] {
					loop = append(loop, cur)
				}
				slices.Reverse(loop[1:])
				return append(loop, start)
			}
			if _, seen := parent[m]; !seen {
				parent[m] = n
				queue = append(queue, m)
			}
		}
	}
	return []string{start, start}
}
