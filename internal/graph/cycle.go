package graph

import (
	"fmt"
	"sort"
	"strings"
)

// CycleWarning reports money that can flow back to where it started.
//
// Cycles are warnings, not errors: a household may deliberately sweep a pod
// back into its account. Only the immediate cases are rejected, by
// ValidateTarget.
type CycleWarning struct {
	Path    []string `json:"path"` // node ids: ["a", "b", "a"]
	Message string   `json:"message"`
}

// AnalyzeCycles finds strongly connected components in the money graph
// formed by flows and rule allocations, and reports each component with more
// than one node, or a self-loop, as a warning.
//
// Results are ordered by the first node id of each path.
func AnalyzeCycles(s Snapshot) []CycleWarning {
	g := buildMoneyGraph(s)
	if len(g) == 0 {
		return []CycleWarning{}
	}

	labels := make(map[string]string, len(s.Nodes))
	for _, n := range s.Nodes {
		labels[n.ID] = n.Label
	}

	warnings := []CycleWarning{}
	for _, scc := range tarjanSCC(g) {
		if len(scc) > 1 || (len(scc) == 1 && g.hasEdge(scc[0], scc[0])) {
			warnings = append(warnings, sccToWarning(scc, labels))
		}
	}
	sort.Slice(warnings, func(i, j int) bool {
		return warnings[i].Path[0] < warnings[j].Path[0]
	})
	return warnings
}

// moneyGraph maps node id to the ids it sends money to.
type moneyGraph map[string][]string

func (g moneyGraph) hasEdge(from, to string) bool {
	for _, n := range g[from] {
		if n == to {
			return true
		}
	}
	return false
}

func buildMoneyGraph(s Snapshot) moneyGraph {
	g := make(moneyGraph)
	add := func(from, to string) {
		if from == "" || to == "" || g.hasEdge(from, to) {
			return
		}
		g[from] = append(g[from], to)
		if _, ok := g[to]; !ok {
			g[to] = []string{}
		}
	}
	for _, f := range s.Flows {
		add(f.SourceID, f.TargetID)
	}
	for _, r := range s.Rules {
		for _, a := range r.Allocations {
			add(r.SourceNodeID, a.TargetNodeID)
		}
	}
	for from := range g {
		sort.Strings(g[from])
	}
	return g
}

// tarjanSCC returns the strongly connected components of g. Nodes are
// visited in sorted order so output is deterministic.
func tarjanSCC(g moneyGraph) [][]string {
	index := 0
	var stack []string
	onStack := make(map[string]bool)
	indices := make(map[string]int)
	lowlinks := make(map[string]int)
	var sccs [][]string

	var strongConnect func(v string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlinks[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlinks[v] = min(lowlinks[v], lowlinks[w])
			} else if onStack[w] {
				lowlinks[v] = min(lowlinks[v], indices[w])
			}
		}

		if lowlinks[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(g))
	for v := range g {
		nodes = append(nodes, v)
	}
	sort.Strings(nodes)
	for _, v := range nodes {
		if _, visited := indices[v]; !visited {
			strongConnect(v)
		}
	}
	return sccs
}

func sccToWarning(scc []string, labels map[string]string) CycleWarning {
	path := make([]string, len(scc))
	copy(path, scc)
	sort.Strings(path)
	path = append(path, path[0])

	names := make([]string, len(path))
	for i, id := range path {
		if l := labels[id]; l != "" {
			names[i] = l
		} else {
			names[i] = id
		}
	}

	msg := fmt.Sprintf("money can cycle: %s", strings.Join(names, " → "))
	if len(scc) == 1 {
		msg = fmt.Sprintf("%q sends money to itself", names[0])
	}
	return CycleWarning{Path: path, Message: msg}
}
