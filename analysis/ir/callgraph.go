package ir

// CallGraphNode is one function in the call graph. IDs are assigned by
// BuildCallGraph in a deterministic order (functions sorted by name) so
// that iteration over a CallGraph is reproducible (spec.md §8, Testable
// Property 1: determinism).
type CallGraphNode struct {
	ID   int64
	Func *Function
}

// CallGraphEdge is a directed edge from a call site in Caller to Callee.
// Site is the calling instruction, used to recover argument lists for
// call-site interception (spec.md §4.D).
type CallGraphEdge struct {
	Caller *CallGraphNode
	Callee *CallGraphNode
	Site   *Instruction
}

// CallGraph is the whole-module static call graph, built conservatively:
// a direct call always yields an edge; an indirect call yields an edge to
// every function in the module whose name the points-to analysis resolves
// for that call site (the caller of BuildCallGraph supplies that
// resolution, since it requires the pointer analysis of spec.md §4.D).
type CallGraph struct {
	Nodes []*CallGraphNode
	ByFn  map[string]*CallGraphNode
	Out   map[int64][]*CallGraphEdge
	In    map[int64][]*CallGraphEdge
}

// NewCallGraph builds an (initially edge-less) call graph with one node
// per name in order, numbered in that order; the caller supplies a
// deterministic order (BuildCallGraph passes the names sorted).
func NewCallGraph(m *Module, order []string) *CallGraph {
	cg := &CallGraph{
		ByFn: make(map[string]*CallGraphNode, len(order)),
		Out:  make(map[int64][]*CallGraphEdge),
		In:   make(map[int64][]*CallGraphEdge),
	}
	for i, name := range order {
		fn := m.Functions[name]
		n := &CallGraphNode{ID: int64(i), Func: fn}
		cg.Nodes = append(cg.Nodes, n)
		cg.ByFn[name] = n
	}
	return cg
}

// AddEdge records a call-graph edge from caller to callee at the given
// call site.
func (cg *CallGraph) AddEdge(caller, callee *CallGraphNode, site *Instruction) {
	e := &CallGraphEdge{Caller: caller, Callee: callee, Site: site}
	cg.Out[caller.ID] = append(cg.Out[caller.ID], e)
	cg.In[callee.ID] = append(cg.In[callee.ID], e)
}
