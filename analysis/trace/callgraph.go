// Package trace (continued): a lightweight whole-module call graph
// derived from the pointer analysis's own call-site resolution, used to
// diagnose recursive call cycles before a thread is unfolded. spec.md
// §4.E's recursion cutoff is enforced unconditionally by builder.go's
// active-call-stack check regardless of what this reports; this is
// advisory logging, the same shape as walking a callgraph.Node to
// discover which functions a goroutine can reach, using
// internal/graphutil's Johnson's-algorithm elementary-cycle finder.
package trace

import (
	"sort"

	"github.com/RohanKheraCR/OpenRace/analysis/ir"
	"github.com/RohanKheraCR/OpenRace/analysis/pta"
	"github.com/RohanKheraCR/OpenRace/internal/graphutil"
)

// BuildCallGraph constructs a whole-module call graph: one node per
// function, in sorted-name order so node ids are deterministic (spec.md
// §8, Testable Property 1), with a direct-call edge for every
// OpCallDirect and an indirect-call edge to every callee ptaImpl
// resolves for each OpCallIndirect at the root context.
func BuildCallGraph(module *ir.Module, ptaImpl pta.Interface) *ir.CallGraph {
	names := make([]string, 0, len(module.Functions))
	for n := range module.Functions {
		names = append(names, n)
	}
	sort.Strings(names)

	cg := ir.NewCallGraph(module, names)
	for _, name := range names {
		fn := module.Functions[name]
		caller := cg.ByFn[name]
		fn.AllInstructions(func(_ *ir.BasicBlock, _ int, instr *ir.Instruction) {
			switch instr.Op {
			case ir.OpCallDirect:
				if callee := cg.ByFn[instr.Callee]; callee != nil {
					cg.AddEdge(caller, callee, instr)
				}
			case ir.OpCallIndirect:
				for _, node := range ptaImpl.GetIndirectCallSite(pta.RootContext(), instr) {
					if node == nil || node.Func == nil {
						continue
					}
					if callee := cg.ByFn[node.Func.Name]; callee != nil {
						cg.AddEdge(caller, callee, instr)
					}
				}
			}
		})
	}
	return cg
}

// RecursiveCycles returns the elementary call cycles of cg, named by
// function, for diagnostic logging. A pthread or OpenMP task entry
// function recursing into itself is expected, not an error; builder.go's
// own cutoff (not this function) is what bounds the unfolding.
func RecursiveCycles(cg *ir.CallGraph) [][]string {
	cycles := graphutil.FindAllElementaryCycles(graphutil.NewCallGraphIterator(cg))
	out := make([][]string, 0, len(cycles))
	for _, cycle := range cycles {
		names := make([]string, len(cycle))
		for i, id := range cycle {
			names[i] = cg.Nodes[id].Func.Name
		}
		out = append(out, names)
	}
	return out
}
