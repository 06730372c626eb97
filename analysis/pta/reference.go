package pta

import (
	"fmt"
	"sort"

	"github.com/RohanKheraCR/OpenRace/analysis/ir"
)

// Reference is a small, intentionally unsound-but-useful Interface
// implementation: allocation-site points-to (one object per distinct
// global, per distinct heap-allocation call site, and per function
// value), context-insensitive points-to sets but context-sensitive
// bookkeeping of call-graph nodes, so that callers exercising the
// context-sensitive parts of the Interface contract (ContextEvolve,
// GetDirectNode) see realistic behavior even though the points-to sets
// themselves do not vary by context. It is a test double standing in
// for a production pointer analysis, the same role a partial, vendored
// solver plays for a test suite that can't afford a real one; it is not
// meant to be a sound production pointer analysis (spec.md §1: the
// concrete pointer-analysis engine is out of scope).
type Reference struct {
	module *ir.Module

	objects    []Object
	globalObjs map[string]ObjectID
	funcObjs   map[string]ObjectID
	allocObjs  map[*ir.Instruction]ObjectID

	// paramPts accumulates, per formal parameter LocalID, the points-to
	// sets that InterceptCallSite's argument connections flow in from
	// every recognized call site reaching that formal (spec.md §4.D).
	// Reference has no function-scoped value numbering, so this is keyed
	// by LocalID alone rather than by (function, LocalID): the same flat
	// simplification objectForGlobal already applies to global names.
	// Two different functions that both happen to number a formal
	// parameter with the same LocalID will share points-to flow here;
	// that is an accepted limitation of this double, not a real
	// interprocedural alias.
	paramPts map[int]PointsToSet

	// indirectResolutions lets tests pre-seed the callees an indirect
	// call site resolves to, since the Reference implementation has no
	// real interprocedural flow analysis of function pointers.
	indirectResolutions map[*ir.Instruction][]string
}

// NewReference builds a Reference Interface implementation. Use
// SeedIndirectCallSite before Analyze to pre-populate the resolution of
// indirect calls your test IR contains.
func NewReference() *Reference {
	return &Reference{
		globalObjs:          map[string]ObjectID{},
		funcObjs:            map[string]ObjectID{},
		allocObjs:           map[*ir.Instruction]ObjectID{},
		paramPts:            map[int]PointsToSet{},
		indirectResolutions: map[*ir.Instruction][]string{},
	}
}

// SeedIndirectCallSite records that instr (an indirect call) resolves to
// the named functions. Must be called before Analyze.
func (r *Reference) SeedIndirectCallSite(instr *ir.Instruction, callees ...string) {
	r.indirectResolutions[instr] = callees
}

func (r *Reference) newObject(kind ObjectKind, typ ir.Type) ObjectID {
	id := ObjectID(len(r.objects))
	r.objects = append(r.objects, Object{ID: id, Kind: kind, Type: typ})
	return id
}

// Analyze implements Interface. It assigns one object per distinct
// global, heap-allocation call site and function value reachable from
// entry; it does not compute a real call graph beyond what's needed to
// discover those sites.
func (r *Reference) Analyze(module *ir.Module, entry string) error {
	r.module = module
	fn := module.Func(entry)
	if fn == nil {
		return fmt.Errorf("pta: entry function %q not found", entry)
	}

	visited := map[string]bool{}
	var visit func(f *ir.Function)
	visit = func(f *ir.Function) {
		if f == nil || visited[f.Name] {
			return
		}
		visited[f.Name] = true
		r.objectForFunc(f.Name)

		f.AllInstructions(func(_ *ir.BasicBlock, _ int, in *ir.Instruction) {
			for _, v := range instrValues(in) {
				if v.Global != "" {
					r.objectForGlobal(v)
				}
			}
			if in.Op == ir.OpCallDirect {
				if IsHeapAllocator(in.Callee) {
					r.objectForAlloc(in)
				}
				r.applyCallSiteConnections(in)
				if callee := module.Func(in.Callee); callee != nil {
					visit(callee)
				}
			}
			if in.Op == ir.OpCallIndirect {
				for _, name := range r.indirectResolutions[in] {
					visit(module.Func(name))
				}
			}
		})
	}
	visit(fn)
	return nil
}

func (r *Reference) objectForGlobal(v ir.Value) ObjectID {
	if id, ok := r.globalObjs[v.Global]; ok {
		return id
	}
	id := r.newObject(ObjectKindSingle, v.Type)
	r.globalObjs[v.Global] = id
	return id
}

func (r *Reference) objectForFunc(name string) ObjectID {
	if id, ok := r.funcObjs[name]; ok {
		return id
	}
	id := r.newObject(ObjectKindSingle, ir.Type{Name: "func " + name})
	r.funcObjs[name] = id
	return id
}

// objectForAlloc mints the object(s) a heap-allocation call site produces.
// __kmpc_omp_task_alloc gets the two-object task-struct/shared-data pair
// of spec.md §4.D (TaskAllocationObjects) rather than a single opaque
// object, so that the task struct's Points field exposes the edge a race
// check can follow from the task handle to the data it shares.
func (r *Reference) objectForAlloc(instr *ir.Instruction) ObjectID {
	if id, ok := r.allocObjs[instr]; ok {
		return id
	}
	if instr.Callee == "__kmpc_omp_task_alloc" {
		taskID := ObjectID(len(r.objects))
		sharedID := taskID + 1
		task, shared := TaskAllocationObjects(taskID, sharedID, ir.Type{}, ir.Type{})
		r.objects = append(r.objects, task, shared)
		r.allocObjs[instr] = taskID
		return taskID
	}
	id := r.newObject(ObjectKindUnknown, ir.Type{})
	r.allocObjs[instr] = id
	return id
}

// applyCallSiteConnections records, for a recognized concurrency call
// site, the points-to flow InterceptCallSite says must hold between each
// caller argument and the entry function's matching formal parameter.
// The entry function's real formal count is needed before the
// __kmpc_fork_call/__kmpc_fork_teams variadic connection list can be
// bounded correctly, so the entry operand is resolved with an
// unbounded first call before re-deriving the connections against it.
func (r *Reference) applyCallSiteConnections(in *ir.Instruction) {
	entryVal, _, ok := InterceptCallSite(in, len(in.Operands))
	if !ok {
		return
	}
	entryFn := r.module.Func(entryVal.Func)
	if entryFn == nil {
		return
	}
	_, conns, ok := InterceptCallSite(in, entryFn.NumParams)
	if !ok {
		return
	}
	for _, c := range conns {
		if c.CallerArg < 0 || c.CallerArg >= len(in.Operands) {
			continue
		}
		calleeLocal := c.CalleeArg + 1
		if r.paramPts[calleeLocal] == nil {
			r.paramPts[calleeLocal] = PointsToSet{}
		}
		r.paramPts[calleeLocal].Union(r.pointsToForValue(in.Operands[c.CallerArg]))
	}
}

func (r *Reference) pointsToForValue(v ir.Value) PointsToSet {
	set := PointsToSet{}
	switch {
	case v.Global != "":
		set[r.objectForGlobal(v)] = true
	case v.Func != "":
		set[r.objectForFunc(v.Func)] = true
	case v.LocalID != 0:
		set.Union(r.paramPts[v.LocalID])
	}
	return set
}

// GetPointsTo implements Interface. The Reference implementation is
// context-insensitive: the returned set does not depend on ctx.
func (r *Reference) GetPointsTo(_ Context, v ir.Value) PointsToSet {
	return r.pointsToForValue(v)
}

// GetDirectNode implements Interface.
func (r *Reference) GetDirectNode(ctx Context, fn *ir.Function) *CallGraphNode {
	if fn == nil {
		return nil
	}
	return &CallGraphNode{Func: fn, Context: ctx}
}

// GetIndirectCallSite implements Interface, using the resolutions seeded
// via SeedIndirectCallSite.
func (r *Reference) GetIndirectCallSite(ctx Context, instr *ir.Instruction) []*CallGraphNode {
	names := r.indirectResolutions[instr]
	sort.Strings(names)
	out := make([]*CallGraphNode, 0, len(names))
	for _, name := range names {
		if fn := r.module.Func(name); fn != nil {
			out = append(out, &CallGraphNode{Func: fn, Context: ctx})
		}
	}
	return out
}

// ContextEvolve implements Interface using a call-string context.
func (r *Reference) ContextEvolve(parent Context, site *ir.Instruction) Context {
	return NewCallStringContext(parent, site)
}

// Object implements Interface.
func (r *Reference) Object(id ObjectID) Object {
	if int(id) < 0 || int(id) >= len(r.objects) {
		return Object{}
	}
	return r.objects[id]
}

func instrValues(in *ir.Instruction) []ir.Value {
	vals := append([]ir.Value{in.Addr, in.CalleeValue}, in.Operands...)
	return vals
}

var _ Interface = (*Reference)(nil)
