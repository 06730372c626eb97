package pta_test

import (
	"testing"

	"github.com/RohanKheraCR/OpenRace/analysis/ir"
	"github.com/RohanKheraCR/OpenRace/analysis/pta"
)

func TestPointsToSetIntersectsAndUnion(t *testing.T) {
	a := pta.PointsToSet{1: true, 2: true}
	b := pta.PointsToSet{2: true, 3: true}
	c := pta.PointsToSet{4: true}

	if !a.Intersects(b) {
		t.Error("a and b share object 2, Intersects should be true")
	}
	if a.Intersects(c) {
		t.Error("a and c share nothing, Intersects should be false")
	}

	a.Union(c)
	if !a.Intersects(c) {
		t.Error("after Union, a should contain every member of c")
	}
}

func TestPointsToSetSortedIsDeterministic(t *testing.T) {
	s := pta.PointsToSet{5: true, 1: true, 3: true}
	got := s.Sorted()
	want := []pta.ObjectID{1, 3, 5}
	if len(got) != len(want) {
		t.Fatalf("Sorted() returned %d ids, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Sorted()[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestReferenceAnalyzeAssignsDistinctObjects(t *testing.T) {
	main := &ir.Function{
		Name: "main",
		Blocks: []*ir.BasicBlock{{
			Name: "entry",
			Instr: []ir.Instruction{
				{Op: ir.OpLoad, Addr: ir.Value{Global: "g"}},
				{Op: ir.OpLoad, Addr: ir.Value{Global: "g"}},
				{Op: ir.OpLoad, Addr: ir.Value{Global: "h"}},
			},
		}},
	}
	m := &ir.Module{Functions: map[string]*ir.Function{"main": main}, Entry: "main"}

	r := pta.NewReference()
	if err := r.Analyze(m, "main"); err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	g1 := r.GetPointsTo(pta.RootContext(), ir.Value{Global: "g"})
	g2 := r.GetPointsTo(pta.RootContext(), ir.Value{Global: "g"})
	h := r.GetPointsTo(pta.RootContext(), ir.Value{Global: "h"})

	if !g1.Intersects(g2) {
		t.Error("two loads of the same global must resolve to the same object")
	}
	if g1.Intersects(h) {
		t.Error("distinct globals must resolve to distinct objects")
	}
}

func TestReferenceAnalyzeUnknownEntry(t *testing.T) {
	m := &ir.Module{Functions: map[string]*ir.Function{}}
	r := pta.NewReference()
	if err := r.Analyze(m, "does_not_exist"); err == nil {
		t.Error("Analyze with an unknown entry function should return an error")
	}
}

func TestReferenceGetIndirectCallSiteUsesSeed(t *testing.T) {
	callee := &ir.Function{Name: "callee", Blocks: []*ir.BasicBlock{{Name: "entry"}}}
	instr := &ir.Instruction{Op: ir.OpCallIndirect}
	main := &ir.Function{
		Name:   "main",
		Blocks: []*ir.BasicBlock{{Name: "entry", Instr: []ir.Instruction{*instr}}},
	}
	m := &ir.Module{Functions: map[string]*ir.Function{"main": main, "callee": callee}}

	r := pta.NewReference()
	r.SeedIndirectCallSite(&main.Blocks[0].Instr[0], "callee")
	if err := r.Analyze(m, "main"); err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	nodes := r.GetIndirectCallSite(pta.RootContext(), &main.Blocks[0].Instr[0])
	if len(nodes) != 1 || nodes[0].Func.Name != "callee" {
		t.Fatalf("GetIndirectCallSite returned %v, want one node naming %q", nodes, "callee")
	}
}

func TestInterceptCallSitePthreadCreate(t *testing.T) {
	instr := &ir.Instruction{
		Callee: "pthread_create",
		Operands: []ir.Value{
			{LocalID: 1}, {}, {Func: "worker"}, {LocalID: 2},
		},
	}
	entry, conns, ok := pta.InterceptCallSite(instr, 1)
	if !ok {
		t.Fatal("InterceptCallSite(pthread_create) returned ok=false")
	}
	if entry.Func != "worker" {
		t.Errorf("entry.Func = %q, want %q", entry.Func, "worker")
	}
	if len(conns) != 1 || conns[0] != (pta.ArgConnection{CallerArg: 3, CalleeArg: 0}) {
		t.Errorf("conns = %v, want [{3 0}]", conns)
	}
}

func TestInterceptCallSiteUnrecognized(t *testing.T) {
	instr := &ir.Instruction{Callee: "memcpy"}
	if _, _, ok := pta.InterceptCallSite(instr, 3); ok {
		t.Error("InterceptCallSite on an unrecognized callee should return ok=false")
	}
}

func TestAllocationSizeKind(t *testing.T) {
	cases := []struct {
		static, element int64
		want            pta.ObjectKind
	}{
		{8, 8, pta.ObjectKindSingle},
		{80, 8, pta.ObjectKindBoundedArray},
		{7, 8, pta.ObjectKindUnboundedArray},
		{0, 8, pta.ObjectKindUnknown},
		{8, 0, pta.ObjectKindUnknown},
	}
	for _, c := range cases {
		if got := pta.AllocationSizeKind(c.static, c.element); got != c.want {
			t.Errorf("AllocationSizeKind(%d, %d) = %v, want %v", c.static, c.element, got, c.want)
		}
	}
}

func TestInferAllocatedTypeGivesUpOnMultipleTypes(t *testing.T) {
	if _, ok := pta.InferAllocatedType(nil); ok {
		t.Error("InferAllocatedType(nil) should return ok=false")
	}
	single := []ir.Type{{Name: "int"}}
	got, ok := pta.InferAllocatedType(single)
	if !ok || got.Name != "int" {
		t.Errorf("InferAllocatedType(%v) = (%v, %v), want (int, true)", single, got, ok)
	}
	multi := []ir.Type{{Name: "int"}, {Name: "float"}}
	if _, ok := pta.InferAllocatedType(multi); ok {
		t.Error("InferAllocatedType with multiple distinct bitcast types should give up (spec.md §9, Open Question 1)")
	}
}

func TestReferenceConnectsPthreadCreateArgumentToFormal(t *testing.T) {
	worker := &ir.Function{
		Name:      "worker",
		NumParams: 1,
		Blocks:    []*ir.BasicBlock{{Name: "entry"}},
	}
	main := &ir.Function{
		Name: "main",
		Blocks: []*ir.BasicBlock{{
			Name: "entry",
			Instr: []ir.Instruction{{
				Op:     ir.OpCallDirect,
				Callee: "pthread_create",
				Operands: []ir.Value{
					{LocalID: 1}, {}, {Func: "worker"}, {Global: "shared"},
				},
			}},
		}},
	}
	m := &ir.Module{Functions: map[string]*ir.Function{"main": main, "worker": worker}, Entry: "main"}

	r := pta.NewReference()
	if err := r.Analyze(m, "main"); err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	shared := r.GetPointsTo(pta.RootContext(), ir.Value{Global: "shared"})
	formal := r.GetPointsTo(pta.RootContext(), ir.Value{LocalID: 1})
	if !formal.Intersects(shared) {
		t.Errorf("worker's 1st formal (LocalID 1) = %v, want it to alias the 4th pthread_create argument %v", formal, shared)
	}
}

func TestReferenceObjectForAllocBuildsTaskSharedEdge(t *testing.T) {
	main := &ir.Function{
		Name: "main",
		Blocks: []*ir.BasicBlock{{
			Name: "entry",
			Instr: []ir.Instruction{{
				Op:     ir.OpCallDirect,
				Callee: "__kmpc_omp_task_alloc",
			}},
		}},
	}
	m := &ir.Module{Functions: map[string]*ir.Function{"main": main}, Entry: "main"}

	r := pta.NewReference()
	if err := r.Analyze(m, "main"); err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	var taskID pta.ObjectID
	var found bool
	for id := pta.ObjectID(0); id < 10; id++ {
		if obj := r.Object(id); obj.Kind == pta.ObjectKindTaskStruct {
			taskID, found = id, true
			break
		}
	}
	if !found {
		t.Fatal("Analyze over a __kmpc_omp_task_alloc call site should mint an ObjectKindTaskStruct object")
	}
	shared := r.Object(r.Object(taskID).Points)
	if shared.Kind != pta.ObjectKindTaskShared {
		t.Errorf("task struct's Points object kind = %v, want ObjectKindTaskShared", shared.Kind)
	}
}

func TestContextEvolveProducesDistinctContexts(t *testing.T) {
	r := pta.NewReference()
	root := pta.RootContext()
	site := &ir.Instruction{Callee: "f"}
	evolved := r.ContextEvolve(root, site)
	if evolved.String() == root.String() {
		t.Error("ContextEvolve should produce a context distinguishable from its parent")
	}
}
