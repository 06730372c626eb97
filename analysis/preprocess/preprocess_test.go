package preprocess_test

import (
	"testing"

	"github.com/RohanKheraCR/OpenRace/analysis/config"
	"github.com/RohanKheraCR/OpenRace/analysis/ir"
	"github.com/RohanKheraCR/OpenRace/analysis/preprocess"
)

func testLogger() *config.LogGroup { return config.NewLogGroup(config.ErrLevel) }

func TestDuplicateForksInsertsCopy(t *testing.T) {
	m := &ir.Module{Functions: map[string]*ir.Function{
		"f": {
			Name: "f",
			Blocks: []*ir.BasicBlock{{
				Name:  "entry",
				Instr: []ir.Instruction{{Op: ir.OpCallDirect, Callee: "__kmpc_fork_call"}},
			}},
		},
	}}

	preprocess.DuplicateForks(m, testLogger())

	instrs := m.Functions["f"].Blocks[0].Instr
	if len(instrs) != 2 {
		t.Fatalf("got %d instructions after duplication, want 2", len(instrs))
	}
	if instrs[0].Callee != "__kmpc_fork_call" || instrs[1].Callee != "__kmpc_fork_call" {
		t.Fatalf("expected two __kmpc_fork_call instructions, got %q and %q", instrs[0].Callee, instrs[1].Callee)
	}
	if instrs[1].IsSynthetic() != true {
		t.Error("the inserted duplicate must be marked synthetic")
	}
	if instrs[0].IsSynthetic() {
		t.Error("the original fork call must not be marked synthetic")
	}
}

func TestDuplicateForksIsIdempotent(t *testing.T) {
	m := &ir.Module{Functions: map[string]*ir.Function{
		"f": {
			Name: "f",
			Blocks: []*ir.BasicBlock{{
				Name:  "entry",
				Instr: []ir.Instruction{{Op: ir.OpCallDirect, Callee: "__kmpc_fork_call"}},
			}},
		},
	}}

	preprocess.DuplicateForks(m, testLogger())
	first := len(m.Functions["f"].Blocks[0].Instr)
	preprocess.DuplicateForks(m, testLogger())
	second := len(m.Functions["f"].Blocks[0].Instr)

	if first != second {
		t.Errorf("running DuplicateForks twice changed instruction count from %d to %d, want idempotent", first, second)
	}
}

func TestDuplicateForksIsIdempotentWhenPairEndsTheBlock(t *testing.T) {
	// The second element of an already-duplicated pair sits at the very
	// end of the block, with nothing after it to compare against: a
	// purely forward-looking "is there a matching fork next" check would
	// wrongly treat it as an isolated, not-yet-duplicated fork and
	// duplicate it again on every run.
	m := &ir.Module{Functions: map[string]*ir.Function{
		"f": {
			Name: "f",
			Blocks: []*ir.BasicBlock{{
				Name: "entry",
				Instr: []ir.Instruction{
					{Op: ir.OpCallDirect, Callee: "__kmpc_push_num_threads"},
					{Op: ir.OpCallDirect, Callee: "__kmpc_fork_call"},
					{Op: ir.OpCallDirect, Callee: "__kmpc_fork_call"},
				},
			}},
		},
	}}

	preprocess.DuplicateForks(m, testLogger())
	first := len(m.Functions["f"].Blocks[0].Instr)
	preprocess.DuplicateForks(m, testLogger())
	second := len(m.Functions["f"].Blocks[0].Instr)
	preprocess.DuplicateForks(m, testLogger())
	third := len(m.Functions["f"].Blocks[0].Instr)

	if first != 3 {
		t.Fatalf("got %d instructions after the first run, want 3 (the pair was already duplicated)", first)
	}
	if first != second || second != third {
		t.Errorf("instruction count across three runs = [%d, %d, %d], want constant", first, second, third)
	}
}

func TestRunIsSupersetOfOriginal(t *testing.T) {
	original := &ir.Module{Functions: map[string]*ir.Function{
		"f": {
			Name: "f",
			Blocks: []*ir.BasicBlock{{
				Name:  "entry",
				Instr: []ir.Instruction{{Op: ir.OpCallDirect, Callee: "__kmpc_fork_call"}},
			}},
		},
	}}
	m := &ir.Module{Functions: map[string]*ir.Function{
		"f": {
			Name: "f",
			Blocks: []*ir.BasicBlock{{
				Name:  "entry",
				Instr: []ir.Instruction{{Op: ir.OpCallDirect, Callee: "__kmpc_fork_call"}},
			}},
		},
	}}

	if _, err := preprocess.Run(m, testLogger()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !preprocess.IsSupersetOf(original, m) {
		t.Error("preprocessed module is not a superset of the original")
	}
}

func TestMarkGuardsInsertsGuardPair(t *testing.T) {
	fn := &ir.Function{
		Name: "f",
		Blocks: []*ir.BasicBlock{
			{
				Name: "entry",
				Instr: []ir.Instruction{
					{Op: ir.OpCallDirect, Callee: "omp_get_thread_num", Result: 1},
					{Op: ir.OpCompareEq, Operands: []ir.Value{{LocalID: 1}}, CompareConst: 0, Result: 2},
					{Op: ir.OpBranch, Operands: []ir.Value{{LocalID: 2}}, BranchTrue: "guarded", BranchFalse: "after"},
				},
			},
			{
				Name: "guarded",
				Instr: []ir.Instruction{
					{Op: ir.OpStore, Addr: ir.Value{Global: "g"}},
					{Op: ir.OpJump, BranchTrue: "after"},
				},
			},
			{Name: "after", Instr: []ir.Instruction{{Op: ir.OpReturn}}},
		},
	}
	m := &ir.Module{Functions: map[string]*ir.Function{"f": fn}}

	preprocess.MarkGuards(m, testLogger())

	guarded := fn.Blocks[1]
	if len(guarded.Instr) != 4 {
		t.Fatalf("guarded block has %d instructions, want 4 (GuardStart, Store, GuardEnd, Jump)", len(guarded.Instr))
	}
	if guarded.Instr[0].Callee != preprocess.GuardStartName {
		t.Errorf("guarded.Instr[0].Callee = %q, want %q", guarded.Instr[0].Callee, preprocess.GuardStartName)
	}
	if !guarded.Instr[0].IsSynthetic() {
		t.Error("inserted GuardStart must be marked synthetic")
	}
}

func TestMarkGuardsIsIdempotent(t *testing.T) {
	fn := &ir.Function{
		Name: "f",
		Blocks: []*ir.BasicBlock{
			{
				Name: "entry",
				Instr: []ir.Instruction{
					{Op: ir.OpCallDirect, Callee: "omp_get_thread_num", Result: 1},
					{Op: ir.OpCompareEq, Operands: []ir.Value{{LocalID: 1}}, CompareConst: 0, Result: 2},
					{Op: ir.OpBranch, Operands: []ir.Value{{LocalID: 2}}, BranchTrue: "guarded", BranchFalse: "after"},
				},
			},
			{
				Name: "guarded",
				Instr: []ir.Instruction{
					{Op: ir.OpStore, Addr: ir.Value{Global: "g"}},
					{Op: ir.OpJump, BranchTrue: "after"},
				},
			},
			{Name: "after", Instr: []ir.Instruction{{Op: ir.OpReturn}}},
		},
	}
	m := &ir.Module{Functions: map[string]*ir.Function{"f": fn}}

	preprocess.MarkGuards(m, testLogger())
	first := len(fn.Blocks[1].Instr)
	preprocess.MarkGuards(m, testLogger())
	second := len(fn.Blocks[1].Instr)

	if first != second {
		t.Errorf("running MarkGuards twice changed guarded-block instruction count from %d to %d, want idempotent", first, second)
	}
}
