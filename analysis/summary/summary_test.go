package summary_test

import (
	"testing"

	"github.com/RohanKheraCR/OpenRace/analysis/config"
	"github.com/RohanKheraCR/OpenRace/analysis/ir"
	"github.com/RohanKheraCR/OpenRace/analysis/rop"
	"github.com/RohanKheraCR/OpenRace/analysis/summary"
)

func newTestSummarizer() *summary.Summarizer {
	return summary.NewSummarizer(config.NewLogGroup(config.ErrLevel))
}

func TestSummarizeReadWrite(t *testing.T) {
	fn := &ir.Function{
		Name: "f",
		Blocks: []*ir.BasicBlock{{
			Name: "entry",
			Instr: []ir.Instruction{
				{Op: ir.OpLoad, Addr: ir.Value{Global: "g"}},
				{Op: ir.OpStore, Addr: ir.Value{Global: "g"}},
				{Op: ir.OpLoad, Addr: ir.Value{Global: "atomic_g"}, Atomic: true},
				{Op: ir.OpLoad, Addr: ir.Value{Global: "vol_g"}, Volatile: true},
				{Op: ir.OpLoad, Addr: ir.Value{Global: "tls_g", ThreadLocal: true}},
			},
		}},
	}

	fs, err := newTestSummarizer().Summarize(fn)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if len(fs.Ops) != 2 {
		t.Fatalf("got %d ops, want 2 (atomic/volatile/thread-local loads must be dropped)", len(fs.Ops))
	}
	if fs.Ops[0].Kind != rop.Read || fs.Ops[1].Kind != rop.Write {
		t.Errorf("ops = [%v, %v], want [Read, Write]", fs.Ops[0].Kind, fs.Ops[1].Kind)
	}
}

func TestSummarizeIsCachedByIdentity(t *testing.T) {
	fn := &ir.Function{Name: "f", Blocks: []*ir.BasicBlock{{Name: "entry"}}}
	s := newTestSummarizer()

	fs1, err := s.Summarize(fn)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	fs2, err := s.Summarize(fn)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if fs1 != fs2 {
		t.Error("Summarize(fn) twice returned different *FunctionSummary pointers, want the cached one")
	}
	if s.CacheSize() != 1 {
		t.Errorf("CacheSize() = %d, want 1", s.CacheSize())
	}
}

func TestSummarizeNilFunction(t *testing.T) {
	if _, err := newTestSummarizer().Summarize(nil); err == nil {
		t.Error("Summarize(nil) returned no error, want one")
	}
}

func TestSummarizePthreadCreateJoin(t *testing.T) {
	fn := &ir.Function{
		Name: "f",
		Blocks: []*ir.BasicBlock{{
			Name: "entry",
			Instr: []ir.Instruction{
				{
					Op:     ir.OpCallDirect,
					Callee: "pthread_create",
					Operands: []ir.Value{
						{LocalID: 1}, // handle
						{IsConst: true},
						{Func: "worker"}, // entry
						{LocalID: 2}, // arg
					},
				},
				{
					Op:       ir.OpCallDirect,
					Callee:   "pthread_join",
					Operands: []ir.Value{{LocalID: 1}},
				},
			},
		}},
	}

	fs, err := newTestSummarizer().Summarize(fn)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if len(fs.Ops) != 2 {
		t.Fatalf("got %d ops, want 2", len(fs.Ops))
	}
	if fs.Ops[0].Kind != rop.PthreadCreate {
		t.Errorf("ops[0].Kind = %v, want PthreadCreate", fs.Ops[0].Kind)
	}
	if fs.Ops[0].Entry.Func != "worker" {
		t.Errorf("ops[0].Entry.Func = %q, want %q", fs.Ops[0].Entry.Func, "worker")
	}
	if fs.Ops[1].Kind != rop.PthreadJoin {
		t.Errorf("ops[1].Kind = %v, want PthreadJoin", fs.Ops[1].Kind)
	}
	if fs.Ops[1].Handle != fs.Ops[0].Handle {
		t.Error("join handle does not match create handle")
	}
}

func TestSummarizeForkDuplicationPairing(t *testing.T) {
	fn := &ir.Function{
		Name: "f",
		Blocks: []*ir.BasicBlock{{
			Name: "entry",
			Instr: []ir.Instruction{
				{Op: ir.OpCallDirect, Callee: "__kmpc_fork_call", Operands: []ir.Value{{}, {}, {Func: "outlined"}}},
				{Op: ir.OpCallDirect, Callee: "__kmpc_fork_call", Operands: []ir.Value{{}, {}, {Func: "outlined"}}},
			},
		}},
	}

	fs, err := newTestSummarizer().Summarize(fn)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if len(fs.Ops) != 4 {
		t.Fatalf("got %d ops, want 4 (forkA, forkB, joinA, joinB)", len(fs.Ops))
	}
	wantKinds := []rop.Kind{rop.OpenMPFork, rop.OpenMPFork, rop.OpenMPJoin, rop.OpenMPJoin}
	for i, want := range wantKinds {
		if fs.Ops[i].Kind != want {
			t.Errorf("ops[%d].Kind = %v, want %v", i, fs.Ops[i].Kind, want)
		}
	}
	if fs.Ops[0].PairedFork != -1 || fs.Ops[1].PairedFork != -1 {
		t.Errorf("fork ops PairedFork = [%d, %d], want [-1, -1]", fs.Ops[0].PairedFork, fs.Ops[1].PairedFork)
	}
	if fs.Ops[2].PairedFork != 0 || fs.Ops[3].PairedFork != 1 {
		t.Errorf("join ops PairedFork = [%d, %d], want [0, 1]", fs.Ops[2].PairedFork, fs.Ops[3].PairedFork)
	}
}

func TestSummarizeNonDuplicatedForkIsSkipped(t *testing.T) {
	fn := &ir.Function{
		Name: "f",
		Blocks: []*ir.BasicBlock{{
			Name: "entry",
			Instr: []ir.Instruction{
				{Op: ir.OpCallDirect, Callee: "__kmpc_fork_call", Operands: []ir.Value{{}, {}, {Func: "outlined"}}},
				{Op: ir.OpLoad, Addr: ir.Value{Global: "g"}},
			},
		}},
	}

	fs, err := newTestSummarizer().Summarize(fn)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if len(fs.Ops) != 1 {
		t.Fatalf("got %d ops, want 1 (the fork is skipped, the load still lowers)", len(fs.Ops))
	}
	if fs.Ops[0].Kind != rop.Read {
		t.Errorf("ops[0].Kind = %v, want Read", fs.Ops[0].Kind)
	}
}
