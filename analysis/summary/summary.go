// Package summary implements the IR Summarizer of spec.md §4.B: lowering
// a function's raw instructions into an ordered, immutable list of
// rop.Operation values, cached by function identity: a per-function
// memoization pattern with basic-block-then-instruction iteration order.
package summary

import (
	"github.com/pkg/errors"

	"github.com/RohanKheraCR/OpenRace/analysis/config"
	"github.com/RohanKheraCR/OpenRace/analysis/effect"
	"github.com/RohanKheraCR/OpenRace/analysis/ir"
	"github.com/RohanKheraCR/OpenRace/analysis/rop"
)

// FunctionSummary is an immutable, ordered list of race-relevant
// operations lowered from one function (spec.md §3). Once constructed it
// is never mutated; Summarizer.Summarize caches it by function identity.
type FunctionSummary struct {
	Func *ir.Function
	Ops  []rop.Operation
}

// Summarizer lowers functions to FunctionSummary values and caches the
// result per function, satisfying Testable Property 5 ("two traces of the
// same function in different contexts consult summarize(f) exactly
// once").
type Summarizer struct {
	logger *config.LogGroup
	cache  map[*ir.Function]*FunctionSummary
}

// NewSummarizer returns a Summarizer that logs recoverable diagnostics
// through logger.
func NewSummarizer(logger *config.LogGroup) *Summarizer {
	return &Summarizer{logger: logger, cache: make(map[*ir.Function]*FunctionSummary)}
}

// Summarize returns the FunctionSummary for fn, building and caching it on
// first request (spec.md §4.B: "Idempotent; cached").
func (s *Summarizer) Summarize(fn *ir.Function) (*FunctionSummary, error) {
	if fn == nil {
		return nil, errors.New("summary: nil function")
	}
	if cached, ok := s.cache[fn]; ok {
		return cached, nil
	}
	ops, err := s.build(fn)
	if err != nil {
		return nil, errors.Wrapf(err, "summarizing %s", fn.Name)
	}
	fs := &FunctionSummary{Func: fn, Ops: ops}
	s.cache[fn] = fs
	return fs, nil
}

// CacheSize returns the number of functions currently summarized, mostly
// useful for tests verifying caching behavior.
func (s *Summarizer) CacheSize() int { return len(s.cache) }

func (s *Summarizer) build(fn *ir.Function) ([]rop.Operation, error) {
	var ops []rop.Operation
	for _, b := range fn.Blocks {
		instrs := b.Instr
		for i := 0; i < len(instrs); i++ {
			in := &instrs[i]
			switch in.Op {
			case ir.OpLoad:
				if in.Addr.ThreadLocal || in.Atomic || in.Volatile {
					continue
				}
				ops = append(ops, rop.Operation{Kind: rop.Read, Addr: in.Addr, Instr: in, Func: fn})
			case ir.OpStore:
				if in.Addr.ThreadLocal || in.Atomic || in.Volatile {
					continue
				}
				ops = append(ops, rop.Operation{Kind: rop.Write, Addr: in.Addr, Instr: in, Func: fn})
			case ir.OpCallIndirect:
				ops = append(ops, rop.Operation{Kind: rop.Call, Instr: in, Func: fn})
			case ir.OpCallDirect:
				added, consumed, err := s.lowerCall(fn, instrs, i)
				if err != nil {
					return nil, err
				}
				ops = append(ops, added...)
				i += consumed
			default:
				// Branches, jumps, phis, bitcasts, returns carry no
				// race-relevant information of their own; the summary
				// only records what can read/write memory or
				// synchronize.
			}
		}
	}
	return ops, nil
}

// lowerCall classifies and lowers the direct call at instrs[i], and
// implements the OpenMP fork-duplication scan of spec.md §4.B. It returns
// the operations to append and the number of *additional* instructions
// consumed beyond instrs[i] itself (0 normally, 1 when a paired fork was
// consumed).
func (s *Summarizer) lowerCall(fn *ir.Function, instrs []ir.Instruction, i int) ([]rop.Operation, int, error) {
	in := &instrs[i]
	cat := effect.Classify(in.Callee)

	switch cat {
	case effect.CategoryNoEffect:
		return nil, 0, nil

	case effect.CategoryPthreadCreate:
		op := rop.Operation{Kind: rop.PthreadCreate, Instr: in, Func: fn}
		if len(in.Operands) >= 4 {
			op.Handle = in.Operands[0]
			op.Entry = in.Operands[2]
			op.Args = []ir.Value{in.Operands[3]}
		}
		return []rop.Operation{op}, 0, nil

	case effect.CategoryPthreadJoin:
		op := rop.Operation{Kind: rop.PthreadJoin, Instr: in, Func: fn}
		if len(in.Operands) >= 1 {
			op.Handle = in.Operands[0]
		}
		return []rop.Operation{op}, 0, nil

	case effect.CategoryPthreadMutexLock:
		return []rop.Operation{{Kind: rop.PthreadMutexLock, Addr: firstOperand(in), Instr: in, Func: fn}}, 0, nil
	case effect.CategoryPthreadMutexUnlock:
		return []rop.Operation{{Kind: rop.PthreadMutexUnlock, Addr: firstOperand(in), Instr: in, Func: fn}}, 0, nil
	case effect.CategoryPthreadSpinLock:
		return []rop.Operation{{Kind: rop.PthreadSpinLock, Addr: firstOperand(in), Instr: in, Func: fn}}, 0, nil
	case effect.CategoryPthreadSpinUnlock:
		return []rop.Operation{{Kind: rop.PthreadSpinUnlock, Addr: firstOperand(in), Instr: in, Func: fn}}, 0, nil

	case effect.CategoryOmpForkCall, effect.CategoryOmpForkTeams:
		return s.lowerForkPair(fn, instrs, i, cat)

	case effect.CategoryOmpTaskAlloc:
		return []rop.Operation{{Kind: rop.Call, Instr: in, Func: fn}}, 0, nil

	case effect.CategoryOmpTask:
		op := rop.Operation{Kind: rop.OpenMPTaskFork, Instr: in, Func: fn}
		if len(in.Operands) >= 3 {
			op.Entry = in.Operands[2]
		}
		return []rop.Operation{op}, 0, nil

	case effect.CategoryOmpForStaticInit:
		return []rop.Operation{{Kind: rop.OpenMPForStaticInit, Instr: in, Func: fn}}, 0, nil
	case effect.CategoryOmpForStaticFini:
		return []rop.Operation{{Kind: rop.OpenMPForStaticFini, Instr: in, Func: fn}}, 0, nil
	case effect.CategoryOmpDispatchInit:
		return []rop.Operation{{Kind: rop.OpenMPForDispatchInit, Instr: in, Func: fn}}, 0, nil
	case effect.CategoryOmpDispatchNext:
		return []rop.Operation{{Kind: rop.OpenMPForDispatchNext, Instr: in, Func: fn}}, 0, nil
	case effect.CategoryOmpDispatchFini:
		return []rop.Operation{{Kind: rop.OpenMPForDispatchFini, Instr: in, Func: fn}}, 0, nil

	case effect.CategoryOmpSingle:
		return []rop.Operation{{Kind: rop.OpenMPSingleStart, Instr: in, Func: fn}}, 0, nil
	case effect.CategoryOmpSingleEnd:
		return []rop.Operation{{Kind: rop.OpenMPSingleEnd, Instr: in, Func: fn}}, 0, nil
	case effect.CategoryOmpMaster:
		return []rop.Operation{{Kind: rop.OpenMPMasterStart, Instr: in, Func: fn}}, 0, nil
	case effect.CategoryOmpMasterEnd:
		return []rop.Operation{{Kind: rop.OpenMPMasterEnd, Instr: in, Func: fn}}, 0, nil
	case effect.CategoryOmpBarrier:
		return []rop.Operation{{Kind: rop.OpenMPBarrier, Instr: in, Func: fn}}, 0, nil
	case effect.CategoryOmpReduce, effect.CategoryOmpReduceNowait:
		return []rop.Operation{{Kind: rop.OpenMPReduce, Instr: in, Func: fn}}, 0, nil
	case effect.CategoryOmpCritical, effect.CategoryOmpCriticalEnd:
		kind := rop.OpenMPCriticalStart
		if cat == effect.CategoryOmpCriticalEnd {
			kind = rop.OpenMPCriticalEnd
		}
		// Both calls take the section's lock variable as their third
		// argument; it names the section, so a start and its end share a key.
		name := "__critical__"
		if len(in.Operands) >= 3 {
			name = in.Operands[2].String()
		}
		return []rop.Operation{{Kind: kind, Name: name, Instr: in, Func: fn}}, 0, nil
	case effect.CategoryOmpOrdered:
		return []rop.Operation{{Kind: rop.OpenMPOrderedStart, Instr: in, Func: fn}}, 0, nil
	case effect.CategoryOmpOrderedEnd:
		return []rop.Operation{{Kind: rop.OpenMPOrderedEnd, Instr: in, Func: fn}}, 0, nil
	case effect.CategoryOmpSetLock, effect.CategoryOmpSetNestLock:
		return []rop.Operation{{Kind: rop.OpenMPSetLock, Addr: firstOperand(in), Instr: in, Func: fn}}, 0, nil
	case effect.CategoryOmpUnsetLock, effect.CategoryOmpUnsetNestLock:
		return []rop.Operation{{Kind: rop.OpenMPUnsetLock, Addr: firstOperand(in), Instr: in, Func: fn}}, 0, nil

	case effect.CategoryOmpGetThreadNum:
		// No event: only interesting through the GuardStart/GuardEnd
		// markers the preprocessor already materialized (spec.md §4.E).
		return nil, 0, nil

	case effect.CategoryOmpSetNumThreads:
		c := int64(0)
		if len(in.Operands) >= 1 && in.Operands[0].IsConst {
			c = in.Operands[0].Const
		}
		return []rop.Operation{{Kind: rop.OpenMPSetNumThreads, ConstArg: c, Instr: in, Func: fn}}, 0, nil
	case effect.CategoryOmpPushNumThreads:
		c := int64(0)
		if len(in.Operands) >= 1 && in.Operands[0].IsConst {
			c = in.Operands[0].Const
		}
		return []rop.Operation{{Kind: rop.OpenMPPushNumThreads, ConstArg: c, Instr: in, Func: fn}}, 0, nil

	case effect.CategoryGuardStart:
		c := int64(0)
		if len(in.Operands) >= 1 && in.Operands[0].IsConst {
			c = in.Operands[0].Const
		}
		return []rop.Operation{{Kind: rop.GuardStart, ConstArg: c, Instr: in, Func: fn}}, 0, nil
	case effect.CategoryGuardEnd:
		c := int64(0)
		if len(in.Operands) >= 1 && in.Operands[0].IsConst {
			c = in.Operands[0].Const
		}
		return []rop.Operation{{Kind: rop.GuardEnd, ConstArg: c, Instr: in, Func: fn}}, 0, nil

	default: // CategoryOpaqueCall
		if effect.IsKmpcFamily(in.Callee) || effect.IsOmpLibFamily(in.Callee) {
			if effect.IsKnownNoEffectOmpCall(in.Callee) {
				return nil, 0, nil
			}
			s.logger.Warnf("unhandled OpenMP call %q in %s, treating as opaque", in.Callee, fn.Name)
		}
		return []rop.Operation{{Kind: rop.Call, Instr: in, Func: fn}}, 0, nil
	}
}

// lowerForkPair implements the fork-duplication scan: the instruction
// immediately following a recognized OpenMP fork call must be a second
// fork call of the same family (spec.md §4.B). If so, both are emitted
// followed by two synthetic joins pairing them in emission order; if not,
// the whole region is skipped and a warning logged.
func (s *Summarizer) lowerForkPair(fn *ir.Function, instrs []ir.Instruction, i int, cat effect.Category) ([]rop.Operation, int, error) {
	first := &instrs[i]
	forkKind := rop.OpenMPFork
	joinKind := rop.OpenMPJoin
	if cat == effect.CategoryOmpForkTeams {
		forkKind = rop.OpenMPForkTeams
		joinKind = rop.OpenMPJoinTeams
	}

	if i+1 >= len(instrs) || effect.Classify(instrs[i+1].Callee) != cat {
		s.logger.Warnf("non-duplicated OpenMP fork for %s in %s, skipping parallel region", first.Callee, fn.Name)
		return nil, 0, nil
	}
	second := &instrs[i+1]

	mk := func(in *ir.Instruction) rop.Operation {
		op := rop.Operation{Kind: forkKind, Instr: in, Func: fn, PairedFork: -1}
		if len(in.Operands) >= 3 {
			op.Entry = in.Operands[2]
			op.Args = append([]ir.Value(nil), in.Operands[3:]...)
		}
		return op
	}

	forkA := mk(first)
	forkB := mk(second)
	joinA := rop.Operation{Kind: joinKind, Instr: second, Func: fn, PairedFork: 0}
	joinB := rop.Operation{Kind: joinKind, Instr: second, Func: fn, PairedFork: 1}

	return []rop.Operation{forkA, forkB, joinA, joinB}, 1, nil
}

func firstOperand(in *ir.Instruction) ir.Value {
	if len(in.Operands) == 0 {
		return ir.Value{}
	}
	return in.Operands[0]
}
