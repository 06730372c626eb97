// Package trace (continued): ProgramTrace, the owner of every thread of
// one program trace (spec.md §4.F), in the AnalyzerState shape: one
// struct owns the module, the pointer analysis, the summarizer and every
// derived result, built once by a single constructor and then
// read-only.
package trace

import (
	"fmt"

	"github.com/RohanKheraCR/OpenRace/analysis/config"
	"github.com/RohanKheraCR/OpenRace/analysis/ir"
	"github.com/RohanKheraCR/OpenRace/analysis/preprocess"
	"github.com/RohanKheraCR/OpenRace/analysis/pta"
	"github.com/RohanKheraCR/OpenRace/analysis/summary"
)

// ProgramTrace owns every Thread of one analyzed program, indexed for
// O(1) lookup by (ThreadID, EventID) (spec.md §4.F).
type ProgramTrace struct {
	module     *ir.Module
	ptaImpl    pta.Interface
	summarizer *summary.Summarizer
	logger     *config.LogGroup
	callGraph  *ir.CallGraph

	threads []*Thread
}

// CallGraph returns the whole-module call graph computed when the trace
// was built.
func (pt *ProgramTrace) CallGraph() *ir.CallGraph { return pt.callGraph }

// Build runs preprocessing, the pointer analysis, and the depth-first
// thread-trace construction rooted at module's entry function, returning
// the resulting ProgramTrace (spec.md §4.F).
//
// If cfg.DumpPreprocessedIR is non-empty the caller is responsible for
// writing preprocess.Dump's output there; Build itself only performs the
// analysis (spec.md §1: file I/O is out of scope of the analyzer proper).
func Build(module *ir.Module, ptaImpl pta.Interface, cfg *config.Config) (*ProgramTrace, error) {
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}
	logger := config.NewLogGroupFromConfig(cfg)

	if _, err := preprocess.Run(module, logger); err != nil {
		return nil, fmt.Errorf("preprocessing: %w", err)
	}
	if err := ptaImpl.Analyze(module, module.Entry); err != nil {
		return nil, fmt.Errorf("pointer analysis: %w", err)
	}

	entryFn := module.Func(module.Entry)
	if entryFn == nil {
		return nil, fmt.Errorf("trace: entry function %q not found", module.Entry)
	}

	callGraph := BuildCallGraph(module, ptaImpl)
	for _, cycle := range RecursiveCycles(callGraph) {
		logger.Debugf("recursive call cycle in call graph: %v", cycle)
	}

	pt := &ProgramTrace{
		module:     module,
		ptaImpl:    ptaImpl,
		summarizer: summary.NewSummarizer(logger),
		logger:     logger,
		callGraph:  callGraph,
	}

	root := pt.newThread(entryFn, pta.RootContext(), -1, false, false, 0, 0)
	pt.buildThread(root, pta.RootContext())
	return pt, nil
}

// Threads returns every thread of the program trace, root first, in the
// deterministic order threads were discovered (spec.md §8, Testable
// Property 1).
func (pt *ProgramTrace) Threads() []*Thread { return pt.threads }

// thread returns the thread with the given id, or nil.
func (pt *ProgramTrace) thread(id ThreadID) *Thread {
	if int(id) < 0 || int(id) >= len(pt.threads) {
		return nil
	}
	return pt.threads[id]
}

// Thread is the exported form of thread lookup.
func (pt *ProgramTrace) Thread(id ThreadID) *Thread { return pt.thread(id) }

// EventAt returns the event uniquely identified by (tid, eid) in O(1)
// (spec.md §3, invariant 1).
func (pt *ProgramTrace) EventAt(tid ThreadID, eid EventID) (*Event, bool) {
	t := pt.thread(tid)
	if t == nil {
		return nil, false
	}
	return t.EventAt(eid)
}

func (pt *ProgramTrace) newThread(entryFn *ir.Function, ctx pta.Context, sibling int, hasParent bool, suppressed bool, parentThread ThreadID, parentEvent EventID) *Thread {
	t := &Thread{
		ID:           ThreadID(len(pt.threads)),
		EntryFunc:    entryFn,
		HasParent:    hasParent,
		ParentThread: parentThread,
		ParentEvent:  parentEvent,
		SpawnContext: ctx,
		Sibling:      sibling,
		Suppressed:   suppressed,
	}
	pt.threads = append(pt.threads, t)
	return t
}

// spawnThread creates and, unless suppressed, immediately and
// depth-first builds a new thread rooted at entryFn (spec.md §4.E: "the
// child is built immediately"). It returns the new thread's id.
func (pt *ProgramTrace) spawnThread(entryFn *ir.Function, ctx pta.Context, sibling int, parentThread ThreadID, parentEvent EventID, suppressed bool) ThreadID {
	t := pt.newThread(entryFn, ctx, sibling, true, suppressed, parentThread, parentEvent)
	if !suppressed {
		pt.buildThread(t, ctx)
	}
	return t.ID
}

func (pt *ProgramTrace) buildThread(t *Thread, ctx pta.Context) {
	tb := &threadBuilder{prog: pt, thread: t, logger: pt.logger}
	if err := tb.visit(t.EntryFunc, ctx, nil); err != nil {
		pt.logger.Errorf("building thread %d: %v", t.ID, err)
	}
	tb.joinUnjoinedTasks(ctx, nil)
}
