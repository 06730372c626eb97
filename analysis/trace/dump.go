package trace

import (
	"fmt"
	"io"
)

// Dump writes a human-readable rendering of pt to w, one line per event,
// grouped by thread in discovery order: the backing implementation of
// the print_trace configuration option (spec.md §6). As with
// preprocess.Dump, producing the io.Writer and deciding where its output
// goes (stderr, a file) is the caller's responsibility; this is a debug
// aid, not part of the analyzer's input/output contract.
func Dump(w io.Writer, pt *ProgramTrace) error {
	for _, t := range pt.threads {
		parent := "none"
		if t.HasParent {
			parent = fmt.Sprintf("thread %d @ event %d", t.ParentThread, t.ParentEvent)
		}
		suffix := ""
		if t.Suppressed {
			suffix = " (suppressed)"
		}
		fmt.Fprintf(w, "thread %d: entry=%s parent=%s%s\n", t.ID, t.EntryFunc.Name, parent, suffix)
		for _, ev := range t.Events {
			paired := ""
			if ev.HasPaired {
				paired = fmt.Sprintf(" paired=(%d,%d)", ev.PairedThread, ev.PairedEvent)
			}
			guard := ""
			if ev.GuardTID != nil {
				guard = fmt.Sprintf(" guard_tid=%d", *ev.GuardTID)
			}
			loc := ""
			if ev.Op.Instr != nil && ev.Op.Instr.Loc.File != "" {
				loc = " @ " + ev.Op.Instr.Loc.String()
			}
			fmt.Fprintf(w, "  [%d] %s%s%s%s\n", ev.ID, ev.Kind, loc, paired, guard)
		}
	}
	return nil
}
