package trace

import "github.com/RohanKheraCR/OpenRace/analysis/ir"

// Coverage is the result of ComputeCoverage: the fraction of source lines
// carrying a debug location that were touched by at least one emitted
// event, for the compute_coverage configuration option (spec.md §6).
type Coverage struct {
	TouchedLines int
	TotalLines   int
}

// Ratio returns TouchedLines/TotalLines, or 0 when the module carries no
// debug locations at all.
func (c Coverage) Ratio() float64 {
	if c.TotalLines == 0 {
		return 0
	}
	return float64(c.TouchedLines) / float64(c.TotalLines)
}

// ComputeCoverage counts the distinct source lines touched by pt's
// emitted events against the distinct source lines named anywhere in the
// module pt was built from. A line with no debug location attached to
// any instruction is excluded from both counts: it was never a candidate
// for coverage in the first place.
func (pt *ProgramTrace) ComputeCoverage() Coverage {
	total := map[ir.Location]bool{}
	for _, fn := range pt.module.Functions {
		fn.AllInstructions(func(_ *ir.BasicBlock, _ int, instr *ir.Instruction) {
			if instr.Loc.File != "" {
				total[instr.Loc] = true
			}
		})
	}

	touched := map[ir.Location]bool{}
	for _, t := range pt.threads {
		for _, ev := range t.Events {
			if ev.Op.Instr != nil && ev.Op.Instr.Loc.File != "" {
				touched[ev.Op.Instr.Loc] = true
			}
		}
	}

	return Coverage{TouchedLines: len(touched), TotalLines: len(total)}
}
