// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package graphutil_test

import (
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/yourbasic/graph"
	"golang.org/x/exp/slices"

	"github.com/RohanKheraCR/OpenRace/analysis/ir"
	"github.com/RohanKheraCR/OpenRace/internal/funcutil"
	"github.com/RohanKheraCR/OpenRace/internal/graphutil"
)

// buildCallGraph constructs a minimal ir.Module with one empty basic
// block per named function, wires a direct-call edge for every (caller,
// callee) pair in calls, and returns the resulting call graph, in the
// deterministic name order callers and an alphabetical fallback impose
// (spec.md §8, Testable Property 1).
func buildCallGraph(names []string, calls map[string][]string) *ir.CallGraph {
	order := append([]string(nil), names...)
	sort.Strings(order)

	m := &ir.Module{Functions: make(map[string]*ir.Function, len(order))}
	for _, name := range order {
		m.Functions[name] = &ir.Function{Name: name, Blocks: []*ir.BasicBlock{{Name: "entry"}}}
	}

	cg := ir.NewCallGraph(m, order)
	for _, caller := range order {
		for _, callee := range calls[caller] {
			cg.AddEdge(cg.ByFn[caller], cg.ByFn[callee], nil)
		}
	}
	return cg
}

// TestFindAllElementaryCycles exercises FindAllElementaryCycles over a
// call structure with several overlapping cycles (through f1 among
// f1..f5, and through g among g, g2, g3; g1 calls f1 but lies on no
// cycle), built directly against
// this module's own ir.CallGraph rather than go/ssa + pointer analysis,
// since there is no Go source here to build an SSA program from
// (spec.md §6: the analyzer consumes an externally-compiled IR).
func TestFindAllElementaryCycles(t *testing.T) {
	names := []string{"main", "f1", "f2", "f3", "f4", "f5", "g", "g1", "g2", "g3"}
	calls := map[string][]string{
		"main": {"f1", "g"},
		"f1":   {"f2", "f4", "f3"},
		"f2":   {"f1"},
		"f3":   {"f2"},
		"f4":   {"f5"},
		"f5":   {"f1"},
		"g":    {"g1", "g2", "g3"},
		"g1":   {"f1"},
		"g2":   {"g"},
		"g3":   {"g2"},
	}

	cg := buildCallGraph(names, calls)
	iterator := graphutil.NewCallGraphIterator(cg)

	stats := graph.Check(iterator)
	t.Logf("Stats:\n\tsize: %d\n\tmulti: %d\n\tloops: %d\n\tisolated: %d",
		stats.Size, stats.Multi, stats.Loops, stats.Isolated)

	cycles := graphutil.FindAllElementaryCycles(iterator)

	idOf := func(name string) int64 { return cg.ByFn[name].ID }
	expectedSets := [][]int64{
		{idOf("f1"), idOf("f2")},
		{idOf("f1"), idOf("f4"), idOf("f5")},
		{idOf("f1"), idOf("f2"), idOf("f3")},
		{idOf("g"), idOf("g2")},
		{idOf("g"), idOf("g2"), idOf("g3")},
	}
	expected := make([]string, len(expectedSets))
	for i, set := range expectedSets {
		sort.Slice(set, func(a, b int) bool { return set[a] < set[b] })
		expected[i] = strings.Join(
			funcutil.Map(set, func(x int64) string { return strconv.Itoa(int(x)) }),
			"")
	}
	sort.Strings(expected)

	n := len(cycles)
	if n != len(expected) {
		t.Fatalf("expected %d elementary cycles, found %d", len(expected), n)
	}

	results := make([]string, n)
	for i, cycle := range cycles {
		sorted := append([]int64(nil), cycle...)
		sort.Slice(sorted, func(a, b int) bool { return sorted[a] < sorted[b] })
		results[i] = strings.Join(
			funcutil.Map(sorted, func(x int64) string { return strconv.Itoa(int(x)) }),
			"")
	}
	sort.Strings(results)

	if !slices.Equal(results, expected) {
		t.Logf("cycles found:")
		for i, s := range results {
			t.Logf("cycle %d: %s", i, s)
		}
		t.Fatalf("cycles not as expected, wanted: %v", expected)
	}
}
