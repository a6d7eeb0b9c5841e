package analysis

import (
	"sort"

	"dagestimator/internal/engine/ir"
)

// Levels groups routines so that every routine appears after all routines it
// calls. Calls with a result count too: their callee record is attached to
// the caller's record even though no call site consults it. Routines on or
// behind a call cycle cannot be ordered and are returned separately. Order
// within a level follows program order.
func Levels(prog *ir.Program) (levels [][]*ir.Routine, blocked []*ir.Routine) {
	index := make(map[string]int, len(prog.Routines))
	for i, r := range prog.Routines {
		index[r.Name] = i
	}

	pending := make([]int, len(prog.Routines))
	callers := make([][]int, len(prog.Routines))
	for i, r := range prog.Routines {
		if r.External {
			continue
		}
		for _, callee := range r.Callees() {
			j, ok := index[callee]
			if !ok {
				continue
			}
			pending[i]++
			callers[j] = append(callers[j], i)
		}
	}

	var queue []int
	for i := range prog.Routines {
		if pending[i] == 0 {
			queue = append(queue, i)
		}
	}

	done := make([]bool, len(prog.Routines))
	for len(queue) > 0 {
		level := make([]*ir.Routine, 0, len(queue))
		var next []int
		for _, i := range queue {
			done[i] = true
			level = append(level, prog.Routines[i])
			for _, c := range callers[i] {
				pending[c]--
				if pending[c] == 0 {
					next = append(next, c)
				}
			}
		}
		levels = append(levels, level)
		sort.Ints(next)
		queue = next
	}

	for i, r := range prog.Routines {
		if !done[i] {
			blocked = append(blocked, r)
		}
	}
	return levels, blocked
}
