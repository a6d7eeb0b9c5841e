package gossa

import (
	"fmt"
	"sort"

	"golang.org/x/tools/go/ssa"

	"dagestimator/internal/engine/ir"
)

type naturalLoop struct {
	header *ssa.BasicBlock
	body   map[*ssa.BasicBlock]bool
	subs   []*naturalLoop
}

// loops finds the natural loops of fn. An edge latch->header is a back edge
// when header dominates latch; the loop body is every block that reaches the
// latch without passing through the header. Back edges sharing a header form
// one loop, and loops nest by containment.
func (l *lowerer) loops(fn *ssa.Function) []*ir.Loop {
	byHeader := make(map[*ssa.BasicBlock]*naturalLoop)
	var found []*naturalLoop
	for _, b := range fn.Blocks {
		for _, succ := range b.Succs {
			if !succ.Dominates(b) {
				continue
			}
			nl, ok := byHeader[succ]
			if !ok {
				nl = &naturalLoop{header: succ, body: map[*ssa.BasicBlock]bool{succ: true}}
				byHeader[succ] = nl
				found = append(found, nl)
			}
			collectBody(nl, b)
		}
	}
	if len(found) == 0 {
		return nil
	}

	// Larger loops first, so every loop's parent is already placed.
	sort.SliceStable(found, func(i, j int) bool {
		if len(found[i].body) != len(found[j].body) {
			return len(found[i].body) > len(found[j].body)
		}
		return found[i].header.Index < found[j].header.Index
	})
	var top []*naturalLoop
	for i, nl := range found {
		var parent *naturalLoop
		for j := i - 1; j >= 0; j-- {
			if found[j].body[nl.header] && found[j] != nl {
				parent = found[j]
				break
			}
		}
		if parent == nil {
			top = append(top, nl)
		} else {
			parent.subs = append(parent.subs, nl)
		}
	}
	return l.convertLoops(top)
}

func collectBody(nl *naturalLoop, latch *ssa.BasicBlock) {
	stack := []*ssa.BasicBlock{latch}
	for len(stack) > 0 {
		b := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if nl.body[b] {
			continue
		}
		nl.body[b] = true
		stack = append(stack, b.Preds...)
	}
}

func (l *lowerer) convertLoops(nls []*naturalLoop) []*ir.Loop {
	sort.Slice(nls, func(i, j int) bool { return nls[i].header.Index < nls[j].header.Index })
	out := make([]*ir.Loop, 0, len(nls))
	for _, nl := range nls {
		blocks := make([]*ssa.BasicBlock, 0, len(nl.body))
		for b := range nl.body {
			blocks = append(blocks, b)
		}
		sort.Slice(blocks, func(i, j int) bool { return blocks[i].Index < blocks[j].Index })

		loop := &ir.Loop{Name: loopName(nl.header)}
		for _, b := range blocks {
			loop.Blocks = append(loop.Blocks, l.blocks[b])
		}
		loop.SubLoops = l.convertLoops(nl.subs)
		out = append(out, loop)
	}
	return out
}

func loopName(header *ssa.BasicBlock) string {
	if header.Comment == "" {
		return fmt.Sprintf("loop%d", header.Index)
	}
	return fmt.Sprintf("%s.%d", header.Comment, header.Index)
}
