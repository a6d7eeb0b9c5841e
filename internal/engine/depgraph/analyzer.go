package depgraph

// Roots returns every node that has dependents without being a dependent
// itself, in id order.
func Roots(g *Graph) []*Node {
	g.mustQuery("roots")
	var out []*Node
	for _, n := range g.nodes {
		if n.HasDependents() && !n.Dependent {
			out = append(out, n)
		}
	}
	return out
}

// FindRoot returns the first root in id order. A graph whose writes carry no
// dependencies (or only form cycles) falls back to its first write target.
// It returns false for a graph with no writes.
func FindRoot(g *Graph) (*Node, bool) {
	g.mustQuery("findRoot")
	for _, n := range g.nodes {
		if n.HasDependents() && !n.Dependent {
			return n, true
		}
	}
	if len(g.primary) > 0 {
		return g.nodes[g.primary[0]], true
	}
	return nil, false
}

// Width is the largest queue length seen during a breadth-first walk from the
// root. Each node is enqueued at most once per call.
func Width(g *Graph) int {
	root, ok := FindRoot(g)
	if !ok {
		return 0
	}
	visited := map[int]bool{root.ID: true}
	queue := []int{root.ID}
	maxWidth := 0
	for len(queue) > 0 {
		if len(queue) > maxWidth {
			maxWidth = len(queue)
		}
		cur := g.nodes[queue[0]]
		queue = queue[1:]
		for _, next := range cur.Successors() {
			if visited[next] {
				continue
			}
			visited[next] = true
			queue = append(queue, next)
		}
	}
	return maxWidth
}

// Depth is the largest number of value nodes on any path from the root.
// Operators add nothing. Only nodes already on the current path are cut off,
// so store/load cycles terminate. When nothing reachable from the root lies on
// a cycle, no cut ever happens and the longest path is computed once per node.
func Depth(g *Graph) int {
	root, ok := FindRoot(g)
	if !ok {
		return 0
	}
	if acyclicFrom(g, root.ID) {
		return longestPath(g, root.ID)
	}
	maxDepth := 0
	onPath := make(map[int]bool)
	var walk func(id, count int)
	walk = func(id, count int) {
		n := g.nodes[id]
		if n.Kind == KindValue {
			count++
		}
		if count > maxDepth {
			maxDepth = count
		}
		onPath[id] = true
		for _, next := range n.Successors() {
			if !onPath[next] {
				walk(next, count)
			}
		}
		onPath[id] = false
	}
	walk(root.ID, 0)
	return maxDepth
}

// acyclicFrom reports whether no cycle is reachable from id.
func acyclicFrom(g *Graph, id int) bool {
	const (
		unseen = iota
		active
		done
	)
	state := make(map[int]int)
	var visit func(id int) bool
	visit = func(id int) bool {
		state[id] = active
		for _, next := range g.nodes[id].Successors() {
			switch state[next] {
			case active:
				return false
			case unseen:
				if !visit(next) {
					return false
				}
			}
		}
		state[id] = done
		return true
	}
	return visit(id)
}

// longestPath counts value nodes on the longest path below id in an acyclic
// graph.
func longestPath(g *Graph, id int) int {
	memo := make(map[int]int)
	var count func(id int) int
	count = func(id int) int {
		if c, ok := memo[id]; ok {
			return c
		}
		n := g.nodes[id]
		best := 0
		for _, next := range n.Successors() {
			if c := count(next); c > best {
				best = c
			}
		}
		if n.Kind == KindValue {
			best++
		}
		memo[id] = best
		return best
	}
	return count(id)
}
