package dragdrop

import "sync"

// Surface is the rendered page as hit testing sees it.
type Surface interface {
	// ElementAt returns the innermost node under p.
	ElementAt(p Point) (Node, bool)
	// Parent returns the node enclosing n.
	Parent(n Node) (Node, bool)
	// Bounds measures n.
	Bounds(n Node) (Rect, bool)
}

// Layout is an in-memory Surface. Nodes form a tree through their
// parents; ElementAt returns the deepest node containing the point,
// preferring the most recently added one among equals.
type Layout struct {
	mu    sync.RWMutex
	nodes map[Node]layoutNode
	seq   uint64
}

type layoutNode struct {
	parent    Node
	hasParent bool
	bounds    Rect
	seq       uint64
}

// NewLayout returns an empty layout.
func NewLayout() *Layout {
	return &Layout{nodes: make(map[Node]layoutNode)}
}

func (l *Layout) add(n Node, parent Node, hasParent bool, bounds Rect) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq++
	l.nodes[n] = layoutNode{parent: parent, hasParent: hasParent, bounds: bounds, seq: l.seq}
}

// AddRoot places a node without a parent.
func (l *Layout) AddRoot(n Node, bounds Rect) {
	l.add(n, 0, false, bounds)
}

// AddChild places n inside parent.
func (l *Layout) AddChild(n, parent Node, bounds Rect) {
	l.add(n, parent, true, bounds)
}

// Move changes the bounds of n.
func (l *Layout) Move(n Node, bounds Rect) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if node, ok := l.nodes[n]; ok {
		node.bounds = bounds
		l.nodes[n] = node
	}
}

// Remove drops n. Its children keep pointing at it and become
// unreachable from ElementAt ancestry walks past n.
func (l *Layout) Remove(n Node) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.nodes, n)
}

func (l *Layout) ElementAt(p Point) (Node, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var (
		best      Node
		bestDepth = -1
		bestSeq   uint64
	)
	for n, node := range l.nodes {
		if !node.bounds.Contains(p) {
			continue
		}
		depth := l.depthLocked(n)
		if depth > bestDepth || (depth == bestDepth && node.seq > bestSeq) {
			best, bestDepth, bestSeq = n, depth, node.seq
		}
	}
	return best, bestDepth >= 0
}

func (l *Layout) depthLocked(n Node) int {
	depth := 0
	for {
		node, ok := l.nodes[n]
		if !ok || !node.hasParent {
			return depth
		}
		depth++
		n = node.parent
	}
}

func (l *Layout) Parent(n Node) (Node, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	node, ok := l.nodes[n]
	if !ok || !node.hasParent {
		return 0, false
	}
	if _, ok := l.nodes[node.parent]; !ok {
		return 0, false
	}
	return node.parent, true
}

func (l *Layout) Bounds(n Node) (Rect, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	node, ok := l.nodes[n]
	return node.bounds, ok
}

// RectCache memoises Bounds for the duration of one drag. It is not
// safe for concurrent use; the drag state that owns it serialises
// access.
type RectCache struct {
	rects map[Node]Rect
}

// Bounds measures n through s, reusing an earlier measurement.
func (c *RectCache) Bounds(s Surface, n Node) (Rect, bool) {
	if c == nil {
		return s.Bounds(n)
	}
	if r, ok := c.rects[n]; ok {
		return r, true
	}
	r, ok := s.Bounds(n)
	if !ok {
		return Rect{}, false
	}
	if c.rects == nil {
		c.rects = make(map[Node]Rect)
	}
	c.rects[n] = r
	return r, true
}

// Reset forgets every measurement.
func (c *RectCache) Reset() {
	if c != nil {
		c.rects = nil
	}
}

// Len returns the number of cached measurements.
func (c *RectCache) Len() int {
	if c == nil {
		return 0
	}
	return len(c.rects)
}
