package activation

// Rect is an inclusive integer rectangle in chunk coordinates.
type Rect struct {
	MinX, MinY int
	MaxX, MaxY int
}

func (r Rect) Empty() bool { return r.MinX > r.MaxX || r.MinY > r.MaxY }

func (r Rect) Contains(x, y int) bool {
	return x >= r.MinX && x <= r.MaxX && y >= r.MinY && y <= r.MaxY
}

func (r Rect) Intersects(o Rect) bool {
	if r.Empty() || o.Empty() {
		return false
	}
	return r.MinX <= o.MaxX && o.MinX <= r.MaxX && r.MinY <= o.MaxY && o.MinY <= r.MaxY
}

type TreeStats struct {
	Nodes    int `json:"nodes"`
	Leaves   int `json:"leaves"`
	Items    int `json:"items"`
	MaxDepth int `json:"max_depth"`
}

type item[T any] struct {
	x, y int
	v    T
}

type node[T any] struct {
	bounds Rect
	depth  int
	items  []item[T]
	kids   *[4]*node[T] // nw, ne, sw, se
}

// QuadTree is a point quadtree over a fixed integer rectangle. Leaves split
// once they hold more than maxItems, down to maxDepth.
type QuadTree[T any] struct {
	root     *node[T]
	maxItems int
	maxDepth int
	n        int
}

func NewQuadTree[T any](bounds Rect, maxItems, maxDepth int) *QuadTree[T] {
	if maxItems < 1 {
		maxItems = 1
	}
	return &QuadTree[T]{
		root:     &node[T]{bounds: bounds},
		maxItems: maxItems,
		maxDepth: maxDepth,
	}
}

func (q *QuadTree[T]) Bounds() Rect { return q.root.bounds }
func (q *QuadTree[T]) Len() int     { return q.n }

func (q *QuadTree[T]) Clear() {
	q.root = &node[T]{bounds: q.root.bounds}
	q.n = 0
}

// Insert adds v at (x, y). It reports false when the point lies outside
// the tree bounds.
func (q *QuadTree[T]) Insert(x, y int, v T) bool {
	if !q.root.bounds.Contains(x, y) {
		return false
	}
	q.insert(q.root, item[T]{x: x, y: y, v: v})
	q.n++
	return true
}

func (q *QuadTree[T]) insert(n *node[T], it item[T]) {
	for n.kids != nil {
		n = n.child(it.x, it.y)
	}
	n.items = append(n.items, it)
	if len(n.items) > q.maxItems && n.depth < q.maxDepth && q.splittable(n.bounds) {
		q.subdivide(n)
	}
}

func (q *QuadTree[T]) splittable(r Rect) bool {
	return r.MaxX > r.MinX || r.MaxY > r.MinY
}

func (q *QuadTree[T]) subdivide(n *node[T]) {
	b := n.bounds
	mx := floorHalf(b.MinX + b.MaxX)
	my := floorHalf(b.MinY + b.MaxY)
	d := n.depth + 1
	n.kids = &[4]*node[T]{
		{bounds: Rect{b.MinX, b.MinY, mx, my}, depth: d},
		{bounds: Rect{mx + 1, b.MinY, b.MaxX, my}, depth: d},
		{bounds: Rect{b.MinX, my + 1, mx, b.MaxY}, depth: d},
		{bounds: Rect{mx + 1, my + 1, b.MaxX, b.MaxY}, depth: d},
	}
	items := n.items
	n.items = nil
	for _, it := range items {
		q.insert(n, it)
	}
}

func floorHalf(v int) int {
	if v < 0 {
		return -((-v + 1) / 2)
	}
	return v / 2
}

func (n *node[T]) child(x, y int) *node[T] {
	for _, k := range n.kids {
		if k.bounds.Contains(x, y) {
			return k
		}
	}
	// Unreachable for in-bounds points: the four children tile the parent.
	return n.kids[0]
}

// Remove deletes the first item at (x, y) accepted by match.
func (q *QuadTree[T]) Remove(x, y int, match func(T) bool) bool {
	if !q.root.bounds.Contains(x, y) {
		return false
	}
	n := q.root
	for n.kids != nil {
		n = n.child(x, y)
	}
	for i, it := range n.items {
		if it.x == x && it.y == y && (match == nil || match(it.v)) {
			n.items = append(n.items[:i], n.items[i+1:]...)
			q.n--
			return true
		}
	}
	return false
}

// Query calls fn for every item inside r until fn returns false.
func (q *QuadTree[T]) Query(r Rect, fn func(x, y int, v T) bool) {
	q.query(q.root, r, fn)
}

func (q *QuadTree[T]) query(n *node[T], r Rect, fn func(x, y int, v T) bool) bool {
	if !n.bounds.Intersects(r) {
		return true
	}
	if n.kids != nil {
		for _, k := range n.kids {
			if !q.query(k, r, fn) {
				return false
			}
		}
		return true
	}
	for _, it := range n.items {
		if r.Contains(it.x, it.y) && !fn(it.x, it.y, it.v) {
			return false
		}
	}
	return true
}

func (q *QuadTree[T]) Stats() TreeStats {
	var s TreeStats
	var walk func(n *node[T])
	walk = func(n *node[T]) {
		s.Nodes++
		if n.depth > s.MaxDepth {
			s.MaxDepth = n.depth
		}
		if n.kids == nil {
			s.Leaves++
			s.Items += len(n.items)
			return
		}
		for _, k := range n.kids {
			walk(k)
		}
	}
	walk(q.root)
	return s
}
