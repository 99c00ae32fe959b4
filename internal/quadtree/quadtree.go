// Package quadtree provides a spatial index over 2-D screen-space points
// for picking and hit-testing. Containment is half-open: a point on the
// minimum edge of a bounds is inside, on the maximum edge outside.
package quadtree

import (
	"math"
)

// DefaultCapacity is the per-node point capacity before subdivision.
const DefaultCapacity = 8

// maxDepth stops subdivision so coincident points cannot split forever;
// leaves at the limit grow past capacity instead.
const maxDepth = 32

// Point is an indexed 2-D point with an opaque payload.
type Point struct {
	X    float64
	Y    float64
	Data any
}

// Bounds is an axis-aligned rectangle, half-open on the maximum edges.
type Bounds struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Contains reports whether the point lies within [x, x+w) x [y, y+h).
// NaN and infinite coordinates are never contained.
func (b Bounds) Contains(x, y float64) bool {
	if !finite(x) || !finite(y) {
		return false
	}
	return x >= b.X && x < b.X+b.Width && y >= b.Y && y < b.Y+b.Height
}

// Intersects reports whether two rectangles overlap.
func (b Bounds) Intersects(other Bounds) bool {
	return b.X < other.X+other.Width && b.X+b.Width > other.X &&
		b.Y < other.Y+other.Height && b.Y+b.Height > other.Y
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Quadtree indexes points within a fixed bounding rectangle. Leaves
// subdivide lazily into four equal quadrants when they overflow their
// capacity. A single instance shared across goroutines needs external
// synchronization.
type Quadtree struct {
	root     *node
	bounds   Bounds
	capacity int
	size     int
}

type node struct {
	bounds   Bounds
	points   []Point
	children [4]*node // nil while the node is a leaf
	leaf     bool
}

// New creates a quadtree over the given bounds. A non-positive capacity
// falls back to DefaultCapacity.
func New(bounds Bounds, capacity int) *Quadtree {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Quadtree{
		root:     newLeaf(bounds),
		bounds:   bounds,
		capacity: capacity,
	}
}

func newLeaf(bounds Bounds) *node {
	return &node{bounds: bounds, leaf: true}
}

// Insert adds a point, returning false when the point is out of bounds or
// has degenerate (NaN, infinite) coordinates. Rejection never panics.
func (q *Quadtree) Insert(p Point) bool {
	if !q.bounds.Contains(p.X, p.Y) {
		return false
	}
	q.root.insert(p, q.capacity, 0)
	q.size++
	return true
}

func (n *node) insert(p Point, capacity, depth int) {
	if n.leaf {
		if len(n.points) < capacity || depth >= maxDepth {
			n.points = append(n.points, p)
			return
		}
		n.subdivide()
		// Fall through to route the overflowing points.
		pending := n.points
		n.points = nil
		for _, old := range pending {
			n.child(old.X, old.Y).insert(old, capacity, depth+1)
		}
	}
	n.child(p.X, p.Y).insert(p, capacity, depth+1)
}

// subdivide splits a leaf into four equal quadrants.
func (n *node) subdivide() {
	halfW := n.bounds.Width / 2
	halfH := n.bounds.Height / 2
	x, y := n.bounds.X, n.bounds.Y

	n.children[0] = newLeaf(Bounds{X: x, Y: y, Width: halfW, Height: halfH})
	n.children[1] = newLeaf(Bounds{X: x + halfW, Y: y, Width: halfW, Height: halfH})
	n.children[2] = newLeaf(Bounds{X: x, Y: y + halfH, Width: halfW, Height: halfH})
	n.children[3] = newLeaf(Bounds{X: x + halfW, Y: y + halfH, Width: halfW, Height: halfH})
	n.leaf = false
}

// child routes a coordinate to the quadrant that contains it. Points on
// the shared interior edges belong to the higher quadrant, consistent
// with half-open containment.
func (n *node) child(x, y float64) *node {
	midX := n.bounds.X + n.bounds.Width/2
	midY := n.bounds.Y + n.bounds.Height/2
	i := 0
	if x >= midX {
		i++
	}
	if y >= midY {
		i += 2
	}
	return n.children[i]
}

// Query returns all points inside rect, pruning subtrees whose bounds do
// not intersect it.
func (q *Quadtree) Query(rect Bounds) []Point {
	var out []Point
	q.root.query(rect, &out)
	return out
}

func (n *node) query(rect Bounds, out *[]Point) {
	if !n.bounds.Intersects(rect) {
		return
	}
	if n.leaf {
		for _, p := range n.points {
			if rect.Contains(p.X, p.Y) {
				*out = append(*out, p)
			}
		}
		return
	}
	for _, child := range n.children {
		child.query(rect, out)
	}
}

// FindNearest returns the nearest point within maxRadius of (x, y). The
// second result is false when no point qualifies. Ties may resolve to any
// qualifying point.
func (q *Quadtree) FindNearest(x, y, maxRadius float64) (Point, bool) {
	if !finite(x) || !finite(y) || !finite(maxRadius) || maxRadius < 0 {
		return Point{}, false
	}
	best := Point{}
	bestDist := maxRadius * maxRadius
	found := false
	q.root.nearest(x, y, &best, &bestDist, &found)
	return best, found
}

func (n *node) nearest(x, y float64, best *Point, bestDist *float64, found *bool) {
	if distToBounds(x, y, n.bounds) > *bestDist {
		return
	}
	if n.leaf {
		for _, p := range n.points {
			dx, dy := p.X-x, p.Y-y
			d := dx*dx + dy*dy
			if d < *bestDist || (d == *bestDist && !*found) {
				*best = p
				*bestDist = d
				*found = true
			}
		}
		return
	}
	for _, child := range n.children {
		child.nearest(x, y, best, bestDist, found)
	}
}

// distToBounds returns the squared distance from a point to the nearest
// edge of a rectangle, zero when inside.
func distToBounds(x, y float64, b Bounds) float64 {
	dx := math.Max(math.Max(b.X-x, 0), x-(b.X+b.Width))
	dy := math.Max(math.Max(b.Y-y, 0), y-(b.Y+b.Height))
	return dx*dx + dy*dy
}

// Size returns the cumulative point count across the whole tree.
func (q *Quadtree) Size() int { return q.size }

// Clear removes all points and children, resetting to a single leaf.
func (q *Quadtree) Clear() {
	q.root = newLeaf(q.bounds)
	q.size = 0
}

// Bounds returns a copy of the tree's bounding rectangle.
func (q *Quadtree) Bounds() Bounds { return q.bounds }
