package dragdrop

import (
	"math"
	"slices"

	"github.com/pdsdk/pagedesigner/internal/protocol"
)

// DropTarget is where a dragged item would land if released now.
type DropTarget struct {
	// RegionID is the region receiving the item; ParentID owns it.
	RegionID  string
	ParentID  string
	Direction Direction
	// ComponentIDs is the region's current ordered content.
	ComponentIDs []string
	// ComponentID is the child the pointer is nearest to, empty for an
	// empty region.
	ComponentID string
	InsertType  protocol.InsertType
}

// Resolver hit tests pointer positions against a registry and surface.
type Resolver struct {
	Registry *Registry
	Surface  Surface
}

// Resolve returns the drop target under p for an item of typeID, or nil
// when the pointer is over no registered region or the region refuses
// the type. The walk up from the hit node stops at the first region.
func (r Resolver) Resolve(p Point, typeID string, cache *RectCache) *DropTarget {
	if r.Registry == nil || r.Surface == nil {
		return nil
	}
	node, ok := r.Surface.ElementAt(p)
	if !ok {
		return nil
	}

	var (
		region    Target
		child     Node
		childID   string
		haveChild bool
		found     bool
	)
	for {
		if t, ok := r.Registry.Lookup(node); ok {
			if t.Kind == KindRegion {
				region, found = t, true
				break
			}
			if t.Kind == KindComponent {
				child, childID, haveChild = node, t.ComponentID, true
			}
		}
		parent, ok := r.Surface.Parent(node)
		if !ok {
			break
		}
		node = parent
	}
	if !found {
		return nil
	}
	if !region.Accepts(typeID) {
		return nil
	}

	target := &DropTarget{
		RegionID:     region.RegionID,
		ParentID:     region.ParentID,
		Direction:    region.Direction,
		ComponentIDs: slices.Clone(region.ComponentIDs),
		InsertType:   protocol.InsertAfter,
	}
	if target.Direction == "" {
		target.Direction = DirectionColumn
	}

	if !haveChild || !slices.Contains(region.ComponentIDs, childID) {
		child, childID, haveChild = r.nearestChild(region, p, cache)
	}
	if !haveChild {
		return target
	}
	bounds, ok := cache.Bounds(r.Surface, child)
	if !ok {
		return target
	}

	target.ComponentID = childID
	target.InsertType = insertSide(target.Direction, bounds, p)
	return target
}

// nearestChild picks the registered child of region closest to p.
func (r Resolver) nearestChild(region Target, p Point, cache *RectCache) (Node, string, bool) {
	var (
		best     Node
		bestID   string
		bestDist = math.Inf(1)
		found    bool
	)
	for _, id := range region.ComponentIDs {
		node, ok := r.Registry.ComponentNode(id)
		if !ok {
			continue
		}
		bounds, ok := cache.Bounds(r.Surface, node)
		if !ok {
			continue
		}
		if d := bounds.Distance(p); d < bestDist {
			best, bestID, bestDist, found = node, id, d, true
		}
	}
	return best, bestID, found
}

func insertSide(dir Direction, bounds Rect, p Point) protocol.InsertType {
	if dir == DirectionRow {
		if p.X < bounds.MidX() {
			return protocol.InsertBefore
		}
		return protocol.InsertAfter
	}
	if p.Y < bounds.MidY() {
		return protocol.InsertBefore
	}
	return protocol.InsertAfter
}
