package dragdrop

import (
	"testing"

	"github.com/pdsdk/pagedesigner/internal/protocol"
)

const (
	nodePage Node = iota + 1
	nodeMain
	nodeHero
	nodeInner
	nodeButton
	nodeSidebar
)

// testPage lays out a row region "main" holding "hero", whose column
// region "inner" holds "button", plus an empty "sidebar" region that
// only accepts "text" components.
func testPage(t *testing.T) (*Registry, *Layout) {
	t.Helper()
	reg := NewRegistry()
	layout := NewLayout()

	layout.AddRoot(nodePage, Rect{X: 0, Y: 0, Width: 1000, Height: 1000})
	layout.AddChild(nodeMain, nodePage, Rect{X: 0, Y: 0, Width: 400, Height: 100})
	layout.AddChild(nodeHero, nodeMain, Rect{X: 100, Y: 0, Width: 100, Height: 100})
	layout.AddChild(nodeInner, nodeHero, Rect{X: 110, Y: 10, Width: 80, Height: 80})
	layout.AddChild(nodeButton, nodeInner, Rect{X: 110, Y: 10, Width: 80, Height: 40})
	layout.AddChild(nodeSidebar, nodePage, Rect{X: 0, Y: 200, Width: 400, Height: 100})

	reg.Register(nodeMain, Target{Kind: KindRegion, RegionID: "main", ParentID: "root", Direction: DirectionRow, ComponentIDs: []string{"hero"}})
	reg.Register(nodeHero, Target{Kind: KindComponent, ComponentID: "hero", TypeID: "banner", RegionID: "main", ParentID: "root"})
	reg.Register(nodeInner, Target{Kind: KindRegion, RegionID: "inner", ParentID: "hero", Direction: DirectionColumn, ComponentIDs: []string{"button"}})
	reg.Register(nodeButton, Target{Kind: KindComponent, ComponentID: "button", TypeID: "button", RegionID: "inner", ParentID: "hero"})
	reg.Register(nodeSidebar, Target{Kind: KindRegion, RegionID: "sidebar", ParentID: "root", Direction: DirectionColumn, ComponentTypeInclusions: []string{"text"}})
	return reg, layout
}

func TestInsertSideInRowRegion(t *testing.T) {
	reg, layout := testPage(t)
	// y=95 stays below the hero's inner region.
	r := Resolver{Registry: reg, Surface: layout}

	tests := []struct {
		x    float64
		want protocol.InsertType
	}{
		{120, protocol.InsertBefore},
		{180, protocol.InsertAfter},
	}
	for _, tt := range tests {
		target := r.Resolve(Point{X: tt.x, Y: 95}, "banner", nil)
		if target == nil {
			t.Fatalf("x=%v: no target", tt.x)
		}
		if target.RegionID != "main" || target.ComponentID != "hero" {
			t.Fatalf("x=%v: target = %+v", tt.x, target)
		}
		if target.InsertType != tt.want {
			t.Errorf("x=%v: insertType = %q, want %q", tt.x, target.InsertType, tt.want)
		}
	}
}

func TestInsertSideInColumnRegion(t *testing.T) {
	reg, layout := testPage(t)
	r := Resolver{Registry: reg, Surface: layout}

	top := r.Resolve(Point{X: 150, Y: 20}, "text", nil)
	bottom := r.Resolve(Point{X: 150, Y: 45}, "text", nil)
	if top == nil || bottom == nil {
		t.Fatalf("targets = %+v, %+v", top, bottom)
	}
	if top.InsertType != protocol.InsertBefore || bottom.InsertType != protocol.InsertAfter {
		t.Fatalf("insert types = %q, %q", top.InsertType, bottom.InsertType)
	}
}

func TestResolveStopsAtInnermostRegion(t *testing.T) {
	reg, layout := testPage(t)
	r := Resolver{Registry: reg, Surface: layout}

	target := r.Resolve(Point{X: 150, Y: 30}, "text", nil)
	if target == nil {
		t.Fatal("no target")
	}
	if target.RegionID != "inner" || target.ParentID != "hero" || target.ComponentID != "button" {
		t.Fatalf("target = %+v", target)
	}
	if target.Direction != DirectionColumn {
		t.Fatalf("direction = %q", target.Direction)
	}
}

func TestResolveNearestChildInGap(t *testing.T) {
	reg, layout := testPage(t)
	r := Resolver{Registry: reg, Surface: layout}

	// Inside inner, below the button.
	target := r.Resolve(Point{X: 150, Y: 80}, "text", nil)
	if target == nil || target.ComponentID != "button" || target.InsertType != protocol.InsertAfter {
		t.Fatalf("target = %+v", target)
	}

	// Inside main, left of the hero.
	target = r.Resolve(Point{X: 20, Y: 50}, "banner", nil)
	if target == nil || target.ComponentID != "hero" || target.InsertType != protocol.InsertBefore {
		t.Fatalf("target = %+v", target)
	}
}

func TestResolveEmptyRegionAppends(t *testing.T) {
	reg, layout := testPage(t)
	r := Resolver{Registry: reg, Surface: layout}

	target := r.Resolve(Point{X: 50, Y: 250}, "text", nil)
	if target == nil {
		t.Fatal("no target")
	}
	if target.RegionID != "sidebar" || target.ComponentID != "" || target.InsertType != protocol.InsertAfter {
		t.Fatalf("target = %+v", target)
	}
}

func TestResolveHonoursTypeLists(t *testing.T) {
	reg, layout := testPage(t)
	r := Resolver{Registry: reg, Surface: layout}

	if target := r.Resolve(Point{X: 50, Y: 250}, "banner", nil); target != nil {
		t.Fatalf("sidebar accepted excluded type: %+v", target)
	}

	reg.Register(nodeMain, Target{
		Kind: KindRegion, RegionID: "main", Direction: DirectionRow,
		ComponentIDs: []string{"hero"}, ComponentTypeExclusions: []string{"banner"},
	})
	if target := r.Resolve(Point{X: 20, Y: 50}, "banner", nil); target != nil {
		t.Fatalf("main accepted excluded type: %+v", target)
	}
	if target := r.Resolve(Point{X: 20, Y: 50}, "text", nil); target == nil {
		t.Fatal("main refused an allowed type")
	}
}

func TestResolveOutsideRegions(t *testing.T) {
	reg, layout := testPage(t)
	r := Resolver{Registry: reg, Surface: layout}

	if target := r.Resolve(Point{X: 900, Y: 900}, "text", nil); target != nil {
		t.Fatalf("target over page background = %+v", target)
	}
	if target := r.Resolve(Point{X: 5000, Y: 5000}, "text", nil); target != nil {
		t.Fatalf("target off surface = %+v", target)
	}
	if target := (Resolver{}).Resolve(Point{}, "text", nil); target != nil {
		t.Fatal("zero resolver returned a target")
	}
}

func TestUnregisteredNodesAreInvisible(t *testing.T) {
	reg := NewRegistry()
	layout := NewLayout()
	layout.AddRoot(nodeMain, Rect{Width: 100, Height: 100})
	r := Resolver{Registry: reg, Surface: layout}

	if target := r.Resolve(Point{X: 10, Y: 10}, "text", nil); target != nil {
		t.Fatalf("unregistered region resolved: %+v", target)
	}
	h := reg.Register(nodeMain, Target{Kind: KindRegion, RegionID: "main"})
	if target := r.Resolve(Point{X: 10, Y: 10}, "text", nil); target == nil {
		t.Fatal("registered region not resolved")
	}
	reg.Deregister(h)
	if target := r.Resolve(Point{X: 10, Y: 10}, "text", nil); target != nil {
		t.Fatalf("deregistered region resolved: %+v", target)
	}
}

func TestRectCacheKeepsMeasurementsUntilReset(t *testing.T) {
	reg, layout := testPage(t)
	r := Resolver{Registry: reg, Surface: layout}
	var cache RectCache

	if target := r.Resolve(Point{X: 120, Y: 95}, "banner", &cache); target.InsertType != protocol.InsertBefore {
		t.Fatalf("insertType = %q", target.InsertType)
	}
	if cache.Len() == 0 {
		t.Fatal("nothing cached")
	}

	// Geometry changes mid-drag are not observed until the next drag.
	layout.Move(nodeHero, Rect{X: 0, Y: 0, Width: 100, Height: 100})
	if target := r.Resolve(Point{X: 120, Y: 95}, "banner", &cache); target.InsertType != protocol.InsertBefore {
		t.Fatalf("cached insertType = %q", target.InsertType)
	}

	cache.Reset()
	if target := r.Resolve(Point{X: 20, Y: 50}, "banner", &cache); target == nil || target.InsertType != protocol.InsertBefore {
		t.Fatalf("after reset target = %+v", target)
	}
	if target := r.Resolve(Point{X: 80, Y: 50}, "banner", &cache); target == nil || target.InsertType != protocol.InsertAfter {
		t.Fatalf("after reset target = %+v", target)
	}
}

func TestRegistryHandles(t *testing.T) {
	reg := NewRegistry()

	first := reg.Register(1, Target{Kind: KindComponent, ComponentID: "a"})
	if !first.Valid() {
		t.Fatal("handle not valid")
	}
	reg.Deregister(first)
	if _, ok := reg.Lookup(1); ok {
		t.Fatal("lookup after deregister succeeded")
	}
	if _, ok := reg.Resolve(first); ok {
		t.Fatal("stale handle resolved")
	}

	// The slot is reused; the stale handle must not touch the new entry.
	second := reg.Register(2, Target{Kind: KindComponent, ComponentID: "b"})
	reg.Deregister(first)
	if got, ok := reg.Resolve(second); !ok || got.ComponentID != "b" {
		t.Fatalf("Resolve(second) = %+v, %v", got, ok)
	}
	if node, ok := reg.ComponentNode("b"); !ok || node != 2 {
		t.Fatalf("ComponentNode(b) = %v, %v", node, ok)
	}
	if _, ok := reg.ComponentNode("a"); ok {
		t.Fatal("deregistered component still indexed")
	}

	// Re-registering a node replaces its entry.
	third := reg.Register(2, Target{Kind: KindComponent, ComponentID: "c"})
	if _, ok := reg.Resolve(second); ok {
		t.Fatal("replaced handle still resolves")
	}
	if got, _ := reg.Lookup(2); got.ComponentID != "c" {
		t.Fatalf("Lookup(2) = %+v", got)
	}
	if reg.Len() != 1 {
		t.Fatalf("Len = %d, want 1", reg.Len())
	}
	reg.Deregister(third)
	reg.Deregister(third)
	reg.Deregister(Handle{})
	if reg.Len() != 0 {
		t.Fatalf("Len = %d, want 0", reg.Len())
	}
}

func TestRectDistance(t *testing.T) {
	r := Rect{X: 10, Y: 10, Width: 10, Height: 10}
	tests := []struct {
		p    Point
		want float64
	}{
		{Point{X: 15, Y: 15}, 0},
		{Point{X: 0, Y: 15}, 10},
		{Point{X: 23, Y: 24}, 5},
	}
	for _, tt := range tests {
		if got := r.Distance(tt.p); got != tt.want {
			t.Errorf("Distance(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
}
