package dragdrop

import (
	"slices"
	"sync"
)

// Node identifies a rendered element on a Surface.
type Node uint64

// Kind tells components and regions apart.
type Kind int

const (
	KindComponent Kind = iota + 1
	KindRegion
)

func (k Kind) String() string {
	switch k {
	case KindComponent:
		return "component"
	case KindRegion:
		return "region"
	default:
		return "unknown"
	}
}

// Target describes what a registered node stands for.
//
// For a component, ComponentID and TypeID name it, RegionID is the
// region it sits in and ParentID the component owning that region.
// For a region, RegionID names it, ParentID is the owning component,
// and Direction, ComponentIDs and the type lists describe its content.
type Target struct {
	Kind        Kind
	ComponentID string
	TypeID      string
	RegionID    string
	ParentID    string

	Direction               Direction
	ComponentIDs            []string
	ComponentTypeInclusions []string
	ComponentTypeExclusions []string
}

// Accepts applies the region's inclusion and exclusion lists to typeID.
// An empty inclusion list admits every type.
func (t Target) Accepts(typeID string) bool {
	if len(t.ComponentTypeInclusions) > 0 && !slices.Contains(t.ComponentTypeInclusions, typeID) {
		return false
	}
	return !slices.Contains(t.ComponentTypeExclusions, typeID)
}

// Handle is returned by Register and releases the entry on Deregister.
// A handle outlives its entry safely: once deregistered it never
// resolves again, even after the slot is reused.
type Handle struct {
	index      uint32
	generation uint32
}

// Valid reports whether h was produced by Register.
func (h Handle) Valid() bool { return h.generation != 0 }

type slot struct {
	node       Node
	target     Target
	generation uint32
	live       bool
}

// Registry maps mounted nodes to their Target. Entries live in an arena
// of reusable slots; Deregister bumps the slot generation so stale
// handles and lookups for unmounted nodes report not found. It is safe
// for concurrent use, and a node that has not registered yet is simply
// not found.
type Registry struct {
	mu         sync.RWMutex
	slots      []slot
	free       []uint32
	byNode     map[Node]uint32
	components map[string]uint32
	regions    map[string]uint32
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byNode:     make(map[Node]uint32),
		components: make(map[string]uint32),
		regions:    make(map[string]uint32),
	}
}

// Register associates node with target. Registering a node again
// replaces its previous entry and invalidates the old handle.
func (r *Registry) Register(node Node, target Target) Handle {
	target.ComponentIDs = slices.Clone(target.ComponentIDs)

	r.mu.Lock()
	defer r.mu.Unlock()

	if idx, ok := r.byNode[node]; ok {
		r.releaseLocked(idx)
	}

	var idx uint32
	if n := len(r.free); n > 0 {
		idx = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		idx = uint32(len(r.slots))
		r.slots = append(r.slots, slot{})
	}

	s := &r.slots[idx]
	s.generation++
	s.node = node
	s.target = target
	s.live = true

	r.byNode[node] = idx
	switch target.Kind {
	case KindComponent:
		r.components[target.ComponentID] = idx
	case KindRegion:
		r.regions[target.RegionID] = idx
	}
	return Handle{index: idx, generation: s.generation}
}

// Deregister removes the entry h refers to. Stale or zero handles are
// ignored.
func (r *Registry) Deregister(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if int(h.index) >= len(r.slots) {
		return
	}
	s := r.slots[h.index]
	if !s.live || s.generation != h.generation {
		return
	}
	r.releaseLocked(h.index)
}

func (r *Registry) releaseLocked(idx uint32) {
	s := &r.slots[idx]
	delete(r.byNode, s.node)
	switch s.target.Kind {
	case KindComponent:
		if r.components[s.target.ComponentID] == idx {
			delete(r.components, s.target.ComponentID)
		}
	case KindRegion:
		if r.regions[s.target.RegionID] == idx {
			delete(r.regions, s.target.RegionID)
		}
	}
	s.live = false
	s.target = Target{}
	s.generation++
	r.free = append(r.free, idx)
}

// Lookup returns the target registered for node.
func (r *Registry) Lookup(node Node) (Target, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx, ok := r.byNode[node]
	if !ok {
		return Target{}, false
	}
	return r.slots[idx].target, true
}

// Resolve returns the target h refers to while its entry is live.
func (r *Registry) Resolve(h Handle) (Target, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(h.index) >= len(r.slots) {
		return Target{}, false
	}
	s := r.slots[h.index]
	if !s.live || s.generation != h.generation {
		return Target{}, false
	}
	return s.target, true
}

// ComponentNode finds the node rendering componentID.
func (r *Registry) ComponentNode(componentID string) (Node, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx, ok := r.components[componentID]
	if !ok {
		return 0, false
	}
	return r.slots[idx].node, true
}

// Region returns the target of a registered region.
func (r *Registry) Region(regionID string) (Target, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx, ok := r.regions[regionID]
	if !ok {
		return Target{}, false
	}
	return r.slots[idx].target, true
}

// Component returns the target of a registered component.
func (r *Registry) Component(componentID string) (Target, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx, ok := r.components[componentID]
	if !ok {
		return Target{}, false
	}
	return r.slots[idx].target, true
}

// Len returns the number of live entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byNode)
}
