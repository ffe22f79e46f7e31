package pagestore

import (
	"context"
	"database/sql"
	"fmt"
	"maps"
	"slices"

	"github.com/pdsdk/pagedesigner/internal/protocol"
	utilmaps "github.com/pdsdk/pagedesigner/internal/util/maps"
)

// AddComponent creates a component of the requested type inside the
// target region and returns the updated page.
func (s *Store) AddComponent(ctx context.Context, pageID string, ev protocol.ComponentAddedToRegionEvent) (Page, error) {
	return s.mutate(ctx, pageID, func(page *Page) error {
		if ev.ComponentID == "" {
			return fmt.Errorf("%w: component id is required", ErrInvalidMove)
		}
		if _, exists := page.Components[ev.ComponentID]; exists {
			return fmt.Errorf("%w: component %q already exists", ErrInvalidMove, ev.ComponentID)
		}
		typeID := ev.ComponentSpecifier.TypeID
		if typeID == "" {
			return fmt.Errorf("%w: component type is required", ErrInvalidMove)
		}
		region, err := targetRegion(page, ev.TargetComponentID, ev.TargetRegionID)
		if err != nil {
			return err
		}
		if !regionAccepts(*region, typeID) {
			return fmt.Errorf("%w: region %s/%s does not accept %q", ErrInvalidMove, ev.TargetComponentID, ev.TargetRegionID, typeID)
		}

		page.Components[ev.ComponentID] = protocol.Component{
			ID:     ev.ComponentID,
			TypeID: typeID,
			Data:   utilmaps.Clone(ev.ComponentProperties),
		}
		region.ComponentIDs = insertChild(region.ComponentIDs, ev.ComponentID, ev.InsertComponentID, ev.InsertType)
		return nil
	})
}

// MoveComponent relocates an existing component to the target region and
// returns the updated page.
func (s *Store) MoveComponent(ctx context.Context, pageID string, ev protocol.ComponentMovedToRegionEvent) (Page, error) {
	return s.mutate(ctx, pageID, func(page *Page) error {
		comp, ok := page.Components[ev.ComponentID]
		if !ok {
			return NotFoundError{Entity: "component", Key: ev.ComponentID}
		}
		if ev.ComponentID == page.RootID {
			return fmt.Errorf("%w: root component cannot move", ErrInvalidMove)
		}
		if ev.InsertComponentID == ev.ComponentID {
			return nil
		}
		if inSubtree(page, ev.ComponentID, ev.TargetComponentID) {
			return fmt.Errorf("%w: %q cannot move into its own subtree", ErrInvalidMove, ev.ComponentID)
		}
		target, err := targetRegion(page, ev.TargetComponentID, ev.TargetRegionID)
		if err != nil {
			return err
		}
		if !regionAccepts(*target, comp.TypeID) {
			return fmt.Errorf("%w: region %s/%s does not accept %q", ErrInvalidMove, ev.TargetComponentID, ev.TargetRegionID, comp.TypeID)
		}

		detach(page, ev.ComponentID)
		// detach rewrote the owning component; re-resolve the target.
		target, err = targetRegion(page, ev.TargetComponentID, ev.TargetRegionID)
		if err != nil {
			return err
		}
		target.ComponentIDs = insertChild(target.ComponentIDs, ev.ComponentID, ev.InsertComponentID, ev.InsertType)
		return nil
	})
}

// DeleteComponent removes a component and everything placed inside it.
func (s *Store) DeleteComponent(ctx context.Context, pageID string, ev protocol.ComponentDeletedEvent) (Page, error) {
	return s.mutate(ctx, pageID, func(page *Page) error {
		if _, ok := page.Components[ev.ComponentID]; !ok {
			return NotFoundError{Entity: "component", Key: ev.ComponentID}
		}
		if ev.ComponentID == page.RootID {
			return fmt.Errorf("%w: root component cannot be deleted", ErrInvalidMove)
		}
		detach(page, ev.ComponentID)
		for _, id := range subtree(page, ev.ComponentID) {
			delete(page.Components, id)
		}
		return nil
	})
}

// UpdateProperties merges props into a component's data. A nil value
// removes the key.
func (s *Store) UpdateProperties(ctx context.Context, pageID string, ev protocol.ComponentPropertiesChangedEvent) (Page, error) {
	return s.mutate(ctx, pageID, func(page *Page) error {
		comp, ok := page.Components[ev.ComponentID]
		if !ok {
			return NotFoundError{Entity: "component", Key: ev.ComponentID}
		}
		data := maps.Clone(comp.Data)
		if data == nil {
			data = make(map[string]any, len(ev.ComponentProperties))
		}
		for k, v := range ev.ComponentProperties {
			if v == nil {
				delete(data, k)
				continue
			}
			data[k] = v
		}
		comp.Data = data
		page.Components[ev.ComponentID] = comp
		return nil
	})
}

func (s *Store) mutate(ctx context.Context, pageID string, fn func(*Page) error) (Page, error) {
	var out Page
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		page, err := loadPage(ctx, tx, pageID)
		if err != nil {
			return err
		}
		if err := fn(&page); err != nil {
			return err
		}
		if err := validateTree(page); err != nil {
			return err
		}
		if err := writeComponents(ctx, tx, page); err != nil {
			return err
		}
		out = page
		return nil
	})
	return out, err
}

// targetRegion returns a pointer into the owning component's region
// slice. Components are stored by value, so the owner is written back
// first to keep the pointer aliased to the page.
func targetRegion(page *Page, componentID, regionID string) (*protocol.Region, error) {
	owner, ok := page.Components[componentID]
	if !ok {
		return nil, NotFoundError{Entity: "component", Key: componentID}
	}
	for i := range owner.Regions {
		if owner.Regions[i].ID == regionID {
			owner.Regions = slices.Clone(owner.Regions)
			page.Components[componentID] = owner
			return &owner.Regions[i], nil
		}
	}
	return nil, NotFoundError{Entity: "region", Key: componentID + "/" + regionID}
}

func regionAccepts(region protocol.Region, typeID string) bool {
	if len(region.ComponentTypeInclusions) > 0 && !slices.Contains(region.ComponentTypeInclusions, typeID) {
		return false
	}
	return !slices.Contains(region.ComponentTypeExclusions, typeID)
}

// insertChild places id next to anchor. A missing anchor appends.
func insertChild(children []string, id, anchor string, side protocol.InsertType) []string {
	out := slices.Clone(children)
	at := slices.Index(out, anchor)
	if anchor == "" || at < 0 {
		return append(out, id)
	}
	if side != protocol.InsertBefore {
		at++
	}
	return slices.Insert(out, at, id)
}

// detach removes id from whichever region holds it.
func detach(page *Page, id string) {
	for ownerID, owner := range page.Components {
		for i, region := range owner.Regions {
			idx := slices.Index(region.ComponentIDs, id)
			if idx < 0 {
				continue
			}
			regions := slices.Clone(owner.Regions)
			regions[i].ComponentIDs = slices.Delete(slices.Clone(region.ComponentIDs), idx, idx+1)
			owner.Regions = regions
			page.Components[ownerID] = owner
			return
		}
	}
}

// subtree lists root and every component below it.
func subtree(page *Page, root string) []string {
	var out []string
	stack := []string{root}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, id)
		for _, region := range page.Components[id].Regions {
			stack = append(stack, region.ComponentIDs...)
		}
	}
	return out
}

func inSubtree(page *Page, root, candidate string) bool {
	return slices.Contains(subtree(page, root), candidate)
}
