// Package interaction keeps the page side interaction state of the
// designer: selection, hover, focus, delete and drag and drop. Inbound
// protocol events only change state; local actions change state and
// notify the host.
package interaction

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/pdsdk/pagedesigner/internal/dragdrop"
	"github.com/pdsdk/pagedesigner/internal/messenger"
	"github.com/pdsdk/pagedesigner/internal/protocol"
)

// Peer is the part of the client API the Designer drives.
type Peer interface {
	messenger.Subscriber
	SelectComponent(ctx context.Context, ev protocol.ComponentSelectedEvent) error
	DeselectComponent(ctx context.Context, ev protocol.ComponentDeselectedEvent) error
	HoverInComponent(ctx context.Context, ev protocol.ComponentHoveredInEvent) error
	HoverOutComponent(ctx context.Context, ev protocol.ComponentHoveredOutEvent) error
	DeleteComponent(ctx context.Context, ev protocol.ComponentDeletedEvent) error
	AddComponentToRegion(ctx context.Context, ev protocol.ComponentAddedToRegionEvent) error
	MoveComponentToRegion(ctx context.Context, ev protocol.ComponentMovedToRegionEvent) error
}

// Config configures a Designer.
type Config struct {
	Peer Peer
	// Registry and Surface back drop target resolution. Without them
	// every drop resolves to no target.
	Registry *dragdrop.Registry
	Surface  dragdrop.Surface
	Logger   *log.Logger
	// NewComponentID names inserted components. Defaults to uuid.NewString.
	NewComponentID func() string
}

var errNoPeer = errors.New("interaction: peer is required")

// Designer is the aggregate interaction state of one page.
type Designer struct {
	peer     Peer
	resolver dragdrop.Resolver
	logger   *log.Logger
	newID    func() string

	mu        sync.Mutex
	state     State
	listeners []*listener
	nextID    uint64

	subs messenger.Group
}

type listener struct {
	id uint64
	fn func(State)
}

// New constructs a Designer. Call Start to follow the host's events.
func New(cfg Config) (*Designer, error) {
	if cfg.Peer == nil {
		return nil, errNoPeer
	}
	d := &Designer{
		peer:     cfg.Peer,
		resolver: dragdrop.Resolver{Registry: cfg.Registry, Surface: cfg.Surface},
		logger:   cfg.Logger,
		newID:    cfg.NewComponentID,
	}
	if d.newID == nil {
		d.newID = uuid.NewString
	}
	return d, nil
}

// Start subscribes to the host's interaction events, replacing any
// earlier subscriptions. Call it again after the peer reconnects, since
// disconnecting the peer drops its handlers.
func (d *Designer) Start() {
	d.subs.CloseAll()
	p := d.peer
	d.subs.Add(
		messenger.Subscribe(p, protocol.ComponentSelected, func(ev protocol.ComponentSelectedEvent) {
			d.dispatch(componentSelected{id: ev.ComponentID})
		}),
		messenger.Subscribe(p, protocol.ComponentDeselected, func(ev protocol.ComponentDeselectedEvent) {
			d.dispatch(componentDeselected{id: ev.ComponentID})
		}),
		messenger.Subscribe(p, protocol.ComponentHoveredIn, func(ev protocol.ComponentHoveredInEvent) {
			d.dispatch(hoveredIn{id: ev.ComponentID})
		}),
		messenger.Subscribe(p, protocol.ComponentHoveredOut, func(ev protocol.ComponentHoveredOutEvent) {
			d.dispatch(hoveredOut{id: ev.ComponentID})
		}),
		messenger.Subscribe(p, protocol.ComponentFocused, func(ev protocol.ComponentFocusedEvent) {
			d.dispatch(componentFocused{id: ev.ComponentID})
		}),
		messenger.Subscribe(p, protocol.ComponentDeleted, func(ev protocol.ComponentDeletedEvent) {
			d.dispatch(componentDeleted{id: ev.ComponentID})
		}),
		messenger.Subscribe(p, protocol.ComponentDragStarted, func(ev protocol.ComponentDragStartedEvent) {
			d.dispatch(dragStarted{typeID: ev.ComponentID})
		}),
		messenger.Subscribe(p, protocol.ClientWindowDragEntered, func(ev protocol.ClientWindowDragEnteredEvent) {
			d.dispatch(dragEntered{typeID: ev.ComponentID, at: pointOf(ev.X, ev.Y)})
		}),
		messenger.Subscribe(p, protocol.ClientWindowDragMoved, func(ev protocol.ClientWindowDragMovedEvent) {
			d.dispatch(pointerMoved{at: dragdrop.Point{X: ev.X, Y: ev.Y}})
		}),
		messenger.Subscribe(p, protocol.ClientWindowDragExited, func(protocol.ClientWindowDragExitedEvent) {
			d.dispatch(dragExited{})
		}),
		messenger.Subscribe(p, protocol.ClientWindowDragDropped, func(ev protocol.ClientWindowDragDroppedEvent) {
			d.dispatch(dragDropped{at: pointOf(ev.X, ev.Y)})
		}),
	)
}

// pointOf returns nil when neither coordinate was sent. A single
// missing coordinate reads as 0.
func pointOf(x, y *float64) *dragdrop.Point {
	if x == nil && y == nil {
		return nil
	}
	var p dragdrop.Point
	if x != nil {
		p.X = *x
	}
	if y != nil {
		p.Y = *y
	}
	return &p
}

// Stop releases the subscriptions made by Start.
func (d *Designer) Stop() {
	d.subs.CloseAll()
}

// State returns a snapshot of the interaction state.
func (d *Designer) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// OnChange registers fn to receive every new state. The returned
// function removes it.
func (d *Designer) OnChange(fn func(State)) func() {
	d.mu.Lock()
	d.nextID++
	l := &listener{id: d.nextID, fn: fn}
	d.listeners = append(d.listeners, l)
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			defer d.mu.Unlock()
			for i, existing := range d.listeners {
				if existing.id == l.id {
					d.listeners = append(d.listeners[:i:i], d.listeners[i+1:]...)
					break
				}
			}
		})
	}
}

// dispatch reduces msg, notifies listeners and then runs the commit
// observer once the state has settled.
func (d *Designer) dispatch(msg any) (prev, next State) {
	d.mu.Lock()
	prev = d.state
	d.state = d.state.reduce(msg, d.resolve)
	next = d.state
	listeners := append([]*listener(nil), d.listeners...)
	d.mu.Unlock()

	notify(listeners, next)

	if next.Drag.PendingTargetCommit {
		if err := d.CommitCurrentDropTarget(context.Background()); err != nil {
			d.logf("[Designer] commit drop: %v", err)
		}
	}
	return prev, next
}

func notify(listeners []*listener, state State) {
	for _, l := range listeners {
		l.fn(state)
	}
}

func (d *Designer) resolve(p dragdrop.Point, typeID string, cache *dragdrop.RectCache) *dragdrop.DropTarget {
	return d.resolver.Resolve(p, typeID, cache)
}

// SelectComponent selects id locally and tells the host.
func (d *Designer) SelectComponent(ctx context.Context, id string) error {
	d.dispatch(componentSelected{id: id})
	return d.peer.SelectComponent(ctx, protocol.ComponentSelectedEvent{ComponentID: id})
}

// DeselectComponent clears the selection and tells the host which
// component lost it. Nothing is sent when nothing was selected.
func (d *Designer) DeselectComponent(ctx context.Context) error {
	prev, _ := d.dispatch(componentDeselected{})
	if prev.Selection.ComponentID == "" {
		return nil
	}
	return d.peer.DeselectComponent(ctx, protocol.ComponentDeselectedEvent{ComponentID: prev.Selection.ComponentID})
}

// HoverInComponent marks id hovered and tells the host.
func (d *Designer) HoverInComponent(ctx context.Context, id string) error {
	d.dispatch(hoveredIn{id: id})
	return d.peer.HoverInComponent(ctx, protocol.ComponentHoveredInEvent{ComponentID: id})
}

// HoverOutComponent clears the hover and tells the host which component
// was left.
func (d *Designer) HoverOutComponent(ctx context.Context) error {
	prev, _ := d.dispatch(hoveredOut{})
	if prev.Hover.ComponentID == "" {
		return nil
	}
	return d.peer.HoverOutComponent(ctx, protocol.ComponentHoveredOutEvent{ComponentID: prev.Hover.ComponentID})
}

// DeleteComponent clears local state referring to the component, then
// asks the host to delete it.
func (d *Designer) DeleteComponent(ctx context.Context, ev protocol.ComponentDeletedEvent) error {
	d.dispatch(componentDeleted{id: ev.ComponentID})
	return d.peer.DeleteComponent(ctx, ev)
}

// ScrollIntoView consumes the pending focus request and returns the
// component to reveal. The host is not notified.
func (d *Designer) ScrollIntoView() (componentID string, ok bool) {
	prev, _ := d.dispatch(focusConsumed{})
	return prev.Focus.ComponentID, prev.Focus.ComponentID != ""
}

// StartComponentMove starts dragging an existing component out of
// regionID. The drag originates on the page, so no drag start event is
// expected from the host.
func (d *Designer) StartComponentMove(componentID, regionID string) {
	var typeID string
	if d.resolver.Registry != nil {
		if t, ok := d.resolver.Registry.Component(componentID); ok {
			typeID = t.TypeID
		}
	}
	d.dispatch(moveStarted{componentID: componentID, regionID: regionID, typeID: typeID})
}

// DragOver updates the pointer of a page originated drag.
func (d *Designer) DragOver(x, y float64) {
	d.dispatch(pointerMoved{at: dragdrop.Point{X: x, Y: y}})
}

// DropComponent releases the current drag; the drop is committed once
// the state settles.
func (d *Designer) DropComponent() {
	d.dispatch(dragDropped{})
}

// CancelDrag abandons the current drag without committing.
func (d *Designer) CancelDrag() {
	d.dispatch(dragCancelled{})
}

// CommitCurrentDropTarget turns a pending drop into a move or add
// request and returns the drag to idle. It is a no-op unless a commit is
// pending, and sends nothing when the drop had no target.
func (d *Designer) CommitCurrentDropTarget(ctx context.Context) error {
	d.mu.Lock()
	drag := d.state.Drag
	if !drag.PendingTargetCommit {
		d.mu.Unlock()
		return nil
	}
	d.state = d.state.reduce(dragCommitted{}, nil)
	next := d.state
	listeners := append([]*listener(nil), d.listeners...)
	d.mu.Unlock()

	notify(listeners, next)

	target := drag.CurrentDropTarget
	if target == nil {
		d.logf("[Designer] drop without target discarded")
		return nil
	}

	switch {
	case drag.SourceComponentID != "":
		ev := protocol.ComponentMovedToRegionEvent{
			ComponentID:       drag.SourceComponentID,
			TargetComponentID: target.ParentID,
			TargetRegionID:    target.RegionID,
			SourceRegionID:    drag.SourceRegionID,
			SourceComponentID: d.regionOwner(drag.SourceRegionID),
			InsertComponentID: target.ComponentID,
			InsertType:        target.InsertType,
		}
		if err := d.peer.MoveComponentToRegion(ctx, ev); err != nil {
			return fmt.Errorf("interaction: move %s: %w", drag.SourceComponentID, err)
		}
	case drag.ComponentType != "":
		ev := protocol.ComponentAddedToRegionEvent{
			ComponentID:         d.newID(),
			ComponentSpecifier:  protocol.ComponentSpecifier{TypeID: drag.ComponentType},
			ComponentProperties: map[string]any{},
			TargetComponentID:   target.ParentID,
			TargetRegionID:      target.RegionID,
			InsertComponentID:   target.ComponentID,
			InsertType:          target.InsertType,
		}
		if err := d.peer.AddComponentToRegion(ctx, ev); err != nil {
			return fmt.Errorf("interaction: add %s: %w", drag.ComponentType, err)
		}
	}
	return nil
}

func (d *Designer) regionOwner(regionID string) string {
	if d.resolver.Registry == nil {
		return ""
	}
	region, ok := d.resolver.Registry.Region(regionID)
	if !ok {
		return ""
	}
	return region.ParentID
}

func (d *Designer) logf(format string, args ...any) {
	if d.logger != nil {
		d.logger.Printf(format, args...)
	}
}
