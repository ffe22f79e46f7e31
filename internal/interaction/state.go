package interaction

import (
	"github.com/pdsdk/pagedesigner/internal/dragdrop"
)

// Messages fed to the reducers. Inbound protocol events and local
// actions both become messages; only the Designer emits.
type (
	componentSelected   struct{ id string }
	componentDeselected struct{ id string }
	componentDeleted    struct{ id string }
	componentFocused    struct{ id string }
	focusConsumed       struct{}
	hoveredIn           struct{ id string }
	hoveredOut          struct{ id string }

	dragStarted struct{ typeID string }
	moveStarted struct {
		componentID string
		regionID    string
		typeID      string
	}
	// A nil at means the event carried no pointer position.
	dragEntered struct {
		typeID string
		at     *dragdrop.Point
	}
	pointerMoved  struct{ at dragdrop.Point }
	dragDropped   struct{ at *dragdrop.Point }
	dragExited    struct{}
	dragCancelled struct{}
	dragCommitted struct{}
)

// Selection holds the single selected component.
type Selection struct {
	ComponentID string
}

func (s Selection) reduce(msg any) Selection {
	switch msg := msg.(type) {
	case componentSelected:
		s.ComponentID = msg.id
	case componentDeselected:
		if msg.id == "" || msg.id == s.ComponentID {
			s.ComponentID = ""
		}
	case componentDeleted:
		if msg.id == s.ComponentID {
			s.ComponentID = ""
		}
	case componentFocused:
		// Focus driven by the host replaces any local selection.
		s.ComponentID = ""
	}
	return s
}

// Hover holds the single hovered component.
type Hover struct {
	ComponentID string
}

func (h Hover) reduce(msg any) Hover {
	switch msg := msg.(type) {
	case hoveredIn:
		h.ComponentID = msg.id
	case hoveredOut:
		if msg.id == "" || msg.id == h.ComponentID {
			h.ComponentID = ""
		}
	case componentDeleted:
		if msg.id == h.ComponentID {
			h.ComponentID = ""
		}
	}
	return h
}

// Focus holds a focus request from the host that the page has not yet
// scrolled into view.
type Focus struct {
	ComponentID string
}

func (f Focus) reduce(msg any) Focus {
	switch msg := msg.(type) {
	case componentFocused:
		f.ComponentID = msg.id
	case focusConsumed:
		f.ComponentID = ""
	case componentDeleted:
		if msg.id == f.ComponentID {
			f.ComponentID = ""
		}
	}
	return f
}

// DragPhase is derived from the drag flags.
type DragPhase int

const (
	DragIdle DragPhase = iota
	DragDragging
	DragPendingCommit
)

func (p DragPhase) String() string {
	switch p {
	case DragDragging:
		return "dragging"
	case DragPendingCommit:
		return "pending-commit"
	default:
		return "idle"
	}
}

// Drag is the drag and drop state. ComponentType is the type being
// dragged; SourceComponentID and SourceRegionID are only set when an
// existing component is moved.
type Drag struct {
	IsDragging          bool
	X                   float64
	Y                   float64
	ComponentType       string
	SourceComponentID   string
	SourceRegionID      string
	CurrentDropTarget   *dragdrop.DropTarget
	PendingTargetCommit bool

	rects *dragdrop.RectCache
}

// Phase reports where the drag state machine is.
func (d Drag) Phase() DragPhase {
	switch {
	case d.PendingTargetCommit:
		return DragPendingCommit
	case d.IsDragging:
		return DragDragging
	default:
		return DragIdle
	}
}

// resolveFunc hit tests a point for the dragged type.
type resolveFunc func(p dragdrop.Point, typeID string, cache *dragdrop.RectCache) *dragdrop.DropTarget

func (d Drag) reduce(msg any, resolve resolveFunc) Drag {
	switch msg := msg.(type) {
	case dragStarted:
		return Drag{
			IsDragging:    true,
			ComponentType: msg.typeID,
			rects:         &dragdrop.RectCache{},
		}
	case moveStarted:
		return Drag{
			IsDragging:        true,
			ComponentType:     msg.typeID,
			SourceComponentID: msg.componentID,
			SourceRegionID:    msg.regionID,
			rects:             &dragdrop.RectCache{},
		}
	case dragEntered:
		if !d.IsDragging {
			if msg.typeID == "" {
				return d
			}
			d = d.reduce(dragStarted{typeID: msg.typeID}, resolve)
		}
		if msg.at == nil {
			return d
		}
		return d.point(*msg.at, resolve)
	case pointerMoved:
		if !d.IsDragging {
			return d
		}
		return d.point(msg.at, resolve)
	case dragDropped:
		if !d.IsDragging {
			return d
		}
		if msg.at != nil {
			d = d.point(*msg.at, resolve)
		}
		d.IsDragging = false
		d.PendingTargetCommit = true
		return d
	case dragExited, dragCancelled, dragCommitted:
		return Drag{}
	}
	return d
}

func (d Drag) point(at dragdrop.Point, resolve resolveFunc) Drag {
	d.X, d.Y = at.X, at.Y
	d.CurrentDropTarget = nil
	if resolve != nil {
		d.CurrentDropTarget = resolve(at, d.ComponentType, d.rects)
	}
	return d
}

// State aggregates every reducer.
type State struct {
	Selection Selection
	Hover     Hover
	Focus     Focus
	Drag      Drag
}

func (s State) reduce(msg any, resolve resolveFunc) State {
	s.Selection = s.Selection.reduce(msg)
	s.Hover = s.Hover.reduce(msg)
	s.Focus = s.Focus.reduce(msg)
	s.Drag = s.Drag.reduce(msg, resolve)
	return s
}
