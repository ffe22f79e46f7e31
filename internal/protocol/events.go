package protocol

// Event types. The strings are the wire contract shared with other
// implementations and must not change.
const (
	EventClientInitialized          EventType = "ClientInitialized"
	EventClientAcknowledged         EventType = "ClientAcknowledged"
	EventClientReady                EventType = "ClientReady"
	EventComponentSelected          EventType = "ComponentSelected"
	EventComponentDeselected        EventType = "ComponentDeselected"
	EventComponentHoveredIn         EventType = "ComponentHoveredIn"
	EventComponentHoveredOut        EventType = "ComponentHoveredOut"
	EventComponentFocused           EventType = "ComponentFocused"
	EventComponentDragStarted       EventType = "ComponentDragStarted"
	EventComponentAddedToRegion     EventType = "ComponentAddedToRegion"
	EventComponentMovedToRegion     EventType = "ComponentMovedToRegion"
	EventComponentDeleted           EventType = "ComponentDeleted"
	EventComponentPropertiesChanged EventType = "ComponentPropertiesChanged"
	EventComponentsChanged          EventType = "ComponentsChanged"
	EventClientWindowDragEntered    EventType = "ClientWindowDragEntered"
	EventClientWindowDragMoved      EventType = "ClientWindowDragMoved"
	EventClientWindowDragExited     EventType = "ClientWindowDragExited"
	EventClientWindowDragDropped    EventType = "ClientWindowDragDropped"
	EventWindowScrollChanged        EventType = "WindowScrollChanged"
	EventPageSettingsChanged        EventType = "PageSettingsChanged"
	EventError                      EventType = "Error"
)

// InsertType says on which side of a neighbouring component an insert lands.
type InsertType string

const (
	InsertBefore InsertType = "before"
	InsertAfter  InsertType = "after"
)

// Component is one node of the page tree as the host describes it.
type Component struct {
	ID      string         `json:"id"`
	TypeID  string         `json:"typeId"`
	Data    map[string]any `json:"data,omitempty"`
	Regions []Region       `json:"regions,omitempty"`
}

// Region is a named slot of a component holding ordered children.
type Region struct {
	ID                      string   `json:"id"`
	ComponentIDs            []string `json:"componentIds"`
	ComponentTypeInclusions []string `json:"componentTypeInclusions,omitempty"`
	ComponentTypeExclusions []string `json:"componentTypeExclusions,omitempty"`
}

// ComponentType describes an insertable component in the palette.
type ComponentType struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Group string `json:"group,omitempty"`
	Image string `json:"image,omitempty"`
}

// ComponentSpecifier names the type of a component being inserted.
type ComponentSpecifier struct {
	TypeID string `json:"typeId"`
}

type ClientInitializedEvent struct {
	ClientID      string   `json:"clientId"`
	ForwardedKeys []string `json:"forwardedKeys,omitempty"`
}

type ClientAcknowledgedEvent struct {
	Components     map[string]Component     `json:"components"`
	ComponentTypes map[string]ComponentType `json:"componentTypes"`
	Labels         map[string]string        `json:"labels"`
	Locale         string                   `json:"locale,omitempty"`
}

type ClientReadyEvent struct{}

type ComponentSelectedEvent struct {
	ComponentID string `json:"componentId"`
}

type ComponentDeselectedEvent struct {
	ComponentID string `json:"componentId"`
}

type ComponentHoveredInEvent struct {
	ComponentID string `json:"componentId"`
}

type ComponentHoveredOutEvent struct {
	ComponentID string `json:"componentId"`
}

type ComponentFocusedEvent struct {
	ComponentID string `json:"componentId"`
}

// ComponentDragStartedEvent starts a drag. For palette inserts
// ComponentID names the component type being dragged.
type ComponentDragStartedEvent struct {
	ComponentID string  `json:"componentId,omitempty"`
	X           float64 `json:"x,omitempty"`
	Y           float64 `json:"y,omitempty"`
}

type ComponentAddedToRegionEvent struct {
	ComponentID         string             `json:"componentId"`
	ComponentSpecifier  ComponentSpecifier `json:"componentSpecifier"`
	ComponentProperties map[string]any     `json:"componentProperties"`
	TargetComponentID   string             `json:"targetComponentId"`
	TargetRegionID      string             `json:"targetRegionId"`
	InsertComponentID   string             `json:"insertComponentId,omitempty"`
	InsertType          InsertType         `json:"insertType,omitempty"`
}

type ComponentMovedToRegionEvent struct {
	ComponentID       string     `json:"componentId"`
	TargetComponentID string     `json:"targetComponentId"`
	TargetRegionID    string     `json:"targetRegionId"`
	SourceRegionID    string     `json:"sourceRegionId"`
	SourceComponentID string     `json:"sourceComponentId"`
	InsertComponentID string     `json:"insertComponentId,omitempty"`
	InsertType        InsertType `json:"insertType,omitempty"`
}

type ComponentDeletedEvent struct {
	ComponentID       string `json:"componentId"`
	SourceComponentID string `json:"sourceComponentId"`
	SourceRegionID    string `json:"sourceRegionId"`
}

type ComponentPropertiesChangedEvent struct {
	ComponentID         string         `json:"componentId"`
	ComponentProperties map[string]any `json:"componentProperties"`
}

type ComponentsChangedEvent struct {
	Components map[string]Component `json:"components"`
}

// X and Y are nil when the pointer position is unknown; (0,0) is a
// real position.
type ClientWindowDragEnteredEvent struct {
	ComponentID string   `json:"componentId,omitempty"`
	X           *float64 `json:"x,omitempty"`
	Y           *float64 `json:"y,omitempty"`
}

type ClientWindowDragMovedEvent struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type ClientWindowDragExitedEvent struct{}

type ClientWindowDragDroppedEvent struct {
	X *float64 `json:"x,omitempty"`
	Y *float64 `json:"y,omitempty"`
}

type WindowScrollChangedEvent struct {
	ScrollX float64 `json:"scrollX,omitempty"`
	ScrollY float64 `json:"scrollY,omitempty"`
}

type PageSettingsChangedEvent struct {
	Locale   string         `json:"locale,omitempty"`
	Settings map[string]any `json:"settings,omitempty"`
}

type ErrorEvent struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Typed descriptors for every event in the vocabulary.
var (
	ClientInitialized          = NewEventDef[ClientInitializedEvent](EventClientInitialized)
	ClientAcknowledged         = NewEventDef[ClientAcknowledgedEvent](EventClientAcknowledged)
	ClientReady                = NewEventDef[ClientReadyEvent](EventClientReady)
	ComponentSelected          = NewEventDef[ComponentSelectedEvent](EventComponentSelected)
	ComponentDeselected        = NewEventDef[ComponentDeselectedEvent](EventComponentDeselected)
	ComponentHoveredIn         = NewEventDef[ComponentHoveredInEvent](EventComponentHoveredIn)
	ComponentHoveredOut        = NewEventDef[ComponentHoveredOutEvent](EventComponentHoveredOut)
	ComponentFocused           = NewEventDef[ComponentFocusedEvent](EventComponentFocused)
	ComponentDragStarted       = NewEventDef[ComponentDragStartedEvent](EventComponentDragStarted)
	ComponentAddedToRegion     = NewEventDef[ComponentAddedToRegionEvent](EventComponentAddedToRegion)
	ComponentMovedToRegion     = NewEventDef[ComponentMovedToRegionEvent](EventComponentMovedToRegion)
	ComponentDeleted           = NewEventDef[ComponentDeletedEvent](EventComponentDeleted)
	ComponentPropertiesChanged = NewEventDef[ComponentPropertiesChangedEvent](EventComponentPropertiesChanged)
	ComponentsChanged          = NewEventDef[ComponentsChangedEvent](EventComponentsChanged)
	ClientWindowDragEntered    = NewEventDef[ClientWindowDragEnteredEvent](EventClientWindowDragEntered)
	ClientWindowDragMoved      = NewEventDef[ClientWindowDragMovedEvent](EventClientWindowDragMoved)
	ClientWindowDragExited     = NewEventDef[ClientWindowDragExitedEvent](EventClientWindowDragExited)
	ClientWindowDragDropped    = NewEventDef[ClientWindowDragDroppedEvent](EventClientWindowDragDropped)
	WindowScrollChanged        = NewEventDef[WindowScrollChangedEvent](EventWindowScrollChanged)
	PageSettingsChanged        = NewEventDef[PageSettingsChangedEvent](EventPageSettingsChanged)
	Error                      = NewEventDef[ErrorEvent](EventError)
)
