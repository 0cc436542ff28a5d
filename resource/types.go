package resource

// Handle is an opaque reference to a resource in a table.
// Handle 0 is reserved and always invalid.
type Handle uint32

// Type tags the native kind of a stored value. Lookups compare IDs; the
// name is only used in error messages.
type Type struct {
	Name string
	ID   uint32
}

func (t Type) String() string {
	return t.Name
}

// Event types for resource lifecycle notifications.
type EventType uint8

const (
	EventCreated EventType = iota
	EventDropped
	EventMoved
)

func (e EventType) String() string {
	switch e {
	case EventCreated:
		return "created"
	case EventDropped:
		return "dropped"
	case EventMoved:
		return "moved"
	default:
		return "unknown"
	}
}

// Event represents a resource lifecycle event.
type Event struct {
	Value  any
	Type   Type
	Handle Handle
	Event  EventType
}

// Observer receives notifications about resource lifecycle events.
type Observer interface {
	OnResourceEvent(Event)
}

// Backend provides the underlying storage mechanism for resources.
type Backend interface {
	// Create stores a value and returns a handle.
	Create(typ Type, value any) (Handle, error)

	// Get retrieves a value and its type by handle.
	Get(handle Handle) (any, Type, bool)

	// Remove invalidates a handle and returns its value.
	Remove(handle Handle) (any, Type, bool)

	// Close invalidates every handle.
	Close() error
}

// Dropper is optionally implemented by resource values that need cleanup.
type Dropper interface {
	Drop()
}
