package resource

// Handle is an opaque reference to a value in a Table.
// Handle 0 is reserved and always invalid.
//
// The low 24 bits select a slot and the high 8 bits carry the slot's
// generation, so a released handle stays invalid after its slot is reused.
type Handle uint32

const (
	slotBits = 24
	slotMask = 1<<slotBits - 1
	maxSlots = slotMask
)

func makeHandle(slot uint32, gen uint8) Handle {
	return Handle(uint32(gen)<<slotBits | (slot + 1))
}

func (h Handle) slot() (uint32, bool) {
	s := uint32(h) & slotMask
	if s == 0 {
		return 0, false
	}
	return s - 1, true
}

func (h Handle) generation() uint8 {
	return uint8(uint32(h) >> slotBits)
}

// TypeID tags the kind of value a handle refers to.
type TypeID uint32

// EventType is a handle lifecycle notification.
type EventType uint8

const (
	EventCreated EventType = iota
	EventDropped
)

func (e EventType) String() string {
	switch e {
	case EventCreated:
		return "created"
	case EventDropped:
		return "dropped"
	}
	return "unknown"
}

// Event describes one lifecycle change.
type Event struct {
	Value  any
	Handle Handle
	TypeID TypeID
	Type   EventType
}

// Observer receives lifecycle events. Events are delivered synchronously
// after the table lock is released.
type Observer interface {
	OnResourceEvent(Event)
}

// Dropper is implemented by values that release something when their
// handle is removed or the table is closed.
type Dropper interface {
	Drop()
}
