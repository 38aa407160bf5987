package resource

import (
	"errors"
	"sync"
)

var (
	ErrClosed = errors.New("resource table closed")
	ErrFull   = errors.New("resource table full")
)

type slot struct {
	value  any
	typeID TypeID
	gen    uint8
	valid  bool
}

// Table maps handles to values with type tags and slot reuse.
type Table struct {
	slots     []slot
	freeList  []uint32
	observers []Observer
	live      int
	closed    bool
	mu        sync.Mutex
	obsMu     sync.RWMutex
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{
		slots:    make([]slot, 0, 16),
		freeList: make([]uint32, 0, 8),
	}
}

// Insert stores value and returns its handle.
func (t *Table) Insert(typeID TypeID, value any) (Handle, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return 0, ErrClosed
	}

	var idx uint32
	if n := len(t.freeList); n > 0 {
		idx = t.freeList[n-1]
		t.freeList = t.freeList[:n-1]
	} else {
		if len(t.slots) >= maxSlots {
			t.mu.Unlock()
			return 0, ErrFull
		}
		idx = uint32(len(t.slots))
		t.slots = append(t.slots, slot{})
	}

	s := &t.slots[idx]
	s.value = value
	s.typeID = typeID
	s.valid = true
	h := makeHandle(idx, s.gen)
	t.live++
	t.mu.Unlock()

	t.notify(Event{Type: EventCreated, Handle: h, TypeID: typeID, Value: value})
	return h, nil
}

// lookup returns the live slot for h. Callers hold t.mu.
func (t *Table) lookup(h Handle) *slot {
	idx, ok := h.slot()
	if !ok || int(idx) >= len(t.slots) {
		return nil
	}
	s := &t.slots[idx]
	if !s.valid || s.gen != h.generation() {
		return nil
	}
	return s
}

// Get returns the value of h.
func (t *Table) Get(h Handle) (any, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.lookup(h)
	if s == nil {
		return nil, false
	}
	return s.value, true
}

// GetTyped returns the value of h only if it was inserted with typeID.
func (t *Table) GetTyped(h Handle, typeID TypeID) (any, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.lookup(h)
	if s == nil || s.typeID != typeID {
		return nil, false
	}
	return s.value, true
}

// TypeOf returns the type tag of h.
func (t *Table) TypeOf(h Handle) (TypeID, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.lookup(h)
	if s == nil {
		return 0, false
	}
	return s.typeID, true
}

// Remove drops h, calling Drop on the value if it implements Dropper.
func (t *Table) Remove(h Handle) (any, bool) {
	return t.remove(h, func(*slot) bool { return true })
}

// RemoveTyped is Remove restricted to values inserted with typeID.
func (t *Table) RemoveTyped(h Handle, typeID TypeID) (any, bool) {
	return t.remove(h, func(s *slot) bool { return s.typeID == typeID })
}

func (t *Table) remove(h Handle, match func(*slot) bool) (any, bool) {
	t.mu.Lock()
	s := t.lookup(h)
	if s == nil || !match(s) {
		t.mu.Unlock()
		return nil, false
	}
	value, typeID := s.value, s.typeID
	idx, _ := h.slot()
	s.value = nil
	s.valid = false
	s.gen++
	t.freeList = append(t.freeList, idx)
	t.live--
	t.mu.Unlock()

	if d, ok := value.(Dropper); ok {
		d.Drop()
	}
	t.notify(Event{Type: EventDropped, Handle: h, TypeID: typeID, Value: value})
	return value, true
}

// Len returns the number of live handles.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.live
}

// Each calls fn for every live handle in slot order until fn returns false.
// fn may not modify the table.
func (t *Table) Each(fn func(Handle, TypeID, any) bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.slots {
		s := &t.slots[i]
		if s.valid && !fn(makeHandle(uint32(i), s.gen), s.typeID, s.value) {
			return
		}
	}
}

// Clear removes every live handle, newest first.
func (t *Table) Clear() {
	var handles []Handle
	t.Each(func(h Handle, _ TypeID, _ any) bool {
		handles = append(handles, h)
		return true
	})
	for i := len(handles) - 1; i >= 0; i-- {
		t.Remove(handles[i])
	}
}

// Close clears the table and rejects further inserts. Closing twice is a
// no-op.
func (t *Table) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	t.Clear()
	return nil
}

// Subscribe adds an observer.
func (t *Table) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// Unsubscribe removes an observer added with Subscribe.
func (t *Table) Unsubscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	for i, obs := range t.observers {
		if obs == o {
			t.observers = append(t.observers[:i], t.observers[i+1:]...)
			return
		}
	}
}

func (t *Table) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnResourceEvent(e)
	}
}
