package dvbfile

import "fmt"

// PropValue is one tuning parameter of an entry.
type PropValue struct {
	ID    Property
	Value uint32
}

// ElementaryPID is a PID that is neither video nor audio, with its PMT stream type.
type ElementaryPID struct {
	Type uint8
	PID  uint16
}

// Entry is one channel: the tuning properties of its transponder plus
// the identifiers of the service inside it.
type Entry struct {
	props []PropValue

	Channel    string
	VChannel   string
	ServiceID  uint16
	SatNumber  int
	FreqBPF    uint32
	DiseqcWait uint32
	LNB        string

	VideoPIDs []uint16
	AudioPIDs []uint16
	OtherPIDs []ElementaryPID
}

// NewEntry returns an empty entry with no satellite selected.
func NewEntry() *Entry {
	return &Entry{SatNumber: -1}
}

// Store sets id to value, updating it in place when already present.
func (e *Entry) Store(id Property, value uint32) error {
	for i := range e.props {
		if e.props[i].ID == id {
			e.props[i].Value = value
			return nil
		}
	}
	if len(e.props) >= MaxProperties {
		return &Error{Kind: ErrCapacityExceeded, Msg: fmt.Sprintf("can't add property %s", id)}
	}
	e.props = append(e.props, PropValue{ID: id, Value: value})
	return nil
}

func (e *Entry) Retrieve(id Property) (uint32, bool) {
	for _, p := range e.props {
		if p.ID == id {
			return p.Value, true
		}
	}
	return 0, false
}

// Props returns a copy of the properties in insertion order.
func (e *Entry) Props() []PropValue {
	out := make([]PropValue, len(e.props))
	copy(out, e.props)
	return out
}

// DeliverySystem returns the stored delivery system, SysUndefined if none.
func (e *Entry) DeliverySystem() DeliverySystem {
	v, _ := e.Retrieve(PropDeliverySystem)
	return DeliverySystem(v)
}

// Normalize settles ATSC vs DVB-C Annex B, which share a layout, from the
// modulation: VSB means ATSC, anything else means Annex B.
func (e *Entry) Normalize() {
	if sys, ok := e.normalizedSystem(); ok {
		// the property already exists so this is an in-place update
		_ = e.Store(PropDeliverySystem, uint32(sys))
	}
}

// normalizedSystem is the delivery system Normalize would store, without
// touching e.
func (e *Entry) normalizedSystem() (DeliverySystem, bool) {
	sys, ok := e.Retrieve(PropDeliverySystem)
	if !ok {
		return SysUndefined, false
	}
	if DeliverySystem(sys) != SysATSC && DeliverySystem(sys) != SysDVBCAnnexB {
		return DeliverySystem(sys), true
	}
	mod, ok := e.Retrieve(PropModulation)
	if !ok {
		mod = VSB8
	}
	if mod == VSB8 || mod == VSB16 {
		return SysATSC, true
	}
	return SysDVBCAnnexB, true
}

// File is an ordered list of channel entries.
type File struct {
	Entries []*Entry
}

func (f *File) Append(e *Entry) {
	f.Entries = append(f.Entries, e)
}

func (f *File) Len() int { return len(f.Entries) }
