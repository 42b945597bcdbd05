// Package si turns decoded broadcast service information tables into
// channel entries.
package si

import "dvbscan/dvbfile"

// Descriptor tags this package looks at.
const (
	TagSatelliteDelivery   = 0x43
	TagCableDelivery       = 0x44
	TagService             = 0x48
	TagTerrestrialDelivery = 0x5a
	TagAC3                 = 0x6a
	TagEnhancedAC3         = 0x7a
	TagLogicalChannel      = 0x83
	TagTSInformation       = 0xcd
)

// Descriptor is a decoded descriptor. Only the field matching Tag is set,
// and only for the tags listed above.
type Descriptor struct {
	Tag             uint8
	Service         *ServiceInfo
	LogicalChannels []LogicalChannel
	TSInfo          *TSInfo
	Delivery        *Delivery
}

type ServiceInfo struct {
	Type     uint8
	Provider string
	Name     string
}

type LogicalChannel struct {
	ServiceID uint16
	Visible   bool
	Number    uint16
}

// TSInfo is the ISDB transport stream information descriptor.
type TSInfo struct {
	RemoteControlKeyID uint8
	Name               string
	ServiceIDs         []uint16
}

// Delivery holds a delivery system descriptor already converted to
// property values. Frequency is in Hz, or kHz for satellite.
type Delivery struct {
	System       dvbfile.DeliverySystem
	Frequency    uint32
	SymbolRate   uint32
	Bandwidth    uint32
	Modulation   uint32
	FEC          uint32
	CodeRateLP   uint32
	Guard        uint32
	Transmission uint32
	Hierarchy    uint32
	Polarization uint32
	Rolloff      uint32
}

type Stream struct {
	Type        uint8
	PID         uint16
	Descriptors []Descriptor
}

type PMT struct {
	ProgramNumber uint16
	PCRPID        uint16
	Streams       []Stream
}

// Program is one PAT entry and the PMT it points at, if one was captured.
type Program struct {
	ServiceID uint16
	PMTPID    uint16
	PMT       *PMT
}

type SDTService struct {
	ServiceID   uint16
	Descriptors []Descriptor
}

type SDT struct {
	TransportStreamID uint16
	OriginalNetworkID uint16
	Services          []SDTService
}

type NITTransport struct {
	TransportStreamID uint16
	OriginalNetworkID uint16
	Descriptors       []Descriptor
}

type NIT struct {
	NetworkID   uint16
	Descriptors []Descriptor
	Transports  []NITTransport
}

// VCTChannel is one ATSC virtual channel table record.
type VCTChannel struct {
	ShortName     string
	Major         uint16
	Minor         uint16
	ProgramNumber uint16
	ServiceType   uint8
}

type VCT struct {
	TransportStreamID uint16
	Channels          []VCTChannel
}

// ServiceSet is everything captured from one transponder. Any table may
// be missing.
type ServiceSet struct {
	TransportStreamID uint16
	Programs          []Program
	SDT               *SDT
	NIT               *NIT
	VCT               *VCT
}

// PMT returns the PMT of the program numbered serviceID.
func (s *ServiceSet) PMT(serviceID uint16) *PMT {
	for _, p := range s.Programs {
		if p.ServiceID == serviceID {
			return p.PMT
		}
	}
	return nil
}

// Find returns the first descriptor with the given tag.
func Find(ds []Descriptor, tag uint8) *Descriptor {
	for i := range ds {
		if ds[i].Tag == tag {
			return &ds[i]
		}
	}
	return nil
}

// FindAll returns every descriptor with the given tag, in order.
func FindAll(ds []Descriptor, tag uint8) []Descriptor {
	var out []Descriptor
	for _, d := range ds {
		if d.Tag == tag {
			out = append(out, d)
		}
	}
	return out
}
