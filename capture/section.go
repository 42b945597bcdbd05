package capture

import (
	"github.com/Comcast/gots/packet"
)

// this object rebuilds MPEG sections from the packets of one PID
type SectionReconstructor struct {
	pid     int
	maxsize int
	data    []byte
	active  bool
}

// create new section rebuilder (max size is usually 4096 or 1024 for public syntax SI)
func NewSectionReconstructor(pid int, maxsectionsize int) *SectionReconstructor {
	msr := new(SectionReconstructor)

	msr.pid = pid
	msr.maxsize = maxsectionsize
	msr.data = make([]byte, 0, maxsectionsize)
	return msr
}

func (msr *SectionReconstructor) reset() {
	msr.data = msr.data[:0]
	msr.active = false
}

// append bytes to the pending section, return the section once complete
// together with whatever followed it in b
func (msr *SectionReconstructor) fill(b []byte) (section []byte, rest []byte) {
	msr.data = append(msr.data, b...)
	if len(msr.data) < 3 {
		return nil, nil
	}
	total := 3 + (int(msr.data[1]&0x0f)<<8 | int(msr.data[2]))
	if total > msr.maxsize {
		// broken length, wait for next unit start
		msr.reset()
		return nil, nil
	}
	if len(msr.data) < total {
		return nil, nil
	}
	section = make([]byte, total)
	copy(section, msr.data[:total])
	rest = append([]byte(nil), msr.data[total:]...)
	msr.reset()
	return section, rest
}

// feed one packet, get back the sections it completed (if any)
func (msr *SectionReconstructor) ParsePacket(pkt *packet.Packet) [][]byte {
	if pkt.PID() != msr.pid {
		return nil
	}
	payload, err := packet.Payload(pkt)
	if err != nil || len(payload) == 0 {
		return nil
	}

	var sections [][]byte
	if !packet.PayloadUnitStartIndicator(pkt) {
		if msr.active {
			if s, _ := msr.fill(payload); s != nil {
				sections = append(sections, s)
			}
		}
		return sections
	}

	pointer := int(payload[0])
	payload = payload[1:]
	if pointer > len(payload) {
		msr.reset()
		return nil
	}
	// tail of the section started in an earlier packet
	if msr.active {
		if s, _ := msr.fill(payload[:pointer]); s != nil {
			sections = append(sections, s)
		}
	}
	msr.reset()

	rest := payload[pointer:]
	for len(rest) > 0 && rest[0] != 0xff {
		msr.active = true
		s, r := msr.fill(rest)
		if s == nil {
			break
		}
		sections = append(sections, s)
		rest = r
	}
	return sections
}
