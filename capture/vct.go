package capture

import (
	"encoding/binary"
	"errors"

	"dvbscan/si"

	"github.com/Comcast/gots/packet"
)

// PSIP base PID carrying the ATSC virtual channel tables
const psipPID = 0x1ffb

const (
	tableTVCT = 0xc8
	tableCVCT = 0xc9
)

const vctMinSection = 14

var errShortSection = errors.New("truncated VCT section")

// decodeVCT collects the terrestrial or cable VCT found in a TS capture.
// It returns nil when the capture carries none.
func decodeVCT(ts []byte) (*si.VCT, error) {
	msr := NewSectionReconstructor(psipPID, 4096)

	var vct *si.VCT
	seen := map[byte]bool{}
	var pkt packet.Packet
	for off := 0; off+packet.PacketSize <= len(ts); off += packet.PacketSize {
		copy(pkt[:], ts[off:off+packet.PacketSize])
		if pkt[0] != 0x47 {
			continue
		}
		for _, section := range msr.ParsePacket(&pkt) {
			if section[0] != tableTVCT && section[0] != tableCVCT {
				continue
			}
			// header, channel count and CRC; shorter sections are corrupt
			if len(section) < vctMinSection {
				continue
			}
			number, last := section[6], section[7]
			if seen[number] {
				continue
			}
			seen[number] = true
			if vct == nil {
				vct = &si.VCT{TransportStreamID: binary.BigEndian.Uint16(section[3:5])}
			}
			channels, err := parseVCTSection(section)
			if err != nil {
				return nil, err
			}
			vct.Channels = append(vct.Channels, channels...)
			if len(seen) > int(last) {
				return vct, nil
			}
		}
	}
	return vct, nil
}

func parseVCTSection(section []byte) ([]si.VCTChannel, error) {
	if len(section) < vctMinSection {
		return nil, errShortSection
	}
	count := int(section[9])
	b := section[10 : len(section)-4] // strip CRC
	var out []si.VCTChannel
	for i := 0; i < count; i++ {
		if len(b) < 32 {
			return nil, errShortSection
		}
		ch := si.VCTChannel{
			ShortName:     decodeUTF16(b[0:14]),
			Major:         uint16(b[14]&0x0f)<<6 | uint16(b[15]>>2),
			Minor:         uint16(b[15]&0x03)<<8 | uint16(b[16]),
			ProgramNumber: binary.BigEndian.Uint16(b[24:26]),
			ServiceType:   b[27] & 0x3f,
		}
		next := 32 + int(binary.BigEndian.Uint16(b[30:32])&0x03ff)
		if len(b) < next {
			return nil, errShortSection
		}
		out = append(out, ch)
		b = b[next:]
	}
	return out, nil
}
