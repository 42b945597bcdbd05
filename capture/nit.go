package capture

import (
	"encoding/binary"

	"dvbscan/dvbfile"
	"dvbscan/si"
)

// bcd decodes n packed BCD digits from b.
func bcd(b []byte, n int) uint32 {
	var v uint32
	for i := 0; i < n; i++ {
		d := b[i/2]
		if i%2 == 0 {
			d >>= 4
		}
		v = v*10 + uint32(d&0x0f)
	}
	return v
}

var (
	terrestrialBandwidth  = []uint32{8000000, 7000000, 6000000, 5000000}
	terrestrialModulation = []uint32{dvbfile.QPSK, dvbfile.QAM16, dvbfile.QAM64, dvbfile.QAMAuto}
	terrestrialCodeRate   = []uint32{dvbfile.FEC12, dvbfile.FEC23, dvbfile.FEC34, dvbfile.FEC56, dvbfile.FEC78}
	terrestrialGuard      = []uint32{dvbfile.Guard1_32, dvbfile.Guard1_16, dvbfile.Guard1_8, dvbfile.Guard1_4}
	terrestrialMode       = []uint32{dvbfile.TransmissionMode2K, dvbfile.TransmissionMode8K, dvbfile.TransmissionMode4K, dvbfile.TransmissionModeAuto}
	terrestrialHierarchy  = []uint32{dvbfile.HierarchyNone, dvbfile.Hierarchy1, dvbfile.Hierarchy2, dvbfile.Hierarchy4}

	cableModulation = []uint32{dvbfile.QAMAuto, dvbfile.QAM16, dvbfile.QAM32, dvbfile.QAM64, dvbfile.QAM128, dvbfile.QAM256}

	// FEC_inner field of the cable and satellite descriptors
	innerFEC = map[byte]uint32{
		1: dvbfile.FEC12, 2: dvbfile.FEC23, 3: dvbfile.FEC34, 4: dvbfile.FEC56, 5: dvbfile.FEC78,
		6: dvbfile.FEC89, 7: dvbfile.FEC35, 8: dvbfile.FEC45, 9: dvbfile.FEC910, 15: dvbfile.FECNone,
	}

	satellitePolarization = []uint32{dvbfile.PolarizationH, dvbfile.PolarizationV, dvbfile.PolarizationL, dvbfile.PolarizationR}
	satelliteRolloff      = []uint32{dvbfile.Rolloff35, dvbfile.Rolloff25, dvbfile.Rolloff20, dvbfile.RolloffAuto}
	satelliteModulation   = []uint32{dvbfile.QAMAuto, dvbfile.QPSK, dvbfile.PSK8, dvbfile.QAM16}
)

func pick(table []uint32, i int, fallback uint32) uint32 {
	if i < len(table) {
		return table[i]
	}
	return fallback
}

func fec(b byte) uint32 {
	if v, ok := innerFEC[b&0x0f]; ok {
		return v
	}
	return dvbfile.FECAuto
}

// parseDelivery decodes the body of a delivery system descriptor.
func parseDelivery(tag uint8, b []byte) *si.Delivery {
	switch tag {
	case si.TagTerrestrialDelivery:
		if len(b) < 7 {
			return nil
		}
		return &si.Delivery{
			System:       dvbfile.SysDVBT,
			Frequency:    binary.BigEndian.Uint32(b[0:4]) * 10,
			Bandwidth:    pick(terrestrialBandwidth, int(b[4]>>5), 0),
			Modulation:   pick(terrestrialModulation, int(b[5]>>6), dvbfile.QAMAuto),
			Hierarchy:    pick(terrestrialHierarchy, int(b[5]>>3&0x03), dvbfile.HierarchyAuto),
			FEC:          pick(terrestrialCodeRate, int(b[5]&0x07), dvbfile.FECAuto),
			CodeRateLP:   pick(terrestrialCodeRate, int(b[6]>>5), dvbfile.FECAuto),
			Guard:        pick(terrestrialGuard, int(b[6]>>3&0x03), dvbfile.GuardAuto),
			Transmission: pick(terrestrialMode, int(b[6]>>1&0x03), dvbfile.TransmissionModeAuto),
		}
	case si.TagCableDelivery:
		if len(b) < 11 {
			return nil
		}
		return &si.Delivery{
			System:     dvbfile.SysDVBCAnnexA,
			Frequency:  bcd(b[0:4], 8) * 100,
			Modulation: pick(cableModulation, int(b[6]), dvbfile.QAMAuto),
			SymbolRate: bcd(b[7:11], 7) * 100,
			FEC:        fec(b[10]),
		}
	case si.TagSatelliteDelivery:
		if len(b) < 11 {
			return nil
		}
		d := &si.Delivery{
			System:       dvbfile.SysDVBS,
			Frequency:    bcd(b[0:4], 8) * 10,
			Polarization: satellitePolarization[b[6]>>5&0x03],
			Rolloff:      dvbfile.Rolloff35,
			Modulation:   dvbfile.QPSK,
			SymbolRate:   bcd(b[7:11], 7) * 100,
			FEC:          fec(b[10]),
		}
		if b[6]&0x04 != 0 {
			d.System = dvbfile.SysDVBS2
			d.Rolloff = satelliteRolloff[b[6]>>3&0x03]
			d.Modulation = satelliteModulation[b[6]&0x03]
		}
		return d
	}
	return nil
}

// parseLCN decodes the logical channel descriptor (tag 0x83).
func parseLCN(b []byte) []si.LogicalChannel {
	var out []si.LogicalChannel
	for ; len(b) >= 4; b = b[4:] {
		out = append(out, si.LogicalChannel{
			ServiceID: binary.BigEndian.Uint16(b[0:2]),
			Visible:   b[2]&0x80 != 0,
			Number:    binary.BigEndian.Uint16(b[2:4]) & 0x03ff,
		})
	}
	return out
}

// parseTSInfo decodes the ISDB TS information descriptor (tag 0xcd).
func parseTSInfo(b []byte) *si.TSInfo {
	if len(b) < 2 {
		return nil
	}
	info := &si.TSInfo{RemoteControlKeyID: b[0]}
	nameLen := int(b[1] >> 2)
	loops := int(b[1] & 0x03)
	b = b[2:]
	if len(b) < nameLen {
		return info
	}
	info.Name = decodeText(b[:nameLen])
	b = b[nameLen:]
	for i := 0; i < loops && len(b) >= 2; i++ {
		count := int(b[1])
		b = b[2:]
		for j := 0; j < count && len(b) >= 2; j++ {
			info.ServiceIDs = append(info.ServiceIDs, binary.BigEndian.Uint16(b[0:2]))
			b = b[2:]
		}
	}
	return info
}
