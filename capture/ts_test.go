package capture

// helpers building transport stream captures for the tests

func crc32MPEG(b []byte) uint32 {
	crc := uint32(0xffffffff)
	for _, v := range b {
		crc ^= uint32(v) << 24
		for i := 0; i < 8; i++ {
			if crc&0x80000000 != 0 {
				crc = crc<<1 ^ 0x04c11db7
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// section wraps body in a long form section header and CRC.
func section(tableID byte, flags byte, idExt uint16, sectionNumber, last byte, body []byte) []byte {
	length := 5 + len(body) + 4
	s := []byte{
		tableID, flags | byte(length>>8)&0x0f, byte(length),
		byte(idExt >> 8), byte(idExt), 0xc1, sectionNumber, last,
	}
	s = append(s, body...)
	crc := crc32MPEG(s)
	return append(s, byte(crc>>24), byte(crc>>16), byte(crc>>8), byte(crc))
}

// packetize splits sections into 188 byte packets of one PID.
func packetize(pid uint16, sections ...[]byte) []byte {
	var out []byte
	cc := byte(0)
	for _, s := range sections {
		data := append([]byte{0x00}, s...)
		first := true
		for len(data) > 0 {
			pkt := make([]byte, 188)
			for i := range pkt {
				pkt[i] = 0xff
			}
			pkt[0] = 0x47
			pkt[1] = byte(pid>>8) & 0x1f
			if first {
				pkt[1] |= 0x40
			}
			pkt[2] = byte(pid)
			pkt[3] = 0x10 | cc&0x0f
			cc++
			n := copy(pkt[4:], data)
			data = data[n:]
			first = false
			out = append(out, pkt...)
		}
	}
	return out
}

func patSection(tsid uint16, programs map[uint16]uint16) []byte {
	var body []byte
	for _, number := range []uint16{0, 16, 17, 18} {
		pid, ok := programs[number]
		if !ok {
			continue
		}
		body = append(body, byte(number>>8), byte(number), 0xe0|byte(pid>>8), byte(pid))
	}
	return section(0x00, 0xb0, tsid, 0, 0, body)
}

type testStream struct {
	streamType  byte
	pid         uint16
	descriptors []byte
}

func pmtSection(program, pcrPID uint16, streams ...testStream) []byte {
	body := []byte{0xe0 | byte(pcrPID>>8), byte(pcrPID), 0xf0, 0x00}
	for _, s := range streams {
		body = append(body, s.streamType, 0xe0|byte(s.pid>>8), byte(s.pid),
			0xf0|byte(len(s.descriptors)>>8), byte(len(s.descriptors)))
		body = append(body, s.descriptors...)
	}
	return section(0x02, 0xb0, program, 0, 0, body)
}

func serviceDescriptor(serviceType byte, provider, name string) []byte {
	d := []byte{0x48, byte(3 + len(provider) + len(name)), serviceType, byte(len(provider))}
	d = append(d, provider...)
	d = append(d, byte(len(name)))
	return append(d, name...)
}

func sdtSection(tsid, onid, serviceID uint16, descriptors []byte) []byte {
	body := []byte{byte(onid >> 8), byte(onid), 0xff,
		byte(serviceID >> 8), byte(serviceID), 0xfc,
		0x80 | byte(len(descriptors)>>8), byte(len(descriptors))}
	body = append(body, descriptors...)
	return section(0x42, 0xf0, tsid, 0, 0, body)
}

func nitSection(networkID, tsid, onid uint16, descriptors []byte) []byte {
	loop := []byte{byte(tsid >> 8), byte(tsid), byte(onid >> 8), byte(onid),
		0xf0 | byte(len(descriptors)>>8), byte(len(descriptors))}
	loop = append(loop, descriptors...)
	body := []byte{0xf0, 0x00, 0xf0 | byte(len(loop)>>8), byte(len(loop))}
	body = append(body, loop...)
	return section(0x40, 0xf0, networkID, 0, 0, body)
}

type testVirtualChannel struct {
	name         string
	major, minor uint16
	program      uint16
}

func vctSection(tsid uint16, number, last byte, channels ...testVirtualChannel) []byte {
	body := []byte{0x00, byte(len(channels))}
	for _, ch := range channels {
		name := make([]byte, 14)
		for i, r := range ch.name {
			if i >= 7 {
				break
			}
			name[2*i+1] = byte(r)
		}
		body = append(body, name...)
		body = append(body,
			0xf0|byte(ch.major>>6), byte(ch.major<<2)|byte(ch.minor>>8)&0x03, byte(ch.minor),
			0x04, // modulation mode
			0, 0, 0, 0, // carrier frequency
			byte(tsid>>8), byte(tsid),
			byte(ch.program>>8), byte(ch.program),
			0x0d, 0xc2, // flags, service type 2
			0x00, 0x01, // source id
			0xfc, 0x00, // no descriptors
		)
	}
	body = append(body, 0xfc, 0x00)
	return section(0xc8, 0xf0, tsid, number, last, body)
}
