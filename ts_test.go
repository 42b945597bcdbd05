package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// small transport stream builder for the tuner tests

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

func section(tableID byte, flags byte, idExt uint16, body []byte) []byte {
	length := 5 + len(body) + 4
	s := []byte{
		tableID, flags | byte(length>>8)&0x0f, byte(length),
		byte(idExt >> 8), byte(idExt), 0xc1, 0x00, 0x00,
	}
	s = append(s, body...)
	crc := crc32MPEG(s)
	return append(s, byte(crc>>24), byte(crc>>16), byte(crc>>8), byte(crc))
}

// one section per packet is enough here
func packet188(pid uint16, s []byte) []byte {
	pkt := make([]byte, 188)
	for i := range pkt {
		pkt[i] = 0xff
	}
	pkt[0] = 0x47
	pkt[1] = 0x40 | byte(pid>>8)&0x1f
	pkt[2] = byte(pid)
	pkt[3] = 0x10
	pkt[4] = 0x00
	copy(pkt[5:], s)
	return pkt
}

// PAT, PMT and SDT of a single service
func serviceCapture(tsid, serviceID uint16, name string) []byte {
	pat := section(0x00, 0xb0, tsid, []byte{
		0x00, 0x00, 0xe0, 0x10,
		byte(serviceID >> 8), byte(serviceID), 0xe1, 0x00,
	})
	pmt := section(0x02, 0xb0, serviceID, []byte{
		0xe2, 0x00, 0xf0, 0x00,
		0x02, 0xe2, 0x00, 0xf0, 0x00,
		0x04, 0xe2, 0x01, 0xf0, 0x00,
	})
	desc := []byte{0x48, byte(3 + len(name)), 0x01, 0x00, byte(len(name))}
	desc = append(desc, name...)
	sdtBody := []byte{0x20, 0x00, 0xff,
		byte(serviceID >> 8), byte(serviceID), 0xfc,
		0x80 | byte(len(desc)>>8), byte(len(desc))}
	sdt := section(0x42, 0xf0, tsid, append(sdtBody, desc...))

	var ts []byte
	ts = append(ts, packet188(0x0000, pat)...)
	ts = append(ts, packet188(0x0100, pmt)...)
	ts = append(ts, packet188(0x0011, sdt)...)
	return ts
}

func writeCapture(t *testing.T, name string, ts []byte) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, ts, 0644))
	return path
}
