package si

import "fmt"

var serviceTypeNames = map[uint8]string{
	0x00: "reserved",
	0x01: "digital television service",
	0x02: "digital radio sound service",
	0x03: "Teletext service",
	0x04: "NVOD reference service",
	0x05: "NVOD time-shifted service",
	0x06: "mosaic service",
	0x07: "FM radio service",
	0x08: "DVB SRM service",
	0x09: "reserved",
	0x0a: "advanced codec digital radio sound service",
	0x0b: "H.264/AVC mosaic service",
	0x0c: "data broadcast service",
	0x0d: "reserved for Common Interface Usage",
	0x0e: "RCS Map",
	0x0f: "RCS FLS",
	0x10: "DVB MHP service",
	0x11: "MPEG-2 HD digital television service",
	0x16: "H.264/AVC SD digital television service",
	0x17: "H.264/AVC SD NVOD time-shifted service",
	0x18: "H.264/AVC SD NVOD reference service",
	0x19: "H.264/AVC HD digital television service",
	0x1a: "H.264/AVC HD NVOD time-shifted service",
	0x1b: "H.264/AVC HD NVOD reference service",
	0x1c: "H.264/AVC frame compatible plano-stereoscopic HD digital television service",
	0x1d: "H.264/AVC frame compatible plano-stereoscopic HD NVOD time-shifted service",
	0x1e: "H.264/AVC frame compatible plano-stereoscopic HD NVOD reference service",
	0x1f: "HEVC digital television service",
	0xff: "reserved",
}

// ServiceTypeName returns the EN 300 468 name of an SDT service type.
func ServiceTypeName(t uint8) string {
	if name, ok := serviceTypeNames[t]; ok {
		return name
	}
	if t >= 0x80 && t <= 0xfe {
		return "user defined"
	}
	return fmt.Sprintf("reserved (0x%02x)", t)
}
