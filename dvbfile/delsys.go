package dvbfile

import "strings"

// DeliverySystem is a broadcast transmission standard, numbered as the kernel does.
type DeliverySystem uint32

const (
	SysUndefined DeliverySystem = iota
	SysDVBCAnnexA
	SysDVBCAnnexB
	SysDVBT
	SysDSS
	SysDVBS
	SysDVBS2
	SysDVBH
	SysISDBT
	SysISDBS
	SysISDBC
	SysATSC
	SysATSCMH
	SysDTMB
	SysCMMB
	SysDAB
	SysDVBT2
	SysTurbo
	SysDVBCAnnexC
)

var deliverySystemNames = [...]string{
	SysUndefined:  "UNDEFINED",
	SysDVBCAnnexA: "DVBC/ANNEX_A",
	SysDVBCAnnexB: "DVBC/ANNEX_B",
	SysDVBT:       "DVBT",
	SysDSS:        "DSS",
	SysDVBS:       "DVBS",
	SysDVBS2:      "DVBS2",
	SysDVBH:       "DVBH",
	SysISDBT:      "ISDBT",
	SysISDBS:      "ISDBS",
	SysISDBC:      "ISDBC",
	SysATSC:       "ATSC",
	SysATSCMH:     "ATSCMH",
	SysDTMB:       "DTMB",
	SysCMMB:       "CMMB",
	SysDAB:        "DAB",
	SysDVBT2:      "DVBT2",
	SysTurbo:      "TURBO",
	SysDVBCAnnexC: "DVBC/ANNEX_C",
}

// names people commonly write instead of the canonical ones
var deliverySystemAliases = map[string]DeliverySystem{
	"DVB-C":   SysDVBCAnnexA,
	"DVB-H":   SysDVBH,
	"DVB-S":   SysDVBS,
	"DVB-S2":  SysDVBS2,
	"DVB-T":   SysDVBT,
	"DVB-T2":  SysDVBT2,
	"ISDB-C":  SysISDBC,
	"ISDB-S":  SysISDBS,
	"ISDB-T":  SysISDBT,
	"ATSC-MH": SysATSCMH,
	"DMB-TH":  SysDTMB,
}

func (s DeliverySystem) String() string {
	if int(s) < len(deliverySystemNames) {
		return deliverySystemNames[s]
	}
	return "UNKNOWN"
}

// CompatSystem maps a delivery system onto the one whose parameter layout it
// shares in the positional formats. SysUndefined means there is none.
func CompatSystem(sys DeliverySystem) DeliverySystem {
	switch sys {
	case SysDVBS, SysDVBS2, SysTurbo, SysISDBS, SysDSS:
		return SysDVBS
	case SysATSC, SysDVBCAnnexB:
		return SysATSC
	case SysDVBCAnnexA, SysDVBCAnnexC:
		return SysDVBCAnnexA
	case SysCMMB, SysISDBT, SysDVBT, SysDVBT2:
		return SysDVBT
	}
	return SysUndefined
}

// ParseDeliverySystem accepts both the canonical names and the usual
// dashed spellings ("DVB-T2", "ISDB-T" ...).
func ParseDeliverySystem(name string) (DeliverySystem, bool) {
	name = strings.TrimSpace(name)
	if i := indexFold(deliverySystemNames[:], name); i >= 0 {
		return DeliverySystem(i), true
	}
	for alias, sys := range deliverySystemAliases {
		if strings.EqualFold(alias, name) {
			return sys, true
		}
	}
	return SysUndefined, false
}
