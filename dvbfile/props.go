package dvbfile

import (
	"fmt"
	"strings"
)

// Property identifies a tuning parameter. Ids below UserCommandStart follow the
// kernel DTV_* numbering, ids from UserCommandStart on are application extensions.
type Property uint32

// MaxProperties bounds the number of properties an entry may hold.
const MaxProperties = 70

const (
	PropUndefined Property = iota
	PropTune
	PropClear
	PropFrequency
	PropModulation
	PropBandwidthHz
	PropInversion
	PropDiseqcMaster
	PropSymbolRate
	PropInnerFEC
	PropVoltage
	PropTone
	PropPilot
	PropRolloff
	PropDiseqcSlaveReply
	PropFECapabilityCount
	PropFECapability
	PropDeliverySystem
	PropISDBTPartialReception
	PropISDBTSoundBroadcasting
	PropISDBTSBSubchannelID
	PropISDBTSBSegmentIdx
	PropISDBTSBSegmentCount
	PropISDBTLayerAFEC
	PropISDBTLayerAModulation
	PropISDBTLayerASegmentCount
	PropISDBTLayerATimeInterleaving
	PropISDBTLayerBFEC
	PropISDBTLayerBModulation
	PropISDBTLayerBSegmentCount
	PropISDBTLayerBTimeInterleaving
	PropISDBTLayerCFEC
	PropISDBTLayerCModulation
	PropISDBTLayerCSegmentCount
	PropISDBTLayerCTimeInterleaving
	PropAPIVersion
	PropCodeRateHP
	PropCodeRateLP
	PropGuardInterval
	PropTransmissionMode
	PropHierarchy
	PropISDBTLayerEnabled
	PropStreamID
	PropDVBT2PLPIDLegacy
	PropEnumDelsys
)

// UserCommandStart is the first application extension property id.
const UserCommandStart Property = 256

const (
	PropPolarization Property = UserCommandStart + iota
	PropVideoPID
	PropAudioPID
	PropServiceID
	PropChannelName
	PropVChannel
	PropSatNumber
	PropDiseqcWait
	PropLNB
	PropFreqBPF
)

var propertyNames = [...]string{
	PropUndefined:                   "UNDEFINED",
	PropTune:                        "TUNE",
	PropClear:                       "CLEAR",
	PropFrequency:                   "FREQUENCY",
	PropModulation:                  "MODULATION",
	PropBandwidthHz:                 "BANDWIDTH_HZ",
	PropInversion:                   "INVERSION",
	PropDiseqcMaster:                "DISEQC_MASTER",
	PropSymbolRate:                  "SYMBOL_RATE",
	PropInnerFEC:                    "INNER_FEC",
	PropVoltage:                     "VOLTAGE",
	PropTone:                        "TONE",
	PropPilot:                       "PILOT",
	PropRolloff:                     "ROLLOFF",
	PropDiseqcSlaveReply:            "DISEQC_SLAVE_REPLY",
	PropFECapabilityCount:           "FE_CAPABILITY_COUNT",
	PropFECapability:                "FE_CAPABILITY",
	PropDeliverySystem:              "DELIVERY_SYSTEM",
	PropISDBTPartialReception:       "ISDBT_PARTIAL_RECEPTION",
	PropISDBTSoundBroadcasting:      "ISDBT_SOUND_BROADCASTING",
	PropISDBTSBSubchannelID:         "ISDBT_SB_SUBCHANNEL_ID",
	PropISDBTSBSegmentIdx:           "ISDBT_SB_SEGMENT_IDX",
	PropISDBTSBSegmentCount:         "ISDBT_SB_SEGMENT_COUNT",
	PropISDBTLayerAFEC:              "ISDBT_LAYERA_FEC",
	PropISDBTLayerAModulation:       "ISDBT_LAYERA_MODULATION",
	PropISDBTLayerASegmentCount:     "ISDBT_LAYERA_SEGMENT_COUNT",
	PropISDBTLayerATimeInterleaving: "ISDBT_LAYERA_TIME_INTERLEAVING",
	PropISDBTLayerBFEC:              "ISDBT_LAYERB_FEC",
	PropISDBTLayerBModulation:       "ISDBT_LAYERB_MODULATION",
	PropISDBTLayerBSegmentCount:     "ISDBT_LAYERB_SEGMENT_COUNT",
	PropISDBTLayerBTimeInterleaving: "ISDBT_LAYERB_TIME_INTERLEAVING",
	PropISDBTLayerCFEC:              "ISDBT_LAYERC_FEC",
	PropISDBTLayerCModulation:       "ISDBT_LAYERC_MODULATION",
	PropISDBTLayerCSegmentCount:     "ISDBT_LAYERC_SEGMENT_COUNT",
	PropISDBTLayerCTimeInterleaving: "ISDBT_LAYERC_TIME_INTERLEAVING",
	PropAPIVersion:                  "API_VERSION",
	PropCodeRateHP:                  "CODE_RATE_HP",
	PropCodeRateLP:                  "CODE_RATE_LP",
	PropGuardInterval:               "GUARD_INTERVAL",
	PropTransmissionMode:            "TRANSMISSION_MODE",
	PropHierarchy:                   "HIERARCHY",
	PropISDBTLayerEnabled:           "ISDBT_LAYER_ENABLED",
	PropStreamID:                    "STREAM_ID",
	PropDVBT2PLPIDLegacy:            "DVBT2_PLP_ID_LEGACY",
	PropEnumDelsys:                  "ENUM_DELSYS",
}

var userPropertyNames = [...]string{
	PropPolarization - UserCommandStart: "POLARIZATION",
	PropVideoPID - UserCommandStart:     "VIDEO_PID",
	PropAudioPID - UserCommandStart:     "AUDIO_PID",
	PropServiceID - UserCommandStart:    "SERVICE_ID",
	PropChannelName - UserCommandStart:  "CH_NAME",
	PropVChannel - UserCommandStart:     "VCHANNEL",
	PropSatNumber - UserCommandStart:    "SAT_NUMBER",
	PropDiseqcWait - UserCommandStart:   "DISEQC_WAIT",
	PropLNB - UserCommandStart:          "LNB",
	PropFreqBPF - UserCommandStart:      "FREQ_BPF",
}

// Modulation values.
const (
	QPSK uint32 = iota
	QAM16
	QAM32
	QAM64
	QAM128
	QAM256
	QAMAuto
	VSB8
	VSB16
	PSK8
	APSK16
	APSK32
	DQPSK
	QAM4NR
)

// Inner FEC values.
const (
	FECNone uint32 = iota
	FEC12
	FEC23
	FEC34
	FEC45
	FEC56
	FEC67
	FEC78
	FEC89
	FECAuto
	FEC35
	FEC910
	FEC25
)

const (
	InversionOff uint32 = iota
	InversionOn
	InversionAuto
)

const (
	TransmissionMode2K uint32 = iota
	TransmissionMode8K
	TransmissionModeAuto
	TransmissionMode4K
	TransmissionMode1K
	TransmissionMode16K
	TransmissionMode32K
)

const (
	Guard1_32 uint32 = iota
	Guard1_16
	Guard1_8
	Guard1_4
	GuardAuto
	Guard1_128
	Guard19_128
	Guard19_256
)

const (
	HierarchyNone uint32 = iota
	Hierarchy1
	Hierarchy2
	Hierarchy4
	HierarchyAuto
)

const (
	Rolloff35 uint32 = iota
	Rolloff20
	Rolloff25
	RolloffAuto
)

const (
	PilotOn uint32 = iota
	PilotOff
	PilotAuto
)

const (
	PolarizationOff uint32 = iota
	PolarizationH
	PolarizationV
	PolarizationL
	PolarizationR
)

var modulationNames = []string{
	"QPSK", "QAM/16", "QAM/32", "QAM/64", "QAM/128", "QAM/256", "QAM/AUTO",
	"VSB/8", "VSB/16", "PSK/8", "APSK/16", "APSK/32", "DQPSK", "QAM/4_NR",
}

var fecNames = []string{
	"NONE", "1/2", "2/3", "3/4", "4/5", "5/6", "6/7", "7/8", "8/9", "AUTO", "3/5", "9/10", "2/5",
}

var inversionNames = []string{"OFF", "ON", "AUTO"}

var transmissionModeNames = []string{"2K", "8K", "AUTO", "4K", "1K", "16K", "32K"}

var guardIntervalNames = []string{"1/32", "1/16", "1/8", "1/4", "AUTO", "1/128", "19/128", "19/256"}

var hierarchyNames = []string{"NONE", "1", "2", "4", "AUTO"}

var rolloffNames = []string{"35", "20", "25", "AUTO"}

var pilotNames = []string{"ON", "OFF", "AUTO"}

var polarizationNames = []string{"OFF", "HORIZONTAL", "VERTICAL", "LEFT", "RIGHT"}

// BandwidthHz maps the legacy bandwidth enumeration to Hz. AUTO is 0.
var BandwidthHz = []uint32{8000000, 7000000, 6000000, 0, 5000000, 10000000, 1712000}

var attrNames = map[Property][]string{
	PropModulation:            modulationNames,
	PropInnerFEC:              fecNames,
	PropCodeRateHP:            fecNames,
	PropCodeRateLP:            fecNames,
	PropInversion:             inversionNames,
	PropTransmissionMode:      transmissionModeNames,
	PropGuardInterval:         guardIntervalNames,
	PropHierarchy:             hierarchyNames,
	PropRolloff:               rolloffNames,
	PropPilot:                 pilotNames,
	PropDeliverySystem:        deliverySystemNames[:],
	PropISDBTLayerAFEC:        fecNames,
	PropISDBTLayerBFEC:        fecNames,
	PropISDBTLayerCFEC:        fecNames,
	PropISDBTLayerAModulation: modulationNames,
	PropISDBTLayerBModulation: modulationNames,
	PropISDBTLayerCModulation: modulationNames,
	PropPolarization:          polarizationNames,
}

// String returns the name used for id in the key-value format.
func (id Property) String() string {
	if id < UserCommandStart {
		if int(id) < len(propertyNames) && propertyNames[id] != "" {
			return propertyNames[id]
		}
	} else if i := int(id - UserCommandStart); i < len(userPropertyNames) {
		return userPropertyNames[i]
	}
	return fmt.Sprintf("PROPERTY_%d", uint32(id))
}

// AttrNames returns the display tokens of an enumerated property, or nil.
func AttrNames(id Property) []string {
	return attrNames[id]
}

// lookupProperty finds a standard (non extension) property by name.
func lookupProperty(name string) (Property, bool) {
	for i, n := range propertyNames {
		if n != "" && strings.EqualFold(n, name) {
			return Property(i), true
		}
	}
	return PropUndefined, false
}

// attrToken returns the display token of value for id if it has one.
func attrToken(id Property, value uint32) (string, bool) {
	names := attrNames[id]
	if int(value) < len(names) && names[value] != "" {
		return names[value], true
	}
	return "", false
}

func indexFold(tokens []string, s string) int {
	for i, t := range tokens {
		if t != "" && strings.EqualFold(t, s) {
			return i
		}
	}
	return -1
}
