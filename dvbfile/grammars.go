package dvbfile

import "strings"

// Column describes one positional field of a oneline layout.
// A column with Tokens is an enumeration, otherwise it holds an integer.
type Column struct {
	Prop   Property
	Tokens []string
	// Values, when set, is the stored value of each token ordinal.
	Values []uint32
	// Auto is the token written when a stored value has no token.
	Auto string
	// Multiplier scales numeric fields on read, and back on write.
	Multiplier uint32
}

// Layout is the column sequence used for one delivery system.
type Layout struct {
	ID      string
	System  DeliverySystem
	Columns []Column
}

// Grammar describes a positional, one-line-per-channel file format.
type Grammar struct {
	Name string
	// Delimiter separates fields; empty means runs of blanks.
	Delimiter   string
	HasSystemID bool
	Layouts     []Layout
}

func (g *Grammar) layoutByID(id string) *Layout {
	for i := range g.Layouts {
		if strings.EqualFold(g.Layouts[i].ID, id) {
			return &g.Layouts[i]
		}
	}
	return nil
}

func (g *Grammar) layoutBySystem(sys DeliverySystem) *Layout {
	for i := range g.Layouts {
		if g.Layouts[i].System == sys {
			return &g.Layouts[i]
		}
	}
	return nil
}

func (g *Grammar) split(line string) []string {
	if g.Delimiter == "" {
		return strings.Fields(line)
	}
	return strings.Split(line, g.Delimiter)
}

func (g *Grammar) join(fields []string) string {
	if g.Delimiter == "" {
		return strings.Join(fields, " ")
	}
	return strings.Join(fields, g.Delimiter)
}

var (
	legacyModulation = []string{
		"QPSK", "QAM16", "QAM32", "QAM64", "QAM128", "QAM256", "AUTO",
		"8VSB", "16VSB", "8PSK", "16APSK", "32APSK", "DQPSK",
	}
	legacyFEC = []string{
		"NONE", "1/2", "2/3", "3/4", "4/5", "5/6", "6/7", "7/8", "8/9", "AUTO", "3/5", "9/10", "2/5",
	}
	legacyBandwidth    = []string{"8MHz", "7MHz", "6MHz", "AUTO", "5MHz", "10MHz", "1.712MHz"}
	legacyTransmission = []string{"2k", "8k", "AUTO", "4k", "1k", "16k", "32k"}
	legacyGuard        = []string{"1/32", "1/16", "1/8", "1/4", "AUTO", "1/128", "19/128", "19/256"}
	legacyHierarchy    = []string{"NONE", "1", "2", "4", "AUTO"}
	legacyPolarization = []string{"", "H", "V", "L", "R"}

	zapInversion = []string{"INVERSION_OFF", "INVERSION_ON", "INVERSION_AUTO"}
	zapBandwidth = []string{
		"BANDWIDTH_8_MHZ", "BANDWIDTH_7_MHZ", "BANDWIDTH_6_MHZ", "BANDWIDTH_AUTO",
		"BANDWIDTH_5_MHZ", "BANDWIDTH_10_MHZ", "BANDWIDTH_1_712_MHZ",
	}
	zapFEC = []string{
		"FEC_NONE", "FEC_1_2", "FEC_2_3", "FEC_3_4", "FEC_4_5", "FEC_5_6", "FEC_6_7",
		"FEC_7_8", "FEC_8_9", "FEC_AUTO", "FEC_3_5", "FEC_9_10", "FEC_2_5",
	}
	zapModulation = []string{
		"QPSK", "QAM_16", "QAM_32", "QAM_64", "QAM_128", "QAM_256", "QAM_AUTO",
		"8VSB", "16VSB", "PSK_8", "APSK_16", "APSK_32", "DQPSK",
	}
	zapTransmission = []string{
		"TRANSMISSION_MODE_2K", "TRANSMISSION_MODE_8K", "TRANSMISSION_MODE_AUTO",
		"TRANSMISSION_MODE_4K", "TRANSMISSION_MODE_1K", "TRANSMISSION_MODE_16K",
		"TRANSMISSION_MODE_32K",
	}
	zapGuard = []string{
		"GUARD_INTERVAL_1_32", "GUARD_INTERVAL_1_16", "GUARD_INTERVAL_1_8", "GUARD_INTERVAL_1_4",
		"GUARD_INTERVAL_AUTO", "GUARD_INTERVAL_1_128", "GUARD_INTERVAL_19_128", "GUARD_INTERVAL_19_256",
	}
	zapHierarchy = []string{"HIERARCHY_NONE", "HIERARCHY_1", "HIERARCHY_2", "HIERARCHY_4", "HIERARCHY_AUTO"}
)

func enum(p Property, tokens []string) Column {
	col := Column{Prop: p, Tokens: tokens}
	for _, t := range tokens {
		if strings.HasSuffix(t, "AUTO") {
			col.Auto = t
		}
	}
	return col
}

func bandwidth(tokens []string) Column {
	return Column{Prop: PropBandwidthHz, Tokens: tokens, Values: BandwidthHz, Auto: tokens[3]}
}

func number(p Property, multiplier uint32) Column {
	return Column{Prop: p, Multiplier: multiplier}
}

// LegacyGrammar is the blank separated "channel" format of the old scan
// tools, e.g. "474000000 8MHz 2/3 NONE QAM64 8k 1/32 NONE". Lines carry no
// system tag, the layout comes from the default delivery system.
var LegacyGrammar = &Grammar{
	Name: "CHANNEL",
	Layouts: []Layout{
		{ID: "T", System: SysDVBT, Columns: []Column{
			number(PropFrequency, 1),
			bandwidth(legacyBandwidth),
			enum(PropCodeRateHP, legacyFEC),
			enum(PropCodeRateLP, legacyFEC),
			enum(PropModulation, legacyModulation),
			enum(PropTransmissionMode, legacyTransmission),
			enum(PropGuardInterval, legacyGuard),
			enum(PropHierarchy, legacyHierarchy),
		}},
		{ID: "C", System: SysDVBCAnnexA, Columns: []Column{
			number(PropFrequency, 1),
			number(PropSymbolRate, 1),
			enum(PropInnerFEC, legacyFEC),
			enum(PropModulation, legacyModulation),
		}},
		{ID: "S", System: SysDVBS, Columns: []Column{
			number(PropFrequency, 1),
			enum(PropPolarization, legacyPolarization),
			number(PropSymbolRate, 1),
			enum(PropInnerFEC, legacyFEC),
		}},
		{ID: "A", System: SysATSC, Columns: []Column{
			number(PropFrequency, 1),
			enum(PropModulation, legacyModulation),
		}},
	},
}

// ZapGrammar is the colon separated format of the *zap tools. Every line
// starts with a system tag, then the channel name, tuning fields and PIDs.
var ZapGrammar = &Grammar{
	Name:        "ZAP",
	Delimiter:   ":",
	HasSystemID: true,
	Layouts: []Layout{
		{ID: "T", System: SysDVBT, Columns: []Column{
			number(PropChannelName, 0),
			number(PropFrequency, 1),
			enum(PropInversion, zapInversion),
			bandwidth(zapBandwidth),
			enum(PropCodeRateHP, zapFEC),
			enum(PropCodeRateLP, zapFEC),
			enum(PropModulation, zapModulation),
			enum(PropTransmissionMode, zapTransmission),
			enum(PropGuardInterval, zapGuard),
			enum(PropHierarchy, zapHierarchy),
			number(PropVideoPID, 1),
			number(PropAudioPID, 1),
			number(PropServiceID, 1),
		}},
		{ID: "C", System: SysDVBCAnnexA, Columns: []Column{
			number(PropChannelName, 0),
			number(PropFrequency, 1),
			enum(PropInversion, zapInversion),
			number(PropSymbolRate, 1),
			enum(PropInnerFEC, zapFEC),
			enum(PropModulation, zapModulation),
			number(PropVideoPID, 1),
			number(PropAudioPID, 1),
			number(PropServiceID, 1),
		}},
		{ID: "S", System: SysDVBS, Columns: []Column{
			number(PropChannelName, 0),
			number(PropFrequency, 1000),
			enum(PropPolarization, legacyPolarization),
			number(PropSatNumber, 1),
			number(PropSymbolRate, 1000),
			number(PropVideoPID, 1),
			number(PropAudioPID, 1),
			number(PropServiceID, 1),
		}},
		{ID: "A", System: SysATSC, Columns: []Column{
			number(PropChannelName, 0),
			number(PropFrequency, 1),
			enum(PropModulation, zapModulation),
			number(PropVideoPID, 1),
			number(PropAudioPID, 1),
			number(PropServiceID, 1),
		}},
	},
}
