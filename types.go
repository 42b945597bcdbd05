package main

// a transponder the virtual frontend can lock on
type TransponderConfig struct {
	// tuning frequency in Hz (kHz for satellite)
	Frequency uint32 `yaml:"frequency"`
	// accepted distance between the requested frequency and this one
	Tolerance uint32 `yaml:"tolerance"`
	// delivery system name (DVBT, DVB-S2, ATSC ...)
	DeliverySystem string `yaml:"deliverysystem"`
	// transport stream capture holding the tables of this transponder
	Capture string `yaml:"capture"`
	// signal strength and SNR reported once locked, in percent
	Signal uint32 `yaml:"signal"`
	SNR    uint32 `yaml:"snr"`
	// status reads before the lock shows up
	LockAfter int `yaml:"lockafter"`
}

// configuration of one virtual tuner (frontend + demux)
type VirtualTunerConfig struct {
	Name     string `yaml:"name"`
	Adapter  int    `yaml:"adapter"`
	Frontend int    `yaml:"frontend"`
	// demux number serving the captures of this frontend
	Demux int `yaml:"demux"`
	// delivery systems the frontend accepts, all if empty
	DeliverySystems []string `yaml:"deliverysystems"`
	// satellite equipment, leave satnumber out when there is no DiSEqC switch
	SatNumber  *int   `yaml:"satnumber,omitempty"`
	LNB        string `yaml:"lnb,omitempty"`
	FreqBPF    uint32 `yaml:"freqbpf,omitempty"`
	DiseqcWait uint32 `yaml:"diseqcwait,omitempty"`

	Transponders []TransponderConfig `yaml:"transponders"`

	// tool writing a transport stream on stdout for transponders without capture file
	CaptureTool *CommandLineToolConfig `yaml:"capturetool,omitempty"`
	// packets to read from the capture tool
	CapturePackets int `yaml:"capturepackets,omitempty"`
}

type ScanConfig struct {
	Adapter  int `yaml:"adapter"`
	Frontend int `yaml:"frontend"`
	Demux    int `yaml:"demux"`
	// format of the input file: CHANNEL, ZAP or DVBV5
	InputFormat string `yaml:"inputformat"`
	// delivery system for formats that don't name one on each line
	DeliverySystem string `yaml:"deliverysystem"`
	// where the channels found are written
	Output string `yaml:"output"`
	// seconds to wait for a lock on each transponder
	LockTimeout int `yaml:"locktimeout"`
	// read the tuning parameters back from the frontend
	GetDetected bool `yaml:"getdetected"`
	// add transponders announced in the NIT
	FollowNIT bool `yaml:"follownit"`
	// sqlite database receiving the channels, none if empty
	Database string `yaml:"database,omitempty"`
	// address serving /metrics during the scan, none if empty
	MetricsListen string `yaml:"metricslisten,omitempty"`

	Tuners []VirtualTunerConfig `yaml:"tuners"`
}
