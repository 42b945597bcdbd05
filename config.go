package main

import (
	"os"

	"dvbscan/scan"

	"gopkg.in/yaml.v3"
)

func (config *ScanConfig) ReadConfig(configFileName string) error {
	source, err := os.ReadFile(configFileName)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(source, config)
}

func (config *ScanConfig) WriteConfig(configFileName string) error {
	out, err := yaml.Marshal(config)
	if err != nil {
		return err
	}

	return os.WriteFile(configFileName, out, 0666)
}

// fill in what neither the file nor the command line set
func (config *ScanConfig) applyDefaults() {
	if config.InputFormat == "" {
		config.InputFormat = "DVBV5"
	}
	if config.Output == "" {
		config.Output = scan.DefaultOutput
	}
	if config.LockTimeout <= 0 {
		config.LockTimeout = scan.DefaultLockTimeout
	}
	for i := range config.Tuners {
		if config.Tuners[i].CapturePackets <= 0 {
			config.Tuners[i].CapturePackets = 20000
		}
	}
}
