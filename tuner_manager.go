package main

import (
	"fmt"

	"dvbscan/scan"

	"go.uber.org/zap"
)

// adapter and frontend or demux number
type tunerKey struct {
	adapter int
	device  int
}

// keeps the tuners of the process, each one is opened once and reused
type TunerManager struct {
	Name    string
	tuners  map[tunerKey]Tuner
	demuxes map[tunerKey]scan.Demux
	logger  *zap.Logger
}

func NewTunerManager(name string, logger *zap.Logger) *TunerManager {
	tm := new(TunerManager)
	tm.Name = name
	tm.tuners = make(map[tunerKey]Tuner)
	tm.demuxes = make(map[tunerKey]scan.Demux)
	tm.logger = logger
	if tm.logger == nil {
		tm.logger = zap.NewNop()
	}

	return tm
}

// register tuner as /dev/dvb/adapterN/frontendM
func (tm *TunerManager) AttachTuner(adapter, frontend int, tuner Tuner) error {
	key := tunerKey{adapter, frontend}
	if _, ok := tm.tuners[key]; ok {
		return fmt.Errorf("adapter %d frontend %d already attached", adapter, frontend)
	}
	tm.tuners[key] = tuner
	tm.logger.Debug("tuner attached", zap.String("manager", tm.Name),
		zap.Int("adapter", adapter), zap.Int("frontend", frontend))

	return nil
}

// register demux as /dev/dvb/adapterN/demuxM
func (tm *TunerManager) AttachDemux(adapter, demux int, dmx scan.Demux) error {
	key := tunerKey{adapter, demux}
	if _, ok := tm.demuxes[key]; ok {
		return fmt.Errorf("adapter %d demux %d already attached", adapter, demux)
	}
	tm.demuxes[key] = dmx
	tm.logger.Debug("demux attached", zap.String("manager", tm.Name),
		zap.Int("adapter", adapter), zap.Int("demux", demux))

	return nil
}

// return the demux registered for adapter/demux
func (tm *TunerManager) OpenDemux(adapter, demux int) (scan.Demux, error) {
	dmx, ok := tm.demuxes[tunerKey{adapter, demux}]
	if !ok {
		return nil, fmt.Errorf("no demux on adapter %d demux %d", adapter, demux)
	}

	return dmx, nil
}

// return the tuner registered for adapter/frontend
func (tm *TunerManager) Open(adapter, frontend int) (Tuner, error) {
	tuner, ok := tm.tuners[tunerKey{adapter, frontend}]
	if !ok {
		return nil, fmt.Errorf("no tuner on adapter %d frontend %d", adapter, frontend)
	}

	return tuner, nil
}

// close every tuner, returns the first error
func (tm *TunerManager) CloseAll() error {
	var first error
	for key, tuner := range tm.tuners {
		if err := tuner.Close(); err != nil {
			tm.logger.Warn("closing tuner failed", zap.Int("adapter", key.adapter),
				zap.Int("frontend", key.device), zap.Error(err))
			if first == nil {
				first = err
			}
		}
		delete(tm.tuners, key)
	}
	// demuxes belong to the tuners just closed
	for key := range tm.demuxes {
		delete(tm.demuxes, key)
	}

	return first
}
