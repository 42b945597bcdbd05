package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"dvbscan/capture"
	"dvbscan/dvbfile"
	"dvbscan/scan"
	"dvbscan/si"

	"go.uber.org/zap"
)

// a frontend and demux pair replaying transport stream captures, the
// frontend locks when the tuned frequency is one of the configured transponders
type VirtualTuner struct {
	config  VirtualTunerConfig
	systems []dvbfile.DeliverySystem
	logger  *zap.Logger

	current   dvbfile.DeliverySystem
	pending   *dvbfile.Entry
	committed *dvbfile.Entry
	detected  *dvbfile.Entry
	// transponder matching the committed parameters, nil if none
	locked *TransponderConfig
	polls  int

	tool *CommandLineTool
}

func NewVirtualTuner(config VirtualTunerConfig, logger *zap.Logger) (*VirtualTuner, error) {
	vt := new(VirtualTuner)
	vt.config = config
	vt.logger = logger
	if vt.logger == nil {
		vt.logger = zap.NewNop()
	}
	vt.logger = vt.logger.With(zap.String("tuner", config.Name))

	for _, name := range config.DeliverySystems {
		sys, ok := dvbfile.ParseDeliverySystem(name)
		if !ok {
			return nil, fmt.Errorf("tuner %s: unknown delivery system %q", config.Name, name)
		}
		vt.systems = append(vt.systems, sys)
	}
	for i, tp := range config.Transponders {
		if _, ok := dvbfile.ParseDeliverySystem(tp.DeliverySystem); !ok {
			return nil, fmt.Errorf("tuner %s: transponder %d: unknown delivery system %q", config.Name, i, tp.DeliverySystem)
		}
	}
	if len(vt.systems) > 0 {
		vt.current = vt.systems[0]
	}

	if config.CaptureTool != nil {
		vt.tool = CreateCommandLineTool(*config.CaptureTool, vt.logger)
	}

	return vt, nil
}

// select sys if supported, else a supported system of the same family
func (vt *VirtualTuner) SetCompatDeliverySystem(sys dvbfile.DeliverySystem) error {
	selected := dvbfile.SysUndefined
	if len(vt.systems) == 0 {
		selected = sys
	}
	for _, s := range vt.systems {
		if s == sys {
			selected = s
			break
		}
	}
	if selected == dvbfile.SysUndefined {
		for _, s := range vt.systems {
			if dvbfile.CompatSystem(s) == dvbfile.CompatSystem(sys) {
				selected = s
				break
			}
		}
	}
	if selected == dvbfile.SysUndefined {
		return fmt.Errorf("delivery system %s not supported by %s", sys, vt.config.Name)
	}

	if selected != sys {
		vt.logger.Info("using compatible delivery system", zap.Stringer("requested", sys), zap.Stringer("selected", selected))
	}
	vt.current = selected
	vt.pending = dvbfile.NewEntry()
	vt.Store(dvbfile.PropDeliverySystem, uint32(selected))

	return nil
}

func (vt *VirtualTuner) DeliverySystem() dvbfile.DeliverySystem {
	return vt.current
}

func (vt *VirtualTuner) Store(id dvbfile.Property, value uint32) {
	if vt.pending == nil {
		vt.pending = dvbfile.NewEntry()
	}
	if err := vt.pending.Store(id, value); err != nil {
		vt.logger.Warn("property dropped", zap.Stringer("property", id), zap.Error(err))
	}
}

// apply the pending parameters and look for a matching transponder
func (vt *VirtualTuner) Commit() error {
	if vt.pending == nil {
		return fmt.Errorf("%s: no tuning parameters to commit", vt.config.Name)
	}
	if _, ok := vt.pending.Retrieve(dvbfile.PropDeliverySystem); !ok {
		vt.Store(dvbfile.PropDeliverySystem, uint32(vt.current))
	}

	vt.committed = vt.pending
	vt.pending = nil
	vt.detected = nil
	vt.polls = 0
	vt.locked = vt.findTransponder(vt.committed)

	freq, _ := vt.committed.Retrieve(dvbfile.PropFrequency)
	vt.logger.Debug("tuned", zap.Stringer("system", vt.committed.DeliverySystem()),
		zap.Uint32("frequency", freq), zap.Bool("transponder", vt.locked != nil))

	return nil
}

func (vt *VirtualTuner) findTransponder(e *dvbfile.Entry) *TransponderConfig {
	freq, ok := e.Retrieve(dvbfile.PropFrequency)
	if !ok {
		return nil
	}
	compat := dvbfile.CompatSystem(e.DeliverySystem())

	for i := range vt.config.Transponders {
		tp := &vt.config.Transponders[i]
		sys, _ := dvbfile.ParseDeliverySystem(tp.DeliverySystem)
		if dvbfile.CompatSystem(sys) != compat {
			continue
		}
		diff := int64(freq) - int64(tp.Frequency)
		if diff < 0 {
			diff = -diff
		}
		if diff <= int64(tp.Tolerance) {
			return tp
		}
	}

	return nil
}

// report carrier right away and the lock after LockAfter reads
func (vt *VirtualTuner) Stats() (scan.Stats, error) {
	if vt.committed == nil {
		return scan.Stats{}, fmt.Errorf("%s: frontend not tuned", vt.config.Name)
	}
	if vt.locked == nil {
		return scan.Stats{}, nil
	}

	vt.polls++
	st := scan.Stats{
		Status: scan.HasSignal | scan.HasCarrier,
		Signal: vt.locked.Signal,
	}
	if vt.polls > vt.locked.LockAfter {
		st.Status |= scan.HasViterbi | scan.HasSync | scan.HasLock
		st.SNR = vt.locked.SNR
	}

	return st, nil
}

func (vt *VirtualTuner) LiveContext() si.LiveContext {
	live := si.LiveContext{
		SatNumber:  -1,
		FreqBPF:    vt.config.FreqBPF,
		DiseqcWait: vt.config.DiseqcWait,
		LNB:        vt.config.LNB,
	}
	if vt.config.SatNumber != nil {
		live.SatNumber = *vt.config.SatNumber
	}

	return live
}

// read back what the frontend locked on: the transponder frequency and
// the inversion it detected
func (vt *VirtualTuner) Refresh() error {
	if vt.committed == nil {
		return fmt.Errorf("%s: frontend not tuned", vt.config.Name)
	}
	if vt.locked == nil {
		return fmt.Errorf("%s: no signal", vt.config.Name)
	}
	if vt.polls <= vt.locked.LockAfter {
		vt.polls++
		return scan.ErrTryAgain
	}

	detected := dvbfile.NewEntry()
	for _, p := range vt.committed.Props() {
		detected.Store(p.ID, p.Value) //nolint: errcheck
	}
	detected.Store(dvbfile.PropFrequency, vt.locked.Frequency) //nolint: errcheck
	detected.Store(dvbfile.PropInversion, dvbfile.InversionOff) //nolint: errcheck
	vt.detected = detected

	return nil
}

func (vt *VirtualTuner) Properties() []dvbfile.PropValue {
	switch {
	case vt.detected != nil:
		return vt.detected.Props()
	case vt.committed != nil:
		return vt.committed.Props()
	}

	return nil
}

// decode the tables of the locked transponder, from its capture file or
// the capture tool
func (vt *VirtualTuner) Capture(ctx context.Context) (*si.ServiceSet, error) {
	if vt.locked == nil {
		return nil, fmt.Errorf("%s: no transponder locked", vt.config.Name)
	}

	var source io.Reader
	switch {
	case vt.locked.Capture != "":
		f, err := os.Open(vt.locked.Capture)
		if err != nil {
			return nil, err
		}
		defer f.Close() //nolint: errcheck
		source = f
	case vt.tool != nil:
		ts, err := vt.tool.Capture(ctx, vt.toolParams(), vt.config.CapturePackets)
		if err != nil {
			return nil, fmt.Errorf("running capture tool: %w", err)
		}
		source = bytes.NewReader(ts)
	default:
		return nil, fmt.Errorf("%s: no capture for %d", vt.config.Name, vt.locked.Frequency)
	}

	return capture.Harvest(ctx, source, vt.logger)
}

func (vt *VirtualTuner) toolParams() map[string]string {
	params := map[string]string{
		"adapter":        strconv.Itoa(vt.config.Adapter),
		"frontend":       strconv.Itoa(vt.config.Frontend),
		"frequency":      strconv.FormatUint(uint64(vt.locked.Frequency), 10),
		"deliverysystem": vt.committed.DeliverySystem().String(),
	}
	for _, p := range vt.committed.Props() {
		params[p.ID.String()] = strconv.FormatUint(uint64(p.Value), 10)
	}

	return params
}

func (vt *VirtualTuner) Close() error {
	if vt.tool != nil {
		vt.tool.Stop()
	}
	vt.pending = nil
	vt.committed = nil
	vt.detected = nil
	vt.locked = nil

	return nil
}
