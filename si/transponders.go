package si

import "dvbscan/dvbfile"

// NITTransponders adds an entry for every transponder found in the NIT
// delivery system descriptors that the file does not tune to yet.
type NITTransponders struct{}

func (NITTransponders) UpdateTransponders(file *dvbfile.File, set *ServiceSet, current *dvbfile.Entry) error {
	if set.NIT == nil {
		return nil
	}
	for _, ts := range set.NIT.Transports {
		for _, d := range ts.Descriptors {
			if d.Delivery == nil || d.Delivery.Frequency == 0 {
				continue
			}
			if hasTransponder(file, d.Delivery.System, d.Delivery.Frequency) {
				continue
			}
			entry, err := deliveryEntry(d.Delivery, current)
			if err != nil {
				return err
			}
			file.Append(entry)
		}
	}
	return nil
}

func hasTransponder(file *dvbfile.File, sys dvbfile.DeliverySystem, freq uint32) bool {
	compat := dvbfile.CompatSystem(sys)
	for _, e := range file.Entries {
		if dvbfile.CompatSystem(e.DeliverySystem()) != compat {
			continue
		}
		if f, ok := e.Retrieve(dvbfile.PropFrequency); ok && f == freq {
			return true
		}
	}
	return false
}

func deliveryEntry(d *Delivery, current *dvbfile.Entry) (*dvbfile.Entry, error) {
	e := dvbfile.NewEntry()
	props := []dvbfile.PropValue{
		{ID: dvbfile.PropDeliverySystem, Value: uint32(d.System)},
		{ID: dvbfile.PropFrequency, Value: d.Frequency},
	}
	switch dvbfile.CompatSystem(d.System) {
	case dvbfile.SysDVBT:
		props = append(props,
			dvbfile.PropValue{ID: dvbfile.PropBandwidthHz, Value: d.Bandwidth},
			dvbfile.PropValue{ID: dvbfile.PropModulation, Value: d.Modulation},
			dvbfile.PropValue{ID: dvbfile.PropCodeRateHP, Value: d.FEC},
			dvbfile.PropValue{ID: dvbfile.PropCodeRateLP, Value: d.CodeRateLP},
			dvbfile.PropValue{ID: dvbfile.PropGuardInterval, Value: d.Guard},
			dvbfile.PropValue{ID: dvbfile.PropTransmissionMode, Value: d.Transmission},
			dvbfile.PropValue{ID: dvbfile.PropHierarchy, Value: d.Hierarchy},
		)
	case dvbfile.SysDVBCAnnexA:
		props = append(props,
			dvbfile.PropValue{ID: dvbfile.PropSymbolRate, Value: d.SymbolRate},
			dvbfile.PropValue{ID: dvbfile.PropInnerFEC, Value: d.FEC},
			dvbfile.PropValue{ID: dvbfile.PropModulation, Value: d.Modulation},
		)
	case dvbfile.SysDVBS:
		props = append(props,
			dvbfile.PropValue{ID: dvbfile.PropSymbolRate, Value: d.SymbolRate},
			dvbfile.PropValue{ID: dvbfile.PropInnerFEC, Value: d.FEC},
			dvbfile.PropValue{ID: dvbfile.PropModulation, Value: d.Modulation},
			dvbfile.PropValue{ID: dvbfile.PropRolloff, Value: d.Rolloff},
			dvbfile.PropValue{ID: dvbfile.PropPolarization, Value: d.Polarization},
		)
		if current != nil {
			e.SatNumber = current.SatNumber
			e.LNB = current.LNB
			e.FreqBPF = current.FreqBPF
			e.DiseqcWait = current.DiseqcWait
		}
	}
	props = append(props, dvbfile.PropValue{ID: dvbfile.PropInversion, Value: dvbfile.InversionAuto})
	for _, p := range props {
		if err := e.Store(p.ID, p.Value); err != nil {
			return nil, err
		}
	}
	return e, nil
}
