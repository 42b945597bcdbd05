package scan

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"dvbscan/dvbfile"
	"dvbscan/si"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFrontend struct {
	system    dvbfile.DeliverySystem
	supported map[dvbfile.DeliverySystem]bool
	pending   map[dvbfile.Property]uint32
	order     []dvbfile.Property
	committed []map[dvbfile.Property]uint32

	// lockAfter is the number of Stats calls before a lock, <0 never locks
	lockAfter  int
	lockFreqs  map[uint32]bool
	statsCalls int
	statsErr   error
	commitErr  error
}

func newFakeFrontend() *fakeFrontend {
	return &fakeFrontend{
		supported: map[dvbfile.DeliverySystem]bool{
			dvbfile.SysDVBT: true, dvbfile.SysDVBT2: true, dvbfile.SysISDBT: true,
			dvbfile.SysATSC: true, dvbfile.SysDVBCAnnexB: true,
		},
		pending: map[dvbfile.Property]uint32{},
	}
}

func (f *fakeFrontend) LiveContext() si.LiveContext { return si.LiveContext{SatNumber: -1} }
func (f *fakeFrontend) Refresh() error               { return nil }

func (f *fakeFrontend) Properties() []dvbfile.PropValue {
	props := []dvbfile.PropValue{{ID: dvbfile.PropDeliverySystem, Value: uint32(f.system)}}
	for _, id := range f.order {
		props = append(props, dvbfile.PropValue{ID: id, Value: f.pending[id]})
	}
	return props
}

func (f *fakeFrontend) SetCompatDeliverySystem(sys dvbfile.DeliverySystem) error {
	if !f.supported[sys] {
		return errors.New("not supported")
	}
	f.system = sys
	return nil
}

func (f *fakeFrontend) DeliverySystem() dvbfile.DeliverySystem { return f.system }

func (f *fakeFrontend) Store(id dvbfile.Property, value uint32) {
	if id == dvbfile.PropDeliverySystem {
		f.system = dvbfile.DeliverySystem(value)
		return
	}
	if _, ok := f.pending[id]; !ok {
		f.order = append(f.order, id)
	}
	f.pending[id] = value
}

func (f *fakeFrontend) Commit() error {
	if f.commitErr != nil {
		return f.commitErr
	}
	c := map[dvbfile.Property]uint32{dvbfile.PropDeliverySystem: uint32(f.system)}
	for k, v := range f.pending {
		c[k] = v
	}
	f.committed = append(f.committed, c)
	f.statsCalls = 0
	return nil
}

func (f *fakeFrontend) Stats() (Stats, error) {
	f.statsCalls++
	if f.statsErr != nil {
		return Stats{}, f.statsErr
	}
	freq := f.pending[dvbfile.PropFrequency]
	if f.lockFreqs != nil && !f.lockFreqs[freq] {
		return Stats{Status: HasSignal, Signal: 10}, nil
	}
	if f.lockAfter >= 0 && f.statsCalls > f.lockAfter {
		return Stats{Status: HasSignal | HasCarrier | HasLock, Signal: 80, SNR: 60}, nil
	}
	return Stats{Status: HasSignal, Signal: 20}, nil
}

type fakeDemux struct {
	sets     map[uint32]*si.ServiceSet
	fe       *fakeFrontend
	captures int
}

func (d *fakeDemux) Capture(ctx context.Context) (*si.ServiceSet, error) {
	d.captures++
	set, ok := d.sets[d.fe.pending[dvbfile.PropFrequency]]
	if !ok {
		return nil, errors.New("timeout reading tables")
	}
	return set, nil
}

func entry(t *testing.T, sys dvbfile.DeliverySystem, props ...dvbfile.PropValue) *dvbfile.Entry {
	e := dvbfile.NewEntry()
	require.NoError(t, e.Store(dvbfile.PropDeliverySystem, uint32(sys)))
	for _, p := range props {
		require.NoError(t, e.Store(p.ID, p.Value))
	}
	return e
}

func sdtSet(sid uint16, name string) *si.ServiceSet {
	return &si.ServiceSet{
		Programs: []si.Program{{ServiceID: sid, PMT: &si.PMT{Streams: []si.Stream{{Type: 0x1b, PID: 100}, {Type: 0x0f, PID: 101}}}}},
		SDT: &si.SDT{Services: []si.SDTService{{ServiceID: sid, Descriptors: []si.Descriptor{
			{Tag: si.TagService, Service: &si.ServiceInfo{Type: 0x19, Name: name}},
		}}}},
	}
}

func TestWaitLock_Timeout(t *testing.T) {
	fe := newFakeFrontend()
	fe.lockAfter = -1
	s := NewScanner(fe, nil, nil)
	s.PollInterval = 0

	st, err := s.WaitLock(4)
	assert.True(t, errors.Is(err, ErrLockTimeout))
	assert.Equal(t, 40, fe.statsCalls)
	assert.Equal(t, HasSignal, st.Status)
}

func TestWaitLock_Locks(t *testing.T) {
	fe := newFakeFrontend()
	fe.lockAfter = 3
	reg := prometheus.NewRegistry()
	s := NewScanner(fe, nil, nil)
	s.PollInterval = 0
	s.Metrics = NewMetrics(reg)

	st, err := s.WaitLock(1)
	require.NoError(t, err)
	assert.Equal(t, 4, fe.statsCalls)
	assert.Equal(t, uint32(80), st.Signal)
	assert.Equal(t, float64(1), testutil.ToFloat64(s.Metrics.Locked))
	assert.Equal(t, float64(60), testutil.ToFloat64(s.Metrics.SNR))
	assert.Equal(t, float64(1), testutil.ToFloat64(s.Metrics.Locks))
}

func TestWaitLock_StatsErrorsKeepPolling(t *testing.T) {
	fe := newFakeFrontend()
	fe.statsErr = errors.New("ioctl FE_READ_STATUS failed")
	s := NewScanner(fe, nil, nil)
	s.PollInterval = 0

	_, err := s.WaitLock(2)
	assert.True(t, errors.Is(err, ErrLockTimeout))
	assert.Equal(t, 20, fe.statsCalls)
}

func TestTune_ISDBT(t *testing.T) {
	fe := newFakeFrontend()
	s := NewScanner(fe, nil, nil)

	require.NoError(t, s.Tune(entry(t, dvbfile.SysISDBT,
		dvbfile.PropValue{ID: dvbfile.PropFrequency, Value: 473142857},
		dvbfile.PropValue{ID: dvbfile.PropCodeRateHP, Value: dvbfile.FEC34},
		dvbfile.PropValue{ID: dvbfile.PropModulation, Value: dvbfile.QAM64},
		dvbfile.PropValue{ID: dvbfile.PropInversion, Value: dvbfile.InversionOn},
	)))

	require.Len(t, fe.committed, 1)
	c := fe.committed[0]
	assert.Equal(t, uint32(dvbfile.SysISDBT), c[dvbfile.PropDeliverySystem])
	assert.Equal(t, uint32(0), c[dvbfile.PropISDBTPartialReception])
	assert.Equal(t, uint32(0), c[dvbfile.PropISDBTSoundBroadcasting])
	assert.Equal(t, uint32(7), c[dvbfile.PropISDBTLayerEnabled])
	for _, p := range []dvbfile.Property{dvbfile.PropISDBTLayerAFEC, dvbfile.PropISDBTLayerBFEC, dvbfile.PropISDBTLayerCFEC} {
		assert.Equal(t, dvbfile.FEC34, c[p], p.String())
	}
	for _, p := range []dvbfile.Property{dvbfile.PropISDBTLayerAModulation, dvbfile.PropISDBTLayerBModulation, dvbfile.PropISDBTLayerCModulation} {
		assert.Equal(t, dvbfile.QAM64, c[p], p.String())
	}
	assert.Equal(t, dvbfile.InversionAuto, c[dvbfile.PropInversion])
}

func TestTune_ISDBTDefaultsOverrideEntry(t *testing.T) {
	fe := newFakeFrontend()
	s := NewScanner(fe, nil, nil)

	// as written back by a previous scan
	require.NoError(t, s.Tune(entry(t, dvbfile.SysISDBT,
		dvbfile.PropValue{ID: dvbfile.PropFrequency, Value: 473142857},
		dvbfile.PropValue{ID: dvbfile.PropISDBTPartialReception, Value: 1},
		dvbfile.PropValue{ID: dvbfile.PropISDBTSoundBroadcasting, Value: 1},
		dvbfile.PropValue{ID: dvbfile.PropISDBTLayerEnabled, Value: 1},
	)))

	c := fe.committed[0]
	assert.Equal(t, uint32(0), c[dvbfile.PropISDBTPartialReception])
	assert.Equal(t, uint32(0), c[dvbfile.PropISDBTSoundBroadcasting])
	assert.Equal(t, uint32(7), c[dvbfile.PropISDBTLayerEnabled])
}

func TestTune_ATSCQAM(t *testing.T) {
	fe := newFakeFrontend()
	s := NewScanner(fe, nil, nil)

	require.NoError(t, s.Tune(entry(t, dvbfile.SysATSC,
		dvbfile.PropValue{ID: dvbfile.PropFrequency, Value: 57000000},
		dvbfile.PropValue{ID: dvbfile.PropModulation, Value: dvbfile.QAM256},
	)))
	assert.Equal(t, uint32(dvbfile.SysDVBCAnnexB), fe.committed[0][dvbfile.PropDeliverySystem])

	require.NoError(t, s.Tune(entry(t, dvbfile.SysATSC,
		dvbfile.PropValue{ID: dvbfile.PropFrequency, Value: 57000000},
		dvbfile.PropValue{ID: dvbfile.PropModulation, Value: dvbfile.VSB8},
	)))
	assert.Equal(t, uint32(dvbfile.SysATSC), fe.committed[1][dvbfile.PropDeliverySystem])
}

func TestTune_Errors(t *testing.T) {
	fe := newFakeFrontend()
	s := NewScanner(fe, nil, nil)

	err := s.Tune(entry(t, dvbfile.SysDVBS))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrDevice))

	fe.commitErr = errors.New("ioctl FE_SET_PROPERTY failed")
	err = s.Tune(entry(t, dvbfile.SysDVBT))
	assert.True(t, errors.Is(err, ErrDevice))
}

func TestScan(t *testing.T) {
	fe := newFakeFrontend()
	fe.lockFreqs = map[uint32]bool{474000000: true, 490000000: true, 506000000: true}
	dmx := &fakeDemux{fe: fe, sets: map[uint32]*si.ServiceSet{
		474000000: sdtSet(16, "Das Erste"),
		490000000: {Programs: []si.Program{{ServiceID: 1}}},
		506000000: sdtSet(28, "ZDF"),
	}}
	reg := prometheus.NewRegistry()
	s := NewScanner(fe, dmx, nil)
	s.PollInterval = 0
	s.Metrics = NewMetrics(reg)

	input := &dvbfile.File{Entries: []*dvbfile.Entry{
		entry(t, dvbfile.SysDVBT, dvbfile.PropValue{ID: dvbfile.PropFrequency, Value: 474000000}),
		entry(t, dvbfile.SysDVBS, dvbfile.PropValue{ID: dvbfile.PropFrequency, Value: 11494000}),
		entry(t, dvbfile.SysDVBT, dvbfile.PropValue{ID: dvbfile.PropFrequency, Value: 482000000}),
		entry(t, dvbfile.SysDVBT, dvbfile.PropValue{ID: dvbfile.PropFrequency, Value: 490000000}),
		entry(t, dvbfile.SysDVBT2, dvbfile.PropValue{ID: dvbfile.PropFrequency, Value: 498000000}),
		entry(t, dvbfile.SysDVBT2, dvbfile.PropValue{ID: dvbfile.PropFrequency, Value: 506000000}),
	}}
	fe.lockFreqs[498000000] = true

	out, err := s.Scan(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, 2, out.Len())

	first := out.Entries[0]
	assert.Equal(t, "Das Erste", first.Channel)
	assert.Equal(t, uint16(16), first.ServiceID)
	assert.Equal(t, []uint16{100}, first.VideoPIDs)
	assert.Equal(t, []uint16{101}, first.AudioPIDs)
	freq, _ := first.Retrieve(dvbfile.PropFrequency)
	assert.Equal(t, uint32(474000000), freq)
	assert.Equal(t, dvbfile.SysDVBT, first.DeliverySystem())

	assert.Equal(t, "ZDF", out.Entries[1].Channel)
	assert.Equal(t, dvbfile.SysDVBT2, out.Entries[1].DeliverySystem())

	assert.Equal(t, 4, dmx.captures)
	assert.Equal(t, float64(5), testutil.ToFloat64(s.Metrics.Tuned))
	assert.Equal(t, float64(2), testutil.ToFloat64(s.Metrics.Services))
	assert.Equal(t, float64(1), testutil.ToFloat64(s.Metrics.Skipped.WithLabelValues("tune")))
	assert.Equal(t, float64(1), testutil.ToFloat64(s.Metrics.Skipped.WithLabelValues("lock")))
	assert.Equal(t, float64(1), testutil.ToFloat64(s.Metrics.Skipped.WithLabelValues("capture")))
}

func TestScan_ServicesMetricSkipsTransponders(t *testing.T) {
	fe := newFakeFrontend()
	set := sdtSet(16, "Das Erste")
	set.NIT = &si.NIT{Transports: []si.NITTransport{{Descriptors: []si.Descriptor{
		{Tag: si.TagTerrestrialDelivery, Delivery: &si.Delivery{System: dvbfile.SysDVBT, Frequency: 522000000}},
	}}}}
	dmx := &fakeDemux{fe: fe, sets: map[uint32]*si.ServiceSet{474000000: set}}
	s := NewScanner(fe, dmx, nil)
	s.PollInterval = 0
	s.Metrics = NewMetrics(prometheus.NewRegistry())
	s.Extractor.ResolveTransponders = true

	out, err := s.Scan(context.Background(), &dvbfile.File{Entries: []*dvbfile.Entry{
		entry(t, dvbfile.SysDVBT, dvbfile.PropValue{ID: dvbfile.PropFrequency, Value: 474000000}),
	}})
	require.NoError(t, err)
	require.Equal(t, 2, out.Len())
	assert.Equal(t, float64(1), testutil.ToFloat64(s.Metrics.Services))
}

func TestScan_DeviceErrorStops(t *testing.T) {
	fe := newFakeFrontend()
	fe.commitErr = errors.New("device gone")
	s := NewScanner(fe, &fakeDemux{fe: fe}, nil)

	_, err := s.Scan(context.Background(), &dvbfile.File{Entries: []*dvbfile.Entry{
		entry(t, dvbfile.SysDVBT), entry(t, dvbfile.SysDVBT),
	}})
	assert.True(t, errors.Is(err, ErrDevice))
	assert.Empty(t, fe.committed)
}

func TestScan_Cancelled(t *testing.T) {
	fe := newFakeFrontend()
	s := NewScanner(fe, &fakeDemux{fe: fe}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := s.Scan(ctx, &dvbfile.File{Entries: []*dvbfile.Entry{entry(t, dvbfile.SysDVBT)}})
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Zero(t, out.Len())
}

func TestRun_WritesOutput(t *testing.T) {
	fe := newFakeFrontend()
	dmx := &fakeDemux{fe: fe, sets: map[uint32]*si.ServiceSet{474000000: sdtSet(16, "Das Erste")}}
	s := NewScanner(fe, dmx, nil)
	s.PollInterval = 0

	path := filepath.Join(t.TempDir(), "channels.conf")
	_, err := s.Run(context.Background(), &dvbfile.File{Entries: []*dvbfile.Entry{
		entry(t, dvbfile.SysDVBT, dvbfile.PropValue{ID: dvbfile.PropFrequency, Value: 474000000}),
	}}, path)
	require.NoError(t, err)

	back, err := dvbfile.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, 1, back.Len())
	assert.Equal(t, "Das Erste", back.Entries[0].Channel)
	assert.Equal(t, uint16(16), back.Entries[0].ServiceID)
}
