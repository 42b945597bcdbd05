package scan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dvbscan/dvbfile"
	"dvbscan/si"

	"go.uber.org/zap"
)

// DefaultOutput is where Run writes the channels when no path is given.
const DefaultOutput = "dvb_channels.conf"

// Scanner drives one frontend/demux pair through a channel file.
type Scanner struct {
	Frontend  Frontend
	Demux     Demux
	Extractor *si.Extractor
	Metrics   *Metrics
	Logger    *zap.Logger

	// LockTimeout is in seconds, polled PollsPerSecond times a second.
	LockTimeout  int
	PollInterval time.Duration
}

// DefaultLockTimeout is the lock timeout in seconds.
const DefaultLockTimeout = 4

// PollsPerSecond is the number of status reads per second of lock timeout.
const PollsPerSecond = 10

// NewScanner returns a scanner with the usual 4s lock timeout and 100ms
// polling. The extractor reads live data from fe.
func NewScanner(fe Frontend, dmx Demux, logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "scan"))
	return &Scanner{
		Frontend:     fe,
		Demux:        dmx,
		Extractor:    si.NewExtractor(fe, logger),
		Logger:       logger,
		LockTimeout:  DefaultLockTimeout,
		PollInterval: time.Second / PollsPerSecond,
	}
}

// Run scans every entry of input and writes what was found to output
// in the native format.
func (s *Scanner) Run(ctx context.Context, input *dvbfile.File, output string) (*dvbfile.File, error) {
	found, err := s.Scan(ctx, input)
	if err != nil {
		return found, err
	}
	if output == "" {
		output = DefaultOutput
	}
	if err := dvbfile.WriteFile(output, found); err != nil {
		return found, fmt.Errorf("writing %s: %w", output, err)
	}
	s.Logger.Info("channels written", zap.String("file", output), zap.Int("entries", found.Len()))
	return found, nil
}

// Scan tunes to every entry of input in turn. Entries that fail to tune,
// lock or capture are skipped. Only device errors end the scan early.
func (s *Scanner) Scan(ctx context.Context, input *dvbfile.File) (*dvbfile.File, error) {
	out := &dvbfile.File{}
	for n, entry := range input.Entries {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		freq, _ := entry.Retrieve(dvbfile.PropFrequency)
		log := s.Logger.With(zap.Int("entry", n+1), zap.Uint32("frequency", freq))

		if err := s.Tune(entry); err != nil {
			if errors.Is(err, ErrDevice) {
				return out, err
			}
			log.Warn("can't tune", zap.Error(err))
			s.Metrics.skipped("tune")
			continue
		}
		log.Info("scanning frequency")

		if _, err := s.WaitLock(s.LockTimeout); err != nil {
			log.Warn("skipping transponder", zap.Error(err))
			s.Metrics.skipped("lock")
			continue
		}

		set, err := s.Demux.Capture(ctx)
		if err != nil {
			log.Warn("can't capture tables", zap.Error(err))
			s.Metrics.skipped("capture")
			continue
		}
		s.logServices(log, set)

		before := out.Len()
		if err := s.Extractor.BuildFile(out, set); err != nil {
			log.Warn("can't store channels", zap.Error(err))
		}
		s.Metrics.services(countServices(out.Entries[before:]))
	}
	return out, nil
}

// entries appended for NIT transponders only carry tuning parameters
func countServices(entries []*dvbfile.Entry) int {
	n := 0
	for _, e := range entries {
		if e.ServiceID != 0 {
			n++
		}
	}
	return n
}

// Tune pushes the parameters of entry to the frontend and commits them.
func (s *Scanner) Tune(entry *dvbfile.Entry) error {
	fe := s.Frontend
	if sys, ok := entry.Retrieve(dvbfile.PropDeliverySystem); ok {
		if err := fe.SetCompatDeliverySystem(dvbfile.DeliverySystem(sys)); err != nil {
			return fmt.Errorf("selecting %s: %w", dvbfile.DeliverySystem(sys), err)
		}
	}
	current := fe.DeliverySystem()

	for _, p := range entry.Props() {
		if p.ID == dvbfile.PropDeliverySystem {
			continue
		}
		fe.Store(p.ID, p.Value)

		switch {
		case current == dvbfile.SysISDBT && p.ID == dvbfile.PropCodeRateHP:
			fe.Store(dvbfile.PropISDBTLayerAFEC, p.Value)
			fe.Store(dvbfile.PropISDBTLayerBFEC, p.Value)
			fe.Store(dvbfile.PropISDBTLayerCFEC, p.Value)
		case current == dvbfile.SysISDBT && p.ID == dvbfile.PropModulation:
			fe.Store(dvbfile.PropISDBTLayerAModulation, p.Value)
			fe.Store(dvbfile.PropISDBTLayerBModulation, p.Value)
			fe.Store(dvbfile.PropISDBTLayerCModulation, p.Value)
		case current == dvbfile.SysATSC && p.ID == dvbfile.PropModulation &&
			p.Value != dvbfile.VSB8 && p.Value != dvbfile.VSB16:
			fe.Store(dvbfile.PropDeliverySystem, uint32(dvbfile.SysDVBCAnnexB))
		}
	}
	// stored last so values carried by entry never win
	if current == dvbfile.SysISDBT {
		fe.Store(dvbfile.PropISDBTPartialReception, 0)
		fe.Store(dvbfile.PropISDBTSoundBroadcasting, 0)
		fe.Store(dvbfile.PropISDBTLayerEnabled, 0x07)
	}
	fe.Store(dvbfile.PropInversion, dvbfile.InversionAuto)

	if err := fe.Commit(); err != nil {
		return fmt.Errorf("%w: committing tuning parameters: %v", ErrDevice, err)
	}
	s.Metrics.tuned()
	return nil
}

// WaitLock polls the frontend status timeout*PollsPerSecond times and
// returns as soon as it reports a lock.
func (s *Scanner) WaitLock(timeout int) (Stats, error) {
	var st Stats
	for i := 0; i < timeout*PollsPerSecond; i++ {
		reading, err := s.Frontend.Stats()
		if err != nil {
			s.Logger.Error("reading frontend stats failed", zap.Error(err))
		} else {
			st = reading
			s.Metrics.observe(st)
			s.Logger.Debug(st.String())
			if st.Status&HasLock != 0 {
				s.Logger.Info("locked", zap.Uint32("signal", st.Signal), zap.Uint32("snr", st.SNR))
				s.Metrics.locked()
				return st, nil
			}
		}
		time.Sleep(s.PollInterval)
	}
	return st, ErrLockTimeout
}

func (s *Scanner) logServices(log *zap.Logger, set *si.ServiceSet) {
	if set.VCT != nil {
		for _, ch := range set.VCT.Channels {
			log.Info("virtual channel",
				zap.String("name", ch.ShortName),
				zap.String("channel", fmt.Sprintf("%d.%d", ch.Major, ch.Minor)),
				zap.Uint16("program", ch.ProgramNumber))
		}
	}
	if set.SDT == nil {
		return
	}
	for _, svc := range set.SDT.Services {
		d := si.Find(svc.Descriptors, si.TagService)
		if d == nil || d.Service == nil {
			log.Info("service", zap.Uint16("service_id", svc.ServiceID))
			continue
		}
		log.Info("service",
			zap.Uint16("service_id", svc.ServiceID),
			zap.String("name", d.Service.Name),
			zap.String("provider", d.Service.Provider),
			zap.String("type", si.ServiceTypeName(d.Service.Type)))
	}
}
