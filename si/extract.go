package si

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"dvbscan/dvbfile"

	"go.uber.org/zap"
)

var (
	// ErrServiceNotFound means the PAT has no program for a service. The
	// service is skipped.
	ErrServiceNotFound = errors.New("service not found in PAT")
	// ErrNoServiceTable means neither a VCT nor an SDT was captured.
	ErrNoServiceTable = errors.New("no SDT or VCT table")
	// ErrTryAgain is returned by a LiveSource that is not ready yet.
	ErrTryAgain = errors.New("resource temporarily unavailable")
)

// LiveContext is the satellite equipment setup of the frontend a service
// was found on.
type LiveContext struct {
	SatNumber  int
	FreqBPF    uint32
	DiseqcWait uint32
	LNB        string
}

// LiveSource is the frontend the tables were captured from.
type LiveSource interface {
	LiveContext() LiveContext
	// Refresh reads the tuning parameters back from the hardware.
	// It may return ErrTryAgain.
	Refresh() error
	// Properties returns the current tuning parameters.
	Properties() []dvbfile.PropValue
}

// TransponderResolver adds entries for transponders announced in the
// captured tables.
type TransponderResolver interface {
	UpdateTransponders(file *dvbfile.File, set *ServiceSet, current *dvbfile.Entry) error
}

// Extractor builds channel entries out of a ServiceSet.
type Extractor struct {
	Live                LiveSource
	IncludeLive         bool
	ResolveTransponders bool
	Transponders        TransponderResolver
	RetryInterval       time.Duration
	Logger              *zap.Logger
}

// NewExtractor returns an extractor reading tuning data from live.
func NewExtractor(live LiveSource, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		Live:          live,
		Transponders:  NITTransponders{},
		RetryInterval: 100 * time.Millisecond,
		Logger:        logger,
	}
}

func (x *Extractor) logger() *zap.Logger {
	if x.Logger == nil {
		return zap.NewNop()
	}
	return x.Logger
}

var videoTypes = map[uint8]bool{0x01: true, 0x02: true, 0x1b: true}

var audioTypes = map[uint8]bool{0x03: true, 0x04: true, 0x0f: true, 0x11: true, 0x81: true}

// ClassifyStreams sorts the PMT streams into the entry's video, audio and
// other PID lists. Private data streams count as audio when they carry an
// AC-3 or E-AC-3 descriptor.
func ClassifyStreams(entry *dvbfile.Entry, pmt *PMT) {
	for _, s := range pmt.Streams {
		switch {
		case videoTypes[s.Type]:
			entry.VideoPIDs = append(entry.VideoPIDs, s.PID)
		case audioTypes[s.Type]:
			entry.AudioPIDs = append(entry.AudioPIDs, s.PID)
		case (s.Type == 0x05 || s.Type == 0x06) &&
			(Find(s.Descriptors, TagAC3) != nil || Find(s.Descriptors, TagEnhancedAC3) != nil):
			entry.AudioPIDs = append(entry.AudioPIDs, s.PID)
		default:
			entry.OtherPIDs = append(entry.OtherPIDs, dvbfile.ElementaryPID{Type: s.Type, PID: s.PID})
		}
	}
	sort.SliceStable(entry.OtherPIDs, func(i, j int) bool {
		a, b := entry.OtherPIDs[i], entry.OtherPIDs[j]
		if a.Type != b.Type {
			return a.Type > b.Type
		}
		return a.PID > b.PID
	})
}

// VirtualChannel returns the channel number the NIT assigns to a service,
// from LCN descriptors first and then from TS information descriptors.
// The label is "<number>.<index>" where index is the position inside the
// descriptor.
func VirtualChannel(nit *NIT, serviceID uint16) (string, bool) {
	if nit == nil {
		return "", false
	}
	all := nit.Descriptors
	for _, t := range nit.Transports {
		all = append(all[:len(all):len(all)], t.Descriptors...)
	}
	for _, d := range FindAll(all, TagLogicalChannel) {
		for i, lcn := range d.LogicalChannels {
			if lcn.ServiceID == serviceID {
				return fmt.Sprintf("%d.%d", lcn.Number, i), true
			}
		}
	}
	for _, d := range FindAll(all, TagTSInformation) {
		if d.TSInfo == nil {
			continue
		}
		for i, sid := range d.TSInfo.ServiceIDs {
			if sid == serviceID {
				return fmt.Sprintf("%d.%d", d.TSInfo.RemoteControlKeyID, i), true
			}
		}
	}
	return "", false
}

// BuildEntry appends one entry for serviceID to file. It returns
// ErrServiceNotFound when the PAT has no such program.
func (x *Extractor) BuildEntry(file *dvbfile.File, serviceID uint16, name, vchannel string, set *ServiceSet) error {
	log := x.logger()
	pmt := set.PMT(serviceID)
	if pmt == nil {
		log.Warn("service not found on PAT", zap.Uint16("service_id", serviceID), zap.String("name", name))
		return fmt.Errorf("service %d: %w", serviceID, ErrServiceNotFound)
	}

	entry := dvbfile.NewEntry()
	entry.Channel = name
	entry.ServiceID = serviceID
	entry.VChannel = vchannel
	ClassifyStreams(entry, pmt)

	if x.Live != nil {
		lc := x.Live.LiveContext()
		entry.SatNumber = lc.SatNumber
		entry.FreqBPF = lc.FreqBPF
		entry.DiseqcWait = lc.DiseqcWait
		entry.LNB = lc.LNB

		if x.IncludeLive {
			x.refresh()
		}
		for _, p := range x.Live.Properties() {
			if err := entry.Store(p.ID, p.Value); err != nil {
				return err
			}
		}
	}
	file.Append(entry)

	if x.ResolveTransponders && x.Transponders != nil {
		if err := x.Transponders.UpdateTransponders(file, set, entry); err != nil {
			log.Warn("updating transponders failed", zap.Error(err))
		}
	}
	return nil
}

// refresh retries until the frontend hands out its parameters. A hard
// error is logged and the cached parameters are used.
func (x *Extractor) refresh() {
	for {
		err := x.Live.Refresh()
		if err == nil {
			return
		}
		if !errors.Is(err, ErrTryAgain) {
			x.logger().Error("reading live tuning parameters failed", zap.Error(err))
			return
		}
		time.Sleep(x.RetryInterval)
	}
}

// BuildFile appends an entry for every service announced in set.
func (x *Extractor) BuildFile(file *dvbfile.File, set *ServiceSet) error {
	log := x.logger()
	if set.VCT != nil {
		for _, ch := range set.VCT.Channels {
			label := fmt.Sprintf("%d.%d", ch.Major, ch.Minor)
			if err := x.BuildEntry(file, ch.ProgramNumber, ch.ShortName, label, set); err != nil && !errors.Is(err, ErrServiceNotFound) {
				return err
			}
		}
		if set.SDT == nil {
			return nil
		}
	}
	if set.SDT == nil {
		log.Error("no SDT table, can't store channels")
		return ErrNoServiceTable
	}

	for _, svc := range set.SDT.Services {
		name := fmt.Sprintf("#%d", svc.ServiceID)
		if d := Find(svc.Descriptors, TagService); d != nil && d.Service != nil {
			if d.Service.Name != "" {
				name = d.Service.Name
			}
			log.Debug("service",
				zap.Uint16("service_id", svc.ServiceID),
				zap.String("name", name),
				zap.String("provider", d.Service.Provider),
				zap.String("type", ServiceTypeName(d.Service.Type)))
		}
		label, _ := VirtualChannel(set.NIT, svc.ServiceID)
		if err := x.BuildEntry(file, svc.ServiceID, name, label, set); err != nil && !errors.Is(err, ErrServiceNotFound) {
			return err
		}
	}
	return nil
}
