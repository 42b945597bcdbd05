// Package capture decodes the service information tables of a captured
// MPEG transport stream.
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"dvbscan/si"

	"github.com/asticode/go-astits"
	"go.uber.org/zap"
)

// Harvest reads a transport stream capture and returns the tables found in it.
func Harvest(ctx context.Context, r io.Reader, logger *zap.Logger) (*si.ServiceSet, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ts, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading capture: %w", err)
	}

	set, err := demuxTables(ctx, ts)
	if err != nil {
		return nil, err
	}
	if set.VCT, err = decodeVCT(ts); err != nil {
		return nil, fmt.Errorf("decoding VCT: %w", err)
	}

	logger.Debug("tables captured",
		zap.Int("programs", len(set.Programs)),
		zap.Bool("sdt", set.SDT != nil),
		zap.Bool("nit", set.NIT != nil),
		zap.Bool("vct", set.VCT != nil))
	return set, nil
}

func demuxTables(ctx context.Context, ts []byte) (*si.ServiceSet, error) {
	set := &si.ServiceSet{}
	pmts := map[uint16]*si.PMT{}
	var sdts []*astits.SDTData
	patSeen := false

	dmx := astits.NewDemuxer(ctx, bytes.NewReader(ts))
	for {
		d, err := dmx.NextData()
		if err != nil {
			if errors.Is(err, astits.ErrNoMorePackets) {
				break
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("demuxing capture: %w", err)
		}
		switch {
		case d.PAT != nil && !patSeen:
			patSeen = true
			set.TransportStreamID = d.PAT.TransportStreamID
			for _, p := range d.PAT.Programs {
				if p.ProgramNumber == 0 {
					continue // NIT pointer
				}
				set.Programs = append(set.Programs, si.Program{ServiceID: p.ProgramNumber, PMTPID: p.ProgramMapID})
			}
		case d.PMT != nil:
			if _, ok := pmts[d.PMT.ProgramNumber]; !ok {
				pmts[d.PMT.ProgramNumber] = convertPMT(d.PMT)
			}
		case d.SDT != nil:
			sdts = append(sdts, d.SDT)
		case d.NIT != nil && set.NIT == nil:
			set.NIT = convertNIT(d.NIT)
		}
	}

	for i := range set.Programs {
		set.Programs[i].PMT = pmts[set.Programs[i].ServiceID]
	}
	// the SDT of the tuned transport stream, the first one if the PAT is missing
	for _, s := range sdts {
		if !patSeen || s.TransportStreamID == set.TransportStreamID {
			set.SDT = convertSDT(s)
			break
		}
	}
	return set, nil
}

func convertPMT(p *astits.PMTData) *si.PMT {
	pmt := &si.PMT{ProgramNumber: p.ProgramNumber, PCRPID: p.PCRPID}
	for _, es := range p.ElementaryStreams {
		pmt.Streams = append(pmt.Streams, si.Stream{
			Type:        uint8(es.StreamType),
			PID:         es.ElementaryPID,
			Descriptors: convertDescriptors(es.ElementaryStreamDescriptors),
		})
	}
	return pmt
}

func convertSDT(s *astits.SDTData) *si.SDT {
	sdt := &si.SDT{TransportStreamID: s.TransportStreamID, OriginalNetworkID: s.OriginalNetworkID}
	for _, svc := range s.Services {
		sdt.Services = append(sdt.Services, si.SDTService{
			ServiceID:   svc.ServiceID,
			Descriptors: convertDescriptors(svc.Descriptors),
		})
	}
	return sdt
}

func convertNIT(n *astits.NITData) *si.NIT {
	nit := &si.NIT{NetworkID: n.NetworkID, Descriptors: convertDescriptors(n.NetworkDescriptors)}
	for _, ts := range n.TransportStreams {
		nit.Transports = append(nit.Transports, si.NITTransport{
			TransportStreamID: ts.TransportStreamID,
			OriginalNetworkID: ts.OriginalNetworkID,
			Descriptors:       convertDescriptors(ts.TransportDescriptors),
		})
	}
	return nit
}

// convertDescriptors keeps the descriptors the extractor understands.
// Tags astits has no parser for arrive as user defined or unknown bytes.
func convertDescriptors(ds []*astits.Descriptor) []si.Descriptor {
	var out []si.Descriptor
	for _, d := range ds {
		sd := si.Descriptor{Tag: d.Tag}
		switch d.Tag {
		case si.TagService:
			if d.Service != nil {
				sd.Service = &si.ServiceInfo{
					Type:     d.Service.Type,
					Provider: decodeText(d.Service.Provider),
					Name:     decodeText(d.Service.Name),
				}
			}
		case si.TagLogicalChannel:
			sd.LogicalChannels = parseLCN(rawDescriptor(d))
		case si.TagTSInformation:
			sd.TSInfo = parseTSInfo(rawDescriptor(d))
		case si.TagSatelliteDelivery, si.TagCableDelivery, si.TagTerrestrialDelivery:
			sd.Delivery = parseDelivery(d.Tag, rawDescriptor(d))
		}
		out = append(out, sd)
	}
	return out
}

func rawDescriptor(d *astits.Descriptor) []byte {
	if d.UserDefined != nil {
		return d.UserDefined
	}
	if d.Unknown != nil {
		return d.Unknown.Content
	}
	return nil
}
