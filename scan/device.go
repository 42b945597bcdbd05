// Package scan tunes a frontend through a list of transponders and
// collects the services found on each of them.
package scan

import (
	"context"
	"errors"
	"fmt"

	"dvbscan/dvbfile"
	"dvbscan/si"
)

var (
	// ErrDevice is a frontend or demux failure that stops the scan.
	ErrDevice = errors.New("device error")
	// ErrLockTimeout means the frontend never reported a lock.
	ErrLockTimeout = errors.New("no signal lock")
	// ErrTryAgain is returned while the frontend is not ready yet.
	ErrTryAgain = si.ErrTryAgain
)

// Status is the frontend status bit set.
type Status uint32

const (
	HasSignal  Status = 0x01
	HasCarrier Status = 0x02
	HasViterbi Status = 0x04
	HasSync    Status = 0x08
	HasLock    Status = 0x10
	TimedOut   Status = 0x20
	Reinit     Status = 0x40
)

// Stats is one reading of the frontend signal statistics. Signal and SNR
// are percentages.
type Stats struct {
	Status      Status
	Signal      uint32
	SNR         uint32
	BER         uint32
	Uncorrected uint32
}

func (s Stats) String() string {
	return fmt.Sprintf("status %02x | signal %3d%% | snr %3d%% | ber %d | unc %d",
		uint32(s.Status), s.Signal, s.SNR, s.BER, s.Uncorrected)
}

// Frontend is the tuner half of a receiver.
type Frontend interface {
	si.LiveSource
	// SetCompatDeliverySystem selects sys, or the closest system the
	// hardware supports.
	SetCompatDeliverySystem(sys dvbfile.DeliverySystem) error
	// DeliverySystem is the system currently selected.
	DeliverySystem() dvbfile.DeliverySystem
	// Store queues a parameter for the next Commit.
	Store(id dvbfile.Property, value uint32)
	Commit() error
	Stats() (Stats, error)
}

// Demux captures the service information tables of the tuned transponder.
type Demux interface {
	Capture(ctx context.Context) (*si.ServiceSet, error)
}
