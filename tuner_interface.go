package main

import (
	"dvbscan/scan"

	"github.com/Comcast/gots/packet"
)

type MpegTSChannel chan packet.Packet

type Tuner interface {
	// tuning, lock status and live parameters
	scan.Frontend
	// capture of the tables on the tuned transponder
	scan.Demux
	// release the device
	Close() error
}
