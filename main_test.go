package main

import (
	"context"
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"

	"dvbscan/dvbfile"
	"dvbscan/scan"
	"dvbscan/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("dvbscan", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func TestParseFlags(t *testing.T) {
	opts, err := parseFlags(testFlagSet(), []string{"-a", "1", "-v", "-v", "-z", "-s", "DVBT", "-G", "-N", "-t", "3", "initial.conf"})
	require.NoError(t, err)

	assert.Equal(t, "initial.conf", opts.input)
	assert.Equal(t, 2, opts.verbose)
	assert.Equal(t, 1, opts.config.Adapter)
	assert.Equal(t, "ZAP", opts.config.InputFormat)
	assert.Equal(t, "DVBT", opts.config.DeliverySystem)
	assert.Equal(t, scan.DefaultOutput, opts.config.Output)
	assert.Equal(t, 3, opts.config.LockTimeout)
	assert.True(t, opts.config.GetDetected)
	assert.True(t, opts.config.FollowNIT)
}

func TestParseFlags_Defaults(t *testing.T) {
	opts, err := parseFlags(testFlagSet(), []string{"-d", "2", "initial.conf"})
	require.NoError(t, err)

	assert.Equal(t, 2, opts.config.Demux)
	assert.Equal(t, scan.DefaultLockTimeout, opts.config.LockTimeout)
	assert.Equal(t, "DVBV5", opts.config.InputFormat)
}

func TestParseFlags_Errors(t *testing.T) {
	_, err := parseFlags(testFlagSet(), nil)
	assert.Error(t, err, "no initial file")

	_, err = parseFlags(testFlagSet(), []string{"-x", "initial.conf"})
	assert.Error(t, err)

	_, err = parseFlags(testFlagSet(), []string{"-c", filepath.Join(t.TempDir(), "missing.yaml"), "initial.conf"})
	assert.Error(t, err)
}

func TestParseFlags_ConfigFile(t *testing.T) {
	config := ScanConfig{InputFormat: "CHANNEL", Output: "from-config.conf", LockTimeout: 5, FollowNIT: true}
	path := filepath.Join(t.TempDir(), "dvbscan.yaml")
	require.NoError(t, config.WriteConfig(path))

	// only flags given on the command line override the file
	opts, err := parseFlags(testFlagSet(), []string{"-c", path, "-t", "2", "initial.conf"})
	require.NoError(t, err)
	assert.Equal(t, "CHANNEL", opts.config.InputFormat)
	assert.Equal(t, "from-config.conf", opts.config.Output)
	assert.Equal(t, 2, opts.config.LockTimeout)
	assert.True(t, opts.config.FollowNIT)
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	capture := writeCapture(t, "mux.ts", serviceCapture(0x1001, 0x2b, "arte"))
	input := filepath.Join(dir, "initial.conf")
	require.NoError(t, os.WriteFile(input, []byte(`[CHANNEL]
	DELIVERY_SYSTEM = DVBT
	FREQUENCY = 474000000
	BANDWIDTH_HZ = 8000000
`), 0644))

	opts := &options{input: input, config: ScanConfig{
		InputFormat: "DVBV5",
		Output:      filepath.Join(dir, "dvb_channels.conf"),
		LockTimeout: 1,
		Database:    filepath.Join(dir, "channels.db"),
		Tuners: []VirtualTunerConfig{{
			Name:            "virtual",
			DeliverySystems: []string{"DVBT"},
			Transponders: []TransponderConfig{
				{Frequency: 474000000, DeliverySystem: "DVBT", Capture: capture, Signal: 80, SNR: 50},
			},
		}},
	}}

	found, err := run(context.Background(), opts, nil)
	require.NoError(t, err)
	require.Equal(t, 1, found.Len())

	written, err := dvbfile.ReadFile(opts.config.Output)
	require.NoError(t, err)
	require.Equal(t, 1, written.Len())
	ch := written.Entries[0]
	assert.Equal(t, "arte", ch.Channel)
	assert.Equal(t, uint16(0x2b), ch.ServiceID)
	freq, _ := ch.Retrieve(dvbfile.PropFrequency)
	assert.Equal(t, uint32(474000000), freq)
	bw, _ := ch.Retrieve(dvbfile.PropBandwidthHz)
	assert.Equal(t, uint32(8000000), bw)

	db, err := store.Open(opts.config.Database)
	require.NoError(t, err)
	defer db.Close() //nolint: errcheck
	rows, err := db.Channels()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "arte", rows[0].Name)
}

func TestRun_Errors(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "initial.conf")
	require.NoError(t, os.WriteFile(input, []byte("[CHANNEL]\n\tFREQUENCY = 474000000\n"), 0644))

	tests := []struct {
		name   string
		config ScanConfig
	}{
		{"unknown format", ScanConfig{InputFormat: "XML"}},
		{"unknown delivery system", ScanConfig{InputFormat: "DVBV5", DeliverySystem: "DVB-X"}},
		{"no tuner", ScanConfig{InputFormat: "DVBV5"}},
		{"bad tuner", ScanConfig{InputFormat: "DVBV5", Tuners: []VirtualTunerConfig{{DeliverySystems: []string{"nope"}}}}},
		{"no demux", ScanConfig{InputFormat: "DVBV5", Demux: 1, Tuners: []VirtualTunerConfig{{Name: "virtual"}}}},
		{"demux attached twice", ScanConfig{InputFormat: "DVBV5", Tuners: []VirtualTunerConfig{{Name: "one"}, {Name: "two", Frontend: 1}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(context.Background(), &options{input: input, config: tt.config}, nil)
			assert.Error(t, err)
		})
	}

	_, err := run(context.Background(), &options{input: filepath.Join(dir, "missing.conf"), config: ScanConfig{InputFormat: "DVBV5"}}, nil)
	assert.Error(t, err)
}
