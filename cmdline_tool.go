package main

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"

	"github.com/Comcast/gots/packet"
	"go.uber.org/zap"
)

// these are paremeters to launch a command line tool
type CommandLineToolConfig struct {
	// command to execute for the tool
	Command string `yaml:"command"`
	// arguments to the command, ${name} is replaced by the tuning parameters
	Args string `yaml:"args"`
	// working directory
	WorkDir string `yaml:"workdir"`
	// how to exit tool send this string to stdin to exit, if empty exits by killing process
	ExitCommand string `yaml:"exitcommand"`
	// don't log stderr
	MuteStdErr bool `yaml:"mutestderr"`
}

// object to execute an external command tool writing a transport stream on its standard output
type CommandLineTool struct {
	// internal parameters for the tool
	config CommandLineToolConfig
	logger *zap.Logger

	// command to call the tool
	tool       *exec.Cmd
	pipestdin  io.WriteCloser
	pipestdout io.ReadCloser
	pipestderr io.ReadCloser

	// the golang channel to output MPEG TS Packets
	outChannel MpegTSChannel
	// closed by Stop to release the reader
	done     chan struct{}
	stopOnce *sync.Once
	// pipe readers, Wait closes the pipes so they must be done first
	readers *sync.WaitGroup
}

// regexep to parse argument string (to isolate quoted string)
var argsRegexp = regexp.MustCompile("'.+'|\".+\"|\\S+")

// create a new command line tool object with given configuration
func CreateCommandLineTool(config CommandLineToolConfig, logger *zap.Logger) *CommandLineTool {
	t := new(CommandLineTool)
	t.config = config
	t.logger = logger
	if t.logger == nil {
		t.logger = zap.NewNop()
	}
	t.logger = t.logger.With(zap.String("tool", config.Command))

	// create working directory if it does not exists
	if t.config.WorkDir != "" {
		if err := os.MkdirAll(t.config.WorkDir, 0770); err != nil {
			t.logger.Warn("cannot create working directory", zap.String("dir", t.config.WorkDir), zap.Error(err))
		}
	}

	return t
}

// ======================== Various handler to process data output
// read error output from tool and log it line by line
func (t *CommandLineTool) handleStdReader(reader io.Reader) {
	bufreader := bufio.NewReader(reader)

	for {
		str, err := bufreader.ReadString('\n')
		if len(str) > 0 && !t.config.MuteStdErr {
			t.logger.Debug(strings.TrimRight(str, "\r\n"))
		}
		if err != nil {
			break
		}
	}
}

// handle TS packet coming from std out
func (t *CommandLineTool) handleTSReader(out MpegTSChannel) {
	defer close(out)

	// once stopped keep reading so the tool never blocks on a full pipe
	stopped := false
	for {
		var readpacket packet.Packet

		// a partial packet at the end of the stream is dropped
		if _, err := io.ReadFull(t.pipestdout, readpacket[:]); err != nil {
			return
		}
		if stopped {
			continue
		}

		select {
		case out <- readpacket:
		case <-t.done:
			stopped = true
		}
	}
}

// expand the argument string with params
func (t *CommandLineTool) expandArgs(params map[string]string) []string {
	args := os.Expand(t.config.Args, func(s string) string {
		switch s {
		case "_workdir_":
			return t.config.WorkDir
		default:
			return params[s]
		}
	})

	// this will take in account quote around arguments
	return argsRegexp.FindAllString(args, -1)
}

// run the tool with given parameters (as a string map)
func (t *CommandLineTool) Start(params map[string]string) error {
	var err error

	args := t.expandArgs(params)
	t.logger.Info("running command", zap.Strings("args", args))

	t.tool = exec.Command(t.config.Command, args...)

	// set directory if present
	if t.config.WorkDir != "" {
		t.tool.Dir = t.config.WorkDir
	}

	// get stdin to send exit command
	if t.pipestdin, err = t.tool.StdinPipe(); err != nil {
		return err
	}
	// get output
	if t.pipestdout, err = t.tool.StdoutPipe(); err != nil {
		return err
	}
	// get error output
	if t.pipestderr, err = t.tool.StderrPipe(); err != nil {
		return err
	}

	// run the tool
	if err = t.tool.Start(); err != nil {
		return err
	}

	t.done = make(chan struct{})
	t.stopOnce = new(sync.Once)
	t.outChannel = make(MpegTSChannel, 128)

	t.readers = new(sync.WaitGroup)
	t.readers.Add(2)
	go func() {
		defer t.readers.Done()
		t.handleTSReader(t.outChannel)
	}()
	go func() {
		defer t.readers.Done()
		t.handleStdReader(t.pipestderr)
	}()

	return nil
}

// return output channel, closed when the tool stops writing
func (t *CommandLineTool) GetOutputPipe() MpegTSChannel {
	return t.outChannel
}

// stop the tool
func (t *CommandLineTool) Stop() {
	if t.tool == nil || t.tool.Process == nil || t.stopOnce == nil {
		return
	}

	t.stopOnce.Do(func() {
		t.logger.Debug("stopping command")
		close(t.done)

		// if an exit command is defined, write it on stdin
		if t.config.ExitCommand != "" {
			t.pipestdin.Write([]byte(t.config.ExitCommand)) //nolint: errcheck
			t.pipestdin.Close()                             //nolint: errcheck
		} else {
			t.tool.Process.Kill() //nolint: errcheck
		}

		// both pipes hit EOF once the tool is gone
		t.readers.Wait()

		// wait for tool to stop
		if err := t.tool.Wait(); err != nil {
			t.logger.Debug("command exited", zap.Error(err))
		}

		t.logger.Debug("command stopped")
	})
}

// run the tool and collect at most maxpackets packets of its output
func (t *CommandLineTool) Capture(ctx context.Context, params map[string]string, maxpackets int) ([]byte, error) {
	if err := t.Start(params); err != nil {
		return nil, err
	}
	defer t.Stop()

	var ts bytes.Buffer
	out := t.GetOutputPipe()
	for n := 0; n < maxpackets; n++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case pkt, ok := <-out:
			if !ok {
				// tool ended early
				return ts.Bytes(), nil
			}
			ts.Write(pkt[:])
		}
	}

	return ts.Bytes(), nil
}
