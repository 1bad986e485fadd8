// Copyright 2020-2021 The OS-NVR Authors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation; version 2.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package ffmpeg

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"
)

// LogFunc receives one line of process output.
type LogFunc func(string)

// Process interface only used for testing.
type Process interface {
	// Timeout sets the time to wait for the process
	// to exit after a interrupt before it's killed.
	Timeout(time.Duration) Process

	StdoutLogger(LogFunc) Process
	StderrLogger(LogFunc) Process

	// Start starts the process and waits for it to exit.
	Start(ctx context.Context) error
}

// process manages subprocesses.
type process struct {
	timeout time.Duration
	cmd     *exec.Cmd

	stdoutLogger LogFunc
	stderrLogger LogFunc

	done chan struct{}
}

// NewProcessFunc is used for mocking.
type NewProcessFunc func(*exec.Cmd) Process

// NewProcess return process.
func NewProcess(cmd *exec.Cmd) Process {
	return process{
		timeout: 1000 * time.Millisecond,
		cmd:     cmd,
	}
}

func (p process) Timeout(timeout time.Duration) Process {
	p.timeout = timeout
	return p
}

func (p process) StdoutLogger(l LogFunc) Process {
	p.stdoutLogger = l
	return p
}

func (p process) StderrLogger(l LogFunc) Process {
	p.stderrLogger = l
	return p
}

func attachLogger(
	wg *sync.WaitGroup,
	l LogFunc,
	label string,
	stdPipe func() (io.ReadCloser, error),
) error {
	pipe, err := stdPipe()
	if err != nil {
		return err
	}
	scanner := bufio.NewScanner(pipe)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for scanner.Scan() {
			l(label + ": " + scanner.Text())
		}
	}()
	return nil
}

// Start starts process with context.
func (p process) Start(ctx context.Context) error {
	// The pipes must be drained before calling Wait.
	var wg sync.WaitGroup
	if p.stdoutLogger != nil {
		if err := attachLogger(&wg, p.stdoutLogger, "stdout", p.cmd.StdoutPipe); err != nil {
			return err
		}
	}
	if p.stderrLogger != nil {
		if err := attachLogger(&wg, p.stderrLogger, "stderr", p.cmd.StderrPipe); err != nil {
			return err
		}
	}

	if err := p.cmd.Start(); err != nil {
		return err
	}

	p.done = make(chan struct{})
	go func() {
		select {
		case <-p.done:
		case <-ctx.Done():
			p.stop()
		}
	}()

	wg.Wait()
	err := p.cmd.Wait()
	close(p.done)

	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Note, can't use CommandContext to stop process as it would
// kill the process before it has a chance to exit on its own.
func (p process) stop() {
	p.cmd.Process.Signal(os.Interrupt) //nolint:errcheck

	select {
	case <-p.done:
	case <-time.After(p.timeout):
		p.cmd.Process.Signal(os.Kill) //nolint:errcheck
		<-p.done
	}
}

// FFMPEG stores ffmpeg binary location.
type FFMPEG struct {
	bin      string
	logLevel string
}

// New returns FFMPEG.
func New(bin string, logLevel string) *FFMPEG {
	return &FFMPEG{bin: bin, logLevel: logLevel}
}

// LogLevel returns the value passed to -loglevel.
func (f *FFMPEG) LogLevel() string {
	return f.logLevel
}

// RemuxArgs returns the arguments that copy every stream
// of input into output without re-encoding. The container
// is guessed from the output extension if format is empty.
func (f *FFMPEG) RemuxArgs(input, output, format string) []string {
	args := []string{
		"-y",
		"-loglevel", f.logLevel,
		"-i", input,
		"-map", "0",
		"-c", "copy",
	}
	if format != "" {
		args = append(args, "-f", format)
	}
	return append(args, output)
}

// RemuxCommand returns the remux command.
func (f *FFMPEG) RemuxCommand(input, output, format string) *exec.Cmd {
	return exec.Command(f.bin, f.RemuxArgs(input, output, format)...)
}
