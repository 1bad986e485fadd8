// Package ffmock provides mock processes.
package ffmock

import (
	"context"
	"errors"
	"os/exec"
	"time"

	"ipcamconv/pkg/ffmpeg"
)

// ErrMock is returned by failing mock processes.
var ErrMock = errors.New("mock")

// MockProcessConfig ProcessMocker config.
type MockProcessConfig struct {
	ReturnErr bool
	Sleep     time.Duration

	// Lines sent to the stderr logger.
	Stderr []string

	// Called with the command when the process is created.
	OnNew func(*exec.Cmd)
}

// NewProcessMocker creates process mocker from config.
func NewProcessMocker(c MockProcessConfig) ffmpeg.NewProcessFunc {
	return func(cmd *exec.Cmd) ffmpeg.Process {
		if c.OnNew != nil {
			c.OnNew(cmd)
		}
		return mockProcess{c: c}
	}
}

type mockProcess struct {
	c            MockProcessConfig
	stderrLogger ffmpeg.LogFunc
}

func (m mockProcess) Timeout(time.Duration) ffmpeg.Process {
	return m
}

func (m mockProcess) StdoutLogger(ffmpeg.LogFunc) ffmpeg.Process {
	return m
}

func (m mockProcess) StderrLogger(l ffmpeg.LogFunc) ffmpeg.Process {
	m.stderrLogger = l
	return m
}

func (m mockProcess) Start(ctx context.Context) error {
	if m.stderrLogger != nil {
		for _, line := range m.c.Stderr {
			m.stderrLogger("stderr: " + line)
		}
	}
	if m.c.Sleep != 0 {
		select {
		case <-time.After(m.c.Sleep):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if m.c.ReturnErr {
		return ErrMock
	}
	return nil
}

// NewProcessNil returns nil.
var NewProcessNil = NewProcessMocker(MockProcessConfig{})

// NewProcessErr returns error.
var NewProcessErr = NewProcessMocker(MockProcessConfig{
	ReturnErr: true,
})
