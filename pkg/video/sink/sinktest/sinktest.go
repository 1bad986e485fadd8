// Package sinktest provides a sink that records everything it receives.
package sinktest

import (
	"errors"
	"fmt"

	"ipcamconv/pkg/video/sink"
)

// Packet is a copy of a delivered packet.
type Packet struct {
	Data []byte
	PTS  int64
}

// Recorder implements sink.Sink.
type Recorder struct {
	VideoTimescale uint32
	AudioTimescale uint32

	Config    *sink.Config
	Video     []Packet
	Audio     []Packet
	Finalized bool

	// Returned from the corresponding method when set.
	ConfigureErr error
	DeliverErr   error
	FinalizeErr  error
}

// NewRecorder returns a recorder with millisecond timescales.
func NewRecorder() *Recorder {
	return &Recorder{
		VideoTimescale: 1000,
		AudioTimescale: 1000,
	}
}

// ErrUnexpectedCall is returned when the sink contract is violated.
var ErrUnexpectedCall = errors.New("unexpected call")

// Configure implements sink.Sink.
func (r *Recorder) Configure(c sink.Config) (sink.Handles, error) {
	if r.ConfigureErr != nil {
		return sink.Handles{}, fmt.Errorf("%w: %v", sink.ErrConfigure, r.ConfigureErr)
	}
	if r.Config != nil {
		return sink.Handles{}, fmt.Errorf("configure called twice: %w", ErrUnexpectedCall)
	}
	r.Config = &c
	return sink.Handles{
		VideoTimescale: r.VideoTimescale,
		AudioTimescale: r.AudioTimescale,
		HasAudio:       c.Audio != nil,
	}, nil
}

// DeliverVideo implements sink.Sink.
func (r *Recorder) DeliverVideo(au []byte, pts int64) error {
	if err := r.checkDelivery(); err != nil {
		return err
	}
	r.Video = append(r.Video, Packet{Data: append([]byte(nil), au...), PTS: pts})
	return nil
}

// DeliverAudio implements sink.Sink.
func (r *Recorder) DeliverAudio(samples []byte, pts int64) error {
	if err := r.checkDelivery(); err != nil {
		return err
	}
	if r.Config.Audio == nil {
		return fmt.Errorf("audio without audio stream: %w", ErrUnexpectedCall)
	}
	r.Audio = append(r.Audio, Packet{Data: append([]byte(nil), samples...), PTS: pts})
	return nil
}

func (r *Recorder) checkDelivery() error {
	if r.DeliverErr != nil {
		return fmt.Errorf("%w: %v", sink.ErrDelivery, r.DeliverErr)
	}
	if r.Config == nil {
		return fmt.Errorf("delivery before configure: %w", ErrUnexpectedCall)
	}
	if r.Finalized {
		return fmt.Errorf("delivery after finalize: %w", ErrUnexpectedCall)
	}
	return nil
}

// Finalize implements sink.Sink.
func (r *Recorder) Finalize() error {
	if r.FinalizeErr != nil {
		return fmt.Errorf("%w: %v", sink.ErrFinalize, r.FinalizeErr)
	}
	r.Finalized = true
	return nil
}
