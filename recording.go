package main

import (
	"context"
	"errors"
	"math"

	"github.com/samber/lo"
)

// MeterWindowSize is the number of time-domain samples per meter window.
const MeterWindowSize = 1024

// meterScale maps RMS amplitude to a 0-100 percentage. Empirical sensitivity
// tuning inherited from the original meter; changing it changes perceived
// loudness on the bar.
const meterScale = 220

// RecordingSession holds one microphone take: the chunk buffer while
// recording and the assembled clip once stopped. Clip is non-nil only in the
// idle state after at least one stop since the last reset.
type RecordingSession struct {
	State      string
	MeterLevel int

	chunks [][]byte
	clip   []byte
	stops  int
}

// NewRecordingSession returns an idle session with no clip.
func NewRecordingSession() *RecordingSession {
	return &RecordingSession{State: RecorderIdle}
}

// Toggle routes a record request: start when idle, stop when recording.
// Returns the resulting state. A start while recording never produces a
// second concurrent recording.
func (r *RecordingSession) Toggle() string {
	if err := r.Start(); err != nil {
		r.Stop()
	}
	return r.State
}

// Start discards any previous clip and begins collecting chunks. A start
// while a take is already running is rejected and leaves the take intact.
func (r *RecordingSession) Start() error {
	if r.State == RecorderRecording {
		return errors.New(ErrorAlreadyRecording)
	}
	r.clip = nil
	r.chunks = nil
	r.State = RecorderRecording
	return nil
}

// AppendChunk buffers one emitted binary fragment. Empty fragments are
// dropped, matching the dataavailable contract.
func (r *RecordingSession) AppendChunk(data []byte) error {
	if r.State != RecorderRecording {
		return errors.New(ErrorNotRecording)
	}
	if len(data) == 0 {
		return nil
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	r.chunks = append(r.chunks, buf)
	return nil
}

// Stop assembles the buffered chunks into a single clip and returns the
// recorder to idle. No-op when already idle.
func (r *RecordingSession) Stop() {
	if r.State != RecorderRecording {
		return
	}
	r.State = RecorderIdle
	r.MeterLevel = 0
	r.stops++
	r.clip = lo.Flatten(r.chunks)
	r.chunks = nil
}

// Retry discards the current clip and chunk buffer. The caller re-renders
// the "tap to record" prompt.
func (r *RecordingSession) Retry() {
	r.clip = nil
	r.chunks = nil
	r.stops = 0
	r.MeterLevel = 0
	r.State = RecorderIdle
}

// HasClip reports whether a finished clip is available for playback or
// evaluation.
func (r *RecordingSession) HasClip() bool {
	return r.State == RecorderIdle && r.stops > 0 && r.clip != nil
}

// Clip returns the assembled clip bytes, or nil when none is held.
func (r *RecordingSession) Clip() []byte {
	if !r.HasClip() {
		return nil
	}
	return r.clip
}

// MeterLevelFor computes the 0-100 amplitude percentage for one window of
// unsigned 8-bit time-domain samples centred at 128.
func MeterLevelFor(window []byte) int {
	if len(window) == 0 {
		return 0
	}
	var sum float64
	for _, s := range window {
		v := (float64(s) - 128) / 128
		sum += v * v
	}
	rms := math.Sqrt(sum / float64(len(window)))
	pct := int(math.Floor(rms * meterScale))
	if pct > 100 {
		pct = 100
	}
	if pct < 0 {
		pct = 0
	}
	return pct
}

// RunMeter consumes sample windows and emits a level per window until the
// context is cancelled or the channel closes. On exit it emits 0 once, so a
// cancelled meter never leaves a stale reading behind.
func RunMeter(ctx context.Context, windows <-chan []byte, emit func(level int)) {
	defer emit(0)
	for {
		select {
		case <-ctx.Done():
			return
		case w, ok := <-windows:
			if !ok {
				return
			}
			emit(MeterLevelFor(w))
		}
	}
}
