package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
	"go.uber.org/zap"

	"github.com/obinnaokechukwu/speechgen"
)

// ErrPlayerClosed is returned by Play after Close.
var ErrPlayerClosed = errors.New("audio: player closed")

// Player plays mono speech through the default output device using
// miniaudio.
type Player struct {
	ctx *malgo.AllocatedContext
	log *zap.Logger

	mu     sync.Mutex
	closed bool
}

// NewPlayer opens a playback context. A nil logger disables logging.
func NewPlayer(log *zap.Logger) (*Player, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("audio: init playback context: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Player{ctx: ctx, log: log}, nil
}

// Play plays samples at sampleRate and blocks until playback finishes or
// ctx is cancelled.
func (p *Player) Play(ctx context.Context, samples []float32, sampleRate int) error {
	if len(samples) == 0 {
		return nil
	}
	if sampleRate <= 0 {
		return fmt.Errorf("audio: invalid sample rate %d", sampleRate)
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPlayerClosed
	}
	p.mu.Unlock()

	pcm := speechgen.EncodePCM16(samples)
	feed := newFeeder(pcm)

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatS16
	cfg.Playback.Channels = 1
	cfg.SampleRate = uint32(sampleRate)
	cfg.PeriodSizeInFrames = 512
	cfg.Periods = 2

	callbacks := malgo.DeviceCallbacks{
		Data: func(out, _ []byte, frameCount uint32) {
			feed.fill(out[:int(frameCount)*2])
		},
	}

	device, err := malgo.InitDevice(p.ctx.Context, cfg, callbacks)
	if err != nil {
		return fmt.Errorf("audio: init playback device: %w", err)
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return fmt.Errorf("audio: start playback device: %w", err)
	}
	defer device.Stop()

	select {
	case <-ctx.Done():
		p.log.Debug("playback cancelled")
		return ctx.Err()
	case <-feed.done:
		p.log.Debug("playback finished", zap.Int("samples", len(samples)), zap.Int("sample_rate", sampleRate))
		return nil
	}
}

// Close releases the playback context. It is safe to call more than once.
func (p *Player) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true

	if p.ctx != nil {
		_ = p.ctx.Uninit()
		p.ctx.Free()
		p.ctx = nil
	}
}

// feeder copies PCM into device buffers and pads with silence once the
// data runs out.
type feeder struct {
	pcm  []byte
	pos  int
	done chan struct{}
	once sync.Once
}

func newFeeder(pcm []byte) *feeder {
	return &feeder{pcm: pcm, done: make(chan struct{})}
}

func (f *feeder) fill(out []byte) {
	n := copy(out, f.pcm[f.pos:])
	f.pos += n
	clear(out[n:])
	if f.pos >= len(f.pcm) {
		f.once.Do(func() { close(f.done) })
	}
}
