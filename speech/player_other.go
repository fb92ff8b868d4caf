//go:build !linux

package speech

import (
	"context"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
)

var (
	malgoCtx     *malgo.AllocatedContext
	malgoErr     error
	malgoInitOne sync.Once
)

// MalgoPlayer plays through miniaudio. Playback is serialized.
type MalgoPlayer struct {
	mu sync.Mutex
}

func NewPlayer() Player { return &MalgoPlayer{} }

func (p *MalgoPlayer) Play(ctx context.Context, pcm []int16, sampleRate int) error {
	if len(pcm) == 0 {
		return nil
	}
	malgoInitOne.Do(func() {
		malgoCtx, malgoErr = malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	})
	if malgoErr != nil {
		return fmt.Errorf("audio context: %w", malgoErr)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatS16
	cfg.Playback.Channels = 1
	cfg.SampleRate = uint32(sampleRate)

	done := make(chan struct{})
	var once sync.Once
	pos := 0
	onData := func(out, _ []byte, frames uint32) {
		n := int(frames)
		i := 0
		for ; i < n && pos < len(pcm); i++ {
			s := pcm[pos]
			out[i*2] = byte(s)
			out[i*2+1] = byte(s >> 8)
			pos++
		}
		for j := i * 2; j < len(out); j++ {
			out[j] = 0
		}
		if pos >= len(pcm) {
			once.Do(func() { close(done) })
		}
	}

	device, err := malgo.InitDevice(malgoCtx.Context, cfg, malgo.DeviceCallbacks{Data: onData})
	if err != nil {
		return fmt.Errorf("audio device: %w", err)
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return fmt.Errorf("audio start: %w", err)
	}
	select {
	case <-done:
	case <-ctx.Done():
	}
	device.Stop()
	return ctx.Err()
}
