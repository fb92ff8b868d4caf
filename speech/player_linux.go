//go:build linux

package speech

import (
	"context"
	"fmt"

	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"
)

// PulsePlayer plays through PulseAudio, opening a client per utterance.
type PulsePlayer struct{}

func NewPlayer() Player { return PulsePlayer{} }

func (PulsePlayer) Play(ctx context.Context, pcm []int16, sampleRate int) error {
	if len(pcm) == 0 {
		return nil
	}
	c, err := pulse.NewClient(pulse.ClientApplicationName("coach"))
	if err != nil {
		return fmt.Errorf("pulse client: %w", err)
	}
	defer c.Close()

	pos := 0
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		if ctx.Err() != nil || pos >= len(pcm) {
			return 0, pulse.EndOfData
		}
		n := copy(buf, pcm[pos:])
		pos += n
		return n, nil
	})
	stream, err := c.NewPlayback(reader,
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(sampleRate),
		pulse.PlaybackLatency(0.1),
		pulse.PlaybackRawOption(func(p *proto.CreatePlaybackStream) {
			p.ChannelVolumes = proto.ChannelVolumes{uint32(proto.VolumeNorm)}
		}),
	)
	if err != nil {
		return fmt.Errorf("pulse playback: %w", err)
	}
	defer stream.Close()

	stream.Start()
	stream.Drain()
	stream.Stop()
	if err := stream.Error(); err != nil {
		return err
	}
	return ctx.Err()
}
