package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"coach/log"
)

const (
	DefaultTTSEndpoint = "https://texttospeech.googleapis.com/v1/text:synthesize"
	DefaultVoice       = "en-US-Standard-C"
	ttsSampleRate      = 24000
	wavHeaderLen       = 44
)

type ttsRequest struct {
	Input struct {
		Text string `json:"text"`
	} `json:"input"`
	Voice struct {
		LanguageCode string `json:"languageCode"`
		Name         string `json:"name,omitempty"`
	} `json:"voice"`
	AudioConfig struct {
		AudioEncoding   string  `json:"audioEncoding"`
		SpeakingRate    float64 `json:"speakingRate,omitempty"`
		Pitch           float64 `json:"pitch"`
		VolumeGainDb    float64 `json:"volumeGainDb"`
		SampleRateHertz int     `json:"sampleRateHertz"`
	} `json:"audioConfig"`
}

type ttsResponse struct {
	AudioContent string `json:"audioContent"`
}

// GoogleSpeaker synthesizes speech with the Cloud Text-to-Speech REST API and
// plays it through a Player.
type GoogleSpeaker struct {
	apiKey   string
	endpoint string
	voice    string
	language string
	client   *TracedClient
	player   Player

	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewGoogleSpeaker(apiKey, voice string, player Player) *GoogleSpeaker {
	if voice == "" {
		voice = DefaultVoice
	}
	return &GoogleSpeaker{
		apiKey:   apiKey,
		endpoint: DefaultTTSEndpoint,
		voice:    voice,
		language: languageOf(voice),
		client:   NewTracedClient(10 * time.Second),
		player:   player,
	}
}

// SetEndpoint points the speaker at a different synthesize URL.
func (g *GoogleSpeaker) SetEndpoint(url string) { g.endpoint = url }

// Warm pre-opens the connection to the TTS endpoint.
func (g *GoogleSpeaker) Warm() {
	if d := g.client.Warm(g.endpoint); d > 0 {
		log.Debugf("tts connection warmed, tls=%s", d)
	}
}

func (g *GoogleSpeaker) Speak(text string, opts Options, cb Callbacks) error {
	if g.apiKey == "" {
		return fmt.Errorf("google tts: no API key")
	}
	ctx, cancel := context.WithCancel(context.Background())
	g.mu.Lock()
	if g.cancel != nil {
		g.cancel()
	}
	g.cancel = cancel
	g.mu.Unlock()

	go g.run(ctx, text, opts, cb)
	return nil
}

func (g *GoogleSpeaker) run(ctx context.Context, text string, opts Options, cb Callbacks) {
	defer g.finish(ctx)

	pcm, err := g.synthesize(ctx, text, opts)
	if ctx.Err() != nil {
		cb.stopped()
		return
	}
	if err != nil {
		cb.fail(err)
		return
	}

	cb.start()
	log.Utterance(text)
	err = g.player.Play(ctx, pcm, ttsSampleRate)
	switch {
	case ctx.Err() != nil:
		cb.stopped()
	case err != nil:
		cb.fail(fmt.Errorf("play: %w", err))
	default:
		cb.done()
	}
}

// finish drops the cancel func if it still belongs to ctx.
func (g *GoogleSpeaker) finish(ctx context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancel != nil && ctx.Err() == nil {
		g.cancel()
		g.cancel = nil
	}
}

func (g *GoogleSpeaker) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancel != nil {
		g.cancel()
		g.cancel = nil
	}
}

func (g *GoogleSpeaker) synthesize(ctx context.Context, text string, opts Options) ([]int16, error) {
	var body ttsRequest
	body.Input.Text = text
	body.Voice.LanguageCode = g.language
	body.Voice.Name = g.voice
	body.AudioConfig.AudioEncoding = "LINEAR16"
	body.AudioConfig.SampleRateHertz = ttsSampleRate
	body.AudioConfig.SpeakingRate = opts.Rate
	body.AudioConfig.Pitch = (opts.Pitch - 1) * 20
	if opts.Volume > 0 {
		body.AudioConfig.VolumeGainDb = 20 * math.Log10(opts.Volume)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal tts request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint+"?key="+g.apiKey, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create tts request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tts API error (status %d): %s", resp.StatusCode, bytes.TrimSpace(resp.Body))
	}

	var tr ttsResponse
	if err := json.Unmarshal(resp.Body, &tr); err != nil {
		return nil, fmt.Errorf("decode tts response: %w", err)
	}
	raw, err := base64.StdEncoding.DecodeString(tr.AudioContent)
	if err != nil {
		return nil, fmt.Errorf("decode audio content: %w", err)
	}
	pcm := decodeLinear16(raw)

	m := resp.Metrics
	log.SpeechMetrics(log.SpeechMetricsData{
		SynthMs: float64(time.Since(start).Microseconds()) / 1000,
		TTFBMs:  float64(m.TTFB.Microseconds()) / 1000,
		TLSMs:   float64(m.TLS.Microseconds()) / 1000,
		AudioS:  float64(len(pcm)) / ttsSampleRate,
		AudioKB: float64(len(raw)) / 1024,
		Reused:  m.ConnReused,
	})
	return pcm, nil
}

// decodeLinear16 converts little-endian 16-bit PCM to samples, skipping a
// RIFF header when present.
func decodeLinear16(b []byte) []int16 {
	if len(b) >= wavHeaderLen && string(b[:4]) == "RIFF" {
		b = b[wavHeaderLen:]
	}
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return out
}

// languageOf derives the language code from a voice name like "en-US-Standard-C".
func languageOf(voice string) string {
	if len(voice) >= 5 && voice[2] == '-' {
		return voice[:5]
	}
	return "en-US"
}
