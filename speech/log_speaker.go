package speech

import (
	"strings"
	"sync"
	"time"

	"coach/log"
)

const (
	wordDuration   = 350 * time.Millisecond
	minUtteranceMs = 800
)

// LogSpeaker writes utterances to the coaching log instead of playing them,
// holding the resource for roughly as long as reading them aloud would take.
type LogSpeaker struct {
	mu   sync.Mutex
	stop chan struct{}
}

func NewLogSpeaker() *LogSpeaker { return &LogSpeaker{} }

func (l *LogSpeaker) Speak(text string, opts Options, cb Callbacks) error {
	stop := make(chan struct{})
	l.mu.Lock()
	if l.stop != nil {
		close(l.stop)
	}
	l.stop = stop
	l.mu.Unlock()

	log.Utterance(text)
	cb.start()
	go func() {
		select {
		case <-time.After(utteranceDuration(text, opts.Rate)):
			l.mu.Lock()
			if l.stop == stop {
				l.stop = nil
			}
			l.mu.Unlock()
			cb.done()
		case <-stop:
			cb.stopped()
		}
	}()
	return nil
}

func (l *LogSpeaker) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stop != nil {
		close(l.stop)
		l.stop = nil
	}
}

func utteranceDuration(text string, rate float64) time.Duration {
	if rate <= 0 {
		rate = 1
	}
	d := time.Duration(float64(len(strings.Fields(text))) * float64(wordDuration) / rate)
	if d < minUtteranceMs*time.Millisecond {
		d = minUtteranceMs * time.Millisecond
	}
	return d
}
