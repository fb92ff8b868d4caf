package advisory

import (
	"context"
	"sync"
)

// Fake is a scripted Service that counts calls.
type Fake struct {
	mu            sync.Mutex
	ClassifyText  string
	TipText       string
	Err           error
	classifyCalls int
	tipCalls      int
	lastTip       Request
}

func NewFake(classifyText, tipText string) *Fake {
	return &Fake{ClassifyText: classifyText, TipText: tipText}
}

func (f *Fake) Classify(ctx context.Context, req Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.classifyCalls++
	if f.Err != nil {
		return "", f.Err
	}
	return f.ClassifyText, nil
}

func (f *Fake) GenerateTip(ctx context.Context, req Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tipCalls++
	f.lastTip = req
	if f.Err != nil {
		return "", f.Err
	}
	return f.TipText, nil
}

func (f *Fake) ClassifyCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.classifyCalls
}

func (f *Fake) TipCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tipCalls
}

// LastTipRequest returns the most recent GenerateTip request.
func (f *Fake) LastTipRequest() Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastTip
}
