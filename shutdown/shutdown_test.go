package shutdown

import (
	"context"
	"os"
	"testing"
)

func TestSignalsIncludeInterrupt(t *testing.T) {
	for _, s := range Signals() {
		if s == os.Interrupt {
			return
		}
	}
	t.Fatal("os.Interrupt missing")
}

func TestContextCancel(t *testing.T) {
	ctx, cancel := Context(context.Background())
	cancel()
	<-ctx.Done()
	if ctx.Err() != context.Canceled {
		t.Errorf("err = %v", ctx.Err())
	}
}
