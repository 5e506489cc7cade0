package shutdown

import (
	"context"
	"testing"
)

func TestContextStop(t *testing.T) {
	ctx, stop := Context(context.Background())
	if ctx.Err() != nil {
		t.Fatal("context cancelled before any signal")
	}
	stop()
	if ctx.Err() == nil {
		t.Error("stop did not cancel the context")
	}
}
