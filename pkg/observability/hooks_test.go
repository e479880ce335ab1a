package observability

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func TestNoopHooksDoNotPanic(t *testing.T) {
	ctx := context.Background()

	p := NoopPipelineHooks{}
	p.OnSampleStart(ctx, "sim.toml", 2)
	p.OnSampleComplete(ctx, "sim.toml", 4, time.Second, nil)
	p.OnAlignStart(ctx, "reference", 4)
	p.OnAlignComplete(ctx, "reference", time.Second, nil)
	p.OnGroupComplete(ctx, 2, 8, time.Second)

	c := NoopCacheHooks{}
	c.OnCacheHit(ctx, "sample")
	c.OnCacheMiss(ctx, "sample")
	c.OnCacheSet(ctx, "sample", 1024)

	s := NoopServerHooks{}
	s.OnRequest(ctx, "POST", "/v1/compose")
	s.OnResponse(ctx, "POST", "/v1/compose", 200, time.Second)
}

func TestGlobalHooksRegistry(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	if _, ok := Pipeline().(NoopPipelineHooks); !ok {
		t.Error("Pipeline() should return NoopPipelineHooks by default")
	}
	if _, ok := Cache().(NoopCacheHooks); !ok {
		t.Error("Cache() should return NoopCacheHooks by default")
	}
	if _, ok := Server().(NoopServerHooks); !ok {
		t.Error("Server() should return NoopServerHooks by default")
	}

	h := NewLogHooks(log.New(&bytes.Buffer{}))
	SetPipelineHooks(h)
	SetCacheHooks(h)
	SetServerHooks(h)
	if Pipeline() != PipelineHooks(h) || Cache() != CacheHooks(h) || Server() != ServerHooks(h) {
		t.Error("Set*Hooks should register custom hooks")
	}

	SetPipelineHooks(nil)
	if Pipeline() != PipelineHooks(h) {
		t.Error("SetPipelineHooks(nil) should be ignored")
	}

	Reset()
	if _, ok := Pipeline().(NoopPipelineHooks); !ok {
		t.Error("Reset() should restore NoopPipelineHooks")
	}
}

func TestLogHooks(t *testing.T) {
	var buf bytes.Buffer
	l := log.New(&buf)
	l.SetLevel(log.DebugLevel)
	h := NewLogHooks(l)
	ctx := context.Background()

	h.OnSampleComplete(ctx, "sim.toml", 3, 12*time.Millisecond, nil)
	h.OnSampleComplete(ctx, "broken.toml", 0, 0, errors.New("boom"))
	h.OnCacheHit(ctx, "sample")

	out := buf.String()
	for _, want := range []string{"sim.toml", "layers=3", "sampling failed", "boom", "cache hit"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}
