// Package observability provides hooks for metrics, tracing and logging.
//
// Libraries in this module emit events through globally registered hooks
// and never depend on a particular backend. The defaults are no-ops; the
// CLI registers [LogHooks] under --verbose and the HTTP server wires
// [ServerHooks] into its middleware.
//
// Register hooks at startup:
//
//	observability.SetPipelineHooks(observability.NewLogHooks(logger))
//
// Emit events from library code:
//
//	observability.Pipeline().OnSampleStart(ctx, dataset, n)
//	// ... sample ...
//	observability.Pipeline().OnSampleComplete(ctx, dataset, n, time.Since(start), err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Pipeline Hooks
// =============================================================================

// PipelineHooks receives events from a composition run.
type PipelineHooks interface {
	// Sampling events, once per (file, selection) pair.
	OnSampleStart(ctx context.Context, dataset string, selections int)
	OnSampleComplete(ctx context.Context, dataset string, layers int, duration time.Duration, err error)

	// Placement events, once per batch.
	OnAlignStart(ctx context.Context, mode string, layers int)
	OnAlignComplete(ctx context.Context, mode string, duration time.Duration, err error)

	// Grouping events, once per timeseries.
	OnGroupComplete(ctx context.Context, groups, samples int, duration time.Duration)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	OnCacheHit(ctx context.Context, keyType string)
	OnCacheMiss(ctx context.Context, keyType string)
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// Server Hooks
// =============================================================================

// ServerHooks receives events from the HTTP server.
type ServerHooks interface {
	OnRequest(ctx context.Context, method, path string)
	OnResponse(ctx context.Context, method, path string, status int, duration time.Duration)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopPipelineHooks ignores every event.
type NoopPipelineHooks struct{}

func (NoopPipelineHooks) OnSampleStart(context.Context, string, int)                          {}
func (NoopPipelineHooks) OnSampleComplete(context.Context, string, int, time.Duration, error) {}
func (NoopPipelineHooks) OnAlignStart(context.Context, string, int)                           {}
func (NoopPipelineHooks) OnAlignComplete(context.Context, string, time.Duration, error)       {}
func (NoopPipelineHooks) OnGroupComplete(context.Context, int, int, time.Duration)            {}

// NoopCacheHooks ignores every event.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopServerHooks ignores every event.
type NoopServerHooks struct{}

func (NoopServerHooks) OnRequest(context.Context, string, string)                      {}
func (NoopServerHooks) OnResponse(context.Context, string, string, int, time.Duration) {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	pipelineHooks PipelineHooks = NoopPipelineHooks{}
	cacheHooks    CacheHooks    = NoopCacheHooks{}
	serverHooks   ServerHooks   = NoopServerHooks{}
	hooksMu       sync.RWMutex
)

// SetPipelineHooks registers pipeline hooks. Nil is ignored.
func SetPipelineHooks(h PipelineHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		pipelineHooks = h
	}
}

// SetCacheHooks registers cache hooks. Nil is ignored.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// SetServerHooks registers server hooks. Nil is ignored.
func SetServerHooks(h ServerHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		serverHooks = h
	}
}

// Pipeline returns the registered pipeline hooks.
func Pipeline() PipelineHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return pipelineHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// Server returns the registered server hooks.
func Server() ServerHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return serverHooks
}

// Reset restores the no-op defaults.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	pipelineHooks = NoopPipelineHooks{}
	cacheHooks = NoopCacheHooks{}
	serverHooks = NoopServerHooks{}
}
