package observability

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

// LogHooks writes every event to a logger at debug level.
type LogHooks struct {
	logger *log.Logger
}

// NewLogHooks returns hooks that log through l.
func NewLogHooks(l *log.Logger) *LogHooks {
	return &LogHooks{logger: l}
}

func (h *LogHooks) OnSampleStart(_ context.Context, dataset string, selections int) {
	h.logger.Debug("sampling", "dataset", dataset, "selections", selections)
}

func (h *LogHooks) OnSampleComplete(_ context.Context, dataset string, layers int, d time.Duration, err error) {
	if err != nil {
		h.logger.Debug("sampling failed", "dataset", dataset, "err", err)
		return
	}
	h.logger.Debug("sampled", "dataset", dataset, "layers", layers, "duration", d.Round(time.Millisecond))
}

func (h *LogHooks) OnAlignStart(_ context.Context, mode string, layers int) {
	h.logger.Debug("aligning", "mode", mode, "layers", layers)
}

func (h *LogHooks) OnAlignComplete(_ context.Context, mode string, d time.Duration, err error) {
	h.logger.Debug("aligned", "mode", mode, "duration", d.Round(time.Millisecond), "err", err)
}

func (h *LogHooks) OnGroupComplete(_ context.Context, groups, samples int, d time.Duration) {
	h.logger.Debug("grouped timeseries", "groups", groups, "samples", samples, "duration", d.Round(time.Millisecond))
}

func (h *LogHooks) OnCacheHit(_ context.Context, keyType string) {
	h.logger.Debug("cache hit", "type", keyType)
}

func (h *LogHooks) OnCacheMiss(_ context.Context, keyType string) {
	h.logger.Debug("cache miss", "type", keyType)
}

func (h *LogHooks) OnCacheSet(_ context.Context, keyType string, size int) {
	h.logger.Debug("cache set", "type", keyType, "bytes", size)
}

func (h *LogHooks) OnRequest(_ context.Context, method, path string) {
	h.logger.Debug("request", "method", method, "path", path)
}

func (h *LogHooks) OnResponse(_ context.Context, method, path string, status int, d time.Duration) {
	h.logger.Info("response", "method", method, "path", path, "status", status, "duration", d.Round(time.Millisecond))
}

var (
	_ PipelineHooks = (*LogHooks)(nil)
	_ CacheHooks    = (*LogHooks)(nil)
	_ ServerHooks   = (*LogHooks)(nil)
)
