// Package metrics provides simple built-in metrics collection for the
// binding runtime with no external dependencies.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Collector aggregates runtime counters across every engine that shares it.
type Collector struct {
	engineMetrics     *EngineMetrics
	operationCounters map[string]*int64
	mu                sync.RWMutex
	startTime         time.Time
}

// EngineMetrics tracks runtime-level performance data.
type EngineMetrics struct {
	// Component lifecycle
	EnginesCreated       int64 `json:"engines_created"`
	EnginesDestroyed     int64 `json:"engines_destroyed"`
	ActiveEngines        int64 `json:"active_engines"`
	MaxConcurrentEngines int64 `json:"max_concurrent_engines"`

	// Render loop
	RenderPasses int64 `json:"render_passes"`
	RenderErrors int64 `json:"render_errors"`

	// State access cache
	CacheHits   int64 `json:"cache_hits"`
	CacheMisses int64 `json:"cache_misses"`

	// List reconciliation
	ListDiffFresh int64 `json:"list_diff_fresh"`

	// Binding and patch traffic
	BindingsActivated int64 `json:"bindings_activated"`
	PatchesEmitted    int64 `json:"patches_emitted"`

	// Uptime
	StartTime time.Time     `json:"start_time"`
	Uptime    time.Duration `json:"uptime"`
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		engineMetrics: &EngineMetrics{
			StartTime: time.Now(),
		},
		operationCounters: make(map[string]*int64),
		startTime:         time.Now(),
	}
}

// IncrementEngineCreated records a new engine instance.
func (c *Collector) IncrementEngineCreated() {
	atomic.AddInt64(&c.engineMetrics.EnginesCreated, 1)
	currentActive := atomic.AddInt64(&c.engineMetrics.ActiveEngines, 1)

	for {
		max := atomic.LoadInt64(&c.engineMetrics.MaxConcurrentEngines)
		if currentActive <= max {
			break
		}
		if atomic.CompareAndSwapInt64(&c.engineMetrics.MaxConcurrentEngines, max, currentActive) {
			break
		}
	}
}

// IncrementEngineDestroyed records an engine teardown.
func (c *Collector) IncrementEngineDestroyed() {
	atomic.AddInt64(&c.engineMetrics.EnginesDestroyed, 1)
	atomic.AddInt64(&c.engineMetrics.ActiveEngines, -1)
}

// IncrementRenderPass records one completed render pass.
func (c *Collector) IncrementRenderPass() {
	atomic.AddInt64(&c.engineMetrics.RenderPasses, 1)
}

// IncrementRenderError records a failed render pass.
func (c *Collector) IncrementRenderError() {
	atomic.AddInt64(&c.engineMetrics.RenderErrors, 1)
}

// IncrementCacheHit records a state read served from cache.
func (c *Collector) IncrementCacheHit() {
	atomic.AddInt64(&c.engineMetrics.CacheHits, 1)
}

// IncrementCacheMiss records a state read that had to recompute.
func (c *Collector) IncrementCacheMiss() {
	atomic.AddInt64(&c.engineMetrics.CacheMisses, 1)
}

// AddListDiff records how many fresh element identities one list
// reconciliation produced.
func (c *Collector) AddListDiff(fresh int) {
	atomic.AddInt64(&c.engineMetrics.ListDiffFresh, int64(fresh))
}

// IncrementBindingActivated records one binding registration.
func (c *Collector) IncrementBindingActivated() {
	atomic.AddInt64(&c.engineMetrics.BindingsActivated, 1)
}

// IncrementPatchEmitted records one DOM patch sent to a sink.
func (c *Collector) IncrementPatchEmitted() {
	atomic.AddInt64(&c.engineMetrics.PatchesEmitted, 1)
}

// IncrementCustomCounter increments a custom named counter.
func (c *Collector) IncrementCustomCounter(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if counter, exists := c.operationCounters[name]; exists {
		atomic.AddInt64(counter, 1)
	} else {
		var newCounter int64 = 1
		c.operationCounters[name] = &newCounter
	}
}

// GetMetrics returns current runtime metrics.
func (c *Collector) GetMetrics() EngineMetrics {
	return EngineMetrics{
		EnginesCreated:       atomic.LoadInt64(&c.engineMetrics.EnginesCreated),
		EnginesDestroyed:     atomic.LoadInt64(&c.engineMetrics.EnginesDestroyed),
		ActiveEngines:        atomic.LoadInt64(&c.engineMetrics.ActiveEngines),
		MaxConcurrentEngines: atomic.LoadInt64(&c.engineMetrics.MaxConcurrentEngines),
		RenderPasses:         atomic.LoadInt64(&c.engineMetrics.RenderPasses),
		RenderErrors:         atomic.LoadInt64(&c.engineMetrics.RenderErrors),
		CacheHits:            atomic.LoadInt64(&c.engineMetrics.CacheHits),
		CacheMisses:          atomic.LoadInt64(&c.engineMetrics.CacheMisses),
		ListDiffFresh:        atomic.LoadInt64(&c.engineMetrics.ListDiffFresh),
		BindingsActivated:    atomic.LoadInt64(&c.engineMetrics.BindingsActivated),
		PatchesEmitted:       atomic.LoadInt64(&c.engineMetrics.PatchesEmitted),
		StartTime:            c.engineMetrics.StartTime,
		Uptime:               time.Since(c.startTime),
	}
}

// GetCustomCounters returns all custom counters.
func (c *Collector) GetCustomCounters() map[string]int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[string]int64)
	for name, counter := range c.operationCounters {
		result[name] = atomic.LoadInt64(counter)
	}
	return result
}

// Reset resets all metrics to zero.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	atomic.StoreInt64(&c.engineMetrics.EnginesCreated, 0)
	atomic.StoreInt64(&c.engineMetrics.EnginesDestroyed, 0)
	atomic.StoreInt64(&c.engineMetrics.ActiveEngines, 0)
	atomic.StoreInt64(&c.engineMetrics.MaxConcurrentEngines, 0)
	atomic.StoreInt64(&c.engineMetrics.RenderPasses, 0)
	atomic.StoreInt64(&c.engineMetrics.RenderErrors, 0)
	atomic.StoreInt64(&c.engineMetrics.CacheHits, 0)
	atomic.StoreInt64(&c.engineMetrics.CacheMisses, 0)
	atomic.StoreInt64(&c.engineMetrics.ListDiffFresh, 0)
	atomic.StoreInt64(&c.engineMetrics.BindingsActivated, 0)
	atomic.StoreInt64(&c.engineMetrics.PatchesEmitted, 0)

	c.operationCounters = make(map[string]*int64)

	c.startTime = time.Now()
	c.engineMetrics.StartTime = time.Now()
}

// GetCacheHitRate returns the cache hit percentage.
func (c *Collector) GetCacheHitRate() float64 {
	hits := atomic.LoadInt64(&c.engineMetrics.CacheHits)
	misses := atomic.LoadInt64(&c.engineMetrics.CacheMisses)

	total := hits + misses
	if total == 0 {
		return 0.0
	}

	return float64(hits) / float64(total) * 100.0
}

// GetRenderErrorRate returns the error rate of render passes.
func (c *Collector) GetRenderErrorRate() float64 {
	passes := atomic.LoadInt64(&c.engineMetrics.RenderPasses)
	errors := atomic.LoadInt64(&c.engineMetrics.RenderErrors)

	if passes == 0 {
		return 0.0
	}

	return float64(errors) / float64(passes+errors) * 100.0
}
