package capability

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const defaultProbeTTL = 5 * time.Minute

// Capabilities is a snapshot of which backends are configured and ready.
type Capabilities struct {
	HasScript bool
	HasSpeech bool
	HasImage  bool
	HasClip   bool
	ProbedAt  time.Time
}

// CanProduce reports whether asset production can start: speech plus at
// least the visual kind the run will use.
func (c *Capabilities) CanProduce(preferClips bool) bool {
	if !c.HasSpeech {
		return false
	}
	if preferClips {
		return c.HasClip
	}
	return c.HasImage
}

// Prober checks backend readiness.
type Prober interface {
	Probe(ctx context.Context) (*Capabilities, error)
}

// AdapterProber probes the configured capability adapters directly.
type AdapterProber struct {
	Script ScriptGenerator
	Speech SpeechSynthesizer
	Image  ImageGenerator
	Clip   ClipGenerator
}

func (p *AdapterProber) Probe(ctx context.Context) (*Capabilities, error) {
	caps := &Capabilities{ProbedAt: time.Now()}
	if p.Script != nil && p.Script.Ready() == nil {
		caps.HasScript = true
	}
	if p.Speech != nil && p.Speech.Ready() == nil {
		caps.HasSpeech = true
	}
	if p.Image != nil && p.Image.Ready() == nil {
		caps.HasImage = true
	}
	if p.Clip != nil && p.Clip.Ready() == nil {
		caps.HasClip = true
	}
	return caps, nil
}

// CachedProbe wraps a Prober to cache readiness results with a TTL, so
// stage-transition guards do not re-probe backends on every request.
type CachedProbe struct {
	prober Prober
	ttl    time.Duration
	logger *slog.Logger

	mu     sync.RWMutex
	cached *Capabilities
}

func NewCachedProbe(prober Prober, logger *slog.Logger) *CachedProbe {
	return &CachedProbe{
		prober: prober,
		ttl:    defaultProbeTTL,
		logger: logger,
	}
}

// Get returns cached capabilities if fresh, otherwise re-probes.
func (c *CachedProbe) Get(ctx context.Context) (*Capabilities, error) {
	c.mu.RLock()
	if c.cached != nil && time.Since(c.cached.ProbedAt) < c.ttl {
		caps := c.cached
		c.mu.RUnlock()
		return caps, nil
	}
	c.mu.RUnlock()

	return c.Refresh(ctx)
}

func (c *CachedProbe) Peek() *Capabilities {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cached
}

// Refresh forces a new probe regardless of cache freshness.
func (c *CachedProbe) Refresh(ctx context.Context) (*Capabilities, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	caps, err := c.prober.Probe(ctx)
	if err != nil {
		if c.logger != nil {
			c.logger.Warn("readiness probe failed", "error", err)
		}
		// Return stale cache if available
		if c.cached != nil {
			return c.cached, nil
		}
		return nil, err
	}

	c.cached = caps
	return caps, nil
}

// Invalidate clears the cached capabilities.
func (c *CachedProbe) Invalidate() {
	c.mu.Lock()
	c.cached = nil
	c.mu.Unlock()
}
