package capability

import (
	"context"
	"testing"
	"time"
)

type fakeProber struct {
	calls int
	caps  Capabilities
}

func (f *fakeProber) Probe(ctx context.Context) (*Capabilities, error) {
	f.calls++
	caps := f.caps
	caps.ProbedAt = time.Now()
	return &caps, nil
}

func TestCachedProbe_TTL(t *testing.T) {
	fake := &fakeProber{caps: Capabilities{HasSpeech: true, HasImage: true}}
	probe := NewCachedProbe(fake, nil)
	probe.ttl = 50 * time.Millisecond
	ctx := context.Background()

	caps1, err := probe.Get(ctx)
	if err != nil {
		t.Fatalf("first Get: %v", err)
	}
	if !caps1.HasSpeech {
		t.Error("expected HasSpeech=true")
	}
	if fake.calls != 1 {
		t.Errorf("expected 1 probe, got %d", fake.calls)
	}

	caps2, err := probe.Get(ctx)
	if err != nil {
		t.Fatalf("second Get: %v", err)
	}
	if caps2.ProbedAt != caps1.ProbedAt {
		t.Error("expected cached result on second call")
	}
	if fake.calls != 1 {
		t.Errorf("expected 1 probe (cached), got %d", fake.calls)
	}

	time.Sleep(80 * time.Millisecond)

	if _, err := probe.Get(ctx); err != nil {
		t.Fatalf("third Get (after TTL): %v", err)
	}
	if fake.calls != 2 {
		t.Errorf("expected 2 probes after TTL expiry, got %d", fake.calls)
	}
}

func TestCachedProbe_Invalidate(t *testing.T) {
	fake := &fakeProber{}
	probe := NewCachedProbe(fake, nil)
	ctx := context.Background()

	probe.Get(ctx)
	if fake.calls != 1 {
		t.Fatalf("expected 1 probe, got %d", fake.calls)
	}

	probe.Invalidate()
	probe.Get(ctx)
	if fake.calls != 2 {
		t.Errorf("expected 2 probes after Invalidate, got %d", fake.calls)
	}
}

func TestCapabilities_CanProduce(t *testing.T) {
	tests := []struct {
		name        string
		caps        Capabilities
		preferClips bool
		want        bool
	}{
		{"speech and image", Capabilities{HasSpeech: true, HasImage: true}, false, true},
		{"no speech", Capabilities{HasImage: true}, false, false},
		{"image mode without image", Capabilities{HasSpeech: true, HasClip: true}, false, false},
		{"clip mode with clip", Capabilities{HasSpeech: true, HasClip: true}, true, true},
		{"clip mode without clip", Capabilities{HasSpeech: true, HasImage: true}, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.caps.CanProduce(tt.preferClips); got != tt.want {
				t.Errorf("CanProduce(%v) = %v, want %v", tt.preferClips, got, tt.want)
			}
		})
	}
}

func TestAdapterProber_NilAdapters(t *testing.T) {
	caps, err := (&AdapterProber{}).Probe(context.Background())
	if err != nil {
		t.Fatalf("Probe error: %v", err)
	}
	if caps.HasScript || caps.HasSpeech || caps.HasImage || caps.HasClip {
		t.Errorf("nil adapters should report nothing ready: %+v", caps)
	}
}
