package testutil

import "fmt"

// OpGenConfig configures the operation generator. Rates are percentages;
// whatever remains below 100 goes to Get.
type OpGenConfig struct {
	SetRate          int
	TryAddRate       int
	GetOrAddRate     int
	AddOrIncRate     int
	TryUpdateRate    int
	TryUpdateCmpRate int
	TryRemoveRate    int
	TryRemoveValRate int
	PeekRate         int
	TryDequeueRate   int
	SetLimitRate     int
	ClearRate        int

	// Keys is the size of the key space. Small key spaces make hits,
	// collisions with existing entries and evictions frequent.
	Keys int

	// MaxValue bounds generated values, so compare-value ops hit often.
	MaxValue int

	// MaxLimit bounds SetLimit arguments.
	MaxLimit int
}

// DefaultOpGenConfig returns a balanced configuration.
func DefaultOpGenConfig() OpGenConfig {
	return OpGenConfig{
		SetRate:          20,
		TryAddRate:       8,
		GetOrAddRate:     6,
		AddOrIncRate:     6,
		TryUpdateRate:    6,
		TryUpdateCmpRate: 6,
		TryRemoveRate:    8,
		TryRemoveValRate: 4,
		PeekRate:         6,
		TryDequeueRate:   8,
		SetLimitRate:     2,
		ClearRate:        1,
		Keys:             12,
		MaxValue:         4,
		MaxLimit:         8,
	}
}

// OpGenerator generates deterministic operations from a byte stream.
type OpGenerator struct {
	stream *ByteStream
	config OpGenConfig
}

// NewOpGenerator creates a new operation generator.
func NewOpGenerator(fuzzBytes []byte, cfg *OpGenConfig) *OpGenerator {
	return &OpGenerator{
		stream: NewByteStream(fuzzBytes),
		config: *cfg,
	}
}

// HasMore reports whether more operations can be generated.
func (g *OpGenerator) HasMore() bool {
	return g.stream.HasMore()
}

func (g *OpGenerator) key() string {
	return fmt.Sprintf("k%d", g.stream.NextInt(max(g.config.Keys, 1)))
}

func (g *OpGenerator) value() int {
	return g.stream.NextInt(max(g.config.MaxValue, 1))
}

// NextOp generates the next operation.
func (g *OpGenerator) NextOp() Op {
	choice := g.stream.NextInt(100)
	c := g.config

	rates := []struct {
		rate int
		gen  func() Op
	}{
		{c.SetRate, func() Op { return OpSet{Key: g.key(), Value: g.value()} }},
		{c.TryAddRate, func() Op { return OpTryAdd{Key: g.key(), Value: g.value()} }},
		{c.GetOrAddRate, func() Op { return OpGetOrAdd{Key: g.key(), Value: g.value()} }},
		{c.AddOrIncRate, func() Op { return OpAddOrIncrement{Key: g.key(), Value: g.value()} }},
		{c.TryUpdateRate, func() Op { return OpTryUpdate{Key: g.key(), Value: g.value()} }},
		{c.TryUpdateCmpRate, func() Op {
			return OpTryUpdateCompare{Key: g.key(), Value: g.value(), Expected: g.value()}
		}},
		{c.TryRemoveRate, func() Op { return OpTryRemove{Key: g.key()} }},
		{c.TryRemoveValRate, func() Op { return OpTryRemoveValue{Key: g.key(), Expected: g.value()} }},
		{c.PeekRate, func() Op { return OpPeek{} }},
		{c.TryDequeueRate, func() Op { return OpTryDequeue{} }},
		{c.SetLimitRate, func() Op { return OpSetLimit{Limit: g.stream.NextInt(c.MaxLimit+1)} }},
		{c.ClearRate, func() Op { return OpClear{} }},
	}

	cumulative := 0

	for _, r := range rates {
		cumulative += r.rate
		if choice < cumulative {
			return r.gen()
		}
	}

	return OpGet{Key: g.key()}
}
