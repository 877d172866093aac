package sim

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTicker records the steps it was updated at.
type fakeTicker struct {
	name  string
	steps []int64
}

func (f *fakeTicker) Name() string { return f.name }

func (f *fakeTicker) UpdatePrice(step int64, _ *rand.Rand) {
	f.steps = append(f.steps, step)
}

// panicTicker always fails its update.
type panicTicker struct{}

func (panicTicker) Name() string { return "kaputt" }

func (panicTicker) UpdatePrice(int64, *rand.Rand) {
	panic("bad waveform parameters")
}

func testRand() *rand.Rand {
	return rand.New(rand.NewPCG(1, 2))
}

func TestTick_IncrementsStepOncePerTick(t *testing.T) {
	a := &fakeTicker{name: "a"}
	b := &fakeTicker{name: "b"}
	s := NewSimulator([]PriceTicker{a, b}, testRand(), nil)

	s.Tick()
	s.Tick()
	s.Tick()

	assert.Equal(t, int64(3), s.Step())
	// Every stock sees every step exactly once, with the shared counter.
	assert.Equal(t, []int64{1, 2, 3}, a.steps)
	assert.Equal(t, []int64{1, 2, 3}, b.steps)
}

func TestTick_IsolatesPerStockFailures(t *testing.T) {
	before := &fakeTicker{name: "before"}
	after := &fakeTicker{name: "after"}
	s := NewSimulator([]PriceTicker{before, panicTicker{}, after}, testRand(), nil)

	require.NotPanics(t, s.Tick)

	// The failing stock must not halt updates for the rest of the universe.
	assert.Equal(t, []int64{1}, before.steps)
	assert.Equal(t, []int64{1}, after.steps)
	assert.Equal(t, int64(1), s.Step())
}

func TestOnTick_RunsAfterAllUpdates(t *testing.T) {
	a := &fakeTicker{name: "a"}
	s := NewSimulator([]PriceTicker{a}, testRand(), nil)

	var seenStep int64
	var seenUpdates int
	s.OnTick(func(step int64) {
		seenStep = step
		seenUpdates = len(a.steps)
	})

	s.Tick()

	assert.Equal(t, int64(1), seenStep)
	assert.Equal(t, 1, seenUpdates)
}
