package market

import (
	"math"
	"math/rand/v2"
)

// Parameter floors. Drift never pushes a parameter below its floor, which
// keeps the sinusoid well-defined (phaseLength bounded away from zero) and
// the baseline level positive.
const (
	coreValueFloor   = 10
	amplitudeFloor   = 1
	phaseLengthFloor = 50
)

// waveform holds the parameters of one stock's price-generating sinusoid.
type waveform struct {
	coreValue   float64 // baseline level
	amplitude   float64 // oscillation size
	phaseLength float64 // period scale
	phase       float64 // offset
}

// newWaveform draws randomized starting parameters so stocks decorrelate
// from the first tick.
func newWaveform(rng *rand.Rand) waveform {
	return waveform{
		coreValue:   rng.Float64()*200 + 200,
		amplitude:   rng.Float64()*80 + 20,
		phaseLength: rng.Float64()*50 + 30,
		phase:       rng.Float64() * 100,
	}
}

// drift randomly perturbs the waveform parameters. Each parameter moves
// independently with its own probability and clamps to its floor.
func (w *waveform) drift(rng *rand.Rand) {
	if rng.Float64() < 0.01 {
		w.coreValue += 20 - rng.Float64()*40
		if w.coreValue < coreValueFloor {
			w.coreValue = coreValueFloor
		}
	}
	if rng.Float64() < 0.08 {
		w.amplitude += 15 - rng.Float64()*30
		if w.amplitude < amplitudeFloor {
			w.amplitude = amplitudeFloor
		}
	}
	if rng.Float64() < 0.01 {
		w.phase += 10 - rng.Float64()*20
	}
	if rng.Float64() < 0.10 {
		w.phaseLength += 30 - rng.Float64()*60
		if w.phaseLength < phaseLengthFloor {
			w.phaseLength = phaseLengthFloor
		}
	}
}

// priceAt computes the quoted price at a simulation step for a given noise
// sample. A negative result clamps to 1 so the quote stays strictly
// positive.
func (w waveform) priceAt(step int64, noise float64) float64 {
	price := round2(w.amplitude*math.Sin((float64(step)+w.phase)/w.phaseLength) + w.coreValue + noise)
	if price < 0 {
		price = 1
	}
	return price
}

// round2 rounds to two decimal places, half away from zero.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
