package localizer

import (
	"math"

	"localizer/atomic_float"
)

// Report accumulates estimation metrics over a run. It is written only by the tick loop;
// the running accuracy is mirrored in an atomic gauge so that other goroutines (the http
// server) can read it without locking.
type Report struct {
	history        []TickResult
	numCorrect     int
	sumEuclidean   float64
	sumManhattan   int
	accuracyGauge  *atomic_float.AtomicFloat64
	iterationGauge *atomic_float.AtomicFloat64
}

func NewReport() *Report {
	return &Report{
		accuracyGauge:  atomic_float.NewAtomicFloat64(0.0),
		iterationGauge: atomic_float.NewAtomicFloat64(0.0),
	}
}

// Record appends a tick and returns its 1-based iteration number.
func (rp *Report) Record(result TickResult) int {
	result.Iteration = len(rp.history) + 1
	rp.history = append(rp.history, result)
	if result.Correct {
		rp.numCorrect++
	}
	rp.sumEuclidean += result.Euclidean
	rp.sumManhattan += result.Manhattan

	rp.accuracyGauge.AtomicSet(rp.Accuracy())
	rp.iterationGauge.AtomicSet(float64(result.Iteration))
	return result.Iteration
}

func (rp *Report) Iterations() int {
	return len(rp.history)
}

func (rp *Report) NumCorrect() int {
	return rp.numCorrect
}

// Accuracy is the fraction of ticks whose predicted cell was the true cell.
func (rp *Report) Accuracy() float64 {
	if len(rp.history) == 0 {
		return 0
	}
	return float64(rp.numCorrect) / float64(len(rp.history))
}

func (rp *Report) MeanEuclidean() float64 {
	if len(rp.history) == 0 {
		return 0
	}
	return rp.sumEuclidean / float64(len(rp.history))
}

func (rp *Report) MeanManhattan() float64 {
	if len(rp.history) == 0 {
		return 0
	}
	return float64(rp.sumManhattan) / float64(len(rp.history))
}

// History returns the recorded ticks. The slice must not be modified.
func (rp *Report) History() []TickResult {
	return rp.history
}

// RunningAccuracy returns the accuracy after each tick, for plotting.
func (rp *Report) RunningAccuracy() []float64 {
	acc := make([]float64, len(rp.history))
	correct := 0
	for i, result := range rp.history {
		if result.Correct {
			correct++
		}
		acc[i] = float64(correct) / float64(i+1)
	}
	return acc
}

// Snapshot returns the iteration count and accuracy; safe to call from any goroutine.
func (rp *Report) Snapshot() (iteration int, accuracy float64) {
	return int(rp.iterationGauge.AtomicRead()), rp.accuracyGauge.AtomicRead()
}

func euclidean(r1, c1, r2, c2 int) float64 {
	return math.Hypot(float64(r1-r2), float64(c1-c2))
}

func manhattan(r1, c1, r2, c2 int) int {
	return abs(r1-r2) + abs(c1-c2)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
