package reactive

import (
	"math"
	"sync"

	fft "github.com/mjibson/go-dsp/fft"
)

const (
	fftInputSize      = 2048
	historyBufferSize = fftInputSize * 4

	minDecibels = -100.0
	maxDecibels = -30.0
)

// Levels are per-band loudness values in [0, 1].
type Levels struct {
	Bass float64 // 20 to 250 Hz
	Mid  float64 // 250 Hz to 2 kHz
	High float64 // 2 to 8 kHz
}

// Analyzer keeps a history of samples and reports smoothed band levels.
type Analyzer struct {
	sampleRate int

	mutex         sync.Mutex
	historyBuffer []float32
	bufferPos     int

	window          []float64
	lastDB          []float64
	smoothingFactor float64
}

func NewAnalyzer(sampleRate int) *Analyzer {
	a := &Analyzer{
		sampleRate:      sampleRate,
		historyBuffer:   make([]float32, historyBufferSize),
		window:          blackmanWindow(fftInputSize),
		lastDB:          make([]float64, fftInputSize/2),
		smoothingFactor: 0.8,
	}
	for i := range a.lastDB {
		a.lastDB[i] = minDecibels
	}
	return a
}

// Listen consumes audioChan until it is closed.
func (a *Analyzer) Listen(audioChan <-chan []float32) {
	for samples := range audioChan {
		a.Push(samples)
	}
}

// Push appends samples to the history.
func (a *Analyzer) Push(samples []float32) {
	a.mutex.Lock()
	for _, sample := range samples {
		a.historyBuffer[a.bufferPos] = sample
		a.bufferPos = (a.bufferPos + 1) % historyBufferSize
	}
	a.mutex.Unlock()
}

func (a *Analyzer) recentSamples(numSamples int) []float32 {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	out := make([]float32, numSamples)
	for i := 0; i < numSamples; i++ {
		index := (a.bufferPos - numSamples + i + historyBufferSize) % historyBufferSize
		out[i] = a.historyBuffer[index]
	}
	return out
}

// Levels analyses the latest 2048 samples. It is meant to be called once per
// frame from a single goroutine.
func (a *Analyzer) Levels() Levels {
	samples := a.recentSamples(fftInputSize)
	samples64 := make([]float64, fftInputSize)
	for i, s := range samples {
		samples64[i] = float64(s) * a.window[i]
	}

	fftResult := fft.FFTReal(samples64)

	scaled := make([]float64, len(a.lastDB))
	for i := range a.lastDB {
		re := real(fftResult[i])
		im := imag(fftResult[i])
		magnitude := math.Sqrt(re*re+im*im) * (2.0 / float64(fftInputSize))
		db := 20 * math.Log10(magnitude+1e-9)

		a.lastDB[i] = (a.smoothingFactor * a.lastDB[i]) + ((1.0 - a.smoothingFactor) * db)
		scaled[i] = math.Max(0, math.Min(1, (a.lastDB[i]-minDecibels)/(maxDecibels-minDecibels)))
	}

	return Levels{
		Bass: a.band(scaled, 20, 250),
		Mid:  a.band(scaled, 250, 2000),
		High: a.band(scaled, 2000, 8000),
	}
}

// band averages the scaled bins covering [lo, hi) Hz.
func (a *Analyzer) band(scaled []float64, lo, hi float64) float64 {
	binHz := float64(a.sampleRate) / fftInputSize
	first := int(math.Ceil(lo / binHz))
	last := int(math.Ceil(hi/binHz)) - 1
	if last >= len(scaled) {
		last = len(scaled) - 1
	}
	if first > last {
		return 0
	}
	sum := 0.0
	for i := first; i <= last; i++ {
		sum += scaled[i]
	}
	return sum / float64(last-first+1)
}

// blackmanWindow generates a Blackman window.
func blackmanWindow(size int) []float64 {
	window := make([]float64, size)
	a0 := 0.42
	a1 := 0.5
	a2 := 0.08
	invSize := 1.0 / float64(size-1)
	for i := range window {
		t := float64(i) * invSize
		window[i] = a0 - (a1 * math.Cos(2*math.Pi*t)) + (a2 * math.Cos(4*math.Pi*t))
	}
	return window
}
