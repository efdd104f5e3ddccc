package vision

import (
	"math"
	"math/cmplx"
)

// spectralBlock caps the FFT size per analysis block. At 16 kHz one block
// spans half a second, plenty for a stable centroid estimate.
const spectralBlock = 8192

// WindowFeatures summarizes one mono PCM window.
type WindowFeatures struct {
	// Energy is the RMS amplitude in [0, 1].
	Energy float64
	// ZeroCrossRate is the fraction of adjacent sample pairs that change
	// sign. Voiced speech sits low, fricatives and noise high.
	ZeroCrossRate float64
	// Centroid is the magnitude-weighted mean frequency in Hz.
	Centroid float64
}

// AnalyzeWindow computes energy, zero-crossing rate, and spectral centroid
// for a window of mono samples in [-1, 1].
func AnalyzeWindow(samples []float64, sampleRate int) WindowFeatures {
	if len(samples) == 0 || sampleRate <= 0 {
		return WindowFeatures{}
	}

	var sumSq float64
	crossings := 0
	for i, s := range samples {
		sumSq += s * s
		if i > 0 && samples[i-1]*s < 0 {
			crossings++
		}
	}

	f := WindowFeatures{
		Energy:   math.Sqrt(sumSq / float64(len(samples))),
		Centroid: spectralCentroid(samples, sampleRate),
	}
	if len(samples) > 1 {
		f.ZeroCrossRate = float64(crossings) / float64(len(samples)-1)
	}
	return f
}

// spectralCentroid averages per-block centroids across the window. Each
// block is Hann windowed, zero padded to a power of two, and transformed;
// near-silent blocks are skipped so leading silence cannot drag the
// estimate toward zero.
func spectralCentroid(samples []float64, sampleRate int) float64 {
	var total float64
	blocks := 0

	for off := 0; off < len(samples); off += spectralBlock {
		end := min(off+spectralBlock, len(samples))
		block := samples[off:end]

		n := nextPow2(len(block))
		buf := make([]complex128, n)
		for i, s := range block {
			buf[i] = complex(s*hann(i, len(block)), 0)
		}
		fft(buf)

		binWidth := float64(sampleRate) / float64(n)
		var weighted, magSum float64
		for k := 0; k <= n/2; k++ {
			mag := cmplx.Abs(buf[k])
			weighted += float64(k) * binWidth * mag
			magSum += mag
		}
		if magSum < 1e-12 {
			continue
		}
		total += weighted / magSum
		blocks++
	}

	if blocks == 0 {
		return 0
	}
	return total / float64(blocks)
}

// fft performs an in-place radix-2 Cooley-Tukey transform. len(x) must be a
// power of two.
func fft(x []complex128) {
	n := len(x)
	if n <= 1 {
		return
	}

	// Bit-reversal permutation.
	for i, j := 1, 0; i < n; i++ {
		bit := n >> 1
		for ; j&bit != 0; bit >>= 1 {
			j ^= bit
		}
		j |= bit
		if i < j {
			x[i], x[j] = x[j], x[i]
		}
	}

	for size := 2; size <= n; size <<= 1 {
		step := -2 * math.Pi / float64(size)
		w := complex(math.Cos(step), math.Sin(step))
		for start := 0; start < n; start += size {
			factor := complex(1, 0)
			for k := 0; k < size/2; k++ {
				even := x[start+k]
				odd := x[start+k+size/2] * factor
				x[start+k] = even + odd
				x[start+k+size/2] = even - odd
				factor *= w
			}
		}
	}
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func hann(i, n int) float64 {
	if n <= 1 {
		return 1
	}
	return 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
}
