package sim

import "math"

// estimateHeadings derives a heading for every sample from the ENU track.
//
// Displacement accumulates until it clears the gate, then atan2 of the
// accumulated vector becomes the heading for that sample; samples in between
// repeat the previous value and samples before the first update are
// backfilled with it. A jump of more than π/2 against the previous sample
// toggles a reversing flag which adds π to subsequent emissions; after the
// pass, a majority vote between forward and reverse steps decides whether
// the whole sequence gets flipped by π. The result is smoothed with a
// centred five-sample circular moving average that leaves the first and
// last two samples untouched.
func estimateHeadings(x, y []float64) []float64 {
	n := len(x)
	headings := make([]float64, n)

	var accX, accY float64
	var emitted, reversing bool
	var forward, reverse int

	for i := 0; i < n; i++ {
		if i > 0 {
			accX += x[i] - x[i-1]
			accY += y[i] - y[i-1]
		}

		if accX*accX+accY*accY > headingGate {
			h := math.Atan2(accY, accX)
			accX, accY = 0, 0

			if !emitted {
				emitted = true
				for j := 0; j < i; j++ {
					headings[j] = h
				}
			} else {
				if reversing {
					h += math.Pi
					reverse++
				} else {
					forward++
				}
				if math.Abs(wrapAngle(h-headings[i-1])) > math.Pi/2 {
					reversing = !reversing
					h += math.Pi
				}
			}
			headings[i] = h
		} else if i > 0 {
			headings[i] = headings[i-1]
		}
	}

	// The first emission fixed an arbitrary direction; if most gated steps
	// disagreed with it, the whole track was driven the other way.
	if reverse > forward {
		for i := range headings {
			headings[i] += math.Pi
		}
	}

	return smoothHeadings(headings)
}

// smoothHeadings applies a centred 5-sample moving average over circular
// differences, so values straddling the ±π seam average correctly.
func smoothHeadings(h []float64) []float64 {
	if len(h) < 5 {
		return h
	}
	out := make([]float64, len(h))
	copy(out, h)
	for i := 2; i < len(h)-2; i++ {
		var sum float64
		for j := i - 2; j <= i+2; j++ {
			sum += wrapAngle(h[j] - h[i])
		}
		out[i] = h[i] + sum/5
	}
	return out
}

// wrapAngle wraps an angle to (-π, π].
func wrapAngle(a float64) float64 {
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	for a <= -math.Pi {
		a += 2 * math.Pi
	}
	return a
}
