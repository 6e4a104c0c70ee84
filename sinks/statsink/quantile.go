// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package statsink

import (
	"math"
	"time"
)

// estimator implements the P-Square algorithm, for streaming estimation of
// a single quantile of a series of durations, in constant space.
//
// Reference:
// Jain, R. and Chlamtac, I. (1985). "The P² Algorithm for Dynamic Calculation
// of Quantiles and Histograms Without Storing Observations". Communications
// of the ACM, 28(10), pp. 1076-1085.
//
// NOT thread-safe.
type estimator struct {
	// heights of the 5 markers, in nanoseconds
	heights [5]float64
	// actual marker positions
	positions [5]int
	// desired marker positions
	desired [5]float64
	// per-observation increments of desired
	increments [5]float64
	// the first 5 observations, until the markers are initialized
	warmup [5]float64
	p      float64
	count  int
}

func newEstimator(p float64) estimator {
	p = math.Max(0, math.Min(1, p))
	return estimator{
		p:          p,
		increments: [5]float64{0, p / 2, p, (1 + p) / 2, 1},
	}
}

func (x *estimator) observe(d time.Duration) {
	v := float64(d)
	x.count++

	if x.count <= len(x.warmup) {
		x.warmup[x.count-1] = v
		if x.count == len(x.warmup) {
			insertionSort(x.warmup[:])
			for i := range x.heights {
				x.heights[i] = x.warmup[i]
				x.positions[i] = i
			}
			x.desired = [5]float64{0, 2 * x.p, 4 * x.p, 2 + 2*x.p, 4}
		}
		return
	}

	// find the cell k, such that heights[k] <= v < heights[k+1]
	var k int
	switch {
	case v < x.heights[0]:
		x.heights[0] = v
	case v >= x.heights[4]:
		x.heights[4] = v
		k = 3
	default:
		for k = 0; k < 3; k++ {
			if v < x.heights[k+1] {
				break
			}
		}
	}

	for i := k + 1; i < 5; i++ {
		x.positions[i]++
	}
	for i := range x.desired {
		x.desired[i] += x.increments[i]
	}

	for i := 1; i < 4; i++ {
		delta := x.desired[i] - float64(x.positions[i])
		if (delta >= 1 && x.positions[i+1]-x.positions[i] > 1) ||
			(delta <= -1 && x.positions[i-1]-x.positions[i] < -1) {
			sign := 1
			if delta < 0 {
				sign = -1
			}
			if h := x.parabolic(i, sign); x.heights[i-1] < h && h < x.heights[i+1] {
				x.heights[i] = h
			} else {
				x.heights[i] = x.linear(i, sign)
			}
			x.positions[i] += sign
		}
	}
}

func (x *estimator) parabolic(i, sign int) float64 {
	d := float64(sign)
	n, prev, next := float64(x.positions[i]), float64(x.positions[i-1]), float64(x.positions[i+1])
	return x.heights[i] + d/(next-prev)*((n-prev+d)*(x.heights[i+1]-x.heights[i])/(next-n)+
		(next-n-d)*(x.heights[i]-x.heights[i-1])/(n-prev))
}

func (x *estimator) linear(i, sign int) float64 {
	j := i + sign
	return x.heights[i] + float64(sign)*(x.heights[j]-x.heights[i])/float64(x.positions[j]-x.positions[i])
}

// value returns the current estimate, which is exact for fewer than 5
// observations.
func (x *estimator) value() time.Duration {
	switch {
	case x.count == 0:
		return 0
	case x.count < len(x.warmup):
		var sorted [5]float64
		copy(sorted[:], x.warmup[:x.count])
		insertionSort(sorted[:x.count])
		return time.Duration(sorted[int(float64(x.count-1)*x.p)])
	default:
		return time.Duration(x.heights[2])
	}
}

func insertionSort(s []float64) {
	for i := 1; i < len(s); i++ {
		v := s[i]
		j := i - 1
		for ; j >= 0 && s[j] > v; j-- {
			s[j+1] = s[j]
		}
		s[j+1] = v
	}
}
