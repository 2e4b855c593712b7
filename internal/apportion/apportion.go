// Package apportion turns fractional percentages into whole percentages
// that add up to exactly 100 using the largest remainder (Hare quota)
// method.
package apportion

import (
	"math"
	"sort"
)

const (
	// Total is the sum every result adds up to
	Total = 100

	// Epsilon is how far the input sum may drift from Total
	Epsilon = 0.5
)

// Apportion converts percentages into integers summing to Total.
// It returns false when the input is empty, contains a negative or
// non-finite value, or does not sum to Total within Epsilon.
func Apportion(percentages []float64) ([]int, bool) {
	if len(percentages) == 0 {
		return nil, false
	}

	var sum float64
	for _, p := range percentages {
		if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 {
			return nil, false
		}
		sum += p
	}
	if math.Abs(sum-Total) > Epsilon {
		return nil, false
	}

	result := make([]int, len(percentages))
	remainders := make([]float64, len(percentages))
	allocated := 0
	for i, p := range percentages {
		floor := math.Floor(p)
		result[i] = int(floor)
		remainders[i] = p - floor
		allocated += result[i]
	}

	shortfall := Total - allocated
	if shortfall < 0 {
		shortfall = 0
	}
	if shortfall > len(result) {
		shortfall = len(result)
	}

	order := make([]int, len(percentages))
	for i := range order {
		order[i] = i
	}
	// stable keeps earlier indexes first on equal remainders
	sort.SliceStable(order, func(a, b int) bool {
		return remainders[order[a]] > remainders[order[b]]
	})
	for _, idx := range order[:shortfall] {
		result[idx]++
	}

	return result, true
}

// Shares converts raw counts into whole percentages of their total.
// It returns false when there is nothing to split.
func Shares(counts []int) ([]int, bool) {
	total := 0
	for _, c := range counts {
		if c < 0 {
			return nil, false
		}
		total += c
	}
	if total == 0 {
		return nil, false
	}

	percentages := make([]float64, len(counts))
	for i, c := range counts {
		percentages[i] = float64(c) * Total / float64(total)
	}
	return Apportion(percentages)
}
