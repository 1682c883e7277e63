package detect

import (
	"math"
	"sort"
)

func meanOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}

// mannWhitneyP returns the two-sided p-value of the Mann-Whitney U test using
// the normal approximation with tie correction. Suitable for the sample sizes
// produced by realistic window configurations.
func mannWhitneyP(x, y []float64) float64 {
	n1 := float64(len(x))
	n2 := float64(len(y))
	if n1 == 0 || n2 == 0 {
		return 1
	}

	ranks, tieTerm := rankCombined(x, y)

	r1 := 0.0
	for i := range x {
		r1 += ranks[i]
	}
	u1 := r1 - n1*(n1+1)/2
	u2 := n1*n2 - u1
	u := math.Min(u1, u2)

	n := n1 + n2
	mu := n1 * n2 / 2
	sigma2 := n1 * n2 / 12 * ((n + 1) - tieTerm/(n*(n-1)))
	if sigma2 <= 0 {
		// All observations tied: no evidence of difference.
		return 1
	}
	sigma := math.Sqrt(sigma2)

	// Continuity correction.
	z := (u - mu + 0.5) / sigma
	p := 2 * normalCDF(z)
	if p > 1 {
		p = 1
	}
	return p
}

// rankCombined assigns midranks over the concatenation of x and y (x first)
// and returns the tie-correction term sum(t^3 - t).
func rankCombined(x, y []float64) ([]float64, float64) {
	total := len(x) + len(y)
	values := make([]float64, 0, total)
	values = append(values, x...)
	values = append(values, y...)

	order := make([]int, total)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return values[order[a]] < values[order[b]] })

	ranks := make([]float64, total)
	tieTerm := 0.0
	for i := 0; i < total; {
		j := i
		for j+1 < total && values[order[j+1]] == values[order[i]] {
			j++
		}
		// Midrank for the tie group [i, j].
		rank := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[order[k]] = rank
		}
		if t := float64(j - i + 1); t > 1 {
			tieTerm += t*t*t - t
		}
		i = j + 1
	}
	return ranks, tieTerm
}

func normalCDF(z float64) float64 {
	return 0.5 * (1 + math.Erf(z/math.Sqrt2))
}
