package risk

import (
	"fmt"
	"math"
	"sort"

	"github.com/wonny/aegis-risklab/internal/riskerr"
)

var (
	ErrEmptyInput             = riskerr.New(riskerr.ErrData, "empty sample")
	ErrInvalidConfidenceLevel = riskerr.New(riskerr.ErrConfiguration, "confidence level must be in (0,1)")
)

// =============================================================================
// VaR / CVaR (Quantile-based)
// =============================================================================

// Estimate computes VaR and CVaR of a return sample at confidence alpha.
//
// VaR is the (1-alpha) empirical quantile with linear interpolation between
// order statistics (see Quantile). CVaR is the arithmetic mean of all sample
// points at or below VaR. Since the smallest order statistic never exceeds the
// interpolated quantile, the tail selection is never empty and CVaR <= VaR.
//
// sample is not modified; identical inputs give bit-identical results.
func Estimate(sample []float64, alpha float64) (Result, error) {
	if len(sample) == 0 {
		return Result{}, ErrEmptyInput
	}
	if !(alpha > 0 && alpha < 1) {
		return Result{}, fmt.Errorf("%w: got %v", ErrInvalidConfidenceLevel, alpha)
	}

	// 수익률 정렬 (오름차순: 손실이 앞에)
	sorted := make([]float64, len(sample))
	copy(sorted, sample)
	sort.Float64s(sorted)

	varValue := Quantile(sorted, 1-alpha)

	// CVaR (Expected Shortfall): VaR 이하 수익률 평균
	var sum float64
	count := 0
	for _, v := range sorted {
		if v > varValue {
			break
		}
		sum += v
		count++
	}

	return Result{
		Alpha: alpha,
		VaR:   varValue,
		CVaR:  sum / float64(count),
		N:     len(sorted),
	}, nil
}

// Quantile returns the q-quantile of an ascending slice.
//
// Rule (fixed; tests compare exact values): h = (n-1)·q,
// Q = x[⌊h⌋] + (h-⌊h⌋)·(x[⌊h⌋+1] - x[⌊h⌋]). This is numpy's default
// "linear" method. q is clamped to [0, 1].
func Quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}

	h := q * float64(len(sorted)-1)
	lower := int(math.Floor(h))
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}

	// 선형 보간
	weight := h - float64(lower)
	return sorted[lower] + weight*(sorted[upper]-sorted[lower])
}

// Percentile 백분위수 계산 (p in [0, 100])
func Percentile(sorted []float64, p float64) float64 {
	return Quantile(sorted, p/100.0)
}

// =============================================================================
// 통계 유틸리티
// =============================================================================

// Mean 평균 계산
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev 표준편차 계산 (표본, n-1)
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := Mean(values)
	var sumSq float64
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(len(values)-1))
}

// Summarize 기술통계 + 백분위수
func Summarize(sample []float64) Summary {
	sorted := make([]float64, len(sample))
	copy(sorted, sample)
	sort.Float64s(sorted)

	percentiles := make(map[int]float64)
	for _, p := range []int{1, 5, 10, 25, 50, 75, 90, 95, 99} {
		percentiles[p] = Percentile(sorted, float64(p))
	}

	return Summary{
		N:           len(sample),
		Mean:        Mean(sample),
		StdDev:      StdDev(sample),
		Percentiles: percentiles,
	}
}
