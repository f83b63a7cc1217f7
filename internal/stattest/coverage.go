package stattest

// Kupiec unconditional coverage test on a violation series.
//
//	LR_uc = -2·[ (n-k)·ln(1-p0) + k·ln(p0) - (n-k)·ln(1-p̂) - k·ln(p̂) ],  p0 = 1-alpha, p̂ = k/n
//
// reference χ²(1). k = 0 is replaced by ε before forming p̂.
func Kupiec(series []int, alpha float64, opts Options) (Record, error) {
	if err := checkSeries(series); err != nil {
		return Record{}, err
	}
	return KupiecCounts(count(series), len(series), alpha, opts)
}

// KupiecCounts Kupiec test from a violation count k over n trials.
func KupiecCounts(k, n int, alpha float64, opts Options) (Record, error) {
	if n <= 0 {
		return Record{}, ErrEmptySeries
	}
	if k < 0 || k > n {
		return Record{}, ErrInvalidIndicator
	}
	if err := checkAlpha(alpha); err != nil {
		return Record{}, err
	}

	g := opts.guard()
	kk := g.Count(float64(k))
	nf := float64(n)

	p0 := 1 - alpha
	pHat := g.Prob(kk / nf)

	restricted := g.XLogP(nf-kk, 1-p0) + g.XLogP(kk, p0)
	unrestricted := g.XLogP(nf-kk, 1-pHat) + g.XLogP(kk, pHat)

	return newRecord(NameKupiec, -2*(restricted-unrestricted), 1, opts), nil
}

// ConditionalCoverage LR_cc = LR_uc + LR_ind, reference χ²(2).
func ConditionalCoverage(series []int, alpha float64, opts Options) (Record, error) {
	uc, err := Kupiec(series, alpha, opts)
	if err != nil {
		return Record{}, err
	}
	ind, err := Christoffersen(series, opts)
	if err != nil {
		return Record{}, err
	}
	return newRecord(NameConditionalCoverage, uc.Statistic+ind.Statistic, 2, opts), nil
}
