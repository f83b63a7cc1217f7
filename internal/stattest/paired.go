package stattest

import "math"

// PairedResult McNemar test with its contingency table.
type PairedResult struct {
	Record
	BothFail int `json:"both_fail"`
	OnlyA    int `json:"only_a"` // a violated, b did not
	OnlyB    int `json:"only_b"`
	BothPass int `json:"both_pass"`
}

// McNemar compares two violation series over the same dates.
//
//	χ² = (|b - c| - 1)² / (b + c),  reference χ²(1)
//
// with b = OnlyA, c = OnlyB. No discordant pairs gives statistic 0 and
// p = 1. The correction is not floored: b = c > 0 scores 1/(b+c).
func McNemar(a, b []int, opts Options) (PairedResult, error) {
	if len(a) != len(b) {
		return PairedResult{}, ErrLengthMismatch
	}
	if err := checkSeries(a); err != nil {
		return PairedResult{}, err
	}
	if err := checkSeries(b); err != nil {
		return PairedResult{}, err
	}

	var res PairedResult
	for i := range a {
		switch {
		case a[i] == 1 && b[i] == 1:
			res.BothFail++
		case a[i] == 1:
			res.OnlyA++
		case b[i] == 1:
			res.OnlyB++
		default:
			res.BothPass++
		}
	}

	stat := 0.0
	if disc := res.OnlyA + res.OnlyB; disc > 0 {
		d := math.Abs(float64(res.OnlyA-res.OnlyB)) - 1
		stat = d * d / float64(disc)
	}
	res.Record = newRecord(NameMcNemar, stat, 1, opts)
	return res, nil
}
