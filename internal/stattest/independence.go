package stattest

// Transitions consecutive-pair counts of a violation series; n_ij counts
// (series[t-1], series[t]) = (i, j).
type Transitions struct {
	N00 int `json:"n00"`
	N01 int `json:"n01"`
	N10 int `json:"n10"`
	N11 int `json:"n11"`
}

// Total number of transitions (T-1).
func (tr Transitions) Total() int {
	return tr.N00 + tr.N01 + tr.N10 + tr.N11
}

// CountTransitions tallies consecutive pairs.
func CountTransitions(series []int) Transitions {
	var tr Transitions
	for t := 1; t < len(series); t++ {
		switch {
		case series[t-1] == 0 && series[t] == 0:
			tr.N00++
		case series[t-1] == 0 && series[t] == 1:
			tr.N01++
		case series[t-1] == 1 && series[t] == 0:
			tr.N10++
		default:
			tr.N11++
		}
	}
	return tr
}

// IndependenceResult Christoffersen test with its intermediate estimates.
type IndependenceResult struct {
	Record
	Transitions Transitions `json:"transitions"`
	P01         float64     `json:"p01"` // P(violation | no violation yesterday)
	P11         float64     `json:"p11"` // P(violation | violation yesterday)
	P           float64     `json:"p"`   // pooled violation rate
}

// Christoffersen independence test.
//
//	p01 = n01/(n00+n01), p11 = n11/(n10+n11), p = (n01+n11)/T
//	LR_ind = -2·(ln L(p) - ln L(p01, p11)),  reference χ²(1)
//
// The pooled rate divides by the series length T, not by the T-1
// transitions. Probabilities are clamped to [ε, 1-ε] before taking
// logarithms; an empty conditioning row gives 0.
func Christoffersen(series []int, opts Options) (IndependenceResult, error) {
	if err := checkSeries(series); err != nil {
		return IndependenceResult{}, err
	}

	g := opts.guard()
	tr := CountTransitions(series)

	p01 := ratio(tr.N01, tr.N00+tr.N01)
	p11 := ratio(tr.N11, tr.N10+tr.N11)
	p := ratio(tr.N01+tr.N11, len(series))

	n00, n01 := float64(tr.N00), float64(tr.N01)
	n10, n11 := float64(tr.N10), float64(tr.N11)

	cp, cp01, cp11 := g.Prob(p), g.Prob(p01), g.Prob(p11)

	pooled := g.XLogP(n00+n10, 1-cp) + g.XLogP(n01+n11, cp)
	markov := g.XLogP(n00, 1-cp01) + g.XLogP(n01, cp01) +
		g.XLogP(n10, 1-cp11) + g.XLogP(n11, cp11)

	return IndependenceResult{
		Record:      newRecord(NameChristoffersen, -2*(pooled-markov), 1, opts),
		Transitions: tr,
		P01:         p01,
		P11:         p11,
		P:           p,
	}, nil
}

func ratio(a, b int) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}
