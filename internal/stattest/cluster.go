package stattest

// Cluster one maximal run of consecutive violations [Start, End].
type Cluster struct {
	Start int `json:"start"`
	End   int `json:"end"`
	Len   int `json:"len"`
}

// ClusterReport 위반 군집 통계
type ClusterReport struct {
	Violations int       `json:"violations"`
	Count      int       `json:"count"`
	MaxLen     int       `json:"max_len"`
	MeanLen    float64   `json:"mean_len"`
	MeanGap    float64   `json:"mean_gap"` // start-to-start spacing
	HasGap     bool      `json:"has_gap"`  // false with fewer than two clusters
	Clusters   []Cluster `json:"clusters"`
	Stress     []Cluster `json:"stress"` // Len >= StressClusterMin
}

// Clusters finds runs of consecutive 1s. Zero violations give an empty
// report, not an error.
func Clusters(series []int, opts Options) (ClusterReport, error) {
	if err := checkSeries(series); err != nil {
		return ClusterReport{}, err
	}

	minStress := opts.StressClusterMin
	if minStress < 1 {
		minStress = DefaultOptions().StressClusterMin
	}

	var rep ClusterReport
	start := -1
	closeRun := func(end int) {
		c := Cluster{Start: start, End: end, Len: end - start + 1}
		rep.Clusters = append(rep.Clusters, c)
		if c.Len >= minStress {
			rep.Stress = append(rep.Stress, c)
		}
		start = -1
	}

	for t, v := range series {
		switch {
		case v == 1 && start < 0:
			start = t
		case v == 0 && start >= 0:
			closeRun(t - 1)
		}
		rep.Violations += v
	}
	if start >= 0 {
		closeRun(len(series) - 1)
	}

	rep.Count = len(rep.Clusters)
	if rep.Count == 0 {
		return rep, nil
	}

	total := 0
	for _, c := range rep.Clusters {
		total += c.Len
		if c.Len > rep.MaxLen {
			rep.MaxLen = c.Len
		}
	}
	rep.MeanLen = float64(total) / float64(rep.Count)

	if rep.Count > 1 {
		gaps := 0
		for i := 1; i < rep.Count; i++ {
			gaps += rep.Clusters[i].Start - rep.Clusters[i-1].Start
		}
		rep.MeanGap = float64(gaps) / float64(rep.Count-1)
		rep.HasGap = true
	}

	return rep, nil
}
