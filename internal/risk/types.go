package risk

// =============================================================================
// Sign Convention
// =============================================================================

// VaRConvention VaR 부호 규약
// ⭐ SSOT: VaR/CVaR는 수익률 공간의 분위수로 표현 (음수 = 손실)
// A violation is recorded when the realized return falls below VaR, so VaR
// must stay in the same space as the returns it is compared against.
const VaRConvention = "return_quantile"

// =============================================================================
// Result Types
// =============================================================================

// Result VaR/CVaR 추정 결과
// - VaR=-0.021 → 95% 신뢰수준에서 수익률이 -2.1% 아래로 떨어질 확률 5%
// - CVaR=-0.027 → 하위 5% tail 평균 수익률 -2.7%
type Result struct {
	Alpha float64 `json:"alpha"` // 신뢰수준 (예: 0.95, 0.99)
	VaR   float64 `json:"var"`   // (1-alpha) return quantile
	CVaR  float64 `json:"cvar"`  // mean of sample points <= VaR
	N     int     `json:"n"`     // 샘플 수
}

// Summary 시뮬레이션 샘플 기술통계
type Summary struct {
	N           int             `json:"n"`
	Mean        float64         `json:"mean"`
	StdDev      float64         `json:"std_dev"`
	Percentiles map[int]float64 `json:"percentiles"` // 1, 5, 10, 25, 50, 75, 90, 95, 99
}
