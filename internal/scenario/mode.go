package scenario

import (
	"fmt"
	"hash/fnv"
	"math"
	"strconv"
	"strings"
)

// Kind 시나리오 샘플링 방식
type Kind int

const (
	KindPseudoNormal Kind = iota + 1 // independent standard-normal draws
	KindSobol                        // Sobol low-discrepancy points → Φ⁻¹
	KindHalton                       // Halton low-discrepancy points → Φ⁻¹
	KindStudentT                     // Student-t(df), variance-normalized
)

func (k Kind) String() string {
	switch k {
	case KindPseudoNormal:
		return "pseudorandom-normal"
	case KindSobol:
		return "low-discrepancy-sobol"
	case KindHalton:
		return "low-discrepancy-halton"
	case KindStudentT:
		return "student-t"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Mode is the tagged sampling variant passed to Generator.Generate.
// Payload fields are only meaningful for the kinds that use them:
//   - Scramble: Sobol, Halton, and Student-t with a low-discrepancy Base
//   - DF, Base: Student-t (Base 0 or KindPseudoNormal means pseudorandom t draws)
//
// Mode is comparable and can be used as a map key.
type Mode struct {
	Kind     Kind    `json:"kind"`
	DF       float64 `json:"df,omitempty"`
	Scramble bool    `json:"scramble,omitempty"`
	Base     Kind    `json:"base,omitempty"`
}

// PseudoNormal pseudorandom standard-normal sampling (plain Monte Carlo).
func PseudoNormal() Mode { return Mode{Kind: KindPseudoNormal} }

// Sobol low-discrepancy Sobol sampling.
func Sobol(scramble bool) Mode { return Mode{Kind: KindSobol, Scramble: scramble} }

// Halton low-discrepancy Halton sampling.
func Halton(scramble bool) Mode { return Mode{Kind: KindHalton, Scramble: scramble} }

// StudentT fat-tailed pseudorandom Student-t sampling.
func StudentT(df float64) Mode { return Mode{Kind: KindStudentT, DF: df} }

// StudentTQuasi Student-t quantiles of a scrambled low-discrepancy point set.
func StudentTQuasi(df float64, base Kind) Mode {
	return Mode{Kind: KindStudentT, DF: df, Base: base, Scramble: true}
}

// Validate checks the variant payload.
func (m Mode) Validate() error {
	switch m.Kind {
	case KindPseudoNormal, KindSobol, KindHalton:
		return nil
	case KindStudentT:
		if !(m.DF > 0) || math.IsInf(m.DF, 0) {
			return fmt.Errorf("%w: got %v", ErrInvalidDegreesOfFreedom, m.DF)
		}
		switch m.Base {
		case 0, KindPseudoNormal, KindSobol, KindHalton:
			return nil
		}
		return fmt.Errorf("%w: student-t base %s", ErrInvalidMode, m.Base)
	default:
		return fmt.Errorf("%w: %s", ErrInvalidMode, m.Kind)
	}
}

// Pseudorandom plain Monte Carlo mode of the same distribution family:
// StudentT(df) for any Student-t mode, PseudoNormal otherwise.
func (m Mode) Pseudorandom() Mode {
	if m.Kind == KindStudentT {
		return StudentT(m.DF)
	}
	return PseudoNormal()
}

// quasiBase returns the low-discrepancy kind behind m, or 0 for pseudorandom modes.
func (m Mode) quasiBase() Kind {
	switch m.Kind {
	case KindSobol, KindHalton:
		return m.Kind
	case KindStudentT:
		if m.Base == KindSobol || m.Base == KindHalton {
			return m.Base
		}
	}
	return 0
}

// String returns the canonical name; ParseMode(m.String()) == m.
func (m Mode) String() string {
	switch m.Kind {
	case KindSobol, KindHalton:
		if !m.Scramble {
			return m.Kind.String() + ":unscrambled"
		}
		return m.Kind.String()
	case KindStudentT:
		s := fmt.Sprintf("student-t[%s]", strconv.FormatFloat(m.DF, 'g', -1, 64))
		if b := m.quasiBase(); b != 0 {
			s += "+" + strings.TrimPrefix(b.String(), "low-discrepancy-")
			if !m.Scramble {
				s += ":unscrambled"
			}
		}
		return s
	default:
		return m.Kind.String()
	}
}

// StreamKey stable stream id of the mode, derived from its canonical name
// so the same mode draws the same scenarios whatever its position in a list.
func (m Mode) StreamKey() uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(m.String()))
	return h.Sum64()
}

// Label 출력용 짧은 이름
func (m Mode) Label() string {
	switch m.Kind {
	case KindPseudoNormal:
		return "MC"
	case KindSobol:
		return "QMC-Sobol"
	case KindHalton:
		return "QMC-Halton"
	case KindStudentT:
		df := strconv.FormatFloat(m.DF, 'g', -1, 64)
		switch m.quasiBase() {
		case KindSobol:
			return "t(" + df + ")-Sobol"
		case KindHalton:
			return "t(" + df + ")-Halton"
		}
		return "t(" + df + ")"
	}
	return m.String()
}

// ParseMode parses a canonical mode name or one of the short aliases
// (mc, sobol, halton, t[df]). Low-discrepancy modes are scrambled unless the
// name carries the ":unscrambled" suffix.
func ParseMode(s string) (Mode, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	scramble := true
	if strings.HasSuffix(name, ":unscrambled") {
		scramble = false
		name = strings.TrimSuffix(name, ":unscrambled")
	}

	switch name {
	case "pseudorandom-normal", "mc", "normal":
		if !scramble {
			break
		}
		return PseudoNormal(), nil
	case "low-discrepancy-sobol", "sobol", "qmc-sobol":
		return Sobol(scramble), nil
	case "low-discrepancy-halton", "halton", "qmc-halton":
		return Halton(scramble), nil
	}

	for _, prefix := range []string{"student-t[", "t["} {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		rest := strings.TrimPrefix(name, prefix)
		end := strings.Index(rest, "]")
		if end < 0 {
			break
		}
		df, err := strconv.ParseFloat(rest[:end], 64)
		if err != nil {
			return Mode{}, fmt.Errorf("%w: %q", ErrInvalidDegreesOfFreedom, rest[:end])
		}

		m := StudentT(df)
		switch suffix := rest[end+1:]; suffix {
		case "":
			if !scramble {
				return Mode{}, fmt.Errorf("%w: %q", ErrInvalidMode, s)
			}
		case "+sobol":
			m = StudentTQuasi(df, KindSobol)
			m.Scramble = scramble
		case "+halton":
			m = StudentTQuasi(df, KindHalton)
			m.Scramble = scramble
		default:
			return Mode{}, fmt.Errorf("%w: %q", ErrInvalidMode, s)
		}
		if err := m.Validate(); err != nil {
			return Mode{}, err
		}
		return m, nil
	}

	return Mode{}, fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

// ParseModes parses a comma-separated list, rejecting duplicates.
func ParseModes(list string) ([]Mode, error) {
	var modes []Mode
	seen := make(map[Mode]bool)
	for _, part := range strings.Split(list, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		m, err := ParseMode(part)
		if err != nil {
			return nil, err
		}
		if seen[m] {
			return nil, fmt.Errorf("%w: duplicate mode %s", ErrInvalidMode, m)
		}
		seen[m] = true
		modes = append(modes, m)
	}
	if len(modes) == 0 {
		return nil, fmt.Errorf("%w: no modes given", ErrInvalidMode)
	}
	return modes, nil
}
