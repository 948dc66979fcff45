package rewards

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Policy computes the reward for a contribution from the pattern's
// complexity (1-10) and how many times the same pattern had been submitted
// before this contribution. Higher complexity pays more; prior usage pays
// less.
type Policy func(complexity int, priorUsage int64) decimal.Decimal

const baseReward = 10

// DefaultPolicy pays base 10 ZTH times a complexity multiplier of 1-6x,
// damped logarithmically for patterns the platform has already seen.
func DefaultPolicy(complexity int, priorUsage int64) decimal.Decimal {
	c := complexity
	if c > 10 {
		c = 10
	}
	if c < 1 {
		c = 1
	}
	multiplier := int64(c/2 + 1)
	base := decimal.NewFromInt(baseReward).Mul(decimal.NewFromInt(multiplier))
	damping := 1.0 / (1.0 + math.Log(1.0+float64(priorUsage)))
	return base.Mul(decimal.NewFromFloat(damping)).Round(2)
}

// ScoreComplexity assigns a 1-10 complexity score to submitted code using a
// cheap structural heuristic: size, nesting and branching all add weight.
func ScoreComplexity(code string) int {
	lines := strings.Split(code, "\n")
	score := 1

	if len(lines) > 10 {
		score++
	}
	if len(lines) > 30 {
		score++
	}
	if len(lines) > 80 {
		score++
	}

	depth, maxDepth := 0, 0
	branches := 0
	for _, line := range lines {
		for _, ch := range line {
			switch ch {
			case '{', '(', '[':
				depth++
				if depth > maxDepth {
					maxDepth = depth
				}
			case '}', ')', ']':
				if depth > 0 {
					depth--
				}
			}
		}
		trimmed := strings.TrimSpace(line)
		for _, kw := range []string{"if ", "for ", "while ", "switch ", "case ", "else", "catch ", "match "} {
			if strings.HasPrefix(trimmed, kw) {
				branches++
				break
			}
		}
	}

	score += maxDepth / 3
	score += branches / 4

	if score > 10 {
		score = 10
	}
	return score
}
