// internal/scoring/score.go
package scoring

import (
	"math"
	"strconv"
	"strings"
	"unicode"

	"property-tracker/internal/common/config"
)

// Scorer computes the price-per-area display heuristic. The score is
// inversely proportional to the price per unit of area and capped; it is a
// hint for sorting a shortlist, not a valuation.
type Scorer struct {
	ReferenceConstant float64
	Cap               float64
}

func NewScorer(cfg config.ScoringConfig) Scorer {
	return Scorer{ReferenceConstant: cfg.ReferenceConstant, Cap: cfg.Cap}
}

// DefaultScorer uses the stock constants: 180000 per unit ratio, capped at 100.
func DefaultScorer() Scorer {
	return Scorer{ReferenceConstant: 180000, Cap: 100}
}

// ParsePrice keeps only the digits of a free-text price. Separators,
// currency symbols and words are dropped, so "$180,000" and "USD 180.000"
// both read as 180000. Anything without digits reads as 0.
func ParsePrice(price string) float64 {
	var b strings.Builder
	for _, r := range price {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return 0
	}
	v, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0
	}
	return v
}

// PricePerArea returns price/area, or 0 when either side is unusable.
func PricePerArea(price string, area float64) float64 {
	if area <= 0 || math.IsNaN(area) || math.IsInf(area, 0) {
		return 0
	}
	return ParsePrice(price) / area
}

// Score returns min(Cap, round(ReferenceConstant / ratio)), or 0 when the
// ratio is 0.
func (s Scorer) Score(price string, area float64) int {
	ratio := PricePerArea(price, area)
	if ratio <= 0 {
		return 0
	}
	score := math.Round(s.ReferenceConstant / ratio)
	if s.Cap > 0 && score > s.Cap {
		score = s.Cap
	}
	return int(score)
}

// Metrics are the derived values shown next to a property.
type Metrics struct {
	PricePerArea float64 `json:"pricePerArea"`
	Score        int     `json:"score"`
}

// Evaluate computes the metrics over the covered area.
func (s Scorer) Evaluate(price string, coveredArea float64) Metrics {
	return Metrics{
		PricePerArea: math.Round(PricePerArea(price, coveredArea)*100) / 100,
		Score:        s.Score(price, coveredArea),
	}
}
