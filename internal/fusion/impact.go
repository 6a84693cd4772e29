package fusion

import (
	"time"

	"github.com/shopspring/decimal"

	"newsinsight/internal/figures"
	"newsinsight/internal/sentiment"
)

// Insight is the persisted per-company outcome of one article.
type Insight struct {
	Timestamp    time.Time
	ArticleTitle string
	Link         string
	CompanyName  string
	Ticker       string
	Sentiment    sentiment.Label
	Confidence   float64
	EventType    EventType
	ImpactScore  decimal.Decimal
	KeyFigures   figures.KeyFigures
}

// ImpactScore is confidence × source weight × event multiplier, computed in
// decimal so that e.g. 0.9 × 1.0 × 1.4 is exactly 1.26. Negative inputs count
// as zero; there is no upper clamp.
func ImpactScore(confidence, sourceWeight float64, multiplier decimal.Decimal) decimal.Decimal {
	if confidence < 0 || confidence != confidence {
		confidence = 0
	}
	if sourceWeight < 0 || sourceWeight != sourceWeight {
		sourceWeight = 0
	}
	if multiplier.IsNegative() {
		multiplier = decimal.Zero
	}
	return decimal.NewFromFloat(confidence).
		Mul(decimal.NewFromFloat(sourceWeight)).
		Mul(multiplier)
}
