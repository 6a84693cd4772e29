package fusion

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsinsight/internal/sentiment"
)

func ptr[T any](v T) *T { return &v }

func TestImpactScoreIsExact(t *testing.T) {
	table := NewEventTable(DefaultEventMultipliers())
	got := ImpactScore(0.9, 1.0, table.Multiplier(EventEarnings))
	assert.True(t, got.Equal(decimal.RequireFromString("1.26")), "得到 %s", got)

	got = ImpactScore(0.98, 1.2, table.Multiplier(EventGeneral))
	assert.True(t, got.Equal(decimal.RequireFromString("1.176")), "得到 %s", got)

	assert.True(t, ImpactScore(-1, 1, decimal.NewFromInt(1)).IsZero())
	assert.True(t, ImpactScore(0.5, 1, decimal.NewFromInt(-2)).IsZero())
}

func TestEventTableCaseInsensitive(t *testing.T) {
	// viper 会把 map 的 key 转成小写
	table := NewEventTable(map[string]float64{
		"merger or acquisition": 2,
		"not a category":        9,
		"partnership":           0,
	})
	assert.True(t, table.Multiplier(EventMerger).Equal(decimal.NewFromInt(2)))
	assert.True(t, table.Multiplier(EventPartnership).Equal(decimal.NewFromInt(1)))
	assert.True(t, table.Multiplier(EventEarnings).Equal(decimal.NewFromInt(1)))
}

func TestCanonicalEvent(t *testing.T) {
	cases := map[string]EventType{
		"Earnings Report":                    EventEarnings,
		"  partnership. ":                    EventPartnership,
		"The category is: Executive Change.": EventExecutive,
		"something else":                     EventGeneral,
		"":                                   EventGeneral,
	}
	for in, want := range cases {
		assert.Equal(t, want, CanonicalEvent(in), "输入 %q", in)
	}
}

func TestGenerateSignalSentimentAndMomentum(t *testing.T) {
	sig := GenerateSignal(SignalInputs{
		Sentiment:     sentiment.Verdict{Label: sentiment.Positive, Confidence: 0.8},
		ChangePercent: ptr(3.5),
	})

	want := (0.8*0.4 + math.Tanh(0.7)*0.3) / 0.7
	assert.InDelta(t, want, sig.Overall, 1e-9)
	assert.InDelta(t, 0.7162, sig.Overall, 1e-3)
	assert.Equal(t, StrongBuy, sig.Recommendation)
	assert.Equal(t, math.Abs(sig.Overall), sig.Strength)
	require.Len(t, sig.Signals, 2)
	assert.NotContains(t, sig.Signals, SignalVolume)
}

func TestGenerateSignalSentimentOnly(t *testing.T) {
	sig := GenerateSignal(SignalInputs{
		Sentiment: sentiment.Verdict{Label: sentiment.Negative, Confidence: 0.25},
	})
	assert.InDelta(t, -0.25, sig.Overall, 1e-12)
	assert.Equal(t, Sell, sig.Recommendation)
	// 只有一个分量时标准差为 0
	assert.InDelta(t, 0.25, sig.Confidence, 1e-12)
}

func TestVolumeFollowsMomentumSign(t *testing.T) {
	sig := GenerateSignal(SignalInputs{
		Sentiment:     sentiment.Verdict{Label: sentiment.Neutral},
		ChangePercent: ptr(-2.0),
		Volume:        ptr(int64(2_000_000)),
	})
	assert.Equal(t, -0.5, sig.Signals[SignalVolume])

	sig = GenerateSignal(SignalInputs{
		Sentiment:     sentiment.Verdict{Label: sentiment.Neutral},
		ChangePercent: ptr(0.0),
		Volume:        ptr(int64(2_000_000)),
	})
	assert.Equal(t, 0.5, sig.Signals[SignalVolume], "动量为 0 时保留成交量幅度")

	assert.Equal(t, 0.2, VolumeSignal(500_000))
	assert.Equal(t, 0.0, VolumeSignal(100_000))
}

func TestFlatSessionKeepsVolumeMagnitude(t *testing.T) {
	sig := GenerateSignal(SignalInputs{
		Sentiment:     sentiment.Verdict{Label: sentiment.Positive, Confidence: 0.8},
		ChangePercent: ptr(0.0),
		Volume:        ptr(int64(2_000_000)),
	})
	assert.InDelta(t, (0.8*0.4+0.5*0.2)/0.9, sig.Overall, 1e-9)
	assert.InDelta(t, 0.4667, sig.Overall, 1e-3)
	assert.InDelta(t, 0.290, sig.Confidence, 1e-3)
}

func TestVolumeWithoutPriceChangeIsIgnored(t *testing.T) {
	sig := GenerateSignal(SignalInputs{
		Sentiment: sentiment.Verdict{Label: sentiment.Positive, Confidence: 0.8},
		Volume:    ptr(int64(2_000_000)),
	})
	assert.NotContains(t, sig.Signals, SignalVolume)
	assert.NotContains(t, sig.Signals, SignalMomentum)
	assert.InDelta(t, 0.8, sig.Overall, 1e-12)
}

func TestNonFiniteChangeIsIgnored(t *testing.T) {
	sig := GenerateSignal(SignalInputs{
		Sentiment:     sentiment.Verdict{Label: sentiment.Positive, Confidence: 0.8},
		ChangePercent: ptr(math.NaN()),
		Volume:        ptr(int64(2_000_000)),
	})
	assert.Equal(t, map[SubSignal]float64{SignalSentiment: 0.8}, sig.Signals)
	assert.InDelta(t, 0.8, sig.Overall, 1e-12)
}

func TestTechnicalSignal(t *testing.T) {
	_, ok := TechnicalSignal(Technicals{Close: ptr(10.0)})
	assert.False(t, ok)

	v, ok := TechnicalSignal(Technicals{RSI: ptr(25.0), Close: ptr(12.0), MA20: ptr(11.0), MA50: ptr(10.0)})
	require.True(t, ok)
	assert.InDelta(t, 0.4, v, 1e-12)

	v, ok = TechnicalSignal(Technicals{RSI: ptr(75.0)})
	require.True(t, ok)
	assert.Equal(t, -0.5, v)

	sig := GenerateSignal(SignalInputs{
		Sentiment:  sentiment.Verdict{Label: sentiment.Positive, Confidence: 0.5},
		Technicals: &Technicals{Close: ptr(1.0)},
	})
	assert.NotContains(t, sig.Signals, SignalTechnical)
}

func TestRecommendBands(t *testing.T) {
	cases := []struct {
		in   float64
		want Recommendation
	}{
		{0.31, StrongBuy},
		{0.3, Buy},
		{0.11, Buy},
		{0.1, Hold},
		{0, Hold},
		{-0.1, Hold},
		{-0.11, Sell},
		{-0.3, Sell},
		{-0.31, StrongSell},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Recommend(c.in), "信号 %v", c.in)
	}
}

func TestSignalConfidenceBounds(t *testing.T) {
	assert.Equal(t, 0.0, SignalConfidence(nil))

	disagree := map[SubSignal]float64{SignalSentiment: 1, SignalMomentum: -1}
	assert.Equal(t, 0.0, SignalConfidence(disagree))

	agree := map[SubSignal]float64{SignalSentiment: 0.6, SignalMomentum: 0.6, SignalVolume: 0.6}
	assert.InDelta(t, 0.6, SignalConfidence(agree), 1e-12)
}
