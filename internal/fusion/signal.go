package fusion

import (
	"math"

	"newsinsight/internal/sentiment"
)

// SubSignal names one input of the trading signal.
type SubSignal string

const (
	SignalSentiment SubSignal = "sentiment"
	SignalMomentum  SubSignal = "momentum"
	SignalVolume    SubSignal = "volume"
	SignalTechnical SubSignal = "technical"
)

// Weights of each sub-signal before renormalisation.
var Weights = map[SubSignal]float64{
	SignalSentiment: 0.4,
	SignalMomentum:  0.3,
	SignalVolume:    0.2,
	SignalTechnical: 0.1,
}

var signalOrder = []SubSignal{SignalSentiment, SignalMomentum, SignalVolume, SignalTechnical}

// Recommendation is the categorical reading of an overall signal.
type Recommendation string

const (
	StrongBuy  Recommendation = "Strong Buy"
	Buy        Recommendation = "Buy"
	Hold       Recommendation = "Hold"
	Sell       Recommendation = "Sell"
	StrongSell Recommendation = "Strong Sell"
)

// Technicals carries the latest indicator values; nil fields are unknown.
type Technicals struct {
	RSI   *float64
	Close *float64
	MA20  *float64
	MA50  *float64
}

// SignalInputs are the raw inputs for one ticker. Nil market fields drop the
// matching sub-signal.
type SignalInputs struct {
	Sentiment     sentiment.Verdict
	ChangePercent *float64
	Volume        *int64
	Technicals    *Technicals
}

// TradingSignal is the fused output.
type TradingSignal struct {
	Overall        float64
	Strength       float64
	Signals        map[SubSignal]float64
	Recommendation Recommendation
	Confidence     float64
}

// GenerateSignal fuses the present sub-signals with renormalised weights.
func GenerateSignal(in SignalInputs) TradingSignal {
	signals := map[SubSignal]float64{
		SignalSentiment: in.Sentiment.Clamp().Signed(),
	}

	// 成交量只有方向随动量；没有价格变化时不计入。
	if in.ChangePercent != nil && !math.IsNaN(*in.ChangePercent) && !math.IsInf(*in.ChangePercent, 0) {
		momentum := MomentumSignal(*in.ChangePercent)
		signals[SignalMomentum] = momentum
		if in.Volume != nil {
			volume := VolumeSignal(*in.Volume)
			if momentum != 0 {
				volume *= sign(momentum)
			}
			signals[SignalVolume] = volume
		}
	}
	if in.Technicals != nil {
		if v, ok := TechnicalSignal(*in.Technicals); ok {
			signals[SignalTechnical] = v
		}
	}

	overall := weightedAverage(signals)
	return TradingSignal{
		Overall:        overall,
		Strength:       math.Abs(overall),
		Signals:        signals,
		Recommendation: Recommend(overall),
		Confidence:     SignalConfidence(signals),
	}
}

// MomentumSignal squashes a percent price change into [-1,1].
func MomentumSignal(changePercent float64) float64 {
	return math.Tanh(changePercent / 5)
}

// VolumeSignal is a magnitude-only step function of raw volume.
func VolumeSignal(volume int64) float64 {
	switch {
	case volume > 1_000_000:
		return 0.5
	case volume > 100_000:
		return 0.2
	default:
		return 0
	}
}

// TechnicalSignal averages the RSI and moving-average crossover readings that
// can be computed. ok is false when neither can.
func TechnicalSignal(t Technicals) (value float64, ok bool) {
	var parts []float64
	if t.RSI != nil {
		switch rsi := *t.RSI; {
		case rsi > 70:
			parts = append(parts, -0.5)
		case rsi < 30:
			parts = append(parts, 0.5)
		default:
			parts = append(parts, 0)
		}
	}
	if t.Close != nil && t.MA20 != nil && t.MA50 != nil {
		c, m20, m50 := *t.Close, *t.MA20, *t.MA50
		switch {
		case c > m20 && m20 > m50:
			parts = append(parts, 0.3)
		case c < m20 && m20 < m50:
			parts = append(parts, -0.3)
		default:
			parts = append(parts, 0)
		}
	}
	if len(parts) == 0 {
		return 0, false
	}
	return mean(parts), true
}

// Recommend maps an overall signal onto its band.
func Recommend(s float64) Recommendation {
	switch {
	case s > 0.3:
		return StrongBuy
	case s > 0.1:
		return Buy
	case s >= -0.1:
		return Hold
	case s >= -0.3:
		return Sell
	default:
		return StrongSell
	}
}

// SignalConfidence rewards strong, agreeing sub-signals:
// mean(|v|) × (1 − min(stdev(v), 1)), bounded to [0,1].
func SignalConfidence(signals map[SubSignal]float64) float64 {
	if len(signals) == 0 {
		return 0
	}
	values := make([]float64, 0, len(signals))
	abs := make([]float64, 0, len(signals))
	for _, name := range signalOrder {
		if v, ok := signals[name]; ok {
			values = append(values, v)
			abs = append(abs, math.Abs(v))
		}
	}
	conf := mean(abs) * (1 - math.Min(stddev(values), 1))
	return math.Max(0, math.Min(conf, 1))
}

func weightedAverage(signals map[SubSignal]float64) float64 {
	var sum, total float64
	for _, name := range signalOrder {
		v, ok := signals[name]
		if !ok {
			continue
		}
		sum += v * Weights[name]
		total += Weights[name]
	}
	if total == 0 {
		return 0
	}
	return sum / total
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stddev is the population standard deviation.
func stddev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	var sq float64
	for _, v := range values {
		sq += (v - m) * (v - m)
	}
	return math.Sqrt(sq / float64(len(values)))
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
