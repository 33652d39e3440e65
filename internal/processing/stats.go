package processing

import "math"

const (
	// TrendWindow is the number of most recent samples the trend looks at.
	TrendWindow = 50
	// a direction has to win by more than this many steps
	trendMargin = 5

	autoScaleRatio     = 0.1
	autoScaleMinMargin = 0.02
)

type Stats struct {
	Current   float64
	Min       float64
	Max       float64
	Amplitude float64
	Mean      float64
}

// Summarize computes the panel statistics over the whole window. Current is
// the newest value.
func Summarize(values []float64) Stats {
	if len(values) == 0 {
		return Stats{}
	}
	minVal := math.Inf(1)
	maxVal := math.Inf(-1)
	var sum float64
	for _, v := range values {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
		sum += v
	}
	return Stats{
		Current:   values[len(values)-1],
		Min:       minVal,
		Max:       maxVal,
		Amplitude: maxVal - minVal,
		Mean:      sum / float64(len(values)),
	}
}

type Trend int

const (
	TrendWait Trend = iota
	TrendRising
	TrendFalling
	TrendStable
)

func (t Trend) String() string {
	switch t {
	case TrendRising:
		return "Rising"
	case TrendFalling:
		return "Falling"
	case TrendStable:
		return "Stable"
	default:
		return "Wait..."
	}
}

// ClassifyTrend counts the steps between the last TrendWindow values that
// exceed threshold in either direction.
func ClassifyTrend(values []float64, threshold float64) Trend {
	if len(values) < TrendWindow {
		return TrendWait
	}
	recent := values[len(values)-TrendWindow:]
	up, down := 0, 0
	for i := 1; i < len(recent); i++ {
		diff := recent[i] - recent[i-1]
		switch {
		case diff > threshold:
			up++
		case diff < -threshold:
			down++
		}
	}
	switch {
	case up > down+trendMargin:
		return TrendRising
	case down > up+trendMargin:
		return TrendFalling
	default:
		return TrendStable
	}
}

// Band is a closed voltage interval used for the chart's vertical axis.
type Band struct {
	Low  float64
	High float64
}

func (b Band) Contains(v float64) bool {
	return v >= b.Low && v <= b.High
}

// AutoBand fits the band around the window with a margin of 10% of the
// amplitude, never less than autoScaleMinMargin.
func AutoBand(s Stats) Band {
	margin := math.Max(s.Amplitude*autoScaleRatio, autoScaleMinMargin)
	return Band{Low: s.Min - margin, High: s.Max + margin}
}
