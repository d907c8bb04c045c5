package experiment

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary aggregates the stats of several episodes.
type Summary struct {
	Episodes   int
	MeanReturn float64
	StdReturn  float64
	MinReturn  float64
	MaxReturn  float64
	MeanSteps  float64
	Terminated int
	Truncated  int
}

func Summarize(episodes []EpisodeStats) Summary {
	s := Summary{Episodes: len(episodes)}
	if len(episodes) == 0 {
		return s
	}
	returns := make([]float64, len(episodes))
	steps := make([]float64, len(episodes))
	for i, ep := range episodes {
		returns[i] = ep.Return
		steps[i] = float64(ep.Steps)
		if ep.Terminated {
			s.Terminated++
		}
		if ep.Truncated {
			s.Truncated++
		}
	}
	s.MeanReturn, s.StdReturn = stat.PopMeanStdDev(returns, nil)
	s.MinReturn = floats.Min(returns)
	s.MaxReturn = floats.Max(returns)
	s.MeanSteps = stat.Mean(steps, nil)
	return s
}
