package sequence

import (
	"strconv"

	"github.com/montanaflynn/stats"
)

// Summary describes the outcome of the sampling phase of a run.
type Summary struct {
	Attempted int
	Recorded  int
	Failed    int

	// Statistics over the recorded values that parse as numbers. Values that
	// do not parse are still recorded; they are only left out here.
	Numeric int
	Min     float64
	Mean    float64
	Max     float64
}

func (s *Summary) addStats(values []string) {
	data := make(stats.Float64Data, 0, len(values))
	for _, v := range values {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			continue
		}
		data = append(data, f)
	}

	s.Numeric = len(data)
	if s.Numeric == 0 {
		return
	}

	// stats only fails on empty input, which is excluded above.
	s.Min, _ = data.Min()
	s.Mean, _ = data.Mean()
	s.Max, _ = data.Max()
}
