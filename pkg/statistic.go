package tpx3

import (
	"encoding/json"
	"fmt"
)

// Statistic selects the central tendency used as the dead-pixel reference.
type Statistic int

const (
	StatisticMedian Statistic = iota
	StatisticMean
)

var statisticStrings = []string{
	"median",
	"mean",
}

func (s Statistic) Valid() bool {
	return s >= StatisticMedian && s <= StatisticMean
}

func (s Statistic) String() string {
	if !s.Valid() {
		return "UNKNOWN"
	}
	return statisticStrings[s]
}

func (s Statistic) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Statistic) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for i, v := range statisticStrings {
		if v == name {
			*s = Statistic(i)
			return nil
		}
	}
	return &ConfigError{Field: "dead_pixel_statistic", Reason: fmt.Sprintf("must be one of %v, got %q", statisticStrings, name)}
}
