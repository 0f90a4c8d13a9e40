package domain

type PollOptionStats struct {
	Option     Option  `json:"option"`
	VoteCount  int64   `json:"votes"`
	Percentage float64 `json:"percentage"`
}

// Stats returns per-option counts and percentages in option order.
func (t Tally) Stats(options []Option) []PollOptionStats {
	total := t.Total()
	stats := make([]PollOptionStats, 0, len(options))
	for _, opt := range options {
		count := t[opt]
		percentage := 0.0
		if total > 0 {
			percentage = (float64(count) / float64(total)) * 100
		}
		stats = append(stats, PollOptionStats{
			Option:     opt,
			VoteCount:  count,
			Percentage: percentage,
		})
	}
	return stats
}
