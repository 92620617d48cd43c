package batch

import "time"

// Stats aggregates the records of an executor.
type Stats struct {
	TotalTools      int
	Completed       int
	Failed          int
	TotalDuration   time.Duration
	AverageDuration time.Duration
	SuccessRate     float64
}

// Stats computes aggregate statistics over every registered record. It is
// safe to call while a run is in progress.
func (e *Executor) Stats() Stats {
	stats := Stats{TotalTools: len(e.queue)}
	for _, rec := range e.queue {
		switch rec.Status() {
		case StatusCompleted:
			stats.Completed++
			stats.TotalDuration += rec.Duration()
		case StatusFailed:
			stats.Failed++
		}
	}
	if stats.Completed > 0 {
		stats.AverageDuration = stats.TotalDuration / time.Duration(stats.Completed)
	}
	if stats.TotalTools > 0 {
		stats.SuccessRate = float64(stats.Completed) / float64(stats.TotalTools)
	}
	return stats
}
