package ranking

import (
	"context"
	"time"
	"vocarank/internal/models"
)

// GetHistoricalViews returns rng view deltas spaced period days apart,
// ending at the most recent snapshot at or before ts. A day without data
// counts as zero.
func (e *Engine) GetHistoricalViews(ctx context.Context, entity models.HistoricalEntity, id int64, rng, period int, ts *time.Time) (*models.HistoricalSeries, error) {
	series := &models.HistoricalSeries{Views: []models.HistoricalView{}}
	if rng <= 0 || period <= 0 {
		return series, nil
	}
	latest, err := e.views.MostRecentSnapshot(ctx, ts)
	if err != nil || latest == nil {
		return series, err
	}

	// days[0] is the latest, days[rng] the oldest bound
	days := make([]time.Time, rng+1)
	for i := range days {
		days[i] = models.AddDays(*latest, -i*period)
	}
	totals, err := e.views.Totals(ctx, entity, id, days)
	if err != nil {
		return nil, err
	}

	series.Views = make([]models.HistoricalView, rng)
	for i := 0; i < rng; i++ {
		delta := totals[models.FormatDay(days[i])] - totals[models.FormatDay(days[i+1])]
		series.Views[rng-1-i] = models.HistoricalView{Views: delta, Timestamp: days[i]}
		if delta > series.Largest {
			series.Largest = delta
		}
	}
	return series, nil
}
