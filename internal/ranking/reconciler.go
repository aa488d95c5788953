package ranking

import (
	"context"
	"time"
	"vocarank/internal/filter"
	"vocarank/internal/models"
	"vocarank/internal/providers"
)

// previousPlacements reruns the ranking as if now were ChangeOffset days
// earlier and returns the placements it gave to ids. It returns nil when
// change tracking is off or there is no snapshot that early.
func (e *Engine) previousPlacements(ctx context.Context, p *models.RankingsFilterParams, c *filter.Compiled, query rankingQuery, at time.Time, ids []int64) (map[int64]int64, error) {
	if p.ChangeOffset <= 0 || len(ids) == 0 {
		return nil, nil
	}
	shifted := models.AddDays(at, -p.ChangeOffset)
	then, err := e.views.MostRecentSnapshot(ctx, &shifted)
	if err != nil || then == nil {
		return nil, err
	}
	w, err := e.window(ctx, *then, p.TimePeriodOffset)
	if err != nil {
		return nil, err
	}

	binds := c.With(w.binds()).Binds()
	sql := placementsSQL(query(w), ids, binds)
	var rows []placementRow
	if err := e.db.WithContext(ctx).Raw(sql, binds).Scan(&rows).Error; err != nil {
		return nil, err
	}
	e.logger.Debugf(providers.TypeQuery, "Found %d of %d previous placements at %s", len(rows), len(ids), w.current)

	out := make(map[int64]int64, len(rows))
	for _, r := range rows {
		out[r.ID] = r.Placement
	}
	return out, nil
}

// reconcile compares an entity's placement with its earlier one. Entities
// that were not ranked earlier keep their current placement and report no
// change.
func reconcile(id, current int64, previous map[int64]int64) (int64, models.PlacementChange) {
	before, ok := previous[id]
	if !ok {
		return current, models.PlacementChangeSame
	}
	return before, classify(current, before)
}

func classify(current, previous int64) models.PlacementChange {
	switch {
	case current == previous:
		return models.PlacementChangeSame
	case current < previous:
		return models.PlacementChangeUp
	default:
		return models.PlacementChangeDown
	}
}
