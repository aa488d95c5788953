package models

import "time"

// RankingItem is one row of a ranking page. Placements are 1-based and
// already offset by the page start.
type RankingItem[T any] struct {
	Placement         int64           `json:"placement"`
	Change            PlacementChange `json:"change"`
	PreviousPlacement int64           `json:"previousPlacement"`
	Views             int64           `json:"views"`
	Entity            T               `json:"entity"`
}

type RankingResult[T any] struct {
	TotalCount int64            `json:"totalCount"`
	Timestamp  time.Time        `json:"timestamp"`
	Results    []RankingItem[T] `json:"results"`
}

type SongRankingResult = RankingResult[*Song]
type ArtistRankingResult = RankingResult[*Artist]
