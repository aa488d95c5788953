package filter

import (
	"vocarank/internal/models"
)

// Hierarchy resolves an artist to itself plus every artist derived from it.
type Hierarchy interface {
	Subtree(id int64) []int64
}

// Table aliases used by the ranking queries: vb views rows, s songs,
// sa song credits, ra ranked artists.
var songRelations = map[Target]Relation{
	TargetSongID:     {Scope: ScopeSong, Column: "s.id"},
	TargetSongType:   {Scope: ScopeSong, Column: "s.song_type"},
	TargetSourceType: {Scope: ScopeRow, Column: "vb.view_type"},
	TargetSongSource: {
		Scope:  ScopeSong,
		Column: "fsv.source_type",
		Wrap:   "EXISTS (SELECT 1 FROM song_video_ids fsv WHERE fsv.song_id = s.id AND %s)",
	},
	TargetSongArtist: {
		Scope:  ScopeSong,
		Column: "fsa.artist_id",
		Wrap:   "EXISTS (SELECT 1 FROM song_artists fsa WHERE fsa.song_id = s.id AND %s)",
	},
	TargetSongArtistType: {
		Scope:  ScopeSong,
		Column: "fat.artist_type",
		Wrap:   "EXISTS (SELECT 1 FROM song_artists fst JOIN artists fat ON fat.id = fst.artist_id WHERE fst.song_id = s.id AND %s)",
	},
	TargetPublishDate: {Scope: ScopeSong, Column: "s.publish_date"},
	TargetSongName: {
		Scope:  ScopeSong,
		Column: "LOWER(fsn.name)",
		Wrap:   "EXISTS (SELECT 1 FROM song_names fsn WHERE fsn.song_id = s.id AND %s)",
	},
	TargetViews: {Scope: ScopeThreshold, Column: "views"},
}

var artistRelations = map[Target]Relation{
	TargetSongID:      songRelations[TargetSongID],
	TargetSongType:    songRelations[TargetSongType],
	TargetSourceType:  songRelations[TargetSourceType],
	TargetSongSource:  songRelations[TargetSongSource],
	TargetPublishDate: songRelations[TargetPublishDate],
	TargetArtistID:    {Scope: ScopeArtist, Column: "ra.id"},
	TargetArtistType:  {Scope: ScopeArtist, Column: "ra.artist_type"},
	TargetArtistName: {
		Scope:  ScopeArtist,
		Column: "LOWER(fan.name)",
		Wrap:   "EXISTS (SELECT 1 FROM artist_names fan WHERE fan.artist_id = ra.id AND %s)",
	},
	TargetCreditCategory: {Scope: ScopeCredit, Column: "sa.category"},
	TargetCreditArtist:   {Scope: ScopeCredit, Column: "sa.artist_id"},
	TargetCoArtist: {
		Scope:  ScopeCredit,
		Column: "fco.artist_id",
		Wrap:   "sa.song_id IN (SELECT fco.song_id FROM song_artists fco WHERE %s)",
	},
	TargetViews: {Scope: ScopeThreshold, Column: "views"},
}

func values[T ~int | ~int64](in []T) []interface{} {
	out := make([]interface{}, len(in))
	for i, v := range in {
		out[i] = int64(v)
	}
	return out
}

func artistGroups(ids []int64, h Hierarchy, expand bool) [][]interface{} {
	groups := make([][]interface{}, 0, len(ids))
	for _, id := range ids {
		members := []int64{id}
		if expand && h != nil {
			members = h.Subtree(id)
		}
		groups = append(groups, values(members))
	}
	return groups
}

// sharedNodes lowers the filters common to song and artist rankings that
// act on songs and views rows.
func sharedNodes(p *models.RankingsFilterParams) []Node {
	nodes := []Node{
		Include{Purpose: IncludeSongTypes, Target: TargetSongType, Values: values(p.IncludeSongTypes.Values), MatchAll: p.IncludeSongTypes.MatchAll()},
		Exclude{Purpose: ExcludeSongTypes, Target: TargetSongType, Values: values(p.ExcludeSongTypes.Values), MatchAll: p.ExcludeSongTypes.MatchAll()},
	}

	sources := values(p.IncludeSourceTypes.Values)
	nodes = append(nodes, Include{Purpose: IncludeSourceTypes, Target: TargetSourceType, Values: sources})
	if p.IncludeSourceTypes.MatchAll() {
		nodes = append(nodes, Include{Purpose: RequireSourceTypes, Target: TargetSongSource, Values: sources, MatchAll: true})
	}

	excluded := values(p.ExcludeSourceTypes.Values)
	if p.ExcludeSourceTypes.MatchAll() {
		nodes = append(nodes, Exclude{Purpose: ExcludeSourceTypes, Target: TargetSongSource, Values: excluded, MatchAll: true})
	} else {
		nodes = append(nodes, Exclude{Purpose: ExcludeSourceTypes, Target: TargetSourceType, Values: excluded})
	}

	if p.PublishDate != nil && !p.PublishDate.IsZero() {
		nodes = append(nodes, FuzzyDate{Purpose: PublishDate, Target: TargetPublishDate, Pattern: p.PublishDate.Pattern()})
	}
	if p.PublishedAfter != nil || p.PublishedBefore != nil {
		r := Range{Purpose: PublishedBetween, Target: TargetPublishDate, UpperExclusive: true}
		if p.PublishedAfter != nil {
			r.Lower = models.FormatTimestamp(*p.PublishedAfter)
		}
		if p.PublishedBefore != nil {
			r.Upper = models.FormatTimestamp(*p.PublishedBefore)
		}
		nodes = append(nodes, r)
	}
	return nodes
}

func thresholdNode(p *models.RankingsFilterParams) Node {
	r := Range{Purpose: Views, Target: TargetViews}
	if p.MinViews != nil {
		r.Lower = *p.MinViews
	}
	if p.MaxViews != nil {
		r.Upper = *p.MaxViews
	}
	return r
}

// CompileSong lowers song ranking params.
func CompileSong(p *models.SongRankingsFilterParams, h Hierarchy) *Compiled {
	b := NewBuilder(songRelations).SingleVideo(p.SingleVideo)
	b.Add(sharedNodes(&p.RankingsFilterParams)...)
	b.Add(
		Include{Purpose: IncludeSongs, Target: TargetSongID, Values: values(p.IncludeSongs.Values), MatchAll: p.IncludeSongs.MatchAll()},
		Exclude{Purpose: ExcludeSongs, Target: TargetSongID, Values: values(p.ExcludeSongs.Values), MatchAll: p.ExcludeSongs.MatchAll()},
		HierarchyMatch{
			Purpose:  IncludeArtists,
			Target:   TargetSongArtist,
			Groups:   artistGroups(p.IncludeArtists.Values, h, p.IncludeSimilarArtists),
			MatchAll: p.IncludeArtists.MatchAll(),
		},
		HierarchyMatch{
			Purpose:  ExcludeArtists,
			Target:   TargetSongArtist,
			Groups:   artistGroups(p.ExcludeArtists.Values, h, p.IncludeSimilarArtists),
			MatchAll: p.ExcludeArtists.MatchAll(),
			Negate:   true,
		},
		Include{Purpose: IncludeArtistTypes, Target: TargetSongArtistType, Values: values(p.IncludeArtistTypes.Values), MatchAll: p.IncludeArtistTypes.MatchAll()},
		Exclude{Purpose: ExcludeArtistTypes, Target: TargetSongArtistType, Values: values(p.ExcludeArtistTypes.Values), MatchAll: p.ExcludeArtistTypes.MatchAll()},
		Search{Purpose: SearchName, Target: TargetSongName, Term: p.Search},
		thresholdNode(&p.RankingsFilterParams),
	)
	return b.Build()
}

// CompileArtist lowers artist ranking params. Artist id and type filters
// apply to the ranked artists; song filters restrict which songs count.
func CompileArtist(p *models.ArtistRankingsFilterParams) *Compiled {
	b := NewBuilder(artistRelations).SingleVideo(p.SingleVideo)
	b.Add(sharedNodes(&p.RankingsFilterParams)...)
	b.Add(
		Include{Purpose: IncludeSongs, Target: TargetSongID, Values: values(p.IncludeSongs.Values), MatchAll: p.IncludeSongs.MatchAll()},
		Exclude{Purpose: ExcludeSongs, Target: TargetSongID, Values: values(p.ExcludeSongs.Values), MatchAll: p.ExcludeSongs.MatchAll()},
		Include{Purpose: IncludeArtists, Target: TargetArtistID, Values: values(p.IncludeArtists.Values), MatchAll: p.IncludeArtists.MatchAll()},
		Exclude{Purpose: ExcludeArtists, Target: TargetArtistID, Values: values(p.ExcludeArtists.Values), MatchAll: p.ExcludeArtists.MatchAll()},
		Include{Purpose: IncludeArtistTypes, Target: TargetArtistType, Values: values(p.IncludeArtistTypes.Values), MatchAll: p.IncludeArtistTypes.MatchAll()},
		Exclude{Purpose: ExcludeArtistTypes, Target: TargetArtistType, Values: values(p.ExcludeArtistTypes.Values), MatchAll: p.ExcludeArtistTypes.MatchAll()},
		Search{Purpose: SearchName, Target: TargetArtistName, Term: p.Search},
		thresholdNode(&p.RankingsFilterParams),
	)
	if p.ArtistCategory != nil {
		b.Add(Include{Purpose: ArtistCategory, Target: TargetCreditCategory, Values: values([]models.ArtistCategory{*p.ArtistCategory})})
	}
	if len(p.IncludeCoArtistsOf) > 0 {
		co := values(p.IncludeCoArtistsOf)
		b.Add(
			Include{Purpose: CoArtistsOf, Target: TargetCoArtist, Values: co},
			Exclude{Purpose: OmitCoArtists, Target: TargetCreditArtist, Values: co},
		)
	}
	return b.Build()
}
