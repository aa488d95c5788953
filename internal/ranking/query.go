package ranking

import (
	"fmt"
	"strings"
	"vocarank/internal/filter"
	"vocarank/internal/models"
)

// window is a resolved pair of snapshot days. A nil offset means the
// offset aggregate is zero.
type window struct {
	current string
	offset  *string
}

func (w window) binds() map[string]interface{} {
	b := map[string]interface{}{"timestamp": w.current}
	if w.offset != nil {
		b["offsetTimestamp"] = *w.offset
	}
	return b
}

// rankedRow is one row of the ranked CTE.
type rankedRow struct {
	ID        int64
	Views     int64
	Total     int64
	Placement int64
}

type placementRow struct {
	ID        int64
	Placement int64
}

func orderColumn(order models.FilterOrder) string {
	switch order {
	case models.FilterOrderPublishDate:
		return "publish_date"
	case models.FilterOrderAdditionDate:
		return "addition_date"
	default:
		return "views"
	}
}

func orderDirection(dir models.FilterDirection) string {
	if dir == models.FilterDirectionAscending {
		return "ASC"
	}
	return "DESC"
}

// viewsCTEs aggregates each song's views on the current day and, when the
// window has an offset, at the offset day. A song without a row on the
// offset day is measured from its latest earlier row.
func viewsCTEs(sb *strings.Builder, c *filter.Compiled, key string, hasOffset bool) {
	day := func(name, match string) {
		fmt.Fprintf(sb, "%s AS (\n", name)
		fmt.Fprintf(sb, "  SELECT vb.song_id AS %s, %s(vb.views) AS views\n", key, c.Aggregate())
		sb.WriteString("  FROM views_breakdowns vb\n")
		fmt.Fprintf(sb, "  WHERE vb.snapshot_at = %s%s\n", match, c.And(filter.ScopeRow))
		fmt.Fprintf(sb, "  GROUP BY vb.song_id\n)")
	}
	sb.WriteString("WITH ")
	day("cur", "@timestamp")
	if hasOffset {
		sb.WriteString(",\n")
		day("prev", "(SELECT MAX(lb.snapshot_at) FROM views_breakdowns lb WHERE lb.song_id = vb.song_id AND lb.snapshot_at <= @offsetTimestamp)")
	}
}

func windowedViews(hasOffset bool) string {
	if hasOffset {
		return "CAST(cur.views - COALESCE(prev.views, 0) AS BIGINT)"
	}
	return "CAST(cur.views AS BIGINT)"
}

func rankedCTE(sb *strings.Builder, c *filter.Compiled, order models.FilterOrder, dir models.FilterDirection) {
	sb.WriteString(",\nranked AS (\n")
	sb.WriteString("  SELECT id, views, COUNT(*) OVER () AS total,\n")
	fmt.Fprintf(sb, "    ROW_NUMBER() OVER (ORDER BY %s %s, id ASC) AS placement\n", orderColumn(order), orderDirection(dir))
	fmt.Fprintf(sb, "  FROM scored\n  WHERE 1 = 1%s\n)", c.And(filter.ScopeThreshold))
}

// songRankingBase renders the CTE chain ending in "ranked" for songs.
func songRankingBase(c *filter.Compiled, hasOffset bool, order models.FilterOrder, dir models.FilterDirection) string {
	var sb strings.Builder
	viewsCTEs(&sb, c, "id", hasOffset)

	sb.WriteString(",\nscored AS (\n")
	fmt.Fprintf(&sb, "  SELECT s.id AS id, s.publish_date AS publish_date, s.addition_date AS addition_date, %s AS views\n", windowedViews(hasOffset))
	sb.WriteString("  FROM cur\n  JOIN songs s ON s.id = cur.id\n")
	if hasOffset {
		sb.WriteString("  LEFT JOIN prev ON prev.id = cur.id\n")
	}
	fmt.Fprintf(&sb, "  WHERE 1 = 1%s\n)", c.And(filter.ScopeSong))

	rankedCTE(&sb, c, order, dir)
	return sb.String()
}

// artistRankingBase renders the CTE chain ending in "ranked" for artists.
// Combined rankings credit every song to the root of its artist's
// hierarchy, once per root.
func artistRankingBase(c *filter.Compiled, hasOffset, combine bool, order models.FilterOrder, dir models.FilterDirection) string {
	var sb strings.Builder
	viewsCTEs(&sb, c, "song_id", hasOffset)

	sb.WriteString(",\nsong_views AS (\n")
	fmt.Fprintf(&sb, "  SELECT s.id AS song_id, %s AS views\n", windowedViews(hasOffset))
	sb.WriteString("  FROM cur\n  JOIN songs s ON s.id = cur.song_id\n")
	if hasOffset {
		sb.WriteString("  LEFT JOIN prev ON prev.song_id = cur.song_id\n")
	}
	fmt.Fprintf(&sb, "  WHERE 1 = 1%s\n)", c.And(filter.ScopeSong))

	key := "sa.artist_id"
	if combine {
		key = "a.root_artist_id"
	}
	sb.WriteString(",\ncredits AS (\n")
	fmt.Fprintf(&sb, "  SELECT DISTINCT %s AS artist_id, sa.song_id AS song_id\n", key)
	sb.WriteString("  FROM song_artists sa\n  JOIN artists a ON a.id = sa.artist_id\n")
	fmt.Fprintf(&sb, "  WHERE 1 = 1%s\n)", c.And(filter.ScopeCredit))

	metric := "SUM(sv.views)"
	if order == models.FilterOrderSongCount {
		metric = "COUNT(sv.song_id)"
	}
	sb.WriteString(",\nscored AS (\n")
	fmt.Fprintf(&sb, "  SELECT ra.id AS id, ra.publish_date AS publish_date, ra.addition_date AS addition_date, CAST(%s AS BIGINT) AS views\n", metric)
	sb.WriteString("  FROM credits c\n  JOIN song_views sv ON sv.song_id = c.song_id\n  JOIN artists ra ON ra.id = c.artist_id\n")
	fmt.Fprintf(&sb, "  WHERE 1 = 1%s\n", c.And(filter.ScopeArtist))
	sb.WriteString("  GROUP BY ra.id, ra.publish_date, ra.addition_date\n)")

	rankedCTE(&sb, c, order, dir)
	return sb.String()
}

func pageSQL(base string) string {
	return base + "\nSELECT id, views, total, placement FROM ranked ORDER BY placement LIMIT @maxEntries OFFSET @startAt"
}

func countSQL(base string) string {
	return base + "\nSELECT COUNT(*) FROM ranked"
}

// placementsSQL selects the placements of the given ids and adds one bind
// per id.
func placementsSQL(base string, ids []int64, binds map[string]interface{}) string {
	names := make([]string, len(ids))
	for i, id := range ids {
		name := fmt.Sprintf("pageId_%d", i)
		binds[name] = id
		names[i] = "@" + name
	}
	return base + "\nSELECT id, placement FROM ranked WHERE id IN (" + strings.Join(names, ", ") + ")"
}
