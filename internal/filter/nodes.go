package filter

// Purpose names a filter fragment by what it is for, e.g. "includeArtists".
// Bind parameters of a fragment are named after its purpose.
type Purpose string

const (
	IncludeSongs       Purpose = "includeSongs"
	ExcludeSongs       Purpose = "excludeSongs"
	IncludeSongTypes   Purpose = "includeSongTypes"
	ExcludeSongTypes   Purpose = "excludeSongTypes"
	IncludeSourceTypes Purpose = "includeSourceTypes"
	RequireSourceTypes Purpose = "requireSourceTypes"
	ExcludeSourceTypes Purpose = "excludeSourceTypes"
	IncludeArtistTypes Purpose = "includeArtistTypes"
	ExcludeArtistTypes Purpose = "excludeArtistTypes"
	IncludeArtists     Purpose = "includeArtists"
	ExcludeArtists     Purpose = "excludeArtists"
	PublishDate        Purpose = "publishDate"
	PublishedBetween   Purpose = "published"
	SearchName         Purpose = "search"
	ArtistCategory     Purpose = "artistCategory"
	CoArtistsOf        Purpose = "coArtistsOf"
	OmitCoArtists      Purpose = "omitCoArtists"
	Views              Purpose = "views"
)

// Target is the relation a node's values are compared against.
type Target int

const (
	TargetSongID Target = iota
	TargetSongType
	TargetSongArtist
	TargetSongArtistType
	TargetSourceType
	TargetSongSource
	TargetPublishDate
	TargetSongName
	TargetArtistID
	TargetArtistType
	TargetArtistName
	TargetCreditCategory
	TargetCreditArtist
	TargetCoArtist
	TargetViews
)

// Scope is the part of the ranking query a fragment belongs to.
type Scope int

const (
	// ScopeRow filters individual views rows before aggregation.
	ScopeRow Scope = iota
	// ScopeSong filters songs.
	ScopeSong
	// ScopeCredit filters song credits feeding artist rankings.
	ScopeCredit
	// ScopeArtist filters ranked artists.
	ScopeArtist
	// ScopeThreshold filters the windowed aggregate.
	ScopeThreshold
)

// Node is a typed predicate. Nodes are lowered to SQL by a Builder.
type Node interface {
	purpose() Purpose
	target() Target
	lower(b *Builder, rel Relation) string
}

// Include keeps rows whose target matches the values: every value when
// MatchAll is set, otherwise any of them.
type Include struct {
	Purpose  Purpose
	Target   Target
	Values   []interface{}
	MatchAll bool
}

// Exclude drops rows whose target matches the values: only when every value
// matches if MatchAll is set, otherwise when any does.
type Exclude struct {
	Purpose  Purpose
	Target   Target
	Values   []interface{}
	MatchAll bool
}

// HierarchyMatch is an Include or Exclude over groups of values. A group
// matches when any of its members matches; MatchAll then applies across
// groups. Artist filters use it to stand each artist in for its derived
// artists.
type HierarchyMatch struct {
	Purpose  Purpose
	Target   Target
	Groups   [][]interface{}
	MatchAll bool
	Negate   bool
}

// Range bounds the target. Nil bounds are open; both bounds are inclusive
// unless UpperExclusive is set.
type Range struct {
	Purpose        Purpose
	Target         Target
	Lower          interface{}
	Upper          interface{}
	UpperExclusive bool
}

// FuzzyDate matches the target against a LIKE pattern.
type FuzzyDate struct {
	Purpose Purpose
	Target  Target
	Pattern string
}

// Search matches a case-insensitive substring of the target.
type Search struct {
	Purpose Purpose
	Target  Target
	Term    string
}

func (n Include) purpose() Purpose        { return n.Purpose }
func (n Include) target() Target          { return n.Target }
func (n Exclude) purpose() Purpose        { return n.Purpose }
func (n Exclude) target() Target          { return n.Target }
func (n HierarchyMatch) purpose() Purpose { return n.Purpose }
func (n HierarchyMatch) target() Target   { return n.Target }
func (n Range) purpose() Purpose          { return n.Purpose }
func (n Range) target() Target            { return n.Target }
func (n FuzzyDate) purpose() Purpose      { return n.Purpose }
func (n FuzzyDate) target() Target        { return n.Target }
func (n Search) purpose() Purpose         { return n.Purpose }
func (n Search) target() Target           { return n.Target }

func singletons(values []interface{}) [][]interface{} {
	groups := make([][]interface{}, len(values))
	for i, v := range values {
		groups[i] = []interface{}{v}
	}
	return groups
}

func (n Include) lower(b *Builder, rel Relation) string {
	return b.lowerGroups(n.Purpose, rel, singletons(n.Values), n.MatchAll, false)
}

func (n Exclude) lower(b *Builder, rel Relation) string {
	return b.lowerGroups(n.Purpose, rel, singletons(n.Values), n.MatchAll, true)
}

func (n HierarchyMatch) lower(b *Builder, rel Relation) string {
	return b.lowerGroups(n.Purpose, rel, n.Groups, n.MatchAll, n.Negate)
}

func (n Range) lower(b *Builder, rel Relation) string {
	var parts []string
	if n.Lower != nil {
		parts = append(parts, rel.Column+" >= @"+b.bindScalar(string(n.Purpose)+"_min", n.Lower))
	}
	if n.Upper != nil {
		op := " <= @"
		if n.UpperExclusive {
			op = " < @"
		}
		parts = append(parts, rel.Column+op+b.bindScalar(string(n.Purpose)+"_max", n.Upper))
	}
	if len(parts) == 0 {
		return ""
	}
	return rel.wrap(joinAnd(parts))
}

func (n FuzzyDate) lower(b *Builder, rel Relation) string {
	if n.Pattern == "" {
		return ""
	}
	return rel.wrap(rel.Column + " LIKE @" + b.bindScalar(string(n.Purpose), n.Pattern))
}

func (n Search) lower(b *Builder, rel Relation) string {
	if n.Term == "" {
		return ""
	}
	pattern := "%" + escapeLike(n.Term) + "%"
	return rel.wrap(rel.Column + " LIKE @" + b.bindScalar(string(n.Purpose), pattern) + ` ESCAPE '\'`)
}
