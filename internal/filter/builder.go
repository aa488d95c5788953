package filter

import (
	"fmt"
	"strings"
)

// Relation tells the builder how to reach a Target. Column is the compared
// expression. When Wrap is set it is a correlated subquery template whose %s
// receives the comparison, e.g.
// "EXISTS (SELECT 1 FROM song_artists fsa WHERE fsa.song_id = s.id AND %s)".
type Relation struct {
	Scope  Scope
	Column string
	Wrap   string
}

func (r Relation) wrap(cond string) string {
	if r.Wrap == "" {
		return cond
	}
	return fmt.Sprintf(r.Wrap, cond)
}

// Fragment is one lowered node.
type Fragment struct {
	Purpose Purpose
	Scope   Scope
	SQL     string
}

// Builder lowers nodes to SQL fragments with named bind parameters. Every
// list element gets its own bind, named after the node's purpose and the
// element's position, e.g. @includeArtists_0.
type Builder struct {
	relations map[Target]Relation
	binds     map[string]interface{}
	counters  map[Purpose]int
	fragments []Fragment
	aggregate string
}

func NewBuilder(relations map[Target]Relation) *Builder {
	return &Builder{
		relations: relations,
		binds:     make(map[string]interface{}),
		counters:  make(map[Purpose]int),
		aggregate: "SUM",
	}
}

// Add lowers nodes in order. Nodes without values and nodes whose target has
// no relation are skipped.
func (b *Builder) Add(nodes ...Node) *Builder {
	for _, n := range nodes {
		rel, ok := b.relations[n.target()]
		if !ok {
			continue
		}
		sql := n.lower(b, rel)
		if sql == "" {
			continue
		}
		b.fragments = append(b.fragments, Fragment{Purpose: n.purpose(), Scope: rel.Scope, SQL: sql})
	}
	return b
}

// Bind sets a scalar parameter used directly by the query template.
func (b *Builder) Bind(name string, value interface{}) *Builder {
	b.binds[name] = value
	return b
}

// SingleVideo switches the per-entity aggregate from the sum of all videos
// to the best single video.
func (b *Builder) SingleVideo(on bool) *Builder {
	if on {
		b.aggregate = "MAX"
	} else {
		b.aggregate = "SUM"
	}
	return b
}

func (b *Builder) Build() *Compiled {
	binds := make(map[string]interface{}, len(b.binds))
	for k, v := range b.binds {
		binds[k] = v
	}
	return &Compiled{
		binds:     binds,
		fragments: append([]Fragment(nil), b.fragments...),
		aggregate: b.aggregate,
	}
}

func (b *Builder) bindElement(p Purpose, v interface{}) string {
	name := fmt.Sprintf("%s_%d", p, b.counters[p])
	b.counters[p]++
	b.binds[name] = v
	return name
}

func (b *Builder) bindScalar(name string, v interface{}) string {
	b.binds[name] = v
	return name
}

func (b *Builder) inList(p Purpose, column string, values []interface{}) string {
	names := make([]string, len(values))
	for i, v := range values {
		names[i] = "@" + b.bindElement(p, v)
	}
	return column + " IN (" + strings.Join(names, ", ") + ")"
}

// lowerGroups renders an inclusion (or, negated, an exclusion) over value
// groups. MatchAll requires every group to match, one condition per group;
// otherwise all values collapse into a single IN list.
func (b *Builder) lowerGroups(p Purpose, rel Relation, groups [][]interface{}, matchAll, negate bool) string {
	var nonEmpty [][]interface{}
	for _, g := range groups {
		if len(g) > 0 {
			nonEmpty = append(nonEmpty, g)
		}
	}
	if len(nonEmpty) == 0 {
		return ""
	}

	var cond string
	if matchAll && len(nonEmpty) > 1 {
		parts := make([]string, len(nonEmpty))
		for i, g := range nonEmpty {
			parts[i] = rel.wrap(b.inList(p, rel.Column, g))
		}
		cond = joinAnd(parts)
	} else {
		var all []interface{}
		for _, g := range nonEmpty {
			all = append(all, g...)
		}
		cond = rel.wrap(b.inList(p, rel.Column, all))
	}

	if negate {
		return "NOT (" + cond + ")"
	}
	return cond
}

func joinAnd(parts []string) string {
	if len(parts) == 1 {
		return parts[0]
	}
	return "(" + strings.Join(parts, " AND ") + ")"
}

// escapeLike lowercases a search term and escapes LIKE wildcards.
func escapeLike(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(strings.ToLower(term))
}

// Compiled is the lowered filter: fragments keyed by purpose plus the bind
// parameters they reference.
type Compiled struct {
	binds     map[string]interface{}
	fragments []Fragment
	aggregate string
}

// Binds returns a copy of the named parameters, ready for gorm's @name
// expansion.
func (c *Compiled) Binds() map[string]interface{} {
	out := make(map[string]interface{}, len(c.binds))
	for k, v := range c.binds {
		out[k] = v
	}
	return out
}

// Fragment returns the SQL lowered for purpose.
func (c *Compiled) Fragment(p Purpose) (string, bool) {
	for _, f := range c.fragments {
		if f.Purpose == p {
			return f.SQL, true
		}
	}
	return "", false
}

func (c *Compiled) Fragments() []Fragment {
	return append([]Fragment(nil), c.fragments...)
}

// And joins the fragments of scope as a suffix for an existing WHERE or
// HAVING clause. It is empty when the scope has no fragments.
func (c *Compiled) And(scope Scope) string {
	var sb strings.Builder
	for _, f := range c.fragments {
		if f.Scope == scope {
			sb.WriteString("\n  AND ")
			sb.WriteString(f.SQL)
		}
	}
	return sb.String()
}

// Aggregate is the SQL aggregate applied to per-video views: SUM, or MAX in
// single-video mode.
func (c *Compiled) Aggregate() string {
	return c.aggregate
}

// With returns a copy of c with extra scalar binds.
func (c *Compiled) With(binds map[string]interface{}) *Compiled {
	out := &Compiled{
		binds:     c.Binds(),
		fragments: c.fragments,
		aggregate: c.aggregate,
	}
	for k, v := range binds {
		out.binds[k] = v
	}
	return out
}
