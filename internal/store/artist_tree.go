package store

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var ErrArtistCycle = errors.New("artist hierarchy cycle")

const noParent = -1

type artistNode struct {
	id       int64
	parent   int
	children []int
	// placeholder nodes stand in for base artists that are referenced but not stored
	placeholder bool
}

// ArtistTree is the base-artist forest. Nodes live in an arena and refer to
// each other by slot, so ancestor and descendant walks never touch the
// database.
type ArtistTree struct {
	mu    sync.RWMutex
	nodes []artistNode
	index map[int64]int
	free  []int
}

func NewArtistTree() *ArtistTree {
	return &ArtistTree{index: make(map[int64]int)}
}

func (t *ArtistTree) slot(id int64, placeholder bool) int {
	if i, ok := t.index[id]; ok {
		if !placeholder {
			t.nodes[i].placeholder = false
		}
		return i
	}
	node := artistNode{id: id, parent: noParent, placeholder: placeholder}
	var i int
	if n := len(t.free); n > 0 {
		i = t.free[n-1]
		t.free = t.free[:n-1]
		t.nodes[i] = node
	} else {
		i = len(t.nodes)
		t.nodes = append(t.nodes, node)
	}
	t.index[id] = i
	return i
}

func (t *ArtistTree) detach(i int) {
	p := t.nodes[i].parent
	if p == noParent {
		return
	}
	siblings := t.nodes[p].children
	for k, c := range siblings {
		if c == i {
			t.nodes[p].children = append(siblings[:k], siblings[k+1:]...)
			break
		}
	}
	t.nodes[i].parent = noParent
}

// Set places id under base, or makes it a root when base is nil. A base
// that would make id its own ancestor is rejected with ErrArtistCycle and
// leaves the tree unchanged.
func (t *ArtistTree) Set(id int64, base *int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if base != nil {
		if *base == id {
			return fmt.Errorf("%w: artist %d references itself", ErrArtistCycle, id)
		}
		if i, ok := t.index[id]; ok {
			if j, ok := t.index[*base]; ok && t.isAncestor(i, j) {
				return fmt.Errorf("%w: artist %d is an ancestor of %d", ErrArtistCycle, id, *base)
			}
		}
	}

	i := t.slot(id, false)
	t.detach(i)
	if base != nil {
		j := t.slot(*base, true)
		t.nodes[i].parent = j
		t.nodes[j].children = append(t.nodes[j].children, i)
	}
	return nil
}

// CheckSet reports whether Set(id, base) would succeed without applying it.
func (t *ArtistTree) CheckSet(id int64, base *int64) error {
	if base == nil {
		return nil
	}
	if *base == id {
		return fmt.Errorf("%w: artist %d references itself", ErrArtistCycle, id)
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	i, ok := t.index[id]
	if !ok {
		return nil
	}
	if j, ok := t.index[*base]; ok && t.isAncestor(i, j) {
		return fmt.Errorf("%w: artist %d is an ancestor of %d", ErrArtistCycle, id, *base)
	}
	return nil
}

// isAncestor reports whether slot a is on the parent chain of slot b.
func (t *ArtistTree) isAncestor(a, b int) bool {
	for cur := b; cur != noParent; cur = t.nodes[cur].parent {
		if cur == a {
			return true
		}
	}
	return false
}

// Remove drops id from the forest. Its children become roots.
func (t *ArtistTree) Remove(id int64) []int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	i, ok := t.index[id]
	if !ok {
		return nil
	}
	t.detach(i)
	orphans := make([]int64, 0, len(t.nodes[i].children))
	for _, c := range t.nodes[i].children {
		t.nodes[c].parent = noParent
		orphans = append(orphans, t.nodes[c].id)
	}
	delete(t.index, id)
	t.nodes[i] = artistNode{parent: noParent}
	t.free = append(t.free, i)
	return orphans
}

func (t *ArtistTree) Contains(id int64) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	i, ok := t.index[id]
	return ok && !t.nodes[i].placeholder
}

// Root returns the top of id's base-artist chain. Unknown ids are their own
// root.
func (t *ArtistTree) Root(id int64) int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	i, ok := t.index[id]
	if !ok {
		return id
	}
	for t.nodes[i].parent != noParent {
		i = t.nodes[i].parent
	}
	return t.nodes[i].id
}

// Ancestors returns id's base artists, nearest first.
func (t *ArtistTree) Ancestors(id int64) []int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	i, ok := t.index[id]
	if !ok {
		return nil
	}
	var out []int64
	for p := t.nodes[i].parent; p != noParent; p = t.nodes[p].parent {
		out = append(out, t.nodes[p].id)
	}
	return out
}

// Descendants returns every artist derived from id, directly or not, in
// ascending id order.
func (t *ArtistTree) Descendants(id int64) []int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	i, ok := t.index[id]
	if !ok {
		return nil
	}
	var out []int64
	stack := append([]int(nil), t.nodes[i].children...)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, t.nodes[n].id)
		stack = append(stack, t.nodes[n].children...)
	}
	sort.Slice(out, func(a, b int) bool { return out[a] < out[b] })
	return out
}

// Subtree returns id followed by its descendants.
func (t *ArtistTree) Subtree(id int64) []int64 {
	return append([]int64{id}, t.Descendants(id)...)
}

// Roots returns the ids of every stored artist with no base artist, plus
// placeholders standing in for missing bases.
func (t *ArtistTree) Roots() []int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []int64
	for id, i := range t.index {
		if t.nodes[i].parent == noParent {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a] < out[b] })
	return out
}

func (t *ArtistTree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, i := range t.index {
		if !t.nodes[i].placeholder {
			n++
		}
	}
	return n
}
