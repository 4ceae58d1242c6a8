// Package btreeindex implements a disk-resident B-tree, one JSON node per
// page, used for both the primary-key (unique) index and secondary
// (possibly non-unique) indexes (spec §4.6).
package btreeindex

import (
	"fmt"
	"sort"

	"github.com/tinydb-go/tinydb/internal/pager"
)

// MaxKeysPerNode bounds how many keys a node holds before it splits.
const MaxKeysPerNode = 16

// Location addresses one row: the data page it lives on and its slot id.
type Location struct {
	PageID uint32 `json:"page_id"`
	SlotID int    `json:"slot_id"`
}

// node is the JSON shape of one B-tree page (spec §3.1/§6.1). Leaves carry
// one posting list per key; Values[i] has exactly one entry for a unique
// tree and one-or-more for a non-unique tree. Internal nodes carry
// Children only.
type node struct {
	IsLeaf   bool         `json:"is_leaf"`
	Keys     []any        `json:"keys"`
	Children []uint32     `json:"children"`
	Values   [][]Location `json:"values"`
}

// Item is one (key, location) pair produced by ScanItems.
type Item struct {
	Key      any
	Location Location
}

// ErrDuplicateKey is returned by Insert when the key already exists.
var ErrDuplicateKey = fmt.Errorf("Duplicate primary key")

// Tree is a handle to one B-tree rooted at a given page.
type Tree struct {
	pager *pager.Pager
	root  uint32
}

// Create allocates a leaf root page and returns a new, empty tree.
func Create(p *pager.Pager) (*Tree, error) {
	root, err := p.AllocatePage()
	if err != nil {
		return nil, err
	}
	t := &Tree{pager: p, root: root}
	if err := t.writeNode(root, &node{IsLeaf: true}); err != nil {
		return nil, err
	}
	return t, nil
}

// Open wraps an existing tree rooted at root.
func Open(p *pager.Pager, root uint32) *Tree {
	return &Tree{pager: p, root: root}
}

// RootPage returns the tree's current root page id (it changes when the
// root splits).
func (t *Tree) RootPage() uint32 { return t.root }

func (t *Tree) readNode(id uint32) (*node, error) {
	buf, err := t.pager.ReadPage(id)
	if err != nil {
		return nil, err
	}
	var n node
	if err := pager.UnmarshalPageJSON(buf, &n); err != nil {
		return nil, fmt.Errorf("btreeindex: corrupt node at page %d: %w", id, err)
	}
	return &n, nil
}

func (t *Tree) writeNode(id uint32, n *node) error {
	buf, err := pager.MarshalPageJSON(n)
	if err != nil {
		return fmt.Errorf("btreeindex: node too large for page: %w", err)
	}
	return t.pager.WritePage(id, buf)
}

// Find performs a unique lookup, returning the single location at key.
func (t *Tree) Find(key any) (Location, bool, error) {
	locs, err := t.FindAll(key)
	if err != nil || len(locs) == 0 {
		return Location{}, false, err
	}
	return locs[0], true, nil
}

// FindAll returns every location stored at key (a posting list lookup).
func (t *Tree) FindAll(key any) ([]Location, error) {
	pageID := t.root
	for {
		n, err := t.readNode(pageID)
		if err != nil {
			return nil, err
		}
		i := sort.Search(len(n.Keys), func(i int) bool { return compareKeys(n.Keys[i], key) >= 0 })
		if n.IsLeaf {
			if i < len(n.Keys) && compareKeys(n.Keys[i], key) == 0 {
				return n.Values[i], nil
			}
			return nil, nil
		}
		if i < len(n.Keys) && compareKeys(n.Keys[i], key) == 0 {
			i++
		}
		pageID = n.Children[i]
	}
}

// Insert performs a unique insertion, failing with ErrDuplicateKey if the
// key is already present.
func (t *Tree) Insert(key any, loc Location) error {
	return t.insert(key, []Location{loc}, false)
}

// InsertNonUnique appends loc to key's posting list, creating a
// single-element list if the key is new.
func (t *Tree) InsertNonUnique(key any, loc Location) error {
	return t.insert(key, []Location{loc}, true)
}

func (t *Tree) insert(key any, locs []Location, nonUnique bool) error {
	root, err := t.readNode(t.root)
	if err != nil {
		return err
	}
	if len(root.Keys) >= MaxKeysPerNode {
		newRootID, err := t.pager.AllocatePage()
		if err != nil {
			return err
		}
		newRoot := &node{IsLeaf: false, Children: []uint32{t.root}}
		if err := t.writeNode(newRootID, newRoot); err != nil {
			return err
		}
		if err := t.splitChild(newRootID, 0); err != nil {
			return err
		}
		t.root = newRootID
	}
	return t.insertNonFull(t.root, key, locs, nonUnique)
}

func (t *Tree) insertNonFull(pageID uint32, key any, locs []Location, nonUnique bool) error {
	n, err := t.readNode(pageID)
	if err != nil {
		return err
	}
	i := sort.Search(len(n.Keys), func(i int) bool { return compareKeys(n.Keys[i], key) >= 0 })

	if n.IsLeaf {
		if i < len(n.Keys) && compareKeys(n.Keys[i], key) == 0 {
			if nonUnique {
				n.Values[i] = append(n.Values[i], locs...)
				return t.writeNode(pageID, n)
			}
			return ErrDuplicateKey
		}
		n.Keys = insertAt(n.Keys, i, key)
		n.Values = insertValuesAt(n.Values, i, locs)
		return t.writeNode(pageID, n)
	}

	if i < len(n.Keys) && compareKeys(n.Keys[i], key) == 0 {
		i++
	}
	childID := n.Children[i]
	child, err := t.readNode(childID)
	if err != nil {
		return err
	}
	if len(child.Keys) >= MaxKeysPerNode {
		if err := t.splitChild(pageID, i); err != nil {
			return err
		}
		n, err = t.readNode(pageID)
		if err != nil {
			return err
		}
		if compareKeys(key, n.Keys[i]) >= 0 {
			i++
		}
	}
	return t.insertNonFull(n.Children[i], key, locs, nonUnique)
}

// splitChild splits parent.Children[childIndex] around its median key
// (spec §4.6: leaf splits keep the median in the right half; internal
// splits promote it).
func (t *Tree) splitChild(parentID uint32, childIndex int) error {
	parent, err := t.readNode(parentID)
	if err != nil {
		return err
	}
	childID := parent.Children[childIndex]
	child, err := t.readNode(childID)
	if err != nil {
		return err
	}

	mid := len(child.Keys) / 2
	medianKey := child.Keys[mid]

	newPageID, err := t.pager.AllocatePage()
	if err != nil {
		return err
	}

	var right *node
	if child.IsLeaf {
		right = &node{
			IsLeaf: true,
			Keys:   append([]any{}, child.Keys[mid:]...),
			Values: append([][]Location{}, child.Values[mid:]...),
		}
		child.Keys = append([]any{}, child.Keys[:mid]...)
		child.Values = append([][]Location{}, child.Values[:mid]...)
	} else {
		right = &node{
			IsLeaf:   false,
			Keys:     append([]any{}, child.Keys[mid+1:]...),
			Children: append([]uint32{}, child.Children[mid+1:]...),
		}
		child.Keys = append([]any{}, child.Keys[:mid]...)
		child.Children = append([]uint32{}, child.Children[:mid+1]...)
	}

	parent.Keys = insertAt(parent.Keys, childIndex, medianKey)
	parent.Children = insertUint32At(parent.Children, childIndex+1, newPageID)

	if err := t.writeNode(childID, child); err != nil {
		return err
	}
	if err := t.writeNode(newPageID, right); err != nil {
		return err
	}
	return t.writeNode(parentID, parent)
}

// Delete removes the unique entry at key. Only leaf-level removal is
// performed; no rebalancing (spec §4.6, §9 Open Question 3).
func (t *Tree) Delete(key any) error {
	return t.deleteLocation(key, nil, false)
}

// DeleteNonUnique removes loc from key's posting list; if the list
// becomes empty, the leaf entry itself is removed.
func (t *Tree) DeleteNonUnique(key any, loc Location) error {
	return t.deleteLocation(key, &loc, true)
}

func (t *Tree) deleteLocation(key any, loc *Location, nonUnique bool) error {
	pageID := t.root
	for {
		n, err := t.readNode(pageID)
		if err != nil {
			return err
		}
		i := sort.Search(len(n.Keys), func(i int) bool { return compareKeys(n.Keys[i], key) >= 0 })
		if n.IsLeaf {
			if i >= len(n.Keys) || compareKeys(n.Keys[i], key) != 0 {
				return nil
			}
			if nonUnique && loc != nil {
				n.Values[i] = removeLocation(n.Values[i], *loc)
				if len(n.Values[i]) > 0 {
					return t.writeNode(pageID, n)
				}
			}
			n.Keys = removeAt(n.Keys, i)
			n.Values = removeValuesAt(n.Values, i)
			return t.writeNode(pageID, n)
		}
		if i < len(n.Keys) && compareKeys(n.Keys[i], key) == 0 {
			i++
		}
		pageID = n.Children[i]
	}
}

// ScanItems returns every (key, location) pair in ascending key order. A
// non-unique key contributes one Item per posting.
func (t *Tree) ScanItems() ([]Item, error) {
	var out []Item
	if err := t.collect(t.root, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (t *Tree) collect(pageID uint32, out *[]Item) error {
	n, err := t.readNode(pageID)
	if err != nil {
		return err
	}
	if n.IsLeaf {
		for i, k := range n.Keys {
			for _, loc := range n.Values[i] {
				*out = append(*out, Item{Key: k, Location: loc})
			}
		}
		return nil
	}
	for _, child := range n.Children {
		if err := t.collect(child, out); err != nil {
			return err
		}
	}
	return nil
}

func insertAt(s []any, i int, v any) []any {
	s = append(s, nil)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

func removeAt(s []any, i int) []any {
	return append(s[:i], s[i+1:]...)
}

func insertValuesAt(s [][]Location, i int, v []Location) [][]Location {
	s = append(s, nil)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

func removeValuesAt(s [][]Location, i int) [][]Location {
	return append(s[:i], s[i+1:]...)
}

func insertUint32At(s []uint32, i int, v uint32) []uint32 {
	s = append(s, 0)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

func removeLocation(locs []Location, target Location) []Location {
	out := locs[:0]
	for _, l := range locs {
		if l != target {
			out = append(out, l)
		}
	}
	return out
}
