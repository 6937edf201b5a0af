// Package fixture holds classes that generated wrappers are built and
// type-checked against. Generated code cannot import a _test package, so
// they live here.
package fixture

import (
	"errors"
	"sort"
)

// Box is a class using most of what a wrapper can expose.
type Box struct {
	Label  string
	Weight float64
	Sealed bool

	items []string
	tags  map[string]string
}

func NewBox(label string) *Box { return &Box{Label: label, tags: map[string]string{}} }

func NewBoxOf(label string, items []string) *Box {
	b := NewBox(label)
	b.items = items
	return b
}

func (b *Box) GetItem(i int) string       { return b.items[i] }
func (b *Box) SetItem(i int, v string)    { b.items[i] = v }
func (b *Box) GetItemSize() int           { return len(b.items) }
func (b *Box) GetTag(k string) string     { return b.tags[k] }
func (b *Box) SetTag(k, v string)         { b.tags[k] = v }
func (b *Box) RemoveTag(k string)         { delete(b.tags, k) }
func (b *Box) Add(item string)            { b.items = append(b.items, item) }
func (b *Box) Count(prefix string) int    { return len(b.filter(prefix)) }
func (b *Box) CountAt(i int) int          { return len(b.items[i]) }
func (b *Box) Merge(o *Box) *Box          { return NewBoxOf(b.Label, append(b.items, o.items...)) }
func (b *Box) Unpack() ([]string, error)  { return b.items, b.check() }
func (b *Box) Seal() error                { b.Sealed = true; return b.check() }
func (b *Box) First() string              { return b.items[0] }
func (b *Box) Scale(f float64, n int) int { return int(f * float64(n)) }

// Keys enumerates the tag names.
func (b *Box) Keys() []string {
	out := make([]string, 0, len(b.tags))
	for k := range b.tags {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

var errEmpty = errors.New("box is empty")

func (b *Box) check() error {
	if len(b.items) == 0 {
		return errEmpty
	}
	return nil
}

func (b *Box) filter(prefix string) []string {
	var out []string
	for _, it := range b.items {
		if len(it) >= len(prefix) && it[:len(prefix)] == prefix {
			out = append(out, it)
		}
	}
	return out
}

// BoxEcmaWrap adds script methods to Box.
type BoxEcmaWrap struct{}

func (BoxEcmaWrap) Describe(b *Box) string { return b.Label }

func (BoxEcmaWrap) Relabel(b *Box, label string) { b.Label = label }

// Static functions of Box.

func Capacity(n int) int         { return n * 2 }
func CapacityOf(name string) int { return len(name) }
func Empty() (*Box, error)       { return nil, errEmpty }

// Crate extends Box.
type Crate struct {
	Box
	Slots int
}

func NewCrate(slots int) *Crate { return &Crate{Box: *NewBox("crate"), Slots: slots} }

func (c *Crate) Stack(o *Crate) int { return c.Slots + o.Slots }
