// Package cp is a finite-domain constraint programming engine for
// scheduling models. It provides integer and boolean decision variables,
// optional intervals, a small set of propagators (ExactlyOne, NoOverlap,
// MaxEquality) and branch-and-bound minimization with an optional
// portfolio of parallel workers.
//
// This file defines the Domain interface and its two implementations.
// Values start at 0 so that time points map directly onto domain values.
//
// A contiguous domain is stored as its bounds (IntervalDomain), so bound
// narrowing is O(1) whatever the width of the range. A bitset
// (BitSetDomain) is only built once a value is removed from the inside of
// a range, and it covers [Min, Max] of that domain, not [0, Max]. Narrowing
// a bitset back to a contiguous set of values returns an IntervalDomain.
package cp

import (
	"fmt"
	"math/bits"
	"strings"
)

// Domain is an immutable finite set of non-negative integers.
// Every operation that narrows a domain returns a new value and leaves the
// receiver untouched, so domains can be shared freely between search states
// and between parallel workers.
type Domain interface {
	// Count returns the number of values. An empty domain signals inconsistency.
	Count() int

	// Has reports whether value is a member.
	Has(value int) bool

	// IsSingleton reports whether exactly one value remains.
	IsSingleton() bool

	// SingletonValue returns the only value of a singleton domain.
	SingletonValue() int

	// Min returns the smallest value, or -1 if the domain is empty.
	Min() int

	// Max returns the largest value, or -1 if the domain is empty.
	Max() int

	// Next returns the smallest member >= value, or -1 if there is none.
	Next(value int) int

	// Prev returns the largest member <= value, or -1 if there is none.
	Prev(value int) int

	// Remove returns the domain without value.
	Remove(value int) Domain

	// RemoveBelow returns the domain without values < threshold.
	RemoveBelow(threshold int) Domain

	// RemoveAbove returns the domain without values > threshold.
	RemoveAbove(threshold int) Domain

	// Intersect returns the values present in both domains.
	Intersect(other Domain) Domain

	// IterateValues calls f for each value in ascending order.
	IterateValues(f func(value int))

	// Equal reports whether both domains hold exactly the same values.
	Equal(other Domain) bool

	String() string
}

// IntervalDomain is the contiguous range [lo, hi]. It is empty when lo > hi.
type IntervalDomain struct {
	lo, hi int
}

var emptyDomain = &IntervalDomain{lo: 0, hi: -1}

// NewRangeDomain creates a domain holding every value in [lo, hi].
// Negative lower bounds are clamped to 0; lo > hi yields an empty domain.
func NewRangeDomain(lo, hi int) Domain {
	if lo < 0 {
		lo = 0
	}
	if lo > hi {
		return emptyDomain
	}
	return &IntervalDomain{lo: lo, hi: hi}
}

// NewDomainFromValues creates a domain containing only the given values.
// Negative values are ignored.
func NewDomainFromValues(values ...int) Domain {
	lo, hi := -1, -1
	for _, v := range values {
		if v < 0 {
			continue
		}
		if lo == -1 || v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if lo == -1 {
		return emptyDomain
	}
	b := newBitSet(lo, hi)
	for _, v := range values {
		if v >= 0 {
			b.set(v)
		}
	}
	return b.normalize()
}

func (d *IntervalDomain) empty() bool { return d.lo > d.hi }

// Count returns hi-lo+1.
func (d *IntervalDomain) Count() int {
	if d.empty() {
		return 0
	}
	return d.hi - d.lo + 1
}

// Has reports whether lo <= value <= hi.
func (d *IntervalDomain) Has(value int) bool {
	return value >= d.lo && value <= d.hi
}

// IsSingleton reports whether lo == hi.
func (d *IntervalDomain) IsSingleton() bool { return d.lo == d.hi }

// SingletonValue returns lo. Panics unless the domain is a singleton.
func (d *IntervalDomain) SingletonValue() int {
	if !d.IsSingleton() {
		panic(fmt.Sprintf("SingletonValue called on %s", d))
	}
	return d.lo
}

// Min returns lo, or -1 if empty.
func (d *IntervalDomain) Min() int {
	if d.empty() {
		return -1
	}
	return d.lo
}

// Max returns hi, or -1 if empty.
func (d *IntervalDomain) Max() int {
	if d.empty() {
		return -1
	}
	return d.hi
}

func (d *IntervalDomain) Next(value int) int {
	switch {
	case d.empty() || value > d.hi:
		return -1
	case value < d.lo:
		return d.lo
	default:
		return value
	}
}

func (d *IntervalDomain) Prev(value int) int {
	switch {
	case d.empty() || value < d.lo:
		return -1
	case value > d.hi:
		return d.hi
	default:
		return value
	}
}

// Remove returns the domain without value. Removing an inner value
// switches to a bitset over [lo, hi].
func (d *IntervalDomain) Remove(value int) Domain {
	switch {
	case !d.Has(value):
		return d
	case value == d.lo:
		return NewRangeDomain(d.lo+1, d.hi)
	case value == d.hi:
		return NewRangeDomain(d.lo, d.hi-1)
	}
	b := newBitSet(d.lo, d.hi)
	b.fill(d.lo, d.hi)
	b.clear(value)
	return b.normalize()
}

func (d *IntervalDomain) RemoveBelow(threshold int) Domain {
	if threshold <= d.lo {
		return d
	}
	return NewRangeDomain(threshold, d.hi)
}

func (d *IntervalDomain) RemoveAbove(threshold int) Domain {
	if threshold >= d.hi {
		return d
	}
	return NewRangeDomain(d.lo, threshold)
}

func (d *IntervalDomain) Intersect(other Domain) Domain {
	if o, ok := other.(*IntervalDomain); ok {
		return NewRangeDomain(max(d.lo, o.lo), min(d.hi, o.hi))
	}
	if d.empty() {
		return d
	}
	return other.RemoveBelow(d.lo).RemoveAbove(d.hi)
}

func (d *IntervalDomain) IterateValues(f func(value int)) {
	for v := d.lo; v <= d.hi; v++ {
		f(v)
	}
}

// Equal compares by bounds and size: a domain with the same bounds and as
// many values as a contiguous range is that range.
func (d *IntervalDomain) Equal(other Domain) bool {
	if other == nil {
		return false
	}
	return other.Count() == d.Count() && other.Min() == d.Min() && other.Max() == d.Max()
}

func (d *IntervalDomain) String() string {
	switch {
	case d.empty():
		return "{}"
	case d.lo == d.hi:
		return fmt.Sprintf("{%d}", d.lo)
	default:
		return fmt.Sprintf("{%d..%d}", d.lo, d.hi)
	}
}

// BitSetDomain is a domain with holes. Bit i of the word array stands for
// value offset+i. Count, Min and Max are cached at construction.
//
// Memory usage: (Max - offset + 64) / 64 * 8 bytes.
type BitSetDomain struct {
	offset int
	words  []uint64
	count  int
	lo, hi int
}

func newBitSet(lo, hi int) *BitSetDomain {
	return &BitSetDomain{offset: lo, words: make([]uint64, (hi-lo)/64+1)}
}

func (d *BitSetDomain) set(v int) {
	i := v - d.offset
	d.words[i/64] |= 1 << uint(i%64)
}

func (d *BitSetDomain) clear(v int) {
	i := v - d.offset
	d.words[i/64] &^= 1 << uint(i%64)
}

func (d *BitSetDomain) bit(v int) bool {
	i := v - d.offset
	if i < 0 || i/64 >= len(d.words) {
		return false
	}
	return d.words[i/64]&(1<<uint(i%64)) != 0
}

// fill sets every bit of [lo, hi] a word at a time.
func (d *BitSetDomain) fill(lo, hi int) {
	from, to := lo-d.offset, hi-d.offset
	for w := from / 64; w <= to/64; w++ {
		mask := ^uint64(0)
		if w == from/64 {
			mask &= ^uint64(0) << uint(from%64)
		}
		if w == to/64 {
			mask &= ^uint64(0) >> uint(63-to%64)
		}
		d.words[w] |= mask
	}
}

// normalize recomputes the cached fields and returns the most compact
// representation: the empty domain, an IntervalDomain, or d itself.
func (d *BitSetDomain) normalize() Domain {
	d.count, d.lo, d.hi = 0, -1, -1
	for w, word := range d.words {
		if word == 0 {
			continue
		}
		if d.lo == -1 {
			d.lo = d.offset + w*64 + bits.TrailingZeros64(word)
		}
		d.hi = d.offset + w*64 + 63 - bits.LeadingZeros64(word)
		d.count += bits.OnesCount64(word)
	}
	switch {
	case d.count == 0:
		return emptyDomain
	case d.count == d.hi-d.lo+1:
		return &IntervalDomain{lo: d.lo, hi: d.hi}
	}
	return d
}

func (d *BitSetDomain) copyWords() *BitSetDomain {
	words := make([]uint64, len(d.words))
	copy(words, d.words)
	return &BitSetDomain{offset: d.offset, words: words}
}

func (d *BitSetDomain) Count() int { return d.count }

func (d *BitSetDomain) Has(value int) bool {
	return value >= d.lo && value <= d.hi && d.bit(value)
}

func (d *BitSetDomain) IsSingleton() bool { return d.count == 1 }

// SingletonValue never succeeds: a singleton is always normalized to an
// IntervalDomain.
func (d *BitSetDomain) SingletonValue() int {
	panic(fmt.Sprintf("SingletonValue called on %s", d))
}

func (d *BitSetDomain) Min() int { return d.lo }

func (d *BitSetDomain) Max() int { return d.hi }

func (d *BitSetDomain) Next(value int) int {
	if value > d.hi {
		return -1
	}
	if value <= d.lo {
		return d.lo
	}
	i := value - d.offset
	w := i / 64
	word := d.words[w] & (^uint64(0) << uint(i%64))
	for {
		if word != 0 {
			return d.offset + w*64 + bits.TrailingZeros64(word)
		}
		w++
		if w >= len(d.words) {
			return -1
		}
		word = d.words[w]
	}
}

func (d *BitSetDomain) Prev(value int) int {
	if value < d.lo {
		return -1
	}
	if value >= d.hi {
		return d.hi
	}
	i := value - d.offset
	w := i / 64
	word := d.words[w] & (^uint64(0) >> uint(63-i%64))
	for {
		if word != 0 {
			return d.offset + w*64 + 63 - bits.LeadingZeros64(word)
		}
		w--
		if w < 0 {
			return -1
		}
		word = d.words[w]
	}
}

func (d *BitSetDomain) Remove(value int) Domain {
	if !d.Has(value) {
		return d
	}
	nd := d.copyWords()
	nd.clear(value)
	return nd.normalize()
}

func (d *BitSetDomain) RemoveBelow(threshold int) Domain {
	if threshold <= d.lo {
		return d
	}
	if threshold > d.hi {
		return emptyDomain
	}
	nd := d.copyWords()
	i := threshold - d.offset
	for w := 0; w < i/64; w++ {
		nd.words[w] = 0
	}
	nd.words[i/64] &= ^uint64(0) << uint(i%64)
	return nd.normalize()
}

func (d *BitSetDomain) RemoveAbove(threshold int) Domain {
	if threshold >= d.hi {
		return d
	}
	if threshold < d.lo {
		return emptyDomain
	}
	nd := d.copyWords()
	i := threshold - d.offset
	nd.words[i/64] &= ^uint64(0) >> uint(63-i%64)
	for w := i/64 + 1; w < len(nd.words); w++ {
		nd.words[w] = 0
	}
	return nd.normalize()
}

func (d *BitSetDomain) Intersect(other Domain) Domain {
	if o, ok := other.(*IntervalDomain); ok {
		return d.RemoveBelow(o.Min()).RemoveAbove(o.Max())
	}
	lo, hi := max(d.lo, other.Min()), min(d.hi, other.Max())
	if other.Count() == 0 || lo > hi {
		return emptyDomain
	}
	nd := newBitSet(lo, hi)
	for v := d.Next(lo); v != -1 && v <= hi; v = d.Next(v + 1) {
		if other.Has(v) {
			nd.set(v)
		}
	}
	return nd.normalize()
}

func (d *BitSetDomain) IterateValues(f func(value int)) {
	for w, word := range d.words {
		for word != 0 {
			tz := bits.TrailingZeros64(word)
			f(d.offset + w*64 + tz)
			word &= word - 1
		}
	}
}

func (d *BitSetDomain) Equal(other Domain) bool {
	if other == nil || other.Count() != d.count || other.Min() != d.lo || other.Max() != d.hi {
		return false
	}
	if _, ok := other.(*IntervalDomain); ok {
		return false
	}
	equal := true
	d.IterateValues(func(v int) {
		if equal && !other.Has(v) {
			equal = false
		}
	})
	return equal
}

// String renders the values as a list, truncated after 20 entries.
func (d *BitSetDomain) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	n := 0
	d.IterateValues(func(v int) {
		switch {
		case n < 20:
			if n > 0 {
				sb.WriteByte(',')
			}
			fmt.Fprintf(&sb, "%d", v)
		case n == 20:
			sb.WriteString(",...")
		}
		n++
	})
	sb.WriteByte('}')
	return sb.String()
}
