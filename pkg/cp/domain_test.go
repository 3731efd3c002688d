package cp

import "testing"

func TestIntervalDomain_Basics(t *testing.T) {
	d := NewRangeDomain(0, 9)
	if d.Count() != 10 {
		t.Fatalf("expected 10 values, got %d", d.Count())
	}
	if !d.Has(0) || !d.Has(9) || d.Has(10) || d.Has(-1) {
		t.Fatalf("unexpected membership in %s", d)
	}
	if d.Min() != 0 || d.Max() != 9 {
		t.Fatalf("expected bounds 0..9, got %d..%d", d.Min(), d.Max())
	}
	if d.IsSingleton() {
		t.Fatalf("full domain reported as singleton")
	}
	if got := d.String(); got != "{0..9}" {
		t.Fatalf("String() = %s", got)
	}
	if d.Next(-3) != 0 || d.Next(4) != 4 || d.Next(10) != -1 {
		t.Fatalf("Next over %s: %d %d %d", d, d.Next(-3), d.Next(4), d.Next(10))
	}
	if d.Prev(12) != 9 || d.Prev(4) != 4 || d.Prev(-1) != -1 {
		t.Fatalf("Prev over %s: %d %d %d", d, d.Prev(12), d.Prev(4), d.Prev(-1))
	}
}

func TestIntervalDomain_Narrowing(t *testing.T) {
	d := NewRangeDomain(60, 130)
	below := d.RemoveBelow(64)
	if below.Min() != 64 || below.Count() != 67 {
		t.Fatalf("RemoveBelow(64) = %s", below)
	}
	above := d.RemoveAbove(63)
	if above.Max() != 63 || above.Count() != 4 {
		t.Fatalf("RemoveAbove(63) = %s", above)
	}
	if got := d.Remove(60).String(); got != "{61..130}" {
		t.Fatalf("Remove(60) = %s", got)
	}
	if got := d.Remove(130).String(); got != "{60..129}" {
		t.Fatalf("Remove(130) = %s", got)
	}
	if got := d.RemoveBelow(131).Count(); got != 0 {
		t.Fatalf("RemoveBelow past the range left %d values", got)
	}
	// receiver untouched
	if d.Count() != 71 {
		t.Fatalf("domain mutated by narrowing: %s", d)
	}
}

func TestIntervalDomain_WideRange(t *testing.T) {
	const hi = 2_000_000_000
	d := NewRangeDomain(0, hi)
	if d.Count() != hi+1 {
		t.Fatalf("expected %d values, got %d", hi+1, d.Count())
	}
	n := d.RemoveBelow(hi - 5).RemoveAbove(hi - 2)
	if got := n.String(); got != "{1999999995..1999999998}" {
		t.Fatalf("narrowed to %s", got)
	}
	if _, ok := n.(*IntervalDomain); !ok {
		t.Fatalf("bound narrowing should keep an interval, got %T", n)
	}
}

func TestDomain_EmptyAndSingleton(t *testing.T) {
	empty := NewRangeDomain(5, 3)
	if empty.Count() != 0 || empty.Min() != -1 || empty.Max() != -1 {
		t.Fatalf("expected empty domain, got %s", empty)
	}
	if empty.Next(0) != -1 || empty.Prev(10) != -1 {
		t.Fatalf("empty domain has neighbours")
	}
	if NewRangeDomain(-4, -1).Count() != 0 {
		t.Fatalf("negative range should give an empty domain")
	}
	if NewDomainFromValues().Count() != 0 {
		t.Fatalf("no values should give an empty domain")
	}

	one := NewDomainFromValues(70)
	if !one.IsSingleton() || one.SingletonValue() != 70 {
		t.Fatalf("expected singleton {70}, got %s", one)
	}
	if one.Remove(70).Count() != 0 {
		t.Fatalf("removing the only value should empty the domain")
	}
	if NewDomainFromValues(3, 70).IsSingleton() {
		t.Fatalf("two values across words reported as singleton")
	}
}

func TestBitSetDomain_Holes(t *testing.T) {
	d := NewRangeDomain(100, 300).Remove(200)
	if _, ok := d.(*BitSetDomain); !ok {
		t.Fatalf("inner removal should produce a bitset, got %T", d)
	}
	if d.Count() != 200 || d.Has(200) || !d.Has(199) || !d.Has(201) {
		t.Fatalf("unexpected membership in %s", d)
	}
	if d.Next(200) != 201 || d.Prev(200) != 199 {
		t.Fatalf("neighbours of the hole: %d %d", d.Next(200), d.Prev(200))
	}
	if d.Next(301) != -1 || d.Prev(99) != -1 || d.Next(0) != 100 || d.Prev(1000) != 300 {
		t.Fatalf("neighbours outside the range")
	}

	// narrowing past the hole goes back to an interval
	n := d.RemoveBelow(201)
	if _, ok := n.(*IntervalDomain); !ok || n.String() != "{201..300}" {
		t.Fatalf("RemoveBelow(201) = %s (%T)", n, n)
	}
	n = d.RemoveAbove(199)
	if _, ok := n.(*IntervalDomain); !ok || n.String() != "{100..199}" {
		t.Fatalf("RemoveAbove(199) = %s (%T)", n, n)
	}
	if got := d.RemoveBelow(150).RemoveAbove(250).Count(); got != 100 {
		t.Fatalf("expected 100 values in [150,250] without 200, got %d", got)
	}
}

func TestDomain_EqualAcrossRepresentations(t *testing.T) {
	a := NewDomainFromValues(2, 4)
	b := NewRangeDomain(2, 4).Remove(3)
	if !a.Equal(b) || !b.Equal(a) {
		t.Fatalf("%s and %s should compare equal", a, b)
	}
	if a.Equal(NewRangeDomain(2, 4)) || NewRangeDomain(2, 4).Equal(a) {
		t.Fatalf("range compared equal to a set with a hole")
	}
	if !NewDomainFromValues(5, 6, 7).Equal(NewRangeDomain(5, 7)) {
		t.Fatalf("contiguous values should equal the range")
	}
	if a.Equal(NewDomainFromValues(2)) {
		t.Fatalf("different sets compared equal")
	}
}

func TestDomain_Intersect(t *testing.T) {
	a := NewRangeDomain(0, 10)
	b := NewDomainFromValues(1, 5, 12)
	got := a.Intersect(b)
	if got.Count() != 2 || !got.Has(1) || !got.Has(5) {
		t.Fatalf("Intersect = %s", got)
	}
	if !got.Equal(b.Intersect(a)) {
		t.Fatalf("Intersect is not symmetric: %s vs %s", got, b.Intersect(a))
	}
	if got := NewRangeDomain(3, 8).Intersect(NewRangeDomain(6, 20)).String(); got != "{6..8}" {
		t.Fatalf("range intersection = %s", got)
	}
	c := NewDomainFromValues(1, 3, 5, 7)
	if got := b.Intersect(c).String(); got != "{1,5}" {
		t.Fatalf("bitset intersection = %s", got)
	}
}

func TestBitSetDomain_StringList(t *testing.T) {
	d := NewDomainFromValues(7, 1, 3)
	if got := d.String(); got != "{1,3,7}" {
		t.Fatalf("String() = %s", got)
	}
	var values []int
	d.IterateValues(func(v int) { values = append(values, v) })
	if len(values) != 3 || values[0] != 1 || values[2] != 7 {
		t.Fatalf("IterateValues = %v", values)
	}
}
