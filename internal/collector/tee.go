package collector

// Pair holds the results of two collectors fed from one pass.
type Pair[A, B any] struct {
	First  A
	Second B
}

type tee[A, B any] struct {
	a Collector[A]
	b Collector[B]
}

// Tee pushes every hit to both a and b, so one search can produce, say, a
// total count and the top K.
func Tee[A, B any](a Collector[A], b Collector[B]) Collector[Pair[A, B]] {
	return &tee[A, B]{a: a, b: b}
}

func (t *tee[A, B]) Collect(addr DocAddress, score float32) {
	t.a.Collect(addr, score)
	t.b.Collect(addr, score)
}

func (t *tee[A, B]) Finish() Pair[A, B] {
	return Pair[A, B]{First: t.a.Finish(), Second: t.b.Finish()}
}
