package activation

import "testing"

func TestQuadTreeSubdividesAndQueries(t *testing.T) {
	q := NewQuadTree[int](Rect{-16, -16, 15, 15}, 2, 6)
	n := 0
	for y := -16; y < 16; y += 4 {
		for x := -16; x < 16; x += 4 {
			if !q.Insert(x, y, n) {
				t.Fatalf("insert (%d,%d) failed", x, y)
			}
			n++
		}
	}
	if q.Len() != 64 {
		t.Fatalf("len=%d", q.Len())
	}
	st := q.Stats()
	if st.Items != 64 || st.Leaves < 4 || st.MaxDepth == 0 {
		t.Fatalf("stats=%+v", st)
	}

	got := 0
	q.Query(Rect{-4, -4, 3, 3}, func(x, y, _ int) bool {
		if x < -4 || x > 3 || y < -4 || y > 3 {
			t.Fatalf("query returned (%d,%d) outside rect", x, y)
		}
		got++
		return true
	})
	if got != 4 {
		t.Fatalf("query hits=%d want 4", got)
	}

	stopped := 0
	q.Query(q.Bounds(), func(_, _, _ int) bool {
		stopped++
		return stopped < 3
	})
	if stopped != 3 {
		t.Fatalf("query did not stop early: %d", stopped)
	}
}

func TestQuadTreeRejectsOutOfBounds(t *testing.T) {
	q := NewQuadTree[string](Rect{0, 0, 7, 7}, 4, 4)
	if q.Insert(8, 0, "x") || q.Insert(-1, 3, "y") {
		t.Fatalf("out of bounds insert accepted")
	}
	if q.Len() != 0 {
		t.Fatalf("len=%d", q.Len())
	}
}

func TestQuadTreeRemove(t *testing.T) {
	q := NewQuadTree[string](Rect{0, 0, 7, 7}, 1, 8)
	q.Insert(1, 1, "a")
	q.Insert(1, 1, "b")
	q.Insert(6, 6, "c")
	if !q.Remove(1, 1, func(v string) bool { return v == "b" }) {
		t.Fatalf("remove b failed")
	}
	if q.Remove(1, 1, func(v string) bool { return v == "b" }) {
		t.Fatalf("b removed twice")
	}
	var left []string
	q.Query(q.Bounds(), func(_, _ int, v string) bool {
		left = append(left, v)
		return true
	})
	if len(left) != 2 || q.Len() != 2 {
		t.Fatalf("left=%v", left)
	}
	q.Clear()
	if q.Len() != 0 || q.Stats().Items != 0 {
		t.Fatalf("clear failed")
	}
}

func TestRectIntersects(t *testing.T) {
	a := Rect{0, 0, 3, 3}
	if !a.Intersects(Rect{3, 3, 5, 5}) {
		t.Fatalf("touching corners should intersect (inclusive)")
	}
	if a.Intersects(Rect{4, 0, 5, 3}) {
		t.Fatalf("disjoint rects intersect")
	}
	if a.Intersects(Rect{2, 2, 1, 1}) {
		t.Fatalf("empty rect intersects")
	}
}
