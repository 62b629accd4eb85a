package retrieval

import "testing"

func TestFlatIndexSearchOrdersByDistance(t *testing.T) {
	ix, err := NewFlatIndex(2)
	if err != nil {
		t.Fatalf("NewFlatIndex: %v", err)
	}
	vectors := [][]float32{
		{10, 10},
		{1, 1},
		{2, 2},
	}
	if err := ix.Add(vectors); err != nil {
		t.Fatalf("Add: %v", err)
	}

	got, err := ix.Search([]float32{0, 0}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("unexpected result order: %v", got)
	}
}

func TestFlatIndexSearchTiesPreferEarlierInsertion(t *testing.T) {
	ix, _ := NewFlatIndex(1)
	_ = ix.Add([][]float32{{5}, {5}, {5}})

	got, err := ix.Search([]float32{5}, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for i, idx := range got {
		if idx != i {
			t.Fatalf("tie order %v, want insertion order", got)
		}
	}
}

func TestFlatIndexKLargerThanSize(t *testing.T) {
	ix, _ := NewFlatIndex(1)
	_ = ix.Add([][]float32{{1}, {2}})

	got, err := ix.Search([]float32{0}, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected all vectors, got %d", len(got))
	}
}

func TestFlatIndexDimensionMismatch(t *testing.T) {
	ix, _ := NewFlatIndex(2)
	if err := ix.Add([][]float32{{1}}); err == nil {
		t.Fatalf("expected add dimension error")
	}
	if _, err := ix.Search([]float32{1}, 1); err == nil {
		t.Fatalf("expected search dimension error")
	}
}

func TestFlatIndexEmpty(t *testing.T) {
	ix, _ := NewFlatIndex(3)
	got, err := ix.Search([]float32{0, 0, 0}, 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no results from empty index, got %v", got)
	}
}
