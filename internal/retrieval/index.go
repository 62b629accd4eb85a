package retrieval

import (
	"errors"
	"sort"
)

// FlatIndex is an exhaustive L2 nearest-neighbour index over float32
// vectors. Vectors keep their insertion order; ties resolve to the earlier
// insertion.
type FlatIndex struct {
	dim     int
	vectors [][]float32
}

// NewFlatIndex creates an empty index for vectors of the given dimension.
func NewFlatIndex(dim int) (*FlatIndex, error) {
	if dim <= 0 {
		return nil, errors.New("dimension must be positive")
	}
	return &FlatIndex{dim: dim}, nil
}

// Add appends vectors to the index.
func (ix *FlatIndex) Add(vectors [][]float32) error {
	for _, v := range vectors {
		if len(v) != ix.dim {
			return errors.New("vector dimension mismatch")
		}
	}
	ix.vectors = append(ix.vectors, vectors...)
	return nil
}

// Len reports the number of indexed vectors.
func (ix *FlatIndex) Len() int {
	return len(ix.vectors)
}

// Search returns the indices of the k nearest vectors to the query by
// squared Euclidean distance, closest first.
func (ix *FlatIndex) Search(query []float32, k int) ([]int, error) {
	if len(query) != ix.dim {
		return nil, errors.New("query dimension mismatch")
	}
	if k <= 0 || len(ix.vectors) == 0 {
		return nil, nil
	}

	type scored struct {
		idx  int
		dist float32
	}
	results := make([]scored, len(ix.vectors))
	for i, v := range ix.vectors {
		var sum float32
		for j := range v {
			d := v[j] - query[j]
			sum += d * d
		}
		results[i] = scored{idx: i, dist: sum}
	}
	sort.SliceStable(results, func(a, b int) bool {
		return results[a].dist < results[b].dist
	})

	if k > len(results) {
		k = len(results)
	}
	out := make([]int, k)
	for i := 0; i < k; i++ {
		out[i] = results[i].idx
	}
	return out, nil
}
