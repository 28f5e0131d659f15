// Package reduce projects embedding vectors down to a fixed index width by
// block averaging. The projection is lossy and irreversible; it exists so
// vectors from wide external embedders (e.g. 3072 dimensions) fit an index
// built at a narrower width (e.g. 768).
package reduce

import "fmt"

// Reduce averages source elements into targetLen buckets with floor-based
// boundaries: bucket i covers [floor(i*N/M), floor((i+1)*N/M)). It requires
// targetLen <= len(vector); a wider target would leave empty buckets.
func Reduce(vector []float32, targetLen int) ([]float32, error) {
	sourceLen := len(vector)
	if targetLen <= 0 {
		return nil, fmt.Errorf("target length must be positive, got %d", targetLen)
	}
	if targetLen > sourceLen {
		return nil, fmt.Errorf("target length %d exceeds source length %d", targetLen, sourceLen)
	}

	if targetLen == sourceLen {
		out := make([]float32, sourceLen)
		copy(out, vector)
		return out, nil
	}

	reduced := make([]float32, targetLen)
	for i := 0; i < targetLen; i++ {
		start := i * sourceLen / targetLen
		end := (i + 1) * sourceLen / targetLen

		var sum float64
		for _, v := range vector[start:end] {
			sum += float64(v)
		}
		reduced[i] = float32(sum / float64(end-start))
	}

	return reduced, nil
}
