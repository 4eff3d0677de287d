package semantic

import "math"

// Normalize scales vec to unit length in place and returns it. A zero vector
// stays zero.
func Normalize(vec []float32) []float32 {
	var sumSquares float32
	for _, v := range vec {
		sumSquares += v * v
	}

	magnitude := float32(math.Sqrt(float64(sumSquares)))
	if magnitude < 1e-10 {
		for i := range vec {
			vec[i] = 0
		}
		return vec
	}

	inv := 1.0 / magnitude
	for i := range vec {
		vec[i] *= inv
	}
	return vec
}

// Dot returns the dot product of two vectors, or 0 when their dimensions
// differ. For unit vectors this is their cosine similarity.
func Dot(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return float64(sum)
}
