package verify

// NoScore is the sentinel returned when a reference set is empty. Callers
// must treat it as an automatic rejection; it compares below any real
// similarity, which lives in [-1, 1].
const NoScore = -1.0

// Score returns the best cosine similarity between probe and any reference.
// Both sides are unit-normalized by the extractor, so the dot product is the
// cosine. Ties between references are broken by scan order.
func Score(probe []float32, refs [][]float32) float64 {
	best := NoScore
	for _, ref := range refs {
		if s := dot(probe, ref); s > best {
			best = s
		}
	}
	return best
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
