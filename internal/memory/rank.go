package memory

import (
	"cmp"
	"math"
	"slices"
)

// Scored pairs a fragment with its similarity to a query.
type Scored struct {
	Fragment Fragment
	Score    float64
}

// Rank scores candidates against query by cosine similarity of smoothed
// TF-IDF vectors computed over the query and the candidates together.
// Results are ordered by descending score; equal scores keep the input
// order.
func Rank(query string, candidates []Fragment) []Scored {
	if len(candidates) == 0 {
		return nil
	}

	docs := make([]map[string]float64, len(candidates)+1)
	docs[0] = termCounts(query)
	for i, c := range candidates {
		docs[i+1] = termCounts(c.Content)
	}

	df := make(map[string]int)
	for _, d := range docs {
		for term := range d {
			df[term]++
		}
	}
	n := float64(len(docs))
	for _, d := range docs {
		var norm float64
		for term, tf := range d {
			w := tf * (math.Log((1+n)/(1+float64(df[term]))) + 1)
			d[term] = w
			norm += w * w
		}
		if norm == 0 {
			continue
		}
		norm = math.Sqrt(norm)
		for term := range d {
			d[term] /= norm
		}
	}

	out := make([]Scored, len(candidates))
	q := docs[0]
	for i, c := range candidates {
		var dot float64
		for term, w := range q {
			dot += w * docs[i+1][term]
		}
		out[i] = Scored{Fragment: c, Score: dot}
	}
	slices.SortStableFunc(out, func(a, b Scored) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return out
}

func termCounts(text string) map[string]float64 {
	counts := make(map[string]float64)
	for _, term := range Tokenize(text) {
		counts[term]++
	}
	return counts
}
