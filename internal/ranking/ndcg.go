package ranking

import (
	"math"
	"sort"
)

// DefaultTruncation is the "@5" truncation used by every ranking loss and by
// NDCG evaluation in this repository.
const DefaultTruncation = 5

// NDCGCalculator precomputes the inverse-log discount terms for a fixed
// truncation so per-group NDCG evaluation is a couple of table lookups and a
// division, not a fresh log2 per item.
type NDCGCalculator struct {
	truncation int
	invLog2    []float64 // invLog2[r] = 1 / log2(r+2)
}

// NewNDCGCalculator builds a calculator for the given truncation depth.
func NewNDCGCalculator(truncation int) *NDCGCalculator {
	invLog2 := make([]float64, truncation)
	for r := 0; r < truncation; r++ {
		invLog2[r] = 1.0 / math.Log2(float64(r)+2.0)
	}
	return &NDCGCalculator{truncation: truncation, invLog2: invLog2}
}

// Term returns the gain a relevance value contributes at rank r:
// (2^rel - 1) / log2(r+2). Ranks at or beyond the truncation contribute 0.
func (c *NDCGCalculator) Term(relevance float32, r int) float64 {
	if r < 0 || r >= c.truncation {
		return 0
	}
	return (math.Exp2(float64(relevance)) - 1.0) * c.invLog2[r]
}

// pair is a (prediction, relevance) tuple used for the sort-then-DCG dance
// in NDCG evaluation.
type pair struct {
	prediction float64
	relevance  float32
}

// dcg computes DCG@truncation over pairs already sorted in the desired
// order (descending prediction for DCG, descending relevance for IDCG).
func (c *NDCGCalculator) dcg(pairs []pair) float64 {
	total := 0.0
	limit := len(pairs)
	if limit > c.truncation {
		limit = c.truncation
	}
	for r := 0; r < limit; r++ {
		total += c.Term(pairs[r].relevance, r)
	}
	return total
}

// NDCG computes NDCG@truncation for one group given parallel predictions and
// relevances: DCG of the prediction-sorted order divided by DCG of the
// relevance-sorted order (IDCG). Ties in prediction are broken by a stable
// sort, matching plain (non-shuffled) evaluation semantics.
func (c *NDCGCalculator) NDCG(predictions []float64, relevances []float32) float64 {
	n := len(predictions)
	if n == 0 {
		return math.NaN()
	}
	pairs := make([]pair, n)
	for i := range pairs {
		pairs[i] = pair{prediction: predictions[i], relevance: relevances[i]}
	}

	byPrediction := make([]pair, n)
	copy(byPrediction, pairs)
	sort.SliceStable(byPrediction, func(i, j int) bool {
		return byPrediction[i].prediction > byPrediction[j].prediction
	})

	byRelevance := make([]pair, n)
	copy(byRelevance, pairs)
	sort.SliceStable(byRelevance, func(i, j int) bool {
		return byRelevance[i].relevance > byRelevance[j].relevance
	})

	idcg := c.dcg(byRelevance)
	if idcg == 0 {
		return 0
	}
	return c.dcg(byPrediction) / idcg
}

// NDCG computes the group-weighted NDCG@truncation across the whole index:
// each group's NDCG is weighted by the weight of its first item, and the
// result is the weighted mean.
func (idx *GroupIndex) NDCG(predictions []float32, weights []float32, truncation int) float64 {
	calc := NewNDCGCalculator(truncation)
	var sumWeightedNDCG, sumWeight float64
	for _, group := range idx.Groups {
		preds := make([]float64, len(group.Items))
		rels := make([]float32, len(group.Items))
		for i, item := range group.Items {
			preds[i] = float64(predictions[item.ExampleIdx])
			rels[i] = item.Relevance
		}
		w := 1.0
		if weights != nil {
			w = float64(weights[group.Items[0].ExampleIdx])
		}
		sumWeightedNDCG += w * calc.NDCG(preds, rels)
		sumWeight += w
	}
	if sumWeight <= 0 {
		return math.NaN()
	}
	return sumWeightedNDCG / sumWeight
}
