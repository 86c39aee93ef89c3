// Package rank computes composite popularity scores and a total,
// reproducible candidate order.
package rank

import (
	"math"
	"sort"

	"papertrends/internal/domain"
)

// Normalization methods. Raw engagement scales differ wildly between
// platforms, so the default maps each source onto a rank percentile before
// weighting.
const (
	NormalizeRank = "rank"
	NormalizeLog  = "log"
	NormalizeNone = "none"
)

// Policy is the deployment-configured scoring behavior.
type Policy struct {
	Weights       map[domain.Source]float64
	Normalization string
}

// Ranker turns the merged candidate set into a RankedList.
type Ranker struct {
	policy Policy
}

// New builds a ranker; unknown normalization methods fall back to rank
// percentile.
func New(policy Policy) *Ranker {
	switch policy.Normalization {
	case NormalizeRank, NormalizeLog, NormalizeNone:
	default:
		policy.Normalization = NormalizeRank
	}
	return &Ranker{policy: policy}
}

// Rank scores every candidate and sorts them into a strict total order:
// descending score, then earliest observation, then ascending paper id.
// Identical input always yields an identical list.
func (r *Ranker) Rank(candidates map[string]*domain.Candidate) domain.RankedList {
	ids := make([]string, 0, len(candidates))
	for id := range candidates {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	normalize := r.normalizer(candidates, ids)

	list := make(domain.RankedList, 0, len(ids))
	for _, id := range ids {
		c := *candidates[id]
		engagement := c.SourceEngagement()

		// Sum in a fixed source order; float addition is not associative, so
		// map iteration order would leak into the score.
		sources := make([]domain.Source, 0, len(engagement))
		for source := range engagement {
			sources = append(sources, source)
		}
		sort.Slice(sources, func(i, j int) bool { return sources[i] < sources[j] })

		var score float64
		for _, source := range sources {
			score += r.policy.Weights[source] * normalize(source, engagement[source])
		}
		c.Score = score
		list = append(list, c)
	}

	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		ai, bi := a.EarliestObservedAt(), b.EarliestObservedAt()
		if !ai.Equal(bi) {
			return ai.Before(bi)
		}
		return a.PaperID < b.PaperID
	})

	return list
}

// normalizer precomputes per-source statistics over the candidate set and
// returns the configured mapping from raw totals to a comparable scale.
func (r *Ranker) normalizer(candidates map[string]*domain.Candidate, ids []string) func(domain.Source, float64) float64 {
	switch r.policy.Normalization {
	case NormalizeNone:
		return func(_ domain.Source, total float64) float64 { return total }

	case NormalizeLog:
		maxTotal := map[domain.Source]float64{}
		for _, id := range ids {
			for source, total := range candidates[id].SourceEngagement() {
				if total > maxTotal[source] {
					maxTotal[source] = total
				}
			}
		}
		return func(source domain.Source, total float64) float64 {
			max := maxTotal[source]
			if max <= 0 {
				return 0
			}
			return math.Log1p(total) / math.Log1p(max)
		}

	default: // NormalizeRank
		percentile := rankPercentiles(candidates, ids)
		return func(source domain.Source, total float64) float64 {
			return percentile[source][total]
		}
	}
}

// rankPercentiles maps every distinct per-source total onto (n-rank+1)/n,
// where rank 1 is the highest total and n counts the candidates that have
// the source at all. Equal totals share a rank.
func rankPercentiles(candidates map[string]*domain.Candidate, ids []string) map[domain.Source]map[float64]float64 {
	totalsBySource := map[domain.Source][]float64{}
	for _, id := range ids {
		for source, total := range candidates[id].SourceEngagement() {
			totalsBySource[source] = append(totalsBySource[source], total)
		}
	}

	out := map[domain.Source]map[float64]float64{}
	for source, totals := range totalsBySource {
		n := float64(len(totals))
		sort.Sort(sort.Reverse(sort.Float64Slice(totals)))

		scale := make(map[float64]float64, len(totals))
		for i, total := range totals {
			if _, seen := scale[total]; seen {
				continue // equal totals share the first (best) rank
			}
			rank := float64(i + 1)
			scale[total] = (n - rank + 1) / n
		}
		out[source] = scale
	}
	return out
}
