package anomaly

import (
	"math"
	"math/rand"
	"sort"

	"FlowTriage/internal/config"
	"FlowTriage/internal/model"
)

// Scorer fits an isolation forest over a scenario's feature vectors and
// assigns every flow a continuous anomaly score plus a binary flag. The
// fitted model is scenario-scoped: a fresh forest is built on every Score
// call, so nothing leaks between scenarios and determinism stays testable.
type Scorer struct {
	cfg config.AnomalyConfig
}

// NewScorer creates a scorer with the given configuration.
func NewScorer(cfg config.AnomalyConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score fits on the full vector set and scores every flow, including the
// ones used for fitting; the analysis is exploratory, not predictive on
// unseen data. Reported scores follow the score_samples convention: lower
// means more anomalous. Exactly round(contamination*N) flows are flagged,
// picking the lowest scores with index order as the tie-break.
//
// Fails with InsufficientDataError when fewer than MinFlows vectors are
// supplied. The input is never mutated.
func (s *Scorer) Score(features []model.FeatureVector) ([]model.AnomalyRecord, error) {
	n := len(features)
	if n < s.cfg.MinFlows {
		return nil, &model.InsufficientDataError{Flows: n, Min: s.cfg.MinFlows}
	}

	data := make([][]float64, n)
	for i, v := range features {
		data[i] = v.Values()
	}

	rng := rand.New(rand.NewSource(s.cfg.Seed))
	forest := fitForest(data, s.cfg.NumTrees, s.cfg.SampleSize, rng)

	records := make([]model.AnomalyRecord, n)
	for i, row := range data {
		records[i] = model.AnomalyRecord{
			FlowIndex: i,
			Score:     -forest.score(row),
		}
	}

	flagLowest(records, int(math.Round(s.cfg.Contamination*float64(n))))

	return records, nil
}

// flagLowest marks the k most anomalous records, breaking score ties by
// flow index so repeated runs flag the same flows.
func flagLowest(records []model.AnomalyRecord, k int) {
	if k <= 0 {
		return
	}
	if k > len(records) {
		k = len(records)
	}

	order := make([]int, len(records))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		ra, rb := records[order[a]], records[order[b]]
		if ra.Score != rb.Score {
			return ra.Score < rb.Score
		}
		return ra.FlowIndex < rb.FlowIndex
	})

	for _, idx := range order[:k] {
		records[idx].IsAnomaly = true
	}
}
