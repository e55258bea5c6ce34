package risk

import (
	"fmt"

	"ipguard/internal/model"
)

// Scorer wraps one loaded artifact and scores feature batches with it.
type Scorer struct {
	artifact *Artifact
}

func NewScorer(artifact *Artifact) *Scorer {
	return &Scorer{artifact: artifact}
}

// Score attaches a risk score in [0,1] to every vector. Column order follows
// the artifact's feature_cols exactly and columns the aggregator does not
// produce are filled with zero.
func (s *Scorer) Score(vectors []model.FeatureVector) ([]model.ScoredVector, error) {
	if len(vectors) == 0 {
		return nil, nil
	}
	rows := make([][]float64, len(vectors))
	for i, v := range vectors {
		row := make([]float64, len(s.artifact.FeatureCols))
		for j, col := range s.artifact.FeatureCols {
			if val, ok := v.Feature(col); ok {
				row[j] = val
			}
		}
		rows[i] = row
	}

	var scores []float64
	switch {
	case s.artifact.classifier != nil:
		scores = s.artifact.classifier.PredictProba(rows)
	case s.artifact.anomaly != nil:
		scores = rescale(s.artifact.anomaly.DecisionFunction(rows))
	default:
		return nil, fmt.Errorf("artifact mode %q has no model", s.artifact.Mode)
	}

	scored := make([]model.ScoredVector, len(vectors))
	for i := range vectors {
		scored[i] = model.ScoredVector{FeatureVector: vectors[i], RiskScore: scores[i]}
	}
	return scored, nil
}

// rescale converts decision values (higher = more normal) to batch-relative
// risk via min-max: the most anomalous row maps to 1, the most normal to 0.
// The denominator is clamped to 1 for a degenerate batch where all values
// are equal, which includes single-row batches. Unsupervised scores are
// therefore relative to the current batch, not globally calibrated.
func rescale(values []float64) []float64 {
	if len(values) == 0 {
		return values
	}
	mn, mx := values[0], values[0]
	for _, v := range values[1:] {
		if v < mn {
			mn = v
		}
		if v > mx {
			mx = v
		}
	}
	denom := mx - mn
	if denom == 0 {
		denom = 1
	}
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = (mx - v) / denom
	}
	return out
}
