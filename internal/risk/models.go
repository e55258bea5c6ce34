package risk

import "math"

// ClassifierModel is the capability of supervised artifacts: a calibrated
// positive-class probability per row, already in [0,1].
type ClassifierModel interface {
	PredictProba(rows [][]float64) []float64
}

// AnomalyModel is the capability of unsupervised artifacts: a decision value
// per row where higher means more normal.
type AnomalyModel interface {
	DecisionFunction(rows [][]float64) []float64
}

// LogisticModel scores a row as sigmoid(intercept + w·standardize(x)).
type LogisticModel struct {
	Mean      []float64 `json:"mean"`
	Std       []float64 `json:"std"`
	Weights   []float64 `json:"weights"`
	Intercept float64   `json:"intercept"`
}

func (m *LogisticModel) PredictProba(rows [][]float64) []float64 {
	out := make([]float64, len(rows))
	for i, row := range rows {
		z := m.Intercept
		for j, x := range row {
			z += m.Weights[j] * standardize(x, m.Mean[j], m.Std[j])
		}
		out[i] = 1 / (1 + math.Exp(-z))
	}
	return out
}

// DistanceModel scores a row as offset minus the euclidean distance between
// the standardized row and the learned center, so values shrink as rows move
// away from normal behavior.
type DistanceModel struct {
	Mean   []float64 `json:"mean"`
	Std    []float64 `json:"std"`
	Center []float64 `json:"center"`
	Offset float64   `json:"offset"`
}

func (m *DistanceModel) DecisionFunction(rows [][]float64) []float64 {
	out := make([]float64, len(rows))
	for i, row := range rows {
		var sum float64
		for j, x := range row {
			d := standardize(x, m.Mean[j], m.Std[j]) - m.Center[j]
			sum += d * d
		}
		out[i] = m.Offset - math.Sqrt(sum)
	}
	return out
}

func standardize(x, mean, std float64) float64 {
	if std <= 0 {
		std = 1
	}
	return (x - mean) / std
}
