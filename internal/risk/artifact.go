package risk

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"ipguard/internal/model"
)

var ErrArtifactUnavailable = errors.New("model artifact unavailable")

type Mode string

const (
	ModeSupervised   Mode = "supervised"
	ModeUnsupervised Mode = "unsupervised"
)

// Artifact is the trained model file produced offline. The model payload is
// decoded according to Mode when the artifact is loaded.
type Artifact struct {
	Mode                   Mode               `json:"mode"`
	Model                  json.RawMessage    `json:"model"`
	FeatureCols            []string           `json:"feature_cols"`
	WindowSec              int                `json:"window_sec"`
	TrainedAt              time.Time          `json:"trained_at"`
	LabelSeverityThreshold int                `json:"label_severity_threshold,omitempty"`
	AttackEventTypes       []int              `json:"attack_event_types"`
	SuspiciousEventTypes   []int              `json:"suspicious_event_types"`
	Metrics                map[string]float64 `json:"metrics,omitempty"`

	classifier ClassifierModel
	anomaly    AnomalyModel
}

func LoadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArtifactUnavailable, err)
	}
	var art Artifact
	if err := json.Unmarshal(data, &art); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrArtifactUnavailable, path, err)
	}
	if err := art.compile(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrArtifactUnavailable, path, err)
	}
	return &art, nil
}

func (a *Artifact) compile() error {
	if len(a.FeatureCols) == 0 {
		return errors.New("artifact has no feature_cols")
	}
	n := len(a.FeatureCols)
	switch a.Mode {
	case ModeSupervised:
		var m LogisticModel
		if err := json.Unmarshal(a.Model, &m); err != nil {
			return err
		}
		if len(m.Weights) != n || len(m.Mean) != n || len(m.Std) != n {
			return errors.New("classifier parameter lengths do not match feature_cols")
		}
		a.classifier = &m
	case ModeUnsupervised:
		var m DistanceModel
		if err := json.Unmarshal(a.Model, &m); err != nil {
			return err
		}
		if len(m.Center) != n || len(m.Mean) != n || len(m.Std) != n {
			return errors.New("anomaly parameter lengths do not match feature_cols")
		}
		a.anomaly = &m
	default:
		return fmt.Errorf("unknown artifact mode %q", a.Mode)
	}
	return nil
}

// DefaultVersion names the model when no explicit version is configured.
func (a *Artifact) DefaultVersion() string {
	return string(a.Mode) + "_v1"
}

// AttackTypeSet returns the artifact's attack codes, falling back to the
// built-in defaults when the artifact carries none.
func (a *Artifact) AttackTypeSet() map[int]struct{} {
	if set := model.TypeSet(a.AttackEventTypes); set != nil {
		return set
	}
	return model.DefaultAttackTypes()
}

// SuspiciousTypeSet is the suspicious counterpart of AttackTypeSet.
func (a *Artifact) SuspiciousTypeSet() map[int]struct{} {
	if set := model.TypeSet(a.SuspiciousEventTypes); set != nil {
		return set
	}
	return model.DefaultSuspiciousTypes()
}

// Cache keeps the last loaded artifact and reloads it only when the file's
// modification time changes.
type Cache struct {
	path     string
	modTime  time.Time
	artifact *Artifact
}

func NewCache(path string) *Cache {
	return &Cache{path: path}
}

func (c *Cache) Path() string {
	return c.path
}

// RefreshIfChanged returns the cached artifact, reloading it when the file
// changed on disk. A missing or unreadable artifact clears the cache and
// reports ErrArtifactUnavailable so the caller can idle until the next cycle.
func (c *Cache) RefreshIfChanged() (*Artifact, error) {
	info, err := os.Stat(c.path)
	if err != nil {
		c.artifact = nil
		c.modTime = time.Time{}
		return nil, fmt.Errorf("%w: %s", ErrArtifactUnavailable, c.path)
	}
	if c.artifact != nil && info.ModTime().Equal(c.modTime) {
		return c.artifact, nil
	}
	art, err := LoadArtifact(c.path)
	if err != nil {
		c.artifact = nil
		c.modTime = time.Time{}
		return nil, err
	}
	c.artifact = art
	c.modTime = info.ModTime()
	return art, nil
}
