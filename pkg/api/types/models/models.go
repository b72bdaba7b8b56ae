package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/opsforge/relearn/pkg/domain"
	"github.com/opsforge/relearn/pkg/utils/rfctime"
)

// MetricValue survives JSON round-trips for NaN and infinities, which
// plain float64 does not. Degenerate candidates are part of the history,
// so the API has to carry them.
type MetricValue float64

func (mv MetricValue) MarshalJSON() ([]byte, error) {
	f := float64(mv)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return json.Marshal(fmt.Sprintf("%f", f))
	}
	return json.Marshal(f)
}

func (mv *MetricValue) UnmarshalJSON(b []byte) error {
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*mv = MetricValue(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("metric value %q is not a number", s)
	}
	*mv = MetricValue(f)
	return nil
}

type Detail struct {
	Family      string                 `json:"family"`
	Kind        string                 `json:"kind"`
	Number      int                    `json:"number"`
	ArtifactRef string                 `json:"artifactRef"`
	Metrics     map[string]MetricValue `json:"metrics"`
	DatasetRef  string                 `json:"datasetRef"`
	Status      string                 `json:"status"`
	CreatedAt   rfctime.RFC3339        `json:"createdAt"`
	RetiredAt   *rfctime.RFC3339       `json:"retiredAt,omitempty"`
}

func ComposeDetail(v domain.ModelVersion) Detail {
	metrics := make(map[string]MetricValue, len(v.Metrics))
	for name, value := range v.Metrics {
		metrics[name] = MetricValue(value)
	}

	detail := Detail{
		Family:      v.Family.Name,
		Kind:        v.Family.Kind.String(),
		Number:      v.Number,
		ArtifactRef: v.ArtifactRef,
		Metrics:     metrics,
		DatasetRef:  v.DatasetRef,
		Status:      v.Status.String(),
		CreatedAt:   rfctime.RFC3339(v.CreatedAt),
	}
	if !v.RetiredAt.IsZero() {
		at := rfctime.RFC3339(v.RetiredAt)
		detail.RetiredAt = &at
	}
	return detail
}
