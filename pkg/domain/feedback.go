package domain

import (
	"fmt"
	"time"
)

// Disposition tags how a human judged a prediction.
type Disposition string

const (
	// the prediction was right as-is.
	Agree Disposition = "agree"

	// the prediction was wrong; a corrected value is attached.
	CorrectWithValue Disposition = "correct-with-value"

	// the human could not tell. No corrected value.
	Uncertain Disposition = "uncertain"
)

func (d Disposition) String() string {
	return string(d)
}

func AsDisposition(s string) (Disposition, error) {
	switch s {
	case string(Agree):
		return Agree, nil
	case string(CorrectWithValue):
		return CorrectWithValue, nil
	case string(Uncertain):
		return Uncertain, nil
	default:
		return "", fmt.Errorf("'%s' is not Disposition", s)
	}
}

// PredictionKind is the enumerated tag of what a prediction was about.
type PredictionKind string

const (
	AnomalyScore   PredictionKind = "anomaly-score"
	PriorityScore  PredictionKind = "priority-score"
	NeedsAttention PredictionKind = "needs-attention"
)

func (pk PredictionKind) String() string {
	return string(pk)
}

func AsPredictionKind(s string) (PredictionKind, error) {
	switch s {
	case string(AnomalyScore):
		return AnomalyScore, nil
	case string(PriorityScore):
		return PriorityScore, nil
	case string(NeedsAttention):
		return NeedsAttention, nil
	default:
		return "", fmt.Errorf("'%s' is not PredictionKind", s)
	}
}

// FeedbackRecord is a single human correction of a prediction.
//
// Once consumed into a training dataset whose model version was evaluated,
// the record is immutable except for the Consumed flag.
type FeedbackRecord struct {
	Id      string
	Subject string
	Kind    PredictionKind

	// the value the model predicted.
	Predicted float64

	// the corrected value. Non-nil iff Disposition is CorrectWithValue.
	Actual *float64

	Disposition Disposition
	Note        string
	CreatedAt   time.Time
	Consumed    bool
}

func (f *FeedbackRecord) Equal(o *FeedbackRecord) bool {
	if (f == nil) || (o == nil) {
		return (f == nil) && (o == nil)
	}
	return f.Id == o.Id &&
		f.Subject == o.Subject &&
		f.Kind == o.Kind &&
		f.Predicted == o.Predicted &&
		((f.Actual == nil && o.Actual == nil) ||
			(f.Actual != nil && o.Actual != nil && *f.Actual == *o.Actual)) &&
		f.Disposition == o.Disposition &&
		f.Note == o.Note &&
		f.CreatedAt.Equal(o.CreatedAt) &&
		f.Consumed == o.Consumed
}

// FeedbackSpec is what the feedback-collection boundary hands in to register
// a new record.
type FeedbackSpec struct {
	Subject     string
	Kind        PredictionKind
	Predicted   float64
	Actual      *float64
	Disposition Disposition
	Note        string
}

// Validate checks the Disposition/Actual pairing invariant.
func (s FeedbackSpec) Validate() error {
	if s.Subject == "" {
		return fmt.Errorf("feedback without subject")
	}
	if (s.Disposition == CorrectWithValue) != (s.Actual != nil) {
		return fmt.Errorf(
			"disposition %s does not fit corrected value (given: %v)",
			s.Disposition, s.Actual != nil,
		)
	}
	return nil
}
