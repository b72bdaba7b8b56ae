package feedback

import (
	"github.com/opsforge/relearn/pkg/domain"
	"github.com/opsforge/relearn/pkg/utils/rfctime"
)

// Spec is the request body registering a new feedback record.
type Spec struct {
	Subject     string   `json:"subject"`
	Kind        string   `json:"kind"`
	Predicted   float64  `json:"predicted"`
	Actual      *float64 `json:"actual,omitempty"`
	Disposition string   `json:"disposition"`
	Note        string   `json:"note,omitempty"`
}

func (s Spec) ToDomain() (domain.FeedbackSpec, error) {
	kind, err := domain.AsPredictionKind(s.Kind)
	if err != nil {
		return domain.FeedbackSpec{}, err
	}
	disposition, err := domain.AsDisposition(s.Disposition)
	if err != nil {
		return domain.FeedbackSpec{}, err
	}
	return domain.FeedbackSpec{
		Subject:     s.Subject,
		Kind:        kind,
		Predicted:   s.Predicted,
		Actual:      s.Actual,
		Disposition: disposition,
		Note:        s.Note,
	}, nil
}

type Detail struct {
	Id          string          `json:"id"`
	Subject     string          `json:"subject"`
	Kind        string          `json:"kind"`
	Predicted   float64         `json:"predicted"`
	Actual      *float64        `json:"actual,omitempty"`
	Disposition string          `json:"disposition"`
	Note        string          `json:"note,omitempty"`
	CreatedAt   rfctime.RFC3339 `json:"createdAt"`
	Consumed    bool            `json:"consumed"`
}

func ComposeDetail(r domain.FeedbackRecord) Detail {
	return Detail{
		Id:          r.Id,
		Subject:     r.Subject,
		Kind:        r.Kind.String(),
		Predicted:   r.Predicted,
		Actual:      r.Actual,
		Disposition: r.Disposition.String(),
		Note:        r.Note,
		CreatedAt:   rfctime.RFC3339(r.CreatedAt),
		Consumed:    r.Consumed,
	}
}
