package domain

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"

	"github.com/opsforge/relearn/pkg/utils/cmp"
)

// CurrentSchemaVersion is the feature schema version this build understands.
const CurrentSchemaVersion = 1

// Row is one feature/label example keyed by (Subject, Kind).
type Row struct {
	Subject  string
	Kind     PredictionKind
	Features []float64
	Label    float64
}

func (r Row) Equal(o Row) bool {
	return r.Subject == o.Subject &&
		r.Kind == o.Kind &&
		cmp.SliceEq(r.Features, o.Features) &&
		r.Label == o.Label
}

// Snapshot is the resolved base data for one retraining attempt.
type Snapshot struct {
	Ref  string
	Rows []Row
}

// TrainingDataset is the feature/label matrix for one retraining attempt.
//
// It is deterministic given (SnapshotRef, FeedbackIds): rebuilding from the
// same inputs yields bit-identical rows. Digest() is the reproducibility
// check for that.
type TrainingDataset struct {
	SnapshotRef string

	// lineage: ids of all feedback folded in, in apply order.
	FeedbackIds []string

	Rows          []Row
	SchemaVersion int
}

func (d *TrainingDataset) Equal(o *TrainingDataset) bool {
	if (d == nil) || (o == nil) {
		return (d == nil) && (o == nil)
	}
	return d.SnapshotRef == o.SnapshotRef &&
		cmp.SliceEq(d.FeedbackIds, o.FeedbackIds) &&
		cmp.SliceEqWith(d.Rows, o.Rows, Row.Equal) &&
		d.SchemaVersion == o.SchemaVersion
}

// Digest returns a hex sha256 over a canonical binary encoding of the rows.
//
// Two datasets built from identical inputs share a digest; anything else is
// a reproducibility violation.
func (d *TrainingDataset) Digest() string {
	h := sha256.New()

	var scratch [8]byte
	writeF64 := func(v float64) {
		binary.BigEndian.PutUint64(scratch[:], math.Float64bits(v))
		h.Write(scratch[:])
	}
	writeStr := func(s string) {
		binary.BigEndian.PutUint64(scratch[:], uint64(len(s)))
		h.Write(scratch[:])
		h.Write([]byte(s))
	}

	writeStr(d.SnapshotRef)
	binary.BigEndian.PutUint64(scratch[:], uint64(d.SchemaVersion))
	h.Write(scratch[:])
	for _, row := range d.Rows {
		writeStr(row.Subject)
		writeStr(string(row.Kind))
		binary.BigEndian.PutUint64(scratch[:], uint64(len(row.Features)))
		h.Write(scratch[:])
		for _, f := range row.Features {
			writeF64(f)
		}
		writeF64(row.Label)
	}

	return hex.EncodeToString(h.Sum(nil))
}
