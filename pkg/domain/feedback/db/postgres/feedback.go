package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	kpool "github.com/opsforge/relearn/pkg/conn/db/postgres/pool"
	"github.com/opsforge/relearn/pkg/domain"
	kfb "github.com/opsforge/relearn/pkg/domain/feedback/db"
	"github.com/opsforge/relearn/pkg/xerrors"
)

type pgFeedback struct {
	pool kpool.Pool
}

func New(pool kpool.Pool) kfb.Interface {
	return &pgFeedback{pool: pool}
}

func (f *pgFeedback) Register(ctx context.Context, spec domain.FeedbackSpec) (domain.FeedbackRecord, error) {
	if err := spec.Validate(); err != nil {
		return domain.FeedbackRecord{}, err
	}

	rec := domain.FeedbackRecord{
		Id:          uuid.NewString(),
		Subject:     spec.Subject,
		Kind:        spec.Kind,
		Predicted:   spec.Predicted,
		Actual:      spec.Actual,
		Disposition: spec.Disposition,
		Note:        spec.Note,
		CreatedAt:   time.Now().UTC(),
	}

	_, err := f.pool.Exec(
		ctx,
		`
		insert into "feedback"
			("id", "subject", "kind", "predicted", "actual", "disposition", "note", "created_at", "consumed")
		values
			($1, $2, $3, $4, $5, $6, $7, $8, false)
		`,
		rec.Id, rec.Subject, string(rec.Kind), rec.Predicted, rec.Actual,
		string(rec.Disposition), rec.Note, rec.CreatedAt,
	)
	if err != nil {
		return domain.FeedbackRecord{}, xerrors.Wrap(err)
	}
	return rec, nil
}

func (f *pgFeedback) ListUnconsumed(ctx context.Context, limit int) ([]domain.FeedbackRecord, error) {
	q := `
	select "id", "subject", "kind", "predicted", "actual", "disposition", "note", "created_at", "consumed"
	from "feedback"
	where not "consumed"
	order by "created_at", "id"
	`
	args := []interface{}{}
	if 0 < limit {
		q += ` limit $1`
		args = append(args, limit)
	}

	rows, err := f.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, xerrors.Wrap(err)
	}
	defer rows.Close()

	result := []domain.FeedbackRecord{}
	for rows.Next() {
		var rec domain.FeedbackRecord
		var kind, disposition string
		if err := rows.Scan(
			&rec.Id, &rec.Subject, &kind, &rec.Predicted, &rec.Actual,
			&disposition, &rec.Note, &rec.CreatedAt, &rec.Consumed,
		); err != nil {
			return nil, xerrors.Wrap(err)
		}
		if rec.Kind, err = domain.AsPredictionKind(kind); err != nil {
			return nil, xerrors.Wrap(err)
		}
		if rec.Disposition, err = domain.AsDisposition(disposition); err != nil {
			return nil, xerrors.Wrap(err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(err)
	}
	return result, nil
}

func (f *pgFeedback) MarkConsumed(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := f.pool.Begin(ctx)
	if err != nil {
		return xerrors.Wrap(err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(
		ctx,
		`update "feedback" set "consumed" = true where "id" = ANY($1)`,
		ids,
	)
	if err != nil {
		return xerrors.Wrap(err)
	}
	if int(tag.RowsAffected()) != len(ids) {
		return xerrors.Wrap(fmt.Errorf(
			"%w: %d of %d feedback records", domain.ErrMissing,
			len(ids)-int(tag.RowsAffected()), len(ids),
		))
	}

	return tx.Commit(ctx)
}

func (f *pgFeedback) RecentDispositions(ctx context.Context, n int) ([]domain.Disposition, error) {
	rows, err := f.pool.Query(
		ctx,
		`
		select "disposition" from "feedback"
		order by "created_at" desc, "id" desc
		limit $1
		`,
		n,
	)
	if err != nil {
		return nil, xerrors.Wrap(err)
	}
	defer rows.Close()

	result := []domain.Disposition{}
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, xerrors.Wrap(err)
		}
		disp, err := domain.AsDisposition(d)
		if err != nil {
			return nil, xerrors.Wrap(err)
		}
		result = append(result, disp)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(err)
	}
	return result, nil
}

func (f *pgFeedback) CountUnconsumed(ctx context.Context) (int, error) {
	var count int
	err := f.pool.QueryRow(
		ctx, `select count(*) from "feedback" where not "consumed"`,
	).Scan(&count)
	if err != nil {
		return 0, xerrors.Wrap(err)
	}
	return count, nil
}
