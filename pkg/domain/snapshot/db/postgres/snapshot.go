package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"

	kpool "github.com/opsforge/relearn/pkg/conn/db/postgres/pool"
	"github.com/opsforge/relearn/pkg/domain"
	ksnap "github.com/opsforge/relearn/pkg/domain/snapshot/db"
	"github.com/opsforge/relearn/pkg/xerrors"
)

type pgSnapshot struct {
	pool kpool.Pool
}

func New(pool kpool.Pool) ksnap.Interface {
	return &pgSnapshot{pool: pool}
}

func (s *pgSnapshot) Resolve(ctx context.Context, ref string) (domain.Snapshot, error) {
	var exists bool
	if err := s.pool.QueryRow(
		ctx, `select exists(select 1 from "snapshot" where "ref" = $1)`, ref,
	).Scan(&exists); err != nil {
		return domain.Snapshot{}, xerrors.Wrap(err)
	}
	if !exists {
		return domain.Snapshot{}, xerrors.Wrap(
			fmt.Errorf("%w: %s", domain.ErrSnapshotUnavailable, ref),
		)
	}

	rows, err := s.pool.Query(
		ctx,
		`
		select "subject", "kind", "features", "label"
		from "snapshot_row"
		where "snapshot_ref" = $1
		order by "subject", "kind"
		`,
		ref,
	)
	if err != nil {
		return domain.Snapshot{}, xerrors.Wrap(err)
	}
	defer rows.Close()

	snapshot := domain.Snapshot{Ref: ref}
	for rows.Next() {
		var row domain.Row
		var kind string
		if err := rows.Scan(&row.Subject, &kind, &row.Features, &row.Label); err != nil {
			return domain.Snapshot{}, xerrors.Wrap(err)
		}
		if row.Kind, err = domain.AsPredictionKind(kind); err != nil {
			return domain.Snapshot{}, xerrors.Wrap(err)
		}
		snapshot.Rows = append(snapshot.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return domain.Snapshot{}, xerrors.Wrap(err)
	}
	return snapshot, nil
}

func (s *pgSnapshot) Latest(ctx context.Context) (string, error) {
	var ref string
	err := s.pool.QueryRow(
		ctx, `select "ref" from "snapshot" order by "created_at" desc, "ref" desc limit 1`,
	).Scan(&ref)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", xerrors.Wrap(
				fmt.Errorf("%w: no snapshot is registered", domain.ErrSnapshotUnavailable),
			)
		}
		return "", xerrors.Wrap(err)
	}
	return ref, nil
}
