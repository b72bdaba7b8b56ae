package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v4"
	kpool "github.com/opsforge/relearn/pkg/conn/db/postgres/pool"
	"github.com/opsforge/relearn/pkg/domain"
	kreg "github.com/opsforge/relearn/pkg/domain/registry/db"
	"github.com/opsforge/relearn/pkg/xerrors"
)

type pgRegistry struct {
	pool kpool.Pool
}

func New(pool kpool.Pool) kreg.Interface {
	return &pgRegistry{pool: pool}
}

// metrics can hold NaN/Inf (degenerate candidates are recorded, too),
// which plain JSON cannot express. Encode such values as strings.
func encodeMetrics(m map[string]float64) ([]byte, error) {
	enc := make(map[string]any, len(m))
	for k, v := range m {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			enc[k] = fmt.Sprintf("%f", v)
		} else {
			enc[k] = v
		}
	}
	return json.Marshal(enc)
}

func decodeMetrics(b []byte) (map[string]float64, error) {
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, err
	}
	m := make(map[string]float64, len(raw))
	for k, v := range raw {
		switch t := v.(type) {
		case float64:
			m[k] = t
		case string:
			var f float64
			if _, err := fmt.Sscanf(t, "%f", &f); err != nil {
				return nil, fmt.Errorf("metric %s holds unreadable value %q", k, t)
			}
			m[k] = f
		default:
			return nil, fmt.Errorf("metric %s holds unreadable value %v", k, v)
		}
	}
	return m, nil
}

func (r *pgRegistry) Record(ctx context.Context, version domain.ModelVersion) (domain.ModelVersion, error) {
	metrics, err := encodeMetrics(version.Metrics)
	if err != nil {
		return domain.ModelVersion{}, xerrors.Wrap(err)
	}

	// On concurrent Record of the same family, one insert loses with a
	// unique violation on (family, number). Retry to take the next number.
	for {
		recorded, err := r.record(ctx, version, metrics)
		if err == nil {
			return recorded, nil
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			continue
		}
		return domain.ModelVersion{}, err
	}
}

func (r *pgRegistry) record(ctx context.Context, version domain.ModelVersion, metrics []byte) (domain.ModelVersion, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.ModelVersion{}, xerrors.Wrap(err)
	}
	defer tx.Rollback(ctx)

	var number int
	if err := tx.QueryRow(
		ctx,
		`select coalesce(max("number"), 0) + 1 from "model_version" where "family" = $1`,
		version.Family.Name,
	).Scan(&number); err != nil {
		return domain.ModelVersion{}, xerrors.Wrap(err)
	}

	recorded := version
	recorded.Number = number
	recorded.CreatedAt = time.Now().UTC()

	if _, err := tx.Exec(
		ctx,
		`
		insert into "model_version"
			("family", "number", "kind", "artifact_ref", "metrics", "dataset_ref", "created_at", "status")
		values
			($1, $2, $3, $4, $5, $6, $7, $8)
		`,
		recorded.Family.Name, recorded.Number, string(recorded.Family.Kind),
		recorded.ArtifactRef, metrics, recorded.DatasetRef,
		recorded.CreatedAt, string(recorded.Status),
	); err != nil {
		return domain.ModelVersion{}, xerrors.Wrap(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.ModelVersion{}, xerrors.Wrap(err)
	}
	return recorded, nil
}

func (r *pgRegistry) Promote(ctx context.Context, family string, number int) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return xerrors.Wrap(err)
	}
	defer tx.Rollback(ctx)

	// lock the family's rows so concurrent promotes serialize here.
	var status string
	err = tx.QueryRow(
		ctx,
		`select "status" from "model_version" where "family" = $1 and "number" = $2 for update`,
		family, number,
	).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return xerrors.Wrap(fmt.Errorf("%w: model version %s/%d", domain.ErrMissing, family, number))
	} else if err != nil {
		return xerrors.Wrap(err)
	}

	current, err := domain.AsVersionStatus(status)
	if err != nil {
		return xerrors.Wrap(err)
	}
	if current == domain.Deployed {
		// concurrent promotion already won. no-op by contract.
		return tx.Commit(ctx)
	}
	if !current.CanTransition(domain.Deployed) {
		return xerrors.Wrap(domain.NewErrInvalidStatusChanging(current, domain.Deployed))
	}

	if _, err := tx.Exec(
		ctx,
		`
		update "model_version"
		set "status" = 'retired', "retired_at" = $2
		where "family" = $1 and "status" = 'deployed'
		`,
		family, time.Now().UTC(),
	); err != nil {
		return xerrors.Wrap(err)
	}

	if _, err := tx.Exec(
		ctx,
		`
		update "model_version"
		set "status" = 'deployed', "retired_at" = null
		where "family" = $1 and "number" = $2
		`,
		family, number,
	); err != nil {
		return xerrors.Wrap(err)
	}

	return tx.Commit(ctx)
}

func (r *pgRegistry) Rollback(ctx context.Context, family string) (domain.ModelVersion, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.ModelVersion{}, xerrors.Wrap(err)
	}
	defer tx.Rollback(ctx)

	var target int
	err = tx.QueryRow(
		ctx,
		`
		select "number" from "model_version"
		where "family" = $1 and "status" = 'retired'
		order by "retired_at" desc nulls last, "number" desc
		limit 1
		for update
		`,
		family,
	).Scan(&target)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ModelVersion{}, xerrors.Wrap(
			fmt.Errorf("%w: family %s", domain.ErrNoRollbackTarget, family),
		)
	} else if err != nil {
		return domain.ModelVersion{}, xerrors.Wrap(err)
	}

	if _, err := tx.Exec(
		ctx,
		`
		update "model_version"
		set "status" = 'retired', "retired_at" = $2
		where "family" = $1 and "status" = 'deployed'
		`,
		family, time.Now().UTC(),
	); err != nil {
		return domain.ModelVersion{}, xerrors.Wrap(err)
	}

	if _, err := tx.Exec(
		ctx,
		`
		update "model_version"
		set "status" = 'deployed', "retired_at" = null
		where "family" = $1 and "number" = $2
		`,
		family, target,
	); err != nil {
		return domain.ModelVersion{}, xerrors.Wrap(err)
	}

	restored, err := getOne(ctx, tx, family, target)
	if err != nil {
		return domain.ModelVersion{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.ModelVersion{}, xerrors.Wrap(err)
	}
	return restored, nil
}

func (r *pgRegistry) SetStatus(ctx context.Context, family string, number int, status domain.VersionStatus) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return xerrors.Wrap(err)
	}
	defer tx.Rollback(ctx)

	var current string
	err = tx.QueryRow(
		ctx,
		`select "status" from "model_version" where "family" = $1 and "number" = $2 for update`,
		family, number,
	).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return xerrors.Wrap(fmt.Errorf("%w: model version %s/%d", domain.ErrMissing, family, number))
	} else if err != nil {
		return xerrors.Wrap(err)
	}

	from, err := domain.AsVersionStatus(current)
	if err != nil {
		return xerrors.Wrap(err)
	}
	if !from.CanTransition(status) {
		return xerrors.Wrap(domain.NewErrInvalidStatusChanging(from, status))
	}

	if _, err := tx.Exec(
		ctx,
		`update "model_version" set "status" = $3 where "family" = $1 and "number" = $2`,
		family, number, string(status),
	); err != nil {
		return xerrors.Wrap(err)
	}

	return tx.Commit(ctx)
}

func (r *pgRegistry) GetActive(ctx context.Context, family string) (*domain.ModelVersion, error) {
	found, err := find(
		ctx, r.pool,
		`where "family" = $1 and "status" = 'deployed'`, family,
	)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, nil
	}
	return &found[0], nil
}

func (r *pgRegistry) History(ctx context.Context, family string) ([]domain.ModelVersion, error) {
	return find(ctx, r.pool, `where "family" = $1 order by "number"`, family)
}

func getOne(ctx context.Context, conn kpool.Queryer, family string, number int) (domain.ModelVersion, error) {
	found, err := find(
		ctx, conn,
		`where "family" = $1 and "number" = $2`, family, number,
	)
	if err != nil {
		return domain.ModelVersion{}, err
	}
	if len(found) == 0 {
		return domain.ModelVersion{}, xerrors.Wrap(
			fmt.Errorf("%w: model version %s/%d", domain.ErrMissing, family, number),
		)
	}
	return found[0], nil
}

func find(ctx context.Context, conn kpool.Queryer, clause string, args ...interface{}) ([]domain.ModelVersion, error) {
	rows, err := conn.Query(
		ctx,
		`
		select "family", "number", "kind", "artifact_ref", "metrics", "dataset_ref", "created_at", "status", "retired_at"
		from "model_version"
		`+clause,
		args...,
	)
	if err != nil {
		return nil, xerrors.Wrap(err)
	}
	defer rows.Close()

	result := []domain.ModelVersion{}
	for rows.Next() {
		var mv domain.ModelVersion
		var kind, status string
		var metrics []byte
		var retiredAt *time.Time
		if err := rows.Scan(
			&mv.Family.Name, &mv.Number, &kind, &mv.ArtifactRef, &metrics,
			&mv.DatasetRef, &mv.CreatedAt, &status, &retiredAt,
		); err != nil {
			return nil, xerrors.Wrap(err)
		}
		if mv.Family.Kind, err = domain.AsFamilyKind(kind); err != nil {
			return nil, xerrors.Wrap(err)
		}
		if mv.Status, err = domain.AsVersionStatus(status); err != nil {
			return nil, xerrors.Wrap(err)
		}
		if mv.Metrics, err = decodeMetrics(metrics); err != nil {
			return nil, xerrors.Wrap(err)
		}
		if retiredAt != nil {
			mv.RetiredAt = *retiredAt
		}
		result = append(result, mv)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(err)
	}
	return result, nil
}
