package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	kpool "github.com/opsforge/relearn/pkg/conn/db/postgres/pool"
	"github.com/opsforge/relearn/pkg/domain"
	ktrig "github.com/opsforge/relearn/pkg/domain/trigger/db"
	"github.com/opsforge/relearn/pkg/xerrors"
)

// name of the single run-lock row. The lock is keyed by the whole pipeline.
const lockName = "pipeline"

const defaultAccuracyWindow = 50

type pgTrigger struct {
	pool           kpool.Pool
	accuracyWindow int
}

type Option func(*pgTrigger) *pgTrigger

// WithAccuracyWindow sets how many recent feedback records back the rolling
// accuracy estimate.
func WithAccuracyWindow(n int) Option {
	return func(t *pgTrigger) *pgTrigger {
		t.accuracyWindow = n
		return t
	}
}

func New(pool kpool.Pool, options ...Option) ktrig.Interface {
	t := &pgTrigger{pool: pool, accuracyWindow: defaultAccuracyWindow}
	for _, opt := range options {
		t = opt(t)
	}
	return t
}

func (t *pgTrigger) Get(ctx context.Context) (domain.TriggerState, error) {
	state := domain.TriggerState{LastRun: map[string]time.Time{}}

	// only successful runs suppress the scheduled window; a failed attempt
	// overwrites the row and the family drops out of LastRun
	rows, err := t.pool.Query(
		ctx, `select "family", "last_run" from "trigger_state" where "ok"`,
	)
	if err != nil {
		return state, xerrors.Wrap(err)
	}
	defer rows.Close()
	for rows.Next() {
		var family string
		var lastRun time.Time
		if err := rows.Scan(&family, &lastRun); err != nil {
			return state, xerrors.Wrap(err)
		}
		state.LastRun[family] = lastRun
	}
	if err := rows.Err(); err != nil {
		return state, xerrors.Wrap(err)
	}

	if err := t.pool.QueryRow(
		ctx, `select count(*) from "feedback" where not "consumed"`,
	).Scan(&state.Backlog); err != nil {
		return state, xerrors.Wrap(err)
	}

	// rolling accuracy = fraction of "agree" among the newest feedback
	var agree, total int
	if err := t.pool.QueryRow(
		ctx,
		`
		with "recent" as (
			select "disposition" from "feedback"
			order by "created_at" desc, "id" desc
			limit $1
		)
		select
			count(*) filter (where "disposition" = 'agree'),
			count(*)
		from "recent"
		`,
		t.accuracyWindow,
	).Scan(&agree, &total); err != nil {
		return state, xerrors.Wrap(err)
	}
	state.SampleCount = total
	if 0 < total {
		state.RollingAccuracy = float64(agree) / float64(total)
	}

	return state, nil
}

func (t *pgTrigger) NoteRun(ctx context.Context, family string, at time.Time, ok bool) error {
	_, err := t.pool.Exec(
		ctx,
		`
		insert into "trigger_state" ("family", "last_run", "ok")
		values ($1, $2, $3)
		on conflict ("family") do update
		set "last_run" = excluded."last_run", "ok" = excluded."ok"
		`,
		family, at, ok,
	)
	if err != nil {
		return xerrors.Wrap(err)
	}
	return nil
}

func (t *pgTrigger) RequestManual(ctx context.Context, family *string, dryRun bool) (domain.ManualRequest, error) {
	req := domain.ManualRequest{
		Id:          uuid.NewString(),
		Family:      family,
		DryRun:      dryRun,
		RequestedAt: time.Now().UTC(),
	}
	_, err := t.pool.Exec(
		ctx,
		`
		insert into "manual_request" ("id", "family", "dry_run", "requested_at")
		values ($1, $2, $3, $4)
		`,
		req.Id, req.Family, req.DryRun, req.RequestedAt,
	)
	if err != nil {
		return domain.ManualRequest{}, xerrors.Wrap(err)
	}
	return req, nil
}

func (t *pgTrigger) TakeManualRequest(ctx context.Context) (*domain.ManualRequest, error) {
	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return nil, xerrors.Wrap(err)
	}
	defer tx.Rollback(ctx)

	req := domain.ManualRequest{}
	err = tx.QueryRow(
		ctx,
		`
		with "req" as (
			select "id" from "manual_request"
			order by "requested_at" limit 1
			for update skip locked
		),
		"del" as (
			delete from "manual_request"
			where "id" in (select "id" from "req")
			returning "id", "family", "dry_run", "requested_at"
		)
		select "id", "family", "dry_run", "requested_at" from "del"
		`,
	).Scan(&req.Id, &req.Family, &req.DryRun, &req.RequestedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, tx.Commit(ctx)
	} else if err != nil {
		return nil, xerrors.Wrap(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, xerrors.Wrap(err)
	}
	return &req, nil
}

func (t *pgTrigger) AcquireLock(ctx context.Context, holder string) (bool, error) {
	tag, err := t.pool.Exec(
		ctx,
		`
		update "run_lock"
		set "holder" = $1, "acquired_at" = $2
		where "name" = $3 and "holder" is null
		`,
		holder, time.Now().UTC(), lockName,
	)
	if err != nil {
		return false, xerrors.Wrap(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (t *pgTrigger) ReleaseLock(ctx context.Context, holder string) error {
	_, err := t.pool.Exec(
		ctx,
		`
		update "run_lock"
		set "holder" = null, "acquired_at" = null
		where "name" = $1 and "holder" = $2
		`,
		lockName, holder,
	)
	if err != nil {
		return xerrors.Wrap(err)
	}
	return nil
}
