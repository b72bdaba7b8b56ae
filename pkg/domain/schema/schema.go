// Package schema holds the database DDL and applies it in order.
package schema

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v4"
	kpool "github.com/opsforge/relearn/pkg/conn/db/postgres/pool"
	"github.com/opsforge/relearn/pkg/xerrors"
)

//go:embed ddl/*.sql
var ddl embed.FS

// Upgrade applies every DDL file newer than the recorded schema version.
//
// Files under ddl/ are named NNNN_name.sql and applied in lexical order,
// each in its own transaction together with the version bump.
func Upgrade(ctx context.Context, pool kpool.Pool) error {
	if _, err := pool.Exec(
		ctx,
		`create table if not exists "schema_version" ("version" int not null)`,
	); err != nil {
		return xerrors.Wrap(err)
	}

	current, err := currentVersion(ctx, pool)
	if err != nil {
		return err
	}

	entries, err := ddl.ReadDir("ddl")
	if err != nil {
		return xerrors.Wrap(err)
	}
	names := []string{}
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for nth, name := range names {
		version := nth + 1
		if version <= current {
			continue
		}

		sql, err := ddl.ReadFile("ddl/" + name)
		if err != nil {
			return xerrors.Wrap(err)
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return xerrors.Wrap(err)
		}
		if err := func() error {
			if _, err := tx.Exec(ctx, string(sql)); err != nil {
				return fmt.Errorf("applying %s: %w", name, err)
			}
			if _, err := tx.Exec(ctx, `delete from "schema_version"`); err != nil {
				return err
			}
			if _, err := tx.Exec(
				ctx, `insert into "schema_version" ("version") values ($1)`, version,
			); err != nil {
				return err
			}
			return tx.Commit(ctx)
		}(); err != nil {
			tx.Rollback(ctx)
			return xerrors.Wrap(err)
		}
	}

	return nil
}

func currentVersion(ctx context.Context, pool kpool.Pool) (int, error) {
	var version int
	err := pool.QueryRow(ctx, `select "version" from "schema_version"`).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	} else if err != nil {
		return 0, xerrors.Wrap(err)
	}
	return version, nil
}
