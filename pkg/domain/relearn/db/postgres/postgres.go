package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"
	kpool "github.com/opsforge/relearn/pkg/conn/db/postgres/pool"
	kfb "github.com/opsforge/relearn/pkg/domain/feedback/db"
	kpgfb "github.com/opsforge/relearn/pkg/domain/feedback/db/postgres"
	dbInterface "github.com/opsforge/relearn/pkg/domain/relearn/db"
	kreg "github.com/opsforge/relearn/pkg/domain/registry/db"
	kpgreg "github.com/opsforge/relearn/pkg/domain/registry/db/postgres"
	"github.com/opsforge/relearn/pkg/domain/schema"
	ksnap "github.com/opsforge/relearn/pkg/domain/snapshot/db"
	kpgsnap "github.com/opsforge/relearn/pkg/domain/snapshot/db/postgres"
	ktrig "github.com/opsforge/relearn/pkg/domain/trigger/db"
	kpgtrig "github.com/opsforge/relearn/pkg/domain/trigger/db/postgres"
	"github.com/opsforge/relearn/pkg/xerrors"
)

type relearnDBPostgres struct {
	pool     *pgxpool.Pool
	feedback kfb.Interface
	registry kreg.Interface
	trigger  ktrig.Interface
	snapshot ksnap.Interface
}

type Config struct {
	AccuracyWindow int
	SkipSchema     bool
}

type Option func(*Config) *Config

// WithAccuracyWindow sets the rolling-accuracy sample window.
func WithAccuracyWindow(n int) Option {
	return func(c *Config) *Config {
		c.AccuracyWindow = n
		return c
	}
}

// WithoutSchemaUpgrade skips applying the DDL at connect time.
func WithoutSchemaUpgrade() Option {
	return func(c *Config) *Config {
		c.SkipSchema = true
		return c
	}
}

func New(ctx context.Context, url string, options ...Option) (dbInterface.Database, error) {
	c := &Config{}
	for _, option := range options {
		c = option(c)
	}

	pool, err := pgxpool.Connect(ctx, url)
	if err != nil {
		return nil, xerrors.Wrap(err)
	}

	p := kpool.Wrap(pool)
	if !c.SkipSchema {
		if err := schema.Upgrade(ctx, p); err != nil {
			pool.Close()
			return nil, xerrors.Wrap(err)
		}
	}

	trigOpts := []kpgtrig.Option{}
	if 0 < c.AccuracyWindow {
		trigOpts = append(trigOpts, kpgtrig.WithAccuracyWindow(c.AccuracyWindow))
	}

	return &relearnDBPostgres{
		pool:     pool,
		feedback: kpgfb.New(p),
		registry: kpgreg.New(p),
		trigger:  kpgtrig.New(p, trigOpts...),
		snapshot: kpgsnap.New(p),
	}, nil
}

func (d *relearnDBPostgres) Feedback() kfb.Interface {
	return d.feedback
}

func (d *relearnDBPostgres) Registry() kreg.Interface {
	return d.registry
}

func (d *relearnDBPostgres) Trigger() ktrig.Interface {
	return d.trigger
}

func (d *relearnDBPostgres) Snapshot() ksnap.Interface {
	return d.snapshot
}

func (d *relearnDBPostgres) Close() error {
	d.pool.Close()
	return nil
}
