package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/opsforge/relearn/cmd/loops/recurring"
	"github.com/opsforge/relearn/cmd/loops/tasks/retraining"
	configs "github.com/opsforge/relearn/pkg/configs/relearn"
	"github.com/opsforge/relearn/pkg/domain"
	dbInterface "github.com/opsforge/relearn/pkg/domain/relearn/db"
	"github.com/opsforge/relearn/pkg/domain/relearn/db/inmemory"
	"github.com/opsforge/relearn/pkg/domain/relearn/db/postgres"
	"github.com/opsforge/relearn/pkg/loop"
	"github.com/opsforge/relearn/pkg/pipeline/audit"
	"github.com/opsforge/relearn/pkg/pipeline/orchestrator"
	"github.com/opsforge/relearn/pkg/pipeline/trainer"
	"github.com/opsforge/relearn/pkg/pipeline/trainer/leastsquares"
	"github.com/opsforge/relearn/pkg/pipeline/trainer/logistic"
	"github.com/opsforge/relearn/pkg/pipeline/trigger"
	"github.com/opsforge/relearn/pkg/pipeline/validator"
	"github.com/opsforge/relearn/pkg/utils/args"
	"github.com/opsforge/relearn/pkg/utils/filewatch"
	"github.com/opsforge/relearn/pkg/utils/try"
)

func main() {
	logger := log.Default()
	ctx, cancel := signal.NotifyContext(
		context.Background(), os.Interrupt, os.Kill, syscall.SIGTERM,
	)
	// call cancel() when this function exits
	defer cancel()

	// define command line flags
	//-- path to config file
	pconfig := flag.String(
		"config", os.Getenv("RELEARN_CONFIG"), "path to config file",
	)
	//-- loop policy
	policy := args.Default[recurring.Policy](recurring.Forever(0), recurring.ParsePolicy)
	flag.Var(
		policy, "policy",
		`loop policy (syntax: forever[:COOLDOWN]|backlog).`+
			` "forever[:COOLDOWN]" = run forever until error. When backlog is over, `+
			`wait COOLDOWN (optional duration. default: 0) as inteval.`+
			` "backlog" = run until error or backlog is over.`,
	)
	// parse command line flags
	flag.Parse()

	if *pconfig == "" {
		logger.Fatal("--config (or RELEARN_CONFIG) is required")
	}

	{
		// config file modification quits the process to restart with the new one
		wctx, cancel, err := filewatch.UntilModifyContext(ctx, *pconfig)
		if err != nil {
			logger.Fatal(err)
		}
		defer cancel()
		ctx = wctx
	}

	conf := try.To(configs.LoadServerConfig(*pconfig)).OrFatal(logger)

	db := try.To(newDatabase(ctx, conf)).OrFatal(logger)
	defer db.Close()

	artifacts := try.To(newArtifacts(conf)).OrFatal(logger)

	training := conf.Training()
	trainers := trainer.Registry{
		domain.Continuous: leastsquares.New(artifacts, leastsquares.Config{
			Lambda: leastsquares.DefaultConfig().Lambda,
			Seed:   training.Seed(),
		}),
		domain.Binary: logistic.New(artifacts, logistic.Config{
			LearningRate: logistic.DefaultConfig().LearningRate,
			Epochs:       logistic.DefaultConfig().Epochs,
			Seed:         training.Seed(),
		}),
	}

	o := orchestrator.New(
		db, conf.Families(), trainers,
		orchestrator.WithValidator(validator.New(
			validator.WithMinImprovement(training.MinImprovement()),
		)),
		orchestrator.WithEmitter(audit.Tee(
			audit.NewLogEmitter(logger),
			audit.NewMetricsEmitter(prometheus.DefaultRegisterer),
		)),
		orchestrator.WithParallelTraining(training.Parallel()),
		orchestrator.WithFeedbackLimit(training.FeedbackLimit()),
	)

	ev := trigger.New(db.Trigger(), conditions(conf.Trigger())...)

	logger.Printf(`start retraining loop /w policy "%s"`, policy.Value().String())

	task := retraining.Task(ev, o, logger)
	tally, err := loop.Start(
		ctx, retraining.Seed(),
		task.Applied(recurring.UntilError(policy.Value())),
	)

	logger.Printf("retraining loop stopped after %d run(s)", len(tally.Runs))
	if err == nil {
		return
	} else if errors.Is(err, context.Canceled) {
		logger.Fatal(err, "(loop context is cancelled by:", context.Cause(ctx), ")")
	}
	logger.Fatal(err)
}

// conditions builds the automatic trigger rules the config enables.
// A zeroed section leaves its rule out; with nothing enabled only manual
// requests fire the loop.
func conditions(tconf *configs.TriggerConfig) []trigger.Condition {
	found := []trigger.Condition{}
	if 0 < tconf.ScheduleWindow() {
		found = append(found, trigger.Scheduled{
			Weekday: tconf.ScheduleWeekday(),
			Hour:    tconf.ScheduleHour(),
			Window:  tconf.ScheduleWindow(),
		})
	}
	if 0 < tconf.BacklogMin() {
		found = append(found, trigger.BacklogThreshold{Min: tconf.BacklogMin()})
	}
	if 0 < tconf.AccuracyMin() {
		found = append(found, trigger.AccuracyFloor{
			Min:        tconf.AccuracyMin(),
			MinSamples: tconf.AccuracySamples(),
		})
	}
	return found
}

func newDatabase(ctx context.Context, conf *configs.ServerConfig) (dbInterface.Database, error) {
	if conf.Database() == "" {
		log.Println("no database is configured. running standalone on in-memory stores.")
		return inmemory.New(), nil
	}
	return postgres.New(ctx, conf.Database())
}

func newArtifacts(conf *configs.ServerConfig) (trainer.ArtifactStore, error) {
	if conf.Artifacts() == "" {
		return trainer.NewMemArtifacts(), nil
	}
	return trainer.NewFSArtifacts(conf.Artifacts())
}
