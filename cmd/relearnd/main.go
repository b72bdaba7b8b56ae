package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/opsforge/relearn/cmd/relearnd/handlers"
	configs "github.com/opsforge/relearn/pkg/configs/relearn"
	"github.com/opsforge/relearn/pkg/domain"
	dbInterface "github.com/opsforge/relearn/pkg/domain/relearn/db"
	"github.com/opsforge/relearn/pkg/domain/relearn/db/inmemory"
	"github.com/opsforge/relearn/pkg/domain/relearn/db/postgres"
	"github.com/opsforge/relearn/pkg/pipeline/audit"
	"github.com/opsforge/relearn/pkg/pipeline/orchestrator"
	"github.com/opsforge/relearn/pkg/pipeline/trainer"
	"github.com/opsforge/relearn/pkg/pipeline/trainer/leastsquares"
	"github.com/opsforge/relearn/pkg/pipeline/trainer/logistic"
	"github.com/opsforge/relearn/pkg/pipeline/validator"
	"github.com/opsforge/relearn/pkg/utils/echoutil"
	"github.com/opsforge/relearn/pkg/utils/filewatch"
)

func main() {
	configPath := flag.String("config", "", "server config path")
	loglevel := flag.String("loglevel", "info", "loglevel of the server. debug|info|warn|error|off")
	flag.Parse()

	if *configPath == "" {
		log.Fatal("--config is required")
	}
	conf, err := configs.LoadServerConfig(*configPath)
	if err != nil {
		log.Fatalf("can not read configuration: %s", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// config file modification quits the process to restart with the new one
	ctx, cancelWatch, err := filewatch.UntilModifyContext(ctx, *configPath)
	if err != nil {
		log.Fatalf("can not watch configuration: %s", err)
	}
	defer cancelWatch()

	db, err := newDatabase(ctx, conf)
	if err != nil {
		log.Fatalf("can not reach database: %s", err)
	}
	defer db.Close()

	artifacts, err := newArtifacts(conf)
	if err != nil {
		log.Fatalf("can not open artifact store: %s", err)
	}

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

	emitter := audit.Tee(
		audit.NewLogEmitter(log.Default()),
		audit.NewMetricsEmitter(prometheus.DefaultRegisterer),
	)

	o := orchestrator.New(
		db, conf.Families(), trainers,
		orchestrator.WithValidator(validator.New(
			validator.WithMinImprovement(training.MinImprovement()),
		)),
		orchestrator.WithEmitter(emitter),
		orchestrator.WithParallelTraining(training.Parallel()),
		orchestrator.WithFeedbackLimit(training.FeedbackLimit()),
	)

	e := echo.New()
	e.HideBanner = true
	echoutil.SetLevel(e, *loglevel)
	e.Use(middleware.Logger(), middleware.Recover())

	e.POST("/api/retraining", handlers.RequestRetrainingHandler(db.Trigger(), conf.Families()))
	e.POST("/api/retraining/run", handlers.RunRetrainingHandler(o, conf.Families()))
	e.GET("/api/trigger", handlers.GetTriggerHandler(db.Trigger()))

	e.GET("/api/models/:family", handlers.GetActiveModelHandler(db.Registry()))
	e.GET("/api/models/:family/history", handlers.ModelHistoryHandler(db.Registry()))
	e.POST("/api/models/:family/rollback", handlers.RollbackHandler(db.Registry()))

	e.POST("/api/feedback", handlers.RegisterFeedbackHandler(db.Feedback()))
	e.GET("/api/feedback", handlers.FindFeedbackHandler(db.Feedback()))

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/health", handlers.HealthHandler(o, orchestrator.DegradedAfter))

	go func() {
		<-ctx.Done()
		e.Close()
	}()

	if err := e.Start(fmt.Sprintf(":%d", conf.Port())); err != nil {
		log.Printf("server stopped: %s", err)
	}
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
