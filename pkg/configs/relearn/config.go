package relearn

import (
	"time"

	"github.com/opsforge/relearn/pkg/domain"
)

// ServerConfig is the sealed, read-only configuration of the retraining
// services. Get one from ServerConfigMarshall.TrySeal().
type ServerConfig struct {
	port      int32
	database  string
	artifacts string
	families  []domain.ModelFamily
	trigger   *TriggerConfig
	training  *TrainingConfig
}

func (c *ServerConfig) Port() int32 {
	return c.port
}

// Connection string for the database. Empty means standalone mode on the
// in-memory stores.
func (c *ServerConfig) Database() string {
	return c.database
}

// Directory for model artifacts. Empty means in-memory.
func (c *ServerConfig) Artifacts() string {
	return c.artifacts
}

// Model families the pipeline retrains, in configured order.
func (c *ServerConfig) Families() []domain.ModelFamily {
	found := make([]domain.ModelFamily, len(c.families))
	copy(found, c.families)
	return found
}

func (c *ServerConfig) Trigger() *TriggerConfig {
	return c.trigger
}

func (c *ServerConfig) Training() *TrainingConfig {
	return c.training
}

// TriggerConfig parameterizes the automatic trigger conditions.
type TriggerConfig struct {
	scheduleWeekday time.Weekday
	scheduleHour    int
	scheduleWindow  time.Duration
	backlogMin      int
	accuracyMin     float64
	accuracySamples int
}

func (t *TriggerConfig) ScheduleWeekday() time.Weekday {
	return t.scheduleWeekday
}

func (t *TriggerConfig) ScheduleHour() int {
	return t.scheduleHour
}

func (t *TriggerConfig) ScheduleWindow() time.Duration {
	return t.scheduleWindow
}

// Backlog size at which the backlog condition fires.
func (t *TriggerConfig) BacklogMin() int {
	return t.backlogMin
}

// Rolling accuracy under which the accuracy-floor condition fires.
func (t *TriggerConfig) AccuracyMin() float64 {
	return t.accuracyMin
}

// Minimum recent samples before the accuracy floor is trusted.
func (t *TriggerConfig) AccuracySamples() int {
	return t.accuracySamples
}

// TrainingConfig parameterizes one retraining run.
type TrainingConfig struct {
	parallel       int
	feedbackLimit  int
	seed           int64
	minImprovement float64
}

// How many families train concurrently. 1 = sequential.
func (t *TrainingConfig) Parallel() int {
	return t.parallel
}

// Cap on unconsumed feedback taken into one run. 0 = unlimited.
func (t *TrainingConfig) FeedbackLimit() int {
	return t.feedbackLimit
}

// Seed of the holdout shuffles.
func (t *TrainingConfig) Seed() int64 {
	return t.seed
}

// Relative improvement bar of the safety validator.
func (t *TrainingConfig) MinImprovement() float64 {
	return t.minImprovement
}
