package relearn

import (
	"fmt"
	"strings"
	"time"

	"github.com/opsforge/relearn/pkg/domain"
	"github.com/opsforge/relearn/pkg/pipeline/validator"
)

type Marshalled[S any] interface {
	trySeal(string) S
}

// seal marshalled object.
//
// this function CAN CAUSE PANIC if misconfiguration is found.
func TrySeal[S any](conf Marshalled[S]) S {
	return conf.trySeal("(root)")
}

type ServerConfigMarshall struct {
	Port      int32                    `yaml:"port"`
	Database  string                   `yaml:"database,omitempty"`
	Artifacts string                   `yaml:"artifacts,omitempty"`
	Families  []*FamilyConfigMarshall  `yaml:"families"`
	Trigger   *TriggerConfigMarshall   `yaml:"trigger"`
	Training  *TrainingConfigMarshall  `yaml:"training,omitempty"`
}

var _ Marshalled[*ServerConfig] = &ServerConfigMarshall{}

func (m *ServerConfigMarshall) trySeal(path string) *ServerConfig {
	if len(m.Families) == 0 {
		panic(path + ".families is required")
	}

	families := make([]domain.ModelFamily, 0, len(m.Families))
	seen := map[string]bool{}
	for nth, f := range m.Families {
		family := nonnil(f, fmt.Sprintf("%s.families[%d]", path, nth)).
			trySeal(fmt.Sprintf("%s.families[%d]", path, nth))
		if seen[family.Name] {
			panic(fmt.Sprintf("%s.families[%d]: duplicated family %s", path, nth, family.Name))
		}
		seen[family.Name] = true
		families = append(families, family)
	}

	training := m.Training
	if training == nil {
		training = &TrainingConfigMarshall{}
	}

	return &ServerConfig{
		port:      required(m.Port, path+".port"),
		database:  m.Database,
		artifacts: m.Artifacts,
		families:  families,
		trigger:   nonnil(m.Trigger, path+".trigger").trySeal(path + ".trigger"),
		training:  training.trySeal(path + ".training"),
	}
}

type FamilyConfigMarshall struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"`
}

func (m *FamilyConfigMarshall) trySeal(path string) domain.ModelFamily {
	kind, err := domain.AsFamilyKind(required(m.Kind, path+".kind"))
	if err != nil {
		panic(fmt.Sprintf("%s.kind: %s", path, err))
	}
	return domain.ModelFamily{
		Name: required(m.Name, path+".name"),
		Kind: kind,
	}
}

type TriggerConfigMarshall struct {
	Schedule *ScheduleConfigMarshall      `yaml:"schedule,omitempty"`
	Backlog  *BacklogConfigMarshall       `yaml:"backlog,omitempty"`
	Accuracy *AccuracyFloorConfigMarshall `yaml:"accuracyFloor,omitempty"`
}

func (m *TriggerConfigMarshall) trySeal(path string) *TriggerConfig {
	conf := &TriggerConfig{
		scheduleWeekday: -1,
		backlogMin:      0,
		accuracyMin:     0,
	}
	if m.Schedule != nil {
		weekday, ok := weekdays[strings.ToLower(m.Schedule.Weekday)]
		if !ok {
			panic(path + ".schedule.weekday: unknown weekday " + m.Schedule.Weekday)
		}
		window, err := time.ParseDuration(required(m.Schedule.Window, path+".schedule.window"))
		if err != nil {
			panic(fmt.Sprintf("%s.schedule.window can not be parsed: %s", path, err))
		}
		if m.Schedule.Hour < 0 || 23 < m.Schedule.Hour {
			panic(path + ".schedule.hour is out of range")
		}
		conf.scheduleWeekday = weekday
		conf.scheduleHour = m.Schedule.Hour
		conf.scheduleWindow = window
	}
	if m.Backlog != nil {
		conf.backlogMin = required(m.Backlog.Min, path+".backlog.min")
	}
	if m.Accuracy != nil {
		conf.accuracyMin = m.Accuracy.Min
		if conf.accuracyMin <= 0 || 1 < conf.accuracyMin {
			panic(path + ".accuracyFloor.min is out of range (0, 1]")
		}
		conf.accuracySamples = required(m.Accuracy.MinSamples, path+".accuracyFloor.minSamples")
	}
	return conf
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

type ScheduleConfigMarshall struct {
	Weekday string `yaml:"weekday"`
	Hour    int    `yaml:"hour"`
	Window  string `yaml:"window"`
}

type BacklogConfigMarshall struct {
	Min int `yaml:"min"`
}

type AccuracyFloorConfigMarshall struct {
	Min        float64 `yaml:"min"`
	MinSamples int     `yaml:"minSamples"`
}

type TrainingConfigMarshall struct {
	Parallel       int     `yaml:"parallel,omitempty"`
	FeedbackLimit  int     `yaml:"feedbackLimit,omitempty"`
	Seed           int64   `yaml:"seed,omitempty"`
	MinImprovement float64 `yaml:"minImprovement,omitempty"`
}

func (m *TrainingConfigMarshall) trySeal(path string) *TrainingConfig {
	conf := &TrainingConfig{
		parallel:       m.Parallel,
		feedbackLimit:  m.FeedbackLimit,
		seed:           m.Seed,
		minImprovement: m.MinImprovement,
	}
	if conf.parallel < 1 {
		conf.parallel = 1
	}
	if conf.seed == 0 {
		conf.seed = 1
	}
	if conf.minImprovement == 0 {
		conf.minImprovement = validator.DefaultMinImprovement
	}
	if conf.minImprovement < 0 {
		panic(path + ".minImprovement should not be negative")
	}
	return conf
}

func nonnil[T any](v *T, path string) *T {
	if v == nil {
		panic(path + " is required")
	}
	return v
}

func required[T comparable](v T, path string) T {
	if v == *new(T) {
		panic(path + " is required")
	}
	return v
}
