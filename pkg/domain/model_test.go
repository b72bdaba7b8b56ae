package domain_test

import (
	"testing"

	"github.com/opsforge/relearn/pkg/domain"
)

func TestAsVersionStatus(t *testing.T) {
	for name, testcase := range map[string]struct {
		when        string
		then        domain.VersionStatus
		expectError bool
	}{
		"candidate is parsed":       {when: "candidate", then: domain.Candidate},
		"deployed is parsed":        {when: "deployed", then: domain.Deployed},
		"retired is parsed":         {when: "retired", then: domain.Retired},
		"rejected is parsed":        {when: "rejected", then: domain.Rejected},
		"unknown word is an error":  {when: "promoted", expectError: true},
		"empty string is an error":  {when: "", expectError: true},
		"case matters, so an error": {when: "Deployed", expectError: true},
	} {
		t.Run(name, func(t *testing.T) {
			actual, err := domain.AsVersionStatus(testcase.when)
			if testcase.expectError {
				if err == nil {
					t.Fatal("expected error does not occur")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if actual != testcase.then {
				t.Errorf("unmatch: (actual, expected) = (%s, %s)", actual, testcase.then)
			}
		})
	}
}

func TestVersionStatusCanTransition(t *testing.T) {
	legal := map[domain.VersionStatus][]domain.VersionStatus{
		domain.Candidate: {domain.Deployed, domain.Rejected},
		domain.Deployed:  {domain.Retired},
		domain.Retired:   {domain.Deployed},
		domain.Rejected:  {},
	}

	all := []domain.VersionStatus{
		domain.Candidate, domain.Deployed, domain.Retired, domain.Rejected,
	}

	for from, tos := range legal {
		allowed := map[domain.VersionStatus]bool{}
		for _, to := range tos {
			allowed[to] = true
		}
		for _, to := range all {
			if from.CanTransition(to) != allowed[to] {
				t.Errorf(
					"%s -> %s: CanTransition = %v, want %v",
					from, to, from.CanTransition(to), allowed[to],
				)
			}
		}
	}
}

func TestFamilyKindPrimaryMetric(t *testing.T) {
	if m := domain.Continuous.PrimaryMetric(); m != "r2" {
		t.Errorf("continuous primary metric: %s", m)
	}
	if m := domain.Binary.PrimaryMetric(); m != "f1" {
		t.Errorf("binary primary metric: %s", m)
	}
}
