package recurring_test

import (
	"errors"
	"testing"
	"time"

	"github.com/opsforge/relearn/cmd/loops/recurring"
	"github.com/opsforge/relearn/pkg/loop"
)

func TestParsePolicy(t *testing.T) {
	for name, testcase := range map[string]struct {
		when        string
		then        recurring.Policy
		expectError bool
	}{
		"forever means forever": {
			when: "forever",
			then: recurring.Forever(0),
		},
		"forever:3s means forever with cooldown 3 seconds": {
			when: "forever:3s",
			then: recurring.Forever(3 * time.Second),
		},
		"forever:someday can not be parsed (someday is not time.Duration)": {
			when:        "forever:someday",
			expectError: true,
		},
		"backlog means backlog": {
			when: "backlog",
			then: recurring.Backlog(),
		},
		"backlog:param can not be parsed (it should not take any parameters)": {
			when:        "backlog:param",
			expectError: true,
		},
		"empty string can not be parsed (it is not policy)": {
			when:        "",
			expectError: true,
		},
		"unknown policy can not be parsed (it is not policy)": {
			when:        "???????unknown??????",
			expectError: true,
		},
	} {
		t.Run(name, func(t *testing.T) {
			when, expected := testcase.when, testcase.then
			actual, err := recurring.ParsePolicy(when)

			if testcase.expectError {
				if err == nil {
					t.Fatal("expected error does not occured")
				}
				return
			}

			if err != nil {
				t.Fatal(err)
			}

			if actual != expected {
				t.Errorf("unmatch: (actual, expected) = (%v, %v)", actual, expected)
			}
		})
	}

}

func TestPolicyNext(t *testing.T) {
	fakeErr := errors.New("fake error")

	for name, testcase := range map[string]struct {
		policy  recurring.Policy
		updated bool
		err     error
		then    loop.Next
	}{
		"forever continues immediately when updated": {
			policy: recurring.Forever(3 * time.Second), updated: true,
			then: loop.Continue(0),
		},
		"forever cools down when not updated": {
			policy: recurring.Forever(3 * time.Second), updated: false,
			then: loop.Continue(3 * time.Second),
		},
		"forever ignores errors": {
			policy: recurring.Forever(0), updated: false, err: fakeErr,
			then: loop.Continue(0),
		},
		"backlog continues immediately when updated": {
			policy: recurring.Backlog(), updated: true,
			then: loop.Continue(0),
		},
		"backlog breaks when drained": {
			policy: recurring.Backlog(), updated: false,
			then: loop.Break(nil),
		},
		"until-error passes through while healthy": {
			policy: recurring.UntilError(recurring.Forever(time.Second)), updated: false,
			then: loop.Continue(time.Second),
		},
		"until-error breaks with the error": {
			policy: recurring.UntilError(recurring.Forever(time.Second)), updated: true, err: fakeErr,
			then: loop.Break(fakeErr),
		},
	} {
		t.Run(name, func(t *testing.T) {
			actual := testcase.policy.Next(testcase.updated, testcase.err)
			if actual != testcase.then {
				t.Errorf("unmatch: (actual, expected) = (%v, %v)", actual, testcase.then)
			}
		})
	}
}
