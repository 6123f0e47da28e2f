package zapplus

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil", nil, false},
		{"rate limited", classifyStatus(429), true},
		{"server error", classifyStatus(500), true},
		{"wrapped transport failure", fmt.Errorf("%w: connection refused", ErrUnavailable), true},
		{"not found", classifyStatus(404), false},
		{"unauthorized", classifyStatus(401), false},
		{"forbidden", classifyStatus(403), false},
		{"unclassified client error", classifyStatus(400), false},
		{"unrelated error", errors.New("boom"), false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := IsTransient(test.err); got != test.expected {
				t.Errorf("IsTransient(%v) = %v, expected %v", test.err, got, test.expected)
			}
		})
	}
}
