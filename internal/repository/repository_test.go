package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	unique := &pq.Error{Code: "23505"}

	testCases := []struct {
		name string
		err  error
		want bool
	}{
		{name: "bare unique violation", err: unique, want: true},
		{name: "wrapped unique violation", err: fmt.Errorf("insert appointment: %w", unique), want: true},
		{name: "foreign key violation", err: &pq.Error{Code: "23503"}, want: false},
		{name: "plain error", err: errors.New("connection refused"), want: false},
		{name: "nil", err: nil, want: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsUniqueViolation(tc.err))
		})
	}
}
