package health

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckerRegistry(t *testing.T) {
	ok := NewCheckFunc("ok", func(context.Context) error { return nil })
	slow := NewCheckFunc("slow", func(context.Context) error { return Degraded("reconnecting") })
	down := NewCheckFunc("down", func(context.Context) error { return errors.New("terminated") })

	tests := []struct {
		name     string
		checkers []Checker
		want     Status
	}{
		{name: "no checkers", want: StatusHealthy},
		{name: "all healthy", checkers: []Checker{ok}, want: StatusHealthy},
		{name: "degraded", checkers: []Checker{ok, slow}, want: StatusDegraded},
		{name: "unhealthy wins", checkers: []Checker{slow, down}, want: StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewCheckerRegistry()
			for _, c := range tt.checkers {
				r.Register(c)
			}
			h := r.Check(context.Background())
			assert.Equal(t, tt.want, h.Status)
			assert.Len(t, h.Checks, len(tt.checkers))
		})
	}
}

func TestCheckerRegistry_Messages(t *testing.T) {
	r := NewCheckerRegistry()
	r.Register(NewCheckFunc("session", func(context.Context) error { return Degraded("reconnecting") }))

	h := r.Check(context.Background())
	assert.Equal(t, StatusDegraded, h.Checks["session"].Status)
	assert.Equal(t, "reconnecting", h.Checks["session"].Message)
}
