package sessions

import (
	"context"
	"testing"

	"github.com/mcdev12/focusflow/go/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_SessionChanged(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	ctx := context.Background()

	created := &models.Session{Status: models.SessionStatusCreated, CurrentCycle: 1, TotalCycles: 4}
	active := created.Clone()
	active.Status = models.SessionStatusActive
	m.SessionChanged(ctx, created, active)

	running := active.Clone()
	running.IsRunning = true
	m.SessionChanged(ctx, active, running)

	onBreak := running.Clone()
	onBreak.IsBreak = true
	onBreak.CurrentCycle = 3
	m.SessionChanged(ctx, running, onBreak)

	// timer overwrite with the same flags
	m.SessionChanged(ctx, onBreak, onBreak.Clone())

	assert.Equal(t, float64(1), testutil.ToFloat64(m.transitions.WithLabelValues("CREATED", "ACTIVE")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.cycles))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.timer.WithLabelValues("focus")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.timer.WithLabelValues("break")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.timer.WithLabelValues("stopped")))
}
