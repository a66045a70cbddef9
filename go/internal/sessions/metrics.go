package sessions

import (
	"context"

	"github.com/mcdev12/focusflow/go/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts committed state machine changes
type Metrics struct {
	transitions *prometheus.CounterVec
	cycles      prometheus.Counter
	timer       *prometheus.CounterVec
}

var _ ChangeObserver = (*Metrics)(nil)

// NewMetrics registers the session collectors with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "focusflow",
			Subsystem: "sessions",
			Name:      "status_transitions_total",
			Help:      "Committed session status changes.",
		}, []string{"from", "to"}),
		cycles: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "focusflow",
			Subsystem: "sessions",
			Name:      "cycles_advanced_total",
			Help:      "Cycles advanced across all sessions.",
		}),
		timer: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "focusflow",
			Subsystem: "sessions",
			Name:      "timer_updates_total",
			Help:      "Committed timer updates by resulting state.",
		}, []string{"state"}),
	}
}

// SessionChanged records one committed change
func (m *Metrics) SessionChanged(ctx context.Context, before, after *models.Session) {
	if before.Status != after.Status {
		m.transitions.WithLabelValues(string(before.Status), string(after.Status)).Inc()
	}
	if after.CurrentCycle > before.CurrentCycle {
		m.cycles.Add(float64(after.CurrentCycle - before.CurrentCycle))
	}
	if before.IsRunning != after.IsRunning || before.IsBreak != after.IsBreak {
		m.timer.WithLabelValues(timerState(after)).Inc()
	}
}

func timerState(s *models.Session) string {
	switch {
	case s.IsRunning && s.IsBreak:
		return "break"
	case s.IsRunning:
		return "focus"
	default:
		return "stopped"
	}
}
