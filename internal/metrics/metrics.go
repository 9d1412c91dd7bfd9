package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joescharf/civic/internal/models"
)

// Metrics holds the Prometheus collectors for civic. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	IssuesCreated        *prometheus.CounterVec
	IssuesRouted         *prometheus.CounterVec
	StatusUpdates        *prometheus.CounterVec
	AuthorizationDenials *prometheus.CounterVec
	Reassignments        prometheus.Counter
	OfficialsRemoved     prometheus.Counter
}

// New creates the collectors on a private registry, so multiple instances
// (one per test) never collide.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		IssuesCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "civic_issues_created_total",
			Help: "Issues created, by classified zone",
		}, []string{"zone"}),
		IssuesRouted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "civic_issues_routed_total",
			Help: "Routing outcomes at issue creation",
		}, []string{"outcome"}),
		StatusUpdates: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "civic_status_updates_total",
			Help: "Successful status updates, by new status",
		}, []string{"status"}),
		AuthorizationDenials: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "civic_authorization_denials_total",
			Help: "Status updates rejected by the authorization guard, by actor role",
		}, []string{"role"}),
		Reassignments: factory.NewCounter(prometheus.CounterOpts{
			Name: "civic_reassignments_total",
			Help: "Manual reassignments by administrators",
		}),
		OfficialsRemoved: factory.NewCounter(prometheus.CounterOpts{
			Name: "civic_officials_removed_total",
			Help: "Regional officials removed",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) IssueCreated(zone models.Zone, assigned bool) {
	if m == nil {
		return
	}
	m.IssuesCreated.WithLabelValues(string(zone)).Inc()
	outcome := "unassigned"
	if assigned {
		outcome = "assigned"
	}
	m.IssuesRouted.WithLabelValues(outcome).Inc()
}

func (m *Metrics) StatusUpdated(status models.IssueStatus) {
	if m == nil {
		return
	}
	m.StatusUpdates.WithLabelValues(string(status)).Inc()
}

func (m *Metrics) AuthorizationDenied(role models.Role) {
	if m == nil {
		return
	}
	m.AuthorizationDenials.WithLabelValues(string(role)).Inc()
}

func (m *Metrics) Reassigned() {
	if m == nil {
		return
	}
	m.Reassignments.Inc()
}

func (m *Metrics) OfficialRemoved() {
	if m == nil {
		return
	}
	m.OfficialsRemoved.Inc()
}
