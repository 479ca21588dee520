package symtab

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	LoadErrors       *prometheus.CounterVec
	ModulesScanned   prometheus.Counter
	FunctionsVisited prometheus.Counter
	UnresolvedSites  prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LoadErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "declsite_load_errors_total",
			Help: "Total number of errors while loading a module's debug info",
		}, []string{"error"}),
		ModulesScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "declsite_modules_scanned_total",
			Help: "Total number of modules examined by scans",
		}),
		FunctionsVisited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "declsite_functions_visited_total",
			Help: "Total number of functions dispatched to scan visitors",
		}),
		UnresolvedSites: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "declsite_unresolved_sites_total",
			Help: "Total number of functions with no covering line table range",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.LoadErrors,
			m.ModulesScanned,
			m.FunctionsVisited,
			m.UnresolvedSites,
		)
	}

	return m
}
