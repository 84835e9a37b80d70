package metrics

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	Samples      *prometheus.CounterVec
	ServerStarts prometheus.Counter
	ServerUp     prometheus.Gauge
	StoreWrites  *prometheus.CounterVec
	ApiTotal     *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	metrics := &Metrics{
		Samples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vrpn_samples_total",
			Help: "total number of device samples dispatched",
		}, []string{"receiver", "class"}),
		ServerStarts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vrpn_server_starts_total",
			Help: "total number of server process starts",
		}),
		ServerUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vrpn_server_up",
			Help: "whether the server process is running",
		}),
		StoreWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "store_writes_total",
			Help: "total number of samples written to the store",
		}, []string{"status"}),
		ApiTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_total_requests",
			Help: "total number of api requests",
		}, []string{"path", "status"}),
	}

	metrics.Enable(reg)
	return metrics
}

func (m *Metrics) Enable(reg prometheus.Registerer) {
	reg.MustRegister(m.Samples)
	reg.MustRegister(m.ServerStarts)
	reg.MustRegister(m.ServerUp)
	reg.MustRegister(m.StoreWrites)
	reg.MustRegister(m.ApiTotal)
}

func (m *Metrics) Disable(reg prometheus.Registerer) {
	reg.Unregister(m.Samples)
	reg.Unregister(m.ServerStarts)
	reg.Unregister(m.ServerUp)
	reg.Unregister(m.StoreWrites)
	reg.Unregister(m.ApiTotal)
}
