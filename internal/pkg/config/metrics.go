package config

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ConfigMetrics tracks configuration load health for one process. Metric
// names are prefixed with the component ("api", "worker") so both processes
// can expose them without colliding.
type ConfigMetrics struct {
	loadTimestamp  prometheus.Gauge
	fallbacks      *prometheus.CounterVec
	fallbackActive prometheus.Gauge
}

// NewConfigMetrics registers the config gauges and counters on the default
// registry. Panics if the same component name is registered twice.
func NewConfigMetrics(component string) *ConfigMetrics {
	return &ConfigMetrics{
		loadTimestamp: promauto.NewGauge(prometheus.GaugeOpts{
			Name: fmt.Sprintf("%s_config_load_timestamp", component),
			Help: fmt.Sprintf("Unix time of the last %s configuration load.", component),
		}),
		fallbacks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_config_fallbacks_total", component),
			Help: fmt.Sprintf("Defaults applied over invalid %s configuration, by field.", component),
		}, []string{"field"}),
		fallbackActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: fmt.Sprintf("%s_config_fallback_active", component),
			Help: fmt.Sprintf("1 while any %s configuration field runs on its default.", component),
		}),
	}
}

// RecordLoad stamps the load-timestamp gauge with the current time.
func (m *ConfigMetrics) RecordLoad() {
	m.loadTimestamp.SetToCurrentTime()
}

// RecordFallback counts one field falling back to its default.
func (m *ConfigMetrics) RecordFallback(field string) {
	m.fallbacks.WithLabelValues(field).Inc()
}

// SetFallbackActive flags whether any field is currently on a fallback.
func (m *ConfigMetrics) SetFallbackActive(active bool) {
	if active {
		m.fallbackActive.Set(1)
		return
	}
	m.fallbackActive.Set(0)
}
