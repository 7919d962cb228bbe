package culling

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	systemLabel = "system"
	modeLabel   = "mode"

	syncMode  = "sync"
	asyncMode = "async"
)

var (
	cullingPasses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "culling_passes_total",
		Help: "The number of completed culling passes.",
	}, []string{
		systemLabel,
		modeLabel,
	})

	cullingDegradedPasses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "culling_degraded_passes_total",
		Help: "The number of asynchronous culling requests that ran synchronously because of a small volume count.",
	}, []string{
		systemLabel,
	})

	cullingPassLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "culling_pass_duration_seconds",
		Help:    "The time between the start of a culling pass and its results being available.",
		Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
	}, []string{
		systemLabel,
		modeLabel,
	})

	cullingVisibleVolumes = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "culling_visible_volumes",
		Help: "The number of volumes that survived the last culling pass.",
	}, []string{
		systemLabel,
	})

	cullingRegisteredVolumes = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "culling_registered_volumes",
		Help: "The number of volumes registered when the last culling pass ran.",
	}, []string{
		systemLabel,
	})
)

func instrumentPass(system, mode string, start time.Time, visible, registered int) {
	cullingPasses.
		With(prometheus.Labels{
			systemLabel: system,
			modeLabel:   mode,
		}).
		Inc()

	cullingPassLatency.
		With(prometheus.Labels{
			systemLabel: system,
			modeLabel:   mode,
		}).
		Observe(time.Since(start).Seconds())

	cullingVisibleVolumes.
		With(prometheus.Labels{systemLabel: system}).
		Set(float64(visible))

	cullingRegisteredVolumes.
		With(prometheus.Labels{systemLabel: system}).
		Set(float64(registered))
}

func instrumentDegradedPass(system string) {
	cullingDegradedPasses.
		With(prometheus.Labels{systemLabel: system}).
		Inc()
}
