package scene

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sceneFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scene_frames_total",
		Help: "The number of frames stepped.",
	})

	sceneFrameDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "scene_frame_duration_seconds",
		Help:    "The time taken to step a frame, subscribers excluded.",
		Buckets: prometheus.ExponentialBuckets(0.00005, 2, 14),
	})

	sceneEntities = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "scene_entities",
		Help: "The number of entities in the scene.",
	})

	sceneVisibleEntities = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "scene_visible_entities",
		Help: "The number of entities visible in the latest frame.",
	})
)

func instrumentFrame(start time.Time, visible int) {
	sceneFrames.Inc()
	sceneFrameDuration.Observe(time.Since(start).Seconds())
	sceneVisibleEntities.Set(float64(visible))
}

func instrumentEntityCount(count int) {
	sceneEntities.Set(float64(count))
}
