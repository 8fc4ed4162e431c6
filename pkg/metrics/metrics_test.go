package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsOptions(t *testing.T) {
	Convey("Given metrics options", t, func() {
		Convey("When applied to a manager", func() {
			registry := prometheus.NewRegistry()
			m := NewManager(
				WithNamespace("test_namespace"),
				WithSubsystem("animation"),
				WithMetricPrefix("tp"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithMetricsEnabled(false),
				WithRefreshInterval(5*time.Second),
				WithCustomLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then every field reflects its option", func() {
				So(m.namespace, ShouldEqual, "test_namespace")
				So(m.subsystem, ShouldEqual, "animation")
				So(m.metricPrefix, ShouldEqual, "tp")
				So(m.histogramBuckets, ShouldResemble, []float64{0.1, 0.5, 1.0})
				So(m.enabled, ShouldBeFalse)
				So(m.refreshInterval, ShouldEqual, 5*time.Second)
				So(m.customLabels, ShouldResemble, map[string]string{"env": "test"})
			})

			Convey("Then metric names carry namespace, subsystem and prefix", func() {
				m.markersShot.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)

				names := make([]string, 0, len(families))
				for _, f := range families {
					names = append(names, f.GetName())
				}
				So(names, ShouldContain, "test_namespace_animation_tp_markers_shot_total")
			})
		})

		Convey("When given empty values", func() {
			m := NewManager(
				WithNamespace(""),
				WithHistogramBuckets(nil),
				WithRefreshInterval(0),
				WithPrometheusRegistry(prometheus.NewRegistry()),
			)

			Convey("Then defaults are kept", func() {
				So(m.namespace, ShouldEqual, "attackmap")
				So(m.histogramBuckets, ShouldResemble, prometheus.DefBuckets)
				So(m.refreshInterval, ShouldEqual, defaultRefreshInterval)
			})
		})
	})
}

func TestAnimationMetrics(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When animation events are recorded", func() {
			shot := testutil.ToFloat64(globalManager.markersShot)
			impact := testutil.ToFloat64(globalManager.markersImpact)
			done := testutil.ToFloat64(globalManager.markersDone)
			batches := testutil.ToFloat64(globalManager.batchesCompleted)

			RecordMarkerShot()
			RecordMarkerImpact()
			RecordMarkerDone(850 * time.Millisecond)
			RecordBatchCompleted(3)
			UpdatePoolSize(24)
			UpdateSlotUsage(2, 5)

			Convey("Then the counters and gauges move", func() {
				So(testutil.ToFloat64(globalManager.markersShot), ShouldEqual, shot+1)
				So(testutil.ToFloat64(globalManager.markersImpact), ShouldEqual, impact+1)
				So(testutil.ToFloat64(globalManager.markersDone), ShouldEqual, done+1)
				So(testutil.ToFloat64(globalManager.batchesCompleted), ShouldEqual, batches+1)
				So(testutil.ToFloat64(globalManager.poolSize), ShouldEqual, 24)
				So(testutil.ToFloat64(globalManager.slotsBusy), ShouldEqual, 2)
				So(testutil.ToFloat64(globalManager.markersPending), ShouldEqual, 5)
			})
		})

		Convey("When the queue size is updated", func() {
			UpdateQueueCapacity(100)
			UpdateQueueSize(25, 100)

			Convey("Then utilization is size over capacity", func() {
				So(testutil.ToFloat64(globalManager.queueCapacity), ShouldEqual, 100)
				So(testutil.ToFloat64(globalManager.queueUtilization), ShouldEqual, 0.25)
			})
		})

		Convey("When labelled counters are recorded", func() {
			So(func() {
				RecordEventReceived("http")
				RecordEventDuplicate()
				RecordEventRejected("invalid")
				RecordFeedFlush(4)
				UpdateMarkerState(4)
				UpdateAttackLogSize(4)
				RecordPumpPoll()
				RecordSoundError("shot")
				RecordSourceConnect("nats")
				RecordSourceError("socket", "dial")
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError()
				RecordHTTPRequest("/events", "POST", "202")
				RecordHTTPRequestDuration("/events", "POST", "202", 1.5)
				RecordErrorByEndpoint("/events", "POST", "validation")
				RecordErrorByComponent("scheduler", "sound")
			}, ShouldNotPanic)

			So(testutil.ToFloat64(globalManager.soundErrors.WithLabelValues("shot")), ShouldBeGreaterThanOrEqualTo, 1)
		})
	})
}

func TestSystemCollector(t *testing.T) {
	Convey("Given a manager on its own registry", t, func() {
		Convey("When collection is disabled", func() {
			m := NewManager(WithMetricsEnabled(false), WithPrometheusRegistry(prometheus.NewRegistry()))

			Convey("Then Run refuses to start", func() {
				So(m.Run(context.Background()), ShouldEqual, ErrCollectorDisabled)
			})
		})

		Convey("When Run is cancelled", func() {
			m := NewManager(
				WithRefreshInterval(time.Millisecond),
				WithPrometheusRegistry(prometheus.NewRegistry()),
			)
			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer cancel()

			err := m.Run(ctx)

			Convey("Then it returns the context error after sampling", func() {
				So(err, ShouldEqual, context.DeadlineExceeded)
				So(testutil.ToFloat64(m.systemGoroutineCount), ShouldBeGreaterThan, 0)
				So(testutil.ToFloat64(m.systemMemoryUsage), ShouldBeGreaterThan, 0)
			})
		})
	})
}

func TestGetRegistry(t *testing.T) {
	Convey("Given the global registry", t, func() {
		RecordMarkerShot()
		families, err := GetRegistry().Gather()

		Convey("Then it exposes the attackmap metrics", func() {
			So(err, ShouldBeNil)
			So(len(families), ShouldBeGreaterThan, 0)
		})
	})
}
