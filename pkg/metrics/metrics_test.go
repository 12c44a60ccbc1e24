package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	. "github.com/smartystreets/goconvey/convey"
)

// value reads the current value of a gauge or counter.
func value(m prometheus.Metric) float64 {
	var pb dto.Metric
	if err := m.Write(&pb); err != nil {
		return -1
	}
	if pb.Gauge != nil {
		return pb.GetGauge().GetValue()
	}
	return pb.GetCounter().GetValue()
}

func TestManagerOptions(t *testing.T) {
	Convey("Given a manager on a private registry", t, func() {
		reg := prometheus.NewRegistry()
		m := NewManager(
			WithPrometheusRegistry(reg),
			WithNamespace("test"),
			WithSubsystem("unit"),
			WithHistogramBuckets([]float64{1, 2, 3}),
			WithConstLabels(map[string]string{"env": "test"}),
		)

		Convey("Then options are applied", func() {
			So(m.namespace, ShouldEqual, "test")
			So(m.subsystem, ShouldEqual, "unit")
			So(m.histogramBuckets, ShouldResemble, []float64{1, 2, 3})
			So(m.constLabels["env"], ShouldEqual, "test")
		})

		Convey("Then empty values keep the defaults", func() {
			d := NewManager(WithPrometheusRegistry(prometheus.NewRegistry()),
				WithNamespace(""), WithSubsystem(""), WithHistogramBuckets(nil))
			So(d.namespace, ShouldEqual, "tiebreak")
			So(d.subsystem, ShouldEqual, "standings")
			So(d.histogramBuckets, ShouldResemble, defaultLatencyBuckets)
		})

		Convey("Then metric names carry the namespace and subsystem", func() {
			m.queueEnqueued.Inc()
			families, err := reg.Gather()
			So(err, ShouldBeNil)
			found := false
			for _, f := range families {
				if f.GetName() == "test_unit_queue_enqueued_total" {
					found = true
				}
				So(strings.HasPrefix(f.GetName(), "test_unit_"), ShouldBeTrue)
			}
			So(found, ShouldBeTrue)
		})
	})
}

func TestGlobalRecorders(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording evaluations", func() {
			before := value(globalManager.evaluations.WithLabelValues("ok"))
			RecordEvaluation(true, 0.2)
			RecordEvaluation(false, 0.3)
			RecordEvaluationError("unsupported_variant")

			Convey("Then the counters move", func() {
				So(value(globalManager.evaluations.WithLabelValues("ok")), ShouldEqual, before+1)
				So(value(globalManager.evaluationErrors.WithLabelValues("unsupported_variant")), ShouldBeGreaterThanOrEqualTo, 1.0)
			})
		})

		Convey("When setting gauges", func() {
			UpdateTournamentsLoaded(3)
			UpdateStandingsBoards(2)
			UpdateStandingsEntries(40)
			UpdateQueueSize(7)
			UpdateQueueCapacity(100)
			UpdateWorkerCount(4)

			Convey("Then the latest value wins", func() {
				So(value(globalManager.tournamentsLoaded), ShouldEqual, 3.0)
				So(value(globalManager.standingsBoards), ShouldEqual, 2.0)
				So(value(globalManager.standingsEntries), ShouldEqual, 40.0)
				So(value(globalManager.queueSize), ShouldEqual, 7.0)
				So(value(globalManager.queueCapacity), ShouldEqual, 100.0)
				So(value(globalManager.workerCount), ShouldEqual, 4.0)
			})
		})

		Convey("When recording the remaining series", func() {
			So(func() {
				RecordStandingsComputed()
				RecordQueueEnqueue()
				RecordQueueEnqueueError("full")
				RecordWorkerJob(1.5)
				RecordWorkerError()
				RecordHTTPRequest("/stats", "GET", "200")
				RecordHTTPRequestDuration("/stats", "GET", "200", 0.4)
				RecordErrorByComponent("worker", "evaluate")
			}, ShouldNotPanic)

			Convey("Then the registry gathers them", func() {
				families, err := GetRegistry().Gather()
				So(err, ShouldBeNil)
				So(len(families), ShouldBeGreaterThan, 10)
			})
		})
	})
}
