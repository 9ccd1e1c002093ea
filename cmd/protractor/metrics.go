package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mklimuk/protractor/proximity"
)

// watchMetrics exposes what the watch loop sees.
type watchMetrics struct {
	objects     prometheus.Gauge
	paths       prometheus.Gauge
	objectAngle prometheus.Gauge
	pathAngle   prometheus.Gauge
	reads       *prometheus.CounterVec
}

func newWatchMetrics(reg prometheus.Registerer) *watchMetrics {
	m := &watchMetrics{
		objects: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "protractor_objects",
			Help: "Number of objects detected in the last reading.",
		}),
		paths: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "protractor_paths",
			Help: "Number of open paths detected in the last reading.",
		}),
		objectAngle: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "protractor_object_angle_degrees",
			Help: "Angle to the most visible object, -1 when there is none.",
		}),
		pathAngle: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "protractor_path_angle_degrees",
			Help: "Angle to the most open path, -1 when there is none.",
		}),
		reads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "protractor_reads_total",
			Help: "Data requests by outcome.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.objects, m.paths, m.objectAngle, m.pathAngle, m.reads)
	return m
}

func (m *watchMetrics) observe(sensor *proximity.Protractor, res proximity.ReadResult, err error) {
	switch {
	case err != nil:
		m.reads.WithLabelValues("error").Inc()
		return
	case !res.Complete():
		m.reads.WithLabelValues("partial").Inc()
	default:
		m.reads.WithLabelValues("complete").Inc()
	}
	m.objects.Set(float64(sensor.ObjectCount()))
	m.paths.Set(float64(sensor.PathCount()))
	m.objectAngle.Set(float64(sensor.MostVisibleObjectAngle()))
	m.pathAngle.Set(float64(sensor.MostOpenPathAngle()))
}

// serveMetrics serves reg on addr until ctx is done.
func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		slog.Info("serving metrics", "addr", addr)
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "error", err)
		}
	}()
}
