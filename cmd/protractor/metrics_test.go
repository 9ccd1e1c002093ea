package main

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/protractor/proximity"
)

func TestWatchMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newWatchMetrics(reg)

	dev := proximity.NewMockDevice()
	dev.SetScene(demoObjects, demoPaths)
	sensor := proximity.NewProtractor()
	sensor.BeginSerial(dev)

	res, err := sensor.Read(context.Background(), 2)
	require.NoError(t, err)
	m.observe(sensor, res, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.objects))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.paths))
	assert.Equal(t, 45.0, testutil.ToFloat64(m.objectAngle))
	assert.Equal(t, 90.0, testutil.ToFloat64(m.pathAngle))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reads.WithLabelValues("complete")))

	m.observe(sensor, proximity.ReadResult{}, proximity.ErrNoResponse)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reads.WithLabelValues("error")))
	assert.Equal(t, 45.0, testutil.ToFloat64(m.objectAngle), "failed reads keep the last values")
}
