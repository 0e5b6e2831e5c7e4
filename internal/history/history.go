// Package history mirrors numeric and boolean telemetry into InfluxDB.
package history

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	c "github.com/life-stream-dev/router-telemetry-broker/internal/config"
	"github.com/life-stream-dev/router-telemetry-broker/internal/logger"
)

const measurement = "router_telemetry"

// Recorder receives every converted telemetry value.
type Recorder interface {
	Record(deviceID, topic string, value any)
}

// Nop drops everything.
type Nop struct{}

func (Nop) Record(string, string, any) {}

type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI

	mu        sync.RWMutex
	connected bool
}

// Connect pings the server and starts the batching write API.
func Connect(cfg c.InfluxDBConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = 10
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(uint(batchSize)).
			SetFlushInterval(uint(flushInterval)*1000),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)
	h := &Client{client: client, writeAPI: writeAPI, connected: true}
	go func() {
		for err := range writeAPI.Errors() {
			logger.WarnF("Fail to write telemetry history, details: %v", err)
		}
	}()

	logger.InfoF("Telemetry history enabled, bucket %s", cfg.Bucket)
	return h, nil
}

// newPoint builds the point for value. Only finite numbers and booleans
// are kept.
func newPoint(deviceID, topic string, value any, ts time.Time) (*write.Point, bool) {
	switch v := value.(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, false
		}
	case bool:
	default:
		return nil, false
	}
	return write.NewPoint(
		measurement,
		map[string]string{
			"device_id": deviceID,
			"topic":     topic,
		},
		map[string]interface{}{
			"value": value,
		},
		ts,
	), true
}

// Record queues value without blocking.
func (h *Client) Record(deviceID, topic string, value any) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.connected {
		return
	}
	if point, ok := newPoint(deviceID, topic, value, time.Now()); ok {
		h.writeAPI.WritePoint(point)
	}
}

// Invoke flushes pending points and closes the client, it is registered
// with the shutdown cleaner.
func (h *Client) Invoke(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.connected {
		return nil
	}
	h.connected = false
	h.writeAPI.Flush()
	h.client.Close()
	return nil
}
