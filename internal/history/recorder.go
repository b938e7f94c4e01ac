package history

import (
	"context"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/jkaflik/cover2mqtt/internal/cover"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const measurement = "cover_state"

const connectTimeout = 10 * time.Second

var ErrDisabled = errors.New("history recording is disabled")

type Config struct {
	Enabled       bool
	URL           string
	Token         string
	Org           string
	Bucket        string
	BatchSize     uint
	FlushInterval time.Duration
}

type pointWriter interface {
	WritePoint(point *write.Point)
	Flush()
}

// Recorder writes cover attributes to InfluxDB. Writes are batched and never
// block the caller; failures are logged.
type Recorder struct {
	client influxdb2.Client
	writer pointWriter
	now    func() time.Time
}

func Connect(cfg Config) (*Recorder, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	opts := influxdb2.DefaultOptions()
	if cfg.BatchSize > 0 {
		opts.SetBatchSize(cfg.BatchSize)
	}
	if cfg.FlushInterval > 0 {
		opts.SetFlushInterval(uint(cfg.FlushInterval.Milliseconds()))
	}
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, errors.Wrapf(err, "influxdb %s: ping failed", cfg.URL)
	}
	if !healthy {
		client.Close()
		return nil, errors.Errorf("influxdb %s: server not healthy", cfg.URL)
	}

	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)
	go func() {
		for err := range writeAPI.Errors() {
			logrus.Errorf("influxdb: write failed: %s", err)
		}
	}()

	logrus.Infof("influxdb %s: recording to bucket %s", cfg.URL, cfg.Bucket)

	r := newRecorder(writeAPI)
	r.client = client
	return r, nil
}

func newRecorder(w pointWriter) *Recorder {
	return &Recorder{writer: w, now: time.Now}
}

func (r *Recorder) Record(c cover.Cover, attrs cover.Attributes) {
	fields := map[string]interface{}{
		"position": attrs.Position,
		"opening":  attrs.IsOpening,
		"closing":  attrs.IsClosing,
		"closed":   attrs.IsClosed,
	}
	if attrs.Tilt != nil {
		fields["tilt"] = *attrs.Tilt
	}

	r.writer.WritePoint(write.NewPoint(
		measurement,
		map[string]string{
			"device_id":       c.ID(),
			"name":            c.Name(),
			"model":           c.Model().String(),
			"operation_state": attrs.OperationState.String(),
		},
		fields,
		r.now(),
	))
}

// Handler records every update published for c.
func (r *Recorder) Handler(c cover.Cover) cover.UpdateHandler {
	return func(attrs cover.Attributes) {
		r.Record(c, attrs)
	}
}

// Close flushes pending points.
func (r *Recorder) Close() {
	r.writer.Flush()
	if r.client != nil {
		r.client.Close()
	}
}
