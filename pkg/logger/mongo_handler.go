package logger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	sinkQueue     = 4096
	sinkBatch     = 100
	sinkFlush     = 2 * time.Second
	sinkRetention = 30 * 24 * time.Hour
)

// Entry is one stored log line. Order incidents (oversells, failed refunds,
// expired payments) are found by order_id.
type Entry struct {
	Time      time.Time `bson:"time"`
	Level     string    `bson:"level"`
	Msg       string    `bson:"msg"`
	RequestID string    `bson:"request_id,omitempty"`
	OrderID   string    `bson:"order_id,omitempty"`
	Attrs     bson.M    `bson:"attrs,omitempty"`
}

// writeFunc stores one batch. It is mongo's InsertMany outside tests.
type writeFunc func(ctx context.Context, docs []interface{}) error

// sink batches entries onto one goroutine. A full queue drops entries
// instead of blocking the caller.
type sink struct {
	write   writeFunc
	queue   chan Entry
	stop    chan struct{}
	stopped chan struct{}
	once    sync.Once
	dropped atomic.Int64
}

func newSink(write writeFunc) *sink {
	s := &sink{
		write:   write,
		queue:   make(chan Entry, sinkQueue),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *sink) push(e Entry) {
	select {
	case s.queue <- e:
	default:
		s.dropped.Add(1)
	}
}

func (s *sink) run() {
	defer close(s.stopped)
	t := time.NewTicker(sinkFlush)
	defer t.Stop()

	batch := make([]interface{}, 0, sinkBatch)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		// A failed write cannot be logged without looping back here.
		_ = s.write(ctx, batch)
		cancel()
		batch = batch[:0]
	}

	for {
		select {
		case e := <-s.queue:
			batch = append(batch, e)
			if len(batch) == sinkBatch {
				flush()
			}
		case <-t.C:
			flush()
		case <-s.stop:
			for {
				select {
				case e := <-s.queue:
					batch = append(batch, e)
					if len(batch) == sinkBatch {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}

// close flushes what is queued and waits for the writer to finish.
func (s *sink) close() {
	s.once.Do(func() { close(s.stop) })
	<-s.stopped
}

// MongoHandler is a slog.Handler writing to a MongoDB collection.
type MongoHandler struct {
	level  slog.Level
	sink   *sink
	client *mongo.Client
	attrs  []slog.Attr
	prefix string
}

// NewMongoHandler connects to uri and stores records at level or above in
// db.collection. Entries expire after 30 days.
func NewMongoHandler(uri, db, collection string, level slog.Level) (*MongoHandler, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(5*time.Second).
		SetMaxPoolSize(4))
	if err != nil {
		return nil, fmt.Errorf("logger: mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("logger: mongo ping: %w", err)
	}

	col := client.Database(db).Collection(collection)
	_, err = col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "time", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(int32(sinkRetention.Seconds()))},
		{Keys: bson.D{{Key: "order_id", Value: 1}}, Options: options.Index().SetSparse(true)},
	})
	if err != nil {
		L.Warn("logger: mongo indexes not created", "error", err)
	}

	h := newMongoHandler(level, func(ctx context.Context, docs []interface{}) error {
		_, err := col.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
		return err
	})
	h.client = client
	return h, nil
}

func newMongoHandler(level slog.Level, write writeFunc) *MongoHandler {
	return &MongoHandler{level: level, sink: newSink(write)}
}

func (h *MongoHandler) Enabled(_ context.Context, l slog.Level) bool { return l >= h.level }

func (h *MongoHandler) Handle(_ context.Context, r slog.Record) error {
	e := Entry{Time: r.Time.UTC(), Level: r.Level.String(), Msg: r.Message, Attrs: bson.M{}}
	for _, a := range h.attrs {
		h.add(&e, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		h.add(&e, h.prefix, a)
		return true
	})
	if len(e.Attrs) == 0 {
		e.Attrs = nil
	}
	h.sink.push(e)
	return nil
}

// add files the correlation keys at the top level and everything else
// under attrs, with group names joined by dots.
func (h *MongoHandler) add(e *Entry, prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p += a.Key + "."
		}
		for _, ga := range v.Group() {
			h.add(e, p, ga)
		}
		return
	}
	if a.Key == "" {
		return
	}

	switch key := prefix + a.Key; key {
	case "request_id":
		e.RequestID = v.String()
	case "order_id":
		e.OrderID = v.String()
	default:
		val := v.Any()
		if err, ok := val.(error); ok {
			val = err.Error()
		}
		e.Attrs[key] = val
	}
}

func (h *MongoHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.attrs = append([]slog.Attr(nil), h.attrs...)
	for _, a := range attrs {
		if h.prefix != "" {
			a = slog.Group(strings.TrimSuffix(h.prefix, "."), a)
		}
		c.attrs = append(c.attrs, a)
	}
	return &c
}

func (h *MongoHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.prefix = h.prefix + name + "."
	return &c
}

// Close flushes queued entries and disconnects.
func (h *MongoHandler) Close() {
	h.sink.close()
	if h.client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = h.client.Disconnect(ctx)
	}
}

// fanout sends each record to every handler that wants it.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, l slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, l) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			_ = h.Handle(ctx, r.Clone())
		}
	}
	return nil
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
