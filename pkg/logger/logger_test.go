package logger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/foodie/config"
)

type captured struct {
	mu      sync.Mutex
	entries []Entry
	batches int
}

func (c *captured) write(_ context.Context, docs []interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches++
	for _, d := range docs {
		c.entries = append(c.entries, d.(Entry))
	}
	return nil
}

func TestMongoHandlerEntries(t *testing.T) {
	c := &captured{}
	h := newMongoHandler(slog.LevelWarn, c.write)
	log := slog.New(h).With("request_id", "req-1")

	log.Info("below level")
	log.Warn("stock clamped", "order_id", "o-1", "item_id", "i-9", "error", errors.New("conflict"))
	log.WithGroup("refund").Error("refund failed", "intent", "pi_1")
	h.Close()

	require.Len(t, c.entries, 2)

	first := c.entries[0]
	assert.Equal(t, "WARN", first.Level)
	assert.Equal(t, "req-1", first.RequestID)
	assert.Equal(t, "o-1", first.OrderID)
	assert.Equal(t, "i-9", first.Attrs["item_id"])
	assert.Equal(t, "conflict", first.Attrs["error"])
	assert.NotContains(t, first.Attrs, "order_id")

	second := c.entries[1]
	assert.Equal(t, "req-1", second.RequestID, "attrs added before the group stay top level")
	assert.Equal(t, "pi_1", second.Attrs["refund.intent"])
}

func TestMongoHandlerBatches(t *testing.T) {
	c := &captured{}
	h := newMongoHandler(slog.LevelInfo, c.write)
	log := slog.New(h)

	for i := 0; i < sinkBatch+5; i++ {
		log.Info("tick", "n", i)
	}
	h.Close()
	h.Close()

	assert.Len(t, c.entries, sinkBatch+5)
	assert.GreaterOrEqual(t, c.batches, 2)
}

func TestFanoutRespectsLevels(t *testing.T) {
	debug, warn := &captured{}, &captured{}
	dh := newMongoHandler(slog.LevelDebug, debug.write)
	wh := newMongoHandler(slog.LevelWarn, warn.write)

	log := slog.New(fanout{dh, wh})
	log.Debug("cache miss", "key", "menu")
	log.Warn("redis down")
	dh.Close()
	wh.Close()

	assert.Len(t, debug.entries, 2)
	require.Len(t, warn.entries, 1)
	assert.Equal(t, "redis down", warn.entries[0].Msg)
}

func TestWithCtx(t *testing.T) {
	assert.Same(t, L, WithCtx(context.Background()))

	tagged := L.With("request_id", "abc")
	ctx := InjectLogger(context.Background(), tagged)
	assert.Same(t, tagged, WithCtx(ctx))
}

func TestConfigure(t *testing.T) {
	var buf bytes.Buffer
	prevOut, prevL, prevLevel := out, L, Level.Level()
	out = &buf
	t.Cleanup(func() {
		out, L = prevOut, prevL
		Level.Set(prevLevel)
		slog.SetDefault(L)
	})

	config.Set("LOG_LEVEL", "warn")
	config.Set("LOG_FORMAT", "json")
	t.Cleanup(func() {
		config.Set("LOG_LEVEL", "")
		config.Set("LOG_FORMAT", "")
	})
	require.NoError(t, Configure())

	Info("hidden")
	Warn("kitchen offline", "order_id", "o-7")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"kitchen offline"`)
	assert.Contains(t, buf.String(), `"order_id":"o-7"`)

	require.NoError(t, SetLevel("debug"))
	Debug("now visible")
	assert.Contains(t, buf.String(), "now visible")
}

func TestConfigureRejectsUnknownValues(t *testing.T) {
	prevLevel := Level.Level()
	t.Cleanup(func() { Level.Set(prevLevel) })

	assert.Error(t, SetLevel("loud"))

	config.Set("LOG_FORMAT", "xml")
	t.Cleanup(func() { config.Set("LOG_FORMAT", "") })
	assert.Error(t, Configure())
}
