// Package mirror copies published instrument state into Redis for external readers.
package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"spreadwatch/internal/memorystore"
)

const (
	defaultQueueSize = 256
	opTimeout        = 2 * time.Second
)

// RedisMirror is a memorystore.Observer. Store callbacks only enqueue; a single worker
// applies them to Redis in order, so a removal is never overtaken by an earlier publish.
// When the queue is full the event is dropped.
type RedisMirror struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	log    *zap.Logger

	ops  chan op
	done chan struct{}

	mu     sync.RWMutex
	closed bool
}

var _ memorystore.Observer = (*RedisMirror)(nil)

type op struct {
	instrument string
	remove     bool
	state      memorystore.InstrumentState
	sample     memorystore.SpreadSample
}

type stateDoc struct {
	PriceA        float64 `json:"price_a"`
	PriceB        float64 `json:"price_b"`
	SpreadPercent float64 `json:"spread_percent"`
	UpdatedAt     int64   `json:"updated_at"` // unix millis
}

type sampleDoc struct {
	Timestamp     int64   `json:"ts"` // unix millis
	SpreadPercent float64 `json:"spread_percent"`
}

// NewRedisClient builds a client and pings the server.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// NewRedisMirror starts the worker. The mirror takes ownership of rdb and closes it in Close.
func NewRedisMirror(rdb *redis.Client, prefix string, ttl time.Duration, log *zap.Logger) *RedisMirror {
	if log == nil {
		log = zap.NewNop()
	}
	m := &RedisMirror{
		rdb:    rdb,
		prefix: prefix,
		ttl:    ttl,
		log:    log.With(zap.String("component", "redis_mirror")),
		ops:    make(chan op, defaultQueueSize),
		done:   make(chan struct{}),
	}
	go m.run()
	return m
}

func (m *RedisMirror) StateKey(instrument string) string {
	return m.prefix + "state:" + instrument
}

func (m *RedisMirror) HistoryKey(instrument string) string {
	return m.prefix + "history:" + instrument
}

func (m *RedisMirror) OnPublish(instrument string, state memorystore.InstrumentState, sample memorystore.SpreadSample) {
	m.enqueue(op{instrument: instrument, state: state, sample: sample})
}

func (m *RedisMirror) OnRemove(instrument string) {
	m.enqueue(op{instrument: instrument, remove: true})
}

func (m *RedisMirror) enqueue(o op) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return
	}

	select {
	case m.ops <- o:
	default:
		m.log.Warn("mirror queue full, event dropped", zap.String("instrument", o.instrument), zap.Bool("remove", o.remove))
	}
}

func (m *RedisMirror) run() {
	defer close(m.done)
	for o := range m.ops {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		if err := m.apply(ctx, o); err != nil {
			m.log.Warn("redis mirror write failed", zap.String("instrument", o.instrument), zap.Error(err))
		}
		cancel()
	}
}

func (m *RedisMirror) apply(ctx context.Context, o op) error {
	if o.remove {
		return m.rdb.Del(ctx, m.StateKey(o.instrument), m.HistoryKey(o.instrument)).Err()
	}

	state, sample := encode(o.state, o.sample)

	_, err := m.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, m.StateKey(o.instrument), state, m.ttl)
		p.RPush(ctx, m.HistoryKey(o.instrument), sample)
		p.LTrim(ctx, m.HistoryKey(o.instrument), -memorystore.HistoryCapacity, -1)
		if m.ttl > 0 {
			p.Expire(ctx, m.HistoryKey(o.instrument), m.ttl)
		}
		return nil
	})
	return err
}

func encode(state memorystore.InstrumentState, sample memorystore.SpreadSample) ([]byte, []byte) {
	s, _ := json.Marshal(stateDoc{
		PriceA:        state.PriceA,
		PriceB:        state.PriceB,
		SpreadPercent: state.SpreadPercent,
		UpdatedAt:     sample.Timestamp.UnixMilli(),
	})
	h, _ := json.Marshal(sampleDoc{
		Timestamp:     sample.Timestamp.UnixMilli(),
		SpreadPercent: sample.SpreadPercent,
	})
	return s, h
}

// Health pings Redis.
func (m *RedisMirror) Health(ctx context.Context) error {
	return m.rdb.Ping(ctx).Err()
}

// Close drains queued writes (bounded by ctx) and closes the client.
func (m *RedisMirror) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	close(m.ops)
	m.mu.Unlock()

	select {
	case <-m.done:
	case <-ctx.Done():
		m.log.Warn("redis mirror shutdown timed out", zap.Int("pending", len(m.ops)))
	}
	return m.rdb.Close()
}
