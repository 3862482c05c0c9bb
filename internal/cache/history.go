package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// HistoryPoint is one averaged sample inside a rolling window.
type HistoryPoint struct {
	Timestamp   int64   `json:"timestamp"`
	Datetime    string  `json:"datetime"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	VPD         float64 `json:"vpd"`
}

type windowSpec struct {
	interval time.Duration
	duration time.Duration
}

// Windows are materialized on write (one buffered average per interval) so
// dashboard reads never touch the durable store.
var windows = map[string]windowSpec{
	"6h":  {interval: 1 * time.Minute, duration: 6 * time.Hour},
	"12h": {interval: 2 * time.Minute, duration: 12 * time.Hour},
	"24h": {interval: 5 * time.Minute, duration: 24 * time.Hour},
	"1w":  {interval: 30 * time.Minute, duration: 7 * 24 * time.Hour},
}

// WindowNames lists the materialized windows.
func WindowNames() []string {
	return []string{"6h", "12h", "24h", "1w"}
}

func dataKey(name string) string   { return "historical_data_" + name }
func bufferKey(name string) string { return "historical_buffer_" + name }
func flushKey(name string) string  { return "historical_flush_" + name }

// RecordHistory feeds one cycle's values into every rolling window. Each
// window buffers raw points and flushes their average as a single point once
// its interval elapses, then drops points older than the window's duration.
// Failures on one window do not stop the others.
func (c *Cache) RecordHistory(ctx context.Context, point HistoryPoint) error {
	var firstErr error
	for name, spec := range windows {
		if err := c.recordWindow(ctx, name, spec, point); err != nil {
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (c *Cache) recordWindow(ctx context.Context, name string, spec windowSpec, point HistoryPoint) error {
	raw, err := json.Marshal(point)
	if err != nil {
		return fmt.Errorf("marshal history point: %w", err)
	}
	if err := c.rdb.RPush(ctx, bufferKey(name), raw).Err(); err != nil {
		return fmt.Errorf("buffer %s: %w", name, err)
	}

	lastFlush, err := c.lastFlush(ctx, name)
	if err != nil {
		return err
	}
	if point.Timestamp-lastFlush < int64(spec.interval.Seconds()) {
		return nil
	}
	return c.flushWindow(ctx, name, spec, point.Timestamp)
}

func (c *Cache) flushWindow(ctx context.Context, name string, spec windowSpec, now int64) error {
	rawPoints, err := c.rdb.LRange(ctx, bufferKey(name), 0, -1).Result()
	if err != nil {
		return fmt.Errorf("drain buffer %s: %w", name, err)
	}
	if len(rawPoints) == 0 {
		return nil
	}

	avg, err := averagePoints(rawPoints)
	if err != nil {
		return fmt.Errorf("average buffer %s: %w", name, err)
	}

	data, err := json.Marshal(avg)
	if err != nil {
		return fmt.Errorf("marshal averaged point: %w", err)
	}
	pipe := c.rdb.TxPipeline()
	pipe.RPush(ctx, dataKey(name), data)
	pipe.Del(ctx, bufferKey(name))
	pipe.Set(ctx, flushKey(name), strconv.FormatInt(now, 10), 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("flush window %s: %w", name, err)
	}

	return c.trimWindow(ctx, name, now-int64(spec.duration.Seconds()))
}

// trimWindow pops points from the head while they fall before cutoff.
func (c *Cache) trimWindow(ctx context.Context, name string, cutoff int64) error {
	for {
		raw, err := c.rdb.LIndex(ctx, dataKey(name), 0).Result()
		if err == redis.Nil {
			return nil
		}
		if err != nil {
			return fmt.Errorf("trim %s: %w", name, err)
		}
		var p HistoryPoint
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			// unreadable head point, drop it
			c.rdb.LPop(ctx, dataKey(name))
			continue
		}
		if p.Timestamp >= cutoff {
			return nil
		}
		if err := c.rdb.LPop(ctx, dataKey(name)).Err(); err != nil {
			return fmt.Errorf("trim %s: %w", name, err)
		}
	}
}

// History returns the materialized points for one window, oldest first.
func (c *Cache) History(ctx context.Context, name string) ([]HistoryPoint, error) {
	if _, ok := windows[name]; !ok {
		return nil, fmt.Errorf("unknown history window %q", name)
	}
	raw, err := c.rdb.LRange(ctx, dataKey(name), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read window %s: %w", name, err)
	}
	points := make([]HistoryPoint, 0, len(raw))
	for _, item := range raw {
		var p HistoryPoint
		if err := json.Unmarshal([]byte(item), &p); err != nil {
			continue
		}
		points = append(points, p)
	}
	return points, nil
}

func (c *Cache) lastFlush(ctx context.Context, name string) (int64, error) {
	val, err := c.rdb.Get(ctx, flushKey(name)).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read flush marker %s: %w", name, err)
	}
	ts, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, nil
	}
	return ts, nil
}

func averagePoints(rawPoints []string) (HistoryPoint, error) {
	var sum HistoryPoint
	var count int
	for _, raw := range rawPoints {
		var p HistoryPoint
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return HistoryPoint{}, err
		}
		sum.Temperature += p.Temperature
		sum.Humidity += p.Humidity
		sum.VPD += p.VPD
		// the averaged point carries the newest sample's clock
		sum.Timestamp = p.Timestamp
		sum.Datetime = p.Datetime
		count++
	}
	if count == 0 {
		return HistoryPoint{}, fmt.Errorf("empty buffer")
	}
	n := float64(count)
	sum.Temperature = round2(sum.Temperature / n)
	sum.Humidity = round2(sum.Humidity / n)
	sum.VPD = round2(sum.VPD / n)
	return sum, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
