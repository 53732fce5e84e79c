package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/qianzhou/goso/internal/analytics"
	"github.com/qianzhou/goso/internal/cache"
	"github.com/qianzhou/goso/internal/protocol"
	"github.com/qianzhou/goso/internal/recommend"
	"github.com/qianzhou/goso/internal/search"
	apperrors "github.com/qianzhou/goso/pkg/errors"
	"github.com/qianzhou/goso/pkg/logger"
	"github.com/qianzhou/goso/pkg/metrics"
)

// Dispatcher turns decoded request frames into engine calls and encodes
// the response frames. It is shared by all workers.
type Dispatcher struct {
	recommender *recommend.Recommender
	engine      *search.Engine
	metrics     *metrics.Metrics
	collector   *analytics.Collector
	logger      *slog.Logger

	// last-seen cache counters, for publishing deltas to prometheus
	statsMu       sync.Mutex
	lastSearch    cache.Stats
	lastRecommend cache.Stats
	lastDistance  cache.Stats
}

// NewDispatcher creates a Dispatcher. metrics and collector may be nil.
func NewDispatcher(rec *recommend.Recommender, eng *search.Engine, m *metrics.Metrics, collector *analytics.Collector) *Dispatcher {
	return &Dispatcher{
		recommender: rec,
		engine:      eng,
		metrics:     m,
		collector:   collector,
		logger:      slog.Default().With("component", "dispatcher"),
	}
}

// Dispatch handles one request frame and returns the encoded response
// bytes. Failures of any kind produce a 0x9001 frame; Dispatch never
// panics.
func (d *Dispatcher) Dispatch(frame protocol.Frame) (response []byte) {
	requestID := uuid.NewString()
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("handler panicked",
				"request_id", requestID,
				"type", fmt.Sprintf("%#04x", uint16(frame.Type)),
				"panic", r,
				"stack", string(debug.Stack()),
			)
			response = d.errorFrame(apperrors.CodeInternal, fmt.Sprintf("internal error: %v", r))
		}
	}()

	switch frame.Type {
	case protocol.TypeRecommendRequest:
		return d.handleRecommend(frame.Payload, requestID)
	case protocol.TypeSearchRequest:
		return d.handleSearch(frame.Payload, requestID)
	default:
		// unknown request: echo the received type as the error code
		return d.errorFrame(int(frame.Type), fmt.Sprintf("unsupported message type %#04x", uint16(frame.Type)))
	}
}

func (d *Dispatcher) handleRecommend(payload []byte, requestID string) []byte {
	start := time.Now()
	var req protocol.RecommendRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return d.errorFrame(apperrors.CodeBadRequest, fmt.Sprintf("malformed recommend request: %v", err))
	}
	ctx := logger.WithRequest(context.Background(), logger.Request{
		ID:    requestID,
		Kind:  string(analytics.KindRecommend),
		Query: req.Query,
	})

	candidates := d.recommender.Recommend(req.Query, req.K)
	d.observe(analytics.KindRecommend, req.Query, len(candidates), start, requestID, false)
	logger.FromContext(ctx).Debug("recommend served", "k", req.K, "candidates", len(candidates))
	return d.encode(protocol.TypeRecommendResponse, protocol.RecommendResponse{
		Query:      req.Query,
		Timestamp:  time.Now().Unix(),
		Candidates: candidates,
	})
}

func (d *Dispatcher) handleSearch(payload []byte, requestID string) []byte {
	start := time.Now()
	var req protocol.SearchRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return d.errorFrame(apperrors.CodeBadRequest, fmt.Sprintf("malformed search request: %v", err))
	}
	ctx := logger.WithRequest(context.Background(), logger.Request{
		ID:    requestID,
		Kind:  string(analytics.KindSearch),
		Query: req.Query,
	})

	results, err := d.engine.Search(ctx, req.Query, req.TopN)
	if err != nil {
		d.observe(analytics.KindSearch, req.Query, 0, start, requestID, true)
		logger.FromContext(ctx).Error("search failed", "error", err)
		return d.errorFrame(apperrors.WireCode(err), err.Error())
	}
	d.observe(analytics.KindSearch, req.Query, len(results), start, requestID, false)
	logger.FromContext(ctx).Debug("search served", "top_n", req.TopN, "results", len(results))
	return d.encode(protocol.TypeSearchResponse, protocol.SearchResponse{
		Query:     req.Query,
		Timestamp: time.Now().Unix(),
		Total:     len(results),
		Results:   results,
	})
}

func (d *Dispatcher) encode(t protocol.MessageType, payload any) []byte {
	data, err := protocol.EncodeJSON(t, payload)
	if err != nil {
		d.logger.Error("response encoding failed", "type", fmt.Sprintf("%#04x", uint16(t)), "error", err)
		return d.errorFrame(apperrors.CodeInternal, "response encoding failed")
	}
	return data
}

func (d *Dispatcher) errorFrame(code int, message string) []byte {
	if d.metrics != nil {
		d.metrics.RequestErrors.WithLabelValues(strconv.Itoa(code)).Inc()
	}
	data, err := protocol.EncodeJSON(protocol.TypeError, protocol.ErrorResponse{
		Error:     message,
		Code:      code,
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		// a plain-string error payload cannot fail to marshal
		d.logger.Error("error frame encoding failed", "error", err)
		return protocol.Encode(protocol.Frame{Type: protocol.TypeError})
	}
	return data
}

func (d *Dispatcher) observe(kind analytics.EventKind, query string, results int, start time.Time, requestID string, failed bool) {
	elapsed := time.Since(start)
	if d.metrics != nil {
		d.metrics.RequestsTotal.WithLabelValues(string(kind)).Inc()
		d.metrics.RequestDuration.WithLabelValues(string(kind)).Observe(elapsed.Seconds())
		d.metrics.ResultsCount.WithLabelValues(string(kind)).Observe(float64(results))
		d.publishCacheStats()
	}
	if d.collector != nil {
		d.collector.Track(analytics.QueryEvent{
			Kind:      kind,
			Query:     query,
			Results:   results,
			LatencyMs: elapsed.Milliseconds(),
			Failed:    failed,
			RequestID: requestID,
			Timestamp: time.Now().UTC(),
		})
	}
}

// publishCacheStats feeds the prometheus counters from the engines'
// cumulative cache counters, publishing only the delta since the last
// request.
func (d *Dispatcher) publishCacheStats() {
	d.statsMu.Lock()
	defer d.statsMu.Unlock()
	apply := func(name string, cur cache.Stats, last *cache.Stats) {
		if cur.Hits > last.Hits {
			d.metrics.CacheHitsTotal.WithLabelValues(name).Add(float64(cur.Hits - last.Hits))
		}
		if cur.Misses > last.Misses {
			d.metrics.CacheMissesTotal.WithLabelValues(name).Add(float64(cur.Misses - last.Misses))
		}
		*last = cur
	}
	apply("search", d.engine.CacheStats(), &d.lastSearch)
	recResults, recDistances := d.recommender.CacheStats()
	apply("recommend", recResults, &d.lastRecommend)
	apply("edit_distance", recDistances, &d.lastDistance)
}

// CacheStatsSummary returns the engines' cumulative cache counters for
// logging at shutdown.
func (d *Dispatcher) CacheStatsSummary() map[string]cache.Stats {
	recResults, recDistances := d.recommender.CacheStats()
	return map[string]cache.Stats{
		"search":        d.engine.CacheStats(),
		"recommend":     recResults,
		"edit_distance": recDistances,
	}
}
