package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"contract-qa-platform/internal/logger"
	"contract-qa-platform/models"
)

// QueryCache memoizes full query responses in Redis. Entries expire
// on a short TTL rather than being invalidated on reindex, so a
// recently reindexed document can serve a stale answer for at most
// one TTL window. Cache failures never fail the query.
type QueryCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewQueryCache(rdb *redis.Client, ttl time.Duration) *QueryCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &QueryCache{rdb: rdb, ttl: ttl}
}

// Get returns the cached response for this question and document
// selection, if any.
func (qc *QueryCache) Get(ctx context.Context, question string, documentIDs []string) (*models.QueryResponse, bool) {
	data, err := qc.rdb.Get(ctx, queryCacheKey(question, documentIDs)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		logger.Debug("Query cache read failed", "error", err)
		return nil, false
	}

	var resp models.QueryResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		logger.Debug("Query cache entry corrupt", "error", err)
		return nil, false
	}
	return &resp, true
}

// Set stores a response for later identical queries
func (qc *QueryCache) Set(ctx context.Context, question string, documentIDs []string, resp *models.QueryResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		return
	}
	if err := qc.rdb.Set(ctx, queryCacheKey(question, documentIDs), data, qc.ttl).Err(); err != nil {
		logger.Debug("Query cache write failed", "error", err)
	}
}

// queryCacheKey is stable under document id ordering and question
// whitespace or casing differences.
func queryCacheKey(question string, documentIDs []string) string {
	ids := append([]string{}, documentIDs...)
	sort.Strings(ids)

	h := sha256.New()
	h.Write([]byte(strings.ToLower(normalizeWhitespace(question))))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(ids, ",")))

	return "query_cache:" + hex.EncodeToString(h.Sum(nil))
}
