package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"AssistChat/internal/backend"
)

// CachedResponse represents a cached generation
type CachedResponse struct {
	Response  string
	Timestamp time.Time
}

// Key derives a cache key from everything that shapes a generation
func Key(req backend.Request) string {
	h := sha256.New()
	h.Write([]byte(req.Prompt))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(req.MaxTokens)))
	for _, s := range req.Stop {
		h.Write([]byte{0})
		h.Write([]byte(s))
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Generator serves repeated prompts from memory. Only successful
// generations are stored.
type Generator struct {
	next   backend.Generator
	store  *gocache.Cache
	logger *slog.Logger
}

// New wraps next with a cache whose entries live for ttl
func New(next backend.Generator, ttl time.Duration, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		next:   next,
		store:  gocache.New(ttl, 2*ttl),
		logger: logger,
	}
}

// Generate returns a cached response or calls the wrapped generator
func (g *Generator) Generate(ctx context.Context, req backend.Request) (string, error) {
	key := Key(req)
	if val, ok := g.store.Get(key); ok {
		cached := val.(CachedResponse)
		g.logger.Info("cache hit", "key", key[:16])
		return cached.Response, nil
	}

	text, err := g.next.Generate(ctx, req)
	if err != nil {
		return "", err
	}

	g.store.SetDefault(key, CachedResponse{Response: text, Timestamp: time.Now()})
	g.logger.Info("cached response", "key", key[:16])
	return text, nil
}

// Len returns the number of live entries
func (g *Generator) Len() int {
	return g.store.ItemCount()
}
