package extraction

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/ahrav/go-kyc/internal/domain"
	"github.com/ahrav/go-kyc/internal/ports"
)

var _ ports.DocumentExtractor = (*CachingExtractor)(nil)

// CachingExtractor memoizes classification and extraction results by the
// SHA256 of the document bytes, so a file submitted twice in a run costs
// one model call per stage. Concurrent requests for the same document
// share a single call. Failed calls are not cached.
//
// WARNING: cached documents are shared between callers and must not be
// mutated.
type CachingExtractor struct {
	next ports.DocumentExtractor

	mu              sync.RWMutex
	classifications map[string]domain.Classification
	documents       map[string]domain.Document

	sf singleflight.Group
}

// NewCachingExtractor wraps next with an empty cache.
func NewCachingExtractor(next ports.DocumentExtractor) *CachingExtractor {
	if next == nil {
		panic("caching extractor: next extractor is required")
	}
	return &CachingExtractor{
		next:            next,
		classifications: make(map[string]domain.Classification),
		documents:       make(map[string]domain.Document),
	}
}

type classifyResult struct {
	classification domain.Classification
	usage          domain.Usage
}

type extractResult struct {
	doc   domain.Document
	usage domain.Usage
}

// Classify implements ports.DocumentExtractor. A cache hit reports zero usage.
func (c *CachingExtractor) Classify(ctx context.Context, src ports.Source) (*domain.Classification, domain.Usage, error) {
	key := "classify:" + contentHash(src.Data)

	c.mu.RLock()
	cached, ok := c.classifications[key]
	c.mu.RUnlock()
	if ok {
		return &cached, domain.Usage{}, nil
	}

	executed := false
	v, err, _ := c.sf.Do(key, func() (any, error) {
		c.mu.RLock()
		cached, ok := c.classifications[key]
		c.mu.RUnlock()
		if ok {
			return classifyResult{classification: cached}, nil
		}

		executed = true
		classification, usage, err := c.next.Classify(ctx, src)
		if err != nil {
			return classifyResult{usage: usage}, err
		}
		c.mu.Lock()
		c.classifications[key] = *classification
		c.mu.Unlock()
		return classifyResult{classification: *classification, usage: usage}, nil
	})
	res := v.(classifyResult)
	usage := res.usage
	if !executed {
		// Only the caller that made the call is charged for it.
		usage = domain.Usage{}
	}
	if err != nil {
		return nil, usage, err
	}
	classification := res.classification
	return &classification, usage, nil
}

// Extract implements ports.DocumentExtractor. A cache hit reports zero usage.
func (c *CachingExtractor) Extract(ctx context.Context, kind domain.Kind, src ports.Source) (domain.Document, domain.Usage, error) {
	key := "extract:" + string(kind) + ":" + contentHash(src.Data)

	c.mu.RLock()
	cached, ok := c.documents[key]
	c.mu.RUnlock()
	if ok {
		return cached, domain.Usage{}, nil
	}

	executed := false
	v, err, _ := c.sf.Do(key, func() (any, error) {
		c.mu.RLock()
		cached, ok := c.documents[key]
		c.mu.RUnlock()
		if ok {
			return extractResult{doc: cached}, nil
		}

		executed = true
		doc, usage, err := c.next.Extract(ctx, kind, src)
		if err != nil {
			return extractResult{usage: usage}, err
		}
		c.mu.Lock()
		c.documents[key] = doc
		c.mu.Unlock()
		return extractResult{doc: doc, usage: usage}, nil
	})
	res := v.(extractResult)
	usage := res.usage
	if !executed {
		usage = domain.Usage{}
	}
	if err != nil {
		return nil, usage, err
	}
	return res.doc, usage, nil
}

// Len returns the number of cached entries.
func (c *CachingExtractor) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.classifications) + len(c.documents)
}

// Clear drops every cached entry.
func (c *CachingExtractor) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.classifications = make(map[string]domain.Classification)
	c.documents = make(map[string]domain.Document)
}

func contentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
