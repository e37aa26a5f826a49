package toolregistry

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
)

// pageCache holds oversized tool results keyed by a result_id independent of
// any Conversation, so a page survives compaction or truncation of the turn
// that produced it.
type pageCache struct {
	mu      sync.Mutex
	entries map[string][]string // result_id -> pages
}

func newPageCache() *pageCache {
	return &pageCache{entries: make(map[string][]string)}
}

// store saves text under a fresh result_id if it exceeds maxInline,
// returning either text unchanged or a truncated first page with a pointer
// to read_more.
func (c *pageCache) store(text string, maxInline, pageSize int) string {
	if len(text) <= maxInline {
		return text
	}

	id := newResultID()
	pages := paginate(text, pageSize)

	c.mu.Lock()
	c.entries[id] = pages
	c.mu.Unlock()

	return fmt.Sprintf("%s\n[truncated; call read_more(result_id=%q, page=2) for more]", pages[0], id)
}

// read returns the 1-indexed page of result_id, and whether a further page
// follows it.
func (c *pageCache) read(resultID string, page int) (text string, hasMore bool, err error) {
	if page < 1 {
		return "", false, fmt.Errorf("toolregistry: page must be >= 1, got %d", page)
	}

	c.mu.Lock()
	pages, ok := c.entries[resultID]
	c.mu.Unlock()
	if !ok {
		return "", false, fmt.Errorf("toolregistry: unknown result_id %q", resultID)
	}
	if page > len(pages) {
		return "", false, fmt.Errorf("toolregistry: result_id %q has no page %d (of %d)", resultID, page, len(pages))
	}
	return pages[page-1], page < len(pages), nil
}

func paginate(text string, pageSize int) []string {
	if pageSize <= 0 {
		pageSize = PageBytes
	}
	var pages []string
	for len(text) > 0 {
		n := pageSize
		if n > len(text) {
			n = len(text)
		}
		pages = append(pages, text[:n])
		text = text[n:]
	}
	if len(pages) == 0 {
		pages = []string{""}
	}
	return pages
}

func newResultID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
