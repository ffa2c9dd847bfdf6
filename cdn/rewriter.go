// Package cdn rewrites media URLs onto a caching CDN host and manages the
// Cloudflare page rule that makes that host cache everything.
package cdn

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/url"
	"path"
	"sort"

	"github.com/patrickmn/go-cache"

	"github.com/jaym/shelf/metrics"
)

const (
	defaultExt      = ".mp4"
	hashLen         = 8
	entryPreviewLen = 50
)

// Rewriter maps original media URLs to
// https://{domain}/video/{hash}{ext}?origin={original}. A nil Rewriter or
// one without a domain returns URLs unchanged.
type Rewriter struct {
	domain string
	cache  *cache.Cache
}

func NewRewriter(domain string) *Rewriter {
	return &Rewriter{
		domain: domain,
		cache:  cache.New(cache.NoExpiration, 0),
	}
}

func (r *Rewriter) Enabled() bool { return r != nil && r.domain != "" }

func (r *Rewriter) Domain() string {
	if r == nil {
		return ""
	}
	return r.domain
}

// Rewrite returns the CDN URL for original. Unparsable or relative URLs
// come back unchanged.
func (r *Rewriter) Rewrite(original string) string {
	if !r.Enabled() || original == "" {
		return original
	}
	if cached, ok := r.cache.Get(original); ok {
		metrics.CDNRewrites.WithLabelValues("hit").Inc()
		return cached.(string)
	}

	u, err := url.Parse(original)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return original
	}
	ext := path.Ext(u.Path)
	if ext == "" {
		ext = defaultExt
	}
	sum := md5.Sum([]byte(original))
	hash := hex.EncodeToString(sum[:])[:hashLen]
	rewritten := fmt.Sprintf("https://%s/video/%s%s?origin=%s", r.domain, hash, ext, url.QueryEscape(original))

	r.cache.Set(original, rewritten, cache.NoExpiration)
	metrics.CDNRewrites.WithLabelValues("miss").Inc()
	metrics.CDNCacheSize.Set(float64(r.cache.ItemCount()))
	return rewritten
}

// Clear drops every cached rewrite.
func (r *Rewriter) Clear() {
	if r == nil {
		return
	}
	r.cache.Flush()
	metrics.CDNCacheSize.Set(0)
}

func (r *Rewriter) Len() int {
	if r == nil {
		return 0
	}
	return r.cache.ItemCount()
}

// Entry is one cached rewrite, with both URLs shortened for display.
type Entry struct {
	Original string `json:"original"`
	CDN      string `json:"cdn"`
}

// Entries lists cached rewrites ordered by original URL.
func (r *Rewriter) Entries() []Entry {
	entries := []Entry{}
	if r == nil {
		return entries
	}
	for original, item := range r.cache.Items() {
		entries = append(entries, Entry{Original: preview(original), CDN: preview(item.Object.(string))})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Original < entries[j].Original })
	return entries
}

func preview(s string) string {
	if len(s) > entryPreviewLen {
		return s[:entryPreviewLen] + "..."
	}
	return s
}
