// Package registry holds the canonical company name to ticker mapping and the
// normalised lookup index built over it.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
)

var (
	// ErrDuplicateTicker indicates two records share a ticker.
	ErrDuplicateTicker = errors.New("registry: duplicate ticker")
	// ErrDuplicateName indicates two records share an official name.
	ErrDuplicateName = errors.New("registry: duplicate official name")
)

// TickerRecord is one listed company.
type TickerRecord struct {
	OfficialName string
	Ticker       string
	Sector       string
}

// Registry is an immutable snapshot of ticker records. A nil Registry behaves
// as an empty one.
type Registry struct {
	records []TickerRecord
	index   map[string]int
	tickers map[string]int
	blocked map[string]struct{}
}

// New builds a registry snapshot. Records are sorted by official name; the
// blocklist is stored under its normalised keys.
func New(records []TickerRecord, blocklist []string) (*Registry, error) {
	sorted := make([]TickerRecord, 0, len(records))
	seenTicker := make(map[string]struct{}, len(records))
	seenName := make(map[string]struct{}, len(records))
	for _, rec := range records {
		rec.OfficialName = strings.TrimSpace(rec.OfficialName)
		rec.Ticker = strings.ToUpper(strings.TrimSpace(rec.Ticker))
		rec.Sector = strings.TrimSpace(rec.Sector)
		if rec.OfficialName == "" || rec.Ticker == "" {
			continue
		}
		if _, ok := seenTicker[rec.Ticker]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTicker, rec.Ticker)
		}
		if _, ok := seenName[rec.OfficialName]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateName, rec.OfficialName)
		}
		seenTicker[rec.Ticker] = struct{}{}
		seenName[rec.OfficialName] = struct{}{}
		sorted = append(sorted, rec)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].OfficialName < sorted[j].OfficialName })

	r := &Registry{
		records: sorted,
		index:   make(map[string]int, len(sorted)*2),
		tickers: make(map[string]int, len(sorted)),
		blocked: make(map[string]struct{}, len(blocklist)),
	}

	// key A 全部写入后再补 key B，保证 key A 永不被遮蔽。
	for i, rec := range sorted {
		r.tickers[rec.Ticker] = i
		if key := Normalize(rec.OfficialName); key != "" {
			if _, ok := r.index[key]; !ok {
				r.index[key] = i
			}
		}
	}
	for i, rec := range sorted {
		if key := StripSuffixes(Normalize(rec.OfficialName)); key != "" {
			if _, ok := r.index[key]; !ok {
				r.index[key] = i
			}
		}
	}

	for _, name := range blocklist {
		if key := Normalize(name); key != "" {
			r.blocked[key] = struct{}{}
		}
	}
	return r, nil
}

// Empty returns a registry with no records that still honours the blocklist.
func Empty(blocklist []string) *Registry {
	r, _ := New(nil, blocklist)
	return r
}

// LookupExact resolves text through the normalised index, trying the full key
// before the suffix-stripped one.
func (r *Registry) LookupExact(text string) (TickerRecord, bool) {
	if r == nil || len(r.records) == 0 {
		return TickerRecord{}, false
	}
	key := Normalize(text)
	if key == "" {
		return TickerRecord{}, false
	}
	if i, ok := r.index[key]; ok {
		return r.records[i], true
	}
	if i, ok := r.index[StripSuffixes(key)]; ok {
		return r.records[i], true
	}
	return TickerRecord{}, false
}

// ByTicker returns the record for ticker.
func (r *Registry) ByTicker(ticker string) (TickerRecord, bool) {
	if r == nil {
		return TickerRecord{}, false
	}
	i, ok := r.tickers[strings.ToUpper(strings.TrimSpace(ticker))]
	if !ok {
		return TickerRecord{}, false
	}
	return r.records[i], true
}

// IsBlocked reports whether text names a blocklisted entity.
func (r *Registry) IsBlocked(text string) bool {
	if r == nil || len(r.blocked) == 0 {
		return false
	}
	_, ok := r.blocked[Normalize(text)]
	return ok
}

// Records returns the records ordered by official name. Callers must not modify
// the returned slice.
func (r *Registry) Records() []TickerRecord {
	if r == nil {
		return nil
	}
	return r.records
}

// Len reports the number of records.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.records)
}

// Holder publishes registry snapshots to concurrent readers. Replace swaps the
// whole snapshot; there is no partial update.
type Holder struct {
	current atomic.Pointer[Registry]
}

// NewHolder wraps an initial snapshot.
func NewHolder(initial *Registry) *Holder {
	h := &Holder{}
	h.Replace(initial)
	return h
}

// Load returns the current snapshot, never nil.
func (h *Holder) Load() *Registry {
	if h == nil {
		return Empty(nil)
	}
	if r := h.current.Load(); r != nil {
		return r
	}
	return Empty(nil)
}

// Replace installs a new snapshot.
func (h *Holder) Replace(r *Registry) {
	if r == nil {
		r = Empty(nil)
	}
	h.current.Store(r)
}
