package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/ccyingfu/q-alpha/internal/domain"
)

// BarCache is a local Parquet cache of daily bars, one file per asset. Each
// data file carries a JSON metadata sidecar recording when the cache entry
// was written, when it expires, and the date range it covers. Reads that miss
// the cache, cover an insufficient range, or hit an expired entry fall
// through to the upstream data source.
type BarCache struct {
	DataDir     string
	ExpireHours int
}

// NewBarCache creates a BarCache rooted at dataDir. Entries expire after
// expireHours; zero or negative means entries never expire.
func NewBarCache(dataDir string, expireHours int) *BarCache {
	return &BarCache{DataDir: dataDir, ExpireHours: expireHours}
}

// barRecord is the Parquet schema for cached daily bars.
type barRecord struct {
	Code   string  `parquet:"code"`
	Date   string  `parquet:"date"` // YYYY-MM-DD
	Open   float64 `parquet:"open"`
	High   float64 `parquet:"high"`
	Low    float64 `parquet:"low"`
	Close  float64 `parquet:"close"`
	Volume float64 `parquet:"volume"`
}

// cacheMeta is the JSON sidecar written next to each Parquet file.
type cacheMeta struct {
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"` // zero when entries never expire
	Rows      int       `json:"rows"`
	FirstDate string    `json:"first_date"`
	LastDate  string    `json:"last_date"`
}

// Layout: <dataDir>/cache/<type>/<code>.parquet
func (c *BarCache) dataPath(assetType domain.AssetType, code string) string {
	return filepath.Join(c.DataDir, "cache", string(assetType), code+".parquet")
}

func (c *BarCache) metaPath(assetType domain.AssetType, code string) string {
	return filepath.Join(c.DataDir, "cache", string(assetType), code+".meta.json")
}

// Get returns cached bars within [start, end] if the entry exists, is fresh,
// and its stored range covers the request. The second return value reports a
// usable cache hit.
func (c *BarCache) Get(assetType domain.AssetType, code string, start, end domain.Date) ([]domain.Bar, bool) {
	meta, err := c.readMeta(assetType, code)
	if err != nil {
		return nil, false
	}
	if !meta.ExpiresAt.IsZero() && time.Now().After(meta.ExpiresAt) {
		return nil, false
	}
	first, err1 := domain.ParseDate(meta.FirstDate)
	last, err2 := domain.ParseDate(meta.LastDate)
	if err1 != nil || err2 != nil {
		return nil, false
	}
	if start.Before(first) || end.After(last) {
		return nil, false
	}

	records, err := parquet.ReadFile[barRecord](c.dataPath(assetType, code))
	if err != nil {
		return nil, false
	}

	var bars []domain.Bar
	for _, r := range records {
		d, err := domain.ParseDate(r.Date)
		if err != nil {
			continue
		}
		if d.Before(start) || d.After(end) {
			continue
		}
		bars = append(bars, domain.Bar{
			Code:   r.Code,
			Date:   d,
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: r.Volume,
		})
	}
	return bars, true
}

// Put replaces the cache entry for an asset with the given bars and writes
// a fresh metadata sidecar. Empty input removes the entry.
func (c *BarCache) Put(assetType domain.AssetType, code string, bars []domain.Bar) error {
	if len(bars) == 0 {
		return c.Invalidate(assetType, code)
	}

	records := make([]barRecord, len(bars))
	for i, b := range bars {
		records[i] = barRecord{
			Code:   b.Code,
			Date:   b.Date.String(),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Date < records[j].Date })

	path := c.dataPath(assetType, code)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := parquet.WriteFile(path, records); err != nil {
		return fmt.Errorf("writing cache file for %q: %w", code, err)
	}

	now := time.Now().UTC()
	meta := cacheMeta{
		CreatedAt: now,
		Rows:      len(records),
		FirstDate: records[0].Date,
		LastDate:  records[len(records)-1].Date,
	}
	if c.ExpireHours > 0 {
		meta.ExpiresAt = now.Add(time.Duration(c.ExpireHours) * time.Hour)
	}
	return c.writeMeta(assetType, code, meta)
}

// Invalidate removes the cache entry for an asset, if present.
func (c *BarCache) Invalidate(assetType domain.AssetType, code string) error {
	for _, path := range []string{c.dataPath(assetType, code), c.metaPath(assetType, code)} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

func (c *BarCache) readMeta(assetType domain.AssetType, code string) (*cacheMeta, error) {
	data, err := os.ReadFile(c.metaPath(assetType, code))
	if err != nil {
		return nil, err
	}
	var meta cacheMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("decoding cache metadata for %q: %w", code, err)
	}
	return &meta, nil
}

func (c *BarCache) writeMeta(assetType domain.AssetType, code string, meta cacheMeta) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(c.metaPath(assetType, code), data, 0o644)
}
