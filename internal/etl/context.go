package etl

import (
	"sync"
	"time"

	"bondfeed-etl/internal/config"
	"bondfeed-etl/internal/models"
)

// Key names one slot of the per-day context.
type Key string

const (
	KeyCurrentDate          Key = "currentDate"
	KeyConfig               Key = "config"
	KeyCurrentSubprocess    Key = "currentSubprocess"
	KeyExtractedData        Key = "extractedData"
	KeyExtractedDataCount   Key = "extractedDataCount"
	KeyTransformedData      Key = "transformedData"
	KeyTransformedDataCount Key = "transformedDataCount"
	KeyLoadedDataCount      Key = "loadedDataCount"
	KeyValidationPassed     Key = "validationPassed"
	KeyValidationErrors     Key = "validationErrors"
	KeyCleanupPerformed     Key = "cleanupPerformed"
	KeyTargetSession        Key = "targetSession"
)

// Context is the per-day shared state. It is created fresh at the start of
// a day and discarded at day end. Subprocesses run strictly sequentially,
// but extract/transform workers may publish through their subprocess
// concurrently, so access is guarded.
type Context struct {
	mu     sync.RWMutex
	values map[Key]any
}

// NewContext seeds a fresh per-day context with the run config and date.
func NewContext(cfg *config.Config, date time.Time) *Context {
	c := &Context{values: make(map[Key]any)}
	c.set(KeyConfig, cfg)
	c.set(KeyCurrentDate, date)
	return c
}

func (c *Context) set(k Key, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[k] = v
}

func (c *Context) get(k Key) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[k]
	return v, ok
}

// Has reports whether a key has been written.
func (c *Context) Has(k Key) bool {
	_, ok := c.get(k)
	return ok
}

// Snapshot copies the current key set for diagnostics.
func (c *Context) Snapshot() map[Key]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[Key]any, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

func (c *Context) CurrentDate() time.Time {
	v, _ := c.get(KeyCurrentDate)
	d, _ := v.(time.Time)
	return d
}

func (c *Context) Config() *config.Config {
	v, _ := c.get(KeyConfig)
	cfg, _ := v.(*config.Config)
	return cfg
}

func (c *Context) SetCurrentSubprocess(t SubprocessType) { c.set(KeyCurrentSubprocess, t) }

func (c *Context) CurrentSubprocess() (SubprocessType, bool) {
	v, ok := c.get(KeyCurrentSubprocess)
	if !ok {
		return 0, false
	}
	t, ok := v.(SubprocessType)
	return t, ok
}

func (c *Context) SetExtractedData(records []models.SourceRecord) {
	c.set(KeyExtractedData, records)
	c.set(KeyExtractedDataCount, len(records))
}

func (c *Context) ExtractedData() ([]models.SourceRecord, bool) {
	v, ok := c.get(KeyExtractedData)
	if !ok {
		return nil, false
	}
	records, ok := v.([]models.SourceRecord)
	return records, ok
}

func (c *Context) ExtractedDataCount() int {
	v, _ := c.get(KeyExtractedDataCount)
	n, _ := v.(int)
	return n
}

func (c *Context) SetTransformedData(records []*models.TargetRecord) {
	c.set(KeyTransformedData, records)
	c.set(KeyTransformedDataCount, len(records))
}

func (c *Context) TransformedData() ([]*models.TargetRecord, bool) {
	v, ok := c.get(KeyTransformedData)
	if !ok {
		return nil, false
	}
	records, ok := v.([]*models.TargetRecord)
	return records, ok
}

func (c *Context) TransformedDataCount() int {
	v, _ := c.get(KeyTransformedDataCount)
	n, _ := v.(int)
	return n
}

func (c *Context) SetLoadedDataCount(n int) { c.set(KeyLoadedDataCount, n) }

func (c *Context) LoadedDataCount() int {
	v, _ := c.get(KeyLoadedDataCount)
	n, _ := v.(int)
	return n
}

func (c *Context) SetValidationResult(passed bool, errs []string) {
	c.set(KeyValidationPassed, passed)
	c.set(KeyValidationErrors, errs)
}

func (c *Context) ValidationPassed() (bool, bool) {
	v, ok := c.get(KeyValidationPassed)
	if !ok {
		return false, false
	}
	passed, ok := v.(bool)
	return passed, ok
}

func (c *Context) ValidationErrors() []string {
	v, _ := c.get(KeyValidationErrors)
	errs, _ := v.([]string)
	return errs
}

func (c *Context) SetCleanupPerformed(done bool) { c.set(KeyCleanupPerformed, done) }

func (c *Context) CleanupPerformed() bool {
	v, _ := c.get(KeyCleanupPerformed)
	done, _ := v.(bool)
	return done
}

// SetTargetSession parks the open target-store session so Clean can reuse
// the one Load opened. Stored as any to keep this package free of the
// columnar dependency.
func (c *Context) SetTargetSession(s any) { c.set(KeyTargetSession, s) }

func (c *Context) TargetSession() (any, bool) { return c.get(KeyTargetSession) }
