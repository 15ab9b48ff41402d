package wotd

// DailyWordCache keeps at most one payload, tagged with the date it was
// generated for. A payload whose date is not today is treated as absent.
//
// Only the engine's tick goroutine touches it; there is no locking.
type DailyWordCache struct {
	date    Date
	payload WordPayload
	set     bool
}

func NewDailyWordCache() *DailyWordCache {
	return &DailyWordCache{}
}

// Get returns the cached payload if it was stored for today.
func (c *DailyWordCache) Get(today Date) (WordPayload, bool) {
	if !c.set || c.date != today {
		return WordPayload{}, false
	}
	return c.payload, true
}

// Set overwrites the cache unconditionally.
func (c *DailyWordCache) Set(today Date, p WordPayload) {
	c.date = today
	c.payload = p
	c.set = true
}

func (c *DailyWordCache) Clear() {
	*c = DailyWordCache{}
}

// Date returns the date of the stored payload, if any, regardless of
// staleness.
func (c *DailyWordCache) Date() (Date, bool) {
	return c.date, c.set
}
