package models

// Instrument describes one tradable asset from the platform catalog.
// The catalog arrives as a periodic full push; instruments are immutable
// snapshots replaced wholesale on each push.
type Instrument struct {
	ID          int64
	Symbol      string
	Name        string
	Open        bool
	Payout      int // percent, 1-minute timeframe
	Payout5     int // percent, 5-minute timeframe
	TurboPayout int // percent, turbo options
}

// Catalog is an immutable instrument snapshot keyed by symbol.
type Catalog struct {
	bySymbol map[string]Instrument
	order    []string
}

// NewCatalog builds a catalog snapshot from a full instrument push.
func NewCatalog(instruments []Instrument) *Catalog {
	c := &Catalog{bySymbol: make(map[string]Instrument, len(instruments))}
	for _, in := range instruments {
		if _, dup := c.bySymbol[in.Symbol]; !dup {
			c.order = append(c.order, in.Symbol)
		}
		c.bySymbol[in.Symbol] = in
	}
	return c
}

// Lookup returns the instrument for a symbol.
func (c *Catalog) Lookup(symbol string) (Instrument, bool) {
	if c == nil {
		return Instrument{}, false
	}
	in, ok := c.bySymbol[symbol]
	return in, ok
}

// Symbols returns all catalog symbols in push order.
func (c *Catalog) Symbols() []string {
	if c == nil {
		return nil
	}
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// All returns all instruments in push order.
func (c *Catalog) All() []Instrument {
	if c == nil {
		return nil
	}
	out := make([]Instrument, 0, len(c.order))
	for _, sym := range c.order {
		out = append(out, c.bySymbol[sym])
	}
	return out
}

// Len returns the number of instruments in the snapshot.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.order)
}
