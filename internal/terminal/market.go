package terminal

import (
	"fmt"
	"math"
	"path"
	"strings"
)

// Timeframes
const (
	TimeframeM1  = 1
	TimeframeM5  = 5
	TimeframeM15 = 15
	TimeframeM30 = 30
	TimeframeH1  = 16385
	TimeframeH4  = 16388
	TimeframeD1  = 16408
)

// maxBars bounds the number of bars or ticks a single copy call returns.
const maxBars = 100000

var timeframeSeconds = map[int]int64{
	TimeframeM1:  60,
	TimeframeM5:  300,
	TimeframeM15: 900,
	TimeframeM30: 1800,
	TimeframeH1:  3600,
	TimeframeH4:  14400,
	TimeframeD1:  86400,
}

func demoSymbols() []*SymbolInfo {
	fx := func(name, desc string, base float64, digits, spread int) *SymbolInfo {
		return &SymbolInfo{
			Name:           name,
			Description:    desc,
			Path:           "Forex\\" + name,
			Visible:        true,
			Select:         true,
			Digits:         digits,
			Spread:         spread,
			Point:          math.Pow(10, -float64(digits)),
			base:           base,
			VolumeMin:      0.01,
			VolumeMax:      100,
			VolumeStep:     0.01,
			ContractSize:   100000,
			CurrencyBase:   name[:3],
			CurrencyProfit: name[3:],
		}
	}
	gold := fx("XAUUSD", "Gold vs US Dollar", 2350.0, 2, 25)
	gold.Path = "Metals\\XAUUSD"
	gold.ContractSize = 100
	gold.Visible = false
	gold.Select = false

	return []*SymbolInfo{
		fx("EURUSD", "Euro vs US Dollar", 1.0850, 5, 10),
		fx("GBPUSD", "Great Britain Pound vs US Dollar", 1.2650, 5, 12),
		fx("USDJPY", "US Dollar vs Japanese Yen", 151.50, 3, 14),
		fx("AUDUSD", "Australian Dollar vs US Dollar", 0.6550, 5, 11),
		gold,
	}
}

// SymbolsTotal returns the number of known symbols.
func (t *Terminal) SymbolsTotal() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.ready() {
		return 0
	}
	return len(t.symbols)
}

// SymbolsGet returns the symbols whose names match group, a comma separated
// list of glob patterns where a leading "!" excludes. No group matches all.
func (t *Terminal) SymbolsGet(group ...string) []SymbolInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.ready() {
		return nil
	}
	pattern := "*"
	if len(group) > 0 && strings.TrimSpace(group[0]) != "" {
		pattern = group[0]
	}

	out := []SymbolInfo{}
	for _, s := range t.sortedSymbols() {
		if matchGroup(pattern, s.Name) {
			out = append(out, t.quoted(s))
		}
	}
	return out
}

// SymbolInfo returns the properties of symbol, or nil if it is unknown.
func (t *Terminal) SymbolInfo(symbol string) *SymbolInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.symbol(symbol)
	if s == nil {
		return nil
	}
	q := t.quoted(s)
	return &q
}

// SymbolInfoTick returns the last tick of symbol, or nil if it is unknown.
func (t *Terminal) SymbolInfoTick(symbol string) *Tick {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.symbol(symbol)
	if s == nil {
		return nil
	}
	now := t.now()
	tick := t.tickAt(s, now.Unix())
	tick.TimeMsc = now.UnixMilli()
	return &tick
}

// SymbolSelect shows or hides symbol in Market Watch. enable defaults to true.
func (t *Terminal) SymbolSelect(symbol string, enable ...bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.symbol(symbol)
	if s == nil {
		return false
	}
	on := len(enable) == 0 || enable[0]
	s.Select = on
	s.Visible = on
	return true
}

// CopyRatesFrom returns count bars ending at the bar containing dateFrom.
func (t *Terminal) CopyRatesFrom(symbol string, timeframe int, dateFrom int64, count int) *Rates {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, period, ok := t.barParams(symbol, timeframe, count)
	if !ok {
		return nil
	}
	end := align(dateFrom, period)
	return t.bars(s, period, end-int64(count-1)*period, count)
}

// CopyRatesFromPos returns count bars starting startPos bars back from the
// current bar.
func (t *Terminal) CopyRatesFromPos(symbol string, timeframe int, startPos, count int) *Rates {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, period, ok := t.barParams(symbol, timeframe, count)
	if !ok {
		return nil
	}
	if startPos < 0 {
		t.setErr(ErrCodeInvalidParams, "Invalid params")
		return nil
	}
	current := align(t.now().Unix(), period)
	end := current - int64(startPos)*period
	return t.bars(s, period, end-int64(count-1)*period, count)
}

// CopyRatesRange returns the bars opened between dateFrom and dateTo,
// inclusive.
func (t *Terminal) CopyRatesRange(symbol string, timeframe int, dateFrom, dateTo int64) *Rates {
	t.mu.Lock()
	defer t.mu.Unlock()
	if dateTo < dateFrom {
		t.setErr(ErrCodeInvalidParams, "Invalid params")
		return nil
	}
	period, known := timeframeSeconds[timeframe]
	if !known {
		t.setErr(ErrCodeInvalidParams, "Invalid timeframe")
		return nil
	}
	start := align(dateFrom, period)
	if start < dateFrom {
		start += period
	}
	count := 0
	if dateTo >= start {
		count = int((dateTo-start)/period) + 1
	}
	s, _, ok := t.barParams(symbol, timeframe, max(count, 1))
	if !ok {
		return nil
	}
	return t.bars(s, period, start, count)
}

// CopyTicksFrom returns up to count ticks starting at dateFrom, one per
// second, never past the current time.
func (t *Terminal) CopyTicksFrom(symbol string, dateFrom int64, count int, flags int) *Ticks {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.symbol(symbol)
	if s == nil {
		return nil
	}
	if count < 0 || count > maxBars {
		t.setErr(ErrCodeInvalidParams, "Invalid params")
		return nil
	}
	to := min(dateFrom+int64(count)-1, t.now().Unix())
	return t.ticks(s, dateFrom, to)
}

// CopyTicksRange returns the ticks between dateFrom and dateTo, one per
// second, never past the current time.
func (t *Terminal) CopyTicksRange(symbol string, dateFrom, dateTo int64, flags int) *Ticks {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.symbol(symbol)
	if s == nil {
		return nil
	}
	to := min(dateTo, t.now().Unix())
	if to-dateFrom >= maxBars {
		t.setErr(ErrCodeInvalidParams, "Invalid params")
		return nil
	}
	return t.ticks(s, dateFrom, to)
}

// MarketBookAdd subscribes to depth of market for symbol.
func (t *Terminal) MarketBookAdd(symbol string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.symbol(symbol) == nil {
		return false
	}
	t.books[symbol] = true
	return true
}

// MarketBookGet returns the depth of market for a subscribed symbol: five
// sell levels above five buy levels.
func (t *Terminal) MarketBookGet(symbol string) []BookEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.symbol(symbol)
	if s == nil {
		return nil
	}
	if !t.books[symbol] {
		t.setErr(ErrCodeNotFound, "Market book not subscribed")
		return nil
	}
	tick := t.tickAt(s, t.now().Unix())
	entries := make([]BookEntry, 0, 10)
	for i := 5; i >= 1; i-- {
		entries = append(entries, BookEntry{typ: 1, price: round(tick.Ask+float64(i-1)*s.Point, s.Digits), volume: float64(i * 10)})
	}
	for i := 1; i <= 5; i++ {
		entries = append(entries, BookEntry{typ: 2, price: round(tick.Bid-float64(i-1)*s.Point, s.Digits), volume: float64(i * 10)})
	}
	return entries
}

// MarketBookRelease cancels a depth of market subscription.
func (t *Terminal) MarketBookRelease(symbol string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.books[symbol] {
		return false
	}
	delete(t.books, symbol)
	return true
}

// symbol looks up a symbol on a connected terminal. Callers hold mu.
func (t *Terminal) symbol(name string) *SymbolInfo {
	if !t.ready() {
		return nil
	}
	s, ok := t.symbols[name]
	if !ok {
		t.setErr(ErrCodeNotFound, fmt.Sprintf("Terminal: symbol %s not found", name))
		return nil
	}
	return s
}

func (t *Terminal) barParams(symbol string, timeframe, count int) (*SymbolInfo, int64, bool) {
	s := t.symbol(symbol)
	if s == nil {
		return nil, 0, false
	}
	period, known := timeframeSeconds[timeframe]
	if !known {
		t.setErr(ErrCodeInvalidParams, "Invalid timeframe")
		return nil, 0, false
	}
	if count <= 0 || count > maxBars {
		t.setErr(ErrCodeInvalidParams, "Invalid params")
		return nil, 0, false
	}
	return s, period, true
}

// quoted returns a copy of s with the current bid and ask.
func (t *Terminal) quoted(s *SymbolInfo) SymbolInfo {
	tick := t.tickAt(s, t.now().Unix())
	q := *s
	q.Bid = tick.Bid
	q.Ask = tick.Ask
	return q
}

func (t *Terminal) bars(s *SymbolInfo, period, start int64, count int) *Rates {
	out := make([]Rate, 0, count)
	for i := 0; i < count; i++ {
		open := start + int64(i)*period
		o := priceAt(s, open)
		c := priceAt(s, open+period-1)
		mid := priceAt(s, open+period/2)
		hi := math.Max(math.Max(o, c), mid) + float64(s.Spread)*s.Point
		lo := math.Min(math.Min(o, c), mid) - float64(s.Spread)*s.Point
		out = append(out, Rate{
			Time:       open,
			Open:       round(o, s.Digits),
			High:       round(hi, s.Digits),
			Low:        round(lo, s.Digits),
			Close:      round(c, s.Digits),
			TickVolume: period / 2,
			Spread:     s.Spread,
		})
	}
	return &Rates{bars: out}
}

func (t *Terminal) ticks(s *SymbolInfo, from, to int64) *Ticks {
	out := []Tick{}
	for sec := from; sec <= to; sec++ {
		out = append(out, t.tickAt(s, sec))
	}
	return &Ticks{ticks: out}
}

func (t *Terminal) tickAt(s *SymbolInfo, sec int64) Tick {
	bid := round(priceAt(s, sec), s.Digits)
	return Tick{
		Time:    sec,
		Bid:     bid,
		Ask:     round(bid+float64(s.Spread)*s.Point, s.Digits),
		TimeMsc: sec * 1000,
		Flags:   6,
	}
}

// priceAt is a deterministic bid price: a daily swing with an hourly ripple
// around the symbol's base price.
func priceAt(s *SymbolInfo, sec int64) float64 {
	daily := math.Sin(2 * math.Pi * float64(sec%86400) / 86400)
	hourly := math.Sin(2 * math.Pi * float64(sec%3600) / 3600)
	return s.base * (1 + 0.002*daily + 0.0005*hourly)
}

func align(sec, period int64) int64 {
	r := sec % period
	if r < 0 {
		r += period
	}
	return sec - r
}

// matchGroup applies a terminal group filter such as "*USD*,!XAU*".
func matchGroup(group, name string) bool {
	matched := false
	for _, p := range strings.Split(group, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if strings.HasPrefix(p, "!") {
			if ok, _ := path.Match(p[1:], name); ok {
				return false
			}
			continue
		}
		if ok, _ := path.Match(p, name); ok {
			matched = true
		}
	}
	return matched
}
