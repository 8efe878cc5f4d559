package terminal

import (
	"errors"
	"fmt"
	"math"
)

// Order states
const (
	OrderStatePlaced   = 1
	OrderStateCanceled = 2
	OrderStateFilled   = 4
)

// Deal entries
const (
	DealEntryIn  = 0
	DealEntryOut = 1
)

var errNoConnection = errors.New("no IPC connection")

// OrdersTotal returns the number of pending orders.
func (t *Terminal) OrdersTotal() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.ready() {
		return 0
	}
	return len(t.orders)
}

// OrdersGet returns pending orders, optionally only those on symbol.
func (t *Terminal) OrdersGet(symbol ...string) []TradeOrder {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.ready() {
		return nil
	}
	out := []TradeOrder{}
	for _, o := range t.orders {
		if len(symbol) == 0 || symbol[0] == "" || o.Symbol == symbol[0] {
			out = append(out, *o)
		}
	}
	return out
}

// PositionsTotal returns the number of open positions.
func (t *Terminal) PositionsTotal() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.ready() {
		return 0
	}
	return len(t.positions)
}

// PositionsGet returns open positions, optionally only those on symbol.
func (t *Terminal) PositionsGet(symbol ...string) []TradePosition {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.ready() {
		return nil
	}
	now := t.now().Unix()
	out := []TradePosition{}
	for _, p := range t.positions {
		if len(symbol) == 0 || symbol[0] == "" || p.Symbol == symbol[0] {
			cp := *p
			cp.PriceCurrent, cp.Profit = t.mark(p, now)
			out = append(out, cp)
		}
	}
	return out
}

// HistoryOrdersTotal returns the number of historical orders set up between
// dateFrom and dateTo.
func (t *Terminal) HistoryOrdersTotal(dateFrom, dateTo int64) int {
	return len(t.HistoryOrdersGet(dateFrom, dateTo))
}

// HistoryOrdersGet returns historical orders set up between dateFrom and
// dateTo.
func (t *Terminal) HistoryOrdersGet(dateFrom, dateTo int64) []TradeOrder {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.ready() {
		return nil
	}
	out := []TradeOrder{}
	for _, o := range t.history {
		if o.TimeSetup >= dateFrom && o.TimeSetup <= dateTo {
			out = append(out, *o)
		}
	}
	return out
}

// HistoryDealsTotal returns the number of deals between dateFrom and dateTo.
func (t *Terminal) HistoryDealsTotal(dateFrom, dateTo int64) int {
	return len(t.HistoryDealsGet(dateFrom, dateTo))
}

// HistoryDealsGet returns the deals between dateFrom and dateTo.
func (t *Terminal) HistoryDealsGet(dateFrom, dateTo int64) []TradeDeal {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.ready() {
		return nil
	}
	out := []TradeDeal{}
	for _, d := range t.deals {
		if d.Time >= dateFrom && d.Time <= dateTo {
			out = append(out, *d)
		}
	}
	return out
}

// OrderCalcMargin returns the margin in account currency required for a
// market order.
func (t *Terminal) OrderCalcMargin(action int, symbol string, volume, price float64) (float64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, err := t.calcSymbol(action, symbol, volume)
	if err != nil {
		return 0, err
	}
	return margin(s, volume, price), nil
}

// OrderCalcProfit returns the profit in account currency of a market order
// opened at priceOpen and closed at priceClose.
func (t *Terminal) OrderCalcProfit(action int, symbol string, volume, priceOpen, priceClose float64) (float64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, err := t.calcSymbol(action, symbol, volume)
	if err != nil {
		return 0, err
	}
	return profit(s, action, volume, priceOpen, priceClose), nil
}

// OrderCheck validates a trade request and reports the account state the
// trade would leave behind.
func (t *Terminal) OrderCheck(req TradeRequest) *OrderCheckResult {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.ready() {
		return nil
	}
	retcode, comment, required := t.check(&req)

	equity := t.balance + t.floatingProfit()
	used := t.usedMargin() + required
	level := 0.0
	if used > 0 {
		level = round(equity/used*100, 2)
	}
	if retcode == RetcodeDone {
		retcode = 0
	}
	return &OrderCheckResult{
		Retcode:     retcode,
		Balance:     t.balance,
		Equity:      equity,
		Profit:      t.floatingProfit(),
		Margin:      used,
		MarginFree:  round(equity-used, 2),
		MarginLevel: level,
		Comment:     comment,
		Request:     req,
	}
}

// OrderSend executes a trade request.
func (t *Terminal) OrderSend(req TradeRequest) *OrderSendResult {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.ready() {
		return nil
	}

	res := &OrderSendResult{RequestID: t.nextRequest, Request: req}
	t.nextRequest++

	retcode, comment, _ := t.check(&req)
	res.Request = req
	if retcode != RetcodeDone {
		res.Retcode = retcode
		res.Comment = comment
		return res
	}

	now := t.now().Unix()
	if s, ok := t.symbols[req.Symbol]; ok {
		tick := t.tickAt(s, now)
		res.Bid, res.Ask = tick.Bid, tick.Ask
	}

	switch req.Action {
	case ActionDeal:
		t.deal(&req, res, now)
	case ActionPending:
		o := &TradeOrder{
			Ticket:        t.ticket(),
			TimeSetup:     now,
			Type:          req.Type,
			State:         OrderStatePlaced,
			Magic:         req.Magic,
			VolumeInitial: req.Volume,
			PriceOpen:     req.Price,
			SL:            req.SL,
			TP:            req.TP,
			Symbol:        req.Symbol,
			Comment:       req.Comment,
		}
		t.orders = append(t.orders, o)
		res.Retcode = RetcodePlaced
		res.Order = o.Ticket
		res.Volume = req.Volume
		res.Price = req.Price
		res.Comment = "Request placed"
	case ActionRemove:
		for i, o := range t.orders {
			if o.Ticket == req.Order {
				t.orders = append(t.orders[:i], t.orders[i+1:]...)
				o.State = OrderStateCanceled
				o.TimeDone = now
				t.history = append(t.history, o)
				break
			}
		}
		res.Retcode = RetcodeDone
		res.Order = req.Order
		res.Comment = "Request executed"
	case ActionSLTP:
		if p := t.position(req.Position); p != nil {
			p.SL, p.TP = req.SL, req.TP
		}
		res.Retcode = RetcodeDone
		res.Comment = "Request executed"
	}
	return res
}

// deal fills a market order, opening a position or closing the one named by
// req.Position. Callers hold mu and have validated req.
func (t *Terminal) deal(req *TradeRequest, res *OrderSendResult, now int64) {
	order := &TradeOrder{
		Ticket:        t.ticket(),
		TimeSetup:     now,
		TimeDone:      now,
		Type:          req.Type,
		State:         OrderStateFilled,
		Magic:         req.Magic,
		VolumeInitial: req.Volume,
		PriceOpen:     req.Price,
		Symbol:        req.Symbol,
		Comment:       req.Comment,
	}
	t.history = append(t.history, order)

	d := &TradeDeal{
		Ticket:  t.ticket(),
		Order:   order.Ticket,
		Time:    now,
		Type:    req.Type,
		Magic:   req.Magic,
		Volume:  req.Volume,
		Price:   req.Price,
		Symbol:  req.Symbol,
		Comment: req.Comment,
	}

	if p := t.position(req.Position); p != nil {
		d.Entry = DealEntryOut
		d.Position = p.Ticket
		d.Profit = profit(t.symbols[p.Symbol], p.Type, p.Volume, p.PriceOpen, req.Price)
		t.balance = round(t.balance+d.Profit, 2)
		t.removePosition(p.Ticket)
	} else {
		d.Entry = DealEntryIn
		p := &TradePosition{
			Ticket:    order.Ticket,
			Time:      now,
			Type:      req.Type,
			Magic:     req.Magic,
			Volume:    req.Volume,
			PriceOpen: req.Price,
			SL:        req.SL,
			TP:        req.TP,
			Symbol:    req.Symbol,
			Comment:   req.Comment,
		}
		p.Identifier = p.Ticket
		d.Position = p.Ticket
		t.positions = append(t.positions, p)
	}
	t.deals = append(t.deals, d)

	res.Retcode = RetcodeDone
	res.Deal = d.Ticket
	res.Order = order.Ticket
	res.Volume = req.Volume
	res.Price = req.Price
	res.Comment = "Request executed"
}

// check validates req, filling a market price when none is given. It
// returns RetcodeDone and the margin the request needs when it would
// succeed. Callers hold mu.
func (t *Terminal) check(req *TradeRequest) (retcode int, comment string, required float64) {
	s, ok := t.symbols[req.Symbol]
	if !ok && req.Action != ActionRemove {
		return RetcodeInvalid, "Invalid request", 0
	}

	switch req.Action {
	case ActionDeal:
		if req.Type != OrderTypeBuy && req.Type != OrderTypeSell {
			return RetcodeInvalid, "Invalid order type", 0
		}
		if !validVolume(s, req.Volume) {
			return RetcodeInvalidVolume, "Invalid volume", 0
		}
		if req.Price == 0 {
			tick := t.tickAt(s, t.now().Unix())
			req.Price = tick.Ask
			if req.Type == OrderTypeSell {
				req.Price = tick.Bid
			}
		}
		if req.Position != 0 {
			if t.position(req.Position) == nil {
				return RetcodeInvalid, "Position not found", 0
			}
			return RetcodeDone, "Done", 0
		}
		required = margin(s, req.Volume, req.Price)
		free := t.balance + t.floatingProfit() - t.usedMargin()
		if required > free {
			return RetcodeNoMoney, "No money", required
		}
		return RetcodeDone, "Done", required
	case ActionPending:
		if req.Type < OrderTypeBuyLimit || req.Type > OrderTypeSellStop {
			return RetcodeInvalid, "Invalid order type", 0
		}
		if !validVolume(s, req.Volume) {
			return RetcodeInvalidVolume, "Invalid volume", 0
		}
		if req.Price <= 0 {
			return RetcodeInvalidPrice, "Invalid price", 0
		}
		return RetcodeDone, "Done", 0
	case ActionRemove:
		for _, o := range t.orders {
			if o.Ticket == req.Order {
				return RetcodeDone, "Done", 0
			}
		}
		return RetcodeInvalidOrder, "Invalid order", 0
	case ActionSLTP:
		if t.position(req.Position) == nil {
			return RetcodeInvalid, "Position not found", 0
		}
		return RetcodeDone, "Done", 0
	default:
		return RetcodeInvalid, "Unsupported trade action", 0
	}
}

func (t *Terminal) calcSymbol(action int, symbol string, volume float64) (*SymbolInfo, error) {
	if !t.ready() {
		return nil, errNoConnection
	}
	s, ok := t.symbols[symbol]
	if !ok {
		t.setErr(ErrCodeNotFound, "Symbol not found")
		return nil, fmt.Errorf("symbol %s not found", symbol)
	}
	if action != OrderTypeBuy && action != OrderTypeSell {
		t.setErr(ErrCodeInvalidParams, "Invalid params")
		return nil, fmt.Errorf("unsupported order type %d", action)
	}
	if volume <= 0 {
		t.setErr(ErrCodeInvalidParams, "Invalid params")
		return nil, fmt.Errorf("invalid volume %v", volume)
	}
	return s, nil
}

func (t *Terminal) position(ticket int64) *TradePosition {
	if ticket == 0 {
		return nil
	}
	for _, p := range t.positions {
		if p.Ticket == ticket {
			return p
		}
	}
	return nil
}

func (t *Terminal) removePosition(ticket int64) {
	for i, p := range t.positions {
		if p.Ticket == ticket {
			t.positions = append(t.positions[:i], t.positions[i+1:]...)
			return
		}
	}
}

// mark returns the closing price and floating profit of p at sec.
func (t *Terminal) mark(p *TradePosition, sec int64) (price, pnl float64) {
	s := t.symbols[p.Symbol]
	tick := t.tickAt(s, sec)
	price = tick.Bid
	if p.Type == OrderTypeSell {
		price = tick.Ask
	}
	return price, profit(s, p.Type, p.Volume, p.PriceOpen, price)
}

func (t *Terminal) floatingProfit() float64 {
	now := t.now().Unix()
	total := 0.0
	for _, p := range t.positions {
		_, pnl := t.mark(p, now)
		total += pnl
	}
	return round(total, 2)
}

func (t *Terminal) usedMargin() float64 {
	total := 0.0
	for _, p := range t.positions {
		total += margin(t.symbols[p.Symbol], p.Volume, p.PriceOpen)
	}
	return round(total, 2)
}

// margin converts the notional value of a trade to account currency at the
// demo leverage.
func margin(s *SymbolInfo, volume, price float64) float64 {
	notional := volume * s.ContractSize
	if s.CurrencyBase != "USD" {
		notional *= price
	}
	return round(notional/demoLeverage, 2)
}

func profit(s *SymbolInfo, orderType int, volume, priceOpen, priceClose float64) float64 {
	diff := priceClose - priceOpen
	if orderType == OrderTypeSell {
		diff = -diff
	}
	pnl := diff * volume * s.ContractSize
	if s.CurrencyProfit != "USD" && priceClose != 0 {
		pnl /= priceClose
	}
	return round(pnl, 2)
}

func validVolume(s *SymbolInfo, volume float64) bool {
	if volume < s.VolumeMin || volume > s.VolumeMax {
		return false
	}
	steps := volume / s.VolumeStep
	return math.Abs(steps-math.Round(steps)) < 1e-6
}
