package terminal

import (
	"time"

	"github.com/jdziat/funcgate/pkg/core"
)

// Trade actions
const (
	ActionDeal    = 1
	ActionPending = 5
	ActionSLTP    = 6
	ActionModify  = 7
	ActionRemove  = 8
	ActionCloseBy = 10
)

// Order types
const (
	OrderTypeBuy       = 0
	OrderTypeSell      = 1
	OrderTypeBuyLimit  = 2
	OrderTypeSellLimit = 3
	OrderTypeBuyStop   = 4
	OrderTypeSellStop  = 5
)

// Trade return codes
const (
	RetcodePlaced        = 10008
	RetcodeDone          = 10009
	RetcodeInvalid       = 10013
	RetcodeInvalidVolume = 10014
	RetcodeInvalidPrice  = 10015
	RetcodeNoMoney       = 10019
	RetcodeInvalidOrder  = 10035
)

// Terminal error codes reported by last_error.
const (
	ErrCodeOK            = 1
	ErrCodeInvalidParams = -2
	ErrCodeNotFound      = -4
	ErrCodeNoConnection  = -10004
)

// ServerTime is a trade server timestamp with second precision.
type ServerTime struct {
	sec int64
}

// NewServerTime returns the ServerTime for unix seconds sec.
func NewServerTime(sec int64) ServerTime {
	return ServerTime{sec: sec}
}

// Unix returns the timestamp in unix seconds.
func (t ServerTime) Unix() int64 {
	return t.sec
}

// Instant implements core.Instant.
func (t ServerTime) Instant() time.Time {
	return time.Unix(t.sec, 0).UTC()
}

// TerminalInfo describes the client terminal.
type TerminalInfo struct {
	Connected    bool       `json:"connected"`
	TradeAllowed bool       `json:"trade_allowed"`
	Build        int        `json:"build"`
	Company      string     `json:"company"`
	Name         string     `json:"name"`
	Language     string     `json:"language"`
	Path         string     `json:"path"`
	TimeCurrent  ServerTime `json:"time_current"`
}

// AccountInfo describes the logged in trading account.
type AccountInfo struct {
	Login       int64   `json:"login"`
	TradeMode   int     `json:"trade_mode"`
	Leverage    int     `json:"leverage"`
	Balance     float64 `json:"balance"`
	Credit      float64 `json:"credit"`
	Profit      float64 `json:"profit"`
	Equity      float64 `json:"equity"`
	Margin      float64 `json:"margin"`
	MarginFree  float64 `json:"margin_free"`
	MarginLevel float64 `json:"margin_level"`
	Name        string  `json:"name"`
	Server      string  `json:"server"`
	Currency    string  `json:"currency"`
	Company     string  `json:"company"`
}

// SymbolInfo describes a tradable symbol.
type SymbolInfo struct {
	Name           string  `json:"name"`
	Description    string  `json:"description"`
	Path           string  `json:"path"`
	Visible        bool    `json:"visible"`
	Select         bool    `json:"select"`
	Digits         int     `json:"digits"`
	Spread         int     `json:"spread"`
	Point          float64 `json:"point"`
	Bid            float64 `json:"bid"`
	Ask            float64 `json:"ask"`
	VolumeMin      float64 `json:"volume_min"`
	VolumeMax      float64 `json:"volume_max"`
	VolumeStep     float64 `json:"volume_step"`
	ContractSize   float64 `json:"trade_contract_size"`
	CurrencyBase   string  `json:"currency_base"`
	CurrencyProfit string  `json:"currency_profit"`

	base float64
}

// Tick is the last price update of a symbol.
type Tick struct {
	Time    int64   `json:"time"`
	Bid     float64 `json:"bid"`
	Ask     float64 `json:"ask"`
	Last    float64 `json:"last"`
	Volume  int64   `json:"volume"`
	TimeMsc int64   `json:"time_msc"`
	Flags   int     `json:"flags"`
}

// TradeRequest is the request structure accepted by order_check and
// order_send.
type TradeRequest struct {
	Action      int     `json:"action"`
	Magic       int64   `json:"magic"`
	Order       int64   `json:"order"`
	Symbol      string  `json:"symbol"`
	Volume      float64 `json:"volume"`
	Price       float64 `json:"price"`
	StopLimit   float64 `json:"stoplimit"`
	SL          float64 `json:"sl"`
	TP          float64 `json:"tp"`
	Deviation   int     `json:"deviation"`
	Type        int     `json:"type"`
	TypeFilling int     `json:"type_filling"`
	TypeTime    int     `json:"type_time"`
	Expiration  int64   `json:"expiration"`
	Comment     string  `json:"comment"`
	Position    int64   `json:"position"`
	PositionBy  int64   `json:"position_by"`
}

// TradeOrder is a pending or historical order.
type TradeOrder struct {
	Ticket        int64   `json:"ticket"`
	TimeSetup     int64   `json:"time_setup"`
	TimeDone      int64   `json:"time_done"`
	Type          int     `json:"type"`
	State         int     `json:"state"`
	Magic         int64   `json:"magic"`
	VolumeInitial float64 `json:"volume_initial"`
	PriceOpen     float64 `json:"price_open"`
	SL            float64 `json:"sl"`
	TP            float64 `json:"tp"`
	Symbol        string  `json:"symbol"`
	Comment       string  `json:"comment"`
}

// TradePosition is an open position.
type TradePosition struct {
	Ticket       int64   `json:"ticket"`
	Time         int64   `json:"time"`
	Type         int     `json:"type"`
	Magic        int64   `json:"magic"`
	Identifier   int64   `json:"identifier"`
	Volume       float64 `json:"volume"`
	PriceOpen    float64 `json:"price_open"`
	SL           float64 `json:"sl"`
	TP           float64 `json:"tp"`
	PriceCurrent float64 `json:"price_current"`
	Profit       float64 `json:"profit"`
	Symbol       string  `json:"symbol"`
	Comment      string  `json:"comment"`
}

// TradeDeal is an executed deal.
type TradeDeal struct {
	Ticket   int64   `json:"ticket"`
	Order    int64   `json:"order"`
	Time     int64   `json:"time"`
	Type     int     `json:"type"`
	Entry    int     `json:"entry"`
	Magic    int64   `json:"magic"`
	Position int64   `json:"position_id"`
	Volume   float64 `json:"volume"`
	Price    float64 `json:"price"`
	Profit   float64 `json:"profit"`
	Symbol   string  `json:"symbol"`
	Comment  string  `json:"comment"`
}

// OrderCheckResult is returned by order_check.
type OrderCheckResult struct {
	Retcode     int
	Balance     float64
	Equity      float64
	Profit      float64
	Margin      float64
	MarginFree  float64
	MarginLevel float64
	Comment     string
	Request     TradeRequest
}

// Fields implements core.Record in terminal field order.
func (r *OrderCheckResult) Fields() []core.Field {
	return []core.Field{
		{Name: "retcode", Value: r.Retcode},
		{Name: "balance", Value: r.Balance},
		{Name: "equity", Value: r.Equity},
		{Name: "profit", Value: r.Profit},
		{Name: "margin", Value: r.Margin},
		{Name: "margin_free", Value: r.MarginFree},
		{Name: "margin_level", Value: r.MarginLevel},
		{Name: "comment", Value: r.Comment},
		{Name: "request", Value: r.Request},
	}
}

// OrderSendResult is returned by order_send.
type OrderSendResult struct {
	Retcode   int
	Deal      int64
	Order     int64
	Volume    float64
	Price     float64
	Bid       float64
	Ask       float64
	Comment   string
	RequestID int64
	Request   TradeRequest
}

// Fields implements core.Record in terminal field order.
func (r *OrderSendResult) Fields() []core.Field {
	return []core.Field{
		{Name: "retcode", Value: r.Retcode},
		{Name: "deal", Value: r.Deal},
		{Name: "order", Value: r.Order},
		{Name: "volume", Value: r.Volume},
		{Name: "price", Value: r.Price},
		{Name: "bid", Value: r.Bid},
		{Name: "ask", Value: r.Ask},
		{Name: "comment", Value: r.Comment},
		{Name: "request_id", Value: r.RequestID},
		{Name: "request", Value: r.Request},
	}
}

// Rate is one OHLC bar.
type Rate struct {
	Time       int64
	Open       float64
	High       float64
	Low        float64
	Close      float64
	TickVolume int64
	Spread     int
	RealVolume int64
}

// Rates is a block of bars. It canonicalizes as a list of rows, one
// [time, open, high, low, close, tick_volume, spread, real_volume] per bar.
type Rates struct {
	bars []Rate
}

// Len returns the number of bars.
func (r Rates) Len() int { return len(r.bars) }

// Bars returns a copy of the bars.
func (r Rates) Bars() []Rate { return append([]Rate(nil), r.bars...) }

// ToList implements core.Buffer.
func (r Rates) ToList() any {
	rows := make([][]any, len(r.bars))
	for i, b := range r.bars {
		rows[i] = []any{b.Time, b.Open, b.High, b.Low, b.Close, b.TickVolume, b.Spread, b.RealVolume}
	}
	return rows
}

// Ticks is a block of ticks. It canonicalizes as a list of rows, one
// [time, bid, ask, last, volume, time_msc, flags] per tick.
type Ticks struct {
	ticks []Tick
}

// Len returns the number of ticks.
func (t Ticks) Len() int { return len(t.ticks) }

// Ticks returns a copy of the ticks.
func (t Ticks) Ticks() []Tick { return append([]Tick(nil), t.ticks...) }

// ToList implements core.Buffer.
func (t Ticks) ToList() any {
	rows := make([][]any, len(t.ticks))
	for i, k := range t.ticks {
		rows[i] = []any{k.Time, k.Bid, k.Ask, k.Last, k.Volume, k.TimeMsc, k.Flags}
	}
	return rows
}

// BookEntry is one depth of market level.
type BookEntry struct {
	typ    int
	price  float64
	volume float64
}

// Attributes implements core.Attributer.
func (b BookEntry) Attributes() map[string]any {
	return map[string]any{
		"type":   b.typ,
		"price":  b.price,
		"volume": b.volume,
	}
}
