// Package terminal is a simulated trading terminal library: symbols, quotes,
// bars, ticks, orders, positions and deals held in memory.
//
// It mirrors the call surface of a desktop trading terminal's scripting
// module, including its habit of returning null and recording a last error
// instead of failing, so it exercises every calling convention and result
// shape the gateway supports.
package terminal

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"
)

const (
	terminalBuild   = 4000
	terminalVersion = 500
	releaseDate     = "15 Mar 2024"
	demoLogin       = 5001234
	demoServer      = "Funcgate-Demo"
	demoLeverage    = 100
	startingBalance = 10000.0
)

// ErrNotInitialized is returned by Start when the terminal is configured to
// refuse connections.
var ErrNotInitialized = errors.New("terminal: initialization failed")

// Terminal is an in-memory trading terminal. It is safe for concurrent use.
type Terminal struct {
	mu          sync.Mutex
	now         func() time.Time
	connected   bool
	refuse      bool
	login       int64
	balance     float64
	symbols     map[string]*SymbolInfo
	books       map[string]bool
	orders      []*TradeOrder
	positions   []*TradePosition
	history     []*TradeOrder
	deals       []*TradeDeal
	nextTicket  int64
	nextRequest int64
	lastErr     [2]any
}

// Option configures a Terminal.
type Option func(*Terminal)

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Terminal) {
		t.now = now
	}
}

// WithRefuseConnections makes Initialize fail, simulating a terminal that
// is not running.
func WithRefuseConnections() Option {
	return func(t *Terminal) {
		t.refuse = true
	}
}

// New creates a disconnected terminal with the demo symbol set.
func New(opts ...Option) *Terminal {
	t := &Terminal{
		now:         time.Now,
		symbols:     make(map[string]*SymbolInfo),
		books:       make(map[string]bool),
		nextTicket:  1000,
		nextRequest: 1,
		lastErr:     [2]any{ErrCodeOK, "Success"},
	}
	for _, opt := range opts {
		opt(t)
	}
	for _, s := range demoSymbols() {
		t.symbols[s.Name] = s
	}
	return t
}

// Start connects the terminal. It has the signature of a registry init hook.
func (t *Terminal) Start(context.Context) error {
	if !t.Initialize() {
		return ErrNotInitialized
	}
	return nil
}

// Stop disconnects the terminal. It has the signature of a registry shutdown
// hook.
func (t *Terminal) Stop(context.Context) error {
	t.Shutdown()
	return nil
}

// Initialize connects to the terminal and logs into the demo account.
func (t *Terminal) Initialize() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.refuse {
		t.setErr(ErrCodeNoConnection, "IPC initialize failed, MetaTrader 5 x64 not found")
		return false
	}
	t.connected = true
	if t.login == 0 {
		t.login = demoLogin
		t.balance = startingBalance
	}
	t.setErr(ErrCodeOK, "Success")
	return true
}

// Login switches to another account on the demo server.
func (t *Terminal) Login(login int64, password, server string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.ready() {
		return false
	}
	if login <= 0 || password == "" {
		t.setErr(ErrCodeInvalidParams, "Invalid params")
		return false
	}
	if server != "" && server != demoServer {
		t.setErr(ErrCodeNotFound, fmt.Sprintf("Server %s not found", server))
		return false
	}
	t.login = login
	t.setErr(ErrCodeOK, "Success")
	return true
}

// Shutdown disconnects from the terminal.
func (t *Terminal) Shutdown() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connected = false
	return true
}

// Version returns the terminal version, build and release date.
func (t *Terminal) Version() []any {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.ready() {
		return nil
	}
	return []any{terminalVersion, terminalBuild, releaseDate}
}

// LastError returns the code and description of the last error.
func (t *Terminal) LastError() []any {
	t.mu.Lock()
	defer t.mu.Unlock()
	return []any{t.lastErr[0], t.lastErr[1]}
}

// TerminalInfo returns the terminal state.
func (t *Terminal) TerminalInfo() *TerminalInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.ready() {
		return nil
	}
	return &TerminalInfo{
		Connected:    true,
		TradeAllowed: true,
		Build:        terminalBuild,
		Company:      "Funcgate Ltd.",
		Name:         "Funcgate Terminal",
		Language:     "English",
		Path:         "/opt/funcgate/terminal",
		TimeCurrent:  NewServerTime(t.now().Unix()),
	}
}

// AccountInfo returns the logged in account.
func (t *Terminal) AccountInfo() *AccountInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.ready() {
		return nil
	}
	profit := t.floatingProfit()
	margin := t.usedMargin()
	equity := t.balance + profit
	level := 0.0
	if margin > 0 {
		level = round(equity/margin*100, 2)
	}
	return &AccountInfo{
		Login:       t.login,
		TradeMode:   0,
		Leverage:    demoLeverage,
		Balance:     t.balance,
		Profit:      profit,
		Equity:      equity,
		Margin:      margin,
		MarginFree:  round(equity-margin, 2),
		MarginLevel: level,
		Name:        "Demo Account",
		Server:      demoServer,
		Currency:    "USD",
		Company:     "Funcgate Ltd.",
	}
}

// ready reports whether the terminal is connected, recording the error when
// it is not. Callers hold mu.
func (t *Terminal) ready() bool {
	if !t.connected {
		t.setErr(ErrCodeNoConnection, "No IPC connection")
		return false
	}
	return true
}

func (t *Terminal) setErr(code int, msg string) {
	t.lastErr = [2]any{code, msg}
}

func (t *Terminal) ticket() int64 {
	t.nextTicket++
	return t.nextTicket
}

func (t *Terminal) sortedSymbols() []*SymbolInfo {
	out := make([]*SymbolInfo, 0, len(t.symbols))
	for _, s := range t.symbols {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
