package terminal

import (
	"github.com/jdziat/funcgate/pkg/registry"
)

type function struct {
	name   string
	fn     any
	params []string
	desc   string
}

func (t *Terminal) functions() []function {
	return []function{
		{"initialize", t.Initialize, nil, "Connect to the terminal."},
		{"login", t.Login, []string{"login", "password", "server"}, "Log into a trading account."},
		{"shutdown", t.Shutdown, nil, "Disconnect from the terminal."},
		{"version", t.Version, nil, "Terminal version, build and release date."},
		{"last_error", t.LastError, nil, "Code and description of the last error."},
		{"terminal_info", t.TerminalInfo, nil, "Terminal state and settings."},
		{"account_info", t.AccountInfo, nil, "Current trading account."},
		{"symbols_total", t.SymbolsTotal, nil, "Number of symbols."},
		{"symbols_get", t.SymbolsGet, []string{"group"}, "Symbols matching a group filter."},
		{"symbol_info", t.SymbolInfo, []string{"symbol"}, "Symbol properties."},
		{"symbol_info_tick", t.SymbolInfoTick, []string{"symbol"}, "Last tick of a symbol."},
		{"symbol_select", t.SymbolSelect, []string{"symbol", "enable"}, "Show or hide a symbol in Market Watch."},
		{"copy_rates_from", t.CopyRatesFrom, []string{"symbol", "timeframe", "date_from", "count"}, "Bars ending at a date."},
		{"copy_rates_from_pos", t.CopyRatesFromPos, []string{"symbol", "timeframe", "start_pos", "count"}, "Bars back from the current bar."},
		{"copy_rates_range", t.CopyRatesRange, []string{"symbol", "timeframe", "date_from", "date_to"}, "Bars within a date range."},
		{"copy_ticks_from", t.CopyTicksFrom, []string{"symbol", "date_from", "count", "flags"}, "Ticks starting at a date."},
		{"copy_ticks_range", t.CopyTicksRange, []string{"symbol", "date_from", "date_to", "flags"}, "Ticks within a date range."},
		{"orders_total", t.OrdersTotal, nil, "Number of pending orders."},
		{"orders_get", t.OrdersGet, []string{"symbol"}, "Pending orders."},
		{"positions_total", t.PositionsTotal, nil, "Number of open positions."},
		{"positions_get", t.PositionsGet, []string{"symbol"}, "Open positions."},
		{"history_orders_total", t.HistoryOrdersTotal, []string{"date_from", "date_to"}, "Number of historical orders."},
		{"history_orders_get", t.HistoryOrdersGet, []string{"date_from", "date_to"}, "Historical orders."},
		{"history_deals_total", t.HistoryDealsTotal, []string{"date_from", "date_to"}, "Number of deals."},
		{"history_deals_get", t.HistoryDealsGet, []string{"date_from", "date_to"}, "Deals."},
		{"order_calc_margin", t.OrderCalcMargin, []string{"action", "symbol", "volume", "price"}, "Margin required for a market order."},
		{"order_calc_profit", t.OrderCalcProfit, []string{"action", "symbol", "volume", "price_open", "price_close"}, "Profit of a market order."},
		{"order_check", t.OrderCheck, nil, "Validate a trade request."},
		{"order_send", t.OrderSend, nil, "Execute a trade request."},
		{"market_book_add", t.MarketBookAdd, []string{"symbol"}, "Subscribe to depth of market."},
		{"market_book_get", t.MarketBookGet, []string{"symbol"}, "Depth of market."},
		{"market_book_release", t.MarketBookRelease, []string{"symbol"}, "Cancel a depth of market subscription."},
	}
}

// Register adds every terminal function to r.
func (t *Terminal) Register(r *registry.Registry) error {
	for _, f := range t.functions() {
		opts := []registry.FuncOption{registry.WithDescription(f.desc)}
		if f.params != nil {
			opts = append(opts, registry.WithParams(f.params...))
		}
		if err := r.Register(f.name, f.fn, opts...); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry returns a registry serving t. The registry's Init connects the
// terminal and its Shutdown disconnects it.
func NewRegistry(t *Terminal) (*registry.Registry, error) {
	r := registry.New(registry.OnInit(t.Start), registry.OnShutdown(t.Stop))
	if err := t.Register(r); err != nil {
		return nil, err
	}
	return r, nil
}
