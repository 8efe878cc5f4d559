// Package registry holds the named functions a gateway can invoke.
//
// A Registry is populated at startup with Register, then sealed by Init.
// After Init succeeds lookups are read-only and safe for concurrent use;
// before it, every lookup misses so a half-initialized registry is never
// served.
//
// Example:
//
//	reg := registry.New(registry.OnInit(terminal.Connect))
//	reg.MustRegister("symbol_info", terminal.SymbolInfo, registry.WithParams("symbol"))
//	if err := reg.Init(ctx); err != nil {
//	    log.Fatal(err)
//	}
package registry
