// Package schedule reads the journal prune schedule.
//
// Parse accepts:
//   - five-field cron expressions and descriptors such as "@hourly"
//   - "@every <duration>" for a fixed interval (Every)
//   - "@daily HH:MM" for a fixed UTC time each day (Daily)
//
// The call journal pruner is driven by the resulting Schedule.
package schedule
