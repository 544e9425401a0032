// Package retention prunes old events from the store on a cron schedule.
// A retention period of zero keeps events forever.
package retention
