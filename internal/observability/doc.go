// Package observability records board activity in a JSON Lines event log
// and derives activity metrics and board alerts from it.
package observability
