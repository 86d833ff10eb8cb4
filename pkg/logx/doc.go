// Package logx is quizbot's structured logging.
//
// Logger is a value type over zerolog. Components scope it with Component, which
// both tags records with comp=<name> and picks up per-component level overrides
// from the Service. Sinks and levels are swapped at runtime by Service.Apply
// when the config is reloaded.
package logx
