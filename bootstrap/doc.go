// Package bootstrap maps named startup levels (minimum, standard, maximum)
// onto the component registry and wraps the whole thing in a runnable App
// with lifecycle hooks, signal handling, and a startup summary.
//
// Levels select components; loading stays sequential in priority order so a
// required failure aborts startup immediately while optional failures only
// log and continue.
package bootstrap
