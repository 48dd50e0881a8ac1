// Package logger provides structured logging built on zerolog, with a
// console format for development and JSON for production. The registry and
// bootstrap packages log through it; a global logger is available for
// call sites without an explicit instance.
package logger
