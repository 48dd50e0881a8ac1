// Package registry implements a lazy, dependency-aware component loader.
//
// Components are registered under a unique name with an async factory, an
// optional dependency list, a bootstrap priority, and a required flag. A
// component is only constructed when first requested (or eagerly during
// bootstrap for required components); concurrent requests for the same
// component share a single in-flight load, and a component is never unloaded
// while another loaded component still depends on it.
//
// Every status transition pushes one typed lifecycle event to registered
// handlers, synchronously, right after the transition takes effect.
package registry
