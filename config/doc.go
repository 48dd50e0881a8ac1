// Package config loads service configuration from config.yml and .env files
// with LOADERKIT_* environment overrides, and defines the base ServiceConfig
// that loader-based services embed.
package config
