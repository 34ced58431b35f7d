// Package config provides type-safe environment variable loading with caching
// using Go generics. Each configuration type is loaded once and cached for
// subsequent calls.
//
// The package loads a .env file on first use and uses the caarlos0/env library
// for parsing environment variables into struct fields.
//
// Basic usage:
//
//	import "github.com/dmitrymomot/mainsync/core/config"
//
//	var cfg synchronizer.Config
//	if err := config.Load(&cfg); err != nil {
//		log.Fatal(err)
//	}
//
//	s, err := synchronizer.NewFromConfig(cfg)
//
// # Caching Behavior
//
// Each configuration type is loaded only once per process:
//
//	var a synchronizer.Config
//	config.Load(&a) // parses the environment
//
//	var b synchronizer.Config
//	config.Load(&b) // copies the cached value, a == b
package config
