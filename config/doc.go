// Package config provides layered configuration for the aggregator.
//
// Configuration is assembled from three sources, later entries winning:
//
//  1. Built-in defaults (local NATS, ten-second snapshot cadence, five-minute
//     staleness TTL)
//  2. JSON file layers added with Loader.AddLayer
//  3. Environment variables with the CITYTWIN_ prefix
//
// File layers merge field by field, so a deployment file only names the keys
// it changes. Duration-valued fields accept Go duration strings in JSON
// ("5s", "2m"); TTL and cadence are plain integer seconds to match the
// upstream telemetry producers' configuration.
//
//	loader := config.NewLoader()
//	loader.AddLayer("config/base.json")
//	loader.AddLayer("config/production.json")
//	loader.EnableValidation(true)
//	cfg, err := loader.Load()
//
// Validation is opt-in on the loader and also available directly through
// Config.Validate.
package config
