// Package config loads, normalizes, and validates content factory configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// OPENROUTER_API_KEY. The Config type is built once at process start and then
// handed to the collaborators that need it; stage logic never reads the
// environment directly.
package config
