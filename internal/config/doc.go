// Package config loads Pixora's TOML configuration.
//
// Load applies defaults, then the file, then PIXORA_* environment overrides,
// expands "~" in every path and validates the result. Derived locations
// such as ModelPath and JournalPath live on Config so callers never join
// paths themselves.
package config
