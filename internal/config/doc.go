// Package config loads and watches the service configuration.
//
// Configuration is a single YAML file. Load applies defaults, parses
// and validates it; Watcher reloads it on file changes with debouncing,
// keeping the last good configuration when a reload fails validation.
//
// Route policies are part of the configuration: each guarded route
// declares its required roles, team scope, and guard style once, and the
// server mounts them at startup.
package config
