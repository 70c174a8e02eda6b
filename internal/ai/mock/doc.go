// Package mock provides deterministic in-process stand-ins for the completion
// and embedding services, for tests and offline runs.
package mock
