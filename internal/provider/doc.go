// Package provider fetches refreshed metadata for catalog items from a
// TMDB-compatible API.
package provider
