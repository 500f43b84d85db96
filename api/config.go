// Package api provides the HTTP API server: live session websockets plus
// read endpoints for inspecting a conversation's ledger and reflections.
package api

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8080")
	ListenAddr string
}
