// Package rpcio declares the transport-agnostic tool surface spec.md §6
// lists: search, fetch, explore, encode, evolve, stats, plus the ten
// interactive-protocol operations. It is the one seam an MCP server, an
// HTTP handler, or a CLI can all sit behind — none of those transports are
// in scope (spec.md §1 "The MCP transport layer — only the tool surface is
// listed"), so this package stops at declaring tools and dispatching their
// JSON args, the way the teacher's internal/tools package declares tools
// for its own JIT tool-selection loop without owning any transport either.
package rpcio

import "context"

// Property describes one JSON-schema property of a tool's input, grounded
// on the teacher's internal/tools.Property.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Default     any    `json:"default,omitempty"`
	Enum        []any  `json:"enum,omitempty"`
}

// Schema is the JSON schema for a tool's input, grounded on the teacher's
// internal/tools.ToolSchema.
type Schema struct {
	Required   []string            `json:"required"`
	Properties map[string]Property `json:"properties"`
}

// ExecuteFunc runs a tool against already-decoded JSON args, returning a
// JSON-encodable result or a typed error (spec.md §6 "each returns either a
// structured result or a typed error").
type ExecuteFunc func(ctx context.Context, args map[string]any) (any, error)

// Tool is one entry in the surface: a name, a description, an input
// schema, and the function that executes it. Grounded on the teacher's
// internal/tools.Tool, trimmed to what a transport-agnostic surface needs
// (no Category/Priority — those exist to support the teacher's intent-based
// JIT tool *selection*, which has no equivalent concept here: every tool in
// this surface is always offered).
type Tool struct {
	Name        string
	Description string
	Schema      Schema
	Execute     ExecuteFunc
}
