// Package mcp exposes query execution and manual result release as Model Context Protocol tools.
package mcp
