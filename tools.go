//go:build tools

// Package tools pins the generator binary this module's go:generate
// directives depend on, so `go mod tidy` doesn't prune it from go.sum:
// mockgen generates every reactor/collaborator interface's test double
// used across internal/ackhandler.
package tools

import (
	_ "github.com/golang/mock/mockgen"
)
