//go:build tools
// +build tools

// Package tools pins the linters run over the module. Actor code must not range over maps, since
// iteration order would make state transitions nondeterministic.
package tools

import (
	_ "github.com/Kubuxu/go-no-map-range"
	_ "github.com/golangci/golangci-lint/cmd/golangci-lint"
)
