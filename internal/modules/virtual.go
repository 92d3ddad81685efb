package modules

import (
	_ "embed"
	"fmt"

	"github.com/funvibe/resolvekit/internal/ast"
	"github.com/funvibe/resolvekit/internal/config"
	"github.com/funvibe/resolvekit/internal/scopes"
)

//go:embed virtual/lang.yaml
var langSource []byte

// Builtins builds the virtual unit holding the built-in classes (Any,
// Nothing, Int, String, KProperty, ...) under the configured package name.
func Builtins(cfg *config.Config) (*Unit, error) {
	path := "<" + cfg.BuiltinPackage + ">"
	file, err := ast.DecodeFile(langSource, path)
	if err != nil {
		return nil, fmt.Errorf("loading built-ins: %w", err)
	}
	file.Path = path
	file.Package = cfg.BuiltinPackage
	table, diags, err := scopes.Build(file)
	if err != nil {
		return nil, fmt.Errorf("loading built-ins: %w", err)
	}
	if len(diags) > 0 {
		return nil, fmt.Errorf("loading built-ins: %s", diags[0])
	}
	return &Unit{File: file, Table: table, IsVirtual: true}, nil
}
