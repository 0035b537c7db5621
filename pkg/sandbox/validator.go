package sandbox

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strconv"
	"strings"
)

// deniedIdentifiers are names a program may not reference at all, even
// through aliased imports or shadowed declarations. They are the escape
// hatches around the import whitelist.
var deniedIdentifiers = map[string]bool{
	"unsafe":  true,
	"syscall": true,
	"reflect": true,
}

// deniedSelectors are package.Symbol pairs rejected regardless of how the
// package was obtained.
var deniedSelectors = map[string]bool{
	"os.Exit":              true,
	"os.StartProcess":      true,
	"runtime.SetFinalizer": true,
}

// deniedDirectives are compiler directives that can relink a program
// around the symbol table.
var deniedDirectives = []string{
	"//go:linkname",
	"//go:cgo_",
	"//go:nosplit",
}

// Validator is sandbox layer 1: parse the program and walk its AST,
// enforcing the import whitelist and the call denylist before anything
// executes.
type Validator struct {
	allowedImports map[string]bool
}

// NewValidator creates a validator with the given import whitelist.
func NewValidator(allowedImports []string) *Validator {
	allowed := make(map[string]bool, len(allowedImports))
	for _, imp := range allowedImports {
		allowed[imp] = true
	}
	return &Validator{allowedImports: allowed}
}

// Validate rejects programs that violate the import or call policy. The
// returned error is a *ViolationError describing the first violation.
func (v *Validator) Validate(code string) error {
	if strings.TrimSpace(code) == "" {
		return &ViolationError{Layer: "ast", Reason: "empty program"}
	}

	for _, directive := range deniedDirectives {
		if strings.Contains(code, directive) {
			return &ViolationError{Layer: "ast",
				Reason: fmt.Sprintf("compiler directive %q is not allowed", directive)}
		}
	}

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "program.go", code, parser.ParseComments)
	if err != nil {
		return &ViolationError{Layer: "ast", Reason: fmt.Sprintf("parse error: %v", err)}
	}

	if file.Name.Name != "main" {
		return &ViolationError{Layer: "ast",
			Reason: fmt.Sprintf("program must be package main, got %q", file.Name.Name)}
	}

	for _, imp := range file.Imports {
		path, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			return &ViolationError{Layer: "ast", Reason: "malformed import path"}
		}
		if imp.Name != nil && imp.Name.Name == "." {
			return &ViolationError{Layer: "ast",
				Reason: fmt.Sprintf("dot import of %q is not allowed", path)}
		}
		if !v.allowedImports[path] {
			return &ViolationError{Layer: "ast",
				Reason: fmt.Sprintf("import %q is not in the allowed list", path)}
		}
	}

	var violation *ViolationError
	ast.Inspect(file, func(n ast.Node) bool {
		if violation != nil {
			return false
		}

		switch node := n.(type) {
		case *ast.Ident:
			if deniedIdentifiers[node.Name] {
				violation = &ViolationError{Layer: "ast",
					Reason: fmt.Sprintf("reference to %q is not allowed", node.Name)}
				return false
			}
		case *ast.SelectorExpr:
			if pkg, ok := node.X.(*ast.Ident); ok {
				if deniedSelectors[pkg.Name+"."+node.Sel.Name] {
					violation = &ViolationError{Layer: "ast",
						Reason: fmt.Sprintf("call to %s.%s is not allowed", pkg.Name, node.Sel.Name)}
					return false
				}
			}
		}
		return true
	})
	if violation != nil {
		return violation
	}

	if !hasMainFunc(file) {
		return &ViolationError{Layer: "ast", Reason: "program must declare func main()"}
	}

	return nil
}

func hasMainFunc(file *ast.File) bool {
	for _, decl := range file.Decls {
		if fn, ok := decl.(*ast.FuncDecl); ok {
			if fn.Name.Name == "main" && fn.Recv == nil {
				return true
			}
		}
	}
	return false
}
