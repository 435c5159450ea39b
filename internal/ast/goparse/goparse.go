// Package goparse is the Go-language conformance implementation of
// ast.Parser, grounded on the teacher's internal/world/go_parser.go. It uses
// go/parser and go/ast directly rather than tree-sitter: the module's own
// source is Go, so a Go-native parser needs no third-party grounding (see
// DESIGN.md for the stdlib justification).
package goparse

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strconv"
	"strings"

	rpgast "github.com/pleaseai/soop-sub000/internal/ast"
	"github.com/pleaseai/soop-sub000/internal/logging"
)

// Parser implements rpgast.Parser for Go source files.
type Parser struct{}

// New builds a Go parser.
func New() *Parser { return &Parser{} }

func (p *Parser) Language() string     { return "go" }
func (p *Parser) Extensions() []string { return []string{".go"} }

// ParseFile extracts top-level functions, methods, and type declarations
// plus import statements from a single Go source file.
func (p *Parser) ParseFile(path string, content []byte) (rpgast.ParseResult, error) {
	timer := logging.StartTimer(logging.CategoryAST, "goparse.ParseFile")
	defer timer.Stop()

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, content, parser.ParseComments)
	if err != nil {
		return rpgast.ParseResult{Language: "go"}, fmt.Errorf("goparse: %w", err)
	}

	lines := strings.Split(string(content), "\n")
	result := rpgast.ParseResult{Language: "go"}

	// Struct/interface type names, so methods can be linked to their
	// receiver as Parent, mirroring go_parser.go's two-pass approach.
	typeNames := make(map[string]bool)
	for _, decl := range file.Decls {
		if gd, ok := decl.(*ast.GenDecl); ok && gd.Tok == token.TYPE {
			for _, spec := range gd.Specs {
				if ts, ok := spec.(*ast.TypeSpec); ok {
					typeNames[ts.Name.Name] = true
					result.Entities = append(result.Entities, rpgast.CodeEntity{
						Kind:      rpgast.KindClass,
						Name:      ts.Name.Name,
						StartLine: fset.Position(ts.Pos()).Line,
						EndLine:   fset.Position(ts.End()).Line,
						Doc:       docText(gd.Doc),
						Source:    snippet(lines, fset.Position(ts.Pos()).Line, fset.Position(ts.End()).Line),
					})
				}
			}
		}
	}

	for _, decl := range file.Decls {
		fd, ok := decl.(*ast.FuncDecl)
		if !ok {
			continue
		}
		start, end := fset.Position(fd.Pos()).Line, fset.Position(fd.End()).Line
		entity := rpgast.CodeEntity{
			Kind:      rpgast.KindFunction,
			Name:      fd.Name.Name,
			StartLine: start,
			EndLine:   end,
			Doc:       docText(fd.Doc),
			Source:    snippet(lines, start, end),
		}
		if fd.Recv != nil && len(fd.Recv.List) > 0 {
			entity.Kind = rpgast.KindMethod
			entity.Parent = receiverTypeName(fd.Recv.List[0].Type)
		}
		result.Entities = append(result.Entities, entity)
	}

	for _, imp := range file.Imports {
		path, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			path = strings.Trim(imp.Path.Value, `"`)
		}
		result.Imports = append(result.Imports, rpgast.Import{Module: path})
	}

	return result, nil
}

func docText(doc *ast.CommentGroup) string {
	if doc == nil {
		return ""
	}
	return strings.TrimSpace(doc.Text())
}

func snippet(lines []string, start, end int) string {
	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start > end || start > len(lines) {
		return ""
	}
	return strings.Join(lines[start-1:end], "\n")
}

func receiverTypeName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.StarExpr:
		return receiverTypeName(t.X)
	case *ast.Ident:
		return t.Name
	default:
		return ""
	}
}
