package tsparse

import (
	"testing"

	"github.com/stretchr/testify/require"

	rpgast "github.com/pleaseai/soop-sub000/internal/ast"
)

func parserFor(t *testing.T, ext string) *Parser {
	t.Helper()
	for _, p := range NewAll() {
		for _, e := range p.Extensions() {
			if e == ext {
				return p
			}
		}
	}
	t.Fatalf("no tsparse parser registered for %s", ext)
	return nil
}

func TestJavaScriptExtractsFunctionClassAndImport(t *testing.T) {
	p := parserFor(t, ".js")
	require.Equal(t, "javascript", p.Language())

	src := `import { readFile } from "fs";

class Widget {
  render() {
    return 1;
  }
}

function build() {
  return new Widget();
}
`
	result, err := p.ParseFile("widget.js", []byte(src))
	require.NoError(t, err)

	var gotClass, gotMethod, gotFunc bool
	for _, e := range result.Entities {
		switch {
		case e.Kind == rpgast.KindClass && e.Name == "Widget":
			gotClass = true
		case e.Kind == rpgast.KindMethod && e.Name == "render" && e.Parent == "Widget":
			gotMethod = true
		case e.Kind == rpgast.KindFunction && e.Name == "build":
			gotFunc = true
		}
	}
	require.True(t, gotClass, "expected Widget class entity")
	require.True(t, gotMethod, "expected render method entity with Widget parent")
	require.True(t, gotFunc, "expected build function entity")

	require.Len(t, result.Imports, 1)
	require.Equal(t, "fs", result.Imports[0].Module)
}

func TestPythonExtractsFunctionAndClass(t *testing.T) {
	p := parserFor(t, ".py")
	require.Equal(t, "python", p.Language())

	src := `import os

class Widget:
    def render(self):
        return 1

def build():
    return Widget()
`
	result, err := p.ParseFile("widget.py", []byte(src))
	require.NoError(t, err)

	var names []string
	for _, e := range result.Entities {
		names = append(names, e.Name)
	}
	require.Contains(t, names, "Widget")
	require.Contains(t, names, "build")
	require.NotEmpty(t, result.Imports)
}

func TestRustExtractsFunctionAndStruct(t *testing.T) {
	p := parserFor(t, ".rs")
	require.Equal(t, "rust", p.Language())

	src := `use std::fmt;

struct Widget {
    name: String,
}

fn build() -> Widget {
    Widget { name: String::new() }
}
`
	result, err := p.ParseFile("widget.rs", []byte(src))
	require.NoError(t, err)

	var gotStruct, gotFunc bool
	for _, e := range result.Entities {
		if e.Kind == rpgast.KindClass && e.Name == "Widget" {
			gotStruct = true
		}
		if e.Kind == rpgast.KindFunction && e.Name == "build" {
			gotFunc = true
		}
	}
	require.True(t, gotStruct)
	require.True(t, gotFunc)
	require.NotEmpty(t, result.Imports)
}

func TestTypeScriptRegisteredForTsAndTsx(t *testing.T) {
	p := parserFor(t, ".ts")
	require.Equal(t, "typescript", p.Language())
	require.ElementsMatch(t, []string{".ts", ".tsx"}, p.Extensions())
}
