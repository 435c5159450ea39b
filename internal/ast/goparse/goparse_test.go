package goparse

import (
	"testing"

	"github.com/stretchr/testify/require"

	rpgast "github.com/pleaseai/soop-sub000/internal/ast"
)

const sample = `package widgets

import (
	"fmt"
	"strings"
)

// Widget is a renderable UI element.
type Widget struct {
	Name string
}

// Render prints the widget's name.
func (w *Widget) Render() {
	fmt.Println(w.Name)
}

// NewWidget constructs a Widget.
func NewWidget(name string) *Widget {
	return &Widget{Name: strings.TrimSpace(name)}
}
`

func TestParseFileExtractsEntitiesAndImports(t *testing.T) {
	p := New()
	require.Equal(t, "go", p.Language())
	require.Equal(t, []string{".go"}, p.Extensions())

	result, err := p.ParseFile("widget.go", []byte(sample))
	require.NoError(t, err)
	require.Equal(t, "go", result.Language)

	var widget, render, newWidget *rpgast.CodeEntity
	for i := range result.Entities {
		e := &result.Entities[i]
		switch e.Name {
		case "Widget":
			widget = e
		case "Render":
			render = e
		case "NewWidget":
			newWidget = e
		}
	}

	require.NotNil(t, widget)
	require.Equal(t, rpgast.KindClass, widget.Kind)

	require.NotNil(t, render)
	require.Equal(t, rpgast.KindMethod, render.Kind)
	require.Equal(t, "Widget", render.Parent)
	require.Contains(t, render.Doc, "prints the widget")

	require.NotNil(t, newWidget)
	require.Equal(t, rpgast.KindFunction, newWidget.Kind)
	require.Empty(t, newWidget.Parent)

	require.Len(t, result.Imports, 2)
	modules := []string{result.Imports[0].Module, result.Imports[1].Module}
	require.ElementsMatch(t, []string{"fmt", "strings"}, modules)
}

func TestParseFileReturnsErrorOnInvalidSyntax(t *testing.T) {
	p := New()
	_, err := p.ParseFile("broken.go", []byte("package widgets\nfunc ( {"))
	require.Error(t, err)
}

func TestRegistryDispatchesByExtension(t *testing.T) {
	reg := rpgast.NewRegistry()
	reg.Register(New())

	require.True(t, reg.Supported("main.go"))
	require.False(t, reg.Supported("main.py"))

	result, err := reg.ParseFile("main.go", []byte("package main\nfunc main() {}\n"))
	require.NoError(t, err)
	require.Len(t, result.Entities, 1)

	result, err = reg.ParseFile("README.md", []byte("# hi"))
	require.NoError(t, err)
	require.Empty(t, result.Entities)
}
