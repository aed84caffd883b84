// Command roost-tool-gen generates tool definitions for functions annotated
// with a "roost:tool" comment.
//
// For every annotated function in a file foo.go it writes foo.roost.go holding
// a variable named after the function with a "Tool" suffix:
//
//	// roost:tool
//	// Returns the weather for a location.
//	func getWeather(ctx context.Context, location string) (string, error)
//
// becomes
//
//	// Returns the weather for a location.
//	var getWeatherTool = tool.Must(getWeather, tool.Name("get_weather"), ...)
//
// The directive accepts options: "strict" adds tool.Strict(true) and
// "name=lookup_weather" replaces the derived tool name. Functions taking a
// single map[string]any receive every argument and get no Parameters call.
//
// Run it with -path pointing at a file or a directory, -export to export the
// generated variables.
package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"go/ast"
	"go/parser"
	"go/printer"
	"go/token"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-openapi/swag"
	"github.com/phsym/zeroslog"
	"github.com/rs/zerolog"
	"mvdan.cc/gofumpt/format"
)

const (
	directive       = "roost:tool"
	generatedSuffix = ".roost.go"
	toolPackage     = "github.com/casualjim/roost/tool"
)

var (
	log    zerolog.Logger
	osExit = os.Exit
)

func init() {
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Stamp}
	log = zerolog.New(output).With().Timestamp().Logger()
	slog.SetDefault(slog.New(
		zeroslog.NewHandler(log, &zeroslog.HandlerOptions{Level: slog.LevelInfo}),
	))
}

type toolFuncInfo struct {
	name        string
	toolName    string
	strict      bool
	comments    []*ast.Comment
	params      []*ast.Field
	exportTools bool
}

func main() {
	path := flag.String("path", ".", "file or directory to scan for tool functions")
	export := flag.Bool("export", false, "export the generated tool variables")
	flag.Parse()

	info, err := os.Stat(*path)
	if err != nil {
		slog.Error("Error accessing path", "path", *path, "error", err)
		osExit(1)
		return
	}

	if !info.IsDir() {
		if err := processGoFile(*path, *export); err != nil {
			osExit(1)
		}
		return
	}

	var errs []error
	err = filepath.WalkDir(*path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isSource(p) {
			return nil
		}
		if err := processGoFile(p, *export); err != nil {
			errs = append(errs, err)
		}
		return nil
	})
	if err != nil {
		slog.Error("Error walking directory", "path", *path, "error", err)
		osExit(1)
		return
	}
	if len(errs) > 0 {
		osExit(1)
	}
}

func isSource(path string) bool {
	return strings.HasSuffix(path, ".go") &&
		!strings.HasSuffix(path, "_test.go") &&
		!strings.HasSuffix(path, generatedSuffix)
}

func processGoFile(path string, exportTools bool) error {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, nil, parser.ParseComments)
	if err != nil {
		slog.Error("Error parsing file", "file", path, "error", err)
		return err
	}

	tools, err := collectTools(file, exportTools)
	if err != nil {
		slog.Error("Error reading tool directive", "file", path, "error", err)
		return err
	}
	if len(tools) == 0 {
		return nil
	}

	src, err := render(createToolsFile(file.Name.Name, tools))
	if err != nil {
		slog.Error("Error rendering tools", "file", path, "error", err)
		return err
	}

	target := strings.TrimSuffix(path, ".go") + generatedSuffix
	if err := os.WriteFile(target, src, 0o644); err != nil {
		slog.Error("Error writing file", "file", target, "error", err)
		return err
	}
	slog.Info("Generated file", "file", target, "tools", len(tools))
	return nil
}

type directiveOptions struct {
	name   string
	strict bool
}

// parseDirective reports whether c is a tool directive and reads its options.
func parseDirective(c *ast.Comment) (directiveOptions, bool, error) {
	fields := strings.Fields(strings.TrimPrefix(c.Text, "//"))
	if len(fields) == 0 || fields[0] != directive {
		return directiveOptions{}, false, nil
	}
	var o directiveOptions
	for _, f := range fields[1:] {
		switch key, value, _ := strings.Cut(f, "="); key {
		case "strict":
			o.strict = value == "" || value == "true"
		case "name":
			if value == "" {
				return o, true, errors.New("name option needs a value")
			}
			o.name = value
		default:
			return o, true, fmt.Errorf("unknown option %q", f)
		}
	}
	return o, true, nil
}

func collectTools(file *ast.File, exportTools bool) ([]toolFuncInfo, error) {
	var tools []toolFuncInfo
	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Recv != nil || fn.Doc == nil {
			continue
		}

		annotated := false
		var options directiveOptions
		var comments []*ast.Comment
		for _, c := range fn.Doc.List {
			o, ok, err := parseDirective(c)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", fn.Name.Name, err)
			}
			if ok {
				annotated, options = true, o
				continue
			}
			comments = append(comments, c)
		}
		if !annotated {
			continue
		}

		toolName := options.name
		if toolName == "" {
			toolName = swag.ToFileName(fn.Name.Name)
		}
		tools = append(tools, toolFuncInfo{
			name:        fn.Name.Name,
			toolName:    toolName,
			strict:      options.strict,
			comments:    comments,
			params:      fn.Type.Params.List,
			exportTools: exportTools,
		})
	}
	return tools, nil
}

func createToolsFile(pkgName string, tools []toolFuncInfo) *ast.File {
	file := &ast.File{
		Name: ast.NewIdent(pkgName),
		Decls: []ast.Decl{
			&ast.GenDecl{
				Tok: token.IMPORT,
				Specs: []ast.Spec{
					&ast.ImportSpec{Path: &ast.BasicLit{Kind: token.STRING, Value: strconv.Quote(toolPackage)}},
				},
			},
		},
	}
	for _, t := range tools {
		file.Decls = append(file.Decls, createToolVariableAST(t))
	}
	return file
}

func variableName(t toolFuncInfo) string {
	if t.exportTools {
		return swag.ToGoName(t.name) + "Tool"
	}
	return t.name + "Tool"
}

func description(comments []*ast.Comment) string {
	lines := make([]string, 0, len(comments))
	for _, c := range comments {
		line := strings.TrimSpace(strings.TrimPrefix(c.Text, "//"))
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, " ")
}

func isContext(expr ast.Expr) bool {
	sel, ok := expr.(*ast.SelectorExpr)
	if !ok {
		return false
	}
	pkg, ok := sel.X.(*ast.Ident)
	return ok && pkg.Name == "context" && sel.Sel.Name == "Context"
}

func isKwargs(expr ast.Expr) bool {
	m, ok := expr.(*ast.MapType)
	if !ok {
		return false
	}
	key, ok := m.Key.(*ast.Ident)
	if !ok || key.Name != "string" {
		return false
	}
	switch v := m.Value.(type) {
	case *ast.Ident:
		return v.Name == "any"
	case *ast.InterfaceType:
		return v.Methods == nil || len(v.Methods.List) == 0
	}
	return false
}

// parameterNames lists the positional parameter names. Context parameters
// are skipped; a lone map[string]any parameter yields none.
func parameterNames(params []*ast.Field) []string {
	var rest []*ast.Field
	for _, field := range params {
		if !isContext(field.Type) {
			rest = append(rest, field)
		}
	}
	if len(rest) == 1 && len(rest[0].Names) <= 1 && isKwargs(rest[0].Type) {
		return nil
	}

	var names []string
	for _, field := range rest {
		if len(field.Names) == 0 {
			names = append(names, fmt.Sprintf("param%d", len(names)))
			continue
		}
		for _, n := range field.Names {
			names = append(names, n.Name)
		}
	}
	return names
}

func selector(name string) *ast.SelectorExpr {
	return &ast.SelectorExpr{X: ast.NewIdent("tool"), Sel: ast.NewIdent(name)}
}

func stringLit(s string) *ast.BasicLit {
	return &ast.BasicLit{Kind: token.STRING, Value: strconv.Quote(s)}
}

func createToolVariableAST(t toolFuncInfo) ast.Decl {
	args := []ast.Expr{
		ast.NewIdent(t.name),
		&ast.CallExpr{Fun: selector("Name"), Args: []ast.Expr{stringLit(t.toolName)}},
	}
	if desc := description(t.comments); desc != "" {
		args = append(args, &ast.CallExpr{Fun: selector("Description"), Args: []ast.Expr{stringLit(desc)}})
	}
	if names := parameterNames(t.params); len(names) > 0 {
		params := make([]ast.Expr, 0, len(names))
		for _, n := range names {
			params = append(params, stringLit(n))
		}
		args = append(args, &ast.CallExpr{Fun: selector("Parameters"), Args: params})
	}
	if t.strict {
		args = append(args, &ast.CallExpr{Fun: selector("Strict"), Args: []ast.Expr{ast.NewIdent("true")}})
	}

	var doc *ast.CommentGroup
	if len(t.comments) > 0 {
		doc = &ast.CommentGroup{List: t.comments}
	}
	return &ast.GenDecl{
		Doc: doc,
		Tok: token.VAR,
		Specs: []ast.Spec{
			&ast.ValueSpec{
				Names:  []*ast.Ident{ast.NewIdent(variableName(t))},
				Values: []ast.Expr{&ast.CallExpr{Fun: selector("Must"), Args: args}},
			},
		},
	}
}

// render prints the file declaration by declaration so doc comments land
// above their variable, then formats the result with gofumpt.
func render(file *ast.File) ([]byte, error) {
	fset := token.NewFileSet()
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "// Code generated by roost-tool-gen. DO NOT EDIT.\n\npackage %s\n", file.Name.Name)
	for _, decl := range file.Decls {
		buf.WriteString("\n")
		gen, ok := decl.(*ast.GenDecl)
		if !ok {
			return nil, errors.New("only general declarations can be rendered")
		}
		if gen.Doc != nil {
			for _, c := range gen.Doc.List {
				buf.WriteString(c.Text)
				buf.WriteString("\n")
			}
			undocumented := *gen
			undocumented.Doc = nil
			gen = &undocumented
		}
		if err := printer.Fprint(&buf, fset, gen); err != nil {
			return nil, err
		}
		buf.WriteString("\n")
	}
	return format.Source(buf.Bytes(), format.Options{LangVersion: "go1.23", ExtraRules: true})
}
