// Filename: javascript/syntax/parse.go
package syntax

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// ErrUnsupportedLanguage is returned when a file extension maps to no grammar.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// Language identifies a grammar.
type Language string

const (
	LanguageJavaScript Language = "javascript"
	LanguageTypeScript Language = "typescript"
	LanguageTSX        Language = "tsx"
)

var extensions = map[string]Language{
	".js":  LanguageJavaScript,
	".jsx": LanguageJavaScript,
	".mjs": LanguageJavaScript,
	".cjs": LanguageJavaScript,
	".ts":  LanguageTypeScript,
	".mts": LanguageTypeScript,
	".cts": LanguageTypeScript,
	".tsx": LanguageTSX,
}

// LanguageFor picks the grammar for filename by extension (case-insensitive).
func LanguageFor(filename string) (Language, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if lang, ok := extensions[ext]; ok {
		return lang, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedLanguage, filename)
}

// SupportedExtensions returns the recognised file extensions, sorted.
func SupportedExtensions() []string {
	out := make([]string, 0, len(extensions))
	for ext := range extensions {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

func (l Language) grammar() (*sitter.Language, error) {
	switch l {
	case LanguageJavaScript:
		return javascript.GetLanguage(), nil
	case LanguageTypeScript:
		return typescript.GetLanguage(), nil
	case LanguageTSX:
		return tsx.GetLanguage(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, string(l))
}

// Tree is a lowered syntax tree together with the source it was built from.
type Tree struct {
	Filename string
	Language Language
	Source   []byte
	Root     *Program
	// HasErrors reports that tree-sitter recovered from syntax errors. The tree
	// is still usable, but parts of it may be missing.
	HasErrors bool
}

// Parse parses src with the grammar chosen by the extension of filename.
func Parse(ctx context.Context, filename string, src []byte) (*Tree, error) {
	lang, err := LanguageFor(filename)
	if err != nil {
		return nil, err
	}
	return ParseLanguage(ctx, filename, lang, src)
}

// ParseLanguage parses src with an explicit grammar. A fresh tree-sitter parser
// is used per call, so it is safe for concurrent use.
func ParseLanguage(ctx context.Context, filename string, lang Language, src []byte) (*Tree, error) {
	grammar, err := lang.grammar()
	if err != nil {
		return nil, err
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(grammar)

	cst, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		// A cancelled parse surfaces as an operation limit error.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("parsing %s: %w", filename, ctxErr)
		}
		return nil, fmt.Errorf("tree-sitter failed to parse %s: %w", filename, err)
	}
	defer cst.Close()

	rootNode := cst.RootNode()
	l := &lowerer{src: src}
	root, ok := l.lower(rootNode).(*Program)
	if !ok {
		return nil, fmt.Errorf("tree-sitter returned %q as the root of %s", rootNode.Type(), filename)
	}

	return &Tree{
		Filename:  filename,
		Language:  lang,
		Source:    src,
		Root:      root,
		HasErrors: rootNode.HasError(),
	}, nil
}

// ParseString is a convenience wrapper for tests and tools working on in-memory code.
func ParseString(filename, src string) (*Tree, error) {
	return Parse(context.Background(), filename, []byte(src))
}
