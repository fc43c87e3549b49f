package diffshape

import (
	"context"
	"encoding/json"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/meysamhadeli/gitshape/embed_data"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/csharp"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// grammar pairs a tree-sitter language with its tagged declaration queries.
// Queries compile once and are shared; parsers and cursors are per call.
type grammar struct {
	lang    *sitter.Language
	tagged  []byte
	once    sync.Once
	queries []*sitter.Query
}

var (
	goGrammar         = &grammar{lang: golang.GetLanguage(), tagged: embed_data.GoQuery}
	pythonGrammar     = &grammar{lang: python.GetLanguage(), tagged: embed_data.PythonQuery}
	javaGrammar       = &grammar{lang: java.GetLanguage(), tagged: embed_data.JavaQuery}
	javascriptGrammar = &grammar{lang: javascript.GetLanguage(), tagged: embed_data.JavascriptQuery}
	typescriptGrammar = &grammar{lang: typescript.GetLanguage(), tagged: embed_data.TypescriptQuery}
	csharpGrammar     = &grammar{lang: csharp.GetLanguage(), tagged: embed_data.CSharpQuery}
	rustGrammar       = &grammar{lang: rust.GetLanguage(), tagged: embed_data.RustQuery}
)

var grammarsByExt = map[string]*grammar{
	".go":   goGrammar,
	".py":   pythonGrammar,
	".java": javaGrammar,
	".js":   javascriptGrammar,
	".jsx":  javascriptGrammar,
	".mjs":  javascriptGrammar,
	".ts":   typescriptGrammar,
	".cs":   csharpGrammar,
	".rs":   rustGrammar,
}

// grammarFor picks the grammar by file extension; nil means unsupported.
func grammarFor(p string) *grammar {
	return grammarsByExt[strings.ToLower(path.Ext(p))]
}

// compiled returns the declaration queries, skipping any that fail to compile.
func (g *grammar) compiled() []*sitter.Query {
	g.once.Do(func() {
		queries := make(map[string]string)
		if err := json.Unmarshal(g.tagged, &queries); err != nil {
			return
		}
		tags := make([]string, 0, len(queries))
		for tag := range queries {
			tags = append(tags, tag)
		}
		sort.Strings(tags)
		for _, tag := range tags {
			q, err := sitter.NewQuery([]byte(queries[tag]), g.lang)
			if err != nil {
				continue
			}
			g.queries = append(g.queries, q)
		}
	})
	return g.queries
}

// countDeclarations parses a source fragment and returns the number of
// lines on which a declaration starts. The bool is false when the fragment
// could not be analyzed.
func (g *grammar) countDeclarations(src string) (int, bool) {
	queries := g.compiled()
	if len(queries) == 0 {
		return 0, false
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(g.lang)

	tree, err := parser.ParseCtx(context.Background(), nil, []byte(src))
	if err != nil || tree == nil {
		return 0, false
	}
	defer tree.Close()

	rows := make(map[uint32]struct{})
	for _, q := range queries {
		cursor := sitter.NewQueryCursor()
		cursor.Exec(q, tree.RootNode())
		for {
			match, ok := cursor.NextMatch()
			if !ok {
				break
			}
			for _, c := range match.Captures {
				rows[c.Node.StartPoint().Row] = struct{}{}
			}
		}
		cursor.Close()
	}
	return len(rows), true
}
