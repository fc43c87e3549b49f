package embed_data

import _ "embed"

// ModelDetails is the pricing and context table of known chat models.
//
//go:embed models_details.json
var ModelDetails []byte

//go:embed tree-sitter/queries/go.json
var GoQuery []byte

//go:embed tree-sitter/queries/python.json
var PythonQuery []byte

//go:embed tree-sitter/queries/java.json
var JavaQuery []byte

//go:embed tree-sitter/queries/javascript.json
var JavascriptQuery []byte

//go:embed tree-sitter/queries/typescript.json
var TypescriptQuery []byte

//go:embed tree-sitter/queries/csharp.json
var CSharpQuery []byte

//go:embed tree-sitter/queries/rust.json
var RustQuery []byte
