package asm

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var irLexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		// Comments
		{"Comment", `;[^\n]*`, nil},

		// Value references
		{"Local", `%[a-zA-Z0-9_.$]+`, nil},
		{"GlobalSym", `@[a-zA-Z0-9_.$]+`, nil},

		// Numeric literals (float must win over int)
		{"Float", `-?[0-9]+\.[0-9]+`, nil},
		{"Int", `-?[0-9]+`, nil},

		// Keywords, opcodes, type names, labels
		{"Ident", `[a-zA-Z_][a-zA-Z0-9_]*`, nil},

		// Punctuation
		{"Punct", `[=(){}\[\]<>,:]`, nil},

		// Whitespace
		{"Whitespace", `[ \t\r\n]+`, nil},
	},
})

var parser = participle.MustBuild[fileRef](
	participle.Lexer(irLexer),
	participle.Elide("Whitespace", "Comment"),
	participle.UseLookahead(4),
)
