package spef

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// SPEFLexer defines the lexical structure of the SPEF subset.
// Keywords are case sensitive in SPEF.
var SPEFLexer = lexer.MustSimple([]lexer.SimpleRule{
	// Comments - C++ style (// to end of line)
	{Name: "Comment", Pattern: `//[^\n]*`},

	// Whitespace
	{Name: "Whitespace", Pattern: `[\s\t\n\r]+`},

	// String literals
	{Name: "String", Pattern: `"(?:[^"\\]|\\.)*"`},

	// Section and entry keywords used by the grammar. Header keywords such
	// as *C_UNIT fall through to Keyword.
	{Name: "Section", Pattern: `\*(?:NAME_MAP|POWER_NETS|GROUND_NETS|PORTS|D_NET|CONN|CAP|RES|END|P|I|N|C|L|D)\b`},

	// Header keywords (*SPEF, *DESIGN, *T_UNIT, ...)
	{Name: "Keyword", Pattern: `\*[A-Z][A-Z_0-9]*`},

	// Name map indices (*1, *42)
	{Name: "Index", Pattern: `\*[0-9]+`},

	// Numbers
	{Name: "Number", Pattern: `[-+]?(?:[0-9]+\.?[0-9]*|\.[0-9]+)(?:[eE][-+]?[0-9]+)?`},

	// Identifiers; hierarchy dividers and bus brackets are part of names
	{Name: "Ident", Pattern: `[a-zA-Z_\\][a-zA-Z0-9_/\[\]\.\\]*`},

	// Pin delimiter
	{Name: "Colon", Pattern: `:`},

	// Remaining punctuation (*DIVIDER /, *BUS_DELIMITER [ ])
	{Name: "Punct", Pattern: `[/\[\]\{\}\(\)\.\|<>#]`},
})
