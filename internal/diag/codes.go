package diag

import "fmt"

// Code is a numeric diagnostic code as the type-checking engine reports it.
type Code int

const (
	UnknownCode Code = 0

	// Коды движка
	DeclarationExpected       Code = 1005 // "'X' expected."
	ExpressionExpected        Code = 1109
	UnexpectedGreaterThan     Code = 1382
	CannotFindName            Code = 2304
	CannotFindModule          Code = 2307
	ModuleSyntaxOutsideModule Code = 2657
	ImportRequiresExtension   Code = 2691
	JSONModuleNotAllowed      Code = 2732
	ExtensionNotAllowed       Code = 2792
	DeclaredButNeverRead      Code = 6133
	AllowJSXFlagRequired      Code = 6142
	MissingDeclarationFile    Code = 7016
	DuplicateJSXAttribute     Code = 17001
	JSXFlagRequired           Code = 17004

	// Ошибки разбора компонента, см. internal/transpile
	ParserFrontmatterUnterminated Code = 9001
	ParserExpressionUnterminated  Code = 9002
	ParserCommentUnterminated     Code = 9003
	ParserRawElementUnterminated  Code = 9004
	ParserTagUnterminated         Code = 9005
)

var codeDescription = map[Code]string{
	UnknownCode:                   "unknown diagnostic",
	DeclarationExpected:           "token expected",
	ExpressionExpected:            "expression expected",
	UnexpectedGreaterThan:         "unexpected '>' in markup text",
	ModuleSyntaxOutsideModule:     "module syntax outside a module",
	ImportRequiresExtension:       "import path cannot end with a script extension",
	ExtensionNotAllowed:           "extension not allowed in module specifier",
	CannotFindModule:              "cannot find module",
	JSONModuleNotAllowed:          "JSON module import without resolveJsonModule",
	DeclaredButNeverRead:          "declared but never read",
	AllowJSXFlagRequired:          "module resolved to a JSX file without the jsx flag",
	MissingDeclarationFile:        "missing declaration file",
	DuplicateJSXAttribute:         "duplicate JSX attribute",
	JSXFlagRequired:               "JSX used without the jsx flag",
	CannotFindName:                "cannot find name",
	ParserFrontmatterUnterminated: "unterminated frontmatter",
	ParserExpressionUnterminated:  "unterminated expression",
	ParserCommentUnterminated:     "unterminated comment",
	ParserRawElementUnterminated:  "unterminated script or style element",
	ParserTagUnterminated:         "unterminated tag",
}

// ID returns the short code form, e.g. "TS2307" or "ASTRO9001".
func (c Code) ID() string {
	if c >= 9000 && c < 10000 {
		return fmt.Sprintf("ASTRO%d", int(c))
	}
	return fmt.Sprintf("TS%d", int(c))
}

// Title is a short description of well-known codes.
func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[UnknownCode]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
