// Package syntax provides a lossless syntax tree for Nix expressions.
//
// A Tree is produced by Parse and is never mutated afterwards. Every element
// of the tree, tokens included, is a *Node tagged with a Kind and a byte
// range into the parsed text. Typed access goes through the view types in
// views.go, which are obtained with the As* cast functions.
package syntax

import "fmt"

// Kind tags a token or a node.
type Kind uint16

// Token kinds. Tokens are the leaves of the tree.
const (
	TokenEOF Kind = iota
	TokenError
	TokenWhitespace
	TokenComment

	TokenIdent
	TokenInteger
	TokenFloat
	TokenPath
	TokenSearchPath
	TokenURI

	TokenStringStart
	TokenStringContent
	TokenStringEnd
	TokenInterpolStart
	TokenInterpolEnd

	TokenAssert
	TokenElse
	TokenIf
	TokenIn
	TokenInherit
	TokenLet
	TokenOr
	TokenRec
	TokenThen
	TokenWith

	TokenLBrace
	TokenRBrace
	TokenLBrack
	TokenRBrack
	TokenLParen
	TokenRParen
	TokenAssign
	TokenAt
	TokenColon
	TokenComma
	TokenDot
	TokenEllipsis
	TokenQuestion
	TokenSemicolon

	TokenConcat
	TokenUpdate
	TokenAdd
	TokenSub
	TokenMul
	TokenDiv
	TokenNot
	TokenAnd
	TokenLogicalOr
	TokenImplication
	TokenEqual
	TokenNotEqual
	TokenLess
	TokenLessEq
	TokenGreater
	TokenGreaterEq

	firstNodeKind
)

// Node kinds.
const (
	NodeRoot Kind = firstNodeKind + iota
	NodeError
	NodeApply
	NodeAssert
	NodeAttrSet
	NodeBinOp
	NodeDynamic
	NodeHasAttr
	NodeIdent
	NodeIfElse
	NodeInherit
	NodeInheritFrom
	NodeInterpol
	NodeKey
	NodeKeyValue
	NodeLambda
	NodeLetIn
	NodeList
	NodeLiteral
	NodeParen
	NodePatBind
	NodePatEntry
	NodePattern
	NodeSelect
	NodeString
	NodeUnaryOp
	NodeWith

	lastKind
)

var kindNames = [...]string{
	TokenEOF:           "EOF",
	TokenError:         "ERROR_TOKEN",
	TokenWhitespace:    "WHITESPACE",
	TokenComment:       "COMMENT",
	TokenIdent:         "IDENT",
	TokenInteger:       "INTEGER",
	TokenFloat:         "FLOAT",
	TokenPath:          "PATH",
	TokenSearchPath:    "SEARCH_PATH",
	TokenURI:           "URI",
	TokenStringStart:   "STRING_START",
	TokenStringContent: "STRING_CONTENT",
	TokenStringEnd:     "STRING_END",
	TokenInterpolStart: "INTERPOL_START",
	TokenInterpolEnd:   "INTERPOL_END",
	TokenAssert:        "assert",
	TokenElse:          "else",
	TokenIf:            "if",
	TokenIn:            "in",
	TokenInherit:       "inherit",
	TokenLet:           "let",
	TokenOr:            "or",
	TokenRec:           "rec",
	TokenThen:          "then",
	TokenWith:          "with",
	TokenLBrace:        "{",
	TokenRBrace:        "}",
	TokenLBrack:        "[",
	TokenRBrack:        "]",
	TokenLParen:        "(",
	TokenRParen:        ")",
	TokenAssign:        "=",
	TokenAt:            "@",
	TokenColon:         ":",
	TokenComma:         ",",
	TokenDot:           ".",
	TokenEllipsis:      "...",
	TokenQuestion:      "?",
	TokenSemicolon:     ";",
	TokenConcat:        "++",
	TokenUpdate:        "//",
	TokenAdd:           "+",
	TokenSub:           "-",
	TokenMul:           "*",
	TokenDiv:           "/",
	TokenNot:           "!",
	TokenAnd:           "&&",
	TokenLogicalOr:     "||",
	TokenImplication:   "->",
	TokenEqual:         "==",
	TokenNotEqual:      "!=",
	TokenLess:          "<",
	TokenLessEq:        "<=",
	TokenGreater:       ">",
	TokenGreaterEq:     ">=",
	NodeRoot:           "ROOT",
	NodeError:          "ERROR",
	NodeApply:          "APPLY",
	NodeAssert:         "ASSERT",
	NodeAttrSet:        "ATTR_SET",
	NodeBinOp:          "BIN_OP",
	NodeDynamic:        "DYNAMIC",
	NodeHasAttr:        "HAS_ATTR",
	NodeIdent:          "IDENT_NODE",
	NodeIfElse:         "IF_ELSE",
	NodeInherit:        "INHERIT",
	NodeInheritFrom:    "INHERIT_FROM",
	NodeInterpol:       "INTERPOL",
	NodeKey:            "KEY",
	NodeKeyValue:       "KEY_VALUE",
	NodeLambda:         "LAMBDA",
	NodeLetIn:          "LET_IN",
	NodeList:           "LIST",
	NodeLiteral:        "LITERAL",
	NodeParen:          "PAREN",
	NodePatBind:        "PAT_BIND",
	NodePatEntry:       "PAT_ENTRY",
	NodePattern:        "PATTERN",
	NodeSelect:         "SELECT",
	NodeString:         "STRING",
	NodeUnaryOp:        "UNARY_OP",
	NodeWith:           "WITH",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint16(k))
}

// IsToken reports whether k is a token kind.
func (k Kind) IsToken() bool { return k < firstNodeKind }

// IsTrivia reports whether k is whitespace or a comment.
func (k Kind) IsTrivia() bool { return k == TokenWhitespace || k == TokenComment }

var keywords = map[string]Kind{
	"assert":  TokenAssert,
	"else":    TokenElse,
	"if":      TokenIf,
	"in":      TokenIn,
	"inherit": TokenInherit,
	"let":     TokenLet,
	"or":      TokenOr,
	"rec":     TokenRec,
	"then":    TokenThen,
	"with":    TokenWith,
}
