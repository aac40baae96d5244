package lexer

import "github.com/rustlite/rustlite/internal/trie"

// operators is a prefix trie over every punctuation/operator spelling the
// lexer recognizes, used to perform the maximal-munch matching spec.md
// §4.1 describes: "the lexer advances through the table in parallel with
// incoming characters, keeping the longest prefix that matched a complete
// entry". Grounded on the teacher's internal/trie (a longest-prefix map),
// which is exactly the data structure that operation needs.
var operators = buildOperatorTrie()

// delimiters are the punctuation spellings that open or close a token-tree
// group (see package tt); they are still ordinary Punct tokens as far as
// the lexer is concerned.
var delimiters = map[string]struct{}{
	"(": {}, ")": {}, "[": {}, "]": {}, "{": {}, "}": {},
}

func buildOperatorTrie() *trie.Trie[struct{}] {
	t := &trie.Trie[struct{}]{}
	for _, op := range []string{
		// single-char
		"+", "-", "*", "/", "%", "^", "!", "&", "|", "~", "@", ".", ",", ";",
		":", "#", "$", "?", "=", "<", ">", "(", ")", "[", "]", "{", "}",
		// two-char
		"&&", "||", "==", "!=", "<=", ">=", "<<", ">>",
		"+=", "-=", "*=", "/=", "%=", "^=", "&=", "|=",
		"->", "=>", "::", "..",
		// three-char
		"<<=", ">>=", "..=", "...",
	} {
		t.Insert(op, struct{}{})
	}
	return t
}

// matchOperator performs maximal-munch matching of s against the operator
// table, returning the longest recognized spelling and whether one matched
// at all.
func matchOperator(s string) (spelling string, ok bool) {
	prefix, _ := operators.Get(s)
	return prefix, prefix != ""
}
