package pattern

// Token is one metavariable occurrence in a pattern or template string.
// Start and End are byte offsets of the whole token, dollar signs included.
type Token struct {
	Name  string
	Arity Arity
	Start int
	End   int
}

// Anonymous reports whether the token matches without binding.
func (t Token) Anonymous() bool {
	return t.Name == "" || t.Name[0] == '_'
}

const (
	sigil          = '$'
	sequenceSigils = 3
)

// ScanMetavariables returns the metavariable tokens of s in order.
//
// A token is a run of one or three '$' followed by a name of upper case
// letters, digits and underscores starting with a letter or underscore. A
// bare "$$$" is an anonymous sequence. Other runs of '$', lower case names
// and dollars glued to a preceding identifier character stay plain text.
func ScanMetavariables(s string) []Token {
	var tokens []Token

	for i := 0; i < len(s); {
		if s[i] != sigil || (i > 0 && isIdentByte(s[i-1])) {
			i++

			continue
		}

		run := 0
		for i+run < len(s) && s[i+run] == sigil {
			run++
		}

		nameStart := i + run
		nameEnd := nameStart

		if nameEnd < len(s) && isNameStart(s[nameEnd]) {
			nameEnd++

			for nameEnd < len(s) && isNameByte(s[nameEnd]) {
				nameEnd++
			}
		}

		// A name running into lower case letters is an ordinary identifier.
		if nameEnd < len(s) && isIdentByte(s[nameEnd]) {
			i = nameEnd + 1

			continue
		}

		switch {
		case run == 1 && nameEnd > nameStart:
			tokens = append(tokens, Token{Name: s[nameStart:nameEnd], Arity: Single, Start: i, End: nameEnd})
		case run == sequenceSigils:
			tokens = append(tokens, Token{Name: s[nameStart:nameEnd], Arity: Sequence, Start: i, End: nameEnd})
		}

		i = nameEnd
	}

	return tokens
}

func isNameStart(b byte) bool {
	return b == '_' || (b >= 'A' && b <= 'Z')
}

func isNameByte(b byte) bool {
	return isNameStart(b) || (b >= '0' && b <= '9')
}

func isIdentByte(b byte) bool {
	return isNameByte(b) || (b >= 'a' && b <= 'z') || b == sigil
}
