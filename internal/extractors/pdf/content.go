package pdf

import (
	"strconv"
	"strings"
	"unicode/utf16"
)

// tjSpaceThreshold is the TJ kerning offset, in thousandths of an em, past
// which a gap is rendered as a space.
const tjSpaceThreshold = -200

type tokenKind int

const (
	tokString tokenKind = iota
	tokNumber
	tokOperator
	tokArrayStart
	tokArrayEnd
	tokOther
)

type token struct {
	kind tokenKind
	text string
	num  float64
}

// lexer tokenises a decoded PDF content stream. Only the pieces needed to
// recover text operators are interpreted; everything else is skipped.
type lexer struct {
	b []byte
	i int
}

func isWhite(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '\f', 0:
		return true
	}
	return false
}

func isDelim(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func (l *lexer) next() (token, bool) {
	for l.i < len(l.b) {
		c := l.b[l.i]
		switch {
		case isWhite(c):
			l.i++
		case c == '%':
			for l.i < len(l.b) && l.b[l.i] != '\n' && l.b[l.i] != '\r' {
				l.i++
			}
		case c == '(':
			return token{kind: tokString, text: l.literal()}, true
		case c == '<':
			if l.i+1 < len(l.b) && l.b[l.i+1] == '<' {
				l.i += 2
				return token{kind: tokOther}, true
			}
			return token{kind: tokString, text: l.hex()}, true
		case c == '>':
			l.i++
			if l.i < len(l.b) && l.b[l.i] == '>' {
				l.i++
			}
			return token{kind: tokOther}, true
		case c == '[':
			l.i++
			return token{kind: tokArrayStart}, true
		case c == ']':
			l.i++
			return token{kind: tokArrayEnd}, true
		case c == '/':
			l.i++
			l.word()
			return token{kind: tokOther}, true
		case c == '{' || c == '}' || c == ')':
			l.i++
		default:
			w := l.word()
			if w == "" {
				l.i++
				continue
			}
			if n, err := strconv.ParseFloat(w, 64); err == nil {
				return token{kind: tokNumber, num: n}, true
			}
			if w == "ID" {
				l.skipInlineImage()
			}
			return token{kind: tokOperator, text: w}, true
		}
	}
	return token{}, false
}

func (l *lexer) word() string {
	start := l.i
	for l.i < len(l.b) && !isWhite(l.b[l.i]) && !isDelim(l.b[l.i]) {
		l.i++
	}
	return string(l.b[start:l.i])
}

// skipInlineImage jumps past binary inline image data up to the EI operator.
func (l *lexer) skipInlineImage() {
	if l.i < len(l.b) {
		l.i++
	}
	for l.i+2 <= len(l.b) {
		if l.b[l.i] == 'E' && l.b[l.i+1] == 'I' &&
			(l.i == 0 || isWhite(l.b[l.i-1])) &&
			(l.i+2 == len(l.b) || isWhite(l.b[l.i+2])) {
			l.i += 2
			return
		}
		l.i++
	}
	l.i = len(l.b)
}

// literal reads a (...) string with nesting and escapes.
func (l *lexer) literal() string {
	l.i++ // (
	var out []byte
	depth := 1
	for l.i < len(l.b) {
		c := l.b[l.i]
		l.i++
		switch c {
		case '(':
			depth++
			out = append(out, c)
		case ')':
			depth--
			if depth == 0 {
				return decodeBytes(out)
			}
			out = append(out, c)
		case '\\':
			if l.i >= len(l.b) {
				break
			}
			e := l.b[l.i]
			l.i++
			switch e {
			case 'n':
				out = append(out, '\n')
			case 'r':
				out = append(out, '\r')
			case 't':
				out = append(out, '\t')
			case 'b':
				out = append(out, '\b')
			case 'f':
				out = append(out, '\f')
			case '\r':
				if l.i < len(l.b) && l.b[l.i] == '\n' {
					l.i++
				}
			case '\n':
			default:
				if e >= '0' && e <= '7' {
					v := int(e - '0')
					for k := 0; k < 2 && l.i < len(l.b) && l.b[l.i] >= '0' && l.b[l.i] <= '7'; k++ {
						v = v*8 + int(l.b[l.i]-'0')
						l.i++
					}
					out = append(out, byte(v))
				} else {
					out = append(out, e)
				}
			}
		default:
			out = append(out, c)
		}
	}
	return decodeBytes(out)
}

// hex reads a <...> string.
func (l *lexer) hex() string {
	l.i++ // <
	var digits []byte
	for l.i < len(l.b) && l.b[l.i] != '>' {
		if c := l.b[l.i]; !isWhite(c) {
			digits = append(digits, c)
		}
		l.i++
	}
	l.i++ // >
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	out := make([]byte, 0, len(digits)/2)
	for k := 0; k+1 < len(digits); k += 2 {
		v, err := strconv.ParseUint(string(digits[k:k+2]), 16, 8)
		if err != nil {
			continue
		}
		out = append(out, byte(v))
	}
	return decodeBytes(out)
}

// decodeBytes treats UTF-16BE strings with a byte order mark as Unicode and
// everything else as single-byte text.
func decodeBytes(b []byte) string {
	if len(b) >= 2 && b[0] == 0xFE && b[1] == 0xFF {
		b = b[2:]
		units := make([]uint16, 0, len(b)/2)
		for k := 0; k+1 < len(b); k += 2 {
			units = append(units, uint16(b[k])<<8|uint16(b[k+1]))
		}
		return string(utf16.Decode(units))
	}
	runes := make([]rune, len(b))
	for k, c := range b {
		runes[k] = rune(c)
	}
	return string(runes)
}

// decodeText recovers the text shown by the Tj, TJ, ' and " operators of a
// content stream. Line moves and text object ends start a new line.
// Fonts with multi-byte encodings are not mapped through their CMaps.
func decodeText(stream []byte) string {
	l := &lexer{b: stream}

	var (
		out      strings.Builder
		line     strings.Builder
		operands []token
		inArray  bool
		array    []token
	)
	newline := func() {
		if s := strings.TrimSpace(line.String()); s != "" {
			out.WriteString(s)
			out.WriteByte('\n')
		}
		line.Reset()
	}
	lastString := func() (string, bool) {
		for k := len(operands) - 1; k >= 0; k-- {
			if operands[k].kind == tokString {
				return operands[k].text, true
			}
		}
		return "", false
	}

	for {
		tok, ok := l.next()
		if !ok {
			break
		}
		if inArray {
			if tok.kind == tokArrayEnd {
				inArray = false
				operands = append(operands, token{kind: tokOther, text: "array"})
				continue
			}
			array = append(array, tok)
			continue
		}

		switch tok.kind {
		case tokArrayStart:
			inArray = true
			array = array[:0]
			continue
		case tokOperator:
		default:
			operands = append(operands, tok)
			continue
		}

		switch tok.text {
		case "Tj":
			if s, ok := lastString(); ok {
				line.WriteString(s)
			}
		case "'", "\"":
			newline()
			if s, ok := lastString(); ok {
				line.WriteString(s)
			}
		case "TJ":
			for _, el := range array {
				switch el.kind {
				case tokString:
					line.WriteString(el.text)
				case tokNumber:
					if el.num < tjSpaceThreshold {
						line.WriteByte(' ')
					}
				}
			}
		case "T*", "ET":
			newline()
		case "Td", "TD":
			if len(operands) >= 2 && operands[len(operands)-1].num != 0 {
				newline()
			} else if line.Len() > 0 {
				line.WriteByte(' ')
			}
		case "Tm":
			newline()
		}
		operands = operands[:0]
	}
	newline()
	return strings.TrimRight(out.String(), "\n")
}
