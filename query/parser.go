package query

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/bitfunnel/bitfunnel/term"
)

// ParseError is a recoverable query syntax error: Position is the character
// (rune) offset into the query string where the problem was found, Message
// describes it. Parse never panics on malformed input — only a genuinely
// broken parser invariant does that (spec §7: "Fatal" is reserved for
// programming errors, not untrusted query text).
type ParseError struct {
	Position int
	Message  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("query: %s (at character %d)", e.Message, e.Position)
}

// Streams resolves the optional "streamName:" prefix of a query term to a
// StreamId. Unqualified terms resolve to Default; a prefix absent from
// ByName is a recoverable ParseError.
type Streams struct {
	Default term.StreamId
	ByName  map[string]term.StreamId
}

// SingleStream is the common configuration: every term, qualified or not,
// resolves against a corpus with just one content stream.
func SingleStream(id term.StreamId) Streams {
	return Streams{Default: id}
}

func (s Streams) resolve(name string, pos int) (term.StreamId, error) {
	if id, ok := s.ByName[name]; ok {
		return id, nil
	}
	return 0, &ParseError{Position: pos, Message: fmt.Sprintf("unknown stream %q", name)}
}

// Escape prefixes every character with special meaning to the query grammar
// (operators, quotes, colons, backslash, and whitespace) with a backslash,
// so that Parse(Escape(text)) always yields a single unigram matching text
// literally.
func Escape(text string) string {
	var b strings.Builder
	for _, r := range text {
		if isSpecial(r) || unicode.IsSpace(r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Parse parses query text into a TermMatchTree, resolving term stream
// qualifiers via streams. Empty input yields a nil tree (no results), not
// an error. The grammar (spec §4.E):
//
//	orExpr  = andExpr ('|' andExpr)*
//	andExpr = unary (['&'] unary)*
//	unary   = '-' unary | primary
//	primary = TERM | '(' orExpr ')'
//	TERM    = [streamName ':'] (WORD | '"' WORD+ '"')
//
// Adjacent primaries (no operator between them) are implicitly ANDed; '&'
// between them is accepted and means the same thing.
func Parse(query string, streams Streams) (*TermMatchTree, error) {
	p := &parser{lex: newLexer(query), streams: streams}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.tok.kind == tokEOF {
		return nil, nil
	}
	tree, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokEOF {
		return nil, &ParseError{Position: p.tok.pos, Message: "unexpected trailing input"}
	}
	return tree, nil
}

type parser struct {
	lex     *lexer
	tok     token
	streams Streams
}

func (p *parser) advance() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

func (p *parser) parseOr() (*TermMatchTree, error) {
	first, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	children := []*TermMatchTree{first}
	for p.tok.kind == tokOr {
		if err := p.advance(); err != nil {
			return nil, err
		}
		next, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		children = append(children, next)
	}
	if len(children) == 1 {
		return children[0], nil
	}
	return Or(children...), nil
}

func (p *parser) parseAnd() (*TermMatchTree, error) {
	first, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	children := []*TermMatchTree{first}
	for {
		if p.tok.kind == tokAnd {
			if err := p.advance(); err != nil {
				return nil, err
			}
			if !p.startsPrimary() {
				return nil, &ParseError{Position: p.tok.pos, Message: "expected expression after '&'"}
			}
		} else if !p.startsPrimary() {
			break
		}
		next, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		children = append(children, next)
	}
	if len(children) == 1 {
		return children[0], nil
	}
	return And(children...), nil
}

func (p *parser) startsPrimary() bool {
	switch p.tok.kind {
	case tokWord, tokPhrase, tokLParen, tokNot:
		return true
	default:
		return false
	}
}

func (p *parser) parseUnary() (*TermMatchTree, error) {
	if p.tok.kind == tokNot {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if !p.startsPrimary() {
			return nil, &ParseError{Position: p.tok.pos, Message: "expected expression after '-'"}
		}
		child, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return Not(child), nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (*TermMatchTree, error) {
	switch p.tok.kind {
	case tokWord:
		text := p.tok.text
		pos := p.tok.pos
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.tok.kind == tokColon {
			return p.parseQualifiedTerm(text, pos)
		}
		return Term(p.streams.Default, text), nil
	case tokPhrase:
		words := p.tok.words
		if err := p.advance(); err != nil {
			return nil, err
		}
		return Phrase(p.streams.Default, words), nil
	case tokLParen:
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.tok.kind != tokRParen {
			return nil, &ParseError{Position: p.tok.pos, Message: "expected ')'"}
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return inner, nil
	case tokEOF:
		return nil, &ParseError{Position: p.tok.pos, Message: "unexpected end of query"}
	case tokRParen:
		return nil, &ParseError{Position: p.tok.pos, Message: "unexpected ')'"}
	case tokOr:
		return nil, &ParseError{Position: p.tok.pos, Message: "unexpected '|'"}
	case tokAnd:
		return nil, &ParseError{Position: p.tok.pos, Message: "unexpected '&'"}
	default:
		return nil, &ParseError{Position: p.tok.pos, Message: "unexpected token"}
	}
}

// parseQualifiedTerm handles the tail of "streamName: TERM", with the colon
// already current. name/namePos are the stream qualifier just consumed.
func (p *parser) parseQualifiedTerm(name string, namePos int) (*TermMatchTree, error) {
	stream, err := p.streams.resolve(name, namePos)
	if err != nil {
		return nil, err
	}
	if err := p.advance(); err != nil { // past the colon
		return nil, err
	}
	switch p.tok.kind {
	case tokWord:
		text := p.tok.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		return Term(stream, text), nil
	case tokPhrase:
		words := p.tok.words
		if err := p.advance(); err != nil {
			return nil, err
		}
		return Phrase(stream, words), nil
	default:
		return nil, &ParseError{Position: p.tok.pos, Message: "expected a term or phrase after stream qualifier"}
	}
}
