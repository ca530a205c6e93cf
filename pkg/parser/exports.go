package parser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/runningman84/replica-monitor/pkg/models"
)

// ErrInvalidGlobalTimer is returned when exports_global_timer carries a value other than true or false
var ErrInvalidGlobalTimer = errors.New("invalid exports_global_timer value")

const (
	labelFunctions   = "exported_functions"
	labelHeartbeat   = "exports_heartbeat"
	labelGlobalTimer = "exports_global_timer"

	tagQuery  = "Query"
	tagUpdate = "Update"
	tagSystem = "System"

	tokenTrue  = "true"
	tokenFalse = "false"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokLBrace
	tokRBrace
	tokComma
	tokLParen
	tokRParen
	tokColon
	tokString
	tokWord
)

type token struct {
	kind tokenKind
	text string
}

var delimiters = map[rune]tokenKind{
	'{': tokLBrace,
	'}': tokRBrace,
	',': tokComma,
	'(': tokLParen,
	')': tokRParen,
	':': tokColon,
}

// lex splits a debug dump into delimiter, quoted string and bare word tokens.
// Quotes are not escaped by the producer, so a string simply runs to the next quote.
func lex(s string) []token {
	var tokens []token
	runes := []rune(s)
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case isSpace(r):
			i++
		case r == '"':
			j := i + 1
			for j < len(runes) && runes[j] != '"' {
				j++
			}
			tokens = append(tokens, token{kind: tokString, text: string(runes[i+1 : j])})
			i = j + 1
		default:
			if kind, ok := delimiters[r]; ok {
				tokens = append(tokens, token{kind: kind, text: string(r)})
				i++
				continue
			}
			j := i
			for j < len(runes) && !isSpace(runes[j]) && runes[j] != '"' {
				if _, ok := delimiters[runes[j]]; ok {
					break
				}
				j++
			}
			tokens = append(tokens, token{kind: tokWord, text: string(runes[i:j])})
			i = j
		}
	}
	return tokens
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\f' || r == '\v'
}

// exportItem is one tagged entry of the exported functions set, e.g. Query("greet")
type exportItem struct {
	tag  string
	name string
}

type exportsDecoder struct {
	tokens []token
	pos    int
}

// ParseExports decodes the exports cell of a canister, e.g.
//
//	ExportedFunctions { exported_functions: {Query("greet"), System(CanisterInit)}, exports_heartbeat: false, exports_global_timer: true }
//
// Missing pieces decode to empty lists and false flags. The only failure is an
// exports_global_timer value that is neither true nor false.
func ParseExports(raw string) (models.ExportsDescriptor, error) {
	d := &exportsDecoder{tokens: lex(raw)}
	return d.decode()
}

func (d *exportsDecoder) peek(offset int) token {
	if d.pos+offset >= len(d.tokens) {
		return token{kind: tokEOF}
	}
	return d.tokens[d.pos+offset]
}

func (d *exportsDecoder) next() token {
	t := d.peek(0)
	if t.kind != tokEOF {
		d.pos++
	}
	return t
}

func (d *exportsDecoder) decode() (models.ExportsDescriptor, error) {
	var (
		desc          models.ExportsDescriptor
		items         []exportItem
		haveItems     bool
		haveHeartbeat bool
	)

	for d.peek(0).kind != tokEOF {
		switch {
		case d.atLabel():
			label := d.next().text
			d.next() // ':'
			switch label {
			case labelFunctions:
				if !haveItems && d.peek(0).kind == tokLBrace {
					items, haveItems = d.itemSet(), true
				}
			case labelHeartbeat:
				if !haveHeartbeat {
					desc.ExportsHeartbeat, haveHeartbeat = d.heartbeat(), true
				}
			case labelGlobalTimer:
				value, err := d.globalTimer()
				if err != nil {
					return models.ExportsDescriptor{}, err
				}
				desc.ExportsGlobalTimer = value
			}
		case !haveItems && d.atItemSet():
			items, haveItems = d.itemSet(), true
		default:
			d.next()
		}
	}

	desc.QueryFunctions = filterTag(items, tagQuery)
	desc.UpdateFunctions = filterTag(items, tagUpdate)
	desc.SystemFunctions = filterTag(items, tagSystem)

	return desc, nil
}

// atLabel reports whether the next tokens are `name :`
func (d *exportsDecoder) atLabel() bool {
	return d.peek(0).kind == tokWord && d.peek(1).kind == tokColon
}

// atItemSet tells a set literal `{ Tag(...), ... }` apart from a struct body `{ field: ... }`
func (d *exportsDecoder) atItemSet() bool {
	if d.peek(0).kind != tokLBrace {
		return false
	}
	return d.peek(1).kind != tokWord || d.peek(2).kind != tokColon
}

// itemSet consumes a set literal. An unterminated set yields no items.
func (d *exportsDecoder) itemSet() []exportItem {
	d.next() // '{'
	var items []exportItem
	for {
		switch d.peek(0).kind {
		case tokEOF:
			return nil
		case tokRBrace:
			d.next()
			return items
		case tokComma:
			d.next()
		default:
			if item, ok := d.item(); ok {
				items = append(items, item)
			}
		}
	}
}

// item consumes `Tag("name")` or `Tag(Name)`; anything else is skipped up to the next separator
func (d *exportsDecoder) item() (exportItem, bool) {
	if d.peek(0).kind == tokWord &&
		d.peek(1).kind == tokLParen &&
		(d.peek(2).kind == tokString || d.peek(2).kind == tokWord) &&
		d.peek(3).kind == tokRParen {
		item := exportItem{tag: d.peek(0).text, name: d.peek(2).text}
		d.pos += 4
		return item, true
	}

	d.next()
	for k := d.peek(0).kind; k != tokComma && k != tokRBrace && k != tokEOF; k = d.peek(0).kind {
		d.next()
	}
	return exportItem{}, false
}

// heartbeat reads the value up to the next comma. Only an exact true counts.
// A value without a comma is false; the scan stops before the next label so it stays visible.
func (d *exportsDecoder) heartbeat() bool {
	var value []token
	for {
		if d.atLabel() {
			return false
		}
		switch d.peek(0).kind {
		case tokEOF:
			return false
		case tokComma:
			return len(value) == 1 && value[0].kind == tokWord && value[0].text == tokenTrue
		}
		value = append(value, d.next())
	}
}

// globalTimer reads the rest of the literal, closing braces dropped, and requires true or false
func (d *exportsDecoder) globalTimer() (bool, error) {
	var value []token
	for t := d.next(); t.kind != tokEOF; t = d.next() {
		if t.kind == tokRBrace {
			continue
		}
		value = append(value, t)
	}

	if len(value) == 1 && value[0].kind == tokWord {
		switch value[0].text {
		case tokenTrue:
			return true, nil
		case tokenFalse:
			return false, nil
		}
	}

	text := make([]string, 0, len(value))
	for _, t := range value {
		text = append(text, t.text)
	}
	return false, fmt.Errorf("%w: %q", ErrInvalidGlobalTimer, strings.Join(text, " "))
}

// filterTag returns the names of all items with the given tag, in literal order
func filterTag(items []exportItem, tag string) []string {
	var names []string
	for _, item := range items {
		if item.tag == tag {
			names = append(names, item.name)
		}
	}
	return names
}
