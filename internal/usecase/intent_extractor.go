package usecase

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf16"
	"unicode/utf8"

	"go-medical-chat-booking/internal/domain/entity"
)

// Payload keys the provider is allowed to emit
const (
	payloadKeyDoctor       = "doctor"
	payloadKeyDate         = "date"
	payloadKeyTime         = "time"
	payloadKeyInfoRequired = "info_required"
)

const codeFence = "```"

// ExtractIntent classifies a raw provider reply. It never evaluates the reply:
// anything that is not a flat mapping of known keys to string literals is
// Unparseable.
func ExtractIntent(raw string) entity.BookingIntent {
	fields, err := parsePayload(stripCodeFence(raw))
	if err != nil {
		return entity.UnparseableIntent()
	}

	if prompt, ok := fields[payloadKeyInfoRequired]; ok {
		prompt = strings.TrimSpace(prompt)
		if prompt == "" {
			return entity.UnparseableIntent()
		}
		return entity.NewClarificationIntent(prompt)
	}

	doctor := strings.TrimSpace(fields[payloadKeyDoctor])
	date := strings.TrimSpace(fields[payloadKeyDate])
	clock := strings.TrimSpace(fields[payloadKeyTime])
	if doctor == "" || date == "" || clock == "" {
		return entity.UnparseableIntent()
	}
	return entity.NewActionIntent(doctor, date, clock)
}

// stripCodeFence returns the body of the first ``` fenced block (dropping an
// optional language tag), or the trimmed input when no fence is present.
// An unterminated fence runs to the end of the input.
func stripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	start := strings.Index(s, codeFence)
	if start < 0 {
		return s
	}

	body := s[start+len(codeFence):]
	body = strings.TrimLeftFunc(body, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_'
	})
	if end := strings.Index(body, codeFence); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

var errPayloadSyntax = errors.New("payload syntax error")

// payloadParser reads the grammar
//
//	payload = "{" [ pair { "," pair } [ "," ] ] "}"
//	pair    = string ":" string
//	string  = '"' chars '"' | "'" chars "'"
//
// with JSON-style backslash escapes in both quote styles.
type payloadParser struct {
	src string
	pos int
}

func parsePayload(src string) (map[string]string, error) {
	p := &payloadParser{src: src}
	fields := make(map[string]string)

	p.skipSpace()
	if err := p.expect('{'); err != nil {
		return nil, err
	}
	p.skipSpace()

	if p.peek() == '}' {
		p.pos++
	} else {
		for {
			key, err := p.parseString()
			if err != nil {
				return nil, err
			}
			if !isKnownPayloadKey(key) {
				return nil, fmt.Errorf("%w: unknown key %q", errPayloadSyntax, key)
			}
			if _, dup := fields[key]; dup {
				return nil, fmt.Errorf("%w: duplicate key %q", errPayloadSyntax, key)
			}

			p.skipSpace()
			if err := p.expect(':'); err != nil {
				return nil, err
			}
			p.skipSpace()

			value, err := p.parseString()
			if err != nil {
				return nil, err
			}
			fields[key] = value

			p.skipSpace()
			if p.peek() == ',' {
				p.pos++
				p.skipSpace()
				if p.peek() == '}' {
					p.pos++
					break
				}
				continue
			}
			if err := p.expect('}'); err != nil {
				return nil, err
			}
			break
		}
	}

	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, fmt.Errorf("%w: trailing data at offset %d", errPayloadSyntax, p.pos)
	}
	return fields, nil
}

func isKnownPayloadKey(key string) bool {
	switch key {
	case payloadKeyDoctor, payloadKeyDate, payloadKeyTime, payloadKeyInfoRequired:
		return true
	}
	return false
}

// peek returns 0 at end of input
func (p *payloadParser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *payloadParser) skipSpace() {
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *payloadParser) expect(c byte) error {
	if p.peek() != c {
		return fmt.Errorf("%w: expected %q at offset %d", errPayloadSyntax, c, p.pos)
	}
	p.pos++
	return nil
}

func (p *payloadParser) parseString() (string, error) {
	quote := p.peek()
	if quote != '"' && quote != '\'' {
		return "", fmt.Errorf("%w: expected string at offset %d", errPayloadSyntax, p.pos)
	}
	p.pos++

	var sb strings.Builder
	for {
		if p.pos >= len(p.src) {
			return "", fmt.Errorf("%w: unterminated string", errPayloadSyntax)
		}
		r, size := utf8.DecodeRuneInString(p.src[p.pos:])
		if r == utf8.RuneError && size == 1 {
			return "", fmt.Errorf("%w: invalid utf-8 at offset %d", errPayloadSyntax, p.pos)
		}
		p.pos += size

		switch {
		case r == rune(quote):
			return sb.String(), nil
		case r < 0x20:
			return "", fmt.Errorf("%w: control character in string", errPayloadSyntax)
		case r == '\\':
			escaped, err := p.parseEscape()
			if err != nil {
				return "", err
			}
			sb.WriteRune(escaped)
		default:
			sb.WriteRune(r)
		}
	}
}

func (p *payloadParser) parseEscape() (rune, error) {
	c := p.peek()
	if c == 0 {
		return 0, fmt.Errorf("%w: unterminated escape", errPayloadSyntax)
	}
	p.pos++

	switch c {
	case '"', '\'', '\\', '/':
		return rune(c), nil
	case 'n':
		return '\n', nil
	case 't':
		return '\t', nil
	case 'r':
		return '\r', nil
	case 'b':
		return '\b', nil
	case 'f':
		return '\f', nil
	case 'u':
		r, err := p.readHex4()
		if err != nil {
			return 0, err
		}
		if !utf16.IsSurrogate(r) {
			return r, nil
		}
		// A high surrogate pairs with an immediately following \uXXXX low half
		if r < 0xDC00 && strings.HasPrefix(p.src[p.pos:], `\u`) {
			save := p.pos
			p.pos += 2
			low, err := p.readHex4()
			if err == nil {
				if combined := utf16.DecodeRune(r, low); combined != utf8.RuneError {
					return combined, nil
				}
			}
			p.pos = save
		}
		return utf8.RuneError, nil
	}
	return 0, fmt.Errorf("%w: unknown escape \\%c", errPayloadSyntax, c)
}

// readHex4 consumes the four hex digits of a \u escape
func (p *payloadParser) readHex4() (rune, error) {
	if p.pos+4 > len(p.src) {
		return 0, fmt.Errorf("%w: short unicode escape", errPayloadSyntax)
	}
	code, err := strconv.ParseUint(p.src[p.pos:p.pos+4], 16, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: bad unicode escape", errPayloadSyntax)
	}
	p.pos += 4
	return rune(code), nil
}
