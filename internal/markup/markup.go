// Package markup re-indents HTML fragments for display in an editor.
package markup

import (
	"errors"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/net/html"
)

const (
	indentUnit = "  "
	maxBuf     = 1 << 20
	// htmlSpace is the HTML definition of whitespace. U+00A0 is not in it.
	htmlSpace = " \t\n\f\r"
)

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"source": true, "track": true, "wbr": true,
}

// blockElements start and end their own lines. Every other element is kept
// on the line of the text around it.
var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "base": true,
	"blockquote": true, "body": true, "caption": true, "col": true,
	"colgroup": true, "dd": true, "details": true, "dialog": true,
	"div": true, "dl": true, "dt": true, "fieldset": true,
	"figcaption": true, "figure": true, "footer": true, "form": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"head": true, "header": true, "hgroup": true, "hr": true, "html": true,
	"legend": true, "li": true, "link": true, "main": true, "menu": true,
	"meta": true, "nav": true, "ol": true, "p": true, "section": true,
	"summary": true, "table": true, "tbody": true, "td": true,
	"tfoot": true, "th": true, "thead": true, "tr": true, "ul": true,
}

// verbatimElements keep everything up to their end tag byte for byte. The
// value reports whether the element goes on its own line.
var verbatimElements = map[string]bool{
	"pre":      true,
	"title":    true,
	"textarea": false,
}

// Format re-indents markup by two spaces per nested block element. Inline
// elements and the text around them stay on one line, with runs of
// whitespace collapsed to a single space. Script and style bodies keep their
// content, and pre, title and textarea are copied verbatim. Formatting its
// own output is a no-op. Format never fails: on any tokenizer error or panic
// it returns text unchanged.
func Format(text string) (out string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Debug("markup format panicked, returning input", "panic", r)
			out = text
		}
	}()

	formatted, err := format(text)
	if err != nil {
		slog.Debug("markup format failed, returning input", "error", err)
		return text
	}
	return formatted
}

type formatter struct {
	b     strings.Builder
	run   strings.Builder
	depth int
}

func format(text string) (string, error) {
	z := html.NewTokenizer(strings.NewReader(text))
	z.SetMaxBuf(maxBuf)

	var (
		f formatter

		verbatim      string
		verbatimBlock bool
		verbatimDepth int
		verbatimRaw   strings.Builder

		rawTag   string
		rawStart string
		rawBody  strings.Builder
	)

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if !errors.Is(z.Err(), io.EOF) {
				return "", z.Err()
			}
			// Unclosed elements are kept as they were.
			switch {
			case verbatim != "":
				f.run.WriteString(verbatimRaw.String())
			case rawTag != "":
				f.run.WriteString(rawStart)
				f.run.WriteString(rawBody.String())
			}
			f.flush()
			return strings.TrimRight(f.b.String(), "\n"), nil
		}
		raw := string(z.Raw())

		if verbatim != "" {
			verbatimRaw.WriteString(raw)
			switch tt {
			case html.StartTagToken:
				if tagName(z) == verbatim {
					verbatimDepth++
				}
			case html.EndTagToken:
				if tagName(z) == verbatim {
					verbatimDepth--
				}
			}
			if verbatimDepth == 0 {
				if verbatimBlock {
					f.flush()
					f.line(verbatimRaw.String())
				} else {
					f.run.WriteString(verbatimRaw.String())
				}
				verbatim = ""
			}
			continue
		}

		if rawTag != "" {
			if tt == html.EndTagToken && tagName(z) == rawTag {
				f.rawElement(rawStart, rawBody.String(), raw)
				rawTag = ""
				continue
			}
			rawBody.WriteString(raw)
			continue
		}

		switch tt {
		case html.TextToken:
			f.text(raw)
		case html.StartTagToken:
			name := tagName(z)
			if isBlock, ok := verbatimElements[name]; ok {
				verbatim, verbatimBlock, verbatimDepth = name, isBlock, 1
				verbatimRaw.Reset()
				verbatimRaw.WriteString(raw)
				continue
			}
			switch {
			case name == "script" || name == "style":
				rawTag, rawStart = name, raw
				rawBody.Reset()
			case blockElements[name]:
				f.flush()
				f.line(raw)
				if !voidElements[name] {
					f.depth++
				}
			default:
				f.run.WriteString(raw)
			}
		case html.EndTagToken:
			if !blockElements[tagName(z)] {
				f.run.WriteString(raw)
				continue
			}
			f.flush()
			if f.depth > 0 {
				f.depth--
			}
			f.line(raw)
		case html.SelfClosingTagToken:
			if !blockElements[tagName(z)] {
				f.run.WriteString(raw)
				continue
			}
			f.flush()
			f.line(raw)
		case html.CommentToken:
			if f.inRun() {
				f.run.WriteString(raw)
				continue
			}
			f.flush()
			f.line(raw)
		case html.DoctypeToken:
			f.flush()
			f.line(strings.TrimSpace(raw))
		}
	}
}

// text appends raw text to the current line with whitespace collapsed.
func (f *formatter) text(raw string) {
	t := collapseSpace(raw)
	if t == "" {
		return
	}
	if t[0] == ' ' && strings.HasSuffix(f.run.String(), " ") {
		t = t[1:]
	}
	f.run.WriteString(t)
}

// inRun reports whether the current line holds anything but whitespace.
func (f *formatter) inRun() bool {
	return strings.Trim(f.run.String(), htmlSpace) != ""
}

// flush ends the current line. Whitespace at either end of it borders a
// block boundary and does not render.
func (f *formatter) flush() {
	s := strings.Trim(f.run.String(), htmlSpace)
	f.run.Reset()
	if s != "" {
		f.line(s)
	}
}

// rawElement writes a script or style element. Inside a line of text it is
// kept exactly as written. Otherwise a multi-line body is placed between
// the tags with its surrounding blank lines removed.
func (f *formatter) rawElement(start, body, end string) {
	if f.inRun() {
		f.run.WriteString(start + body + end)
		return
	}
	f.flush()
	body = strings.TrimRight(strings.TrimLeft(body, "\r\n"), htmlSpace)
	if !strings.Contains(body, "\n") {
		f.line(start + body + end)
		return
	}
	f.line(start)
	f.b.WriteString(body)
	f.b.WriteByte('\n')
	f.line(end)
}

func (f *formatter) line(s string) {
	for range f.depth {
		f.b.WriteString(indentUnit)
	}
	f.b.WriteString(s)
	f.b.WriteByte('\n')
}

func collapseSpace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if strings.IndexByte(htmlSpace, c) >= 0 {
			if !space {
				b.WriteByte(' ')
			}
			space = true
			continue
		}
		space = false
		b.WriteByte(c)
	}
	return b.String()
}

func tagName(z *html.Tokenizer) string {
	name, _ := z.TagName()
	return string(name)
}
