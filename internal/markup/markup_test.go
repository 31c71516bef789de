package markup

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "nested elements",
			in:   `<div class="card"><p>Hello   world</p><br><span>a</span></div>`,
			want: "<div class=\"card\">\n  <p>\n    Hello world\n  </p>\n  <br><span>a</span>\n</div>",
		},
		{
			name: "inline elements stay with their text",
			in:   "<p>Total: <b>42</b>!</p><span>a</span><span>b</span>",
			want: "<p>\n  Total: <b>42</b>!\n</p>\n<span>a</span><span>b</span>",
		},
		{
			name: "single line script",
			in:   "<div><script>if (a < b) { x() }</script></div>",
			want: "<div>\n  <script>if (a < b) { x() }</script>\n</div>",
		},
		{
			name: "script inside text kept in place",
			in:   "<p>a<script>x()</script>b</p>",
			want: "<p>\n  a<script>x()</script>b\n</p>",
		},
		{
			name: "textarea content untouched",
			in:   "<form><textarea>\n  raw  </textarea></form>",
			want: "<form>\n  <textarea>\n  raw  </textarea>\n</form>",
		},
		{
			name: "non-breaking space is not whitespace",
			in:   "<p>\u00a0a\u00a0 </p>",
			want: "<p>\n  \u00a0a\u00a0\n</p>",
		},
		{
			name: "script body kept verbatim",
			in:   "<div><script>\nif (a < b) {\n    go();\n}\n</script></div>",
			want: "<div>\n  <script>\nif (a < b) {\n    go();\n}\n  </script>\n</div>",
		},
		{
			name: "pre content untouched",
			in:   "<section><pre>  a\n    <b>b</b></pre><p>x</p></section>",
			want: "<section>\n  <pre>  a\n    <b>b</b></pre>\n  <p>\n    x\n  </p>\n</section>",
		},
		{
			name: "comments and doctype",
			in:   "<!DOCTYPE html><!-- note --><html></html>",
			want: "<!DOCTYPE html>\n<!-- note -->\n<html>\n</html>",
		},
		{
			name: "self closing",
			in:   `<svg><circle r="4"/></svg>`,
			want: `<svg><circle r="4"/></svg>`,
		},
		{
			name: "unbalanced end tag does not underflow",
			in:   "</div><p>x</p>",
			want: "</div>\n<p>\n  x\n</p>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.in))
		})
	}
}

var samples = []string{
	`<ul><li>one</li><li>two <em>2</em>,<a href="#">link</a></li></ul>`,
	"<p>Total: <b>42</b>!</p><span>a</span><span>b</span>",
	`<div class="card"><h2>Title</h2><p>Price:<strong>$5</strong><small>/mo</small></p><br><img src="x.png">after</div>`,
	"<table><tr><td>a<sup>2</sup></td><td> b </td></tr></table>",
	"<p>a\u00a0\u00a0b <code>x  y</code>\n\n  tail</p>",
	"<div><script>if (a < b) { x() }</script><pre>  keep\n   this</pre><textarea>\n  raw  </textarea></div>",
	"<div><style>\n.a { color: red }\n.b { color: blue }\n</style><p>x</p></div>",
	"<p>a<!-- c -->b</p><!-- block --><p>c</p>",
	"<html><head><title> T  </title><meta charset=\"utf-8\"></head><body><p>x</p></body></html>",
	"plain  text <i>with</i>\n inline",
}

func TestFormat_Idempotent(t *testing.T) {
	for _, in := range samples {
		first := Format(in)
		assert.Equal(t, first, Format(in), "deterministic for %q", in)
		assert.Equal(t, first, Format(first), "formatting formatted output is a no-op for %q", in)
	}
}

func TestFormat_PreservesRenderedText(t *testing.T) {
	for _, in := range samples {
		assert.Equal(t, renderedText(t, in), renderedText(t, Format(in)), "rendered text changed for %q", in)
	}
}

// renderedText approximates what a browser shows: text nodes outside script
// and style, block elements separated by whitespace, and whitespace runs
// collapsed.
func renderedText(t *testing.T, markup string) string {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(markup))
	require.NoError(t, err)

	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" {
				return
			}
			if blockElements[n.Data] || verbatimElements[n.Data] {
				b.WriteByte(' ')
				defer b.WriteByte(' ')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	fields := strings.FieldsFunc(b.String(), func(r rune) bool {
		return strings.ContainsRune(htmlSpace, r)
	})
	return strings.Join(fields, " ")
}

func TestFormat_FallsBackOnTokenizerError(t *testing.T) {
	in := "<div>" + strings.Repeat("x", 2*maxBuf) + "</div>"
	assert.Equal(t, in, Format(in))
}

func TestFormat_PlainText(t *testing.T) {
	assert.Equal(t, "just text", Format("  just   text \n"))
	assert.Equal(t, "", Format(""))
}
