package markup

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRewriteImages(t *testing.T) {
	source := []byte("# Title\n\nSome *text*.\n\n![cat](img/cat.png \"A cat\")\n\n![logo](https://example.com/logo.png)\n")

	type seen struct{ dest, title string }
	var calls []seen
	out, err := Rewrite(context.Background(), source, func(ctx context.Context, dest, title string) (string, bool) {
		calls = append(calls, seen{dest, title})
		if dest == "img/cat.png" {
			return "https://wiki/download/cat.png", true
		}
		return "", false
	})
	require.NoError(t, err)

	assert.Equal(t, []seen{{"img/cat.png", "A cat"}, {"https://example.com/logo.png", ""}}, calls)
	assert.Equal(t,
		"# Title\n\nSome *text*.\n\n![cat](https://wiki/download/cat.png \"A cat\")\n\n![logo](https://example.com/logo.png)\n",
		string(out),
	)
}

func TestRewriteKeepsSourceUnchanged(t *testing.T) {
	for _, tt := range []struct {
		name   string
		source string
	}{
		{"raw html block", "<div class=\"warning\">\n\nCareful\n\n</div>\n"},
		{"inline html", "Press <kbd>Ctrl</kbd>+<kbd>C</kbd> to copy.\n"},
		{"comment", "Before\n\n<!-- editor note -->\nAfter\n"},
		{"footnotes", "See[^1].\n\n[^1]: the footnote\n"},
		{"nested tight list", "- one\n  - one.a\n  - one.b\n- two\n"},
		{"cdata terminator in code", "```xml\n<![CDATA[a]]>\n```\n"},
		{"heading attributes", "## Setup {#setup .wide}\n\ntext\n"},
		{"underscores and brackets", "snake_case_name and [not a link] and a_b_c\n"},
		{"tables and strikethrough", "| a | b |\n|---|---|\n| 1 | 2 |\n\n~~gone~~\n"},
		{"task list", "- [x] done\n- [ ] open\n"},
		{"no trailing newline", "last line"},
		{
			"mixed",
			"<div class=\"warning\">\n\nCareful\n\n</div>\n\n<!-- editor note -->\nSee[^1].\n\n[^1]: the footnote\n",
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Rewrite(context.Background(), []byte(tt.source), nil)
			require.NoError(t, err)
			assert.Equal(t, tt.source, string(out))
		})
	}
}

func TestRewriteOnlyTouchesDestination(t *testing.T) {
	source := "<div class=\"note\">\n\n" +
		"Read_me [first]. <kbd>F1</kbd>\n\n" +
		"</div>\n\n" +
		"* a\n* b ![diagram](img/diagram.svg 'The flow')[^n]\n\n" +
		"[^n]: note\n"
	want := "<div class=\"note\">\n\n" +
		"Read_me [first]. <kbd>F1</kbd>\n\n" +
		"</div>\n\n" +
		"* a\n* b ![diagram](https://wiki/download/diagram.svg 'The flow')[^n]\n\n" +
		"[^n]: note\n"

	out, err := Rewrite(context.Background(), []byte(source), func(ctx context.Context, dest, title string) (string, bool) {
		assert.Equal(t, "img/diagram.svg", dest)
		assert.Equal(t, "The flow", title)
		return "https://wiki/download/diagram.svg", true
	})
	require.NoError(t, err)
	assert.Equal(t, want, string(out))
}

func TestRewriteDestinationForms(t *testing.T) {
	rewrite := func(ctx context.Context, dest, title string) (string, bool) {
		return "https://wiki/" + dest, true
	}
	for _, tt := range []struct {
		name, source, want string
	}{
		{"angle brackets", "![a](<my img.png>)\n", "![a](<https://wiki/my img.png>)\n"},
		{"percent encoded", "![a](my%20img.png)\n", "![a](https://wiki/my%20img.png)\n"},
		{"escaped", "![a](x\\_y.png)\n", "![a](https://wiki/x_y.png)\n"},
		{"empty destination", "![a]()\n", "![a](https://wiki/)\n"},
		{"alt matches destination", "![a.png](a.png)\n", "![a.png](https://wiki/a.png)\n"},
		{
			"full reference",
			"![logo][l] and ![logo][l]\n\n[l]: img/logo.png \"Logo\"\n",
			"![logo](https://wiki/img/logo.png \"Logo\") and ![logo](https://wiki/img/logo.png \"Logo\")\n\n[l]: img/logo.png \"Logo\"\n",
		},
		{"collapsed reference", "![logo][]\n\n[logo]: logo.png\n", "![logo](https://wiki/logo.png)\n\n[logo]: logo.png\n"},
		{"shortcut reference", "![logo]\n\n[logo]: logo.png\n", "![logo](https://wiki/logo.png)\n\n[logo]: logo.png\n"},
		{"inside link", "[![badge](b.svg)](https://ci)\n", "[![badge](https://wiki/b.svg)](https://ci)\n"},
		{"in table cell", "| x |\n|---|\n| ![i](i.png) |\n", "| x |\n|---|\n| ![i](https://wiki/i.png) |\n"},
		{"in blockquote", "> ![q](q.png)\n", "> ![q](https://wiki/q.png)\n"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Rewrite(context.Background(), []byte(tt.source), rewrite)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(out))
		})
	}
}

func TestRewriteSkipsCode(t *testing.T) {
	source := "`![a](a.png)`\n\n    ![b](b.png)\n"

	var calls int
	out, err := Rewrite(context.Background(), []byte(source), func(ctx context.Context, dest, title string) (string, bool) {
		calls++
		return "x", true
	})
	require.NoError(t, err)
	assert.Zero(t, calls)
	assert.Equal(t, source, string(out))
}

func TestRewriteDocumentOrder(t *testing.T) {
	source := []byte("![a](a.png)\n\n- item ![b](b.png)\n\n> ![c](c.png)\n")

	var order []string
	_, err := Rewrite(context.Background(), source, func(ctx context.Context, dest, title string) (string, bool) {
		order = append(order, dest)
		return "", false
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.png", "b.png", "c.png"}, order)
}

func TestRewriteCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Rewrite(ctx, []byte("text"), nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRewriteEmpty(t *testing.T) {
	out, err := Rewrite(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, string(out))
}
