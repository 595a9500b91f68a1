package service

import (
	"context"
	"testing"

	"github.com/foomo/mdbook-confluence/book"
	"github.com/foomo/mdbook-confluence/config"
	"github.com/foomo/mdbook-confluence/confluence"
	"github.com/foomo/mdbook-confluence/confluence/confluencetest"
	"github.com/foomo/mdbook-confluence/service/vo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newContentService(t *testing.T, version string) *service {
	t.Helper()
	return NewService(confluencetest.New(), mustVersion(t, version), config.Settings{}, zaptest.NewLogger(t), nil).(*service)
}

func TestToCDATA(t *testing.T) {
	s := newContentService(t, "7.13.0")

	assert.Equal(t, "<![CDATA[plain]]>", s.toCDATA("plain"))
	assert.Equal(t, "<![CDATA[a]]]]><![CDATA[>b]]>", s.toCDATA("a]]>b"))
	assert.Equal(t, "<![CDATA[]]]]><![CDATA[>]]]]><![CDATA[>]]>", s.toCDATA("]]>]]>"))
	assert.Equal(t, "<![CDATA[smile 😀]]>", s.toCDATA("smile 😀"))
}

func TestToCDATADowngradesOnOldServers(t *testing.T) {
	s := newContentService(t, "7.2.9")

	assert.Equal(t, "<![CDATA[smile ⸮]]>", s.toCDATA("smile 😀"))
	// one cluster, several code points
	assert.Equal(t, "<![CDATA[⸮ ok]]>", s.toCDATA("👍🏽 ok"))
	// 2 and 3 byte characters survive
	assert.Equal(t, "<![CDATA[é € ä]]>", s.toCDATA("é € ä"))
	assert.Equal(t, "<![CDATA[⸮]]]]><![CDATA[>]]>", s.toCDATA("😀]]>"))
}

func TestToPageContent(t *testing.T) {
	s := newContentService(t, "7.13.0")

	assert.Equal(t,
		`<ac:structured-macro ac:name="markdown" ac:schema-version="1" ac:macro-id="249327eb-2c99-42ca-a7a7-487e1c0c7e04">`+
			`<ac:plain-text-body><![CDATA[# Hi]]></ac:plain-text-body></ac:structured-macro>`,
		s.toPageContent("# Hi"),
	)
}

func TestCreatePageContentKeepsMarkdown(t *testing.T) {
	s := newContentService(t, "7.13.0")
	content := "<div class=\"warning\">\n\nCareful\n\n</div>\n\n<!-- editor note -->\nSee[^1] and snake_case.\n\n" +
		"```xml\n<![CDATA[x]]>\n```\n\n[^1]: the footnote\n"
	path := "intro.md"
	chapter := &book.Chapter{Name: "Intro", Content: content, Path: &path}

	update, err := s.createPageContent(context.Background(), chapter, &confluence.Page{ID: 7, Version: 3}, vo.ParentPage{ID: 42, Space: "DOC"}, t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, s.toPageContent(vo.Markdown(content)), update.Content)
	assert.Contains(t, update.Content, "<![CDATA[x]]]]><![CDATA[>")
	require.NotNil(t, update.ID)
	assert.Equal(t, int64(7), *update.ID)
	require.NotNil(t, update.Version)
	assert.Equal(t, 3, *update.Version)
	assert.Equal(t, "DOC", update.Space)
	assert.Equal(t, "Intro", update.Title)
}
