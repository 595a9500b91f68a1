package book

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const renderContextJSON = `{
  "version": "0.4.40",
  "root": "/books/manual",
  "book": {
    "sections": [
      {"Chapter": {
        "name": "Intro",
        "content": "# Intro\n",
        "number": [1],
        "sub_items": [
          {"Chapter": {"name": "Setup", "content": "", "number": [1, 1], "sub_items": [], "path": "intro/setup.md", "source_path": "intro/setup.md", "parent_names": ["Intro"]}}
        ],
        "path": "intro.md",
        "source_path": "intro.md",
        "parent_names": []
      }},
      "Separator",
      {"PartTitle": "Reference"},
      {"Chapter": {"name": "Draft", "content": "", "number": null, "sub_items": [], "path": null, "source_path": null, "parent_names": []}}
    ],
    "__non_exhaustive": null
  },
  "config": {
    "book": {"authors": [], "language": "en", "multilingual": false, "src": "content", "title": "Manual"},
    "output": {"confluence": {"enabled": true, "url": "https://wiki", "root_page": 42}}
  },
  "destination": "/books/manual/book/confluence"
}`

func TestReadRenderContext(t *testing.T) {
	ctx, err := ReadRenderContext(strings.NewReader(renderContextJSON))
	require.NoError(t, err)

	sections := ctx.Book.Sections
	require.Len(t, sections, 4)
	require.NotNil(t, sections[0].Chapter)
	assert.Equal(t, "Intro", sections[0].Chapter.Name)
	require.Len(t, sections[0].Chapter.SubItems, 1)
	assert.Equal(t, "Setup", sections[0].Chapter.SubItems[0].Chapter.Name)
	assert.True(t, sections[1].Separator)
	assert.Equal(t, "Reference", sections[2].PartTitle)
	assert.Nil(t, sections[3].Chapter.Path)

	assert.Equal(t, filepath.Join("/books/manual", "content"), ctx.SourceRoot())
	assert.Equal(t, true, ctx.OutputConfig("confluence")["enabled"])
	assert.Nil(t, ctx.OutputConfig("html"))
}

func TestChapters(t *testing.T) {
	ctx, err := ReadRenderContext(strings.NewReader(renderContextJSON))
	require.NoError(t, err)

	names := []string{}
	for _, c := range Chapters(ctx.Book.Sections) {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"Intro", "Draft"}, names)
}

func TestChapterDir(t *testing.T) {
	path := func(s string) *string { return &s }

	assert.Equal(t, "", (&Chapter{Path: path("intro.md")}).Dir())
	assert.Equal(t, "intro", (&Chapter{Path: path("intro/setup.md")}).Dir())
	assert.Equal(t, "", (&Chapter{}).Dir())
}

func TestSourceRootDefault(t *testing.T) {
	ctx := &RenderContext{Root: "/books/manual"}
	assert.Equal(t, filepath.Join("/books/manual", "src"), ctx.SourceRoot())
}

func TestCompatibleWith(t *testing.T) {
	assert.True(t, (&RenderContext{Version: "0.4.40"}).CompatibleWith("0.4.37"))
	assert.False(t, (&RenderContext{Version: "0.5.0"}).CompatibleWith("0.4.40"))
	assert.False(t, (&RenderContext{Version: "garbage"}).CompatibleWith("0.4.40"))
}

func TestItemRoundTrip(t *testing.T) {
	items := []Item{{Separator: true}, {PartTitle: "Part"}, {Chapter: &Chapter{Name: "A"}}}
	data, err := json.Marshal(items)
	require.NoError(t, err)

	var decoded []Item
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, decoded[0].Separator)
	assert.Equal(t, "Part", decoded[1].PartTitle)
	assert.Equal(t, "A", decoded[2].Chapter.Name)
}

func TestUnknownItem(t *testing.T) {
	var item Item
	assert.Error(t, json.Unmarshal([]byte(`"Spacer"`), &item))
	assert.Error(t, json.Unmarshal([]byte(`{"Other": 1}`), &item))
}
