// Package book decodes the render context mdbook hands to alternative
// backends on stdin.
package book

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"golang.org/x/mod/semver"
)

// MdbookVersion is the mdbook release this renderer is built against.
const MdbookVersion = "0.4.40"

type RenderContext struct {
	Version     string         `json:"version"`
	Root        string         `json:"root"`
	Book        Book           `json:"book"`
	Config      map[string]any `json:"config"`
	Destination string         `json:"destination"`
}

type Book struct {
	Sections []Item `json:"sections"`
}

// Item is one entry of the book's table of contents. Exactly one of its
// fields is set.
type Item struct {
	Chapter   *Chapter
	Separator bool
	PartTitle string
}

// Chapter is a node of the local document tree. Path is relative to the
// book source directory and is nil for draft chapters.
type Chapter struct {
	Name        string   `json:"name"`
	Content     string   `json:"content"`
	Number      []int    `json:"number"`
	SubItems    []Item   `json:"sub_items"`
	Path        *string  `json:"path"`
	SourcePath  *string  `json:"source_path"`
	ParentNames []string `json:"parent_names"`
}

// Dir returns the directory of the chapter file relative to the source
// root, or "" when the chapter has no file.
func (c *Chapter) Dir() string {
	if c.Path == nil {
		return ""
	}
	dir := filepath.Dir(filepath.FromSlash(*c.Path))
	if dir == "." {
		return ""
	}
	return dir
}

func (i *Item) UnmarshalJSON(data []byte) error {
	var tag string
	if err := json.Unmarshal(data, &tag); err == nil {
		if tag != "Separator" {
			return fmt.Errorf("unknown book item %q", tag)
		}
		i.Separator = true
		return nil
	}

	var variant struct {
		Chapter   *Chapter `json:"Chapter"`
		PartTitle *string  `json:"PartTitle"`
	}
	if err := json.Unmarshal(data, &variant); err != nil {
		return fmt.Errorf("failed to decode book item: %w", err)
	}
	switch {
	case variant.Chapter != nil:
		i.Chapter = variant.Chapter
	case variant.PartTitle != nil:
		i.PartTitle = *variant.PartTitle
	default:
		return errors.New("book item is neither a chapter, a separator nor a part title")
	}
	return nil
}

func (i Item) MarshalJSON() ([]byte, error) {
	switch {
	case i.Chapter != nil:
		return json.Marshal(map[string]*Chapter{"Chapter": i.Chapter})
	case i.Separator:
		return json.Marshal("Separator")
	default:
		return json.Marshal(map[string]string{"PartTitle": i.PartTitle})
	}
}

// ReadRenderContext decodes a render context from r.
func ReadRenderContext(r io.Reader) (*RenderContext, error) {
	var ctx RenderContext
	if err := json.NewDecoder(r).Decode(&ctx); err != nil {
		return nil, fmt.Errorf("failed to decode render context: %w", err)
	}
	return &ctx, nil
}

// SourceRoot is the directory chapter paths are relative to.
func (c *RenderContext) SourceRoot() string {
	src := "src"
	if bookConfig, ok := c.Config["book"].(map[string]any); ok {
		if s, ok := bookConfig["src"].(string); ok && s != "" {
			src = s
		}
	}
	return filepath.Join(c.Root, src)
}

// OutputConfig returns the [output.<name>] table of book.toml, or nil.
func (c *RenderContext) OutputConfig(name string) map[string]any {
	output, ok := c.Config["output"].(map[string]any)
	if !ok {
		return nil
	}
	table, _ := output[name].(map[string]any)
	return table
}

// CompatibleWith reports whether the calling mdbook shares major and minor
// version with version.
func (c *RenderContext) CompatibleWith(version string) bool {
	have := "v" + strings.TrimPrefix(c.Version, "v")
	want := "v" + strings.TrimPrefix(version, "v")
	if !semver.IsValid(have) || !semver.IsValid(want) {
		return false
	}
	return semver.MajorMinor(have) == semver.MajorMinor(want)
}

// Chapters returns the chapters among items, skipping separators and part
// titles.
func Chapters(items []Item) []*Chapter {
	chapters := make([]*Chapter, 0, len(items))
	for _, item := range items {
		if item.Chapter != nil {
			chapters = append(chapters, item.Chapter)
		}
	}
	return chapters
}
