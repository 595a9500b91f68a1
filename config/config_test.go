package config

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoadFromBookConfig(t *testing.T) {
	settings, err := Load(map[string]any{
		"command":      "mdbook-confluence",
		"enabled":      true,
		"url":          "https://wiki",
		"username":     "bob",
		"password":     "secret",
		"title_prefix": "Manual: ",
		"root_page":    float64(42),
	}, newFlags(t))
	require.NoError(t, err)

	assert.Equal(t, &Settings{
		Enabled:     true,
		URL:         "https://wiki",
		Username:    "bob",
		Password:    "secret",
		TitlePrefix: "Manual: ",
		RootPage:    42,
	}, settings)
	assert.NoError(t, settings.Validate())
}

func TestLoadDefaults(t *testing.T) {
	settings, err := Load(nil, nil)
	require.NoError(t, err)
	assert.False(t, settings.Enabled)
	assert.Empty(t, settings.TitlePrefix)
	assert.NoError(t, settings.Validate())
}

func TestLoadPrecedence(t *testing.T) {
	t.Setenv("CONFLUENCE_URL", "https://env")
	t.Setenv("CONFLUENCE_PASSWORD", "from-env")
	t.Setenv("CONFLUENCE_ROOT_PAGE", "7")

	settings, err := Load(map[string]any{
		"url":       "https://book",
		"password":  "from-book",
		"root_page": float64(42),
	}, newFlags(t, "--url", "https://flag"))
	require.NoError(t, err)

	assert.Equal(t, "https://flag", settings.URL)
	assert.Equal(t, "from-env", settings.Password)
	assert.Equal(t, int64(7), settings.RootPage)
}

func TestUnchangedFlagsDoNotOverride(t *testing.T) {
	settings, err := Load(map[string]any{"enabled": true, "root_page": float64(42)}, newFlags(t))
	require.NoError(t, err)
	assert.True(t, settings.Enabled)
	assert.Equal(t, int64(42), settings.RootPage)
}

func TestChapterTitle(t *testing.T) {
	s := &Settings{TitlePrefix: "Doc: "}
	assert.Equal(t, "Doc: Intro", s.ChapterTitle("Intro"))
	assert.Equal(t, "Intro", (&Settings{}).ChapterTitle("Intro"))
}

func TestValidate(t *testing.T) {
	err := (&Settings{Enabled: true}).Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "url is required")
	assert.Contains(t, err.Error(), "root_page is required")
}
