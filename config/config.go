// Package config resolves the renderer settings from the book's
// [output.confluence] table, the environment and command line flags.
package config

import (
	"errors"
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "CONFLUENCE"

type Settings struct {
	Enabled     bool   `mapstructure:"enabled"`
	URL         string `mapstructure:"url"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	TitlePrefix string `mapstructure:"title_prefix"`
	RootPage    int64  `mapstructure:"root_page"`
}

// flag name -> settings key
var flagKeys = map[string]string{
	"enabled":      "enabled",
	"url":          "url",
	"username":     "username",
	"password":     "password",
	"title-prefix": "title_prefix",
	"root-page":    "root_page",
}

// RegisterFlags adds the settings flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.Bool("enabled", false, "enable the renderer regardless of book.toml")
	fs.String("url", "", "Confluence base url")
	fs.String("username", "", "Confluence user")
	fs.String("password", "", "Confluence password")
	fs.String("title-prefix", "", "prefix prepended to every page title")
	fs.Int64("root-page", 0, "id of the page the book is published under")
}

// Load merges raw (the output table of book.toml) with CONFLUENCE_* env
// variables and changed flags. Flags win over env, env wins over raw.
func Load(raw map[string]any, flags *pflag.FlagSet) (*Settings, error) {
	v := viper.New()
	v.SetDefault("enabled", false)
	v.SetDefault("title_prefix", "")
	v.SetEnvPrefix(envPrefix)

	if raw != nil {
		if err := v.MergeConfigMap(raw); err != nil {
			return nil, fmt.Errorf("failed to merge book configuration: %w", err)
		}
	}
	for _, key := range flagKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}
	if flags != nil {
		for name, key := range flagKeys {
			flag := flags.Lookup(name)
			if flag == nil || !flag.Changed {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
	}

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	return &settings, nil
}

// ChapterTitle is the remote title of a chapter; it is the only key pages
// are matched by.
func (s *Settings) ChapterTitle(name string) string {
	return s.TitlePrefix + name
}

func (s *Settings) Validate() error {
	if !s.Enabled {
		return nil
	}
	var errs []error
	if s.URL == "" {
		errs = append(errs, errors.New("url is required"))
	}
	if s.Username == "" {
		errs = append(errs, errors.New("username is required"))
	}
	if s.RootPage == 0 {
		errs = append(errs, errors.New("root_page is required"))
	}
	return errors.Join(errs...)
}
