package confluence

import (
	"context"
	"fmt"

	"github.com/davecgh/go-spew/spew"
	"golang.org/x/mod/semver"
)

// extendedTextVersion is the first release that stores 4-byte code points.
const extendedTextVersion = "v7.3.0"

// ServerVersion is the parsed semantic version reported by the service.
type ServerVersion struct {
	v string
}

// ParseServerVersion parses a full major.minor.patch version, with optional
// pre-release and build suffixes.
func ParseServerVersion(s string) (ServerVersion, error) {
	v := "v" + s
	if !semver.IsValid(v) || semver.Canonical(v)+semver.Build(v) != v {
		return ServerVersion{}, fmt.Errorf("%w: %q", ErrInvalidVersion, s)
	}
	return ServerVersion{v: v}, nil
}

// FetchServerVersion asks the service for its version.
func FetchServerVersion(ctx context.Context, client Client) (ServerVersion, error) {
	info, err := client.GetServerInfo(ctx)
	if err != nil {
		return ServerVersion{}, fmt.Errorf("failed to get server info: %w", err)
	}
	version, err := ParseServerVersion(fmt.Sprintf("%d.%d.%d", info.MajorVersion, info.MinorVersion, info.PatchLevel))
	if err != nil {
		return ServerVersion{}, fmt.Errorf("failed to parse Confluence version for %s: %w", spew.Sdump(info), err)
	}
	return version, nil
}

// SupportsExtendedText reports whether page bodies may contain characters
// that encode to 4 or more bytes.
func (v ServerVersion) SupportsExtendedText() bool {
	return semver.Compare(v.v, extendedTextVersion) >= 0
}

func (v ServerVersion) String() string {
	if v.v == "" {
		return ""
	}
	return v.v[1:]
}
