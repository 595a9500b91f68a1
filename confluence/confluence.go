package confluence

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when the remote service reports a missing page.
	ErrNotFound = errors.New("page not found")
	// ErrInvalidVersion is returned when the server version cannot be parsed.
	ErrInvalidVersion = errors.New("invalid server version")
)

// Client is the remote capability the renderer needs. Implementations must
// be safe for concurrent use.
type Client interface {
	GetServerInfo(ctx context.Context) (*ServerInfo, error)
	GetPage(ctx context.Context, id int64) (*Page, error)
	GetChildren(ctx context.Context, parentID int64) ([]PageSummary, error)
	// StorePage creates the page when ID and Version are nil, otherwise it
	// updates it. The service rejects an update whose version is stale.
	StorePage(ctx context.Context, page UpdatePage) (*Page, error)
	RemovePage(ctx context.Context, id int64) error
	AddAttachment(ctx context.Context, pageID int64, request AttachmentRequest, base64Body string) (*Attachment, error)
	Logout(ctx context.Context) (bool, error)
}

type ServerInfo struct {
	MajorVersion     int    `json:"majorVersion"`
	MinorVersion     int    `json:"minorVersion"`
	PatchLevel       int    `json:"patchLevel"`
	BuildID          string `json:"buildId"`
	DevelopmentBuild bool   `json:"developmentBuild"`
	BaseURL          string `json:"baseUrl"`
}

type Page struct {
	ID       int64  `json:"id"`
	Space    string `json:"space"`
	ParentID int64  `json:"parentId"`
	Title    string `json:"title"`
	URL      string `json:"url"`
	Version  int    `json:"version"`
	Content  string `json:"content,omitempty"`
}

type PageSummary struct {
	ID       int64  `json:"id"`
	Space    string `json:"space"`
	ParentID int64  `json:"parentId"`
	Title    string `json:"title"`
	URL      string `json:"url"`
}

// UpdatePage is the store payload. A nil ID and Version create a new page.
type UpdatePage struct {
	ID       *int64
	Space    string
	Title    string
	Content  string
	Version  *int
	ParentID *int64
}

type AttachmentRequest struct {
	FileName    string
	ContentType string
	Title       string
	Comment     string
}

type Attachment struct {
	ID          int64     `json:"id"`
	PageID      int64     `json:"pageId"`
	FileName    string    `json:"fileName"`
	ContentType string    `json:"contentType"`
	FileSize    int64     `json:"fileSize"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Creator     string    `json:"creator"`
	Created     time.Time `json:"created"`
}

// RemoteError is a fault reported by the service for a specific method.
type RemoteError struct {
	Method string
	Code   int
	Msg    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s failed with fault %d: %s", e.Method, e.Code, e.Msg)
}

// Is maps the service's "does not exist" faults onto ErrNotFound.
func (e *RemoteError) Is(target error) bool {
	return target == ErrNotFound && isNotFoundFault(e.Msg)
}
