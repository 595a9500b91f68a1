package confluence

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/kolo/xmlrpc"
)

const (
	rpcPath      = "/rpc/xmlrpc"
	rpcNamespace = "confluence2."
)

// untypedValue matches scalar values sent without a type element, which
// XML-RPC defines as strings.
var untypedValue = regexp.MustCompile(`<value>([^<]+)</value>`)

// Session is an authenticated XML-RPC connection to the wiki.
type Session struct {
	endpoint   string
	token      string
	httpClient *http.Client
}

var _ Client = (*Session)(nil)

// Login authenticates against the service at url. A nil httpClient falls
// back to http.DefaultClient.
func Login(ctx context.Context, url, username, password string, httpClient *http.Client) (*Session, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	s := &Session{
		endpoint:   endpointURL(url),
		httpClient: httpClient,
	}
	var token string
	if err := s.call(ctx, "login", &token, username, password); err != nil {
		return nil, fmt.Errorf("failed to log in as %q: %w", username, err)
	}
	s.token = token
	return s, nil
}

func endpointURL(url string) string {
	url = strings.TrimSuffix(url, "/")
	if strings.HasSuffix(url, rpcPath) {
		return url
	}
	return url + rpcPath
}

func (s *Session) GetServerInfo(ctx context.Context) (*ServerInfo, error) {
	var raw wireServerInfo
	if err := s.call(ctx, "getServerInfo", &raw, s.token); err != nil {
		return nil, err
	}
	return raw.decode()
}

func (s *Session) GetPage(ctx context.Context, id int64) (*Page, error) {
	var raw wirePage
	if err := s.call(ctx, "getPage", &raw, s.token, formatID(id)); err != nil {
		return nil, err
	}
	return raw.decode()
}

func (s *Session) GetChildren(ctx context.Context, parentID int64) ([]PageSummary, error) {
	var raw []wirePageSummary
	if err := s.call(ctx, "getChildren", &raw, s.token, formatID(parentID)); err != nil {
		return nil, err
	}
	summaries := make([]PageSummary, 0, len(raw))
	for _, r := range raw {
		summary, err := r.decode()
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, *summary)
	}
	return summaries, nil
}

func (s *Session) StorePage(ctx context.Context, page UpdatePage) (*Page, error) {
	var raw wirePage
	if err := s.call(ctx, "storePage", &raw, s.token, encodeUpdatePage(page)); err != nil {
		return nil, err
	}
	return raw.decode()
}

func (s *Session) RemovePage(ctx context.Context, id int64) error {
	var ok bool
	return s.call(ctx, "removePage", &ok, s.token, formatID(id))
}

func (s *Session) AddAttachment(ctx context.Context, pageID int64, request AttachmentRequest, base64Body string) (*Attachment, error) {
	req := wireAttachmentRequest{
		FileName:    request.FileName,
		ContentType: request.ContentType,
		Title:       request.Title,
		Comment:     request.Comment,
	}
	var raw wireAttachment
	if err := s.call(ctx, "addAttachment", &raw, s.token, formatID(pageID), req, xmlrpc.Base64(base64Body)); err != nil {
		return nil, err
	}
	return raw.decode()
}

func (s *Session) Logout(ctx context.Context) (bool, error) {
	var ok bool
	if err := s.call(ctx, "logout", &ok, s.token); err != nil {
		return false, err
	}
	return ok, nil
}

func (s *Session) call(ctx context.Context, method string, reply any, args ...any) error {
	method = rpcNamespace + method
	body, err := xmlrpc.EncodeMethodCall(method, args...)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s failed with HTTP status: %d", method, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	response := xmlrpc.Response(untypedValue.ReplaceAll(data, []byte("<value><string>$1</string></value>")))
	if err := response.Err(); err != nil {
		var fault xmlrpc.FaultError
		if errors.As(err, &fault) {
			return &RemoteError{Method: method, Code: fault.Code, Msg: fault.String}
		}
		return fmt.Errorf("failed to decode %s fault: %w", method, err)
	}
	if reply == nil {
		return nil
	}
	if err := response.Unmarshal(reply); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	return nil
}

func isNotFoundFault(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "does not exist") || strings.Contains(msg, "not found")
}

// The service sends ids as strings and, depending on the version, numbers as
// either strings or ints, so the wire structs keep them loosely typed.

type wireServerInfo struct {
	MajorVersion     any    `xmlrpc:"majorVersion"`
	MinorVersion     any    `xmlrpc:"minorVersion"`
	PatchLevel       any    `xmlrpc:"patchLevel"`
	BuildID          any    `xmlrpc:"buildId"`
	DevelopmentBuild any    `xmlrpc:"developmentBuild"`
	BaseURL          string `xmlrpc:"baseUrl"`
}

func (w wireServerInfo) decode() (*ServerInfo, error) {
	var d decoder
	info := &ServerInfo{
		MajorVersion:     int(d.int(w.MajorVersion, "majorVersion")),
		MinorVersion:     int(d.int(w.MinorVersion, "minorVersion")),
		PatchLevel:       int(d.int(w.PatchLevel, "patchLevel")),
		BuildID:          d.string(w.BuildID),
		DevelopmentBuild: d.bool(w.DevelopmentBuild),
		BaseURL:          w.BaseURL,
	}
	return info, d.err
}

type wirePage struct {
	ID       any    `xmlrpc:"id"`
	Space    string `xmlrpc:"space"`
	ParentID any    `xmlrpc:"parentId"`
	Title    string `xmlrpc:"title"`
	URL      string `xmlrpc:"url"`
	Version  any    `xmlrpc:"version"`
	Content  string `xmlrpc:"content"`
}

func (w wirePage) decode() (*Page, error) {
	var d decoder
	page := &Page{
		ID:       d.int(w.ID, "id"),
		Space:    w.Space,
		ParentID: d.int(w.ParentID, "parentId"),
		Title:    w.Title,
		URL:      w.URL,
		Version:  int(d.int(w.Version, "version")),
		Content:  w.Content,
	}
	return page, d.err
}

type wirePageSummary struct {
	ID       any    `xmlrpc:"id"`
	Space    string `xmlrpc:"space"`
	ParentID any    `xmlrpc:"parentId"`
	Title    string `xmlrpc:"title"`
	URL      string `xmlrpc:"url"`
}

func (w wirePageSummary) decode() (*PageSummary, error) {
	var d decoder
	summary := &PageSummary{
		ID:       d.int(w.ID, "id"),
		Space:    w.Space,
		ParentID: d.int(w.ParentID, "parentId"),
		Title:    w.Title,
		URL:      w.URL,
	}
	return summary, d.err
}

type wireUpdatePage struct {
	ID       string `xmlrpc:"id,omitempty"`
	Space    string `xmlrpc:"space"`
	Title    string `xmlrpc:"title"`
	Content  string `xmlrpc:"content"`
	Version  int    `xmlrpc:"version,omitempty"`
	ParentID string `xmlrpc:"parentId,omitempty"`
}

func encodeUpdatePage(page UpdatePage) wireUpdatePage {
	w := wireUpdatePage{
		Space:   page.Space,
		Title:   page.Title,
		Content: page.Content,
	}
	if page.ID != nil {
		w.ID = formatID(*page.ID)
	}
	if page.Version != nil {
		w.Version = *page.Version
	}
	if page.ParentID != nil {
		w.ParentID = formatID(*page.ParentID)
	}
	return w
}

type wireAttachmentRequest struct {
	FileName    string `xmlrpc:"fileName"`
	ContentType string `xmlrpc:"contentType"`
	Title       string `xmlrpc:"title,omitempty"`
	Comment     string `xmlrpc:"comment,omitempty"`
}

type wireAttachment struct {
	ID          any    `xmlrpc:"id"`
	PageID      any    `xmlrpc:"pageId"`
	FileName    string `xmlrpc:"fileName"`
	ContentType string `xmlrpc:"contentType"`
	FileSize    any    `xmlrpc:"fileSize"`
	Title       string `xmlrpc:"title"`
	URL         string `xmlrpc:"url"`
	Creator     string `xmlrpc:"creator"`
	Created     any    `xmlrpc:"created"`
}

func (w wireAttachment) decode() (*Attachment, error) {
	var d decoder
	attachment := &Attachment{
		ID:          d.int(w.ID, "id"),
		PageID:      d.int(w.PageID, "pageId"),
		FileName:    w.FileName,
		ContentType: w.ContentType,
		FileSize:    d.int(w.FileSize, "fileSize"),
		Title:       w.Title,
		URL:         w.URL,
		Creator:     w.Creator,
		Created:     d.time(w.Created),
	}
	return attachment, d.err
}

// decoder converts loosely typed wire values and keeps the first error.
type decoder struct {
	err error
}

func (d *decoder) int(v any, field string) int64 {
	switch t := v.(type) {
	case nil:
		return 0
	case int64:
		return t
	case int:
		return int64(t)
	case string:
		if t == "" {
			return 0
		}
		n, err := strconv.ParseInt(t, 10, 64)
		if err != nil && d.err == nil {
			d.err = fmt.Errorf("failed to parse %s %q: %w", field, t, err)
		}
		return n
	default:
		if d.err == nil {
			d.err = fmt.Errorf("unexpected type %T for %s", v, field)
		}
		return 0
	}
}

func (d *decoder) string(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

func (d *decoder) bool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		b, _ := strconv.ParseBool(t)
		return b
	default:
		return false
	}
}

func (d *decoder) time(v any) time.Time {
	t, _ := v.(time.Time)
	return t
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
