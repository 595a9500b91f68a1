// Package confluencetest provides an in-memory confluence.Client for tests.
package confluencetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/foomo/mdbook-confluence/confluence"
)

// ErrVersionConflict is returned when an update carries a stale version.
var ErrVersionConflict = errors.New("version conflict")

// Upload records one AddAttachment call.
type Upload struct {
	PageID  int64
	Request confluence.AttachmentRequest
	Body    string
}

// Fake is a mutex-guarded page tree. Exported fields configure behaviour
// and should be set before the fake is shared with goroutines.
type Fake struct {
	ServerInfo confluence.ServerInfo
	Space      string
	BaseURL    string

	FailServerInfo error
	// FailChildren fails GetChildren for a parent id.
	FailChildren map[int64]error
	// FailStore fails StorePage for a title.
	FailStore map[string]error
	// FailUpdate fails only updates of an existing page, by title.
	FailUpdate map[string]error
	// FailRemove fails RemovePage for an id.
	FailRemove map[int64]error
	// FailUpload fails AddAttachment for a file name.
	FailUpload map[string]error
	// OmitAttachmentURL returns attachments without a URL.
	OmitAttachmentURL bool

	mu       sync.Mutex
	nextID   int64
	pages    map[int64]*confluence.Page
	children map[int64][]int64
	created  []int64
	updated  []int64
	removed  []int64
	uploads  []Upload
	loggedIn bool
}

var _ confluence.Client = (*Fake)(nil)

func New() *Fake {
	return &Fake{
		ServerInfo:   confluence.ServerInfo{MajorVersion: 7, MinorVersion: 13, PatchLevel: 0},
		Space:        "DOC",
		BaseURL:      "https://wiki.example.com",
		FailChildren: map[int64]error{},
		FailStore:    map[string]error{},
		FailUpdate:   map[string]error{},
		FailRemove:   map[int64]error{},
		FailUpload:   map[string]error{},
		nextID:       1000,
		pages:        map[int64]*confluence.Page{},
		children:     map[int64][]int64{},
		loggedIn:     true,
	}
}

// AddPage seeds a page with the given id under parentID (0 for a root).
func (f *Fake) AddPage(id, parentID int64, title string) *confluence.Page {
	f.mu.Lock()
	defer f.mu.Unlock()
	page := &confluence.Page{
		ID:       id,
		Space:    f.Space,
		ParentID: parentID,
		Title:    title,
		URL:      f.pageURL(id),
		Version:  1,
	}
	f.pages[id] = page
	if parentID != 0 {
		f.children[parentID] = append(f.children[parentID], id)
	}
	if id >= f.nextID {
		f.nextID = id + 1
	}
	return page
}

func (f *Fake) pageURL(id int64) string {
	return fmt.Sprintf("%s/pages/viewpage.action?pageId=%d", f.BaseURL, id)
}

func (f *Fake) GetServerInfo(ctx context.Context) (*confluence.ServerInfo, error) {
	if f.FailServerInfo != nil {
		return nil, f.FailServerInfo
	}
	info := f.ServerInfo
	return &info, nil
}

func (f *Fake) GetPage(ctx context.Context, id int64) (*confluence.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	page, ok := f.pages[id]
	if !ok {
		return nil, fmt.Errorf("page %d: %w", id, confluence.ErrNotFound)
	}
	p := *page
	return &p, nil
}

func (f *Fake) GetChildren(ctx context.Context, parentID int64) ([]confluence.PageSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.FailChildren[parentID]; err != nil {
		return nil, err
	}
	if _, ok := f.pages[parentID]; !ok {
		return nil, fmt.Errorf("page %d: %w", parentID, confluence.ErrNotFound)
	}
	summaries := []confluence.PageSummary{}
	for _, id := range f.children[parentID] {
		page := f.pages[id]
		summaries = append(summaries, confluence.PageSummary{
			ID:       page.ID,
			Space:    page.Space,
			ParentID: page.ParentID,
			Title:    page.Title,
			URL:      page.URL,
		})
	}
	return summaries, nil
}

func (f *Fake) StorePage(ctx context.Context, update confluence.UpdatePage) (*confluence.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.FailStore[update.Title]; err != nil {
		return nil, err
	}

	var parentID int64
	if update.ParentID != nil {
		parentID = *update.ParentID
	}

	if update.ID == nil {
		if _, ok := f.pages[parentID]; parentID != 0 && !ok {
			return nil, fmt.Errorf("parent %d: %w", parentID, confluence.ErrNotFound)
		}
		id := f.nextID
		f.nextID++
		page := &confluence.Page{
			ID:       id,
			Space:    update.Space,
			ParentID: parentID,
			Title:    update.Title,
			URL:      f.pageURL(id),
			Version:  1,
			Content:  update.Content,
		}
		f.pages[id] = page
		if parentID != 0 {
			f.children[parentID] = append(f.children[parentID], id)
		}
		f.created = append(f.created, id)
		p := *page
		return &p, nil
	}

	if err := f.FailUpdate[update.Title]; err != nil {
		return nil, err
	}
	page, ok := f.pages[*update.ID]
	if !ok {
		return nil, fmt.Errorf("page %d: %w", *update.ID, confluence.ErrNotFound)
	}
	if update.Version == nil || *update.Version != page.Version {
		return nil, fmt.Errorf("page %d at version %d: %w", page.ID, page.Version, ErrVersionConflict)
	}
	page.Title = update.Title
	page.Content = update.Content
	page.Version++
	f.updated = append(f.updated, page.ID)
	p := *page
	return &p, nil
}

func (f *Fake) RemovePage(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.FailRemove[id]; err != nil {
		return err
	}
	page, ok := f.pages[id]
	if !ok {
		return fmt.Errorf("page %d: %w", id, confluence.ErrNotFound)
	}
	siblings := f.children[page.ParentID]
	for i, sibling := range siblings {
		if sibling == id {
			f.children[page.ParentID] = append(siblings[:i:i], siblings[i+1:]...)
			break
		}
	}
	delete(f.pages, id)
	f.removed = append(f.removed, id)
	return nil
}

func (f *Fake) AddAttachment(ctx context.Context, pageID int64, request confluence.AttachmentRequest, base64Body string) (*confluence.Attachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.FailUpload[request.FileName]; err != nil {
		return nil, err
	}
	if _, ok := f.pages[pageID]; !ok {
		return nil, fmt.Errorf("page %d: %w", pageID, confluence.ErrNotFound)
	}
	f.uploads = append(f.uploads, Upload{PageID: pageID, Request: request, Body: base64Body})
	attachment := &confluence.Attachment{
		ID:          int64(len(f.uploads)),
		PageID:      pageID,
		FileName:    request.FileName,
		ContentType: request.ContentType,
		FileSize:    int64(len(base64Body)),
		Title:       request.Title,
		Creator:     "fake",
		Created:     time.Now(),
	}
	if !f.OmitAttachmentURL {
		attachment.URL = fmt.Sprintf("%s/download/attachments/%d/%s", f.BaseURL, pageID, request.FileName)
	}
	return attachment, nil
}

func (f *Fake) Logout(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	was := f.loggedIn
	f.loggedIn = false
	return was, nil
}

// Page returns a copy of the stored page.
func (f *Fake) Page(id int64) (confluence.Page, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	page, ok := f.pages[id]
	if !ok {
		return confluence.Page{}, false
	}
	return *page, true
}

// ChildTitles lists the titles under parentID in insertion order.
func (f *Fake) ChildTitles(parentID int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	titles := []string{}
	for _, id := range f.children[parentID] {
		titles = append(titles, f.pages[id].Title)
	}
	return titles
}

// ChildByTitle finds a direct child of parentID.
func (f *Fake) ChildByTitle(parentID int64, title string) (confluence.Page, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range f.children[parentID] {
		if page := f.pages[id]; page.Title == title {
			return *page, true
		}
	}
	return confluence.Page{}, false
}

func (f *Fake) Created() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.created...)
}

func (f *Fake) Updated() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.updated...)
}

func (f *Fake) Removed() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.removed...)
}

func (f *Fake) Uploads() []Upload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Upload(nil), f.uploads...)
}
