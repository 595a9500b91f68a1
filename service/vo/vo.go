package vo

import "github.com/foomo/mdbook-confluence/confluence"

type Markdown string

// ParentPage is the page a level of chapters is created under.
type ParentPage struct {
	ID    int64  `json:"id"`
	Space string `json:"space"`
}

// ParentFromPage is the parent for the children of a page that was just stored.
func ParentFromPage(page *confluence.Page) ParentPage {
	return ParentPage{ID: page.ID, Space: page.Space}
}

// ParentFromSummary builds a parent from a child listing entry, for callers
// that hold a summary rather than a fetched page.
func ParentFromSummary(summary confluence.PageSummary) ParentPage {
	return ParentPage{ID: summary.ID, Space: summary.Space}
}

type EventKind string

const (
	EventCreated      EventKind = "created"
	EventUpdated      EventKind = "updated"
	EventFailed       EventKind = "failed"
	EventDeleted      EventKind = "deleted"
	EventDeleteFailed EventKind = "delete_failed"
	EventUploaded     EventKind = "uploaded"
)

// SyncEvent reports the outcome of one remote change.
type SyncEvent struct {
	Kind   EventKind `json:"kind"`
	Title  string    `json:"title,omitempty"` // effective page title or attachment file name
	URL    string    `json:"url,omitempty"`
	PageID int64     `json:"pageId,omitempty"`
	Error  string    `json:"error,omitempty"`
}

// Observer receives sync events. It is called from concurrent goroutines.
type Observer func(event SyncEvent)
