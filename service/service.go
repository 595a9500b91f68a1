package service

import (
	"context"
	"fmt"

	"github.com/foomo/mdbook-confluence/book"
	"github.com/foomo/mdbook-confluence/config"
	"github.com/foomo/mdbook-confluence/confluence"
	"github.com/foomo/mdbook-confluence/logging"
	"github.com/foomo/mdbook-confluence/service/vo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Service interface {
	// Render synchronises items with the children of the configured root
	// page. Only failures to reach the root page or list its children are
	// returned; page level failures are logged and reported to the observer.
	Render(ctx context.Context, srcRoot string, items []book.Item) error
}

type service struct {
	client   confluence.Client
	version  confluence.ServerVersion
	settings config.Settings
	logger   *zap.Logger
	observer vo.Observer
}

func NewService(
	client confluence.Client,
	version confluence.ServerVersion,
	settings config.Settings,
	logger *zap.Logger,
	observer vo.Observer,
) Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if observer == nil {
		observer = func(vo.SyncEvent) {}
	}
	return &service{
		client:   client,
		version:  version,
		settings: settings,
		logger:   logger,
		observer: observer,
	}
}

func (s *service) Render(ctx context.Context, srcRoot string, items []book.Item) error {
	root, err := s.client.GetPage(ctx, s.settings.RootPage)
	if err != nil {
		return fmt.Errorf("failed to get root page %d: %w", s.settings.RootPage, err)
	}
	return s.syncGroup(ctx, items, vo.ParentFromPage(root), srcRoot)
}

// renderedPage is the outcome of a successful renderPage call.
type renderedPage struct {
	kind  vo.EventKind
	id    int64
	title string
	url   string
}

// summary reads "Created 'title' url" or "Updated 'title' url".
func (p *renderedPage) summary() string {
	status := "Updated"
	if p.kind == vo.EventCreated {
		status = "Created"
	}
	return fmt.Sprintf("%s '%s' %s", status, p.title, p.url)
}

// syncGroup makes the children of parent match the chapters among items.
// Chapters are matched to existing children by effective title, rendered
// concurrently, and children left unmatched are deleted afterwards.
func (s *service) syncGroup(ctx context.Context, items []book.Item, parent vo.ParentPage, srcRoot string) error {
	children, err := s.client.GetChildren(ctx, parent.ID)
	if err != nil {
		return fmt.Errorf("failed to list children of page %d: %w", parent.ID, err)
	}

	chapters := book.Chapters(items)
	remaining := append([]confluence.PageSummary(nil), children...)
	existing := make([]*int64, len(chapters))
	for i, chapter := range chapters {
		title := s.settings.ChapterTitle(chapter.Name)
		// last match wins; matched children are no longer candidates
		for j := len(remaining) - 1; j >= 0; j-- {
			if remaining[j].Title == title {
				id := remaining[j].ID
				existing[i] = &id
				remaining = append(remaining[:j], remaining[j+1:]...)
				break
			}
		}
	}

	type result struct {
		page *renderedPage
		err  error
	}
	results := make([]result, len(chapters))

	var g errgroup.Group
	for i, chapter := range chapters {
		g.Go(func() error {
			page, err := s.renderPage(ctx, chapter, parent, existing[i], srcRoot)
			results[i] = result{page: page, err: err}
			return nil
		})
	}
	_ = g.Wait()

	for i, r := range results {
		title := s.settings.ChapterTitle(chapters[i].Name)
		if r.err != nil {
			s.logger.Error("failed to render page", zap.String("title", title), zap.Error(r.err))
			s.observer(vo.SyncEvent{Kind: vo.EventFailed, Title: title, Error: r.err.Error()})
			continue
		}
		s.logger.Info(r.page.summary(), logging.Status(string(r.page.kind)))
		s.observer(vo.SyncEvent{Kind: r.page.kind, Title: r.page.title, URL: r.page.url, PageID: r.page.id})
	}

	for _, orphan := range remaining {
		if err := s.client.RemovePage(ctx, orphan.ID); err != nil {
			s.logger.Error("failed to delete page", zap.String("title", orphan.Title), zap.Int64("id", orphan.ID), zap.Error(err))
			s.observer(vo.SyncEvent{Kind: vo.EventDeleteFailed, Title: orphan.Title, URL: orphan.URL, PageID: orphan.ID, Error: err.Error()})
			continue
		}
		s.logger.Info(fmt.Sprintf("Deleted '%s' %s", orphan.Title, orphan.URL), logging.Status(string(vo.EventDeleted)))
		s.observer(vo.SyncEvent{Kind: vo.EventDeleted, Title: orphan.Title, URL: orphan.URL, PageID: orphan.ID})
	}
	return nil
}

// renderPage creates or updates the page for chapter and then synchronises
// the chapter's sub items below it.
func (s *service) renderPage(ctx context.Context, chapter *book.Chapter, parent vo.ParentPage, existingPageID *int64, srcRoot string) (*renderedPage, error) {
	title := s.settings.ChapterTitle(chapter.Name)
	kind := vo.EventUpdated

	var stub *confluence.Page
	var err error
	if existingPageID == nil {
		kind = vo.EventCreated
		parentID := parent.ID
		stub, err = s.client.StorePage(ctx, confluence.UpdatePage{
			Space:    parent.Space,
			Title:    title,
			ParentID: &parentID,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create page '%s': %w", title, err)
		}
	} else {
		stub, err = s.client.GetPage(ctx, *existingPageID)
		if err != nil {
			return nil, fmt.Errorf("failed to get page '%s': %w", title, err)
		}
	}

	update, err := s.createPageContent(ctx, chapter, stub, parent, srcRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to create content for '%s': %w", title, err)
	}

	stored, err := s.client.StorePage(ctx, update)
	if err != nil {
		return nil, fmt.Errorf("failed to store page '%s': %w", title, err)
	}

	if err := s.syncGroup(ctx, chapter.SubItems, vo.ParentFromPage(stored), srcRoot); err != nil {
		return nil, fmt.Errorf("failed to sync children of '%s': %w", title, err)
	}

	return &renderedPage{kind: kind, id: stored.ID, title: stored.Title, url: stored.URL}, nil
}
