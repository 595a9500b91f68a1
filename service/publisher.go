package service

import (
	"context"
	"fmt"
	"os"

	"github.com/foomo/mdbook-confluence/book"
	"github.com/foomo/mdbook-confluence/config"
	"github.com/foomo/mdbook-confluence/confluence"
	"github.com/foomo/mdbook-confluence/service/vo"
	"go.uber.org/zap"
)

// Publisher renders books from render context files written by mdbook,
// reusing one session for every run.
type Publisher struct {
	client   confluence.Client
	version  confluence.ServerVersion
	settings config.Settings
	logger   *zap.Logger
}

func NewPublisher(client confluence.Client, version confluence.ServerVersion, settings config.Settings, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{client: client, version: version, settings: settings, logger: logger}
}

func (p *Publisher) Publish(ctx context.Context, renderContextPath string, observer vo.Observer) error {
	f, err := os.Open(renderContextPath)
	if err != nil {
		return fmt.Errorf("failed to open render context: %w", err)
	}
	defer f.Close()

	renderContext, err := book.ReadRenderContext(f)
	if err != nil {
		return err
	}

	logger := p.logger.With(zap.String("book", renderContext.Root))
	logger.Info("publishing book")
	return NewService(p.client, p.version, p.settings, logger, observer).
		Render(ctx, renderContext.SourceRoot(), renderContext.Book.Sections)
}
