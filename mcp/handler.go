package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/foomo/mdbook-confluence/confluence"
	"github.com/foomo/mdbook-confluence/markup"
	"github.com/foomo/mdbook-confluence/service/vo"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const Version = "0.0.1"

// Publisher synchronises the book described by a render context file.
type Publisher interface {
	Publish(ctx context.Context, renderContextPath string, observer vo.Observer) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, renderContextPath string, observer vo.Observer) error

func (f PublisherFunc) Publish(ctx context.Context, renderContextPath string, observer vo.Observer) error {
	return f(ctx, renderContextPath, observer)
}

type ServerInfoRequest struct{}

type ServerInfoResponse struct {
	Version              string `json:"version"`
	SupportsExtendedText bool   `json:"supportsExtendedText"`
}

type PageRequest struct {
	PageID int64 `json:"pageId"` // Confluence page id
}

type ListChildrenResponse struct {
	Children []confluence.PageSummary `json:"children"`
}

type GetPageResponse struct {
	Page *confluence.Page `json:"page"`
	// Markdown is the page content converted from storage format
	Markdown vo.Markdown `json:"markdown,omitempty"`
}

type PublishRequest struct {
	RenderContext string `json:"renderContext"` // Path to an mdbook render context JSON file
}

type PublishResponse struct {
	Events []vo.SyncEvent `json:"events"`
}

// NewServer creates a new MCP server with the Confluence tools. The publish
// tool is only added when publisher is not nil.
func NewServer(client confluence.Client, publisher Publisher) *server.MCPServer {
	s := server.NewMCPServer(
		"mdbook Confluence MCP",
		Version,
		server.WithToolCapabilities(false),
	)

	serverInfoTool := mcp.NewTool("serverInfo",
		mcp.WithDescription("Get the Confluence server version and whether it stores 4 byte characters"),
	)
	s.AddTool(serverInfoTool, mcp.NewTypedToolHandler(getServerInfoHandler(client)))

	listChildrenTool := mcp.NewTool("listChildren",
		mcp.WithDescription("List the direct children of a Confluence page"),
		mcp.WithNumber("pageId",
			mcp.Required(),
			mcp.Description("The id of the parent page"),
		),
	)
	s.AddTool(listChildrenTool, mcp.NewTypedToolHandler(getListChildrenHandler(client)))

	getPageTool := mcp.NewTool("getPage",
		mcp.WithDescription("Get a Confluence page including its storage format content and that content as markdown"),
		mcp.WithNumber("pageId",
			mcp.Required(),
			mcp.Description("The id of the page"),
		),
	)
	s.AddTool(getPageTool, mcp.NewTypedToolHandler(getPageHandler(client)))

	if publisher != nil {
		publishTool := mcp.NewTool("publish",
			mcp.WithDescription("Publish an mdbook book below the configured root page"),
			mcp.WithString("renderContext",
				mcp.Required(),
				mcp.Description("Path to the render context JSON mdbook passes to renderers"),
			),
		)
		s.AddTool(publishTool, mcp.NewTypedToolHandler(getPublishHandler(publisher)))
	}

	return s
}

func jsonResult(response any) (*mcp.CallToolResult, error) {
	responseBytes, err := json.Marshal(response)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(responseBytes)), nil
}

func getServerInfoHandler(client confluence.Client) func(ctx context.Context, request mcp.CallToolRequest, args ServerInfoRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest, args ServerInfoRequest) (*mcp.CallToolResult, error) {
		version, err := confluence.FetchServerVersion(ctx, client)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to get server version: %v", err)), nil
		}
		return jsonResult(ServerInfoResponse{
			Version:              version.String(),
			SupportsExtendedText: version.SupportsExtendedText(),
		})
	}
}

func getListChildrenHandler(client confluence.Client) func(ctx context.Context, request mcp.CallToolRequest, args PageRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest, args PageRequest) (*mcp.CallToolResult, error) {
		if args.PageID == 0 {
			return mcp.NewToolResultError("pageId is required"), nil
		}
		children, err := client.GetChildren(ctx, args.PageID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to list children: %v", err)), nil
		}
		return jsonResult(ListChildrenResponse{Children: children})
	}
}

func getPageHandler(client confluence.Client) func(ctx context.Context, request mcp.CallToolRequest, args PageRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest, args PageRequest) (*mcp.CallToolResult, error) {
		if args.PageID == 0 {
			return mcp.NewToolResultError("pageId is required"), nil
		}
		page, err := client.GetPage(ctx, args.PageID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to get page: %v", err)), nil
		}
		markdown, err := markup.StorageToMarkdown(ctx, page.Content)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to convert page content: %v", err)), nil
		}
		return jsonResult(GetPageResponse{Page: page, Markdown: markdown})
	}
}

func getPublishHandler(publisher Publisher) func(ctx context.Context, request mcp.CallToolRequest, args PublishRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest, args PublishRequest) (*mcp.CallToolResult, error) {
		if args.RenderContext == "" {
			return mcp.NewToolResultError("renderContext is required"), nil
		}

		var mu sync.Mutex
		events := []vo.SyncEvent{}
		err := publisher.Publish(ctx, args.RenderContext, func(event vo.SyncEvent) {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, event)
		})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to publish: %v", err)), nil
		}
		return jsonResult(PublishResponse{Events: events})
	}
}
