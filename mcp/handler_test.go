package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/foomo/mdbook-confluence/confluence/confluencetest"
	"github.com/foomo/mdbook-confluence/service/vo"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func callRequest(name string, args any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Request: mcp.Request{
			Method: "tools/call",
		},
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	text, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok)
	return text.Text
}

func TestNewServer(t *testing.T) {
	require.NotNil(t, NewServer(confluencetest.New(), nil))
}

func TestServerInfoHandler(t *testing.T) {
	handler := getServerInfoHandler(confluencetest.New())
	result, err := handler(context.Background(), callRequest("serverInfo", nil), ServerInfoRequest{})
	require.NoError(t, err)
	require.False(t, result.IsError)

	var response ServerInfoResponse
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &response))
	assert.Equal(t, ServerInfoResponse{Version: "7.13.0", SupportsExtendedText: true}, response)
}

func TestListChildrenHandler(t *testing.T) {
	fake := confluencetest.New()
	fake.AddPage(42, 0, "Root")
	fake.AddPage(7, 42, "Intro")
	handler := getListChildrenHandler(fake)

	args := PageRequest{PageID: 42}
	result, err := handler(context.Background(), callRequest("listChildren", args), args)
	require.NoError(t, err)

	var response ListChildrenResponse
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &response))
	require.Len(t, response.Children, 1)
	assert.Equal(t, "Intro", response.Children[0].Title)
}

func TestPageHandler(t *testing.T) {
	fake := confluencetest.New()
	page := fake.AddPage(7, 0, "Intro")
	page.Content = `<ac:structured-macro ac:name="markdown"><ac:plain-text-body><![CDATA[# Intro]]></ac:plain-text-body></ac:structured-macro>`
	handler := getPageHandler(fake)

	args := PageRequest{PageID: 7}
	result, err := handler(context.Background(), callRequest("getPage", args), args)
	require.NoError(t, err)
	require.False(t, result.IsError)

	var response GetPageResponse
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &response))
	assert.Equal(t, "Intro", response.Page.Title)
	assert.Equal(t, vo.Markdown("# Intro"), response.Markdown)
}

func TestPageHandlerValidation(t *testing.T) {
	handler := getPageHandler(confluencetest.New())

	result, err := handler(context.Background(), callRequest("getPage", PageRequest{}), PageRequest{})
	require.NoError(t, err)
	assert.True(t, result.IsError)

	args := PageRequest{PageID: 404}
	result, err = handler(context.Background(), callRequest("getPage", args), args)
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "not found")
}

func TestPublishHandler(t *testing.T) {
	var gotPath string
	publisher := PublisherFunc(func(ctx context.Context, path string, observer vo.Observer) error {
		gotPath = path
		observer(vo.SyncEvent{Kind: vo.EventCreated, Title: "Intro"})
		observer(vo.SyncEvent{Kind: vo.EventDeleted, Title: "Old"})
		return nil
	})
	handler := getPublishHandler(publisher)

	args := PublishRequest{RenderContext: "/tmp/ctx.json"}
	result, err := handler(context.Background(), callRequest("publish", args), args)
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Equal(t, "/tmp/ctx.json", gotPath)

	var response PublishResponse
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &response))
	assert.Len(t, response.Events, 2)
}

func TestPublishHandlerErrors(t *testing.T) {
	handler := getPublishHandler(PublisherFunc(func(ctx context.Context, path string, observer vo.Observer) error {
		return errors.New("root page missing")
	}))

	result, err := handler(context.Background(), callRequest("publish", PublishRequest{}), PublishRequest{})
	require.NoError(t, err)
	assert.True(t, result.IsError)

	args := PublishRequest{RenderContext: "ctx.json"}
	result, err = handler(context.Background(), callRequest("publish", args), args)
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "root page missing")
}
