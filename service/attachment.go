package service

import (
	"context"
	"encoding/base64"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/foomo/mdbook-confluence/confluence"
	"github.com/foomo/mdbook-confluence/logging"
	"github.com/foomo/mdbook-confluence/service/vo"
	"go.uber.org/zap"
)

const defaultContentType = "application/octet-stream"

// uploadImage attaches the file at dir/imageURL to the page and returns the
// attachment url. Failures are logged and reported as false.
func (s *service) uploadImage(ctx context.Context, pageID int64, dir, imageURL, title string) (string, bool) {
	path := filepath.Join(dir, filepath.FromSlash(imageURL))
	logger := s.logger.With(zap.Int64("page", pageID), zap.String("file", path))
	logger.Info("attempting to upload file")

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Error("failed to read file", zap.Error(err))
		return "", false
	}

	request := confluence.AttachmentRequest{
		FileName:    filepath.Base(path),
		ContentType: contentType(path),
		Title:       title,
	}
	attachment, err := s.client.AddAttachment(ctx, pageID, request, base64.StdEncoding.EncodeToString(data))
	if err != nil {
		logger.Error("failed to upload file", zap.Error(err))
		return "", false
	}
	if attachment.URL == "" {
		logger.Error("uploaded an attachment but couldn't find a url for it")
		return "", false
	}

	logger.Info("Uploaded file at "+attachment.URL, logging.Status(string(vo.EventUploaded)))
	s.observer(vo.SyncEvent{Kind: vo.EventUploaded, Title: request.FileName, URL: attachment.URL, PageID: pageID})
	return attachment.URL, true
}

func contentType(path string) string {
	t := mime.TypeByExtension(filepath.Ext(path))
	if t == "" {
		return defaultContentType
	}
	if i := strings.IndexByte(t, ';'); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	return t
}
