package handler

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/studyroomhq/studyroom-chat/internal/audit"
	"github.com/studyroomhq/studyroom-chat/pkg/log"
	"github.com/studyroomhq/studyroom-chat/pkg/response"
	"github.com/studyroomhq/studyroom-chat/pkg/storage"
)

// maxUploadSize caps attachment uploads at 10 MiB.
const maxUploadSize = 10 << 20

// UploadHandler stores chat attachments and hands back a URL the client
// embeds in its next chat frame.
type UploadHandler struct {
	store  storage.Storage
	urlTTL time.Duration
}

func NewUploadHandler(store storage.Storage, urlTTL time.Duration) *UploadHandler {
	return &UploadHandler{store: store, urlTTL: urlTTL}
}

// Upload handles POST /upload with a multipart "file" field.
func (h *UploadHandler) Upload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "a multipart 'file' field is required")
		return
	}
	if header.Size > maxUploadSize {
		response.BadRequest(c, "file exceeds the 10 MiB upload limit")
		return
	}

	file, err := header.Open()
	if err != nil {
		response.InternalError(c, "failed to read uploaded file")
		return
	}
	defer file.Close()

	mtype, err := mimetype.DetectReader(file)
	if err != nil {
		response.InternalError(c, "failed to inspect uploaded file")
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		response.InternalError(c, "failed to read uploaded file")
		return
	}

	key := fmt.Sprintf("%s%s", uuid.NewString(), filepath.Ext(header.Filename))
	ctx := c.Request.Context()

	if err := h.store.Write(ctx, key, file, header.Size, mtype.String()); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("key", key).Msg("attachment write failed")
		response.InternalError(c, "failed to store uploaded file")
		return
	}

	url, err := h.store.GetURL(ctx, key, h.urlTTL)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("key", key).Msg("attachment url generation failed")
		response.InternalError(c, "failed to resolve file url")
		return
	}

	audit.Log(ctx, audit.ActionUpload, "", "", header.Filename)
	response.Success(c, gin.H{
		"url":       url,
		"filename":  header.Filename,
		"file_type": mtype.String(),
		"file_size": header.Size,
	})
}
