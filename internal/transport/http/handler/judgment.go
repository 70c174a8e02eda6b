package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"judgment-rag/internal/app"
	"judgment-rag/internal/storage"
	"judgment-rag/internal/transport/http/response"
)

const defaultMaxUploadSize = 20 << 20

type JudgmentHandler struct {
	pipeline      *app.Pipeline
	maxUploadSize int64
	logger        *slog.Logger
}

func NewJudgmentHandler(pipeline *app.Pipeline, maxUploadSize int64, logger *slog.Logger) *JudgmentHandler {
	if maxUploadSize <= 0 {
		maxUploadSize = defaultMaxUploadSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &JudgmentHandler{
		pipeline:      pipeline,
		maxUploadSize: maxUploadSize,
		logger:        logger.With("component", "judgment_handler"),
	}
}

// Extract accepts a multipart form with "file" and ingests it.
func (h *JudgmentHandler) Extract(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing file")
		return
	}
	if file.Size > h.maxUploadSize {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest,
			fmt.Sprintf("file too large (max %d MB)", h.maxUploadSize>>20))
		return
	}

	f, err := file.Open()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "failed to read file")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.maxUploadSize+1))
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "failed to read file")
		return
	}

	record, err := h.pipeline.Ingest(c.Request.Context(), app.IngestInput{
		Filename:    file.Filename,
		ContentType: file.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		h.writeError(c, err, "ingest failed")
		return
	}

	response.OK(c, record)
}

// Search answers a free-text legal question.
func (h *JudgmentHandler) Search(c *gin.Context) {
	query := c.Query("query")
	if query == "" {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "query parameter is required")
		return
	}

	result, err := h.pipeline.Query(c.Request.Context(), query)
	if err != nil {
		h.writeError(c, err, "search failed")
		return
	}
	response.OK(c, result)
}

func (h *JudgmentHandler) Get(c *gin.Context) {
	record, err := h.pipeline.FindJudgment(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err, "get judgment failed")
		return
	}
	response.OK(c, record)
}

func (h *JudgmentHandler) List(c *gin.Context) {
	records, err := h.pipeline.SearchJudgments(c.Request.Context(), c.Query("title"))
	if err != nil {
		h.writeError(c, err, "list judgments failed")
		return
	}
	response.OK(c, records)
}

// Document streams the archived original of a judgment.
func (h *JudgmentHandler) Document(c *gin.Context) {
	id := c.Param("id")
	rc, err := h.pipeline.OpenDocument(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err, "open document failed")
		return
	}
	defer rc.Close()

	c.DataFromReader(http.StatusOK, -1, "application/pdf", rc, map[string]string{
		"Content-Disposition": fmt.Sprintf(`inline; filename="%s.pdf"`, id),
	})
}

func (h *JudgmentHandler) writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, app.ErrEmptyInput):
		response.Error(c, http.StatusBadRequest, response.CodeEmptyFile, "empty file")
	case errors.Is(err, app.ErrParse):
		response.Error(c, http.StatusBadRequest, response.CodeParseError, "parse error")
	case app.IsClientError(err):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, app.ErrJudgmentNotFound),
		errors.Is(err, app.ErrArchiveDisabled),
		errors.Is(err, storage.ErrObjectNotFound):
		response.Error(c, http.StatusNotFound, response.CodeNotFound, err.Error())
	default:
		h.logger.Error(fallback, "path", c.FullPath(), "error", err)
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, fallback)
	}
}
