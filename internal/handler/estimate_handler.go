package handler

import (
	"context"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/mealmitra/mealmitra-backend/internal/estimator"
	"github.com/mealmitra/mealmitra-backend/internal/imagestore"
	"github.com/mealmitra/mealmitra-backend/internal/logctx"
	"github.com/mealmitra/mealmitra-backend/internal/model"
)

const maxImageBytes = 10 << 20

type Estimator interface {
	Estimate(ctx context.Context, d estimator.Descriptor, kind model.Kind) (estimator.Result, error)
}

// ImageHandler serves quantity estimates and photo uploads. uploader may be
// nil, in which case uploads are refused.
type ImageHandler struct {
	est      Estimator
	uploader imagestore.Uploader
}

func NewImageHandler(est Estimator, uploader imagestore.Uploader) *ImageHandler {
	return &ImageHandler{est: est, uploader: uploader}
}

type EstimateResponse struct {
	estimator.Result
	ImageURL string `json:"imageUrl,omitempty"`
}

type UploadResponse struct {
	URLs []string `json:"urls"`
}

// Estimate expects a multipart form with an "image" file and a "kind"
// field. upload=true also stores the photo.
func (h *ImageHandler) Estimate(c echo.Context) error {
	kind := model.Kind(c.FormValue("kind"))
	if !kind.Valid() {
		return c.JSON(http.StatusBadRequest, validationResponse("kind"))
	}
	fh, err := c.FormFile("image")
	if err != nil {
		return c.JSON(http.StatusBadRequest, validationResponse("image"))
	}
	data, err := readUpload(fh)
	if err != nil {
		return badRequest(c, err.Error())
	}

	ctx := c.Request().Context()
	res, err := h.est.Estimate(ctx, estimator.Descriptor{Name: fh.Filename, Size: fh.Size, Content: data}, kind)
	if err != nil {
		return writeError(c, err)
	}
	resp := EstimateResponse{Result: res}
	if c.FormValue("upload") == "true" && h.uploader != nil {
		url, err := h.uploader.Upload(ctx, fh.Filename, fh.Header.Get("Content-Type"), data)
		if err != nil {
			log.Printf("[image] rid=%s stage=upload err=%v", logctx.RID(ctx), err)
		} else {
			resp.ImageURL = url
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// Upload stores up to model.MaxImages files sent as "images".
func (h *ImageHandler) Upload(c echo.Context) error {
	if h.uploader == nil {
		return c.JSON(http.StatusServiceUnavailable, NewErrorResponse("uploads_disabled", "no image bucket configured"))
	}
	form, err := c.MultipartForm()
	if err != nil {
		return badRequest(c, "invalid multipart form")
	}
	files := form.File["images"]
	if len(files) == 0 || len(files) > model.MaxImages {
		return c.JSON(http.StatusBadRequest, validationResponse("images"))
	}
	ctx := c.Request().Context()
	urls := make([]string, 0, len(files))
	for _, fh := range files {
		data, err := readUpload(fh)
		if err != nil {
			return badRequest(c, err.Error())
		}
		url, err := h.uploader.Upload(ctx, fh.Filename, fh.Header.Get("Content-Type"), data)
		if err != nil {
			log.Printf("[image] rid=%s stage=upload name=%s err=%v", logctx.RID(ctx), fh.Filename, err)
			return c.JSON(http.StatusBadGateway, NewErrorResponse("upload_failed", "failed to store image"))
		}
		urls = append(urls, url)
	}
	return c.JSON(http.StatusCreated, UploadResponse{URLs: urls})
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	if fh.Size > maxImageBytes {
		return nil, fmt.Errorf("%s exceeds %d bytes", fh.Filename, maxImageBytes)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", fh.Filename, err)
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, maxImageBytes))
}

func validationResponse(fields ...string) ErrorResponse {
	resp := NewErrorResponse("validation_error", "invalid or missing fields")
	resp.Error.Fields = fields
	return resp
}
