package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/IgorGrieder/llm-edge-gateway/internal/constants"
	"github.com/IgorGrieder/llm-edge-gateway/internal/infrastructure/logger"
	appvalidation "github.com/IgorGrieder/llm-edge-gateway/internal/infrastructure/validation"
	"github.com/IgorGrieder/llm-edge-gateway/internal/processing/links"
	"github.com/IgorGrieder/llm-edge-gateway/internal/upstream"
	"github.com/IgorGrieder/llm-edge-gateway/pkg/httputils"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

type LinksHandler struct {
	svc          *links.Service
	maxBodyBytes int64
}

func NewLinksHandler(svc *links.Service, maxBodyBytes int64) *LinksHandler {
	return &LinksHandler{svc: svc, maxBodyBytes: maxBodyBytes}
}

// All fields are optional free text.
type createLinkRequest struct {
	To      string `json:"to" validate:"max=200"`
	From    string `json:"from" validate:"max=200"`
	Request string `json:"request" validate:"max=4000"`
	Context string `json:"context" validate:"max=8000"`
}

func (h *LinksHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createLinkRequest
	body := http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputils.WriteAPIError(w, r, constants.ErrBodyTooLarge)
			return
		}
		httputils.WriteAPIError(w, r, constants.ErrInvalidRequestBody)
		return
	}
	if err := appvalidation.Validate(req); err != nil {
		apiErr := constants.ErrInvalidRequestBody
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
			e := validationErrs[0]
			apiErr = apiErr.WithMessage(e.Field() + " is too long (max " + e.Param() + " characters)")
		}
		httputils.WriteAPIError(w, r, apiErr)
		return
	}

	created, err := h.svc.Create(r.Context(), links.CreateInput{
		To:      req.To,
		From:    req.From,
		Request: req.Request,
		Context: req.Context,
	})
	if err != nil {
		switch {
		case errors.Is(err, upstream.ErrUnavailable):
			httputils.WriteAPIError(w, r, constants.ErrUpstreamUnavailable)
		case errors.Is(err, links.ErrUpstream):
			logger.Warn("intro precompute failed", zap.Error(err))
			httputils.WriteAPIError(w, r, constants.ErrUpstreamFailure)
		default:
			logger.Error("failed to create link", zap.Error(err))
			httputils.WriteAPIError(w, r, constants.ErrInternalError)
		}
		return
	}

	httputils.WriteAPISuccess(w, r, constants.SuccessLinkCreated, created)
}

func (h *LinksHandler) Fetch(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")

	raw, err := h.svc.Fetch(r.Context(), slug)
	if err != nil {
		if errors.Is(err, links.ErrNotFound) {
			httputils.WriteAPIError(w, r, constants.ErrLinkNotFound)
			return
		}
		logger.Error("failed to load link", zap.Error(err), zap.String("slug", slug))
		httputils.WriteAPIError(w, r, constants.ErrInternalError)
		return
	}

	httputils.WriteRawJSON(w, r, constants.SuccessLinkFound, raw)
}
