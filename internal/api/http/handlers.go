package http

import (
	"encoding/base64"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/links2go/links2go/internal/models"
	"github.com/links2go/links2go/internal/service"
	"github.com/links2go/links2go/internal/storage"
	"github.com/links2go/links2go/pkg/response"
)

const qrCodeSize = 256

func handleHealth(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
	})
}

func handleShortenURL(svc URLService, validate *validator.Validate, baseURL string) http.HandlerFunc {
	const op = "api.http.handleShortenURL"
	const successMsg = "The URL has been shortened successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		var req shortenRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			if errors.Is(err, io.EOF) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.EmptyRequestBodyResponse)
				return
			}

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.BadRequestResponse)
			return
		}

		if err := validate.Struct(req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ValidationErrorResponse(err))
			return
		}

		expiresIn := time.Duration(req.ExpiresIn) * time.Second

		url, err := svc.ShortenURL(r.Context(), req.URL, req.CustomCode, expiresIn)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrInvalidURL):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.InvalidURLResponse)
			case errors.Is(err, service.ErrInvalidShortCode):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.InvalidShortCodeResponse)
			case errors.Is(err, storage.ErrShortCodeExists):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.ShortCodeTakenResponse)
			default:
				httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.ServerErrorResponse)
			}
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, response.SuccessResponse(successMsg, toShortenResponse(baseURL, url)))
	}
}

func handleRedirect(svc URLService) http.HandlerFunc {
	const op = "api.http.handleRedirect"

	return func(w http.ResponseWriter, r *http.Request) {
		shortCode := chi.URLParam(r, "shortCode")

		click := models.ClickEvent{
			IP:        clientIP(r),
			UserAgent: r.UserAgent(),
			Referer:   r.Referer(),
		}

		url, err := svc.ResolveShortCode(r.Context(), shortCode, click)
		if err != nil {
			switch {
			case errors.Is(err, storage.ErrURLNotFound):
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.ResourceNotFoundResponse)
			case errors.Is(err, service.ErrURLExpired):
				render.Status(r, http.StatusGone)
				render.JSON(w, r, response.URLExpiredResponse)
			default:
				httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.ServerErrorResponse)
			}
			return
		}

		http.Redirect(w, r, url.OriginalURL, http.StatusMovedPermanently)
	}
}

func handleGetAnalytics(svc URLService) http.HandlerFunc {
	const op = "api.http.handleGetAnalytics"
	const successMsg = "The URL analytics retrieved successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		shortCode := chi.URLParam(r, "shortCode")

		analytics, err := svc.GetAnalytics(r.Context(), shortCode)
		if err != nil {
			if errors.Is(err, storage.ErrURLNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.ResourceNotFoundResponse)
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, toAnalyticsResponse(analytics)))
	}
}

func handleGetQRCode(svc URLService, baseURL string) http.HandlerFunc {
	const op = "api.http.handleGetQRCode"
	const successMsg = "The QR code was generated successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		shortCode := chi.URLParam(r, "shortCode")

		url, err := svc.GetURL(r.Context(), shortCode)
		if err != nil {
			if errors.Is(err, storage.ErrURLNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.ResourceNotFoundResponse)
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		target := shortURL(baseURL, url.ShortCode)

		png, err := qrcode.Encode(target, qrcode.Medium, qrCodeSize)
		if err != nil {
			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, qrCodeResponse{
			QRCode:      "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
			ShortURL:    target,
			OriginalURL: url.OriginalURL,
		}))
	}
}

func handleDeleteURL(svc URLService) http.HandlerFunc {
	const op = "api.http.handleDeleteURL"
	const successMsg = "The URL was successfully deleted."

	return func(w http.ResponseWriter, r *http.Request) {
		shortCode := chi.URLParam(r, "shortCode")

		deleted, err := svc.DeleteURL(r.Context(), shortCode)
		if err != nil {
			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		if !deleted {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.ResourceNotFoundResponse)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg))
	}
}

// clientIP returns the requester address without the port. The RealIP
// middleware has already rewritten RemoteAddr when the request came through
// a trusted proxy.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
