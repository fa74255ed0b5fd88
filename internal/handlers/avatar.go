package handlers

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sceneit/apiserver/internal/services"
)

const avatarCacheControl = "public, max-age=86400"

// AvatarRouter serves avatar images at /{file}.
func AvatarRouter(r chi.Router, avatarService *services.AvatarService) {
	r.Get("/{file}", func(w http.ResponseWriter, r *http.Request) {
		rc, contentType, err := avatarService.Open(r.Context(), chi.URLParam(r, "file"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		defer rc.Close()

		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Cache-Control", avatarCacheControl)
		w.WriteHeader(http.StatusOK)
		_, _ = io.Copy(w, rc)
	})
}
