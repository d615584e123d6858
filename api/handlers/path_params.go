package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

func urlParam(r *http.Request, key string) string {
	if v := chi.URLParam(r, key); v != "" {
		return v
	}
	// Evidence keys ride in a wildcard because they contain slashes.
	if key == "key" {
		if v := chi.URLParam(r, "*"); v != "" {
			return v
		}
	}
	// Fallback for direct handler tests without chi route context.
	segments := strings.Split(strings.Trim(strings.TrimSpace(r.URL.Path), "/"), "/")
	for i := 0; i < len(segments)-1; i++ {
		switch {
		case key == "id" && segments[i] == "reports":
			return segments[i+1]
		case key == "publicId" && segments[i] == "reports":
			return segments[i+1]
		case key == "key" && segments[i] == "attachments":
			return strings.Join(segments[i+1:], "/")
		}
	}
	return ""
}

func urlParamInt64(r *http.Request, key string) (int64, bool) {
	v, err := strconv.ParseInt(strings.TrimSpace(urlParam(r, key)), 10, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}
