package publisher

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/hasgeek/nodular/pkg/store"
	"github.com/hasgeek/nodular/pkg/view"
)

// ServeHTTP publishes the request URL path, which must lie under the
// resolver's urlpath.
func (p *Publisher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rel, ok := p.resolver.Relative(r.URL.Path)
	if !ok {
		WriteError(w, ErrRootNotFound)
		return
	}
	req := Request{Method: r.Method, Path: rel, HTTP: r}
	if p.user != nil {
		req.User = p.user(r)
	}
	if p.perms != nil {
		req.Permissions = p.perms(r)
	}

	resp, err := p.Publish(r.Context(), req)
	if resp != nil && len(resp.Allowed) > 0 {
		w.Header().Set("Allow", strings.Join(resp.Allowed, ", "))
	}
	if err != nil {
		if StatusCode(err) == http.StatusInternalServerError {
			p.log.Error().Err(err).Str("path", r.URL.Path).Msg("publish failed")
		}
		WriteError(w, err)
		return
	}

	switch {
	case resp.Redirect != "":
		target := resp.Redirect
		if r.URL.RawQuery != "" {
			target += "?" + r.URL.RawQuery
		}
		http.Redirect(w, r, target, resp.Status)
	case resp.Allowed != nil:
		w.WriteHeader(resp.Status)
	default:
		writeBody(w, r, resp.Body)
	}
}

func writeBody(w http.ResponseWriter, r *http.Request, body any) {
	switch b := body.(type) {
	case nil:
		w.WriteHeader(http.StatusNoContent)
	case http.Handler:
		b.ServeHTTP(w, r)
	case string:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(b))
	case []byte:
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(b)
	default:
		WriteJSON(w, http.StatusOK, b)
	}
}

// StatusCode maps a publish or store error to an HTTP status.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNodeGone):
		return http.StatusGone
	case errors.Is(err, view.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, view.ErrMethodNotAllowed):
		return http.StatusMethodNotAllowed
	case errors.Is(err, ErrRootNotFound), errors.Is(err, ErrViewNotFound), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrBadRequest), errors.Is(err, store.ErrInvalidName), errors.Is(err, store.ErrPathTooLong),
		errors.Is(err, store.ErrValueTooLong), errors.Is(err, store.ErrInvalidKey),
		errors.Is(err, store.ErrTypeNotAllowed), errors.Is(err, store.ErrCycle):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrUniqueConflict):
		return http.StatusConflict
	case errors.Is(err, store.ErrReadOnly):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes err as {"error": "..."} with the status StatusCode
// picks for it. Internal errors are not echoed to the client.
func WriteError(w http.ResponseWriter, err error) {
	status := StatusCode(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = http.StatusText(status)
	}
	WriteJSON(w, status, map[string]string{"error": msg})
}
