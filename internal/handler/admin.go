package handler

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"

	"github.com/nazarhussain/folio-courier/internal/logging"
	"github.com/nazarhussain/folio-courier/internal/store"
)

// AdminHandler lists stored messages for the site owner. It is guarded by a
// static bearer token; an empty token disables the route.
type AdminHandler struct {
	store store.Store
	token string
}

func NewAdminHandler(s store.Store, token string) *AdminHandler {
	return &AdminHandler{store: s, token: token}
}

type listResponse struct {
	Success  bool             `json:"success"`
	Messages []*store.Message `json:"messages"`
	Limit    int              `json:"limit"`
	Offset   int              `json:"offset"`
}

// List serves GET /api/admin/messages?limit=&offset=.
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.token == "" {
		writeJSON(w, http.StatusNotFound, contactResponse{Message: "not found"})
		return
	}
	if !h.authorized(r) {
		w.Header().Set("WWW-Authenticate", `Bearer realm="admin"`)
		writeJSON(w, http.StatusUnauthorized, contactResponse{Message: "unauthorized"})
		return
	}

	opts := store.ListOptions{
		Limit:  queryInt(r, "limit"),
		Offset: queryInt(r, "offset"),
	}
	msgs, err := h.store.ListMessages(r.Context(), opts)
	if err != nil {
		logging.LoggerFromContext(r.Context()).Error("list contact messages failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, contactResponse{Message: msgInternal})
		return
	}
	opts = opts.Normalized()
	writeJSON(w, http.StatusOK, listResponse{
		Success:  true,
		Messages: msgs,
		Limit:    opts.Limit,
		Offset:   opts.Offset,
	})
}

func (h *AdminHandler) authorized(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(h.token)) == 1
}

func queryInt(r *http.Request, key string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return 0
	}
	return n
}

// Health reports liveness.
func Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
