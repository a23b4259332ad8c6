package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nazarhussain/folio-courier/internal/form"
	"github.com/nazarhussain/folio-courier/internal/logging"
	"github.com/nazarhussain/folio-courier/internal/metrics"
	"github.com/nazarhussain/folio-courier/internal/notify"
	"github.com/nazarhussain/folio-courier/internal/ratelimit"
	"github.com/nazarhussain/folio-courier/internal/spam"
	"github.com/nazarhussain/folio-courier/internal/store"
)

// Client-facing messages. Content-policy rejections never say which rule hit.
const (
	msgEmptyBody        = "request body is empty"
	msgReadError        = "read error"
	msgBadJSON          = "invalid JSON body"
	msgBadForm          = "invalid form body"
	msgTooLarge         = "payload too large"
	msgUnsupportedType  = "unsupported content type"
	msgTooManyRequests  = "too many requests"
	msgContentNotAllow  = "content not allowed"
	msgInternal         = "An error occurred while processing your message"
	msgReceivedNotified = "Message received successfully"
	msgReceivedNoEmail  = "Message received successfully, but the email notification could not be sent"
)

// contactRequest is the wire shape of POST /api/contact. The honeypot never
// reaches the server; formTime is informational.
type contactRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Subject  string `json:"subject"`
	Message  string `json:"message"`
	FormTime *int64 `json:"formTime,omitempty"`
}

type contactResponse struct {
	Success  bool             `json:"success"`
	Message  string           `json:"message"`
	ID       int64            `json:"id,omitempty"`
	Notified *bool            `json:"notified,omitempty"`
	Errors   form.FieldErrors `json:"errors,omitempty"`
}

// ContactConfig carries the collaborators of the submission pipeline.
type ContactConfig struct {
	Limiter   ratelimit.Limiter
	Validator *form.Validator
	Filter    *spam.Filter
	Store     store.Store
	Notifier  notify.Dispatcher
	Metrics   *metrics.Metrics

	MaxBodyBytes int64
	AllowJSON    bool
	AllowForm    bool
	// TrustProxy keys the rate limit on X-Forwarded-For instead of the peer.
	TrustProxy bool
}

// ContactHandler serves POST /api/contact.
type ContactHandler struct {
	cfg ContactConfig
	now func() time.Time
}

func NewContactHandler(cfg ContactConfig) *ContactHandler {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 64 << 10
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notify.Disabled{}
	}
	cfg.Notifier = notify.Safe(cfg.Notifier)
	return &ContactHandler{cfg: cfg, now: time.Now}
}

// Submit runs the pipeline: body checks, rate limit, validation, spam filter,
// persistence, then a best-effort notification. Each stage stops the request
// on failure except the last.
func (h *ContactHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logging.LoggerFromContext(ctx)

	body, err := io.ReadAll(io.LimitReader(r.Body, h.cfg.MaxBodyBytes+1))
	r.Body.Close()
	if err != nil {
		log.Warn("read request body", "err", err)
		h.reject(w, http.StatusBadRequest, metrics.OutcomeBadRequest, msgReadError)
		return
	}
	if int64(len(body)) > h.cfg.MaxBodyBytes {
		h.reject(w, http.StatusRequestEntityTooLarge, metrics.OutcomeBadRequest, msgTooLarge)
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		h.reject(w, http.StatusBadRequest, metrics.OutcomeBadRequest, msgEmptyBody)
		return
	}

	req, status, msg := h.decode(r.Header.Get("Content-Type"), body)
	if status != 0 {
		h.reject(w, status, metrics.OutcomeBadRequest, msg)
		return
	}

	ip := clientIP(r, h.cfg.TrustProxy)
	log = log.With("client_ip", ip)
	decision, err := h.cfg.Limiter.Admit(ctx, ip)
	if err != nil {
		log.Error("rate limit check failed", "err", err)
		h.reject(w, http.StatusInternalServerError, metrics.OutcomeError, msgInternal)
		return
	}
	if !decision.Allowed {
		if wait := decision.RetryAfter(h.now()); wait > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(wait/time.Second)))
		}
		log.Warn("contact rate limited", "reset_at", decision.ResetAt)
		h.reject(w, http.StatusTooManyRequests, metrics.OutcomeRateLimited, msgTooManyRequests)
		return
	}

	sub := form.Submission{
		Name:    req.Name,
		Email:   req.Email,
		Subject: req.Subject,
		Message: req.Message,
	}
	if errs := h.cfg.Validator.Validate(sub); errs != nil {
		h.cfg.Metrics.Submission(metrics.OutcomeInvalid)
		writeJSON(w, http.StatusBadRequest, contactResponse{Message: errs.Error(), Errors: errs})
		return
	}

	if v := h.cfg.Filter.Check(sub.Subject, sub.Message, sub.Email); v.Blocked {
		log.Warn("contact content rejected", "rule", v.Rule)
		h.reject(w, http.StatusBadRequest, metrics.OutcomeSpam, msgContentNotAllow)
		return
	}

	saved, err := h.cfg.Store.CreateMessage(ctx, store.NewMessage{
		Name:    sub.Name,
		Email:   sub.Email,
		Subject: sub.Subject,
		Message: sub.Message,
	})
	if err != nil {
		log.Error("store contact message failed", "err", err)
		h.reject(w, http.StatusInternalServerError, metrics.OutcomeError, msgInternal)
		return
	}
	log = log.With("message_id", saved.ID)
	if req.FormTime != nil {
		log.Debug("contact form fill time", "form_time_ms", *req.FormTime)
	}

	notified := h.cfg.Notifier.SendNotification(logging.ContextWithLogger(ctx, log), *saved)
	h.cfg.Metrics.Notification(notified)
	h.cfg.Metrics.Submission(metrics.OutcomeAccepted)

	text := msgReceivedNotified
	if !notified {
		text = msgReceivedNoEmail
	}
	log.Info("contact message accepted", "notified", notified)
	writeJSON(w, http.StatusCreated, contactResponse{
		Success:  true,
		Message:  text,
		ID:       saved.ID,
		Notified: &notified,
	})
}

// decode parses body by content type. A non-zero status means rejection.
func (h *ContactHandler) decode(contentType string, body []byte) (contactRequest, int, string) {
	var req contactRequest
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return req, http.StatusUnsupportedMediaType, msgUnsupportedType
	}

	switch {
	case mediaType == "application/json" && h.cfg.AllowJSON:
		if err := json.Unmarshal(body, &req); err != nil {
			return req, http.StatusBadRequest, msgBadJSON
		}
	case mediaType == "application/x-www-form-urlencoded" && h.cfg.AllowForm:
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return req, http.StatusBadRequest, msgBadForm
		}
		req.Name = values.Get("name")
		req.Email = values.Get("email")
		req.Subject = values.Get("subject")
		req.Message = values.Get("message")
		if ft, err := strconv.ParseInt(values.Get("formTime"), 10, 64); err == nil {
			req.FormTime = &ft
		}
	default:
		return req, http.StatusUnsupportedMediaType, msgUnsupportedType
	}
	return req, 0, ""
}

func (h *ContactHandler) reject(w http.ResponseWriter, status int, outcome, msg string) {
	h.cfg.Metrics.Submission(outcome)
	writeJSON(w, status, contactResponse{Message: msg})
}

func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
			parts := strings.Split(xf, ",")
			if ip := strings.TrimSpace(parts[0]); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
