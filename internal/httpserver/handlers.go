package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/domain"
	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/events"
	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/service"
)

type handler struct {
	svc    Service
	rooms  Rooms
	logger *zap.Logger
}

func (h *handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": formatTime(time.Now()),
	})
}

func (h *handler) handleReviewList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := service.ReviewFilter{
		Status:   domain.ReviewStatus(strings.TrimSpace(q.Get("status"))),
		Reviewer: strings.TrimSpace(q.Get("reviewer")),
	}
	if f.Status != "" && !f.Status.Valid() {
		writeValidationError(w, fmt.Errorf("unknown review status %q", f.Status))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"reviews": h.svc.ListReviews(f),
	})
}

func (h *handler) handleReviewGet(w http.ResponseWriter, r *http.Request) {
	review, err := h.svc.GetReview(chi.URLParam(r, "reviewID"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"review":  review,
		"metrics": mapReviewMetrics(review),
	})
}

func (h *handler) handleSessionList(w http.ResponseWriter, r *http.Request) {
	activeOnly := false
	if raw := strings.TrimSpace(r.URL.Query().Get("active")); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeValidationError(w, errors.New("active must be a boolean"))
			return
		}
		activeOnly = v
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": h.svc.ListSessions(activeOnly),
	})
}

func (h *handler) handleSessionGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	ss, err := h.svc.GetSession(id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	online := make([]string, 0)
	for user := range h.rooms.Presence(id) {
		online = append(online, user)
	}
	slices.Sort(online)

	writeJSON(w, http.StatusOK, map[string]any{
		"session": ss,
		"typing":  h.svc.TypingUsers(id),
		"online":  online,
	})
}

func (h *handler) handleEventList(w http.ResponseWriter, r *http.Request) {
	after, limit, err := parsePage(r)
	if err != nil {
		writeValidationError(w, err)
		return
	}

	list, err := h.svc.EventsSince(r.Context(), after, limit)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	next := after
	if len(list) > 0 {
		next = list[len(list)-1].Seq
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"events": list,
		"next":   next,
	})
}

func (h *handler) handleEventPublish(w http.ResponseWriter, r *http.Request) {
	var env events.Envelope
	if err := decodeJSON(r.Context(), r.Body, &env); err != nil {
		writeValidationError(w, err)
		return
	}

	stored, err := h.svc.Publish(r.Context(), env)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"event": stored,
	})
}

func (h *handler) writeServiceError(w http.ResponseWriter, err error) {
	status, code := mapServiceError(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("service error", zap.Error(err))
	}
	writeError(w, status, code, err.Error())
}

func mapServiceError(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrReviewNotFound),
		errors.Is(err, service.ErrSessionNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, service.ErrInvalidEvent):
		return http.StatusBadRequest, "INVALID_EVENT"
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, "FORBIDDEN"
	case errors.Is(err, service.ErrDuplicateEvent):
		return http.StatusConflict, "DUPLICATE_EVENT"
	case errors.Is(err, service.ErrRejected):
		return http.StatusConflict, "REJECTED"
	case errors.Is(err, service.ErrBusy):
		return http.StatusServiceUnavailable, "BUSY"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

func mapReviewMetrics(r domain.Review) map[string]any {
	return map[string]any{
		"additions":                 r.Additions(),
		"deletions":                 r.Deletions(),
		"filesChanged":              r.FilesChanged(),
		"comments":                  r.CommentCount(),
		"approvalsReceived":         r.ApprovalsReceived(),
		"approvalsNeeded":           r.ApprovalsNeeded,
		"requiredChecklistComplete": r.RequiredChecklistComplete(),
	}
}

func parsePage(r *http.Request) (int64, int, error) {
	q := r.URL.Query()

	var (
		after int64
		limit int
		err   error
	)
	if raw := q.Get("after"); raw != "" {
		after, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || after < 0 {
			return 0, 0, errors.New("after must be a non-negative integer")
		}
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return 0, 0, errors.New("limit must be a non-negative integer")
		}
	}
	return after, limit, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func decodeJSON(_ context.Context, body io.ReadCloser, dst any) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return errors.New("unexpected extra JSON input")
		}
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}

func writeValidationError(w http.ResponseWriter, err error) {
	writeError(w, http.StatusBadRequest, "VALIDATION", err.Error())
}
