// ABOUTME: HTTP API handlers for session bootstrap and conversation lookup
// ABOUTME: Provides POST /api/session/init and GET /api/conversations/{id}

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/2389/coven-connect/internal/session"
	"github.com/2389/coven-connect/internal/store"
)

// maxRequestBody caps JSON request bodies
const maxRequestBody = 1 << 20

// SessionInitRequest is the JSON request body for POST /api/session/init.
// company_key is not validated here; a key that doesn't resolve, empty
// included, comes back from the session service as invalid_company_key.
type SessionInitRequest struct {
	CompanyKey string `json:"company_key"`
	DeviceID   string `json:"device_id" validate:"required,max=256"`
}

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// handleSessionInit handles POST /api/session/init requests.
// It resolves or provisions the caller's conversation and returns its projection.
func (g *Gateway) handleSessionInit(w http.ResponseWriter, r *http.Request) {
	var req SessionInitRequest
	if err := g.decodeRequest(r, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	if timeout := g.config.Session.RequestTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	conv, err := g.sessions.ResolveSession(ctx, req.CompanyKey, req.DeviceID)
	if err != nil {
		g.sendSessionError(w, err)
		return
	}

	resp, err := session.Project(conv)
	if err != nil {
		g.logger.Error("projecting conversation", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "failed to build response")
		return
	}

	g.writeJSON(w, http.StatusOK, resp)
}

// handleGetConversation handles GET /api/conversations/{id} requests.
func (g *Gateway) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	conv, err := g.store.GetConversation(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		g.sendJSONError(w, http.StatusNotFound, "conversation not found")
		return
	}
	if err != nil {
		g.logger.Error("loading conversation", "error", err, "conversation_id", id)
		g.sendJSONError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}

	resp, err := session.Project(conv)
	if err != nil {
		g.logger.Error("projecting conversation", "error", err, "conversation_id", id)
		g.sendJSONError(w, http.StatusInternalServerError, "failed to build response")
		return
	}

	g.writeJSON(w, http.StatusOK, resp)
}

// statusForSessionError maps a session failure kind to an HTTP status.
func statusForSessionError(err error) int {
	switch session.KindOf(err) {
	case session.KindInvalidCompanyKey:
		return http.StatusNotFound
	case session.KindNoAgentsAvailable, session.KindStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// sendSessionError writes a session failure with its kind as the error code.
func (g *Gateway) sendSessionError(w http.ResponseWriter, err error) {
	status := statusForSessionError(err)
	kind := session.KindOf(err)

	if status >= http.StatusInternalServerError && kind != session.KindNoAgentsAvailable {
		g.logger.Error("session init failed", "error", err, "kind", kind.String())
	} else {
		g.logger.Debug("session init rejected", "error", err, "kind", kind.String())
	}

	g.writeJSON(w, status, ErrorResponse{
		Error: strings.ReplaceAll(kind.String(), "_", " "),
		Code:  kind.String(),
	})
}

// decodeRequest parses a JSON body into dst and validates its struct tags.
func (g *Gateway) decodeRequest(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.New("invalid JSON body")
	}

	if err := g.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%s is %s", jsonFieldName(verrs[0]), describeTag(verrs[0].Tag()))
		}
		return err
	}
	return nil
}

// newValidator returns a validator that reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// jsonFieldName strips the top-level struct name from a validator namespace,
// turning "SessionInitRequest.device_id" into "device_id".
func jsonFieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describeTag(tag string) string {
	switch tag {
	case "required":
		return "required"
	case "max":
		return "too long"
	default:
		return "invalid (" + tag + ")"
	}
}

// writeJSON writes v as a JSON response with the given status.
func (g *Gateway) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		g.logger.Warn("writing response", "error", err)
	}
}

// sendJSONError writes a JSON error response.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	g.writeJSON(w, status, ErrorResponse{Error: message})
}
