package app

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"taskboard/internal/model"
	"taskboard/internal/patch"
	"taskboard/internal/store"
	"taskboard/internal/util"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) == 0 || parts[0] != "api" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	rest := parts[1:]

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && len(rest) == 1 && rest[0] == "health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && len(rest) == 1 && rest[0] == "ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.service.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if len(rest) >= 1 && rest[0] == "auth" {
		s.handleAuth(w, r, rest[1:])
		return
	}

	if r.Method == http.MethodPost && len(rest) == 2 && rest[0] == "admin" && rest[1] == "signup-key" {
		key, err := s.service.MintSignupKey(r.Context(), r.Header.Get("Admin-Key"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"key": key})
		return
	}

	// Everything below requires an authenticated caller.
	userID, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	switch {
	case len(rest) >= 1 && rest[0] == "boards":
		s.handleBoards(w, r, userID, rest[1:])
	case r.Method == http.MethodGet && len(rest) == 1 && rest[0] == "search":
		s.handleSearch(w, r, userID)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleAuth(w http.ResponseWriter, r *http.Request, rest []string) {
	if r.Method != http.MethodPost || len(rest) != 1 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	switch rest[0] {
	case "signup":
		var in SignUpInput
		if err := decodeBody(r, &in); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		session, err := s.service.SignUp(r.Context(), in)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, session)
	case "signin":
		var in SignInInput
		if err := decodeBody(r, &in); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		session, err := s.service.SignIn(r.Context(), in)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, session)
	case "signout":
		userID, secret, err := appToken(r)
		if err != nil {
			writeErr(w, err)
			return
		}
		if err := s.service.SignOut(r.Context(), userID, secret); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request, userID int64) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	resp, err := s.service.SearchBoards(r.Context(), userID, q.Get("q"), limit, offset)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleBoards dispatches everything under /api/boards. The path spells
// out the full address of the touched entity:
//
//	/api/boards/{b}/cards/{c}/tasks/{t}/subtasks/{s}/tags/{g}
func (s *HTTPServer) handleBoards(w http.ResponseWriter, r *http.Request, userID int64, rest []string) {
	if len(rest) == 0 {
		switch r.Method {
		case http.MethodGet:
			summaries, err := s.service.ListBoards(r.Context(), userID)
			if err != nil {
				writeErr(w, err)
				return
			}
			if summaries == nil {
				summaries = []model.BoardSummary{}
			}
			writeJSON(w, http.StatusOK, map[string]any{"boards": summaries})
		case http.MethodPost:
			var in CreateBoardInput
			if err := decodeBody(r, &in); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			boardID, err := s.service.CreateBoard(r.Context(), userID, in)
			if err != nil {
				writeErr(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"id": boardID})
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	boardID, err := parseID(rest[0])
	if err != nil {
		writeErr(w, err)
		return
	}
	rest = rest[1:]

	if len(rest) == 0 {
		switch r.Method {
		case http.MethodGet:
			board, err := s.service.GetBoard(r.Context(), userID, boardID)
			if err != nil {
				writeErr(w, err)
				return
			}
			writeJSON(w, http.StatusOK, board)
		case http.MethodPatch:
			s.applyPatch(w, r, func(p patch.Patch) error {
				return s.service.PatchBoard(r.Context(), userID, boardID, p)
			})
		case http.MethodDelete:
			if err := s.service.DeleteBoard(r.Context(), userID, boardID); err != nil {
				writeErr(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	if rest[0] != "cards" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	s.handleCards(w, r, userID, boardID, rest[1:])
}

func (s *HTTPServer) handleCards(w http.ResponseWriter, r *http.Request, userID, boardID int64, rest []string) {
	if len(rest) == 0 {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		var card model.Card
		if err := decodeBody(r, &card); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		cardID, err := s.service.InsertCard(r.Context(), userID, boardID, card)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": cardID})
		return
	}

	cardID, err := parseID(rest[0])
	if err != nil {
		writeErr(w, err)
		return
	}
	rest = rest[1:]

	if len(rest) == 0 {
		switch r.Method {
		case http.MethodPatch:
			s.applyPatch(w, r, func(p patch.Patch) error {
				return s.service.PatchCard(r.Context(), userID, boardID, cardID, p)
			})
		case http.MethodDelete:
			if err := s.service.DeleteCard(r.Context(), userID, boardID, cardID); err != nil {
				writeErr(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	if rest[0] != "tasks" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	s.handleTasks(w, r, userID, boardID, cardID, rest[1:])
}

func (s *HTTPServer) handleTasks(w http.ResponseWriter, r *http.Request, userID, boardID, cardID int64, rest []string) {
	if len(rest) == 0 {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		var task model.Task
		if err := decodeBody(r, &task); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		taskID, err := s.service.InsertTask(r.Context(), userID, boardID, cardID, task)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": taskID})
		return
	}

	taskID, err := parseID(rest[0])
	if err != nil {
		writeErr(w, err)
		return
	}
	rest = rest[1:]

	if len(rest) == 0 {
		switch r.Method {
		case http.MethodPatch:
			s.applyPatch(w, r, func(p patch.Patch) error {
				return s.service.PatchTask(r.Context(), userID, boardID, cardID, taskID, p)
			})
		case http.MethodDelete:
			if err := s.service.DeleteTask(r.Context(), userID, boardID, cardID, taskID); err != nil {
				writeErr(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	switch rest[0] {
	case "timelines":
		if r.Method != http.MethodPut || len(rest) != 1 {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		var timelines model.Timelines
		if err := decodeBody(r, &timelines); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.SetTaskTimelines(r.Context(), userID, boardID, cardID, taskID, timelines); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	case "tags":
		s.handleTags(w, r, rest[1:], tagOps{
			add: func(tag model.Tag) (int64, error) {
				return s.service.AddTaskTag(r.Context(), userID, boardID, cardID, taskID, tag)
			},
			patch: func(tagID int64, p patch.Patch) error {
				return s.service.PatchTaskTag(r.Context(), userID, boardID, cardID, taskID, tagID, p)
			},
			del: func(tagID int64) error {
				return s.service.DeleteTaskTag(r.Context(), userID, boardID, cardID, taskID, tagID)
			},
		})
	case "subtasks":
		s.handleSubtasks(w, r, userID, boardID, cardID, taskID, rest[1:])
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleSubtasks(w http.ResponseWriter, r *http.Request, userID, boardID, cardID, taskID int64, rest []string) {
	if len(rest) == 0 {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		var subtask model.Subtask
		if err := decodeBody(r, &subtask); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		subtaskID, err := s.service.InsertSubtask(r.Context(), userID, boardID, cardID, taskID, subtask)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": subtaskID})
		return
	}

	subtaskID, err := parseID(rest[0])
	if err != nil {
		writeErr(w, err)
		return
	}
	rest = rest[1:]

	if len(rest) == 0 {
		switch r.Method {
		case http.MethodPatch:
			s.applyPatch(w, r, func(p patch.Patch) error {
				return s.service.PatchSubtask(r.Context(), userID, boardID, cardID, taskID, subtaskID, p)
			})
		case http.MethodDelete:
			if err := s.service.DeleteSubtask(r.Context(), userID, boardID, cardID, taskID, subtaskID); err != nil {
				writeErr(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	switch rest[0] {
	case "timelines":
		if r.Method != http.MethodPut || len(rest) != 1 {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		var timelines model.Timelines
		if err := decodeBody(r, &timelines); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.SetSubtaskTimelines(r.Context(), userID, boardID, cardID, taskID, subtaskID, timelines); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	case "tags":
		s.handleTags(w, r, rest[1:], tagOps{
			add: func(tag model.Tag) (int64, error) {
				return s.service.AddSubtaskTag(r.Context(), userID, boardID, cardID, taskID, subtaskID, tag)
			},
			patch: func(tagID int64, p patch.Patch) error {
				return s.service.PatchSubtaskTag(r.Context(), userID, boardID, cardID, taskID, subtaskID, tagID, p)
			},
			del: func(tagID int64) error {
				return s.service.DeleteSubtaskTag(r.Context(), userID, boardID, cardID, taskID, subtaskID, tagID)
			},
		})
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

// tagOps folds the task-level and subtask-level tag endpoints into one
// handler; only the service calls differ.
type tagOps struct {
	add   func(tag model.Tag) (int64, error)
	patch func(tagID int64, p patch.Patch) error
	del   func(tagID int64) error
}

func (s *HTTPServer) handleTags(w http.ResponseWriter, r *http.Request, rest []string, ops tagOps) {
	if len(rest) == 0 {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		var tag model.Tag
		if err := decodeBody(r, &tag); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		tagID, err := ops.add(tag)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": tagID})
		return
	}

	tagID, err := parseID(rest[0])
	if err != nil || len(rest) != 1 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	switch r.Method {
	case http.MethodPatch:
		s.applyPatch(w, r, func(p patch.Patch) error {
			return ops.patch(tagID, p)
		})
	case http.MethodDelete:
		if err := ops.del(tagID); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	}
}

func (s *HTTPServer) applyPatch(w http.ResponseWriter, r *http.Request, apply func(p patch.Patch) error) {
	var p patch.Patch
	if err := decodeBody(r, &p); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if err := apply(p); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// authenticate resolves the App-Token header to a user id, writing the
// failure response itself when the caller is not welcome.
func (s *HTTPServer) authenticate(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, secret, err := appToken(r)
	if err != nil {
		writeErr(w, err)
		return 0, false
	}
	if err := s.service.Authenticate(r.Context(), userID, secret); err != nil {
		writeErr(w, err)
		return 0, false
	}
	return userID, true
}

// appToken decodes the App-Token header: base64 over a JSON pair of
// user id and token secret.
func appToken(r *http.Request) (int64, string, error) {
	header := strings.TrimSpace(r.Header.Get("App-Token"))
	if header == "" {
		return 0, "", errUnauthorized()
	}
	raw, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return 0, "", errUnauthorized()
	}
	var credentials struct {
		ID    int64  `json:"id"`
		Token string `json:"token"`
	}
	if err := json.Unmarshal(raw, &credentials); err != nil || credentials.Token == "" {
		return 0, "", errUnauthorized()
	}
	return credentials.ID, credentials.Token, nil
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = util.NewID("req")
		}

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func setCORSHeaders(h http.Header, origin string) {
	if origin == "" {
		return
	}
	h.Set("Access-Control-Allow-Origin", origin)
	h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type, App-Token, Admin-Key, X-Request-ID")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func writeErr(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	writeError(w, status, code, message, details)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func parseID(segment string) (int64, error) {
	id, err := strconv.ParseInt(segment, 10, 64)
	if err != nil || id < 1 {
		return 0, errInvalidInput("malformed id in path")
	}
	return id, nil
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, store.ErrNotFound) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
