package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"lawtutor/internal/app"
	"lawtutor/internal/domain"
	"lawtutor/internal/extract"
	"lawtutor/internal/ratelimit"
	"lawtutor/internal/sharelink"
	"lawtutor/internal/store"
	"lawtutor/internal/util"
)

// DefaultUserID identifies requests that carry no user_uid parameter.
// The frontend always sends one; this keeps curl sessions working.
const DefaultUserID = "demo-user"

// Config wires required dependencies for the HTTP server.
type Config struct {
	App                    *app.App
	RedisAddr              string
	RedisPassword          string
	ChatRateLimitPerMinute int
}

// Server exposes HTTP endpoints for the tutoring backend.
type Server struct {
	app         *app.App
	mux         *http.ServeMux
	chatLimiter *ratelimit.FixedWindowLimiter
}

// New constructs the server with routes configured. The chat rate limiter
// is only active when Redis is configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, fmt.Errorf("app is required")
	}
	s := &Server{
		app: cfg.App,
		mux: http.NewServeMux(),
	}
	if cfg.RedisAddr != "" {
		limit := cfg.ChatRateLimitPerMinute
		if limit <= 0 {
			limit = 30
		}
		limiter, err := ratelimit.NewRedisFixedWindowLimiter(
			cfg.RedisAddr, cfg.RedisPassword, "lawtutor:ratelimit:chat", limit, time.Minute)
		if err != nil {
			return nil, fmt.Errorf("init chat limiter: %w", err)
		}
		s.chatLimiter = limiter
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler with middleware applied.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("tutord",
		util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// chat management
	s.mux.HandleFunc("/api/chats", s.handleChats)
	s.mux.HandleFunc("/api/chats/", s.handleChatByID)

	// conversation
	s.mux.HandleFunc("/api/chat", s.handleSendMessage)
	s.mux.HandleFunc("/api/chat/edit-regenerate", s.handleEditMessage)

	// bookmarks
	s.mux.HandleFunc("/api/bookmarks", s.handleBookmarks)
	s.mux.HandleFunc("/api/bookmarks/search", s.handleBookmarkSearch)
	s.mux.HandleFunc("/api/bookmarks/", s.handleBookmarkByID)

	// uploads & files
	s.mux.HandleFunc("/api/upload", s.handleUpload)
	s.mux.HandleFunc("/api/uploads", s.handleUploads)
	s.mux.HandleFunc("/api/uploads/", s.handleUploadByID)
	s.mux.HandleFunc("/api/files/", s.handleFileByID)

	// extras
	s.mux.HandleFunc("/api/history", s.handleHistory)
	s.mux.HandleFunc("/api/chapters", s.handleChapters)
	s.mux.HandleFunc("/api/voice", s.handleVoice)
	s.mux.HandleFunc("/api/share/", s.handleShareResolve)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// userID resolves the acting user from the user_uid query parameter.
func userID(r *http.Request) string {
	uid := strings.TrimSpace(r.URL.Query().Get("user_uid"))
	if uid == "" {
		return DefaultUserID
	}
	return uid
}

func (s *Server) handleChats(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		chats, err := s.app.ListChats(userID(r))
		if err != nil {
			s.writeAppError(w, r, "list chats", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"chats": chats, "total": len(chats)})
	case http.MethodPost:
		var req struct {
			ChatName string `json:"chatName"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		chat, err := s.app.CreateChat(userID(r), req.ChatName)
		if err != nil {
			s.writeAppError(w, r, "create chat", err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"success": true,
			"chat_id": chat.ID,
			"message": "Chat created",
		})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleChatByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/chats/")
	if rest == "" {
		writeError(w, http.StatusNotFound, "chat id required")
		return
	}
	chatID, action, _ := strings.Cut(rest, "/")

	switch {
	case action == "" && r.Method == http.MethodGet:
		chat, msgs, err := s.app.GetChatWithMessages(userID(r), chatID)
		if err != nil {
			s.writeAppError(w, r, "get chat", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success":  true,
			"chat":     chat,
			"messages": msgs,
		})
	case action == "" && r.Method == http.MethodDelete:
		if err := s.app.DeleteChat(userID(r), chatID); err != nil {
			s.writeAppError(w, r, "delete chat", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	case action == "rename" && r.Method == http.MethodPut:
		var req struct {
			NewName string `json:"newName"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if err := s.app.RenameChat(userID(r), chatID, req.NewName); err != nil {
			s.writeAppError(w, r, "rename chat", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "newName": strings.TrimSpace(req.NewName)})
	case action == "share" && r.Method == http.MethodPost:
		token, err := s.app.CreateShareLink(userID(r), chatID)
		if err != nil {
			s.writeAppError(w, r, "create share link", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"token": token,
			"url":   "/api/share/" + token,
		})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	uid := userID(r)
	if !s.allowChat(w, r, uid) {
		return
	}
	var req struct {
		ChatID  string              `json:"chatId"`
		Message string              `json:"message"`
		Chapter string              `json:"chapter"`
		Files   []domain.StagedFile `json:"attachedFiles"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	res, err := s.app.SendMessage(r.Context(), uid, app.SendMessageRequest{
		ChatID:      req.ChatID,
		Message:     req.Message,
		Chapter:     req.Chapter,
		StagedFiles: req.Files,
	})
	if err != nil {
		s.writeAppError(w, r, "send message", err)
		return
	}
	payload := map[string]any{
		"reply":                 res.Reply,
		"timestamp":             res.Timestamp,
		"chapter":               res.Chapter,
		"chatId":                res.ChatID,
		"userMessageId":         res.UserMessageID,
		"aiMessageId":           res.AIMessageID,
		"structuredFileContent": res.StructuredContent,
	}
	if res.ChatRenamed {
		payload["chatRenamed"] = true
		payload["newChatName"] = res.NewChatName
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleEditMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	uid := userID(r)
	if !s.allowChat(w, r, uid) {
		return
	}
	var req struct {
		ChatID    string `json:"chatId"`
		MessageID string `json:"userMessageId"`
		NewText   string `json:"newMessage"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ChatID == "" || req.MessageID == "" {
		writeError(w, http.StatusBadRequest, "chatId and userMessageId are required")
		return
	}
	res, err := s.app.EditRegenerate(r.Context(), uid, req.ChatID, req.MessageID, req.NewText)
	if err != nil {
		s.writeAppError(w, r, "edit message", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"reply":             res.Reply,
		"timestamp":         res.Timestamp,
		"aiMessageId":       res.AIMessageID,
		"replacesMessageId": res.ReplacesMessageID,
	})
}

func (s *Server) handleBookmarks(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	switch r.Method {
	case http.MethodGet:
		bms, err := s.app.ListBookmarks(uid)
		if err != nil {
			s.writeAppError(w, r, "list bookmarks", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"bookmarks": bms, "total": len(bms)})
	case http.MethodPost:
		var req domain.Bookmark
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		saved, err := s.app.SaveBookmark(uid, req)
		if err != nil {
			s.writeAppError(w, r, "save bookmark", err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"success": true, "bookmark_id": saved.ID, "bookmark": saved})
	case http.MethodDelete:
		if err := s.app.ClearBookmarks(uid); err != nil {
			s.writeAppError(w, r, "clear bookmarks", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleBookmarkSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	bms, err := s.app.SearchBookmarks(userID(r), r.URL.Query().Get("q"))
	if err != nil {
		s.writeAppError(w, r, "search bookmarks", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookmarks": bms, "total": len(bms)})
}

func (s *Server) handleBookmarkByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/bookmarks/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "bookmark id required")
		return
	}
	if r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}
	if err := s.app.DeleteBookmark(userID(r), id); err != nil {
		s.writeAppError(w, r, "delete bookmark", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.app.MaxUploadBytes()+1024)
	if err := r.ParseMultipartForm(s.app.MaxUploadBytes()); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required (field: file)")
		return
	}
	defer file.Close()

	upload, err := s.app.ProcessUpload(r.Context(), userID(r),
		header.Filename, header.Header.Get("Content-Type"), file, r.FormValue("chapter"))
	if err != nil {
		s.writeAppError(w, r, "process upload", err)
		return
	}
	upload.ExtractedText = extract.Preview(upload.ExtractedText)
	writeJSON(w, http.StatusCreated, map[string]any{
		"success":   true,
		"upload_id": upload.ID,
		"filename":  upload.FileName,
		"upload":    upload,
	})
}

func (s *Server) handleUploads(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	uploads, err := s.app.ListUploads(userID(r))
	if err != nil {
		s.writeAppError(w, r, "list uploads", err)
		return
	}
	for i := range uploads {
		uploads[i].ExtractedText = extract.Preview(uploads[i].ExtractedText)
	}
	writeJSON(w, http.StatusOK, map[string]any{"uploads": uploads, "total": len(uploads)})
}

func (s *Server) handleUploadByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/uploads/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "upload id required")
		return
	}
	switch r.Method {
	case http.MethodGet:
		upload, err := s.app.GetUpload(userID(r), id)
		if err != nil {
			s.writeAppError(w, r, "get upload", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"upload": upload})
	case http.MethodDelete:
		if err := s.app.DeleteUpload(r.Context(), userID(r), id); err != nil {
			s.writeAppError(w, r, "delete upload", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleFileByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/files/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "file id required")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	upload, rc, err := s.app.OpenUpload(r.Context(), userID(r), id)
	if err != nil {
		s.writeAppError(w, r, "open file", err)
		return
	}
	defer rc.Close()
	w.Header().Set("Content-Disposition", `inline; filename="`+upload.FileName+`"`)
	w.Header().Set("Content-Type", "application/octet-stream")
	if _, err := io.Copy(w, rc); err != nil {
		slog.Warn("file stream interrupted", "uploadId", id, "error", err)
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	switch r.Method {
	case http.MethodGet:
		msgs, err := s.app.History(uid)
		if err != nil {
			s.writeAppError(w, r, "history", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"messages": msgs, "total": len(msgs)})
	case http.MethodDelete:
		if err := s.app.ClearHistory(uid); err != nil {
			s.writeAppError(w, r, "clear history", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleChapters(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"chapters": app.Chapters})
}

func (s *Server) handleVoice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.app.MaxUploadBytes()+1024)
	if err := r.ParseMultipartForm(s.app.MaxUploadBytes()); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	file, header, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "audio is required (field: audio)")
		return
	}
	defer file.Close()

	text, err := s.app.TranscribeAudio(r.Context(), header.Filename, file)
	if err != nil {
		s.writeAppError(w, r, "transcribe audio", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

func (s *Server) handleShareResolve(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.URL.Path, "/api/share/")
	if token == "" {
		writeError(w, http.StatusNotFound, "share token required")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	chat, msgs, err := s.app.ResolveShareLink(token)
	if err != nil {
		s.writeAppError(w, r, "resolve share link", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"chat": chat, "messages": msgs})
}

// allowChat enforces the chat rate limit when configured.
func (s *Server) allowChat(w http.ResponseWriter, r *http.Request, uid string) bool {
	if s.chatLimiter == nil {
		return true
	}
	if !s.chatLimiter.Allow(uid) {
		s.audit(r, "chat_rate_limited", "denied", "userId", uid)
		writeError(w, http.StatusTooManyRequests, "too many requests")
		return false
	}
	return true
}

func (s *Server) writeAppError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var ve app.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Msg)
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, sharelink.ErrInvalidToken):
		writeError(w, http.StatusNotFound, "invalid share link")
	default:
		slog.Error(op+" failed", "path", r.URL.Path, "requestId", util.RequestIDFromRequest(r), "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"clientIp", util.ClientIP(r),
		"requestId", util.RequestIDFromRequest(r),
	}
	logAttrs = append(logAttrs, attrs...)
	slog.Warn("security_event", logAttrs...)
}

func decodeJSON(r *http.Request, out any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(out)
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
