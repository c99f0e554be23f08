package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"syncpad/internal/middleware"
	"syncpad/internal/models"
	"syncpad/internal/repository"
	"syncpad/internal/services/collaboration"

	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"
)

// Handler handles HTTP requests for the document directory and auth
// scaffolding. Real-time traffic goes over the WebSocket instead.
type Handler struct {
	docRepo   *repository.DocumentRepositoryImpl // Concrete type for now
	userRepo  *repository.UserRepositoryImpl
	engine    SyncEngine  // Interface defined in this package!
	tokens    TokenIssuer // Interface defined in this package!
	wsHandler *collaboration.WebSocketHandler
}

func NewHandler(
	docRepo *repository.DocumentRepositoryImpl,
	userRepo *repository.UserRepositoryImpl,
	engine SyncEngine, // Accept interface
	tokens TokenIssuer,
	wsHandler *collaboration.WebSocketHandler,
) *Handler {
	return &Handler{
		docRepo:   docRepo,
		userRepo:  userRepo,
		engine:    engine,
		tokens:    tokens,
		wsHandler: wsHandler,
	}
}

// Auth handlers

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if req.Username == "" || req.Email == "" || len(req.Password) < 8 {
		http.Error(w, "username, email and a password of at least 8 characters are required", http.StatusBadRequest)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, "failed to hash password", http.StatusInternalServerError)
		return
	}

	user := &models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
	}
	if err := h.userRepo.Create(r.Context(), user); err != nil {
		middleware.AddSpanError(r.Context(), err)
		http.Error(w, "failed to create user", http.StatusConflict)
		return
	}

	token, err := h.tokens.Issue(user)
	if err != nil {
		http.Error(w, "failed to issue token", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, &authResponse{Token: token, User: user})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := h.userRepo.GetByEmail(r.Context(), req.Email)
	if err != nil {
		http.Error(w, "Authentication error", http.StatusUnauthorized)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		http.Error(w, "Authentication error", http.StatusUnauthorized)
		return
	}

	token, err := h.tokens.Issue(user)
	if err != nil {
		http.Error(w, "failed to issue token", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, &authResponse{Token: token, User: user})
}

// Document directory handlers

func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	documents, err := h.docRepo.ListDocumentsForUser(r.Context(), user.ID)
	if err != nil {
		middleware.AddSpanError(r.Context(), err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"documents": documents,
	})
}

func (h *Handler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	var create models.DocumentCreate
	if err := json.NewDecoder(r.Body).Decode(&create); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if create.Title == "" {
		create.Title = "Untitled Document"
	}

	doc, err := h.docRepo.Create(r.Context(), &create, user.ID)
	if err != nil {
		middleware.AddSpanError(r.Context(), err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, doc)
}

func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	id := mux.Vars(r)["id"]

	doc, ok := h.loadAuthorized(w, r, id, user, false)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

func (h *Handler) UpdateDocument(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	id := mux.Vars(r)["id"]

	if _, ok := h.loadAuthorized(w, r, id, user, false); !ok {
		return
	}

	var update models.DocumentUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	updated, err := h.docRepo.UpdateMeta(r.Context(), id, &update)
	if err != nil {
		middleware.AddSpanError(r.Context(), err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// A manual content save replaces the shadow and notifies the room.
	// Intentionally no version snapshot here.
	if update.Content != nil {
		h.engine.RefreshShadow(r.Context(), user, id, *update.Content)
	}

	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	id := mux.Vars(r)["id"]

	if _, ok := h.loadAuthorized(w, r, id, user, true); !ok {
		return
	}

	if err := h.docRepo.Delete(r.Context(), id); err != nil {
		middleware.AddSpanError(r.Context(), err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Collaborator handlers

type collaboratorRequest struct {
	UserID string `json:"userId"`
}

func (h *Handler) AddCollaborator(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	id := mux.Vars(r)["id"]

	if _, ok := h.loadAuthorized(w, r, id, user, true); !ok {
		return
	}

	var req collaboratorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if _, err := h.userRepo.GetByID(r.Context(), req.UserID); err != nil {
		http.Error(w, "user not found", http.StatusNotFound)
		return
	}

	doc, err := h.docRepo.AddCollaborator(r.Context(), id, req.UserID)
	if err != nil {
		middleware.AddSpanError(r.Context(), err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

func (h *Handler) RemoveCollaborator(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	vars := mux.Vars(r)
	id := vars["id"]

	if _, ok := h.loadAuthorized(w, r, id, user, true); !ok {
		return
	}

	doc, err := h.docRepo.RemoveCollaborator(r.Context(), id, vars["userId"])
	if err != nil {
		middleware.AddSpanError(r.Context(), err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

// Version handlers

func (h *Handler) ListVersions(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	id := mux.Vars(r)["id"]

	if _, ok := h.loadAuthorized(w, r, id, user, false); !ok {
		return
	}

	versions, err := h.docRepo.GetVersions(r.Context(), id)
	if err != nil {
		middleware.AddSpanError(r.Context(), err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"versions": versions,
	})
}

func (h *Handler) RevertDocument(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	vars := mux.Vars(r)
	id := vars["id"]

	index, err := strconv.Atoi(vars["versionIndex"])
	if err != nil {
		http.Error(w, "invalid version index", http.StatusBadRequest)
		return
	}

	doc, err := h.engine.Revert(r.Context(), user, id, index)
	if err != nil {
		middleware.AddSpanError(r.Context(), err)
		writeSyncError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

// loadAuthorized fetches the document and enforces access: owner-only when
// ownerOnly, owner-or-collaborator otherwise. Writes the HTTP error itself
// and returns ok=false on any failure.
func (h *Handler) loadAuthorized(w http.ResponseWriter, r *http.Request, id string, user *models.UserInfo, ownerOnly bool) (*models.Document, bool) {
	doc, err := h.docRepo.GetDocument(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, "document not found", http.StatusNotFound)
		} else {
			middleware.AddSpanError(r.Context(), err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return nil, false
	}

	if ownerOnly && !doc.IsOwner(user.ID) {
		http.Error(w, "only the owner may do this", http.StatusForbidden)
		return nil, false
	}
	if !ownerOnly && !doc.CanAccess(user.ID) {
		http.Error(w, "not an owner or collaborator", http.StatusForbidden)
		return nil, false
	}

	return doc, true
}

// writeSyncError maps engine error kinds onto HTTP statuses
func writeSyncError(w http.ResponseWriter, err error) {
	var serr *models.SyncError
	if !errors.As(err, &serr) {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	status := http.StatusInternalServerError
	switch serr.Kind {
	case models.ErrNotFound:
		status = http.StatusNotFound
	case models.ErrForbidden:
		status = http.StatusForbidden
	case models.ErrAuth:
		status = http.StatusUnauthorized
	case models.ErrPatchFailed:
		status = http.StatusConflict
	}
	http.Error(w, serr.Detail, status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
