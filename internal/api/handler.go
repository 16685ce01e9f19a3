package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"pharmadesk/m/domain"
	"pharmadesk/m/internal/engine"
)

type ctxKey string

const (
	ctxUserID ctxKey = "userID"
	ctxRole   ctxKey = "role"
)

// Handler bundles dependencies for HTTP handlers.
type Handler struct {
	db     *sqlx.DB
	engine *engine.Engine
	secret string
}

// New constructs a Handler.
func New(db *sqlx.DB, secret string) *Handler {
	return &Handler{db: db, engine: engine.New(db), secret: secret}
}

// Router wires up the HTTP API.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/api/health", h.health)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.register)
		r.Post("/login", h.login)
	})

	r.Group(func(pr chi.Router) {
		pr.Use(h.authMiddleware)

		pr.Get("/medications", h.searchMedications)
		pr.Get("/medications/{id}", h.getMedication)

		pr.Route("/prescriptions", func(r chi.Router) {
			r.Post("/", h.createPrescription)
			r.Get("/validate", h.validatePrescription)
			r.Post("/fulfill", h.fulfillPrescription)
		})

		pr.Post("/inventory/restock", h.restock)
		pr.Post("/transactions", h.postTransaction)

		pr.Get("/reports/financials", h.financialsReport)
		pr.Get("/users/{id}/debt", h.userDebt)
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Authentication helpers

type authClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

func (h *Handler) generateToken(userID, role string) (string, error) {
	claims := authClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.secret))
}

func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			respondError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		tokenString := strings.TrimSpace(header[len("Bearer "):])
		token, err := jwt.ParseWithClaims(tokenString, &authClaims{}, func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwt.SigningMethodHS256 {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(h.secret), nil
		})
		if err != nil || !token.Valid {
			respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		claims, ok := token.Claims.(*authClaims)
		if !ok {
			respondError(w, http.StatusUnauthorized, "invalid token claims")
			return
		}
		ctx := context.WithValue(r.Context(), ctxUserID, claims.UserID)
		ctx = context.WithValue(ctx, ctxRole, claims.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) requireRole(w http.ResponseWriter, r *http.Request, allowed ...string) bool {
	role := r.Context().Value(ctxRole)
	if role == nil {
		respondError(w, http.StatusUnauthorized, "missing role")
		return false
	}
	current := role.(string)
	for _, allowedRole := range allowed {
		if current == allowedRole {
			return true
		}
	}
	respondError(w, http.StatusForbidden, "insufficient permissions")
	return false
}

// Auth handlers

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == "" || req.Email == "" || req.Password == "" || req.Role == "" {
		respondError(w, http.StatusBadRequest, "name, email, password and role are required")
		return
	}
	if req.Role != domain.RoleCustomer && req.Role != domain.RoleManager && req.Role != domain.RoleDoctor {
		respondError(w, http.StatusBadRequest, "role must be customer, manager or doctor")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to secure password")
		return
	}

	userID := uuid.NewString()
	_, err = h.db.Exec(`INSERT INTO users (id, name, email, password, role, debt) VALUES (?, ?, ?, ?, ?, 0)`,
		userID, req.Name, strings.ToLower(req.Email), hashed, req.Role)
	if err != nil {
		respondError(w, http.StatusConflict, "email already exists")
		return
	}

	token, err := h.generateToken(userID, req.Role)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to generate token")
		return
	}

	respondJSON(w, http.StatusCreated, authResponse{Token: token, User: domain.User{
		ID:    userID,
		Name:  req.Name,
		Email: strings.ToLower(req.Email),
		Role:  req.Role,
	}})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var user domain.User
	err := h.db.Get(&user, `SELECT id, name, email, password, role, debt FROM users WHERE email = ?`, strings.ToLower(req.Email))
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := h.generateToken(user.ID, user.Role)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to generate token")
		return
	}

	user.Password = ""
	respondJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}

// Medication catalog

func (h *Handler) searchMedications(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	var medications []domain.Medication
	var err error
	if query == "" {
		err = h.db.Select(&medications, `SELECT * FROM medications ORDER BY name LIMIT 25`)
	} else {
		like := "%" + query + "%"
		err = h.db.Select(&medications, `SELECT * FROM medications WHERE name LIKE ? OR active_ingredient LIKE ? ORDER BY name LIMIT 25`, like, like)
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to search medications")
		return
	}
	respondJSON(w, http.StatusOK, medications)
}

func (h *Handler) getMedication(w http.ResponseWriter, r *http.Request) {
	var med domain.Medication
	err := h.db.Get(&med, `SELECT * FROM medications WHERE id = ?`, chi.URLParam(r, "id"))
	if errors.Is(err, sql.ErrNoRows) {
		respondError(w, http.StatusNotFound, "medication not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to fetch medication")
		return
	}
	respondJSON(w, http.StatusOK, med)
}

// Prescription handlers

type prescriptionItemRequest struct {
	MedID   string `json:"med_id"`
	Periods int64  `json:"periods"`
}

type prescriptionRequest struct {
	UserID string                    `json:"user_id"`
	Items  []prescriptionItemRequest `json:"items"`
}

func (h *Handler) createPrescription(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleDoctor) {
		return
	}
	var req prescriptionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.UserID == "" || len(req.Items) == 0 {
		respondError(w, http.StatusBadRequest, "user_id and at least one item are required")
		return
	}
	for _, item := range req.Items {
		if item.MedID == "" || item.Periods <= 0 {
			respondError(w, http.StatusBadRequest, "med_id and positive periods are required for each item")
			return
		}
	}

	var exists int
	if err := h.db.Get(&exists, `SELECT 1 FROM users WHERE id = ?`, req.UserID); err != nil {
		respondError(w, http.StatusNotFound, "user not found")
		return
	}

	doctorID := r.Context().Value(ctxUserID).(string)
	prescriptionID := uuid.NewString()

	tx, err := h.db.Beginx()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to start prescription")
		return
	}
	defer tx.Rollback()

	issued := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.Exec(`INSERT INTO prescriptions (id, user_id, doctor_id, issued_date, is_active) VALUES (?, ?, ?, ?, 1)`,
		prescriptionID, req.UserID, doctorID, issued); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to create prescription")
		return
	}
	itemIDs := make([]string, 0, len(req.Items))
	for _, item := range req.Items {
		itemID := uuid.NewString()
		if _, err := tx.Exec(`INSERT INTO prescription_items (id, prescription_id, med_id, initial_periods, remaining_periods) VALUES (?, ?, ?, ?, ?)`,
			itemID, prescriptionID, item.MedID, item.Periods, item.Periods); err != nil {
			respondError(w, http.StatusInternalServerError, "unable to create prescription items")
			return
		}
		itemIDs = append(itemIDs, itemID)
	}

	if err := tx.Commit(); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to finalize prescription")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"prescription_id": prescriptionID,
		"item_ids":        itemIDs,
	})
}

func (h *Handler) validatePrescription(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	medID := strings.TrimSpace(r.URL.Query().Get("med_id"))
	qty, err := strconv.ParseInt(r.URL.Query().Get("qty"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "qty must be an integer")
		return
	}

	itemID, err := h.engine.ValidateFulfillment(r.Context(), userID, medID, qty)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"item_id": itemID, "requested_qty": qty})
}

type fulfillRequest struct {
	UserID string `json:"user_id"`
	MedID  string `json:"med_id"`
	Qty    int64  `json:"qty"`
}

func (h *Handler) fulfillPrescription(w http.ResponseWriter, r *http.Request) {
	var req fulfillRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.engine.FulfillPrescription(r.Context(), req.UserID, req.MedID, req.Qty); err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "fulfilled", "quantity": req.Qty})
}

// Inventory handlers

type restockRequest struct {
	MedID string `json:"med_id"`
	Qty   int64  `json:"qty"`
}

func (h *Handler) restock(w http.ResponseWriter, r *http.Request) {
	var req restockRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	// The engine enforces the manager role itself; the shell only supplies
	// the authenticated actor.
	actorID := r.Context().Value(ctxUserID).(string)
	if err := h.engine.ProcessRestock(r.Context(), actorID, req.MedID, req.Qty); err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "restocked", "quantity": req.Qty})
}

// Ledger handlers

type transactionRequest struct {
	UserID string  `json:"user_id"`
	Amount float64 `json:"amount"`
}

func (h *Handler) postTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.engine.ProcessTransaction(r.Context(), req.UserID, req.Amount); err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "processed", "amount": req.Amount})
}

// Reports

func (h *Handler) financialsReport(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleManager) {
		return
	}
	var fin domain.Financials
	if err := h.db.Get(&fin, `SELECT id, total_budget, total_revenue FROM pharmacy_financials WHERE id = 1`); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to fetch financials")
		return
	}
	respondJSON(w, http.StatusOK, fin)
}

func (h *Handler) userDebt(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	var debt float64
	err := h.db.Get(&debt, `SELECT debt FROM users WHERE id = ?`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		respondError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to fetch debt")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"user_id": userID, "debt": debt})
}

// Helpers

// respondEngineError maps the engine's error kinds onto HTTP statuses.
func respondEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, engine.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, engine.ErrUnauthorized):
		respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, engine.ErrRuleViolation):
		respondError(w, http.StatusConflict, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeJSON(r *http.Request, dest interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	_ = encoder.Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
