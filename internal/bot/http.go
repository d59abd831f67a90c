package bot

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"eventbot/internal/models"
	"eventbot/internal/storage"
)

// initData older than this is rejected
const initDataMaxAge = 24 * time.Hour

type ctxKey int

const userIDKey ctxKey = iota

// HTTPServer handles HTTP requests for the Mini App
type HTTPServer struct {
	bot         *Bot
	webhookMode bool // If false (polling mode), skip authentication for easier local dev
}

// NewHTTPServer creates a new HTTP server for the Mini App
func NewHTTPServer(bot *Bot, webhookMode bool) *HTTPServer {
	return &HTTPServer{
		bot:         bot,
		webhookMode: webhookMode,
	}
}

// RegisterRoutes registers Mini App routes on the provided mux
func (hs *HTTPServer) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/events", hs.authMiddleware(hs.handleEvents))
	// Participant data is never served without initData, whatever the mode
	mux.HandleFunc("/api/registrations", hs.requireAuth(hs.handleRegistrations))
}

// validateTelegramInitData checks the Mini App initData signature and returns the user ID
func (hs *HTTPServer) validateTelegramInitData(initData string) (int64, error) {
	if initData == "" {
		return 0, errors.New("missing initData")
	}

	values, err := url.ParseQuery(initData)
	if err != nil {
		return 0, fmt.Errorf("invalid initData format: %w", err)
	}

	hash := values.Get("hash")
	if hash == "" {
		return 0, errors.New("missing hash in initData")
	}
	values.Del("hash")

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var dataCheckString strings.Builder
	for i, k := range keys {
		if i > 0 {
			dataCheckString.WriteByte('\n')
		}
		dataCheckString.WriteString(k)
		dataCheckString.WriteByte('=')
		dataCheckString.WriteString(values.Get(k))
	}

	secretKey := hmac.New(sha256.New, []byte("WebAppData"))
	secretKey.Write([]byte(hs.bot.token))
	secret := secretKey.Sum(nil)

	h := hmac.New(sha256.New, secret)
	h.Write([]byte(dataCheckString.String()))
	expected := hex.EncodeToString(h.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(hash)) {
		return 0, errors.New("invalid hash")
	}

	authDate, err := strconv.ParseInt(values.Get("auth_date"), 10, 64)
	if err != nil {
		return 0, errors.New("missing or invalid auth_date")
	}
	if hs.bot.now().Sub(time.Unix(authDate, 0)) > initDataMaxAge {
		return 0, errors.New("initData is too old")
	}

	userStr := values.Get("user")
	if userStr == "" {
		return 0, errors.New("missing user data")
	}
	var userData struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal([]byte(userStr), &userData); err != nil {
		return 0, fmt.Errorf("invalid user data: %w", err)
	}
	if userData.ID == 0 {
		return 0, errors.New("missing user id")
	}

	return userData.ID, nil
}

// authMiddleware validates Telegram Mini App authentication.
// In polling mode (webhookMode=false), authentication is skipped for easier local development.
func (hs *HTTPServer) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !hs.webhookMode {
			hs.bot.logger.Debug("Skipping authentication (polling mode)",
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
			)
			next(w, r)
			return
		}
		hs.requireAuth(next)(w, r)
	}
}

// requireAuth validates Telegram Mini App authentication in every mode
func (hs *HTTPServer) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "tma ") {
			hs.bot.logger.Warn("Missing or invalid authorization header", zap.String("path", r.URL.Path))
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		userID, err := hs.validateTelegramInitData(strings.TrimPrefix(authHeader, "tma "))
		if err != nil {
			hs.bot.logger.Warn("Failed to validate initData",
				zap.Error(err),
				zap.String("remote_addr", r.RemoteAddr),
			)
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		hs.bot.logger.Debug("Authenticated request",
			zap.Int64("user_id", userID),
			zap.String("path", r.URL.Path),
		)
		next(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
	}
}

// requestAdmin reports whether the authenticated user may use admin endpoints
func (hs *HTTPServer) requestAdmin(r *http.Request) bool {
	userID, ok := r.Context().Value(userIDKey).(int64)
	if !ok {
		return false
	}
	return hs.bot.isAdmin(userID)
}

type eventResponse struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	Location      string `json:"location,omitempty"`
	Coordinates   string `json:"coordinates,omitempty"`
	MinLevel      string `json:"min_level,omitempty"`
	Published     bool   `json:"published"`
	Registrations int    `json:"registrations"`
}

type registrationResponse struct {
	UserID          int64     `json:"user_id"`
	ShortName       string    `json:"short_name"`
	Drives          int       `json:"drives"`
	SafetyEquipment string    `json:"safety_equipment"`
	CarDetails      string    `json:"car_details"`
	RegisteredAt    time.Time `json:"registered_at"`
}

// handleEvents returns the upcoming published events
func (hs *HTTPServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	events, err := hs.bot.db.ListUpcomingEvents(r.Context(), hs.bot.now())
	if err != nil {
		hs.bot.logger.Error("Failed to list events", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to fetch events")
		return
	}

	resp := make([]eventResponse, 0, len(events))
	for _, e := range events {
		count, err := hs.bot.db.CountRegistrations(r.Context(), e.ID)
		if err != nil {
			hs.bot.logger.Error("Failed to count registrations", zap.Error(err), zap.Int64("event_id", e.ID))
			writeError(w, http.StatusInternalServerError, "Failed to fetch events")
			return
		}
		resp = append(resp, newEventResponse(e, count))
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleRegistrations returns the participants of an event. Admin only.
func (hs *HTTPServer) handleRegistrations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !hs.requestAdmin(r) {
		writeError(w, http.StatusForbidden, "Forbidden")
		return
	}

	ref := r.URL.Query().Get("event")
	if ref == "" {
		writeError(w, http.StatusBadRequest, "Missing event parameter")
		return
	}

	event, err := storage.LookupEvent(r.Context(), hs.bot.db, ref)
	if errors.Is(err, models.ErrEventNotFound) {
		writeError(w, http.StatusNotFound, "Event not found")
		return
	}
	if err != nil {
		hs.bot.logger.Error("Failed to look up event", zap.Error(err), zap.String("ref", ref))
		writeError(w, http.StatusInternalServerError, "Failed to fetch event")
		return
	}

	regs, err := hs.bot.db.ListRegistrations(r.Context(), event.ID)
	if err != nil {
		hs.bot.logger.Error("Failed to list registrations", zap.Error(err), zap.Int64("event_id", event.ID))
		writeError(w, http.StatusInternalServerError, "Failed to fetch registrations")
		return
	}

	list := make([]registrationResponse, 0, len(regs))
	for _, reg := range regs {
		list = append(list, registrationResponse{
			UserID:          reg.UserID,
			ShortName:       reg.ShortName,
			Drives:          reg.Drives,
			SafetyEquipment: reg.SafetyEquipment,
			CarDetails:      reg.CarDetails,
			RegisteredAt:    reg.RegisteredAt,
		})
	}

	writeJSON(w, http.StatusOK, struct {
		Event         eventResponse          `json:"event"`
		Registrations []registrationResponse `json:"registrations"`
	}{
		Event:         newEventResponse(*event, len(list)),
		Registrations: list,
	})
}

func newEventResponse(e models.Event, registrations int) eventResponse {
	return eventResponse{
		ID:            e.ID,
		Name:          e.Name,
		Date:          e.DateString(),
		Time:          e.Time,
		Location:      e.LocationName,
		Coordinates:   e.Coordinates.String(),
		MinLevel:      e.MinLevel,
		Published:     e.Published,
		Registrations: registrations,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
