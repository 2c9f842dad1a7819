// internal/offers/handler.go
package offers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Routes mounts the offers API on a new router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/members", h.handleRegisterMember)
	r.Get("/members/{memberID}", h.handleGetMember)
	r.Post("/members/{memberID}/offers", h.handleAssignOffer)
	r.Post("/offer-types", h.handleDefineOfferType)
	return r
}

func (h *Handler) handleAssignOffer(w http.ResponseWriter, r *http.Request) {
	memberID, err := uuid.Parse(chi.URLParam(r, "memberID"))
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "invalid member ID", err.Error())
		return
	}

	var req struct {
		OfferTypeID uuid.UUID `json:"offer_type_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	offer, err := h.service.AssignOffer(r.Context(), memberID, req.OfferTypeID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, offer)
}

func (h *Handler) handleGetMember(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "memberID"))
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "invalid member ID", err.Error())
		return
	}

	member, err := h.service.GetMember(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, member)
}

func (h *Handler) handleRegisterMember(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Email     string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	member, err := h.service.RegisterMember(r.Context(), req.FirstName, req.LastName, req.Email)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, member)
}

func (h *Handler) handleDefineOfferType(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name           string         `json:"name"`
		ExpirationType ExpirationType `json:"expiration_type"`
		DaysValid      int            `json:"days_valid"`
		BeginDate      string         `json:"begin_date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	var beginDate *time.Time
	if req.BeginDate != "" {
		d, err := time.Parse(time.DateOnly, req.BeginDate)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "invalid begin_date", "expected YYYY-MM-DD")
			return
		}
		beginDate = &d
	}

	offerType, err := h.service.DefineOfferType(r.Context(), req.Name, req.ExpirationType, req.DaysValid, beginDate)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, offerType)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
