package handlers

import (
	"net/http"
	"time"

	"github.com/eventhon/eventhon/internal/models"
	"github.com/eventhon/eventhon/internal/service"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type ScholarshipHandlers struct {
	scholarships *service.ScholarshipService
	loc          *time.Location
	logger       *logrus.Logger
}

func NewScholarshipHandlers(scholarships *service.ScholarshipService, loc *time.Location, logger *logrus.Logger) *ScholarshipHandlers {
	if loc == nil {
		loc = time.Local
	}
	return &ScholarshipHandlers{scholarships: scholarships, loc: loc, logger: logger}
}

type ScholarshipRequest struct {
	Title         string   `json:"title"`
	Degrees       []string `json:"degrees"`
	Courses       []string `json:"courses"`
	Nationalities []string `json:"nationalities"`
	Funding       string   `json:"funding"`
	Deadline      string   `json:"deadline"`
}

func (h *ScholarshipHandlers) input(w http.ResponseWriter, r *http.Request) (models.ScholarshipInput, error) {
	var req ScholarshipRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return models.ScholarshipInput{}, err
	}
	deadline, err := parseDate(req.Deadline, h.loc, "Scholarship deadline")
	if err != nil {
		return models.ScholarshipInput{}, err
	}
	return models.ScholarshipInput{
		Title:         req.Title,
		Degrees:       req.Degrees,
		Courses:       req.Courses,
		Nationalities: req.Nationalities,
		Funding:       req.Funding,
		Deadline:      deadline,
	}, nil
}

func (h *ScholarshipHandlers) Create(w http.ResponseWriter, r *http.Request) {
	in, err := h.input(w, r)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	scholarship, err := h.scholarships.Create(r.Context(), claimsOf(r).UserID, in)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, scholarship)
}

func (h *ScholarshipHandlers) List(w http.ResponseWriter, r *http.Request) {
	scholarships, err := h.scholarships.List(r.Context())
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, scholarships)
}

func (h *ScholarshipHandlers) Get(w http.ResponseWriter, r *http.Request) {
	scholarship, err := h.scholarships.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, scholarship)
}

func (h *ScholarshipHandlers) ListByOrganizer(w http.ResponseWriter, r *http.Request) {
	scholarships, err := h.scholarships.ListByOrganizer(r.Context(), mux.Vars(r)["organizerId"])
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, scholarships)
}

func (h *ScholarshipHandlers) ListMine(w http.ResponseWriter, r *http.Request) {
	scholarships, err := h.scholarships.ListByOrganizer(r.Context(), claimsOf(r).UserID)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, scholarships)
}

func (h *ScholarshipHandlers) ListRegistered(w http.ResponseWriter, r *http.Request) {
	scholarships, err := h.scholarships.ListRegistered(r.Context(), claimsOf(r).UserID)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, scholarships)
}

func (h *ScholarshipHandlers) Participants(w http.ResponseWriter, r *http.Request) {
	participants, err := h.scholarships.Participants(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, participants)
}

func (h *ScholarshipHandlers) Update(w http.ResponseWriter, r *http.Request) {
	in, err := h.input(w, r)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	scholarship, err := h.scholarships.Update(r.Context(), mux.Vars(r)["id"], claimsOf(r).UserID, in)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, scholarship)
}

func (h *ScholarshipHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.scholarships.DeleteOwned(r.Context(), mux.Vars(r)["id"], claimsOf(r).UserID); err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithMessage(w, http.StatusOK, "Scholarship deleted successfully")
}

func (h *ScholarshipHandlers) AdminDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.scholarships.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithMessage(w, http.StatusOK, "Scholarship deleted successfully")
}

func (h *ScholarshipHandlers) Register(w http.ResponseWriter, r *http.Request) {
	if err := h.scholarships.Register(r.Context(), mux.Vars(r)["id"], claimsOf(r).UserID); err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithMessage(w, http.StatusOK, "Registered successfully")
}

func (h *ScholarshipHandlers) CancelRegistration(w http.ResponseWriter, r *http.Request) {
	if err := h.scholarships.CancelRegistration(r.Context(), mux.Vars(r)["id"], claimsOf(r).UserID); err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithMessage(w, http.StatusOK, "Registration cancelled successfully")
}

func (h *ScholarshipHandlers) RemoveParticipant(w http.ResponseWriter, r *http.Request) {
	var req RemoveParticipantRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	if req.UserID == "" {
		respondWithError(w, h.logger, models.InvalidInput("user_id is required"))
		return
	}

	if err := h.scholarships.RemoveParticipant(r.Context(), mux.Vars(r)["id"], claimsOf(r).UserID, req.UserID); err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithMessage(w, http.StatusOK, "Participant removed successfully")
}
