package handlers

import (
	"net/http"
	"time"

	"github.com/eventhon/eventhon/internal/models"
	"github.com/eventhon/eventhon/internal/service"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type EventHandlers struct {
	events *service.EventService
	loc    *time.Location
	logger *logrus.Logger
}

func NewEventHandlers(events *service.EventService, loc *time.Location, logger *logrus.Logger) *EventHandlers {
	if loc == nil {
		loc = time.Local
	}
	return &EventHandlers{events: events, loc: loc, logger: logger}
}

type EventRequest struct {
	Title             string   `json:"title"`
	Description       string   `json:"description"`
	Date              string   `json:"date"`
	Location          string   `json:"location"`
	MaxParticipants   int      `json:"max_participants"`
	Category          string   `json:"category"`
	PaymentType       string   `json:"payment_type"`
	EvaluationMarkers []string `json:"evaluation_markers"`
}

type RemoveParticipantRequest struct {
	UserID string `json:"user_id"`
	Reason string `json:"reason"`
}

func (h *EventHandlers) input(w http.ResponseWriter, r *http.Request) (models.EventInput, error) {
	var req EventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return models.EventInput{}, err
	}
	date, err := parseDate(req.Date, h.loc, "Event date")
	if err != nil {
		return models.EventInput{}, err
	}
	return models.EventInput{
		Title:             req.Title,
		Description:       req.Description,
		Date:              date,
		Location:          req.Location,
		MaxParticipants:   req.MaxParticipants,
		Category:          req.Category,
		PaymentType:       req.PaymentType,
		EvaluationMarkers: req.EvaluationMarkers,
	}, nil
}

func (h *EventHandlers) Create(w http.ResponseWriter, r *http.Request) {
	in, err := h.input(w, r)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	event, err := h.events.Create(r.Context(), claimsOf(r).UserID, in)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, event)
}

// List returns all events. The exclude_organizer query parameter hides the
// events of one organizer.
func (h *EventHandlers) List(w http.ResponseWriter, r *http.Request) {
	events, err := h.events.List(r.Context(), r.URL.Query().Get("exclude_organizer"))
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, events)
}

func (h *EventHandlers) Get(w http.ResponseWriter, r *http.Request) {
	event, err := h.events.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, event)
}

func (h *EventHandlers) ListByOrganizer(w http.ResponseWriter, r *http.Request) {
	events, err := h.events.ListByOrganizer(r.Context(), mux.Vars(r)["organizerId"])
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, events)
}

func (h *EventHandlers) ListMine(w http.ResponseWriter, r *http.Request) {
	events, err := h.events.ListByOrganizer(r.Context(), claimsOf(r).UserID)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, events)
}

func (h *EventHandlers) ListRegistered(w http.ResponseWriter, r *http.Request) {
	events, err := h.events.ListRegistered(r.Context(), claimsOf(r).UserID)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, events)
}

func (h *EventHandlers) Participants(w http.ResponseWriter, r *http.Request) {
	participants, err := h.events.Participants(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, participants)
}

func (h *EventHandlers) Update(w http.ResponseWriter, r *http.Request) {
	in, err := h.input(w, r)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	event, err := h.events.Update(r.Context(), mux.Vars(r)["id"], claimsOf(r).UserID, in)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, event)
}

func (h *EventHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.events.DeleteOwned(r.Context(), mux.Vars(r)["id"], claimsOf(r).UserID); err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithMessage(w, http.StatusOK, "Event deleted successfully")
}

func (h *EventHandlers) AdminDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.events.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithMessage(w, http.StatusOK, "Event deleted successfully")
}

func (h *EventHandlers) Register(w http.ResponseWriter, r *http.Request) {
	if err := h.events.Register(r.Context(), mux.Vars(r)["id"], claimsOf(r).UserID); err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithMessage(w, http.StatusOK, "Registered successfully")
}

func (h *EventHandlers) CancelRegistration(w http.ResponseWriter, r *http.Request) {
	if err := h.events.CancelRegistration(r.Context(), mux.Vars(r)["id"], claimsOf(r).UserID); err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithMessage(w, http.StatusOK, "Registration cancelled successfully")
}

func (h *EventHandlers) RemoveParticipant(w http.ResponseWriter, r *http.Request) {
	var req RemoveParticipantRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	if req.UserID == "" {
		respondWithError(w, h.logger, models.InvalidInput("user_id is required"))
		return
	}

	if err := h.events.RemoveParticipant(r.Context(), mux.Vars(r)["id"], claimsOf(r).UserID, req.UserID, req.Reason); err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithMessage(w, http.StatusOK, "Participant removed successfully")
}
