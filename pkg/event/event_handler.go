package event

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/calbot/calbot/internal/rest"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

type EventDTO struct {
	ID             int64   `json:"id"`
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	StartTime      string  `json:"start_time"`
	EndTime        string  `json:"end_time"`
	TelegramUserId *string `json:"telegram_user_id"`
}

// OwnerID accepts a chat identity encoded either as a JSON string or a JSON number.
type OwnerID struct {
	Value *string
}

func (o *OwnerID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		o.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		o.Value = &s
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.New("telegram_user_id must be a string or a number")
	}
	s = n.String()
	o.Value = &s
	return nil
}

type CreateEventRequest struct {
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	StartTime      string  `json:"start_time"`
	EndTime        string  `json:"end_time"`
	TelegramUserId OwnerID `json:"telegram_user_id" swaggertype:"string"`
}

type UpdateEventRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	StartTime   *string `json:"start_time"`
	EndTime     *string `json:"end_time"`
}

type EventHandler struct {
	eventService EventService
	queryService QueryService
	location     *time.Location
}

func NewEventHandler(eventService EventService, queryService QueryService, location *time.Location) *EventHandler {
	if location == nil {
		location = time.Local
	}
	return &EventHandler{eventService: eventService, queryService: queryService, location: location}
}

// List godoc
// @Summary List events
// @Description Lists events, optionally limited to those starting at or after start and ending at or before end
// @Tags Event
// @Produce json
// @Param start query string false "Earliest start time (ISO 8601)"
// @Param end query string false "Latest end time (ISO 8601)"
// @Success 200 {array} EventDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid time range"
// @Router /api/events [get]
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	log.Trace("Listing events")

	filter, ok := h.filterFromQuery(w, r)
	if !ok {
		return
	}

	events, err := h.queryService.List(r.Context(), filter)
	if err != nil {
		rest.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	response := make([]EventDTO, 0, len(events))
	for _, e := range events {
		response = append(response, h.eventToDTO(e))
	}
	rest.WriteJSON(w, http.StatusOK, response)
}

// Create godoc
// @Summary Create an event
// @Tags Event
// @Accept json
// @Produce json
// @Param event body CreateEventRequest true "Event"
// @Success 201 {object} EventDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid request"
// @Router /api/events [post]
func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	log.Debug("Creating event")

	var request CreateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		rest.WriteErrorDetails(w, http.StatusBadRequest, "Invalid request body format", err.Error())
		return
	}
	log.Tracef("Create event request: %+v", request)

	newEvent := NewEvent{
		Title:       request.Title,
		Description: request.Description,
		Owner:       request.TelegramUserId.Value,
	}
	var err error
	if request.StartTime != "" {
		if newEvent.StartTime, err = rest.ParseTimestamp(request.StartTime, h.location); err != nil {
			rest.WriteError(w, http.StatusBadRequest, "Invalid start_time format")
			return
		}
	}
	if request.EndTime != "" {
		if newEvent.EndTime, err = rest.ParseTimestamp(request.EndTime, h.location); err != nil {
			rest.WriteError(w, http.StatusBadRequest, "Invalid end_time format")
			return
		}
	}

	created, err := h.eventService.Create(r.Context(), newEvent)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusCreated, h.eventToDTO(created))
}

// Get godoc
// @Summary Get an event
// @Tags Event
// @Produce json
// @Param id path int true "Event ID"
// @Success 200 {object} EventDTO
// @Failure 404 {object} rest.ErrorResponse "Event not found"
// @Router /api/events/{id} [get]
func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := eventIdFromPath(w, r)
	if !ok {
		return
	}
	log.Tracef("Getting event %d", id)

	event, err := h.eventService.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, h.eventToDTO(event))
}

// Update godoc
// @Summary Update an event
// @Description Changes only the fields present in the request body
// @Tags Event
// @Accept json
// @Produce json
// @Param id path int true "Event ID"
// @Param event body UpdateEventRequest true "Fields to change"
// @Success 200 {object} EventDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid request"
// @Failure 404 {object} rest.ErrorResponse "Event not found"
// @Router /api/events/{id} [put]
func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := eventIdFromPath(w, r)
	if !ok {
		return
	}
	log.Debugf("Updating event %d", id)

	var request UpdateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		rest.WriteErrorDetails(w, http.StatusBadRequest, "Invalid request body format", err.Error())
		return
	}

	patch := Patch{Title: request.Title, Description: request.Description}
	if request.StartTime != nil {
		startTime, err := rest.ParseTimestamp(*request.StartTime, h.location)
		if err != nil {
			rest.WriteError(w, http.StatusBadRequest, "Invalid start_time format")
			return
		}
		patch.StartTime = &startTime
	}
	if request.EndTime != nil {
		endTime, err := rest.ParseTimestamp(*request.EndTime, h.location)
		if err != nil {
			rest.WriteError(w, http.StatusBadRequest, "Invalid end_time format")
			return
		}
		patch.EndTime = &endTime
	}

	updated, err := h.eventService.Update(r.Context(), id, patch)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, h.eventToDTO(updated))
}

// Delete godoc
// @Summary Delete an event
// @Tags Event
// @Produce json
// @Param id path int true "Event ID"
// @Success 200 {object} rest.MessageResponse
// @Failure 404 {object} rest.ErrorResponse "Event not found"
// @Router /api/events/{id} [delete]
func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := eventIdFromPath(w, r)
	if !ok {
		return
	}
	log.Debugf("Deleting event %d", id)

	if err := h.eventService.Delete(r.Context(), id); err != nil {
		h.writeServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, rest.MessageResponse{Message: "Event deleted successfully"})
}

// ExportICS godoc
// @Summary Export events as iCalendar
// @Tags Event
// @Produce text/calendar
// @Param start query string false "Earliest start time (ISO 8601)"
// @Param end query string false "Latest end time (ISO 8601)"
// @Success 200 {string} string "VCALENDAR document"
// @Failure 400 {object} rest.ErrorResponse "Invalid time range"
// @Router /api/events.ics [get]
func (h *EventHandler) ExportICS(w http.ResponseWriter, r *http.Request) {
	log.Trace("Exporting events as iCalendar")

	filter, ok := h.filterFromQuery(w, r)
	if !ok {
		return
	}
	filter.OrderByStart = true

	events, err := h.queryService.List(r.Context(), filter)
	if err != nil {
		rest.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="events.ics"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(ToICalendar(events, time.Now()))); err != nil {
		log.Errorf("failed to write calendar: %v", err)
	}
}

func (h *EventHandler) filterFromQuery(w http.ResponseWriter, r *http.Request) (Filter, bool) {
	var filter Filter
	if value := r.URL.Query().Get("start"); value != "" {
		start, err := rest.ParseTimestamp(value, h.location)
		if err != nil {
			rest.WriteErrorDetails(w, http.StatusBadRequest, "Invalid start format", "Use ISO 8601, e.g. 2024-05-01T10:00:00Z")
			return Filter{}, false
		}
		filter.Start = &start
	}
	if value := r.URL.Query().Get("end"); value != "" {
		end, err := rest.ParseTimestamp(value, h.location)
		if err != nil {
			rest.WriteErrorDetails(w, http.StatusBadRequest, "Invalid end format", "Use ISO 8601, e.g. 2024-05-01T18:00:00Z")
			return Filter{}, false
		}
		filter.End = &end
	}
	return filter, true
}

func (h *EventHandler) writeServiceError(w http.ResponseWriter, err error) {
	var validationErr *ValidationError
	switch {
	case errors.As(err, &validationErr):
		rest.WriteError(w, http.StatusBadRequest, validationErr.Message)
	case errors.Is(err, ErrEventNotFound):
		rest.WriteError(w, http.StatusNotFound, "Event not found")
	default:
		log.Errorf("event request failed: %v", err)
		rest.WriteError(w, http.StatusInternalServerError, err.Error())
	}
}

func eventIdFromPath(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if errors.Is(err, strconv.ErrRange) {
		// no stored event can carry an id beyond int64
		rest.WriteError(w, http.StatusNotFound, "Event not found")
		return 0, false
	}
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid event id")
		return 0, false
	}
	return id, true
}

func (h *EventHandler) eventToDTO(e Event) EventDTO {
	return EventDTO{
		ID:             e.ID,
		Title:          e.Title,
		Description:    e.Description,
		StartTime:      e.StartTime.In(h.location).Format(time.RFC3339),
		EndTime:        e.EndTime.In(h.location).Format(time.RFC3339),
		TelegramUserId: e.Owner,
	}
}
