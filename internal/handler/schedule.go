// internal/handler/schedule.go
package handler

import (
	"net/http"

	"github.com/dangerclosesec/lockity/internal/service"
)

type ScheduleHandler struct {
	service *service.ScheduleService
}

func NewScheduleHandler(service *service.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{service: service}
}

func (h *ScheduleHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	lockerID, ok := idParam(w, r, "lockerID")
	if !ok {
		return
	}

	schedules, err := h.service.ListSchedules(r.Context(), userID, lockerID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondWithData(w, http.StatusOK, "", schedules)
}

func (h *ScheduleHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	lockerID, ok := idParam(w, r, "lockerID")
	if !ok {
		return
	}
	var in service.CreateScheduleInput
	if !decode(w, r, &in) {
		return
	}
	in.ActorID = userID
	in.LockerID = lockerID

	schedule, err := h.service.ValidateAndCreateSchedule(r.Context(), in)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondWithData(w, http.StatusCreated, "Schedule created", schedule)
}

// Update applies a partial update; omitted fields keep their value.
func (h *ScheduleHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	lockerID, ok := idParam(w, r, "lockerID")
	if !ok {
		return
	}
	scheduleID, ok := idParam(w, r, "scheduleID")
	if !ok {
		return
	}
	var in service.UpdateScheduleInput
	if !decode(w, r, &in) {
		return
	}
	in.ActorID = userID
	in.LockerID = lockerID
	in.ScheduleID = scheduleID

	schedule, err := h.service.ValidateAndUpdateSchedule(r.Context(), in)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondWithData(w, http.StatusOK, "Schedule updated", schedule)
}
