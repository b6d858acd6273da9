// internal/handler/locker.go
package handler

import (
	"net/http"
	"strconv"

	"github.com/dangerclosesec/lockity/internal/access"
	"github.com/dangerclosesec/lockity/internal/domain"
	"github.com/dangerclosesec/lockity/internal/model"
	"github.com/dangerclosesec/lockity/internal/service"
)

type LockerHandler struct {
	grants   *service.GrantManager
	lockers  *service.LockerService
	resolver *access.Resolver
}

func NewLockerHandler(grants *service.GrantManager, lockers *service.LockerService, resolver *access.Resolver) *LockerHandler {
	return &LockerHandler{grants: grants, lockers: lockers, resolver: resolver}
}

// List pages through the caller's lockers. Optional query parameters:
// organization_id, role and show_schedules.
func (h *LockerHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	page, ok := pageQuery(w, r)
	if !ok {
		return
	}
	orgID, ok := intQuery(w, r, "organization_id")
	if !ok {
		return
	}
	if orgID < 0 {
		handleError(w, r, domain.ErrInvalidNumber)
		return
	}

	q := r.URL.Query()
	res, err := h.lockers.ListLockers(r.Context(), service.ListLockersInput{
		ActorID:        userID,
		OrganizationID: uint(orgID),
		Role:           q.Get("role"),
		ShowSchedules:  q.Get("show_schedules") == "true",
		PageRequest:    page,
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondWithData(w, http.StatusOK, "Lockers retrieved", res)
}

// Compartments pages through a locker's compartments and who holds each.
func (h *LockerHandler) Compartments(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	lockerID, ok := idParam(w, r, "lockerID")
	if !ok {
		return
	}
	page, ok := pageQuery(w, r)
	if !ok {
		return
	}

	res, err := h.lockers.ListCompartments(r.Context(), service.ListCompartmentsInput{
		ActorID:     userID,
		LockerID:    lockerID,
		Role:        r.URL.Query().Get("role"),
		PageRequest: page,
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondWithData(w, http.StatusOK, "Compartments retrieved", res)
}

type RoleResponse struct {
	LockerID uint       `json:"locker_id"`
	UserID   uint       `json:"user_id"`
	Role     model.Role `json:"role"`
}

// Role returns the caller's role on a locker.
func (h *LockerHandler) Role(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	lockerID, ok := idParam(w, r, "lockerID")
	if !ok {
		return
	}

	role, has, err := h.resolver.RoleOf(r.Context(), lockerID, userID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if !has {
		handleError(w, r, domain.ErrAccessNotFound)
		return
	}
	respondWithData(w, http.StatusOK, "", RoleResponse{LockerID: lockerID, UserID: userID, Role: role})
}

// AssignUser grants a user, by email, access to one compartment.
func (h *LockerHandler) AssignUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	lockerID, ok := idParam(w, r, "lockerID")
	if !ok {
		return
	}
	number, ok := numberParam(w, r, "compartmentNumber")
	if !ok {
		return
	}

	var in service.AssignInput
	if !decode(w, r, &in) {
		return
	}
	in.ActorID = userID
	in.LockerID = lockerID
	in.CompartmentNumber = number

	res, err := h.grants.AssignUserToCompartment(r.Context(), in)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if !res.Created {
		respondWithData(w, http.StatusOK, "User already has access to that compartment", res)
		return
	}
	respondWithData(w, http.StatusCreated, "User assigned to compartment", res)
}

type compartmentStatusRequest struct {
	Status model.CompartmentStatus `json:"status"`
}

// UpdateCompartmentStatus records a compartment's state.
func (h *LockerHandler) UpdateCompartmentStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	lockerID, ok := idParam(w, r, "lockerID")
	if !ok {
		return
	}
	number, ok := numberParam(w, r, "compartmentNumber")
	if !ok {
		return
	}

	var req compartmentStatusRequest
	if !decode(w, r, &req) {
		return
	}

	c, err := h.grants.UpdateCompartmentStatus(r.Context(), userID, lockerID, number, req.Status)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondWithData(w, http.StatusOK, "Compartment status updated", c)
}

// RemoveUser revokes a user's access to one compartment, selected with the
// compartment query parameter, or to the whole locker.
func (h *LockerHandler) RemoveUser(w http.ResponseWriter, r *http.Request) {
	actorID, ok := currentUser(w, r)
	if !ok {
		return
	}
	lockerID, ok := idParam(w, r, "lockerID")
	if !ok {
		return
	}
	targetID, ok := idParam(w, r, "userID")
	if !ok {
		return
	}

	in := service.RemoveInput{ActorID: actorID, LockerID: lockerID, UserID: targetID}
	if raw := r.URL.Query().Get("compartment"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			handleError(w, r, domain.InvalidFields("invalid compartment", map[string]string{"compartment": "must be an integer"}))
			return
		}
		in.CompartmentNumber = &n
	}

	res, err := h.grants.RemoveUserAccess(r.Context(), in)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondWithData(w, http.StatusOK, res.Description, res)
}
