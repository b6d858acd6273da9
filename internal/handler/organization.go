// internal/handler/organization.go
package handler

import (
	"net/http"

	"github.com/dangerclosesec/lockity/internal/service"
)

type OrganizationHandler struct {
	service *service.OrganizationService
}

func NewOrganizationHandler(service *service.OrganizationService) *OrganizationHandler {
	return &OrganizationHandler{service: service}
}

// CreateOrganization creates an organization around a first locker.
func (h *OrganizationHandler) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var in service.CreateOrganizationInput
	if !decode(w, r, &in) {
		return
	}
	in.ActorID = userID

	res, err := h.service.CreateOrganization(r.Context(), in)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondWithData(w, http.StatusCreated, "Organization created", res)
}

func (h *OrganizationHandler) CreateArea(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	orgID, ok := idParam(w, r, "organizationID")
	if !ok {
		return
	}
	var in service.CreateAreaInput
	if !decode(w, r, &in) {
		return
	}
	in.ActorID = userID
	in.OrganizationID = orgID

	area, err := h.service.CreateArea(r.Context(), in)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondWithData(w, http.StatusCreated, "Area created", area)
}

// MoveLocker relinks a locker to another area.
func (h *OrganizationHandler) MoveLocker(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	lockerID, ok := idParam(w, r, "lockerID")
	if !ok {
		return
	}
	var in service.MoveLockerInput
	if !decode(w, r, &in) {
		return
	}
	in.ActorID = userID
	in.LockerID = lockerID

	locker, err := h.service.MoveLocker(r.Context(), in)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondWithData(w, http.StatusOK, "Locker moved", locker)
}

func (h *OrganizationHandler) ListOrganizations(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	page, ok := pageQuery(w, r)
	if !ok {
		return
	}

	res, err := h.service.ListOrganizations(r.Context(), userID, page)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondWithData(w, http.StatusOK, "Organizations retrieved", res)
}

func (h *OrganizationHandler) UpdateOrganization(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	orgID, ok := idParam(w, r, "organizationID")
	if !ok {
		return
	}
	var in service.UpdateOrganizationInput
	if !decode(w, r, &in) {
		return
	}
	in.ActorID = userID
	in.OrganizationID = orgID

	org, err := h.service.UpdateOrganization(r.Context(), in)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondWithData(w, http.StatusOK, "Organization updated", org)
}

func (h *OrganizationHandler) ListAreas(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	orgID, ok := idParam(w, r, "organizationID")
	if !ok {
		return
	}

	areas, err := h.service.ListAreas(r.Context(), userID, orgID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondWithData(w, http.StatusOK, "Areas retrieved", areas)
}

// ListMembers pages through the users with a role in the organization,
// optionally filtered with the role query parameter.
func (h *OrganizationHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	orgID, ok := idParam(w, r, "organizationID")
	if !ok {
		return
	}
	page, ok := pageQuery(w, r)
	if !ok {
		return
	}

	role := r.URL.Query().Get("role")
	res, err := h.service.ListMembers(r.Context(), service.ListMembersInput{
		ActorID:        userID,
		OrganizationID: orgID,
		Role:           role,
		PageRequest:    page,
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	message := "Users retrieved"
	if role != "" {
		message = "Users with role " + role + " retrieved"
	}
	respondWithData(w, http.StatusOK, message, res)
}
