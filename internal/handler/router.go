// internal/handler/router.go
package handler

import (
	"github.com/dangerclosesec/lockity/internal/auth"
	"github.com/dangerclosesec/lockity/internal/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

type Handlers struct {
	Organizations *OrganizationHandler
	Lockers       *LockerHandler
	Schedules     *ScheduleHandler
	Devices       *DeviceHandler
}

// Routes builds the /api subtree. Device endpoints under /iot authenticate
// with the device key; everything else requires a user token.
func (h *Handlers) Routes(tokens *auth.TokenManager, deviceKey string) chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.AllowContentType("application/json"))

	r.Group(func(r chi.Router) {
		r.Use(middleware.DeviceKeyMiddleware(deviceKey))
		r.Post("/iot/logs", h.Devices.IngestLogs)
		r.Get("/iot/lockers/{serialNumber}/config", h.Devices.Config)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(tokens))

		r.Get("/organizations", h.Organizations.ListOrganizations)
		r.Post("/organizations", h.Organizations.CreateOrganization)
		r.Put("/organizations/{organizationID}", h.Organizations.UpdateOrganization)
		r.Get("/organizations/{organizationID}/areas", h.Organizations.ListAreas)
		r.Post("/organizations/{organizationID}/areas", h.Organizations.CreateArea)
		r.Get("/organizations/{organizationID}/users", h.Organizations.ListMembers)

		r.Get("/lockers", h.Lockers.List)

		r.Route("/lockers/{lockerID}", func(r chi.Router) {
			r.Get("/role", h.Lockers.Role)
			r.Get("/compartments", h.Lockers.Compartments)
			r.Put("/area", h.Organizations.MoveLocker)
			r.Post("/compartments/{compartmentNumber}/users", h.Lockers.AssignUser)
			r.Patch("/compartments/{compartmentNumber}/status", h.Lockers.UpdateCompartmentStatus)
			r.Delete("/users/{userID}", h.Lockers.RemoveUser)

			r.Get("/schedules", h.Schedules.List)
			r.Post("/schedules", h.Schedules.Create)
			r.Put("/schedules/{scheduleID}", h.Schedules.Update)
		})

		r.Post("/devices/tokens", h.Devices.RegisterToken)
		r.Delete("/devices/tokens", h.Devices.RemoveToken)
	})

	return r
}
