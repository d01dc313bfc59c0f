package handler

import (
	"net/http"
)

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	h.successResponse(w, r, "ok", map[string]string{"environment": h.config.Environment})
}

func (h *Handler) GetAllPackages(w http.ResponseWriter, r *http.Request) {
	packages, err := h.repository.GetAllPackages()
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "packages fetched", packages)
}

func (h *Handler) GetAllLocations(w http.ResponseWriter, r *http.Request) {
	locations, err := h.repository.GetAllLocations()
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "locations fetched", locations)
}

func (h *Handler) GetAllProfiles(w http.ResponseWriter, r *http.Request) {
	base := h.config.DefaultRunParameters()

	profiles := make(map[string]any, len(h.profiles.Names())+1)
	profiles["default"] = base
	for _, name := range h.profiles.Names() {
		p, err := h.profiles.Resolve(name, base)
		if err != nil {
			h.internalServerError(w, r, err)
			return
		}
		profiles[name] = p
	}

	h.successResponse(w, r, "profiles fetched", profiles)
}
