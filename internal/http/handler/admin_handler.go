package handler

import (
	"net/http"
	"strconv"

	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/http/response"
	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/repository"
	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/service"
)

type AdminHandler struct {
	auth *service.AuthService
	errs *AuthHandler
}

func NewAdminHandler(auth *service.AuthService, authHandler *AuthHandler) *AdminHandler {
	return &AdminHandler{auth: auth, errs: authHandler}
}

func (h *AdminHandler) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.auth.Roles().ListRoles(r.Context())
	if err != nil {
		h.errs.writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, roles)
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	result, err := h.auth.GetAllUsers(r.Context(), repository.PageRequest{Page: page, PageSize: size})
	if err != nil {
		h.errs.writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, result)
}
