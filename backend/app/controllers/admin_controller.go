package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/moonseeker1/agent-manage/backend/app/services"
)

type AdminController struct{ Users *services.UserService }

func NewAdminController(users *services.UserService) *AdminController {
	return &AdminController{Users: users}
}

type createUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (c *AdminController) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password required")
		return
	}
	if err := c.Users.CreateUser(req.Username, req.Password, req.Role); err != nil {
		writeError(w, http.StatusInternalServerError, "create user failed")
		return
	}
	w.WriteHeader(http.StatusCreated)
}
