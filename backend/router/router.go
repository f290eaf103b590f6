package router

import (
	"net/http"

	"github.com/moonseeker1/agent-manage/backend/app/controllers"
	"github.com/moonseeker1/agent-manage/backend/app/middleware"
)

// NewRouter wires the REST surface. Fetch, result, progress and activity
// endpoints are deliberately unauthenticated: they are called by the polling
// agents themselves. Everything mutating issued by operators requires admin.
func NewRouter(
	authCtrl *controllers.AuthController,
	adminCtrl *controllers.AdminController,
	agentCtrl *controllers.AgentController,
	cmdCtrl *controllers.CommandController,
	actCtrl *controllers.ActivityController,
	mw *middleware.Auth,
) http.Handler {
	mux := http.NewServeMux()

	// public
	mux.HandleFunc("POST /login", authCtrl.Login)

	// admin
	mux.Handle("POST /admin/users", mw.RequireAdmin(http.HandlerFunc(adminCtrl.CreateUser)))

	// agents
	mux.Handle("GET /agents", mw.RequireAuth(http.HandlerFunc(agentCtrl.List)))
	mux.Handle("POST /agents", mw.RequireAdmin(http.HandlerFunc(agentCtrl.Create)))
	mux.Handle("GET /agents/{id}", mw.RequireAuth(http.HandlerFunc(agentCtrl.Get)))
	mux.Handle("PUT /agents/{id}", mw.RequireAdmin(http.HandlerFunc(agentCtrl.Update)))
	mux.Handle("DELETE /agents/{id}", mw.RequireAdmin(http.HandlerFunc(agentCtrl.Delete)))
	mux.Handle("POST /agents/{id}/enable", mw.RequireAdmin(http.HandlerFunc(agentCtrl.Enable)))
	mux.Handle("POST /agents/{id}/disable", mw.RequireAdmin(http.HandlerFunc(agentCtrl.Disable)))

	// command dispatch: enqueue is admin, fetch is the agent poll
	mux.Handle("POST /agents/{id}/commands", mw.RequireAdmin(http.HandlerFunc(cmdCtrl.Create)))
	mux.HandleFunc("GET /agents/{id}/commands", cmdCtrl.Fetch)

	// agent callbacks
	mux.HandleFunc("POST /commands/{id}/result", cmdCtrl.SubmitResult)
	mux.HandleFunc("POST /commands/{id}/progress", cmdCtrl.ReportProgress)
	mux.HandleFunc("POST /agents/{id}/activities", actCtrl.Post)

	// command history and operator actions
	mux.Handle("GET /commands", mw.RequireAuth(http.HandlerFunc(cmdCtrl.List)))
	mux.Handle("GET /commands/stats/summary", mw.RequireAuth(http.HandlerFunc(cmdCtrl.Stats)))
	mux.Handle("GET /commands/{id}", mw.RequireAuth(http.HandlerFunc(cmdCtrl.Get)))
	mux.Handle("GET /commands/{id}/status", mw.RequireAuth(http.HandlerFunc(cmdCtrl.Status)))
	mux.Handle("POST /commands/{id}/retry", mw.RequireAdmin(http.HandlerFunc(cmdCtrl.Retry)))
	mux.Handle("POST /commands/{id}/cancel", mw.RequireAdmin(http.HandlerFunc(cmdCtrl.Cancel)))
	mux.Handle("GET /agents/{id}/activities", mw.RequireAuth(http.HandlerFunc(actCtrl.GetRecent)))

	return middleware.Logging(mux)
}
