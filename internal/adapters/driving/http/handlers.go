package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/swaggo/swag"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driving"

	_ "github.com/custodia-labs/syncbridge/internal/adapters/driving/http/docs" // registers the OpenAPI document
)

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string            `json:"status" example:"ok"`
	Checks map[string]string `json:"checks,omitempty"`
}

// VersionResponse represents the API version response
// @Description API version response
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
}

// UpdateScheduleStatusRequest toggles a schedule
// @Description Schedule status change
type UpdateScheduleStatusRequest struct {
	Enabled bool `json:"enabled"`
}

// SyncInventoryRequest scopes an on-demand sync
// @Description On-demand inventory sync options
type SyncInventoryRequest struct {
	RequestID string                 `json:"request_id,omitempty"`
	Filters   domain.ScheduleFilters `json:"filters"`
}

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Description  Returns the health status of the API
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Pings the database and cache. Returns 503 when any check fails.
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Failure      503  {object}  StatusResponse
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{Status: "ready", Checks: make(map[string]string, len(s.svc.Checks))}
	code := http.StatusOK
	for name, p := range s.svc.Checks {
		if err := p.Ping(r.Context()); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "unavailable"
			code = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	writeJSON(w, code, resp)
}

// handleVersion godoc
// @Summary      Get API version
// @Description  Returns the current API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  VersionResponse
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{Version: s.version})
}

func (s *Server) handleSwaggerDoc(w http.ResponseWriter, r *http.Request) {
	doc, err := swag.ReadDoc()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "api documentation unavailable")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(doc))
}

// Provider and connection endpoints

// handleListProviders godoc
// @Summary      List providers
// @Description  Lists providers with platform credentials configured
// @Tags         Providers
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  domain.Result{data=[]domain.ProviderInfo}
// @Router       /providers [get]
func (s *Server) handleListProviders(w http.ResponseWriter, r *http.Request) {
	writeOK(w, http.StatusOK, "", s.svc.Connections.Providers(r.Context()))
}

// handleListConnections godoc
// @Summary      List connections
// @Description  Lists the caller's provider connections. Secrets are never returned.
// @Tags         Connections
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  domain.Result{data=[]domain.Connection}
// @Router       /connections [get]
func (s *Server) handleListConnections(w http.ResponseWriter, r *http.Request) {
	conns, err := s.svc.Connections.List(r.Context(), actor(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "", conns)
}

// handleCreateConnection godoc
// @Summary      Connect a provider
// @Tags         Connections
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      driving.CreateConnectionRequest  true  "Connection credentials"
// @Success      201      {object}  domain.Result{data=domain.Connection}
// @Failure      400      {object}  domain.Result
// @Failure      404      {object}  domain.Result  "Unknown provider"
// @Router       /connections [post]
func (s *Server) handleCreateConnection(w http.ResponseWriter, r *http.Request) {
	var req driving.CreateConnectionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	conn, err := s.svc.Connections.Create(r.Context(), actor(r), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, "connection created", conn)
}

// handleDeleteConnection godoc
// @Summary      Disconnect a provider
// @Tags         Connections
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Connection ID"
// @Success      200  {object}  domain.Result
// @Failure      404  {object}  domain.Result
// @Router       /connections/{id} [delete]
func (s *Server) handleDeleteConnection(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Connections.Delete(r.Context(), actor(r), r.PathValue("id")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "connection deleted", nil)
}

// Schedule endpoints

// handleListSchedules godoc
// @Summary      List schedules
// @Tags         Schedules
// @Produce      json
// @Security     BearerAuth
// @Param        provider  query     string  false  "Filter by provider"
// @Param        status    query     string  false  "Filter by status"  Enums(active, paused, error)
// @Success      200       {object}  domain.Result{data=[]domain.Schedule}
// @Router       /schedules [get]
func (s *Server) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.ScheduleFilter{
		Provider: q.Get("provider"),
		Status:   domain.ScheduleStatus(q.Get("status")),
	}
	list, err := s.svc.Schedules.ListSchedules(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "", list)
}

// handleCreateSchedule godoc
// @Summary      Create schedule
// @Description  Creates a recurring inventory sync. Frequency accepts ISO-8601 durations, cron expressions or named intervals.
// @Tags         Schedules
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      domain.CreateScheduleRequest  true  "Schedule"
// @Success      201      {object}  domain.Result{data=domain.Schedule}
// @Failure      400      {object}  domain.Result  "Invalid frequency or input"
// @Failure      403      {object}  domain.Result
// @Router       /schedules [post]
func (s *Server) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateScheduleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sched, err := s.svc.Schedules.CreateSchedule(r.Context(), req, actor(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, "schedule created", sched)
}

// handleGetSchedule godoc
// @Summary      Get schedule
// @Tags         Schedules
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Schedule ID"
// @Success      200  {object}  domain.Result{data=domain.Schedule}
// @Failure      404  {object}  domain.Result
// @Router       /schedules/{id} [get]
func (s *Server) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	sched, err := s.svc.Schedules.GetSchedule(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "", sched)
}

// handleUpdateScheduleStatus godoc
// @Summary      Enable or disable schedule
// @Tags         Schedules
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                       true  "Schedule ID"
// @Param        request  body      UpdateScheduleStatusRequest  true  "Status"
// @Success      200      {object}  domain.Result{data=domain.Schedule}
// @Failure      404      {object}  domain.Result
// @Router       /schedules/{id}/status [put]
func (s *Server) handleUpdateScheduleStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateScheduleStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sched, err := s.svc.Schedules.UpdateScheduleStatus(r.Context(), r.PathValue("id"), req.Enabled, actor(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	msg := "schedule disabled"
	if req.Enabled {
		msg = "schedule enabled"
	}
	writeOK(w, http.StatusOK, msg, sched)
}

// handleDeleteSchedule godoc
// @Summary      Delete schedule
// @Tags         Schedules
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Schedule ID"
// @Success      200  {object}  domain.Result
// @Failure      404  {object}  domain.Result
// @Router       /schedules/{id} [delete]
func (s *Server) handleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Schedules.DeleteSchedule(r.Context(), r.PathValue("id")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "schedule deleted", nil)
}

// handleRunSchedule godoc
// @Summary      Run schedule now
// @Description  Fires the schedule once. A disabled schedule is a no-op.
// @Tags         Schedules
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Schedule ID"
// @Success      200  {object}  domain.Result{data=domain.Execution}
// @Failure      409  {object}  domain.Result  "Already running on another instance"
// @Router       /schedules/{id}/run [post]
func (s *Server) handleRunSchedule(w http.ResponseWriter, r *http.Request) {
	exec, err := s.svc.Schedules.ProcessScheduledSync(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if exec == nil {
		writeOK(w, http.StatusOK, "schedule not active", nil)
		return
	}
	writeOK(w, http.StatusOK, "schedule executed", exec)
}

// handleListExecutions godoc
// @Summary      List executions
// @Tags         Executions
// @Produce      json
// @Security     BearerAuth
// @Param        id     path      string  true   "Schedule ID"
// @Param        limit  query     int     false  "Max results"  default(50)
// @Success      200    {object}  domain.Result{data=[]domain.Execution}
// @Router       /schedules/{id}/executions [get]
func (s *Server) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	list, err := s.svc.Schedules.ListExecutions(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "", list)
}

// handleGetExecution godoc
// @Summary      Get execution
// @Tags         Executions
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Execution ID"
// @Success      200  {object}  domain.Result{data=domain.Execution}
// @Failure      404  {object}  domain.Result
// @Router       /executions/{id} [get]
func (s *Server) handleGetExecution(w http.ResponseWriter, r *http.Request) {
	exec, err := s.svc.Schedules.GetExecutionStatus(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "", exec)
}

// handleRetryExecution godoc
// @Summary      Retry execution
// @Description  Re-runs a failed execution in place
// @Tags         Executions
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Execution ID"
// @Success      200  {object}  domain.Result{data=domain.Execution}
// @Failure      404  {object}  domain.Result
// @Router       /executions/{id}/retry [post]
func (s *Server) handleRetryExecution(w http.ResponseWriter, r *http.Request) {
	exec, err := s.svc.Schedules.ProcessRetry(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "execution retried", exec)
}

// Inventory endpoints

// handleGetInventory godoc
// @Summary      Get provider inventory
// @Description  Returns provider stock levels, served from cache when fresh
// @Tags         Inventory
// @Produce      json
// @Security     BearerAuth
// @Param        provider  path      string  true  "Provider name"
// @Success      200       {object}  domain.Result{data=domain.InventoryView}
// @Failure      404       {object}  domain.Result
// @Failure      502       {object}  domain.Result  "Provider call failed"
// @Router       /inventory/{provider} [get]
func (s *Server) handleGetInventory(w http.ResponseWriter, r *http.Request) {
	view, err := s.svc.Inventory.GetInventory(r.Context(), r.PathValue("provider"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "", view)
}

// handleListInventoryItems godoc
// @Summary      List stored inventory
// @Tags         Inventory
// @Produce      json
// @Security     BearerAuth
// @Param        provider  path      string  true  "Provider name"
// @Success      200       {object}  domain.Result{data=[]domain.InventoryItem}
// @Router       /inventory/{provider}/items [get]
func (s *Server) handleListInventoryItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.svc.Inventory.ListItems(r.Context(), r.PathValue("provider"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "", items)
}

// handleSyncInventory godoc
// @Summary      Sync inventory
// @Description  Pulls provider levels and reconciles stored items
// @Tags         Inventory
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        provider  path      string                true   "Provider name"
// @Param        request   body      SyncInventoryRequest  false  "Sync options"
// @Success      200       {object}  domain.Result{data=domain.SyncResult}
// @Failure      502       {object}  domain.Result
// @Router       /inventory/{provider}/sync [post]
func (s *Server) handleSyncInventory(w http.ResponseWriter, r *http.Request) {
	var req SyncInventoryRequest
	if r.ContentLength != 0 && !decodeBody(w, r, &req) {
		return
	}
	res, err := s.svc.Inventory.SyncInventory(r.Context(), r.PathValue("provider"), domain.SyncOptions{
		RequestID: req.RequestID,
		Filters:   req.Filters,
		User:      actor(r),
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "inventory synced", res)
}

// handleAdjustInventory godoc
// @Summary      Adjust inventory
// @Tags         Inventory
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      domain.AdjustInventoryRequest  true  "Adjustment"
// @Success      200      {object}  domain.Result{data=domain.InventoryItem}
// @Failure      400      {object}  domain.Result  "Invalid input or insufficient stock"
// @Failure      404      {object}  domain.Result
// @Failure      409      {object}  domain.Result  "Concurrent modification"
// @Router       /inventory/adjust [post]
func (s *Server) handleAdjustInventory(w http.ResponseWriter, r *http.Request) {
	var req domain.AdjustInventoryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	item, err := s.svc.Inventory.AdjustInventory(r.Context(), req, actor(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "inventory adjusted", item)
}

// handleCreateProduct godoc
// @Summary      Create product
// @Description  Creates the product at the provider and records it locally
// @Tags         Products
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        provider  path      string  true  "Provider name"
// @Param        request   body      object  true  "Provider-specific product payload"
// @Success      201       {object}  domain.Result{data=domain.Product}
// @Failure      502       {object}  domain.Result
// @Router       /products/{provider} [post]
func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var data map[string]any
	if !decodeBody(w, r, &data) {
		return
	}
	product, err := s.svc.Inventory.CreateProduct(r.Context(), r.PathValue("provider"), data, actor(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, "product created", product)
}

// Sync progress endpoints

// handleListActiveSyncs godoc
// @Summary      List active syncs
// @Tags         Syncs
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  domain.Result{data=[]domain.SyncProgress}
// @Router       /syncs [get]
func (s *Server) handleListActiveSyncs(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Progress.ListActiveSyncs(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "", list)
}

// handleInitializeSync godoc
// @Summary      Initialize sync
// @Tags         Syncs
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      domain.InitializeSyncRequest  true  "Sync"
// @Success      201      {object}  domain.Result{data=domain.SyncProgress}
// @Router       /syncs [post]
func (s *Server) handleInitializeSync(w http.ResponseWriter, r *http.Request) {
	var req domain.InitializeSyncRequest
	if !decodeBody(w, r, &req) {
		return
	}
	p, err := s.svc.Progress.InitializeSync(r.Context(), req, actor(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, "sync initialized", p)
}

// handleGetSync godoc
// @Summary      Get sync progress
// @Tags         Syncs
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Sync ID"
// @Success      200  {object}  domain.Result{data=domain.SyncProgress}
// @Failure      404  {object}  domain.Result
// @Router       /syncs/{id} [get]
func (s *Server) handleGetSync(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.Progress.GetProgress(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "", p)
}

// handleUpdateSync godoc
// @Summary      Update sync progress
// @Tags         Syncs
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                 true  "Sync ID"
// @Param        request  body      domain.ProgressUpdate  true  "Partial update"
// @Success      200      {object}  domain.Result{data=domain.SyncProgress}
// @Failure      404      {object}  domain.Result
// @Router       /syncs/{id} [patch]
func (s *Server) handleUpdateSync(w http.ResponseWriter, r *http.Request) {
	var req domain.ProgressUpdate
	if !decodeBody(w, r, &req) {
		return
	}
	p, err := s.svc.Progress.UpdateProgress(r.Context(), r.PathValue("id"), req, actor(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "progress updated", p)
}

// handleCancelSync godoc
// @Summary      Cancel sync
// @Description  Marks the sync cancelled. Running work stops at its next checkpoint.
// @Tags         Syncs
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Sync ID"
// @Success      200  {object}  domain.Result{data=domain.SyncProgress}
// @Failure      404  {object}  domain.Result
// @Router       /syncs/{id}/cancel [post]
func (s *Server) handleCancelSync(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.Progress.CancelSync(r.Context(), r.PathValue("id"), actor(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "sync cancelled", p)
}

// Webhook subscription endpoints

// handleListWebhooks godoc
// @Summary      List webhook subscriptions
// @Tags         Webhooks
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  domain.Result{data=[]domain.WebhookSubscription}
// @Router       /webhooks [get]
func (s *Server) handleListWebhooks(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Webhooks.ListSubscriptions(r.Context(), actor(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "", list)
}

// handleCreateWebhook godoc
// @Summary      Subscribe to events
// @Description  Deliveries are signed with HMAC-SHA256 of the body in X-Webhook-Signature
// @Tags         Webhooks
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      domain.CreateSubscriptionRequest  true  "Subscription"
// @Success      201      {object}  domain.Result{data=domain.WebhookSubscription}
// @Failure      400      {object}  domain.Result
// @Router       /webhooks [post]
func (s *Server) handleCreateWebhook(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateSubscriptionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sub, err := s.svc.Webhooks.Subscribe(r.Context(), actor(r), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, "subscription created", sub)
}

// handleDeleteWebhook godoc
// @Summary      Unsubscribe
// @Tags         Webhooks
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Subscription ID"
// @Success      200  {object}  domain.Result
// @Failure      404  {object}  domain.Result
// @Router       /webhooks/{id} [delete]
func (s *Server) handleDeleteWebhook(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Webhooks.Unsubscribe(r.Context(), actor(r), r.PathValue("id")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "subscription deleted", nil)
}

// Helper functions

// actor returns the caller recorded in audit fields
func actor(r *http.Request) string {
	return GetAuthContext(r.Context()).Actor()
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// statusFor maps a service error onto an HTTP status. The message is only
// exposed for client errors.
func statusFor(err error) (int, bool) {
	switch {
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrSyncNotFound),
		errors.Is(err, domain.ErrProviderNotFound):
		return http.StatusNotFound, true
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrInvalidFrequency),
		errors.Is(err, domain.ErrNegativeInventory):
		return http.StatusBadRequest, true
	case errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrAlreadyExists),
		errors.Is(err, domain.ErrScheduleBusy):
		return http.StatusConflict, true
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, true
	}

	var ie *domain.IntegrationError
	if errors.As(err, &ie) {
		if ie.Code == domain.CodeConfiguration {
			return http.StatusUnprocessableEntity, true
		}
		return http.StatusBadGateway, true
	}
	return http.StatusInternalServerError, false
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, expose := statusFor(err)
	if !expose {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, status, "internal server error")
		return
	}
	writeJSON(w, status, domain.Failed(err))
}

func writeOK(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, domain.OK(message, data))
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, domain.Result{Success: false, Error: message})
}
