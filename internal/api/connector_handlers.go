package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/hearkenhq/hearken/internal/connector"
	"github.com/hearkenhq/hearken/internal/models"
	"log/slog"
)

// ConnectorHandler serves connector configuration and operation endpoints.
type ConnectorHandler struct {
	registry *connector.Registry
	store    connector.ConfigStore
	logger   *slog.Logger
}

// NewConnectorHandler creates a connector handler.
func NewConnectorHandler(registry *connector.Registry, store connector.ConfigStore, logger *slog.Logger) *ConnectorHandler {
	return &ConnectorHandler{
		registry: registry,
		store:    store,
		logger:   logger,
	}
}

// CreateConnectorRequest is the body of POST /api/connectors. Credentials
// are split off into the vault at creation and never echoed back.
type CreateConnectorRequest struct {
	Name           string              `json:"name"`
	OrganizationID string              `json:"organization_id"`
	Provider       string              `json:"provider"`
	Category       string              `json:"category"`
	Config         map[string]string   `json:"config"`
	Credentials    map[string]string   `json:"credentials"`
	RateCeilings   models.RateCeilings `json:"rate_ceilings"`
	Active         bool                `json:"active"`
}

// UpdateConnectorRequest is the body of PUT /api/connectors/:id.
type UpdateConnectorRequest struct {
	Name         *string              `json:"name,omitempty"`
	Config       *map[string]string   `json:"config,omitempty"`
	RateCeilings *models.RateCeilings `json:"rate_ceilings,omitempty"`
	Active       *bool                `json:"active,omitempty"`
}

// ConnectorsResponse wraps the list endpoint payload.
type ConnectorsResponse struct {
	Connectors []models.ConnectorConfig `json:"connectors"`
	Count      int                      `json:"count"`
}

// StatusResponse is the payload of GET /api/connectors/:id/status.
type StatusResponse struct {
	ConnectorID string           `json:"connector_id"`
	Status      connector.Status `json:"status"`
}

// HandleConnectors handles GET /api/connectors and POST /api/connectors
func (h *ConnectorHandler) HandleConnectors(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listConnectors(w, r)
	case http.MethodPost:
		h.createConnector(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleConnectorByID dispatches /api/connectors/:id and its subroutes.
func (h *ConnectorHandler) HandleConnectorByID(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(r.URL.Path, "/")
	if len(parts) < 4 || parts[3] == "" {
		http.Error(w, "Connector ID required", http.StatusBadRequest)
		return
	}
	connectorID := parts[3]

	if len(parts) >= 5 && parts[4] != "" {
		h.handleSubroute(w, r, connectorID, parts[4])
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getConnector(w, r, connectorID)
	case http.MethodPut:
		h.updateConnector(w, r, connectorID)
	case http.MethodDelete:
		h.deleteConnector(w, r, connectorID)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *ConnectorHandler) handleSubroute(w http.ResponseWriter, r *http.Request, connectorID, action string) {
	switch {
	case action == "credentials" && r.Method == http.MethodPut:
		h.updateCredentials(w, r, connectorID)
	case action == "test" && r.Method == http.MethodPost:
		h.testConnector(w, r, connectorID)
	case action == "status" && r.Method == http.MethodGet:
		h.connectorStatus(w, r, connectorID)
	case action == "post" && r.Method == http.MethodPost:
		h.post(w, r, connectorID)
	case action == "search" && r.Method == http.MethodPost:
		h.search(w, r, connectorID)
	case action == "conversations" && r.Method == http.MethodGet:
		h.getConversation(w, r, connectorID)
	case action == "engagement" && r.Method == http.MethodGet:
		h.getEngagement(w, r, connectorID)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

// listConnectors handles GET /api/connectors
func (h *ConnectorHandler) listConnectors(w http.ResponseWriter, r *http.Request) {
	configs, err := h.store.List(r.Context(), r.URL.Query().Get("organization_id"))
	if err != nil {
		h.logger.Error("failed to list connectors", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, ConnectorsResponse{
		Connectors: configs,
		Count:      len(configs),
	})
}

// createConnector handles POST /api/connectors
func (h *ConnectorHandler) createConnector(w http.ResponseWriter, r *http.Request) {
	var req CreateConnectorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Name == "" || req.Provider == "" {
		http.Error(w, "Missing required fields: name, provider", http.StatusBadRequest)
		return
	}

	cfg := &models.ConnectorConfig{
		Name:           req.Name,
		OrganizationID: req.OrganizationID,
		Provider:       models.ProviderType(req.Provider),
		Category:       models.ConnectorCategory(req.Category),
		Config:         req.Config,
		Active:         req.Active,
		RateCeilings:   req.RateCeilings,
	}

	created, err := h.registry.Create(r.Context(), cfg, req.Credentials)
	if err != nil {
		h.writeConnectorError(w, "failed to create connector", err)
		return
	}

	h.logger.Info("connector created", "connector_id", created.ID, "provider", created.Provider)
	writeJSON(w, http.StatusCreated, created)
}

// getConnector handles GET /api/connectors/:id
func (h *ConnectorHandler) getConnector(w http.ResponseWriter, r *http.Request, connectorID string) {
	cfg, err := h.store.Get(r.Context(), connectorID)
	if err != nil {
		http.Error(w, "Connector not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, cfg)
}

// updateConnector handles PUT /api/connectors/:id
func (h *ConnectorHandler) updateConnector(w http.ResponseWriter, r *http.Request, connectorID string) {
	cfg, err := h.store.Get(r.Context(), connectorID)
	if err != nil {
		http.Error(w, "Connector not found", http.StatusNotFound)
		return
	}

	var req UpdateConnectorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Name != nil {
		cfg.Name = *req.Name
	}
	if req.Config != nil {
		cfg.Config = *req.Config
	}
	if req.RateCeilings != nil {
		cfg.RateCeilings = *req.RateCeilings
	}
	if req.Active != nil {
		cfg.Active = *req.Active
	}

	if err := h.store.Update(r.Context(), cfg); err != nil {
		h.logger.Error("failed to update connector", "connector_id", connectorID, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, cfg)
}

// deleteConnector handles DELETE /api/connectors/:id
func (h *ConnectorHandler) deleteConnector(w http.ResponseWriter, r *http.Request, connectorID string) {
	if err := h.registry.Delete(r.Context(), connectorID); err != nil {
		h.logger.Error("failed to delete connector", "connector_id", connectorID, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.Info("connector deleted", "connector_id", connectorID)
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusNoContent)
}

// updateCredentials handles PUT /api/connectors/:id/credentials
func (h *ConnectorHandler) updateCredentials(w http.ResponseWriter, r *http.Request, connectorID string) {
	var fields map[string]string
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	cfg, err := h.registry.UpdateCredentials(r.Context(), connectorID, fields)
	if err != nil {
		h.writeConnectorError(w, "failed to update credentials", err)
		return
	}

	h.logger.Info("connector credentials updated", "connector_id", connectorID)
	writeJSON(w, http.StatusOK, cfg)
}

// testConnector handles POST /api/connectors/:id/test
func (h *ConnectorHandler) testConnector(w http.ResponseWriter, r *http.Request, connectorID string) {
	conn, err := h.registry.Load(r.Context(), connectorID)
	if err != nil {
		h.writeConnectorError(w, "failed to load connector", err)
		return
	}

	testErr := conn.TestConnection(r.Context())

	lastError := ""
	if testErr != nil {
		lastError = testErr.Error()
	}
	if err := h.store.Touch(r.Context(), connectorID, lastError); err != nil {
		h.logger.Warn("failed to record connection test", "connector_id", connectorID, "error", err)
	}

	if testErr != nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"connector_id": connectorID,
			"ok":           false,
			"error":        testErr.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"connector_id": connectorID,
		"ok":           true,
	})
}

// connectorStatus handles GET /api/connectors/:id/status
func (h *ConnectorHandler) connectorStatus(w http.ResponseWriter, r *http.Request, connectorID string) {
	conn, err := h.registry.Load(r.Context(), connectorID)
	if err != nil {
		h.writeConnectorError(w, "failed to load connector", err)
		return
	}

	writeJSON(w, http.StatusOK, StatusResponse{
		ConnectorID: connectorID,
		Status:      conn.Status(r.Context()),
	})
}

// post handles POST /api/connectors/:id/post
func (h *ConnectorHandler) post(w http.ResponseWriter, r *http.Request, connectorID string) {
	var params models.PostParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	conn, err := h.registry.Load(r.Context(), connectorID)
	if err != nil {
		h.writeConnectorError(w, "failed to load connector", err)
		return
	}

	poster, ok := conn.(connector.Poster)
	if !ok {
		http.Error(w, "Connector does not support posting", http.StatusBadRequest)
		return
	}

	result := poster.Post(r.Context(), params)
	h.touchAfterUse(r, connectorID, result.Error)

	writeJSON(w, http.StatusOK, result)
}

// search handles POST /api/connectors/:id/search
func (h *ConnectorHandler) search(w http.ResponseWriter, r *http.Request, connectorID string) {
	var req struct {
		Query  models.SearchQuery `json:"query"`
		Cursor string             `json:"cursor"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	searcher, ok, err := h.loadSearcher(w, r, connectorID)
	if !ok {
		return
	}

	result, err := searcher.Search(r.Context(), req.Query, req.Cursor)
	if err != nil {
		h.touchAfterUse(r, connectorID, err.Error())
		h.writeConnectorError(w, "search failed", err)
		return
	}
	h.touchAfterUse(r, connectorID, "")

	writeJSON(w, http.StatusOK, result)
}

// getConversation handles GET /api/connectors/:id/conversations?external_id=
func (h *ConnectorHandler) getConversation(w http.ResponseWriter, r *http.Request, connectorID string) {
	externalID := r.URL.Query().Get("external_id")
	if externalID == "" {
		http.Error(w, "external_id is required", http.StatusBadRequest)
		return
	}

	searcher, ok, _ := h.loadSearcher(w, r, connectorID)
	if !ok {
		return
	}

	conv, err := searcher.GetConversation(r.Context(), externalID)
	if err != nil {
		h.writeConnectorError(w, "failed to fetch conversation", err)
		return
	}
	if conv == nil {
		http.Error(w, "Conversation not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, conv)
}

// getEngagement handles GET /api/connectors/:id/engagement?external_id=
func (h *ConnectorHandler) getEngagement(w http.ResponseWriter, r *http.Request, connectorID string) {
	externalID := r.URL.Query().Get("external_id")
	if externalID == "" {
		http.Error(w, "external_id is required", http.StatusBadRequest)
		return
	}

	conn, err := h.registry.Load(r.Context(), connectorID)
	if err != nil {
		h.writeConnectorError(w, "failed to load connector", err)
		return
	}

	poster, ok := conn.(connector.Poster)
	if !ok {
		http.Error(w, "Connector does not support engagement metrics", http.StatusBadRequest)
		return
	}

	metrics, err := poster.GetEngagement(r.Context(), externalID)
	if err != nil {
		h.writeConnectorError(w, "failed to fetch engagement", err)
		return
	}

	writeJSON(w, http.StatusOK, metrics)
}

func (h *ConnectorHandler) loadSearcher(w http.ResponseWriter, r *http.Request, connectorID string) (connector.Searcher, bool, error) {
	conn, err := h.registry.Load(r.Context(), connectorID)
	if err != nil {
		h.writeConnectorError(w, "failed to load connector", err)
		return nil, false, err
	}

	searcher, ok := conn.(connector.Searcher)
	if !ok {
		http.Error(w, "Connector does not support search", http.StatusBadRequest)
		return nil, false, nil
	}
	return searcher, true, nil
}

func (h *ConnectorHandler) touchAfterUse(r *http.Request, connectorID, lastError string) {
	if err := h.store.Touch(r.Context(), connectorID, lastError); err != nil {
		h.logger.Warn("failed to record connector use", "connector_id", connectorID, "error", err)
	}
}

// writeConnectorError maps the connector error taxonomy onto HTTP statuses.
func (h *ConnectorHandler) writeConnectorError(w http.ResponseWriter, msg string, err error) {
	h.logger.Error(msg, "error", err)

	var cfgErr *connector.ConfigurationError
	var rateErr *connector.RateLimitError
	var authErr *connector.AuthenticationError
	var apiErr *connector.ProviderAPIError

	switch {
	case errors.As(err, &cfgErr):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &rateErr):
		if !rateErr.ResetAt.IsZero() {
			w.Header().Set("Retry-After", rateErr.ResetAt.UTC().Format(time.RFC3339))
		}
		http.Error(w, err.Error(), http.StatusTooManyRequests)
	case errors.As(err, &authErr):
		http.Error(w, err.Error(), http.StatusBadGateway)
	case errors.As(err, &apiErr), connector.IsTransport(err):
		http.Error(w, err.Error(), http.StatusBadGateway)
	default:
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
