package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/carelink/portal-gateway/internal/relay"
	"github.com/carelink/portal-gateway/internal/session"
	"github.com/carelink/portal-gateway/pkg/types"
)

// messageResponse is the error shape exposed to portal clients
type messageResponse struct {
	Message string `json:"message"`
}

// handleHealth handles health check requests
func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.startTime).String(),
	}

	if s.db != nil {
		if err := s.db.Health(); err != nil {
			response["status"] = "degraded"
			response["audit_store"] = "unreachable"
		} else {
			response["audit_store"] = "healthy"
		}
	}

	s.writeJSONResponse(w, http.StatusOK, response)
}

// handleCreateSession stores the credential pair issued by the backend as
// session cookies. The gateway never mints tokens itself.
func (s *Service) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccessToken string `json:"access_token"`
		LoginID     string `json:"login_id"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Refuse to persist a token that is already dead
	if !session.IsValid(req.AccessToken) {
		s.writeErrorResponse(w, http.StatusBadRequest, "token is missing or already expired")
		return
	}

	ttl := time.Duration(s.cfg.Session.CookieTTL) * time.Second
	session.WriteSession(w, session.Session{Token: req.AccessToken, LoginID: req.LoginID}, ttl, s.cfg.Session.SecureCookies)

	s.logger.WithLoginID(req.LoginID).Info("Session established")
	s.writeJSONResponse(w, http.StatusOK, messageResponse{Message: "session established"})
}

// handleLogout clears the session credential pair
func (s *Service) handleLogout(w http.ResponseWriter, r *http.Request) {
	loginID := session.ReadSession(r).LoginID

	session.ClearSession(w, s.cfg.Session.SecureCookies)

	s.logger.WithLoginID(loginID).Info("Session cleared")
	s.writeJSONResponse(w, http.StatusOK, messageResponse{Message: "logged out"})
}

// passthrough builds a handler forwarding the request to an upstream path
// with the bearer credential, streaming the upstream response back verbatim
func (s *Service) passthrough(upstreamPath string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target := s.upstreamURL(upstreamPath, r.URL.Query())

		req, err := http.NewRequestWithContext(r.Context(), r.Method, target, r.Body)
		if err != nil {
			s.writeErrorResponse(w, http.StatusInternalServerError, "failed to build upstream request")
			return
		}

		req.Header.Set("Accept", "application/json")
		req.Header.Set("Authorization", r.Header.Get("Authorization"))
		if ct := r.Header.Get("Content-Type"); ct != "" {
			req.Header.Set("Content-Type", ct)
		}

		resp, err := s.apiClient.Do(req)
		if err != nil {
			s.logger.WithComponent("passthrough").WithError(err).Warn("Upstream call failed")
			s.writeJSONResponse(w, http.StatusInternalServerError, messageResponse{Message: "Something went wrong"})
			return
		}
		defer resp.Body.Close()

		s.relayResponse(w, resp)
	}
}

// handleCreateProfile validates the profile form and forwards it upstream.
// The upstream expects the profile fields as query parameters and the role
// list as the JSON body.
func (s *Service) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileForm
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONResponse(w, http.StatusBadRequest, messageResponse{Message: "invalid request body"})
		return
	}

	if req.FirstName == "" || req.LastName == "" || req.Gender == "" || req.DateOfBirth == "" {
		s.writeJSONResponse(w, http.StatusBadRequest, messageResponse{Message: "Missing required fields"})
		return
	}

	params := url.Values{}
	params.Set("first_name", req.FirstName)
	params.Set("last_name", req.LastName)
	params.Set("date_of_birth", req.DateOfBirth)
	params.Set("gender", req.Gender)
	if req.PhoneNumber != "" {
		params.Set("phone_no", req.PhoneNumber)
	}
	if req.Relationship != "" {
		params.Set("relationship", req.Relationship)
	}

	s.forwardProfileForm(w, r, http.MethodPost, "/api/v1/profile/create-profile", params, req.Roles)
}

// handleUpdateProfile validates the profile update and forwards it upstream
func (s *Service) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileForm
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONResponse(w, http.StatusBadRequest, messageResponse{Message: "invalid request body"})
		return
	}

	if req.ProfileID == "" {
		s.writeJSONResponse(w, http.StatusBadRequest, messageResponse{Message: "profile_id is required"})
		return
	}

	params := url.Values{}
	params.Set("profile_id", req.ProfileID)
	if req.FirstName != "" {
		params.Set("first_name", req.FirstName)
	}
	if req.LastName != "" {
		params.Set("last_name", req.LastName)
	}
	if req.Gender != "" {
		params.Set("gender", req.Gender)
	}
	if req.DateOfBirth != "" {
		params.Set("date_of_birth", req.DateOfBirth)
	}
	if req.PhoneNumber != "" {
		params.Set("phone_no", req.PhoneNumber)
	}
	if req.Relationship != "" {
		params.Set("relationship", req.Relationship)
	}

	s.forwardProfileForm(w, r, http.MethodPut, "/api/v1/profile/update-profile", params, req.Roles)
}

// profileForm is the profile payload accepted from portal clients
type profileForm struct {
	ProfileID    string   `json:"profileId"`
	FirstName    string   `json:"firstName"`
	LastName     string   `json:"lastName"`
	Gender       string   `json:"gender"`
	DateOfBirth  string   `json:"dateOfBirth"`
	PhoneNumber  string   `json:"phoneNumber"`
	Relationship string   `json:"relationship"`
	Roles        []string `json:"roles"`
}

// forwardProfileForm sends a validated profile form upstream
func (s *Service) forwardProfileForm(w http.ResponseWriter, r *http.Request, method, upstreamPath string, params url.Values, roles []string) {
	if len(roles) == 0 {
		roles = []string{"Personal"}
	}
	body, err := json.Marshal(roles)
	if err != nil {
		s.writeErrorResponse(w, http.StatusInternalServerError, "failed to encode roles")
		return
	}

	target := s.upstreamURL(upstreamPath, params)

	req, err := http.NewRequestWithContext(r.Context(), method, target, bytes.NewReader(body))
	if err != nil {
		s.writeErrorResponse(w, http.StatusInternalServerError, "failed to build upstream request")
		return
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", r.Header.Get("Authorization"))

	resp, err := s.apiClient.Do(req)
	if err != nil {
		s.logger.WithComponent("profile").WithError(err).Warn("Upstream call failed")
		s.writeJSONResponse(w, http.StatusInternalServerError, messageResponse{Message: "Something went wrong"})
		return
	}
	defer resp.Body.Close()

	s.relayResponse(w, resp)
}

// handleGetAllReports forwards the report listing with paging defaults
func (s *Service) handleGetAllReports(w http.ResponseWriter, r *http.Request) {
	params := url.Values{}
	if profileID := r.URL.Query().Get("profile_id"); profileID != "" {
		params.Set("profile_id", profileID)
	}
	params.Set("page_number", queryDefault(r, "page_number", "1"))
	params.Set("page_size", queryDefault(r, "page_size", "10"))

	target := s.upstreamURL("/api/v1/report/get-all-reports", params)

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target, nil)
	if err != nil {
		s.writeErrorResponse(w, http.StatusInternalServerError, "failed to build upstream request")
		return
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", r.Header.Get("Authorization"))

	resp, err := s.apiClient.Do(req)
	if err != nil {
		s.logger.WithComponent("reports").WithError(err).Warn("Upstream call failed")
		s.writeJSONResponse(w, http.StatusInternalServerError, messageResponse{Message: "Something went wrong"})
		return
	}
	defer resp.Body.Close()

	s.relayResponse(w, resp)
}

// queryDefault reads a query parameter with a fallback value
func queryDefault(r *http.Request, key, fallback string) string {
	if value := r.URL.Query().Get(key); value != "" {
		return value
	}
	return fallback
}

// handleReportUpload streams a multipart report submission through the
// upload relay and maps relay failures to distinct status codes
func (s *Service) handleReportUpload(w http.ResponseWriter, r *http.Request) {
	loginID := session.ReadSession(r).LoginID
	start := time.Now()

	resp, err := s.uploads.Do(r.Context(), r.Header, r.Body)
	if err != nil {
		s.writeRelayError(w, err)

		category := relayCategory(err)
		relayOutcomesTotal.WithLabelValues(category).Inc()
		s.audit.RecordRelay(r.Context(), loginID, relayStatus(err), category, time.Since(start))
		return
	}
	defer resp.Body.Close()

	s.relayResponse(w, resp)

	relayOutcomesTotal.WithLabelValues("success").Inc()
	relayDuration.Observe(time.Since(start).Seconds())
	s.audit.RecordRelay(r.Context(), loginID, resp.StatusCode, "success", time.Since(start))
}

// writeRelayError maps a relay failure category to its user-facing response
func (s *Service) writeRelayError(w http.ResponseWriter, err error) {
	var relayErr *relay.Error
	if !errors.As(err, &relayErr) {
		s.writeJSONResponse(w, http.StatusInternalServerError, messageResponse{Message: "Something went wrong while uploading report"})
		return
	}

	switch relayErr.Category {
	case relay.CategoryTimeout:
		s.writeJSONResponse(w, http.StatusGatewayTimeout, messageResponse{
			Message: "Upload timed out while waiting for the server response. The server may be processing a large file. Please try again.",
		})
	case relay.CategoryUnavailable:
		s.writeJSONResponse(w, http.StatusServiceUnavailable, messageResponse{
			Message: "Could not connect to upload service. Please try again later.",
		})
	default:
		s.writeJSONResponse(w, http.StatusInternalServerError, messageResponse{
			Message: "Something went wrong while uploading report",
		})
	}
}

// relayCategory extracts the failure category label for metrics and audit
func relayCategory(err error) string {
	var relayErr *relay.Error
	if errors.As(err, &relayErr) {
		return string(relayErr.Category)
	}
	return string(relay.CategoryInternal)
}

// relayStatus maps a relay failure to the status code reported to the client
func relayStatus(err error) int {
	var relayErr *relay.Error
	if errors.As(err, &relayErr) {
		switch relayErr.Category {
		case relay.CategoryTimeout:
			return http.StatusGatewayTimeout
		case relay.CategoryUnavailable:
			return http.StatusServiceUnavailable
		}
	}
	return http.StatusInternalServerError
}

// relayResponse copies an upstream response back to the client verbatim
func (s *Service) relayResponse(w http.ResponseWriter, resp *http.Response) {
	for key, values := range resp.Header {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}

	w.WriteHeader(resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		s.logger.WithComponent("gateway").WithError(err).Warn("Failed to stream upstream response")
	}
}

// handleMethodNotAllowed mirrors the portal's method guard
func (s *Service) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	s.writeJSONResponse(w, http.StatusMethodNotAllowed, messageResponse{Message: "Method not allowed"})
}

// writeJSONResponse writes a JSON response
func (s *Service) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.WithError(err).Error("Failed to encode JSON response")
	}
}

// writeErrorResponse writes a structured error response
func (s *Service) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	s.writeJSONResponse(w, statusCode, portalErrorFor(statusCode, message))
}

// portalErrorFor maps an HTTP status code to the structured error reported
// for it
func portalErrorFor(statusCode int, message string) *types.PortalError {
	switch statusCode {
	case http.StatusBadRequest:
		return types.NewValidationError(types.ErrCodeInvalidInput, message, nil)
	case http.StatusUnauthorized, http.StatusForbidden:
		return types.NewAuthenticationError(types.ErrCodeUnauthorized, message)
	case http.StatusTooManyRequests:
		return types.NewRateLimitError(types.ErrCodeRateLimitExceeded, message)
	case http.StatusGatewayTimeout:
		return types.NewTimeoutError(types.ErrCodeUpstreamTimeout, message, nil)
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		return types.NewExternalError(types.ErrCodeUpstreamUnavailable, message, nil)
	default:
		return types.NewInternalError(types.ErrCodeInternalError, message, nil)
	}
}
