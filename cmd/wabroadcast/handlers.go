package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"wabroadcast/internal/constants"
	apperrors "wabroadcast/internal/errors"
	"wabroadcast/internal/models"
	"wabroadcast/internal/service"
	"wabroadcast/internal/tracing"
	"wabroadcast/internal/validation"

	"github.com/gorilla/mux"
)

const maxRequestBody = int64(constants.MaxRequestBodyBytes)

// deviceResponse is the device projection returned to callers. The
// credential is included only while a pairing handshake is live.
type deviceResponse struct {
	ID                string     `json:"id"`
	UserID            string     `json:"userId"`
	Name              string     `json:"name"`
	State             string     `json:"state"`
	PairingCredential *string    `json:"pairingCredential,omitempty"`
	PhoneNumber       *string    `json:"phoneNumber,omitempty"`
	LastSeenAt        *time.Time `json:"lastSeenAt,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
}

type messageResponse struct {
	ID           string             `json:"id"`
	DeviceID     string             `json:"deviceId"`
	UserID       string             `json:"userId"`
	Body         string             `json:"body"`
	Attachment   *models.Attachment `json:"attachment,omitempty"`
	TargetGroups []string           `json:"targetGroups"`
	State        string             `json:"state"`
	ScheduledFor *time.Time         `json:"scheduledFor,omitempty"`
	SentAt       *time.Time         `json:"sentAt,omitempty"`
	ErrorDetail  *string            `json:"errorDetail,omitempty"`
	CreatedAt    time.Time          `json:"createdAt"`
}

func toDeviceResponse(d *models.Device) deviceResponse {
	return deviceResponse{
		ID:                d.ID,
		UserID:            d.UserID,
		Name:              d.Name,
		State:             string(d.ConnectionState),
		PairingCredential: d.PairingCredential,
		PhoneNumber:       d.PhoneNumber,
		LastSeenAt:        d.LastSeenAt,
		CreatedAt:         d.CreatedAt,
	}
}

func toMessageResponse(m *models.Message) messageResponse {
	return messageResponse{
		ID:           m.ID,
		DeviceID:     m.DeviceID,
		UserID:       m.UserID,
		Body:         m.Body,
		Attachment:   m.Attachment,
		TargetGroups: m.TargetGroups,
		State:        string(m.DeliveryState),
		ScheduledFor: m.ScheduledFor,
		SentAt:       m.SentAt,
		ErrorDetail:  m.ErrorDetail,
		CreatedAt:    m.CreatedAt,
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := tracing.GetRequestID(r.Context())
	s.writeJSON(w, apperrors.HTTPStatusCode(err), apperrors.ToHTTPResponse(err, requestID))
}

func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := validation.ValidateHTTPRequestSize(r, maxRequestBody); err != nil {
		s.writeError(w, r, err)
		return false
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeError(w, r, apperrors.New(apperrors.ErrCodeInvalidInput, "invalid JSON body"))
		return false
	}
	return true
}

// Device handlers

func (s *Server) handleCreateDevice() http.HandlerFunc {
	type request struct {
		UserID string `json:"userId"`
		Name   string `json:"name"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if !s.decodeBody(w, r, &req) {
			return
		}

		device, err := s.devices.CreateDevice(r.Context(), req.UserID, req.Name)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusCreated, toDeviceResponse(device))
	}
}

func (s *Server) handleListDevices() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get("userId")

		devices, err := s.devices.ListDevices(r.Context(), userID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		out := make([]deviceResponse, 0, len(devices))
		for _, d := range devices {
			out = append(out, toDeviceResponse(d))
		}
		s.writeJSON(w, http.StatusOK, out)
	}
}

func (s *Server) handleDeviceStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		device, err := s.devices.QueryStatus(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, toDeviceResponse(device))
	}
}

func (s *Server) handleRequestPairing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		device, err := s.devices.RequestPairing(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, toDeviceResponse(device))
	}
}

func (s *Server) handleDisconnectDevice() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		device, err := s.devices.Disconnect(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, toDeviceResponse(device))
	}
}

func (s *Server) handleDeleteDevice() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.devices.DeleteDevice(r.Context(), mux.Vars(r)["id"]); err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// Message handlers

func (s *Server) handleComposeMessage() http.HandlerFunc {
	type request struct {
		UserID       string             `json:"userId"`
		DeviceID     string             `json:"deviceId"`
		Body         string             `json:"body"`
		Attachment   *models.Attachment `json:"attachment,omitempty"`
		TargetGroups []string           `json:"targetGroups"`
		ScheduleAt   *time.Time         `json:"scheduleAt,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if !s.decodeBody(w, r, &req) {
			return
		}

		msg, err := s.dispatch.Compose(r.Context(), service.ComposeRequest{
			UserID:       req.UserID,
			DeviceID:     req.DeviceID,
			Body:         req.Body,
			Attachment:   req.Attachment,
			TargetGroups: req.TargetGroups,
			ScheduleAt:   req.ScheduleAt,
		})
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusCreated, toMessageResponse(msg))
	}
}

func (s *Server) handleListMessages() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := models.MessageFilter{
			UserID:   q.Get("userId"),
			DeviceID: q.Get("deviceId"),
			State:    models.DeliveryState(q.Get("state")),
		}
		if limit := q.Get("limit"); limit != "" {
			n, err := strconv.Atoi(limit)
			if err != nil || n < 0 {
				s.writeError(w, r, apperrors.NewValidationError("limit", "must be a non-negative integer"))
				return
			}
			filter.Limit = n
		}

		messages, err := s.dispatch.ListMessages(r.Context(), filter)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		out := make([]messageResponse, 0, len(messages))
		for _, m := range messages {
			out = append(out, toMessageResponse(m))
		}
		s.writeJSON(w, http.StatusOK, out)
	}
}

func (s *Server) handleGetMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		msg, err := s.dispatch.GetMessage(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, toMessageResponse(msg))
	}
}

func (s *Server) handleDispatchMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		msg, err := s.dispatch.Dispatch(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusAccepted, toMessageResponse(msg))
	}
}

// Gateway callback handlers

func (s *Server) handlePairingEvent() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := s.verifyCallback(r)
		if err != nil {
			s.writeError(w, r, apperrors.NewAuthError(err.Error()))
			return
		}

		var event models.PairingEvent
		if err := json.Unmarshal(body, &event); err != nil {
			s.writeError(w, r, apperrors.New(apperrors.ErrCodeInvalidInput, "invalid JSON body"))
			return
		}

		device, err := s.devices.ApplyPairingEvent(r.Context(), mux.Vars(r)["id"], event)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, toDeviceResponse(device))
	}
}

func (s *Server) handleDispatchResult() http.HandlerFunc {
	type request struct {
		OK     bool   `json:"ok"`
		Reason string `json:"reason,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := s.verifyCallback(r)
		if err != nil {
			s.writeError(w, r, apperrors.NewAuthError(err.Error()))
			return
		}

		var req request
		if err := json.Unmarshal(body, &req); err != nil {
			s.writeError(w, r, apperrors.New(apperrors.ErrCodeInvalidInput, "invalid JSON body"))
			return
		}

		msg, err := s.dispatch.ReportDispatchResult(r.Context(), mux.Vars(r)["id"], req.OK, req.Reason)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, toMessageResponse(msg))
	}
}
