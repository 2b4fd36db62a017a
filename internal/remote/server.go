// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package remote

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/MKhiriev/go-sync-store/internal/logger"
	"github.com/MKhiriev/go-sync-store/models"
)

// BatchLimit is the per-request item ceiling of the modify endpoint.
// Oversized batches are rejected outright rather than partially applied.
const BatchLimit = 400

// maxAssetSize bounds uploaded asset payloads (32 MiB).
const maxAssetSize = 32 << 20

// Server exposes the record service over HTTP and websocket.
type Server struct {
	storage *Storage
	hub     *Hub
	logger  *logger.Logger

	upgrader websocket.Upgrader
}

func NewServer(storage *Storage, hub *Hub, log *logger.Logger) *Server {
	return &Server{
		storage:  storage,
		hub:      hub,
		logger:   log,
		upgrader: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
	}
}

// Router builds the chi router with shared-secret auth on every endpoint.
func (s *Server) Router(signingKey string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(authMiddleware(signingKey))

	r.Route("/api", func(r chi.Router) {
		r.Put("/zones/{zone}", s.handleSaveZone)
		r.Put("/subscriptions/{subscription}", s.handleSaveSubscription)
		r.Post("/zones/{zone}/changes", s.handleZoneChanges)
		r.Post("/zones/{zone}/compact", s.handleCompactFeed)
		r.Post("/records/modify", s.handleModifyRecords)
		r.Post("/records/fetch", s.handleFetchRecords)
		r.Post("/assets", s.handleUploadAsset)
		r.Get("/assets/{asset}", s.handleFetchAsset)
		r.Get("/notifications", s.handleNotifications)
	})

	return r
}

func (s *Server) handleSaveZone(w http.ResponseWriter, r *http.Request) {
	var zone models.Zone
	if !s.decode(w, r, &zone) {
		return
	}
	if zone.ZoneID.ZoneName == "" {
		zone.ZoneID.ZoneName = chi.URLParam(r, "zone")
	}

	if err := s.storage.EnsureZone(r.Context(), zone); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleSaveSubscription(w http.ResponseWriter, r *http.Request) {
	var sub models.Subscription
	if !s.decode(w, r, &sub) {
		return
	}
	if sub.SubscriptionID == "" {
		sub.SubscriptionID = chi.URLParam(r, "subscription")
	}

	if err := s.storage.EnsureSubscription(r.Context(), sub); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleModifyRecords(w http.ResponseWriter, r *http.Request) {
	var req models.ModifyRecordsRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Items() > BatchLimit {
		http.Error(w, "batch exceeds item ceiling", http.StatusRequestEntityTooLarge)
		return
	}

	resp, changedZones, err := s.storage.ModifyRecords(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	// Pings go out after the transaction committed, never before.
	origin := clientIDFromContext(r.Context())
	for _, zone := range changedZones {
		s.hub.Broadcast(zone, origin)
	}

	s.respond(w, resp)
}

func (s *Server) handleZoneChanges(w http.ResponseWriter, r *http.Request) {
	var req models.FetchZoneChangesRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.ZoneID.ZoneName == "" {
		req.ZoneID.ZoneName = chi.URLParam(r, "zone")
	}

	resp, err := s.storage.ZoneChanges(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, resp)
}

type compactFeedRequest struct {
	ZoneID  models.ZoneID `json:"zone_id"`
	UpToSeq int64         `json:"up_to_seq"`
}

// handleCompactFeed is the retention endpoint: an operator (or a cron hitting
// the API) trims the zone's change feed up to a sequence number.
func (s *Server) handleCompactFeed(w http.ResponseWriter, r *http.Request) {
	var req compactFeedRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.ZoneID.ZoneName == "" {
		req.ZoneID.ZoneName = chi.URLParam(r, "zone")
	}
	if req.UpToSeq <= 0 {
		http.Error(w, "up_to_seq must be positive", http.StatusBadRequest)
		return
	}

	if err := s.storage.CompactFeed(r.Context(), req.ZoneID, req.UpToSeq); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleFetchRecords(w http.ResponseWriter, r *http.Request) {
	var req models.FetchRecordsRequest
	if !s.decode(w, r, &req) {
		return
	}

	resp, err := s.storage.GetRecords(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, resp)
}

type assetResponse struct {
	Asset models.AssetReference `json:"asset"`
}

func (s *Server) handleUploadAsset(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxAssetSize+1))
	if err != nil {
		http.Error(w, "read payload", http.StatusBadRequest)
		return
	}
	if len(data) > maxAssetSize {
		http.Error(w, "asset too large", http.StatusRequestEntityTooLarge)
		return
	}

	ref, err := s.storage.SaveAsset(r.Context(), data)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, assetResponse{Asset: ref})
}

func (s *Server) handleFetchAsset(w http.ResponseWriter, r *http.Request) {
	data, err := s.storage.GetAsset(r.Context(), chi.URLParam(r, "asset"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(data)
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	clientID := clientIDFromContext(r.Context())

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	// Register blocks for the connection lifetime.
	s.hub.Register(conn, clientID)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return false
	}
	return true
}

func (s *Server) respond(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error().Err(err).Msg("encode response")
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrZoneNotFound):
		http.Error(w, "zone not found", http.StatusNotFound)
	case errors.Is(err, ErrTokenExpired):
		http.Error(w, "change token expired", http.StatusGone)
	case errors.Is(err, ErrBadToken):
		http.Error(w, "malformed change token", http.StatusBadRequest)
	case errors.Is(err, ErrAssetNotFound):
		http.Error(w, "asset not found", http.StatusNotFound)
	default:
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
