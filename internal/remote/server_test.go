// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package remote

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MKhiriev/go-sync-store/internal/logger"
	"github.com/MKhiriev/go-sync-store/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSigningKey = "test-signing-key"

func signTestToken(t *testing.T, clientID string) string {
	t.Helper()
	claims := jwt.RegisteredClaims{Subject: clientID, IssuedAt: jwt.NewNumericDate(time.Now())}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSigningKey))
	require.NoError(t, err)
	return token
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	storage, _ := newMockStorage(t)
	srv := NewServer(storage, NewHub(logger.Nop()), logger.Nop())
	ts := httptest.NewServer(srv.Router(testSigningKey))
	t.Cleanup(ts.Close)
	return ts
}

func TestRouter_RejectsMissingToken(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/records/modify", "application/json", bytes.NewBufferString("{}"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRouter_RejectsWrongKey(t *testing.T) {
	ts := newTestServer(t)

	claims := jwt.RegisteredClaims{Subject: "client-1"}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("other-key"))
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/records/modify", bytes.NewBufferString("{}"))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRouter_RejectsOversizedBatch(t *testing.T) {
	ts := newTestServer(t)

	var req models.ModifyRecordsRequest
	for i := 0; i < BatchLimit+1; i++ {
		req.RecordIDsToDelete = append(req.RecordIDsToDelete, models.NewRecordID("r", testZone))
	}
	body, err := json.Marshal(req)
	require.NoError(t, err)

	httpReq, err := http.NewRequest(http.MethodPost, ts.URL+"/api/records/modify", bytes.NewBuffer(body))
	require.NoError(t, err)
	httpReq.Header.Set("Authorization", "Bearer "+signTestToken(t, "client-1"))

	resp, err := http.DefaultClient.Do(httpReq)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestRouter_CompactRejectsNonPositiveSequence(t *testing.T) {
	ts := newTestServer(t)

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/zones/main/compact",
		bytes.NewBufferString(`{"zone_id":{"zone_name":"main","owner_name":"tester"},"up_to_seq":0}`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+signTestToken(t, "client-1"))

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestParseClientID(t *testing.T) {
	token := signTestToken(t, "client-42")

	id, err := parseClientID("Bearer "+token, testSigningKey)
	require.NoError(t, err)
	assert.Equal(t, "client-42", id)

	_, err = parseClientID("", testSigningKey)
	assert.Error(t, err)

	_, err = parseClientID("Bearer not.a.token", testSigningKey)
	assert.Error(t, err)
}
