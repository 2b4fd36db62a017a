// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MKhiriev/go-sync-store/internal/logger"
	"github.com/MKhiriev/go-sync-store/models"
	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sethvargo/go-retry"
)

// RemoteConfig configures the HTTP implementation of [RemoteDatabase].
type RemoteConfig struct {
	// BaseURL of the record service, e.g. "http://localhost:8080". A bare
	// host:port is accepted and defaults to http.
	BaseURL string

	// SigningKey is the shared HMAC secret used to mint the bearer token.
	SigningKey string

	// ClientID identifies this client installation; it becomes the token
	// subject and the server scopes change feeds and subscriptions by it.
	ClientID string

	Timeout time.Duration

	// RetryAttempts bounds the retransmission of transiently failed
	// requests (transport errors and 5xx responses). Conflicts and other
	// 4xx outcomes are never retried.
	RetryAttempts uint64
	RetryBase     time.Duration
}

type httpRemoteDatabase struct {
	client *resty.Client
	cfg    RemoteConfig
	logger *logger.Logger
}

// NewHTTPRemoteDatabase constructs the HTTP/REST implementation of
// [RemoteDatabase]. It normalises and validates the base URL, mints a
// bearer token from the signing key, and configures request timeouts.
func NewHTTPRemoteDatabase(cfg RemoteConfig, log *logger.Logger) (RemoteDatabase, error) {
	baseURL, err := normalizeBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid remote base url: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.RetryAttempts == 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 250 * time.Millisecond
	}

	token, err := mintBearerToken(cfg.SigningKey, cfg.ClientID)
	if err != nil {
		return nil, fmt.Errorf("mint bearer token: %w", err)
	}

	cli := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetAuthToken(token)

	return &httpRemoteDatabase{client: cli, cfg: cfg, logger: log}, nil
}

func normalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty address")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("address must include host and scheme")
	}
	return strings.TrimRight(u.String(), "/"), nil
}

func mintBearerToken(signingKey, clientID string) (string, error) {
	if signingKey == "" {
		return "", fmt.Errorf("empty signing key")
	}
	claims := jwt.RegisteredClaims{
		Subject:  clientID,
		IssuedAt: jwt.NewNumericDate(time.Now()),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(signingKey))
}

// SaveZone implements [RemoteDatabase]. PUT /api/zones/{zone} is idempotent
// on the server side, so provisioning an already-present zone succeeds.
func (h *httpRemoteDatabase) SaveZone(ctx context.Context, zone models.Zone) error {
	return h.do(ctx, func(ctx context.Context) (*resty.Response, error) {
		return h.client.R().
			SetContext(ctx).
			SetBody(zone).
			Put("/api/zones/" + url.PathEscape(zone.ZoneID.ZoneName))
	}, nil)
}

// SaveSubscription implements [RemoteDatabase].
func (h *httpRemoteDatabase) SaveSubscription(ctx context.Context, sub models.Subscription) error {
	return h.do(ctx, func(ctx context.Context) (*resty.Response, error) {
		return h.client.R().
			SetContext(ctx).
			SetBody(sub).
			Put("/api/subscriptions/" + url.PathEscape(sub.SubscriptionID))
	}, nil)
}

// ModifyRecords implements [RemoteDatabase]. The whole batch is one POST;
// per-record outcomes (including conflicts) come back in the response body,
// so a returned error always means the batch as a whole did not land.
func (h *httpRemoteDatabase) ModifyRecords(ctx context.Context, req models.ModifyRecordsRequest) (models.ModifyRecordsResponse, error) {
	var out models.ModifyRecordsResponse
	err := h.do(ctx, func(ctx context.Context) (*resty.Response, error) {
		return h.client.R().
			SetContext(ctx).
			SetBody(req).
			Post("/api/records/modify")
	}, &out)
	if err != nil {
		return models.ModifyRecordsResponse{}, fmt.Errorf("modify records request: %w", err)
	}
	return out, nil
}

// FetchZoneChanges implements [RemoteDatabase].
func (h *httpRemoteDatabase) FetchZoneChanges(ctx context.Context, req models.FetchZoneChangesRequest) (models.FetchZoneChangesResponse, error) {
	var out models.FetchZoneChangesResponse
	err := h.do(ctx, func(ctx context.Context) (*resty.Response, error) {
		return h.client.R().
			SetContext(ctx).
			SetBody(req).
			Post("/api/zones/" + url.PathEscape(req.ZoneID.ZoneName) + "/changes")
	}, &out)
	if err != nil {
		return models.FetchZoneChangesResponse{}, fmt.Errorf("fetch zone changes request: %w", err)
	}
	return out, nil
}

// FetchRecords implements [RemoteDatabase].
func (h *httpRemoteDatabase) FetchRecords(ctx context.Context, req models.FetchRecordsRequest) (models.FetchRecordsResponse, error) {
	var out models.FetchRecordsResponse
	err := h.do(ctx, func(ctx context.Context) (*resty.Response, error) {
		return h.client.R().
			SetContext(ctx).
			SetBody(req).
			Post("/api/records/fetch")
	}, &out)
	if err != nil {
		return models.FetchRecordsResponse{}, fmt.Errorf("fetch records request: %w", err)
	}
	return out, nil
}

type assetUploadResponse struct {
	Asset models.AssetReference `json:"asset"`
}

// UploadAsset implements [RemoteDatabase]. The payload is posted raw; the
// server answers with the minted asset reference.
func (h *httpRemoteDatabase) UploadAsset(ctx context.Context, data []byte) (models.AssetReference, error) {
	var out assetUploadResponse
	err := h.do(ctx, func(ctx context.Context) (*resty.Response, error) {
		return h.client.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/octet-stream").
			SetBody(data).
			Post("/api/assets")
	}, &out)
	if err != nil {
		return models.AssetReference{}, fmt.Errorf("upload asset request: %w", err)
	}
	return out.Asset, nil
}

// FetchAsset implements [RemoteDatabase].
func (h *httpRemoteDatabase) FetchAsset(ctx context.Context, ref models.AssetReference) ([]byte, error) {
	var body []byte
	err := h.do(ctx, func(ctx context.Context) (*resty.Response, error) {
		resp, reqErr := h.client.R().
			SetContext(ctx).
			Get("/api/assets/" + url.PathEscape(ref.AssetID))
		if reqErr == nil {
			body = resp.Body()
		}
		return resp, reqErr
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch asset request: %w", err)
	}
	return body, nil
}

// do runs one request with bounded exponential backoff. Only transport
// errors and 5xx responses are retryable; every 4xx maps to a terminal
// sentinel via mapHTTPError. When out is non-nil the 2xx body is decoded
// into it.
func (h *httpRemoteDatabase) do(ctx context.Context, send func(context.Context) (*resty.Response, error), out any) error {
	backoff := retry.WithMaxRetries(h.cfg.RetryAttempts, retry.NewExponential(h.cfg.RetryBase))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		resp, err := send(ctx)
		if err != nil {
			h.logger.Debug().Err(err).Msg("transport error, retrying")
			return retry.RetryableError(err)
		}
		if err = mapHTTPError(resp); err != nil {
			if resp.StatusCode() >= http.StatusInternalServerError {
				h.logger.Debug().Int("status", resp.StatusCode()).Msg("server error, retrying")
				return retry.RetryableError(err)
			}
			return err
		}
		if out != nil {
			if err = json.Unmarshal(resp.Body(), out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
		}
		return nil
	})
}

func mapHTTPError(resp *resty.Response) error {
	code := resp.StatusCode()
	if code >= http.StatusOK && code < http.StatusMultipleChoices {
		return nil
	}

	body := strings.TrimSpace(string(resp.Body()))
	if body == "" {
		body = http.StatusText(code)
	}

	switch code {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusNotFound:
		if strings.Contains(strings.ToLower(body), "zone") {
			return fmt.Errorf("%w: %s", ErrZoneNotFound, body)
		}
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", ErrConflict, body)
	case http.StatusGone:
		return fmt.Errorf("%w: %s", ErrTokenExpired, body)
	case http.StatusRequestEntityTooLarge:
		return fmt.Errorf("%w: %s", ErrBatchTooLarge, body)
	}
	if code >= http.StatusInternalServerError {
		return fmt.Errorf("%w: http %d: %s", ErrUnavailable, code, body)
	}
	return fmt.Errorf("http %d: %s", code, body)
}
