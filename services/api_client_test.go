package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shift-staffing-client/config"
	"shift-staffing-client/middleware"
	"shift-staffing-client/models"
)

func TestClientTimeoutIsNetworkError(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	transport := &http.Transport{}
	defer transport.CloseIdleConnections()
	client := NewAPIClient(config.APIConfig{BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, NewSession("", 0, 0), nil, WithTransport(transport))

	_, err := client.GetShift(context.Background(), 1)
	var ne *NetworkError
	require.ErrorAs(t, err, &ne)
	assert.True(t, ne.Timeout)
	assert.True(t, IsNetwork(err))
}

func TestClientMapsServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/shifts/1/apply":
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"success":false,"message":"Shift is already filled"}`))
		case "/swap-requests":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"success":false,"message":"Validation failed","errors":[{"field":"reason","message":"is required","code":"invalid"}]}`))
		default:
			assert.NotEmpty(t, r.Header.Get(middleware.RequestIDHeader))
			assert.Equal(t, "Bearer abc", r.Header.Get("Authorization"))
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer srv.Close()

	transport := &http.Transport{}
	defer transport.CloseIdleConnections()
	session := NewSession("abc", 101, 1)
	invalidated := 0
	session.OnInvalidate(func() { invalidated++ })
	client := NewAPIClient(config.APIConfig{BaseURL: srv.URL}, session, nil, WithTransport(transport))
	ctx := context.Background()

	_, err := client.ApplyForShift(ctx, 1, ApplyRequest{NurseID: 1})
	require.True(t, IsConflict(err))
	assert.Contains(t, err.Error(), "Shift is already filled")

	_, err = client.CreateSwapRequest(ctx, models.CreateSwapRequest{})
	var se *ServerError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.Status)
	require.Len(t, se.Errors, 1)
	assert.Equal(t, "reason", se.Errors[0].Field)

	require.True(t, session.Valid())
	_, err = client.GetShift(ctx, 1)
	assert.True(t, errors.Is(err, ErrUnauthorized))
	assert.False(t, session.Valid())
	assert.Equal(t, "abc", session.Token())

	_, err = client.GetShift(ctx, 1)
	assert.True(t, errors.Is(err, ErrUnauthorized))
	assert.Equal(t, 1, invalidated)
}

func TestUnauthorizedInvalidatesEngineSession(t *testing.T) {
	h := newHarness(t)
	require.True(t, h.engine.Session.Valid())

	h.engine.Session.SetToken("not-a-token", 101, 1)
	err := h.engine.Shifts.LoadAvailableShifts(context.Background())
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.False(t, h.engine.Session.Valid())
	assert.ErrorIs(t, h.engine.Shifts.Err(), ErrUnauthorized)
}
