package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck_Healthy(t *testing.T) {
	c := NewChecker()
	c.AddDatabase("sessions", func(ctx context.Context) error { return nil })
	c.SetSubscriberCount(func() int { return 3 })

	status := c.Check(context.Background())
	assert.True(t, status.Healthy)
	assert.True(t, status.DatabaseConnected)
	assert.False(t, status.NATSConnected)
	assert.Equal(t, 3, status.Subscribers)
	assert.Empty(t, status.Errors)
}

func TestCheck_DatabaseDown(t *testing.T) {
	c := NewChecker()
	c.AddDatabase("sessions", func(ctx context.Context) error { return nil })
	c.AddDatabase("users", func(ctx context.Context) error { return errors.New("connection refused") })

	w := httptest.NewRecorder()
	c.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var status Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.False(t, status.Healthy)
	assert.False(t, status.DatabaseConnected)
	require.Len(t, status.Errors, 1)
	assert.Contains(t, status.Errors[0], "users ping failed")
}
