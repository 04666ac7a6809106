package util

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/Stagnxzione/ra-userbot/internal/repository"
	"github.com/Stagnxzione/ra-userbot/internal/tracker"
)

func TestToDomainError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{"domain error passes through", NewConfigMissing("BOT_TOKEN"), "CONFIG_MISSING", http.StatusServiceUnavailable},
		{"wrapped draft not found", fmt.Errorf("wizard: save notes: %w", repository.ErrNotFound), "NOT_FOUND", http.StatusNotFound},
		{"tracker api error", &tracker.APIError{Status: 400, Messages: []string{"bad field"}}, "TRACKER_REJECTED", http.StatusBadGateway},
		{"tracker bad body", &tracker.DecodeError{Status: 200, Body: "<html>"}, "TRACKER_BAD_RESPONSE", http.StatusBadGateway},
		{"tracker network", &tracker.NetworkError{Err: errors.New("dial tcp: timeout")}, "TRACKER_UNAVAILABLE", http.StatusGatewayTimeout},
		{"anything else", errors.New("boom"), "INTERNAL_ERROR", http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			de := ToDomainError(tc.err)
			if de.Code != tc.code || de.HTTPStatus != tc.status {
				t.Errorf("ToDomainError = %s/%d, want %s/%d", de.Code, de.HTTPStatus, tc.code, tc.status)
			}
		})
	}

	if ToDomainError(nil) != nil {
		t.Error("ToDomainError(nil) != nil")
	}
}

func TestTrackerRejectionDetails(t *testing.T) {
	de := ToDomainError(&tracker.APIError{
		Status:      400,
		Messages:    []string{"Field 'summary' is required"},
		FieldErrors: map[string]string{"customfield_1": "bad"},
	})
	if de.Details["status"] != 400 {
		t.Errorf("status detail = %v, want 400", de.Details["status"])
	}
	if msgs, _ := de.Details["messages"].([]string); len(msgs) != 1 {
		t.Errorf("messages detail = %v", de.Details["messages"])
	}
	if !errors.As(de, new(*tracker.APIError)) {
		t.Error("original tracker error not unwrappable")
	}
}
