package google

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"google.golang.org/api/option"
)

// fakeAPI serves canned Google API responses
func fakeAPI(t *testing.T, handler http.HandlerFunc) []option.ClientOption {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return []option.ClientOption{
		option.WithEndpoint(srv.URL + "/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(srv.Client()),
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func apiErrorBody(code int, message, reason string) map[string]interface{} {
	return map[string]interface{}{
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
			"errors":  []map[string]string{{"reason": reason, "message": message}},
		},
	}
}
