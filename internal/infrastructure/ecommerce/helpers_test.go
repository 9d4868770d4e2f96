package ecommerce

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/mgastron/mvgtms-sub000/internal/domain/integration"
	"github.com/mgastron/mvgtms-sub000/internal/infrastructure/config"
)

func newTestServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func testProviderConfig(baseURL string) config.ProviderConfig {
	return config.ProviderConfig{
		ClientID:     "app-id",
		ClientSecret: "app-secret",
		RedirectURI:  "https://tms.example.com/oauth/callback",
		AuthURL:      baseURL + "/authorize",
		TokenURL:     baseURL + "/token",
		APIBaseURL:   baseURL,
		APIVersion:   "2024-01",
	}
}

func testClient() *integration.Client {
	return &integration.Client{ID: uuid.New(), Code: "C1", Name: "Acme"}
}

func decodeJSON(r *http.Request, out any) error {
	return json.NewDecoder(r.Body).Decode(out)
}
