package credential

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDefault_NoCredential_ReturnsAbsent(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/fuel-sales", nil)

	token, ok := Default().Extract(req)
	if ok {
		t.Errorf("expected absent, got token %q", token)
	}
}

func TestDefault_CookieOnly(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "cookie-token"})

	token, ok := Default().Extract(req)
	if !ok {
		t.Fatal("expected token to be found")
	}
	if token != "cookie-token" {
		t.Errorf("token = %q, want %q", token, "cookie-token")
	}
}

func TestDefault_BearerOnly(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer header-token")

	token, ok := Default().Extract(req)
	if !ok {
		t.Fatal("expected token to be found")
	}
	if token != "header-token" {
		t.Errorf("token = %q, want %q", token, "header-token")
	}
}

func TestDefault_CookieWinsOverBearer(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "cookie-token"})
	req.Header.Set("Authorization", "Bearer header-token")

	token, _ := Default().Extract(req)
	if token != "cookie-token" {
		t.Errorf("token = %q, want cookie value %q", token, "cookie-token")
	}
}

func TestDefault_EmptyCookieFallsBackToBearer(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: ""})
	req.Header.Set("Authorization", "Bearer header-token")

	token, ok := Default().Extract(req)
	if !ok || token != "header-token" {
		t.Errorf("Extract() = (%q, %v), want (%q, true)", token, ok, "header-token")
	}
}

func TestBearerExtractor_RejectsOtherSchemes(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"basic scheme", "Basic dXNlcjpwYXNz"},
		{"lowercase bearer", "bearer token"},
		{"prefix only", "Bearer "},
		{"no space", "Bearertoken"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if token, ok := (BearerExtractor{}).Extract(req); ok {
				t.Errorf("expected absent for %q, got %q", tt.header, token)
			}
		})
	}
}

func TestBearerExtractor_DoesNotValidateShape(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer  spaced token ")

	token, ok := (BearerExtractor{}).Extract(req)
	if !ok {
		t.Fatal("expected token to be found")
	}
	if token != " spaced token " {
		t.Errorf("token = %q, want %q", token, " spaced token ")
	}
}

func TestCookieExtractor_OtherCookieName_ReturnsAbsent(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "legacy"})

	if _, ok := (CookieExtractor{Name: SessionCookieName}).Extract(req); ok {
		t.Error("expected absent for unrelated cookie")
	}
}

func TestChain_Empty_ReturnsAbsent(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer header-token")

	if _, ok := (Chain{}).Extract(req); ok {
		t.Error("expected empty chain to find nothing")
	}
}
