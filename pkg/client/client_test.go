package client

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

const secretJSON = `{"installed":{"client_id":"id.apps.googleusercontent.com","client_secret":"s3cret",` +
	`"auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token",` +
	`"redirect_uris":["http://localhost"]}}`

func TestTokenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")
	want := &oauth2.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	if err := SaveToken(path, want); err != nil {
		t.Fatalf("SaveToken() error = %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat token: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("token permissions = %o, want 600", perm)
	}

	got, err := LoadToken(path)
	if err != nil {
		t.Fatalf("LoadToken() error = %v", err)
	}
	if got.AccessToken != want.AccessToken || got.RefreshToken != want.RefreshToken || !got.Expiry.Equal(want.Expiry) {
		t.Errorf("LoadToken() = %+v, want %+v", got, want)
	}
}

func TestLoadToken_Errors(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadToken(filepath.Join(dir, "missing.json")); !errors.Is(err, ErrNoToken) {
		t.Errorf("missing token: got %v, want ErrNoToken", err)
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte("not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadToken(bad); err == nil || errors.Is(err, ErrNoToken) {
		t.Errorf("corrupt token: got %v, want decode error", err)
	}
}

func TestNewFromJSON_ReusesSavedToken(t *testing.T) {
	tokenFile := filepath.Join(t.TempDir(), "token.json")
	if err := SaveToken(tokenFile, &oauth2.Token{AccessToken: "access", Expiry: time.Now().Add(time.Hour)}); err != nil {
		t.Fatal(err)
	}

	c, err := NewFromJSON([]byte(secretJSON), tokenFile, "https://www.googleapis.com/auth/gmail.modify")
	if err != nil {
		t.Fatalf("NewFromJSON() error = %v", err)
	}
	if c == nil {
		t.Fatal("NewFromJSON() returned nil client")
	}
}

func TestNewFromJSON_BadSecret(t *testing.T) {
	if _, err := NewFromJSON([]byte("{}"), filepath.Join(t.TempDir(), "token.json")); err == nil {
		t.Error("NewFromJSON() error = nil, want error")
	}
}

func TestCached(t *testing.T) {
	dir := t.TempDir()
	secret := filepath.Join(dir, "client_secret.json")
	if err := os.WriteFile(secret, []byte(secretJSON), 0o600); err != nil {
		t.Fatal(err)
	}
	tokenFile := filepath.Join(dir, "token.json")

	if _, err := Cached(secret, tokenFile); !errors.Is(err, ErrNoToken) {
		t.Errorf("Cached() without token: got %v, want ErrNoToken", err)
	}

	if err := SaveToken(tokenFile, &oauth2.Token{AccessToken: "access"}); err != nil {
		t.Fatal(err)
	}
	if _, err := Cached(secret, tokenFile); err != nil {
		t.Errorf("Cached() error = %v", err)
	}
}

func TestCallbackHandler(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantCode   string
		wantErr    bool
		wantResult bool
	}{
		{name: "success", query: "?state=xyz&code=abc", wantStatus: http.StatusOK, wantCode: "abc", wantResult: true},
		{name: "foreign state ignored", query: "?state=other&code=abc", wantStatus: http.StatusBadRequest},
		{name: "provider error", query: "?state=xyz&error=access_denied", wantStatus: http.StatusBadRequest, wantErr: true, wantResult: true},
		{name: "missing code", query: "?state=xyz", wantStatus: http.StatusBadRequest, wantErr: true, wantResult: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			results := make(chan callbackResult, 1)
			rec := httptest.NewRecorder()
			callbackHandler("xyz", results).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, callbackPath+tc.query, nil))

			if rec.Code != tc.wantStatus {
				t.Errorf("status: got %d, want %d", rec.Code, tc.wantStatus)
			}
			select {
			case res := <-results:
				if !tc.wantResult {
					t.Fatalf("unexpected result %+v", res)
				}
				if res.code != tc.wantCode {
					t.Errorf("code: got %q, want %q", res.code, tc.wantCode)
				}
				if (res.err != nil) != tc.wantErr {
					t.Errorf("err: got %v, want error %v", res.err, tc.wantErr)
				}
			default:
				if tc.wantResult {
					t.Fatal("no result reported")
				}
			}
		})
	}
}
