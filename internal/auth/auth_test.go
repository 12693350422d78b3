package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func testTokens() TokenService {
	return TokenService{Secret: []byte("test-secret"), Issuer: "arnime", Duration: time.Hour}
}

func TestTokenRoundTrip(t *testing.T) {
	ts := testTokens()
	in := &User{UID: "g-123", Name: "Aiko", Email: "aiko@example.com", Picture: "https://img/a.png"}

	token, exp, err := ts.Sign(in)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, time.Minute)

	claims, err := ts.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, in, claims.User())
}

func TestParseRejectsForeignSecret(t *testing.T) {
	token, _, err := testTokens().Sign(&User{UID: "g-123"})
	require.NoError(t, err)

	other := testTokens()
	other.Secret = []byte("another-secret")
	_, err = other.Parse(token)
	var authErr *Error
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, "parse", authErr.Op)
}

func TestParseRejectsExpired(t *testing.T) {
	ts := testTokens()
	ts.Duration = -time.Minute
	token, _, err := ts.Sign(&User{UID: "g-123"})
	require.NoError(t, err)

	_, err = ts.Parse(token)
	assert.Error(t, err)
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Aiko", (&User{Name: "Aiko", Email: "a@x"}).DisplayName())
	assert.Equal(t, "a@x", (&User{Email: "a@x"}).DisplayName())
	assert.Equal(t, "User", (&User{}).DisplayName())
}

func TestCurrentUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	assert.Nil(t, CurrentUser(c))
	assert.Equal(t, "", CurrentUserID(c))

	SetUser(c, &User{UID: "g-1"})
	assert.Equal(t, "g-1", CurrentUserID(c))
}

func TestGoogleProviderExchange(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "the-code", r.PostForm.Get("code"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"at-1","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer at-1", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"sub":"1098","name":"Aiko","email":"aiko@example.com","picture":"https://img/a.png"}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	p := NewGoogleProvider("client", "secret", "http://localhost:8080/auth/callback").
		WithEndpoint(oauth2.Endpoint{AuthURL: server.URL + "/auth", TokenURL: server.URL + "/token"}, server.URL+"/userinfo")

	authURL, err := url.Parse(p.AuthCodeURL("st-1"))
	require.NoError(t, err)
	assert.Equal(t, "st-1", authURL.Query().Get("state"))
	assert.Equal(t, "client", authURL.Query().Get("client_id"))

	u, err := p.Exchange(context.Background(), "the-code")
	require.NoError(t, err)
	assert.Equal(t, &User{UID: "1098", Name: "Aiko", Email: "aiko@example.com", Picture: "https://img/a.png"}, u)
}

func TestGoogleProviderExchangeFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
	}))
	defer server.Close()

	p := NewGoogleProvider("client", "secret", "http://localhost/cb").
		WithEndpoint(oauth2.Endpoint{AuthURL: server.URL + "/auth", TokenURL: server.URL + "/token"}, server.URL+"/userinfo")

	_, err := p.Exchange(context.Background(), "bad")
	var authErr *Error
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, "exchange", authErr.Op)
}
