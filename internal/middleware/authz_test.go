package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"task-navigator/internal/middleware"
	"task-navigator/internal/services"
	"task-navigator/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v5"
)

func createTestToken(t *testing.T, subject string, expiresAt time.Time) string {
	t.Helper()
	cfg := testutil.AuthConfig()
	claims := services.Claims{
		Email: "user@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    cfg.JWTIssuer,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		t.Fatal("Failed to create test token:", err)
	}
	return token
}

func newProtectedRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)

	tokens := services.NewAuthService(nil, testutil.AuthConfig(), testutil.DiscardLogger())
	router := gin.New()
	router.Use(middleware.Authenticate(tokens))
	router.GET("/protected", func(c *gin.Context) {
		id, ok := middleware.CurrentUserID(c)
		if !ok {
			c.Status(http.StatusTeapot)
			return
		}
		c.JSON(http.StatusOK, gin.H{"user_id": id.String(), "email": c.GetString(middleware.ContextUserEmail)})
	})
	return router
}

func serveProtected(router *gin.Engine, authorization string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest("GET", "/protected", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAuthenticate_NoToken(t *testing.T) {
	w := serveProtected(newProtectedRouter(), "")

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}
}

func TestAuthenticate_WrongScheme(t *testing.T) {
	w := serveProtected(newProtectedRouter(), "Basic dXNlcjpwYXNz")

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}
}

func TestAuthenticate_InvalidToken(t *testing.T) {
	w := serveProtected(newProtectedRouter(), "Bearer invalid_token")

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}
}

func TestAuthenticate_ExpiredToken(t *testing.T) {
	token := createTestToken(t, uuid.Must(uuid.NewV4()).String(), time.Now().Add(-time.Minute))
	w := serveProtected(newProtectedRouter(), "Bearer "+token)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}
}

func TestAuthenticate_ValidToken(t *testing.T) {
	userID := uuid.Must(uuid.NewV4())
	token := createTestToken(t, userID.String(), time.Now().Add(time.Hour))

	w := serveProtected(newProtectedRouter(), "bearer "+token)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	expected := `{"email":"user@example.com","user_id":"` + userID.String() + `"}`
	if w.Body.String() != expected {
		t.Errorf("Expected body %s, got %s", expected, w.Body.String())
	}
}

func TestCurrentUserID_Missing(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	if _, ok := middleware.CurrentUserID(c); ok {
		t.Error("Expected no user on a fresh context")
	}

	c.Set(middleware.ContextUserID, "not-a-uuid")
	if _, ok := middleware.CurrentUserID(c); ok {
		t.Error("Expected a non-uuid value to be rejected")
	}
}
