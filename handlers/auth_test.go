package handlers

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"shop-svc/middleware"
	"shop-svc/models"
	"shop-svc/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
)

var testSecret = []byte("test-secret")

func setupAuthTest(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *gin.Engine) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}

	logger := zaptest.NewLogger(t, zaptest.Level(zap.InfoLevel))
	handler := NewAuthHandler(repository.NewSessionFactory(db), testSecret, time.Hour, logger)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/auth/register", handler.Register)
	router.POST("/auth/login", handler.Login)

	return db, mock, router
}

func postJSON(router *gin.Engine, path string, v any) *httptest.ResponseRecorder {
	body, _ := json.Marshal(v)
	req := httptest.NewRequest("POST", path, bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAuthHandler_Register_Success(t *testing.T) {
	db, mock, router := setupAuthTest(t)
	defer db.Close()

	mock.ExpectQuery("SELECT id FROM users WHERE email = \\$1").
		WithArgs("test@example.com").
		WillReturnError(sql.ErrNoRows)

	mock.ExpectQuery("INSERT INTO users").
		WithArgs("testuser", "test@example.com", sqlmock.AnyArg(), models.RoleCustomer).
		WillReturnRows(sqlmock.NewRows([]string{"id", "balance", "created_at"}).
			AddRow(1, "0", time.Now()))

	w := postJSON(router, "/auth/register", models.RegisterRequest{
		Username: "testuser",
		Email:    "test@example.com",
		Password: "password123",
	})

	if w.Code != http.StatusCreated {
		t.Errorf("Expected status %d, got %d", http.StatusCreated, w.Code)
	}

	var user models.User
	json.Unmarshal(w.Body.Bytes(), &user)
	if user.ID != 1 || user.Role != models.RoleCustomer {
		t.Errorf("Unexpected user: %+v", user)
	}
	if bytes.Contains(w.Body.Bytes(), []byte("password")) {
		t.Errorf("Password hash must not be serialized: %s", w.Body.String())
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestAuthHandler_Register_UserExists(t *testing.T) {
	db, mock, router := setupAuthTest(t)
	defer db.Close()

	mock.ExpectQuery("SELECT id FROM users WHERE email = \\$1").
		WithArgs("test@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	w := postJSON(router, "/auth/register", models.RegisterRequest{
		Name:     "Test",
		Email:    "test@example.com",
		Password: "password123",
	})

	if w.Code != http.StatusConflict {
		t.Errorf("Expected status %d, got %d", http.StatusConflict, w.Code)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestAuthHandler_Register_InvalidInput(t *testing.T) {
	db, _, router := setupAuthTest(t)
	defer db.Close()

	tests := []struct {
		name string
		body map[string]string
	}{
		{"missing email", map[string]string{"name": "Test", "password": "password123"}},
		{"short password", map[string]string{"name": "Test", "email": "test@example.com", "password": "123"}},
		{"missing name", map[string]string{"email": "test@example.com", "password": "password123"}},
		{"admin role", map[string]string{"name": "Test", "email": "test@example.com", "password": "password123", "role": "admin"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(router, "/auth/register", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected status %d, got %d", http.StatusBadRequest, w.Code)
			}
		})
	}
}

func TestAuthHandler_Register_DatabaseError(t *testing.T) {
	db, mock, router := setupAuthTest(t)
	defer db.Close()

	mock.ExpectQuery("SELECT id FROM users WHERE email = \\$1").
		WithArgs("test@example.com").
		WillReturnError(errors.New("connection reset"))

	w := postJSON(router, "/auth/register", models.RegisterRequest{
		Name:     "Test",
		Email:    "test@example.com",
		Password: "password123",
	})

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status %d, got %d", http.StatusInternalServerError, w.Code)
	}
}

func userRowWithHash(t *testing.T, password string) *sqlmock.Rows {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}
	return sqlmock.NewRows([]string{"id", "name", "email", "role", "balance", "created_at", "password_hash"}).
		AddRow(7, "Seller", "seller@example.com", "seller", "12.50", time.Now(), string(hash))
}

func TestAuthHandler_Login_Success(t *testing.T) {
	db, mock, router := setupAuthTest(t)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM users WHERE email = \\$1").
		WithArgs("seller@example.com").
		WillReturnRows(userRowWithHash(t, "password123"))

	w := postJSON(router, "/auth/login", models.LoginRequest{
		Email:    "seller@example.com",
		Password: "password123",
	})

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	var resp models.LoginResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	claims, err := middleware.ParseToken(testSecret, resp.Token)
	if err != nil {
		t.Fatalf("Expected a valid token, got %v", err)
	}
	if claims.UserID != 7 || claims.Role != models.RoleSeller {
		t.Errorf("Unexpected claims: %+v", claims)
	}
}

func TestAuthHandler_Login_WrongPassword(t *testing.T) {
	db, mock, router := setupAuthTest(t)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM users WHERE email = \\$1").
		WithArgs("seller@example.com").
		WillReturnRows(userRowWithHash(t, "password123"))

	w := postJSON(router, "/auth/login", models.LoginRequest{
		Email:    "seller@example.com",
		Password: "wrong-password",
	})

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}
}

func TestAuthHandler_Login_UnknownUser(t *testing.T) {
	db, mock, router := setupAuthTest(t)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM users WHERE email = \\$1").
		WithArgs("nobody@example.com").
		WillReturnError(sql.ErrNoRows)

	w := postJSON(router, "/auth/login", models.LoginRequest{
		Email:    "nobody@example.com",
		Password: "password123",
	})

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}
}
