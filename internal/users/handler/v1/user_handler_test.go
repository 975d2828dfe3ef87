// Copyright © 2025 jackelyj <dreamerlyj@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
//

package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shopmesh/shopmesh/internal/pkg/token"
	"github.com/shopmesh/shopmesh/internal/users/model"
	"github.com/shopmesh/shopmesh/internal/users/repository"
	"github.com/shopmesh/shopmesh/internal/users/service"
)

var testSecret = []byte("test-secret")

type mockUserService struct {
	mock.Mock
}

func (m *mockUserService) Register(ctx context.Context, req model.RegisterRequest) (*model.User, error) {
	args := m.Called(ctx, req)
	if u := args.Get(0); u != nil {
		return u.(*model.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserService) Login(ctx context.Context, email, password string) (string, time.Time, error) {
	args := m.Called(ctx, email, password)
	return args.String(0), args.Get(1).(time.Time), args.Error(2)
}

func (m *mockUserService) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	args := m.Called(ctx, id)
	if u := args.Get(0); u != nil {
		return u.(*model.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func setupRouter(svc service.UserService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewUserHandler(svc, testSecret).RegisterRoutes(router)
	return router
}

func postJSON(router *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestRegister(t *testing.T) {
	userID := uuid.New()

	tests := []struct {
		name       string
		body       interface{}
		setup      func(svc *mockUserService)
		wantStatus int
		wantBody   string
	}{
		{
			name: "created",
			body: model.RegisterRequest{Email: "a@example.com", Password: "secret1"},
			setup: func(svc *mockUserService) {
				svc.On("Register", mock.Anything, mock.Anything).
					Return(&model.User{ID: userID, Email: "a@example.com", Role: "user"}, nil)
			},
			wantStatus: http.StatusCreated,
			wantBody:   "a@example.com",
		},
		{
			name: "duplicate email",
			body: model.RegisterRequest{Email: "a@example.com", Password: "secret1"},
			setup: func(svc *mockUserService) {
				svc.On("Register", mock.Anything, mock.Anything).
					Return(nil, service.ErrEmailTaken)
			},
			wantStatus: http.StatusConflict,
			wantBody:   "already registered",
		},
		{
			name:       "invalid body",
			body:       map[string]string{"email": "not-an-email"},
			setup:      func(svc *mockUserService) {},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockUserService{}
			tt.setup(svc)

			w := postJSON(setupRouter(svc), "/users", tt.body)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantBody != "" {
				assert.Contains(t, w.Body.String(), tt.wantBody)
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestLogin(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		svc := &mockUserService{}
		expiresAt := time.Now().Add(24 * time.Hour)
		svc.On("Login", mock.Anything, "a@example.com", "secret1").
			Return("signed-token", expiresAt, nil)

		w := postJSON(setupRouter(svc), "/token",
			model.LoginRequest{Email: "a@example.com", Password: "secret1"})

		require.Equal(t, http.StatusOK, w.Code)
		var resp model.LoginResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "signed-token", resp.AccessToken)
		assert.Equal(t, "bearer", resp.TokenType)
		assert.Equal(t, expiresAt.Unix(), resp.ExpiresAt)
	})

	t.Run("bad credentials", func(t *testing.T) {
		svc := &mockUserService{}
		svc.On("Login", mock.Anything, "a@example.com", "wrong1").
			Return("", time.Time{}, service.ErrInvalidCredentials)

		w := postJSON(setupRouter(svc), "/token",
			model.LoginRequest{Email: "a@example.com", Password: "wrong1"})

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestMe(t *testing.T) {
	userID := uuid.New()
	raw, _, err := token.Generate(userID.String(), "a@example.com", "user", testSecret)
	require.NoError(t, err)

	t.Run("ok", func(t *testing.T) {
		svc := &mockUserService{}
		svc.On("GetByID", mock.Anything, userID).
			Return(&model.User{ID: userID, Email: "a@example.com", Role: "user"}, nil)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
		req.Header.Set("Authorization", "Bearer "+raw)
		setupRouter(svc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), userID.String())
	})

	t.Run("unknown user", func(t *testing.T) {
		svc := &mockUserService{}
		svc.On("GetByID", mock.Anything, userID).
			Return(nil, repository.ErrUserNotFound)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
		req.Header.Set("Authorization", "Bearer "+raw)
		setupRouter(svc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("no token", func(t *testing.T) {
		svc := &mockUserService{}

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
		setupRouter(svc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
