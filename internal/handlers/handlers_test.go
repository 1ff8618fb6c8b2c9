package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/localserve/internal/config"
	"github.com/Windi-Fikriyansyah/localserve/internal/db"
	"github.com/Windi-Fikriyansyah/localserve/internal/models"
	"github.com/Windi-Fikriyansyah/localserve/internal/realtime"
	"github.com/Windi-Fikriyansyah/localserve/internal/services/auth"
	"github.com/Windi-Fikriyansyah/localserve/internal/services/chat"
	"github.com/Windi-Fikriyansyah/localserve/internal/services/directjob"
	"github.com/Windi-Fikriyansyah/localserve/internal/services/effects"
	"github.com/Windi-Fikriyansyah/localserve/internal/services/job"
	"github.com/Windi-Fikriyansyah/localserve/internal/services/moderation"
	"github.com/Windi-Fikriyansyah/localserve/internal/services/notification"
	"github.com/Windi-Fikriyansyah/localserve/internal/services/review"
	"github.com/Windi-Fikriyansyah/localserve/internal/services/user"
	"github.com/Windi-Fikriyansyah/localserve/internal/services/wallet"
	"github.com/Windi-Fikriyansyah/localserve/internal/utils"
)

const testSecret = "handler-secret"

type env struct {
	app *fiber.App
	db  *gorm.DB
}

type envelope struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Code    string              `json:"code"`
	Data    json.RawMessage     `json:"data"`
	Errors  map[string][]string `json:"errors"`
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gdb := db.OpenTest(t)
	hub := realtime.NewHub(nil)
	walletSvc := wallet.NewWalletService(gdb)
	applier := effects.NewApplier(walletSvc, nil)
	authSvc := auth.NewAuthService(gdb, nil, testSecret, 60, time.Minute)
	chatSvc := chat.NewChatService(gdb, hub)

	app := NewApp(Deps{
		Config: config.Config{
			JWTSecret:     testSecret,
			JWTExpiresMin: 60,
			CORSOrigins:   "http://localhost:3000",
		},
		Auth:              authSvc,
		Users:             user.NewUserService(gdb, chatSvc, walletSvc),
		Jobs:              job.NewJobService(gdb, applier, hub),
		DirectJobs:        directjob.NewDirectJobService(gdb, applier, hub),
		Reviews:           review.NewReviewService(gdb, applier),
		Reports:           moderation.NewReportService(gdb, applier, authSvc),
		Notifications:     notification.NewNotificationService(gdb, hub),
		Chat:              chatSvc,
		Hub:               hub,
		DisableRequestLog: true,
	})
	return &env{app: app, db: gdb}
}

func (e *env) do(t *testing.T, method, path, token string, body any) (int, envelope) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

// register signs up through the API and returns the bearer token and user id.
func (e *env) register(t *testing.T, name, role string) (string, string) {
	t.Helper()
	status, res := e.do(t, http.MethodPost, "/api/auth/register", "", fiber.Map{
		"name":     name,
		"email":    name + "@example.com",
		"password": "secret123",
		"role":     role,
	})
	require.Equal(t, http.StatusCreated, status, res.Message)
	var data struct {
		Token string `json:"token"`
		User  struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &data))
	return data.Token, data.User.ID
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestHealthz(t *testing.T) {
	e := newEnv(t)
	resp, err := e.app.Test(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRegisterSetsCookieAndMeWorks(t *testing.T) {
	e := newEnv(t)

	b, _ := json.Marshal(fiber.Map{"name": "ani", "email": "ani@example.com", "password": "secret123"})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var session *http.Cookie
	for _, ck := range resp.Cookies() {
		if ck.Name == utils.CookieName {
			session = ck
		}
	}
	require.NotNil(t, session)
	assert.True(t, session.HttpOnly)

	me := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	me.AddCookie(&http.Cookie{Name: utils.CookieName, Value: session.Value})
	resp, err = e.app.Test(me, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	status, _ := e.do(t, http.MethodGet, "/api/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestValidationErrorsAreFieldKeyed(t *testing.T) {
	e := newEnv(t)

	status, res := e.do(t, http.MethodPost, "/api/auth/register", "", fiber.Map{
		"name":     "x",
		"email":    "not-an-email",
		"password": "123",
		"role":     "admin",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", res.Code)
	assert.Contains(t, res.Errors, "email")
	assert.Contains(t, res.Errors, "password")
	assert.Contains(t, res.Errors, "role")

	e.register(t, "dup", "client")
	status, res = e.do(t, http.MethodPost, "/api/auth/register", "", fiber.Map{
		"name": "dup", "email": "dup@example.com", "password": "secret123",
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "EMAIL_TAKEN", res.Code)
}

func TestBannedUserIsRejectedEverywhere(t *testing.T) {
	e := newEnv(t)
	token, id := e.register(t, "banned", "provider")

	status, _ := e.do(t, http.MethodGet, "/api/me", token, nil)
	require.Equal(t, http.StatusOK, status)

	require.NoError(t, e.db.Model(&models.User{}).Where("id = ?", id).
		Updates(map[string]any{"status": models.UserBanned, "is_banned": true}).Error)

	status, res := e.do(t, http.MethodGet, "/api/me", token, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "ACCOUNT_INACTIVE", res.Code)

	status, res = e.do(t, http.MethodPost, "/api/auth/login", "", fiber.Map{
		"email": "banned@example.com", "password": "secret123",
	})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "ACCOUNT_INACTIVE", res.Code)
}

func TestHireAndCompleteOverHTTP(t *testing.T) {
	e := newEnv(t)
	clientTok, _ := e.register(t, "client", "client")
	providerTok, providerID := e.register(t, "provider", "provider")

	status, res := e.do(t, http.MethodPost, "/api/jobs", clientTok, fiber.Map{
		"title":    "Fix leaking sink",
		"category": "Plumbing",
		"budget":   "150000",
		"skills":   []string{"plumbing"},
	})
	require.Equal(t, http.StatusCreated, status, res.Message)
	posted := decode[models.Job](t, res.Data)
	assert.Equal(t, "plumbing", posted.Category)

	status, _ = e.do(t, http.MethodPost, "/api/jobs", providerTok, fiber.Map{"title": "nope"})
	assert.Equal(t, http.StatusForbidden, status)

	jobPath := "/api/jobs/" + posted.ID.String()
	status, res = e.do(t, http.MethodPost, jobPath+"/applications", providerTok, fiber.Map{
		"cover_letter":  "I can do it today",
		"proposed_rate": 140000,
	})
	require.Equal(t, http.StatusCreated, status, res.Message)
	app := decode[models.Application](t, res.Data)

	status, res = e.do(t, http.MethodPost, jobPath+"/applications", providerTok, fiber.Map{})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "ALREADY_APPLIED", res.Code)

	status, res = e.do(t, http.MethodPatch, "/api/applications/"+app.ID.String()+"/status", clientTok, fiber.Map{"status": "hired"})
	require.Equal(t, http.StatusOK, status, res.Message)

	status, res = e.do(t, http.MethodGet, jobPath, "", nil)
	require.Equal(t, http.StatusOK, status)
	j := decode[models.Job](t, res.Data)
	assert.Equal(t, models.JobInProgress, j.Status)
	require.NotNil(t, j.AssignedProviderID)
	assert.Equal(t, providerID, j.AssignedProviderID.String())

	status, res = e.do(t, http.MethodPatch, jobPath+"/status", clientTok, fiber.Map{"status": "completed"})
	require.Equal(t, http.StatusOK, status, res.Message)
	assert.Equal(t, models.JobCompleted, decode[models.Job](t, res.Data).Status)

	status, res = e.do(t, http.MethodPost, "/api/reviews", clientTok, fiber.Map{
		"job_id": posted.ID.String(), "rating": 5, "comment": "great",
	})
	require.Equal(t, http.StatusCreated, status, res.Message)

	status, res = e.do(t, http.MethodGet, "/api/users/"+providerID+"/reviews", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]models.Review](t, res.Data), 1)

	status, res = e.do(t, http.MethodGet, "/api/notifications/unread-count", providerTok, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]int64{"unread": 0}, decode[map[string]int64](t, res.Data), "delivery waits for the dispatcher")
}

func TestRoutingErrors(t *testing.T) {
	e := newEnv(t)
	clientTok, _ := e.register(t, "client", "client")

	status, res := e.do(t, http.MethodGet, "/api/jobs/00000000-0000-0000-0000-000000000001", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", res.Code)

	status, _ = e.do(t, http.MethodGet, "/api/jobs/recommended", clientTok, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = e.do(t, http.MethodGet, "/api/admin/reports", clientTok, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, res = e.do(t, http.MethodGet, "/api/jobs?status=bogus", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", res.Code)

	status, _ = e.do(t, http.MethodGet, "/ws", clientTok, nil)
	assert.Equal(t, http.StatusUpgradeRequired, status)
}

func TestAdminResolvesReport(t *testing.T) {
	e := newEnv(t)
	reporterTok, _ := e.register(t, "reporter", "client")
	badTok, badID := e.register(t, "bad", "provider")

	hash, err := utils.HashPassword("secret123")
	require.NoError(t, err)
	admin := models.User{Name: "admin", Email: "admin@example.com", Password: hash, Role: models.RoleAdmin}
	require.NoError(t, e.db.Create(&admin).Error)
	adminTok, err := utils.SignJWT(testSecret, admin.ID.String(), "admin", 60)
	require.NoError(t, err)

	status, res := e.do(t, http.MethodPost, "/api/reports", reporterTok, fiber.Map{
		"reported_user_id": badID, "reason": "no-show",
	})
	require.Equal(t, http.StatusCreated, status, res.Message)
	rep := decode[models.Report](t, res.Data)

	status, res = e.do(t, http.MethodPatch, "/api/admin/reports/"+rep.ID.String(), adminTok, fiber.Map{
		"status": "resolved", "action_taken": "suspend",
	})
	require.Equal(t, http.StatusOK, status, res.Message)

	status, res = e.do(t, http.MethodGet, "/api/me", badTok, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "ACCOUNT_INACTIVE", res.Code)
}
