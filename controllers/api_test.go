package controllers_test

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/crisha-app/crisha-backend/config"
	"github.com/crisha-app/crisha-backend/models"
	"github.com/crisha-app/crisha-backend/routes"
	"github.com/crisha-app/crisha-backend/services"
)

type testEnv struct {
	router *gin.Engine
	db     *gorm.DB
	cfg    config.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "api.db")), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := config.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := config.Config{
		JWTSecret:             "test-secret",
		UploadDir:             t.TempDir(),
		MaxUploadSize:         20 << 20,
		MaxConcurrentAnalyses: 2,
		RobokassaLogin:        "crisha",
		RobokassaPassword1:    "pass1",
		RobokassaPassword2:    "pass2",
		RobokassaBaseURL:      "https://auth.robokassa.ru/Merchant/Index.aspx",
		ProPrice:              990,
		ProChecks:             20,
		BusinessPrice:         2990,
		BusinessChecks:        100,
	}

	pipeline := services.NewPipeline(db, &services.MockAnalyzer{}, cfg.UploadDir, cfg.MaxConcurrentAnalyses, zerolog.Nop())
	robokassa := services.NewRobokassaClient(cfg.RobokassaLogin, cfg.RobokassaPassword1, cfg.RobokassaPassword2, cfg.RobokassaBaseURL)

	router := routes.SetupRouter(gin.New(), db, cfg, pipeline, robokassa)
	return &testEnv{router: router, db: db, cfg: cfg}
}

func (e *testEnv) doJSON(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) register(t *testing.T, username string) string {
	t.Helper()
	w := e.doJSON(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"username": username,
		"email":    username + "@example.com",
		"password": "password12345",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register: code = %d, body = %s", w.Code, w.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode register response: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("register response has no token")
	}
	return resp.Token
}

func (e *testEnv) uploadFile(t *testing.T, token, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	fw.Write(content)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/analyze", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) profileByUsername(t *testing.T, username string) models.Profile {
	t.Helper()
	var user models.User
	if err := e.db.Preload("Profile").Where("username = ?", username).First(&user).Error; err != nil {
		t.Fatalf("load user %s: %v", username, err)
	}
	return user.Profile
}

func TestRegisterCreatesProfile(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice")

	profile := env.profileByUsername(t, "alice")
	if profile.ChecksRemaining != 3 {
		t.Errorf("checks_remaining = %d, want 3", profile.ChecksRemaining)
	}
	if profile.SubscriptionTier != models.TierFree {
		t.Errorf("tier = %s, want free", profile.SubscriptionTier)
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "bob")

	w := env.doJSON(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"username": "bob",
		"email":    "bob2@example.com",
		"password": "password12345",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("code = %d, want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), "already exists") {
		t.Errorf("body should mention the duplicate: %s", w.Body.String())
	}
}

func TestLoginWrongPassword(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "carol")

	w := env.doJSON(t, http.MethodPost, "/api/auth/login", "", gin.H{
		"username": "carol",
		"password": "wrong-password",
	})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("code = %d, want 401", w.Code)
	}
}

func TestChangePasswordWrongCurrent(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "dave")

	w := env.doJSON(t, http.MethodPost, "/api/user/change-password", token, gin.H{
		"old_password": "not-the-password",
		"new_password": "newpassword123",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("code = %d, want 400", w.Code)
	}
}

func TestChangePasswordAndLogin(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "erin")

	w := env.doJSON(t, http.MethodPost, "/api/user/change-password", token, gin.H{
		"old_password": "password12345",
		"new_password": "evenbetterpass",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("change password: code = %d, body = %s", w.Code, w.Body.String())
	}

	w = env.doJSON(t, http.MethodPost, "/api/auth/login", "", gin.H{
		"username": "erin",
		"password": "evenbetterpass",
	})
	if w.Code != http.StatusOK {
		t.Errorf("login with new password: code = %d", w.Code)
	}
}

func TestUserInfo(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "frank")

	w := env.doJSON(t, http.MethodGet, "/api/user/info", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d, body = %s", w.Code, w.Body.String())
	}
	var resp struct {
		Username string `json:"username"`
		Profile  struct {
			ChecksRemaining int `json:"checks_remaining"`
		} `json:"profile"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Username != "frank" || resp.Profile.ChecksRemaining != 3 {
		t.Errorf("unexpected user info: %s", w.Body.String())
	}
}

func TestAnalyzeRequiresFile(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "gina")

	w := env.doJSON(t, http.MethodPost, "/api/analyze", token, gin.H{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("code = %d, want 400", w.Code)
	}
}

func TestAnalyzeUnsupportedType(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "henry")

	w := env.uploadFile(t, token, "table.xlsx", []byte("cells"))
	if w.Code != http.StatusBadRequest {
		t.Errorf("code = %d, want 400", w.Code)
	}
}

func TestAnalyzeQuotaExhausted(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "ivan")

	if err := env.db.Model(&models.Profile{}).Where("1 = 1").Update("checks_remaining", 0).Error; err != nil {
		t.Fatalf("drain quota: %v", err)
	}

	w := env.uploadFile(t, token, "contract.txt", []byte("Договор аренды, достаточно длинный текст для анализа."))
	if w.Code != http.StatusForbidden {
		t.Errorf("code = %d, want 403", w.Code)
	}

	var docs int64
	env.db.Model(&models.Document{}).Count(&docs)
	if docs != 0 {
		t.Error("no document may be created when the quota is exhausted")
	}
}

func TestAnalyzeCreatesPendingDocument(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "judy")

	w := env.uploadFile(t, token, "contract.txt", []byte("Договор оказания услуг. Исполнитель обязуется оказать услуги, а Заказчик оплатить их."))
	if w.Code != http.StatusCreated {
		t.Fatalf("code = %d, body = %s", w.Code, w.Body.String())
	}
	var doc models.Document
	if err := json.Unmarshal(w.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode document: %v", err)
	}
	if doc.Status != models.StatusPending {
		t.Errorf("status = %s, want pending", doc.Status)
	}
	if doc.OriginalName != "contract.txt" {
		t.Errorf("original_name = %s", doc.OriginalName)
	}
}

func TestDocumentsListIsolation(t *testing.T) {
	env := newTestEnv(t)
	tokenA := env.register(t, "kate")
	tokenB := env.register(t, "liam")

	w := env.uploadFile(t, tokenA, "a.txt", []byte("Договор номер один, достаточно длинный текст для анализа."))
	if w.Code != http.StatusCreated {
		t.Fatalf("upload: %d", w.Code)
	}
	var doc models.Document
	json.Unmarshal(w.Body.Bytes(), &doc)

	// Owner sees the document.
	w = env.doJSON(t, http.MethodGet, "/api/documents", tokenA, nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), doc.ID.String()) {
		t.Errorf("owner list: code = %d body = %s", w.Code, w.Body.String())
	}

	// Another user gets an empty list and a 404 on detail.
	w = env.doJSON(t, http.MethodGet, "/api/documents", tokenB, nil)
	if strings.Contains(w.Body.String(), doc.ID.String()) {
		t.Error("documents leaked across users")
	}
	w = env.doJSON(t, http.MethodGet, "/api/documents/"+doc.ID.String(), tokenB, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("foreign detail: code = %d, want 404", w.Code)
	}

	// Anonymous gets an empty list.
	w = env.doJSON(t, http.MethodGet, "/api/documents", "", nil)
	if w.Code != http.StatusOK || strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("anonymous list: code = %d body = %s", w.Code, w.Body.String())
	}
}

func TestDownloadWithoutImprovedFile(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "mona")

	// Too short to analyze: processing fails and never produces an
	// improved file, so the 404 below does not race the pipeline.
	w := env.uploadFile(t, token, "c.txt", []byte("Коротко."))
	var doc models.Document
	json.Unmarshal(w.Body.Bytes(), &doc)

	w = env.doJSON(t, http.MethodGet, "/api/documents/"+doc.ID.String()+"/download", token, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("code = %d, want 404 while no improved file exists", w.Code)
	}
}

func webhookSignature(outSum, invID, password2 string) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%s:%s:%s", outSum, invID, password2)))
	return hex.EncodeToString(sum[:])
}

func (e *testEnv) postWebhook(t *testing.T, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/payment/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestPaymentCreateInvalidPlan(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "nick")

	w := env.doJSON(t, http.MethodPost, "/api/payment/create", token, gin.H{"plan_id": "platinum"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("code = %d, want 400", w.Code)
	}
}

func TestPaymentFullFlow(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "olga")

	w := env.doJSON(t, http.MethodPost, "/api/payment/create", token, gin.H{"plan_id": "pro"})
	if w.Code != http.StatusOK {
		t.Fatalf("create payment: code = %d, body = %s", w.Code, w.Body.String())
	}
	var created struct {
		PaymentURL    string `json:"payment_url"`
		TransactionID int64  `json:"transaction_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	u, err := url.Parse(created.PaymentURL)
	if err != nil {
		t.Fatalf("parse payment url: %v", err)
	}
	outSum := u.Query().Get("OutSum")
	invID := u.Query().Get("InvId")
	if outSum != "990" {
		t.Errorf("OutSum = %s, want 990", outSum)
	}

	form := url.Values{}
	form.Set("OutSum", outSum)
	form.Set("InvId", invID)
	form.Set("SignatureValue", webhookSignature(outSum, invID, "pass2"))

	w = env.postWebhook(t, form)
	if w.Code != http.StatusOK {
		t.Fatalf("webhook: code = %d, body = %s", w.Code, w.Body.String())
	}
	if w.Body.String() != "OK"+invID {
		t.Errorf("webhook body = %q, want OK%s", w.Body.String(), invID)
	}

	profile := env.profileByUsername(t, "olga")
	if profile.ChecksRemaining != 23 { // 3 free + 20 purchased
		t.Errorf("checks_remaining = %d, want 23", profile.ChecksRemaining)
	}
	if profile.SubscriptionTier != models.TierPro {
		t.Errorf("tier = %s, want pro", profile.SubscriptionTier)
	}

	// Replay must be a no-op.
	w = env.postWebhook(t, form)
	if w.Code != http.StatusOK || w.Body.String() != "OK"+invID {
		t.Errorf("replay: code = %d, body = %q", w.Code, w.Body.String())
	}
	profile = env.profileByUsername(t, "olga")
	if profile.ChecksRemaining != 23 {
		t.Errorf("replay double-credited: checks_remaining = %d, want 23", profile.ChecksRemaining)
	}
}

func TestPaymentWebhookBadSignature(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "pete")

	w := env.doJSON(t, http.MethodPost, "/api/payment/create", token, gin.H{"plan_id": "pro"})
	var created struct {
		PaymentURL string `json:"payment_url"`
	}
	json.Unmarshal(w.Body.Bytes(), &created)
	u, _ := url.Parse(created.PaymentURL)
	invID := u.Query().Get("InvId")

	// Altered amount with the original signature.
	form := url.Values{}
	form.Set("OutSum", "1")
	form.Set("InvId", invID)
	form.Set("SignatureValue", webhookSignature("990", invID, "pass2"))

	w = env.postWebhook(t, form)
	if w.Code != http.StatusBadRequest {
		t.Errorf("code = %d, want 400", w.Code)
	}
	profile := env.profileByUsername(t, "pete")
	if profile.ChecksRemaining != 3 {
		t.Errorf("tampered webhook credited the profile: %d", profile.ChecksRemaining)
	}
}

func TestPaymentWebhookUnknownTransaction(t *testing.T) {
	env := newTestEnv(t)

	form := url.Values{}
	form.Set("OutSum", "990")
	form.Set("InvId", "99999")
	form.Set("SignatureValue", webhookSignature("990", "99999", "pass2"))

	w := env.postWebhook(t, form)
	if w.Code != http.StatusNotFound {
		t.Errorf("code = %d, want 404", w.Code)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	w := env.doJSON(t, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Errorf("code = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Errorf("unexpected health body: %s", w.Body.String())
	}
}
