package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/inverseneural/lab/auth"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memoryStore struct {
	sync.Mutex
	records map[string]*Record
	err     error
	pingErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{records: make(map[string]*Record)}
}

func (m *memoryStore) GetByUserID(ctx context.Context, userID string) (*Record, error) {
	m.Lock()
	defer m.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	rec, ok := m.records[userID]
	if !ok {
		return nil, nil
	}
	c := rec.Clone()
	return &c, nil
}

func (m *memoryStore) CreateTrial(ctx context.Context, userID, email string, trialEndsAt time.Time) (*Record, error) {
	m.Lock()
	defer m.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if _, ok := m.records[userID]; !ok {
		m.records[userID] = NewTrial(userID, email, trialEndsAt)
	}
	c := m.records[userID].Clone()
	return &c, nil
}

func (m *memoryStore) Ping(ctx context.Context) error {
	return m.pingErr
}

type mockPayments struct {
	mock.Mock
}

func (m *mockPayments) CreateCheckout(ctx context.Context, opt CheckoutOptions) (string, error) {
	args := m.Called(opt)
	return args.String(0), args.Error(1)
}

func (m *mockPayments) CreatePaymentUpdate(ctx context.Context, opt PaymentUpdateOptions) (string, error) {
	args := m.Called(opt)
	return args.String(0), args.Error(1)
}

func (m *mockPayments) Ping(ctx context.Context) error {
	return m.Called().Error(0)
}

const testUserID = "6f1b7e1c-8d53-4f55-9a3e-3d0f1f0b9d21"

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func getServiceFixtures(t *testing.T) (*Service, *memoryStore, *mockPayments) {
	store := newMemoryStore()
	payments := &mockPayments{}
	catalog, err := NewCatalog(testPrices())
	require.NoError(t, err)
	svc, err := NewService(ServiceOptions{
		Store:       store,
		Payments:    payments,
		Catalog:     catalog,
		Logger:      zap.NewNop(),
		SiteURL:     "https://lab.example.com/",
		TrialLength: 15 * 24 * time.Hour,
		Now:         func() time.Time { return testNow },
	})
	require.NoError(t, err)
	return svc, store, payments
}

func authed(r *http.Request) *http.Request {
	claims := &auth.Claims{
		StandardClaims: jwt.StandardClaims{Subject: testUserID},
		Email:          "trader@example.com",
	}
	return r.WithContext(auth.WithClaims(r.Context(), claims))
}

func TestCheckout(t *testing.T) {
	svc, store, payments := getServiceFixtures(t)

	payments.On("CreateCheckout", mock.MatchedBy(func(opt CheckoutOptions) bool {
		return opt.UserID == testUserID &&
			opt.Email == "trader@example.com" &&
			opt.Plan.Type == PlanPro &&
			opt.Plan.PriceID == "price_pro" &&
			opt.CustomerID == "" &&
			strings.HasPrefix(opt.SuccessURL, "https://lab.example.com/dashboard") &&
			opt.CancelURL == "https://lab.example.com/billing?checkout=canceled"
	})).Return("cs_test_123", nil)

	r := authed(httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(`{"planType":"pro"}`)))
	w := httptest.NewRecorder()
	svc.Router().ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"sessionId":"cs_test_123"}`, w.Body.String())
	payments.AssertExpectations(t)

	// first contact creates the trial record
	rec, _ := store.GetByUserID(context.Background(), testUserID)
	require.NotNil(t, rec)
	assert.Equal(t, StatusTrial, rec.SubscriptionStatus)
}

func TestCheckoutRejectsInvalidPlan(t *testing.T) {
	svc, _, payments := getServiceFixtures(t)

	for _, body := range []string{`{"planType":"trial"}`, `{"planType":""}`, `{`} {
		r := authed(httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(body)))
		w := httptest.NewRecorder()
		svc.Router().ServeHTTP(w, r)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
	payments.AssertNotCalled(t, "CreateCheckout", mock.Anything)
}

func TestCheckoutWhenActive(t *testing.T) {
	svc, store, payments := getServiceFixtures(t)
	store.records[testUserID] = &Record{UserID: testUserID, SubscriptionStatus: StatusActive, PlanType: PlanBasic}

	r := authed(httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(`{"planType":"elite"}`)))
	w := httptest.NewRecorder()
	svc.Router().ServeHTTP(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	payments.AssertNotCalled(t, "CreateCheckout", mock.Anything)
}

func TestCheckoutStripeFailure(t *testing.T) {
	svc, _, payments := getServiceFixtures(t)
	payments.On("CreateCheckout", mock.Anything).Return("", errors.New("timeout"))

	r := authed(httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(`{"planType":"basic"}`)))
	w := httptest.NewRecorder()
	svc.Router().ServeHTTP(w, r)

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestUpdatePayment(t *testing.T) {
	svc, store, payments := getServiceFixtures(t)
	store.records[testUserID] = &Record{
		UserID:                 testUserID,
		SubscriptionStatus:     StatusPaymentFailed,
		ExternalCustomerID:     "cus_1",
		ExternalSubscriptionID: "sub_1",
	}
	payments.On("CreatePaymentUpdate", PaymentUpdateOptions{
		CustomerID:     "cus_1",
		SubscriptionID: "sub_1",
		SuccessURL:     "https://lab.example.com/dashboard?payment=updated",
		CancelURL:      "https://lab.example.com/billing",
	}).Return("cs_setup_1", nil)

	r := authed(httptest.NewRequest(http.MethodPost, "/update-payment", nil))
	w := httptest.NewRecorder()
	svc.Router().ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"sessionId":"cs_setup_1"}`, w.Body.String())
	payments.AssertExpectations(t)
}

func TestUpdatePaymentOnlyAfterFailure(t *testing.T) {
	svc, store, payments := getServiceFixtures(t)
	store.records[testUserID] = &Record{
		UserID:                 testUserID,
		SubscriptionStatus:     StatusActive,
		ExternalCustomerID:     "cus_1",
		ExternalSubscriptionID: "sub_1",
	}

	r := authed(httptest.NewRequest(http.MethodPost, "/update-payment", nil))
	w := httptest.NewRecorder()
	svc.Router().ServeHTTP(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	payments.AssertNotCalled(t, "CreatePaymentUpdate", mock.Anything)
}

func TestProfile(t *testing.T) {
	svc, store, _ := getServiceFixtures(t)
	grace := testNow.Add(50 * time.Hour)
	store.records[testUserID] = &Record{
		UserID:              testUserID,
		SubscriptionStatus:  StatusPaymentFailed,
		PlanType:            PlanElite,
		GracePeriodEnd:      &grace,
		PaymentFailureCount: 1,
	}

	r := authed(httptest.NewRequest(http.MethodGet, "/", nil))
	w := httptest.NewRecorder()
	svc.ProfileRouter().ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	var body ProfileResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "payment_failed", body.Access.State)
	assert.True(t, body.Access.InGrace)
	assert.Equal(t, 3, body.Access.GraceDaysLeft)
	require.NotNil(t, body.Plan)
	assert.Equal(t, PlanElite, body.Plan.Type)
	assert.NotContains(t, w.Body.String(), "externalSubscriptionId")
}

func TestProfileCreatesTrial(t *testing.T) {
	svc, store, _ := getServiceFixtures(t)

	r := authed(httptest.NewRequest(http.MethodGet, "/", nil))
	w := httptest.NewRecorder()
	svc.ProfileRouter().ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	var body ProfileResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "trial", body.Access.State)
	assert.Equal(t, 15, body.Access.TrialDaysLeft)
	assert.Nil(t, body.Plan)

	rec := store.records[testUserID]
	require.NotNil(t, rec)
	assert.True(t, testNow.Add(15*24*time.Hour).Equal(rec.TrialEndsAt))
	assert.Equal(t, "trader@example.com", rec.Email)
}

func TestProfileStoreFailure(t *testing.T) {
	svc, store, _ := getServiceFixtures(t)
	store.err = errors.New("connection reset")

	r := authed(httptest.NewRequest(http.MethodGet, "/", nil))
	w := httptest.NewRecorder()
	svc.ProfileRouter().ServeHTTP(w, r)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHealth(t *testing.T) {
	svc, store, payments := getServiceFixtures(t)
	payments.On("Ping").Return(nil).Once()

	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	svc.Router().ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"database":"ok","stripe":"ok"}`, w.Body.String())

	store.pingErr = errors.New("down")
	payments.On("Ping").Return(errors.New("no route")).Once()
	w = httptest.NewRecorder()
	svc.Router().ServeHTTP(w, r)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, map[string]interface{}{"database": "unreachable", "stripe": "unreachable"}, body["result"])
}

func TestListPlans(t *testing.T) {
	svc, _, _ := getServiceFixtures(t)

	r := httptest.NewRequest(http.MethodGet, "/plans", nil)
	w := httptest.NewRecorder()
	svc.Router().ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	var plans []Plan
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &plans))
	assert.Len(t, plans, 3)
	assert.NotContains(t, w.Body.String(), "price_basic")
}
