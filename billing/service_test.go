package billing

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/inverseneural/lab/metrics"
	"github.com/inverseneural/lab/subscription"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "whsec_test_secret"

func sign(payload []byte, secret string) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.", ts)))
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

type serviceHarness struct {
	*processorHarness
	metrics *metrics.Collectors
	server  *httptest.Server
}

func newServiceHarness(t *testing.T, recs ...subscription.Record) *serviceHarness {
	h := &serviceHarness{
		processorHarness: newHarness(t, recs...),
		metrics:          metrics.New(prometheus.NewRegistry()),
	}
	svc, err := NewService(ServiceOptions{
		Processor:     h.proc,
		SigningSecret: testSecret,
		Logger:        zap.NewNop(),
		Metrics:       h.metrics,
	})
	require.NoError(t, err)
	h.server = httptest.NewServer(svc.Router())
	t.Cleanup(h.server.Close)
	return h
}

func (h *serviceHarness) deliver(t *testing.T, payload []byte, signature string) (int, string) {
	req, err := http.NewRequest(http.MethodPost, h.server.URL, bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(signatureHeader, signature)
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := ioutil.ReadAll(res.Body)
	require.NoError(t, err)
	return res.StatusCode, string(body)
}

func (h *serviceHarness) scrape(t *testing.T) string {
	rec := httptest.NewRecorder()
	h.metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return rec.Body.String()
}

func TestNewServiceValidation(t *testing.T) {
	_, err := NewService(ServiceOptions{})
	assert.Error(t, err)

	_, err = NewService(ServiceOptions{
		Processor: newHarness(t).proc,
		Logger:    zap.NewNop(),
	})
	assert.Error(t, err)
}

func TestWebhookAppliesSignedEvent(t *testing.T) {
	h := newServiceHarness(t, activeRecord())

	payload := eventJSON("evt_signed", EventPaymentFailed, now, invoiceObject)
	status, body := h.deliver(t, payload, sign(payload, testSecret))

	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"received":true}`, body)

	rec := h.store.user("user-1")
	assert.Equal(t, subscription.StatusPaymentFailed, rec.SubscriptionStatus)
	assert.Equal(t, 2, rec.PaymentFailureCount)
	assert.Equal(t, "evt_signed", rec.LastEventID)

	assert.Contains(t, h.scrape(t), `billing_webhook_events_total{outcome="applied",type="invoice.payment_failed"} 1`)
}

// A delivery whose body does not match its signature is rejected before anything is read from it
func TestWebhookRejectsTamperedPayload(t *testing.T) {
	h := newServiceHarness(t, activeRecord())

	payload := eventJSON("evt_tampered", EventSubscriptionDeleted, now, subscriptionObject)
	signature := sign(payload, testSecret)
	tampered := bytes.Replace(payload, []byte("sub_1"), []byte("sub_2"), 1)

	status, body := h.deliver(t, tampered, signature)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body, "Invalid signature")

	status, _ = h.deliver(t, payload, sign(payload, "whsec_other"))
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = h.deliver(t, payload, "")
	assert.Equal(t, http.StatusBadRequest, status)

	assert.Equal(t, activeRecord(), h.store.user("user-1"))
	assert.Equal(t, 0, h.store.writes)
	assert.Contains(t, h.scrape(t), `billing_webhook_events_total{outcome="rejected",type="unknown"} 3`)
}

func TestWebhookStoreFailureAsksForRedelivery(t *testing.T) {
	h := newServiceHarness(t, activeRecord())
	h.store.err = fmt.Errorf("connection reset")

	payload := eventJSON("evt_retry", EventPaymentSucceeded, now, invoiceObject)
	status, _ := h.deliver(t, payload, sign(payload, testSecret))

	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Contains(t, h.scrape(t), `billing_webhook_events_total{outcome="error",type="invoice.payment_succeeded"} 1`)
}

func TestWebhookAcknowledgesUnmatchedEvents(t *testing.T) {
	h := newServiceHarness(t, activeRecord())

	unknownSub := strings.Replace(subscriptionObject, "sub_1", "sub_404", 1)
	deliveries := [][]byte{
		eventJSON("evt_a", EventSubscriptionDeleted, now, unknownSub),
		eventJSON("evt_b", "customer.created", now, `{"id": "cus_1", "object": "customer"}`),
		eventJSON("evt_c", EventCheckoutCompleted, now, setupCheckoutObject),
		eventJSON("evt_d", EventPaymentFailed, now, `{"id": "in_1", "attempt_count": "many"}`),
	}
	for _, payload := range deliveries {
		status, body := h.deliver(t, payload, sign(payload, testSecret))
		assert.Equal(t, http.StatusOK, status)
		assert.JSONEq(t, `{"received":true}`, body)
	}

	assert.Equal(t, 0, h.store.writes)
	out := h.scrape(t)
	assert.Contains(t, out, `billing_webhook_events_total{outcome="miss",type="customer.subscription.deleted"} 1`)
	assert.Contains(t, out, `billing_webhook_events_total{outcome="ignored",type="customer.created"} 1`)
	assert.Contains(t, out, `billing_webhook_events_total{outcome="ignored",type="checkout.session.completed"} 1`)
	assert.Contains(t, out, `billing_webhook_events_total{outcome="undecodable",type="invoice.payment_failed"} 1`)
}

func TestWebhookRedeliveryIsIdempotent(t *testing.T) {
	h := newServiceHarness(t, activeRecord())

	payload := eventJSON("evt_twice", EventPaymentFailed, now, invoiceObject)
	for i := 0; i < 2; i++ {
		status, _ := h.deliver(t, payload, sign(payload, testSecret))
		assert.Equal(t, http.StatusOK, status)
	}

	assert.Equal(t, 1, h.store.writes)
	assert.Equal(t, 2, h.store.user("user-1").PaymentFailureCount)
	assert.Contains(t, h.scrape(t), `billing_webhook_events_total{outcome="duplicate",type="invoice.payment_failed"} 1`)
}

func TestWebhookOnlyAcceptsPost(t *testing.T) {
	h := newServiceHarness(t)

	res, err := http.Get(h.server.URL)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)
}
