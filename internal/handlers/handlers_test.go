package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"bursar/internal/ledger"
	"bursar/internal/treasury"
	bursarapi "bursar/pkg/api/bursar"
	"bursar/pkg/ctxkeys"
	"bursar/pkg/logging"
)

func setupRouter(t *testing.T, account string, sandbox *treasury.Sandbox) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	book := ledger.New(sandbox, ledger.WithEventSink(EventSink()))
	Init(book, nil, logging.NewLogger(), nil, nil, nil)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(string(ctxkeys.KeyAccount), account)
		c.Next()
	})
	r.GET("/services", ListServices)
	r.POST("/services", CreateService)
	r.GET("/services/:service_id", GetService)
	r.POST("/services/:service_id/subscribe", Subscribe)
	r.POST("/services/:service_id/gift", GiftSubscription)
	r.GET("/services/:service_id/access/:account", GetAccessStatus)
	r.POST("/services/:service_id/withdraw", Withdraw)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateServiceEndpoint(t *testing.T) {
	r := setupRouter(t, "alice", treasury.NewSandbox())

	w := doJSON(t, r, "POST", "/services", `{"name":"stream","fee":100,"period_secs":2592000}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}
	var resp bursarapi.CreateServiceResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.ServiceID != 0 {
		t.Errorf("first service id: got %d, want 0", resp.ServiceID)
	}
	if resp.Service.Owner != "alice" || resp.Service.Fee != 100 {
		t.Errorf("unexpected service: %+v", resp.Service)
	}
}

func TestCreateServiceRejectsZeroFee(t *testing.T) {
	r := setupRouter(t, "alice", treasury.NewSandbox())

	w := doJSON(t, r, "POST", "/services", `{"name":"stream","fee":0,"period_secs":60}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", w.Code)
	}
}

func TestSubscribeEndpoint(t *testing.T) {
	sandbox := treasury.NewSandbox()
	sandbox.Credit("alice", 1000)
	r := setupRouter(t, "alice", sandbox)

	if w := doJSON(t, r, "POST", "/services", `{"name":"stream","fee":100,"period_secs":3600}`); w.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", w.Code, w.Body.String())
	}

	w := doJSON(t, r, "POST", "/services/0/subscribe", `{"amount":100}`)
	if w.Code != http.StatusOK {
		t.Fatalf("subscribe: %d %s", w.Code, w.Body.String())
	}
	var resp bursarapi.SubscribeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Subscriber != "alice" {
		t.Errorf("subscriber: %s", resp.Subscriber)
	}
	if !resp.ExpiresAt.After(time.Now()) {
		t.Errorf("expiry in the past: %v", resp.ExpiresAt)
	}
	if sandbox.Balance("alice") != 900 {
		t.Errorf("payer balance: got %d, want 900", sandbox.Balance("alice"))
	}

	// Access reflects the paid subscription.
	aw := doJSON(t, r, "GET", "/services/0/access/alice", "")
	var access bursarapi.AccessStatusResponse
	if err := json.Unmarshal(aw.Body.Bytes(), &access); err != nil {
		t.Fatalf("unmarshal access: %v", err)
	}
	if !access.Active {
		t.Error("access not active after subscribing")
	}
}

func TestSubscribeWrongAmount(t *testing.T) {
	sandbox := treasury.NewSandbox()
	sandbox.Credit("alice", 1000)
	r := setupRouter(t, "alice", sandbox)
	doJSON(t, r, "POST", "/services", `{"name":"stream","fee":100,"period_secs":3600}`)

	w := doJSON(t, r, "POST", "/services/0/subscribe", `{"amount":50}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", w.Code)
	}
}

func TestSubscribeUnknownServiceEndpoint(t *testing.T) {
	r := setupRouter(t, "alice", treasury.NewSandbox())

	w := doJSON(t, r, "POST", "/services/7/subscribe", `{"amount":100}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want 404", w.Code)
	}
}

func TestSubscribeInsufficientFunds(t *testing.T) {
	// Unfunded payer: the treasury collect fails and the rejection maps to
	// a gateway error with the ledger rolled back.
	r := setupRouter(t, "alice", treasury.NewSandbox())
	doJSON(t, r, "POST", "/services", `{"name":"stream","fee":100,"period_secs":3600}`)

	w := doJSON(t, r, "POST", "/services/0/subscribe", `{"amount":100}`)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status: got %d, want 502", w.Code)
	}

	aw := doJSON(t, r, "GET", "/services/0/access/alice", "")
	var access bursarapi.AccessStatusResponse
	if err := json.Unmarshal(aw.Body.Bytes(), &access); err != nil {
		t.Fatalf("unmarshal access: %v", err)
	}
	if access.Active {
		t.Error("access granted despite failed payment")
	}
}

func TestGiftEndpoint(t *testing.T) {
	sandbox := treasury.NewSandbox()
	sandbox.Credit("alice", 1000)
	r := setupRouter(t, "alice", sandbox)
	doJSON(t, r, "POST", "/services", `{"name":"stream","fee":100,"period_secs":3600}`)

	w := doJSON(t, r, "POST", "/services/0/gift", `{"recipient":"bob","amount":100}`)
	if w.Code != http.StatusOK {
		t.Fatalf("gift: %d %s", w.Code, w.Body.String())
	}
	var resp bursarapi.GiftSubscriptionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Payer != "alice" || resp.Recipient != "bob" {
		t.Errorf("unexpected response: %+v", resp)
	}

	aw := doJSON(t, r, "GET", "/services/0/access/bob", "")
	var access bursarapi.AccessStatusResponse
	if err := json.Unmarshal(aw.Body.Bytes(), &access); err != nil {
		t.Fatalf("unmarshal access: %v", err)
	}
	if !access.Active {
		t.Error("recipient has no access after gift")
	}
}

func TestWithdrawEndpoint(t *testing.T) {
	sandbox := treasury.NewSandbox()
	sandbox.Credit("alice", 1000)
	r := setupRouter(t, "alice", sandbox)
	doJSON(t, r, "POST", "/services", `{"name":"stream","fee":100,"period_secs":3600}`)
	doJSON(t, r, "POST", "/services/0/subscribe", `{"amount":100}`)

	w := doJSON(t, r, "POST", "/services/0/withdraw", "")
	if w.Code != http.StatusOK {
		t.Fatalf("withdraw: %d %s", w.Code, w.Body.String())
	}
	var resp bursarapi.WithdrawResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Amount != 100 {
		t.Errorf("amount: got %d, want 100", resp.Amount)
	}
	// The payer spent 100 and got it back as the owner.
	if sandbox.Balance("alice") != 1000 {
		t.Errorf("owner balance: got %d, want 1000", sandbox.Balance("alice"))
	}
}

func TestWithdrawForbiddenForNonOwner(t *testing.T) {
	sandbox := treasury.NewSandbox()
	sandbox.Credit("alice", 1000)
	r := setupRouter(t, "alice", sandbox)
	doJSON(t, r, "POST", "/services", `{"name":"stream","fee":100,"period_secs":3600}`)

	// Same ledger, different caller.
	r2 := gin.New()
	r2.Use(func(c *gin.Context) {
		c.Set(string(ctxkeys.KeyAccount), "mallory")
		c.Next()
	})
	r2.POST("/services/:service_id/withdraw", Withdraw)

	w := doJSON(t, r2, "POST", "/services/0/withdraw", "")
	if w.Code != http.StatusForbidden {
		t.Fatalf("status: got %d, want 403", w.Code)
	}
}

func TestListServicesEndpoint(t *testing.T) {
	r := setupRouter(t, "alice", treasury.NewSandbox())
	doJSON(t, r, "POST", "/services", `{"name":"first","fee":10,"period_secs":60}`)
	doJSON(t, r, "POST", "/services", `{"name":"second","fee":20,"period_secs":60}`)

	w := doJSON(t, r, "GET", "/services", "")
	if w.Code != http.StatusOK {
		t.Fatalf("list: %d", w.Code)
	}
	var resp bursarapi.ListServicesResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Count != 2 || len(resp.Services) != 2 {
		t.Errorf("count: %d services: %d", resp.Count, len(resp.Services))
	}
}

func TestGetServiceNotFound(t *testing.T) {
	r := setupRouter(t, "alice", treasury.NewSandbox())
	w := doJSON(t, r, "GET", "/services/5", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want 404", w.Code)
	}
}

func TestInvalidServiceID(t *testing.T) {
	r := setupRouter(t, "alice", treasury.NewSandbox())
	w := doJSON(t, r, "GET", "/services/notanumber", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", w.Code)
	}
}
