package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	"bursar/internal/ledger"
	"bursar/internal/treasury"
	"bursar/pkg/ctxkeys"
	"bursar/pkg/logging"
)

// The sandbox treasury has no prepaid deposit book; the deposit endpoints
// must refuse cleanly rather than touch a nil wallet.
func TestDepositEndpointsUnavailableOnSandbox(t *testing.T) {
	gin.SetMode(gin.TestMode)
	Init(ledger.New(treasury.NewSandbox()), nil, logging.NewLogger(), nil, nil, nil)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(string(ctxkeys.KeyAccount), "0xabc")
		c.Next()
	})
	r.GET("/deposits/balance", GetDepositBalance)
	r.POST("/deposits/credit", CreditDeposit)

	if w := doJSON(t, r, "GET", "/deposits/balance", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("balance status: got %d, want 503", w.Code)
	}
	if w := doJSON(t, r, "POST", "/deposits/credit", `{"account":"0xabc","amount":100}`); w.Code != http.StatusServiceUnavailable {
		t.Errorf("credit status: got %d, want 503", w.Code)
	}
}
