package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"bursar/internal/ledger"
	bursarapi "bursar/pkg/api/bursar"
	"bursar/pkg/auth"
	"bursar/pkg/config"
	"bursar/pkg/ctxkeys"
	"bursar/pkg/logging"
	"bursar/pkg/middleware"
)

// Ledger API Endpoints

// CreateService registers a new paid service owned by the caller
func CreateService(c middleware.Context) {
	caller := c.GetString(string(ctxkeys.KeyAccount))

	var req bursarapi.CreateServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, bursarapi.ErrorResponse{Error: "Invalid request body"})
		return
	}

	ledgerMu.Lock()
	svc, err := book.CreateService(caller, req.Name, req.Fee, time.Duration(req.PeriodSecs)*time.Second)
	ledgerMu.Unlock()
	if err != nil {
		respondLedgerError(c, err)
		return
	}

	if metrics != nil {
		metrics.ServicesCreated.WithLabelValues("created").Inc()
	}
	logger.WithFields(logging.Fields{
		"service_id":  svc.ID,
		"owner":       svc.Owner,
		"fee":         svc.Fee,
		"period_secs": svc.PeriodSecs,
	}).Info("Service registered")

	c.JSON(http.StatusCreated, bursarapi.CreateServiceResponse{
		ServiceID: svc.ID,
		Service:   svc,
	})
}

// GetService returns one registered service by id
func GetService(c middleware.Context) {
	serviceID, ok := parseServiceID(c)
	if !ok {
		return
	}

	ledgerMu.Lock()
	svc, found := book.Service(serviceID)
	ledgerMu.Unlock()
	if !found {
		c.JSON(http.StatusNotFound, bursarapi.ErrorResponse{Error: "Service not found"})
		return
	}
	c.JSON(http.StatusOK, bursarapi.GetServiceResponse{Service: svc})
}

// ListServices returns the full service registry
func ListServices(c middleware.Context) {
	ledgerMu.Lock()
	services := book.Services()
	ledgerMu.Unlock()

	c.JSON(http.StatusOK, bursarapi.ListServicesResponse{
		Services: services,
		Count:    len(services),
	})
}

// Subscribe pays the caller's subscription for one period
func Subscribe(c middleware.Context) {
	caller := c.GetString(string(ctxkeys.KeyAccount))
	serviceID, ok := parseServiceID(c)
	if !ok {
		return
	}

	var req bursarapi.SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, bursarapi.ErrorResponse{Error: "Invalid request body"})
		return
	}

	ledgerMu.Lock()
	expiresAt, err := book.Subscribe(c.Request.Context(), caller, serviceID, req.Amount)
	ledgerMu.Unlock()
	if err != nil {
		respondLedgerError(c, err)
		return
	}

	if metrics != nil {
		metrics.Subscriptions.WithLabelValues("subscribe").Inc()
	}
	logger.WithFields(logging.Fields{
		"service_id": serviceID,
		"subscriber": caller,
		"amount":     req.Amount,
		"expires_at": expiresAt,
	}).Info("Subscription paid")

	c.JSON(http.StatusOK, bursarapi.SubscribeResponse{
		ServiceID:  serviceID,
		Subscriber: caller,
		ExpiresAt:  expiresAt,
	})
}

// GiftSubscription pays for another account's subscription
func GiftSubscription(c middleware.Context) {
	caller := c.GetString(string(ctxkeys.KeyAccount))
	serviceID, ok := parseServiceID(c)
	if !ok {
		return
	}

	var req bursarapi.GiftSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, bursarapi.ErrorResponse{Error: "Invalid request body"})
		return
	}

	ledgerMu.Lock()
	expiresAt, err := book.GiftSubscription(c.Request.Context(), caller, req.Recipient, serviceID, req.Amount)
	ledgerMu.Unlock()
	if err != nil {
		respondLedgerError(c, err)
		return
	}

	if metrics != nil {
		metrics.Subscriptions.WithLabelValues("gift").Inc()
	}
	logger.WithFields(logging.Fields{
		"service_id": serviceID,
		"payer":      caller,
		"recipient":  req.Recipient,
		"amount":     req.Amount,
		"expires_at": expiresAt,
	}).Info("Subscription gifted")

	c.JSON(http.StatusOK, bursarapi.GiftSubscriptionResponse{
		ServiceID: serviceID,
		Payer:     caller,
		Recipient: req.Recipient,
		ExpiresAt: expiresAt,
	})
}

// GetAccessStatus reports whether an account's subscription is active
func GetAccessStatus(c middleware.Context) {
	serviceID, ok := parseServiceID(c)
	if !ok {
		return
	}
	account := c.Param("account")

	ledgerMu.Lock()
	active := book.HasActiveSubscription(serviceID, account)
	expiresAt, hasGrant := book.AccessExpiry(serviceID, account)
	ledgerMu.Unlock()

	resp := bursarapi.AccessStatusResponse{
		ServiceID: serviceID,
		Account:   account,
		Active:    active,
	}
	if hasGrant {
		resp.ExpiresAt = &expiresAt
	}
	c.JSON(http.StatusOK, resp)
}

// Withdraw moves the service's accumulated balance to its owner
func Withdraw(c middleware.Context) {
	caller := c.GetString(string(ctxkeys.KeyAccount))
	serviceID, ok := parseServiceID(c)
	if !ok {
		return
	}

	ledgerMu.Lock()
	amount, err := book.WithdrawBalance(c.Request.Context(), caller, serviceID)
	ledgerMu.Unlock()
	if err != nil {
		respondLedgerError(c, err)
		return
	}

	if metrics != nil {
		metrics.Withdrawals.WithLabelValues("withdraw").Inc()
	}
	logger.WithFields(logging.Fields{
		"service_id": serviceID,
		"owner":      caller,
		"amount":     amount,
	}).Info("Balance withdrawn")

	c.JSON(http.StatusOK, bursarapi.WithdrawResponse{
		ServiceID: serviceID,
		Owner:     caller,
		Amount:    amount,
	})
}

// WalletLogin exchanges an EIP-191 signed message for a session token
func WalletLogin(c middleware.Context) {
	var req bursarapi.WalletLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, bursarapi.ErrorResponse{Error: "Invalid request body"})
		return
	}

	account, err := auth.VerifyWalletAuth(auth.WalletMessage{
		Address:   req.Address,
		Message:   req.Message,
		Signature: req.Signature,
	})
	if err != nil {
		logger.WithError(err).WithField("address", req.Address).Warn("Wallet login rejected")
		c.JSON(http.StatusUnauthorized, bursarapi.ErrorResponse{Error: "Signature verification failed"})
		return
	}

	token, err := auth.GenerateJWT(account, "user", []byte(config.GetEnv("JWT_SECRET", "")))
	if err != nil {
		logger.WithError(err).Error("Failed to generate session token")
		c.JSON(http.StatusInternalServerError, bursarapi.ErrorResponse{Error: "Failed to generate token"})
		return
	}

	logger.WithField("account", account).Info("Wallet login")
	c.JSON(http.StatusOK, bursarapi.WalletLoginResponse{
		Token:   token,
		Account: account,
	})
}

func parseServiceID(c middleware.Context) (int64, bool) {
	serviceID, err := strconv.ParseInt(c.Param("service_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, bursarapi.ErrorResponse{Error: "Invalid service id"})
		return 0, false
	}
	return serviceID, true
}

// respondLedgerError maps ledger errors onto HTTP statuses. Transfer
// failures arrive with the ledger already rolled back.
func respondLedgerError(c middleware.Context, err error) {
	var transferErr *ledger.TransferError
	switch {
	case errors.Is(err, ledger.ErrServiceNotFound):
		c.JSON(http.StatusNotFound, bursarapi.ErrorResponse{Error: err.Error()})
	case errors.Is(err, ledger.ErrNotOwner):
		c.JSON(http.StatusForbidden, bursarapi.ErrorResponse{Error: err.Error()})
	case errors.As(err, &transferErr):
		logger.WithError(err).Warn("Treasury transfer failed")
		c.JSON(http.StatusBadGateway, bursarapi.ErrorResponse{Error: err.Error()})
	default:
		c.JSON(http.StatusBadRequest, bursarapi.ErrorResponse{Error: err.Error()})
	}
}
