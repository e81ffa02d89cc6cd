package handlers

import (
	"net/http"

	bursarapi "bursar/pkg/api/bursar"
	"bursar/pkg/ctxkeys"
	"bursar/pkg/logging"
	"bursar/pkg/middleware"
)

// Prepaid deposit endpoints. Only available when the Ethereum treasury is
// configured; the sandbox treasury keeps its book in memory.

// CreditDeposit records a confirmed on-chain deposit (service-to-service,
// called by whatever watches the deposit address)
func CreditDeposit(c middleware.Context) {
	if ethTreasury == nil {
		c.JSON(http.StatusServiceUnavailable, bursarapi.ErrorResponse{Error: "Deposits not available on this treasury"})
		return
	}

	var req bursarapi.CreditDepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, bursarapi.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if req.Amount <= 0 {
		c.JSON(http.StatusBadRequest, bursarapi.ErrorResponse{Error: "Amount must be greater than zero"})
		return
	}

	ctx := c.Request.Context()
	if err := ethTreasury.CreditDeposit(ctx, req.Account, req.Amount); err != nil {
		logger.WithError(err).WithField("account", req.Account).Error("Failed to credit deposit")
		c.JSON(http.StatusInternalServerError, bursarapi.ErrorResponse{Error: "Failed to credit deposit"})
		return
	}
	balance, err := ethTreasury.DepositBalance(ctx, req.Account)
	if err != nil {
		logger.WithError(err).WithField("account", req.Account).Error("Failed to read deposit balance")
		c.JSON(http.StatusInternalServerError, bursarapi.ErrorResponse{Error: "Failed to read deposit balance"})
		return
	}

	logger.WithFields(logging.Fields{
		"account": req.Account,
		"amount":  req.Amount,
		"balance": balance,
	}).Info("Deposit credited")

	c.JSON(http.StatusOK, bursarapi.CreditDepositResponse{
		Account: req.Account,
		Balance: balance,
	})
}

// GetDepositBalance reports the caller's prepaid balance
func GetDepositBalance(c middleware.Context) {
	if ethTreasury == nil {
		c.JSON(http.StatusServiceUnavailable, bursarapi.ErrorResponse{Error: "Deposits not available on this treasury"})
		return
	}

	account := c.GetString(string(ctxkeys.KeyAccount))
	balance, err := ethTreasury.DepositBalance(c.Request.Context(), account)
	if err != nil {
		logger.WithError(err).WithField("account", account).Error("Failed to read deposit balance")
		c.JSON(http.StatusInternalServerError, bursarapi.ErrorResponse{Error: "Failed to read deposit balance"})
		return
	}
	c.JSON(http.StatusOK, bursarapi.DepositBalanceResponse{
		Account: account,
		Balance: balance,
	})
}
