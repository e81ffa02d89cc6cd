package treasury

import (
	"context"
	"crypto/ecdsa"
	"database/sql"
	"fmt"
	"math/big"
	"strings"

	"bursar/pkg/logging"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// ethTransferGasLimit is the fixed gas limit for a plain ETH transfer.
const ethTransferGasLimit = uint64(21000)

// EthWallet is a treasury backed by prepaid on-chain deposits. Collect
// debits the payer's prepaid balance in the database; Payout sends a signed
// transaction from the operator wallet to the owner's address. Amounts are
// denominated in wei.
type EthWallet struct {
	db     *sql.DB
	logger logging.Logger
	client *ethclient.Client

	privKey *ecdsa.PrivateKey
	from    common.Address
	chainID *big.Int
}

// EthWalletConfig carries the operator wallet settings.
type EthWalletConfig struct {
	RPCURL        string
	PrivateKeyHex string
}

// NewEthWallet connects to the RPC endpoint and derives the operator
// address from the configured private key.
func NewEthWallet(cfg EthWalletConfig, db *sql.DB, log logging.Logger) (*EthWallet, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("rpc url not configured")
	}
	privKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse operator private key: %w", err)
	}

	client, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Ethereum client: %w", err)
	}
	chainID, err := client.NetworkID(context.Background())
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}

	w := &EthWallet{
		db:      db,
		logger:  log,
		client:  client,
		privKey: privKey,
		from:    crypto.PubkeyToAddress(privKey.PublicKey),
		chainID: chainID,
	}
	log.WithFields(logging.Fields{
		"operator": w.from.Hex(),
		"chain_id": chainID.String(),
	}).Info("Ethereum treasury connected")
	return w, nil
}

// Close releases the RPC connection.
func (w *EthWallet) Close() {
	if w.client != nil {
		w.client.Close()
	}
}

// OperatorAddress returns the wallet the operator signs payouts with.
func (w *EthWallet) OperatorAddress() string {
	return w.from.Hex()
}

// Ping checks RPC reachability for health reporting.
func (w *EthWallet) Ping(ctx context.Context) error {
	_, err := w.client.BlockNumber(ctx)
	return err
}

// Collect debits the payer's prepaid deposit. The conditional update keeps
// the balance from going negative without a separate read.
func (w *EthWallet) Collect(ctx context.Context, from string, amount int64) error {
	result, err := w.db.ExecContext(ctx, `
		UPDATE bursar.payer_deposits
		SET balance = balance - $2, updated_at = NOW()
		WHERE account = $1 AND balance >= $2`,
		from, amount)
	if err != nil {
		return fmt.Errorf("failed to debit deposit: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check debit result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: account %s needs %d wei prepaid", ErrInsufficientFunds, from, amount)
	}
	return nil
}

// Payout sends a signed ETH transfer from the operator wallet to the
// owner's address.
func (w *EthWallet) Payout(ctx context.Context, to string, amount int64) error {
	if !common.IsHexAddress(to) {
		return fmt.Errorf("payout target %q is not an Ethereum address", to)
	}
	toAddr := common.HexToAddress(to)
	value := big.NewInt(amount)

	nonce, err := w.client.PendingNonceAt(ctx, w.from)
	if err != nil {
		return fmt.Errorf("failed to get nonce: %w", err)
	}
	gasPrice, err := w.client.SuggestGasPrice(ctx)
	if err != nil {
		return fmt.Errorf("failed to get gas price: %w", err)
	}

	balance, err := w.client.BalanceAt(ctx, w.from, nil)
	if err != nil {
		return fmt.Errorf("failed to get operator balance: %w", err)
	}
	gasCost := new(big.Int).Mul(gasPrice, big.NewInt(int64(ethTransferGasLimit)))
	totalCost := new(big.Int).Add(value, gasCost)
	if balance.Cmp(totalCost) < 0 {
		return fmt.Errorf("operator wallet underfunded: have %s wei, need %s wei", balance.String(), totalCost.String())
	}

	tx := types.NewTransaction(nonce, toAddr, value, ethTransferGasLimit, gasPrice, nil)
	signedTx, err := types.SignTx(tx, types.NewEIP155Signer(w.chainID), w.privKey)
	if err != nil {
		return fmt.Errorf("failed to sign transaction: %w", err)
	}
	if err := w.client.SendTransaction(ctx, signedTx); err != nil {
		return fmt.Errorf("failed to send transaction: %w", err)
	}

	w.logger.WithFields(logging.Fields{
		"to":         toAddr.Hex(),
		"amount_wei": value.String(),
		"gas_price":  gasPrice.String(),
		"nonce":      nonce,
		"tx_hash":    signedTx.Hash().Hex(),
	}).Info("Payout transaction sent")
	return nil
}

// CreditDeposit records a confirmed on-chain deposit against the payer's
// prepaid balance. Called by the deposit monitor.
func (w *EthWallet) CreditDeposit(ctx context.Context, account string, amount int64) error {
	_, err := w.db.ExecContext(ctx, `
		INSERT INTO bursar.payer_deposits (account, balance, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (account) DO UPDATE
		SET balance = bursar.payer_deposits.balance + EXCLUDED.balance, updated_at = NOW()`,
		account, amount)
	if err != nil {
		return fmt.Errorf("failed to credit deposit: %w", err)
	}
	return nil
}

// DepositBalance returns the payer's prepaid balance in wei.
func (w *EthWallet) DepositBalance(ctx context.Context, account string) (int64, error) {
	var balance int64
	err := w.db.QueryRowContext(ctx,
		`SELECT balance FROM bursar.payer_deposits WHERE account = $1`,
		account).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read deposit balance: %w", err)
	}
	return balance, nil
}

// OperatorBalance fetches the operator wallet's on-chain balance. Used by
// the balance monitor job.
func (w *EthWallet) OperatorBalance(ctx context.Context) (*big.Int, error) {
	return w.client.BalanceAt(ctx, w.from, nil)
}
