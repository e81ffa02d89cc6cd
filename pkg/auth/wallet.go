package auth

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// WalletMessage represents a signed message for authentication
type WalletMessage struct {
	// Wallet address (0x prefixed hex)
	Address string
	// Message that was signed
	Message string
	// Signature in hex format (0x prefixed, 65 bytes: R|S|V)
	Signature string
}

// VerifyWalletAuth verifies an Ethereum wallet authentication attempt
// using EIP-191 personal_sign format. On success the returned address is
// the checksummed form of the claimed address.
func VerifyWalletAuth(msg WalletMessage) (string, error) {
	normalizedAddr, err := NormalizeEthAddress(msg.Address)
	if err != nil {
		return "", fmt.Errorf("invalid address format: %w", err)
	}

	if err := ValidateWalletMessageTimestamp(msg.Message); err != nil {
		return "", err
	}

	ok, err := VerifyEthSignature(normalizedAddr, msg.Message, msg.Signature)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("signature does not match address")
	}
	return normalizedAddr, nil
}

// GenerateWalletAuthMessage creates a message for wallet signing
// Format: "Bursar Login\nTimestamp: {iso}\nNonce: {random}"
func GenerateWalletAuthMessage(nonce string) string {
	timestamp := time.Now().UTC().Format(time.RFC3339)
	return fmt.Sprintf("Bursar Login\nTimestamp: %s\nNonce: %s", timestamp, nonce)
}

// ValidateWalletMessageTimestamp checks if the message timestamp is within 5 minutes
func ValidateWalletMessageTimestamp(message string) error {
	lines := strings.Split(message, "\n")
	for _, line := range lines {
		if strings.HasPrefix(line, "Timestamp: ") {
			timestampStr := strings.TrimPrefix(line, "Timestamp: ")
			timestamp, err := time.Parse(time.RFC3339, timestampStr)
			if err != nil {
				return fmt.Errorf("invalid timestamp format: %w", err)
			}

			age := time.Since(timestamp)
			if age < -1*time.Minute {
				return fmt.Errorf("message timestamp is in the future")
			}
			if age > 5*time.Minute {
				return fmt.Errorf("message timestamp expired (older than 5 minutes)")
			}
			return nil
		}
	}
	return fmt.Errorf("message missing timestamp")
}

// VerifyEthSignature verifies an EIP-191 personal_sign signature
func VerifyEthSignature(address, message, signature string) (bool, error) {
	sig, err := decodeHexSignature(signature)
	if err != nil {
		return false, fmt.Errorf("invalid signature format: %w", err)
	}
	if len(sig) != 65 {
		return false, fmt.Errorf("signature must be 65 bytes, got %d", len(sig))
	}

	// EIP-191: hash the prefixed message
	prefixedMessage := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(message), message)
	hash := crypto.Keccak256([]byte(prefixedMessage))

	// Transform V from 27/28 to 0/1 if needed
	v := sig[64]
	if v >= 27 {
		v -= 27
	}
	if v > 1 {
		return false, fmt.Errorf("invalid recovery id: %d", sig[64])
	}
	sig[64] = v

	pubKey, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return false, fmt.Errorf("failed to recover public key: %w", err)
	}

	recoveredAddr := crypto.PubkeyToAddress(*pubKey).Hex()
	return strings.EqualFold(recoveredAddr, address), nil
}

// NormalizeEthAddress converts an Ethereum address to checksum format
func NormalizeEthAddress(address string) (string, error) {
	if !common.IsHexAddress(address) {
		return "", fmt.Errorf("invalid ethereum address: %s", address)
	}
	return common.HexToAddress(address).Hex(), nil
}

func decodeHexSignature(signature string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(signature, "0x"))
}
