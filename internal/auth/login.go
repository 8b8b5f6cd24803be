package auth

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
)

var ErrBadSignature = errors.New("signature does not match address")

// LoginMessage is the text a wallet signs to open an intent-API session.
func LoginMessage(address string, timestamp time.Time) string {
	return "builder login:" + strings.ToLower(address) + ":" + strconv.FormatInt(timestamp.UnixMilli(), 10)
}

// VerifyLogin checks a personal_sign signature of LoginMessage and that the
// timestamp lies within maxSkew of now.
func VerifyLogin(address string, timestamp time.Time, signature string, now time.Time, maxSkew time.Duration) error {
	if skew := now.Sub(timestamp); skew > maxSkew || skew < -maxSkew {
		return fmt.Errorf("login timestamp outside allowed window: %w", ErrBadSignature)
	}
	raw, err := hex.DecodeString(strings.TrimPrefix(signature, "0x"))
	if err != nil || len(raw) != 65 {
		return fmt.Errorf("malformed signature: %w", ErrBadSignature)
	}
	if raw[64] >= 27 {
		raw[64] -= 27
	}
	message := LoginMessage(address, timestamp)
	pub, err := crypto.SigToPub(PersonalMessageHash([]byte(message)), raw)
	if err != nil {
		return fmt.Errorf("recover signer: %w", ErrBadSignature)
	}
	if !strings.EqualFold(crypto.PubkeyToAddress(*pub).Hex(), address) {
		return ErrBadSignature
	}
	return nil
}
