package auth

import (
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/sha3"
)

// Signer derives the auth headers for a single request. Implementations must
// not cache headers between calls.
type Signer interface {
	Sign(method, path string) (http.Header, error)
}

// Anonymous sends requests without credentials.
type Anonymous struct{}

func (Anonymous) Sign(string, string) (http.Header, error) {
	return http.Header{}, nil
}

// Bearer attaches a static bearer token.
type Bearer struct {
	Token string
}

func (b Bearer) Sign(string, string) (http.Header, error) {
	header := http.Header{}
	if b.Token != "" {
		header.Set("Authorization", "Bearer "+b.Token)
	}
	return header, nil
}

const (
	chainLinkSigner       = "SIGNER"
	chainLinkSignedEntity = "ECDSA_SIGNED_ENTITY"
	headerChainPrefix     = "x-identity-auth-chain-"
	headerTimestamp       = "x-identity-timestamp"
	headerMetadata        = "x-identity-metadata"
)

type chainLink struct {
	Type      string `json:"type"`
	Payload   string `json:"payload"`
	Signature string `json:"signature"`
}

// Identity signs "method:path:timestamp:metadata" with a wallet key and emits
// the result as an auth chain, one header per link.
type Identity struct {
	key  *ecdsa.PrivateKey
	now  func() time.Time
	meta string
}

func NewIdentity(key *ecdsa.PrivateKey) *Identity {
	return &Identity{key: key, now: time.Now, meta: "{}"}
}

// NewIdentityFromHex loads the signing key from a hex string, with or without
// the 0x prefix.
func NewIdentityFromHex(hexKey string) (*Identity, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse identity key: %w", err)
	}
	return NewIdentity(key), nil
}

func (i *Identity) Address() string {
	return strings.ToLower(crypto.PubkeyToAddress(i.key.PublicKey).Hex())
}

func (i *Identity) Sign(method, path string) (http.Header, error) {
	timestamp := strconv.FormatInt(i.now().UnixMilli(), 10)
	payload := strings.ToLower(strings.Join([]string{method, path, timestamp, i.meta}, ":"))

	signature, err := crypto.Sign(PersonalMessageHash([]byte(payload)), i.key)
	if err != nil {
		return nil, fmt.Errorf("sign auth payload: %w", err)
	}
	// Wallets report v as 27/28.
	signature[64] += 27

	links := []chainLink{
		{Type: chainLinkSigner, Payload: i.Address()},
		{Type: chainLinkSignedEntity, Payload: payload, Signature: "0x" + hex.EncodeToString(signature)},
	}
	header := http.Header{}
	for index, link := range links {
		encoded, err := json.Marshal(link)
		if err != nil {
			return nil, fmt.Errorf("encode auth link: %w", err)
		}
		header.Set(headerChainPrefix+strconv.Itoa(index), string(encoded))
	}
	header.Set(headerTimestamp, timestamp)
	header.Set(headerMetadata, i.meta)
	return header, nil
}

// PersonalMessageHash is the keccak digest wallets sign for personal_sign.
func PersonalMessageHash(message []byte) []byte {
	hasher := sha3.NewLegacyKeccak256()
	_, _ = fmt.Fprintf(hasher, "\x19Ethereum Signed Message:\n%d", len(message))
	_, _ = hasher.Write(message)
	return hasher.Sum(nil)
}
