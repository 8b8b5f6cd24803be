// Package chain submits contract transactions for collections, land and
// scenes and reads authorization state. Every write returns the transaction
// hash once the transaction is mined.
package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// ErrReverted is returned when a mined transaction has a failed status.
var ErrReverted = errors.New("transaction reverted")

// ContractError wraps a failed contract call or transaction.
type ContractError struct {
	Contract string
	Method   string
	TxHash   string
	Err      error
}

func (e *ContractError) Error() string {
	if e == nil {
		return ""
	}
	if e.TxHash != "" {
		return fmt.Sprintf("%s.%s (%s): %v", e.Contract, e.Method, e.TxHash, e.Err)
	}
	return fmt.Sprintf("%s.%s: %v", e.Contract, e.Method, e.Err)
}

func (e *ContractError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Backend is the RPC surface the client needs. *ethclient.Client satisfies it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

// Addresses is the per-chain contract address book.
type Addresses struct {
	Factory common.Address
	Estate  common.Address
	Parcel  common.Address
	Scene   common.Address
	Bean    common.Address
	Mana    common.Address
}

// ParseAddresses validates the hex addresses of a contract book.
func ParseAddresses(factory, estate, parcel, scene, bean, mana string) (Addresses, error) {
	var out Addresses
	fields := []struct {
		name  string
		value string
		dst   *common.Address
	}{
		{"factory", factory, &out.Factory},
		{"estate", estate, &out.Estate},
		{"parcel", parcel, &out.Parcel},
		{"scene", scene, &out.Scene},
		{"bean", bean, &out.Bean},
		{"mana", mana, &out.Mana},
	}
	for _, field := range fields {
		if field.value == "" {
			continue
		}
		if !common.IsHexAddress(field.value) {
			return Addresses{}, fmt.Errorf("contract %s: invalid address %q", field.name, field.value)
		}
		*field.dst = common.HexToAddress(field.value)
	}
	return out, nil
}

type Client struct {
	backend   Backend
	opts      bind.TransactOpts
	chainID   *big.Int
	addresses Addresses
	logger    *zap.Logger

	// sendMu serializes submission so concurrent workflows do not pick the
	// same pending nonce. Waiting for receipts happens outside the lock.
	sendMu sync.Mutex
}

func NewClient(backend Backend, key *ecdsa.PrivateKey, chainID *big.Int, addresses Addresses, logger *zap.Logger) (*Client, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return nil, fmt.Errorf("build transactor: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		backend:   backend,
		opts:      *opts,
		chainID:   new(big.Int).Set(chainID),
		addresses: addresses,
		logger:    logger,
	}, nil
}

func (c *Client) ChainID() int64 {
	return c.chainID.Int64()
}

// From is the address transactions are signed by.
func (c *Client) From() string {
	return strings.ToLower(c.opts.From.Hex())
}

func (c *Client) Addresses() Addresses {
	return c.addresses
}

func (c *Client) transact(ctx context.Context, name string, address common.Address, parsed abi.ABI, method string, args ...any) (string, error) {
	if address == (common.Address{}) {
		return "", &ContractError{Contract: name, Method: method, Err: errors.New("contract address not configured")}
	}
	contract := bind.NewBoundContract(address, parsed, c.backend, c.backend, c.backend)

	opts := c.opts
	opts.Context = ctx

	c.sendMu.Lock()
	tx, err := contract.Transact(&opts, method, args...)
	c.sendMu.Unlock()
	if err != nil {
		return "", &ContractError{Contract: name, Method: method, Err: err}
	}

	hash := tx.Hash().Hex()
	c.logger.Info("transaction sent", zap.String("contract", name), zap.String("method", method), zap.String("tx", hash))

	receipt, err := bind.WaitMined(ctx, c.backend, tx)
	if err != nil {
		return "", &ContractError{Contract: name, Method: method, TxHash: hash, Err: err}
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return "", &ContractError{Contract: name, Method: method, TxHash: hash, Err: ErrReverted}
	}
	return hash, nil
}

func (c *Client) call(ctx context.Context, name string, address common.Address, parsed abi.ABI, method string, args ...any) ([]any, error) {
	contract := bind.NewBoundContract(address, parsed, c.backend, c.backend, c.backend)
	var out []any
	if err := contract.Call(&bind.CallOpts{Context: ctx, From: c.opts.From}, &out, method, args...); err != nil {
		return nil, &ContractError{Contract: name, Method: method, Err: err}
	}
	if len(out) == 0 {
		return nil, &ContractError{Contract: name, Method: method, Err: errors.New("empty result")}
	}
	return out, nil
}

func parseAddress(value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("invalid address %q", value)
	}
	return common.HexToAddress(value), nil
}

// parseAmount reads a base-10 integer, treating "" as zero.
func parseAmount(value string) (*big.Int, error) {
	if value == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(value, 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	return amount, nil
}

// beneficiaryAddress maps an unset beneficiary to the zero address.
func beneficiaryAddress(value string) (common.Address, error) {
	if value == "" || value == "0x" {
		return common.Address{}, nil
	}
	return parseAddress(value)
}
