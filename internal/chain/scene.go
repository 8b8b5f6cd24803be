package chain

import (
	"context"
	"fmt"
	"math/big"

	"builder/internal/model"
)

// CreateScene records a deployed scene in the scene registry. The
// transaction hash doubles as the deployment id.
func (c *Client) CreateScene(ctx context.Context, owner, uri string) (string, error) {
	account, err := parseAddress(owner)
	if err != nil {
		return "", &ContractError{Contract: "scene", Method: "create", Err: err}
	}
	return c.transact(ctx, "scene", c.addresses.Scene, sceneABI, "create", account, uri)
}

// FetchAuthorization reads the current on-chain state of an allowance or an
// operator approval.
func (c *Client) FetchAuthorization(ctx context.Context, authorization model.Authorization) (model.Authorization, error) {
	owner, err := parseAddress(authorization.Address)
	if err != nil {
		return model.Authorization{}, &ContractError{Contract: "authorization", Method: string(authorization.Type), Err: err}
	}
	contract, err := parseAddress(authorization.ContractAddress)
	if err != nil {
		return model.Authorization{}, &ContractError{Contract: "authorization", Method: string(authorization.Type), Err: err}
	}
	spender, err := parseAddress(authorization.AuthorizedAddress)
	if err != nil {
		return model.Authorization{}, &ContractError{Contract: "authorization", Method: string(authorization.Type), Err: err}
	}

	result := authorization
	result.ChainID = c.ChainID()
	switch authorization.Type {
	case model.AuthorizationAllowance:
		out, err := c.call(ctx, "erc20", contract, erc20ABI, "allowance", owner, spender)
		if err != nil {
			return model.Authorization{}, err
		}
		allowance, _ := out[0].(*big.Int)
		result.Granted = allowance != nil && allowance.Sign() > 0
	case model.AuthorizationApproval:
		out, err := c.call(ctx, "erc721", contract, collectionABI, "isApprovedForAll", owner, spender)
		if err != nil {
			return model.Authorization{}, err
		}
		approved, _ := out[0].(bool)
		result.Granted = approved
	default:
		return model.Authorization{}, &ContractError{Contract: "authorization", Method: string(authorization.Type), Err: fmt.Errorf("unknown authorization type %q", authorization.Type)}
	}
	return result, nil
}
