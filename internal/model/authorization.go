package model

type AuthorizationType string

const (
	AuthorizationAllowance AuthorizationType = "allowance"
	AuthorizationApproval  AuthorizationType = "approval"
)

// Authorization is a read-only view of on-chain allowance or operator
// approval for an (owner, spender, contract) triple. It is always fetched
// fresh and never created locally.
type Authorization struct {
	Type              AuthorizationType `json:"type"`
	Address           string            `json:"address"`
	ContractAddress   string            `json:"contractAddress"`
	AuthorizedAddress string            `json:"authorizedAddress"`
	ChainID           int64             `json:"chainId"`
	Granted           bool              `json:"granted"`
}

// Key identifies the triple an authorization describes.
func (a Authorization) Key() string {
	return string(a.Type) + ":" + a.Address + ":" + a.ContractAddress + ":" + a.AuthorizedAddress
}
