package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const itemTupleComponents = `[
  {"name": "maxSupply", "type": "uint256"},
  {"name": "totalSupply", "type": "uint256"},
  {"name": "tokenURI", "type": "string"},
  {"name": "price", "type": "uint256"},
  {"name": "beneficiary", "type": "address"}
]`

const factoryABIJSON = `[
  {"type": "function", "name": "create", "stateMutability": "nonpayable",
   "inputs": [
     {"name": "name", "type": "string"},
     {"name": "symbol", "type": "string"},
     {"name": "items", "type": "tuple[]", "components": [
       {"name": "maxSupply", "type": "uint256"},
       {"name": "tokenURI", "type": "string"},
       {"name": "price", "type": "uint256"},
       {"name": "beneficiary", "type": "address"}
     ]},
     {"name": "baseURI", "type": "string"}
   ],
   "outputs": [{"name": "", "type": "address"}]}
]`

const collectionABIJSON = `[
  {"type": "function", "name": "setMinter", "stateMutability": "nonpayable",
   "inputs": [{"name": "minter", "type": "address"}, {"name": "value", "type": "bool"}],
   "outputs": []},
  {"type": "function", "name": "batchCreate", "stateMutability": "nonpayable",
   "inputs": [{"name": "to", "type": "address"}, {"name": "itemId", "type": "uint256"}, {"name": "amount", "type": "uint256"}],
   "outputs": []},
  {"type": "function", "name": "items", "stateMutability": "view",
   "inputs": [{"name": "id", "type": "uint256"}],
   "outputs": [{"name": "", "type": "tuple", "components": ` + itemTupleComponents + `}]},
  {"type": "function", "name": "editItems", "stateMutability": "nonpayable",
   "inputs": [
     {"name": "ids", "type": "uint256[]"},
     {"name": "items", "type": "tuple[]", "components": ` + itemTupleComponents + `}
   ],
   "outputs": []},
  {"type": "function", "name": "isApprovedForAll", "stateMutability": "view",
   "inputs": [{"name": "owner", "type": "address"}, {"name": "operator", "type": "address"}],
   "outputs": [{"name": "", "type": "bool"}]}
]`

const estateABIJSON = `[
  {"type": "function", "name": "createBundle", "stateMutability": "nonpayable",
   "inputs": [{"name": "landIds", "type": "uint256[]"}, {"name": "metadata", "type": "string"}],
   "outputs": [{"name": "", "type": "uint256"}]},
  {"type": "function", "name": "addItems", "stateMutability": "nonpayable",
   "inputs": [{"name": "bundleId", "type": "uint256"}, {"name": "landIds", "type": "uint256[]"}],
   "outputs": []},
  {"type": "function", "name": "removeItems", "stateMutability": "nonpayable",
   "inputs": [{"name": "bundleId", "type": "uint256"}, {"name": "landIds", "type": "uint256[]"}],
   "outputs": []},
  {"type": "function", "name": "removeAllItems", "stateMutability": "nonpayable",
   "inputs": [{"name": "bundleId", "type": "uint256"}],
   "outputs": []},
  {"type": "function", "name": "updateMetadata", "stateMutability": "nonpayable",
   "inputs": [{"name": "bundleId", "type": "uint256"}, {"name": "metadata", "type": "string"}],
   "outputs": []},
  {"type": "function", "name": "transferFrom", "stateMutability": "nonpayable",
   "inputs": [{"name": "from", "type": "address"}, {"name": "to", "type": "address"}, {"name": "tokenId", "type": "uint256"}],
   "outputs": []},
  {"type": "function", "name": "isApprovedForAll", "stateMutability": "view",
   "inputs": [{"name": "owner", "type": "address"}, {"name": "operator", "type": "address"}],
   "outputs": [{"name": "", "type": "bool"}]}
]`

const parcelABIJSON = `[
  {"type": "function", "name": "setMetadata", "stateMutability": "nonpayable",
   "inputs": [{"name": "landId", "type": "uint256"}, {"name": "metadata", "type": "string"}],
   "outputs": []},
  {"type": "function", "name": "transferFrom", "stateMutability": "nonpayable",
   "inputs": [{"name": "from", "type": "address"}, {"name": "to", "type": "address"}, {"name": "tokenId", "type": "uint256"}],
   "outputs": []},
  {"type": "function", "name": "isApprovedForAll", "stateMutability": "view",
   "inputs": [{"name": "owner", "type": "address"}, {"name": "operator", "type": "address"}],
   "outputs": [{"name": "", "type": "bool"}]}
]`

const sceneABIJSON = `[
  {"type": "function", "name": "create", "stateMutability": "nonpayable",
   "inputs": [{"name": "owner", "type": "address"}, {"name": "uri", "type": "string"}],
   "outputs": [{"name": "", "type": "uint256"}]}
]`

const erc20ABIJSON = `[
  {"type": "function", "name": "allowance", "stateMutability": "view",
   "inputs": [{"name": "owner", "type": "address"}, {"name": "spender", "type": "address"}],
   "outputs": [{"name": "", "type": "uint256"}]}
]`

var (
	factoryABI    = mustParseABI(factoryABIJSON)
	collectionABI = mustParseABI(collectionABIJSON)
	estateABI     = mustParseABI(estateABIJSON)
	parcelABI     = mustParseABI(parcelABIJSON)
	sceneABI      = mustParseABI(sceneABIJSON)
	erc20ABI      = mustParseABI(erc20ABIJSON)
)

func mustParseABI(definition string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(definition))
	if err != nil {
		panic("chain: invalid abi: " + err.Error())
	}
	return parsed
}
