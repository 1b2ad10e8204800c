package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const marketContractABIJSON = `[
	{"constant":true,"inputs":[],"name":"isSettled","outputs":[{"name":"","type":"bool"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"PRICE_FLOOR","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"PRICE_CAP","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"QTY_MULTIPLIER","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"MARKET_COLLATERAL_POOL_ADDRESS","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[{"name":"orderHash","type":"bytes32"}],"name":"getQtyFilledOrCancelledFromOrder","outputs":[{"name":"","type":"int256"}],"stateMutability":"view","type":"function"},
	{"constant":false,"inputs":[
		{"name":"orderAddresses","type":"address[3]"},
		{"name":"unsignedOrderValues","type":"uint256[5]"},
		{"name":"orderQty","type":"int256"},
		{"name":"qtyToFill","type":"int256"},
		{"name":"v","type":"uint8"},
		{"name":"r","type":"bytes32"},
		{"name":"s","type":"bytes32"}
	],"name":"tradeOrder","outputs":[{"name":"filledQty","type":"int256"}],"stateMutability":"nonpayable","type":"function"},
	{"constant":false,"inputs":[
		{"name":"orderAddresses","type":"address[3]"},
		{"name":"unsignedOrderValues","type":"uint256[5]"},
		{"name":"orderQty","type":"int256"},
		{"name":"qtyToCancel","type":"int256"}
	],"name":"cancelOrder","outputs":[{"name":"qtyCancelled","type":"int256"}],"stateMutability":"nonpayable","type":"function"},
	{"anonymous":false,"inputs":[
		{"indexed":true,"name":"maker","type":"address"},
		{"indexed":true,"name":"taker","type":"address"},
		{"indexed":true,"name":"feeRecipient","type":"address"},
		{"indexed":false,"name":"filledQty","type":"int256"},
		{"indexed":false,"name":"paidMakerFee","type":"uint256"},
		{"indexed":false,"name":"paidTakerFee","type":"uint256"},
		{"indexed":false,"name":"filledPrice","type":"uint256"},
		{"indexed":false,"name":"orderHash","type":"bytes32"}
	],"name":"OrderFilled","type":"event"},
	{"anonymous":false,"inputs":[
		{"indexed":true,"name":"maker","type":"address"},
		{"indexed":true,"name":"feeRecipient","type":"address"},
		{"indexed":false,"name":"cancelledQty","type":"int256"},
		{"indexed":true,"name":"orderHash","type":"bytes32"}
	],"name":"OrderCancelled","type":"event"}
]`

const collateralPoolABIJSON = `[
	{"constant":true,"inputs":[{"name":"userAddress","type":"address"}],"name":"getUserUnallocatedBalance","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[{"name":"userAddress","type":"address"}],"name":"getUserPositionCount","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"constant":false,"inputs":[],"name":"settleAndClose","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

// feeTokenABIJSON is ERC20 plus the protocol's per-contract enablement lookup.
const feeTokenABIJSON = `[
	{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[{"name":"marketContractAddress","type":"address"},{"name":"userAddress","type":"address"}],"name":"isUserEnabledForContract","outputs":[{"name":"","type":"bool"}],"stateMutability":"view","type":"function"}
]`

//nolint:gochecknoglobals // parsed once at init
var (
	MarketContractABI = mustParseABI(marketContractABIJSON)
	CollateralPoolABI = mustParseABI(collateralPoolABIJSON)
	FeeTokenABI       = mustParseABI(feeTokenABIJSON)
)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic("parse ABI: " + err.Error())
	}
	return parsed
}
