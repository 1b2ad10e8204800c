package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// NullAddress is the taker sentinel for open orders and the fee recipient
// sentinel for orders that charge no fees.
var NullAddress = common.Address{}

// Order is an unsigned order against a single market contract.
// OrderQty is signed: positive buys (long), negative sells (short).
type Order struct {
	ContractAddress     common.Address `json:"contractAddress"`
	Maker               common.Address `json:"maker"`
	Taker               common.Address `json:"taker"`
	FeeRecipient        common.Address `json:"feeRecipient"`
	MakerFee            *big.Int       `json:"makerFee"`
	TakerFee            *big.Int       `json:"takerFee"`
	Price               *big.Int       `json:"price"`
	ExpirationTimestamp *big.Int       `json:"expirationTimestamp"`
	Salt                *big.Int       `json:"salt"`
	OrderQty            *big.Int       `json:"orderQty"`
}

// IsOpen reports whether any taker may fill the order.
func (o *Order) IsOpen() bool {
	return o.Taker == NullAddress
}

// ChargesFees reports whether the order names a fee recipient.
func (o *Order) ChargesFees() bool {
	return o.FeeRecipient != NullAddress
}

// IsBuy reports whether the order opens a long position for the maker.
func (o *Order) IsBuy() bool {
	return o.OrderQty != nil && o.OrderQty.Sign() > 0
}

// ECSignature is a secp256k1 signature split into its v, r and s parts.
type ECSignature struct {
	V uint8       `json:"v"`
	R common.Hash `json:"r"`
	S common.Hash `json:"s"`
}

// SignedOrder is an Order plus the maker's signature over its hash.
// RemainingQty is filled in by the caller from prior fill history; nil means
// unknown and is resolved from the filled/cancelled ledger.
type SignedOrder struct {
	Order
	Signature    ECSignature `json:"ecSignature"`
	RemainingQty *big.Int    `json:"remainingQty,omitempty"`
}

// ContractTerms are the immutable parameters of a deployed market contract.
type ContractTerms struct {
	PriceFloor     *big.Int
	PriceCap       *big.Int
	QtyMultiplier  *big.Int
	CollateralPool common.Address
}

// OrderTransaction describes a mined tradeOrder transaction.
type OrderTransaction struct {
	TxHash      common.Hash  `json:"txHash"`
	BlockNumber uint64       `json:"blockNumber"`
	Order       *SignedOrder `json:"order"`
	FillQty     *big.Int     `json:"fillQty"`
}

// CancelTransaction describes a mined cancelOrder transaction.
type CancelTransaction struct {
	TxHash      common.Hash `json:"txHash"`
	BlockNumber uint64      `json:"blockNumber"`
	Order       *Order      `json:"order"`
	CancelQty   *big.Int    `json:"cancelQty"`
}

// TxReceipt is the minimal result of a mined transaction.
type TxReceipt struct {
	TxHash      common.Hash
	BlockNumber uint64
}
