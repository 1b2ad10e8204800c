// Package signing hashes orders into their canonical digest and produces or
// verifies the maker's signature over that digest.
package signing

import (
	"crypto/ecdsa"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mselser95/market-sdk/pkg/types"
)

// HashOrder returns keccak256 over the tightly packed order tuple
// (contract, maker, taker, feeRecipient, makerFee, takerFee, price,
// expiration, salt, orderQty). orderQty is packed as a two's complement int256.
func HashOrder(order *types.Order) common.Hash {
	packed := make([]byte, 0, 4*common.AddressLength+6*32)
	packed = append(packed, order.ContractAddress.Bytes()...)
	packed = append(packed, order.Maker.Bytes()...)
	packed = append(packed, order.Taker.Bytes()...)
	packed = append(packed, order.FeeRecipient.Bytes()...)
	packed = append(packed, word(order.MakerFee)...)
	packed = append(packed, word(order.TakerFee)...)
	packed = append(packed, word(order.Price)...)
	packed = append(packed, word(order.ExpirationTimestamp)...)
	packed = append(packed, word(order.Salt)...)
	packed = append(packed, word(order.OrderQty)...)

	return crypto.Keccak256Hash(packed)
}

// word encodes v as a 32 byte big-endian two's complement word.
func word(v *big.Int) []byte {
	if v == nil {
		return make([]byte, 32)
	}
	// U256 mutates its argument
	return math.U256Bytes(new(big.Int).Set(v))
}

// SignHash signs the personal-message digest of orderHash.
// V is returned in the 27/28 form the contract's ecrecover expects.
func SignHash(orderHash common.Hash, key *ecdsa.PrivateKey) (types.ECSignature, error) {
	sig, err := crypto.Sign(accounts.TextHash(orderHash.Bytes()), key)
	if err != nil {
		return types.ECSignature{}, fmt.Errorf("sign order hash: %w", err)
	}

	return types.ECSignature{
		V: sig[crypto.RecoveryIDOffset] + 27,
		R: common.BytesToHash(sig[:32]),
		S: common.BytesToHash(sig[32:64]),
	}, nil
}

// RecoverSigner returns the address that produced sig over orderHash.
func RecoverSigner(orderHash common.Hash, sig types.ECSignature) (common.Address, error) {
	// ecrecover on chain only accepts 27 or 28.
	if sig.V != 27 && sig.V != 28 {
		return common.Address{}, fmt.Errorf("invalid signature v %d", sig.V)
	}
	v := sig.V - 27

	raw := make([]byte, crypto.SignatureLength)
	copy(raw[:32], sig.R.Bytes())
	copy(raw[32:64], sig.S.Bytes())
	raw[crypto.RecoveryIDOffset] = v

	pub, err := crypto.SigToPub(accounts.TextHash(orderHash.Bytes()), raw)
	if err != nil {
		return common.Address{}, fmt.Errorf("recover public key: %w", err)
	}

	return crypto.PubkeyToAddress(*pub), nil
}

// IsValidSignature reports whether sig over orderHash was made by signer.
func IsValidSignature(orderHash common.Hash, sig types.ECSignature, signer common.Address) bool {
	recovered, err := RecoverSigner(orderHash, sig)
	if err != nil {
		return false
	}
	return recovered == signer
}

// GenerateSalt returns a random 256-bit salt.
func GenerateSalt() (*big.Int, error) {
	buf := make([]byte, 32)
	_, err := rand.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("read random salt: %w", err)
	}
	return new(big.Int).SetBytes(buf), nil
}

// NewSignedOrder fills in the maker and salt when absent, then hashes and signs
// the order with key. The returned order has RemainingQty set to |OrderQty|.
func NewSignedOrder(order types.Order, key *ecdsa.PrivateKey) (*types.SignedOrder, common.Hash, error) {
	signer := crypto.PubkeyToAddress(key.PublicKey)

	if order.Maker == types.NullAddress {
		order.Maker = signer
	}
	if order.Maker != signer {
		return nil, common.Hash{}, fmt.Errorf("maker %s does not match signing key %s", order.Maker.Hex(), signer.Hex())
	}

	if order.Salt == nil {
		salt, err := GenerateSalt()
		if err != nil {
			return nil, common.Hash{}, err
		}
		order.Salt = salt
	}

	orderHash := HashOrder(&order)

	sig, err := SignHash(orderHash, key)
	if err != nil {
		return nil, common.Hash{}, err
	}

	remaining := new(big.Int)
	if order.OrderQty != nil {
		remaining.Abs(order.OrderQty)
	}

	return &types.SignedOrder{
		Order:        order,
		Signature:    sig,
		RemainingQty: remaining,
	}, orderHash, nil
}
