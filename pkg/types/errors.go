package types

import "fmt"

// OrderError is a validation failure raised before an order transaction is
// submitted. Two OrderErrors match under errors.Is when their codes match.
type OrderError struct {
	Code      string // taxonomy tag, e.g. ORDER_EXPIRED
	Message   string // human-readable detail
	OrderHash string // hex order hash if known
}

func (e *OrderError) Error() string {
	if e.OrderHash != "" {
		return fmt.Sprintf("order %s rejected: %s (%s)", e.OrderHash, e.Message, e.Code)
	}

	return fmt.Sprintf("order rejected: %s (%s)", e.Message, e.Code)
}

// Is matches on Code so callers can compare against the sentinels below.
func (e *OrderError) Is(target error) bool {
	t, ok := target.(*OrderError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Error codes
const (
	CodeContractAlreadySettled           = "CONTRACT_ALREADY_SETTLED"
	CodeContractNotSettled               = "CONTRACT_NOT_SETTLED"
	CodeInvalidTaker                     = "INVALID_TAKER"
	CodeOrderExpired                     = "ORDER_EXPIRED"
	CodeOrderFilledOrCancelled           = "ORDER_FILLED_OR_CANCELLED"
	CodeBuySellMismatch                  = "BUY_SELL_MISMATCH"
	CodeInvalidSignature                 = "INVALID_SIGNATURE"
	CodeUserNotEnabledForContract        = "USER_NOT_ENABLED_FOR_CONTRACT"
	CodeInsufficientBalanceForTransfer   = "INSUFFICIENT_BALANCE_FOR_TRANSFER"
	CodeInsufficientAllowanceForTransfer = "INSUFFICIENT_ALLOWANCE_FOR_TRANSFER"
	CodeInsufficientCollateralBalance    = "INSUFFICIENT_COLLATERAL_BALANCE"
	CodeUserHasNoAssociatedPositions     = "USER_HAS_NO_ASSOCIATED_POSITIONS"
)

//nolint:gochecknoglobals // sentinel errors
var (
	ErrContractAlreadySettled           = &OrderError{Code: CodeContractAlreadySettled, Message: "contract already settled"}
	ErrContractNotSettled               = &OrderError{Code: CodeContractNotSettled, Message: "contract not yet settled"}
	ErrInvalidTaker                     = &OrderError{Code: CodeInvalidTaker, Message: "sender is not the order taker"}
	ErrOrderExpired                     = &OrderError{Code: CodeOrderExpired, Message: "order expired"}
	ErrOrderFilledOrCancelled           = &OrderError{Code: CodeOrderFilledOrCancelled, Message: "order already filled or cancelled"}
	ErrBuySellMismatch                  = &OrderError{Code: CodeBuySellMismatch, Message: "fill quantity direction differs from order"}
	ErrInvalidSignature                 = &OrderError{Code: CodeInvalidSignature, Message: "signature does not match maker"}
	ErrUserNotEnabledForContract        = &OrderError{Code: CodeUserNotEnabledForContract, Message: "user not enabled for contract"}
	ErrInsufficientBalanceForTransfer   = &OrderError{Code: CodeInsufficientBalanceForTransfer, Message: "insufficient fee token balance"}
	ErrInsufficientAllowanceForTransfer = &OrderError{Code: CodeInsufficientAllowanceForTransfer, Message: "insufficient fee token allowance"}
	ErrInsufficientCollateralBalance    = &OrderError{Code: CodeInsufficientCollateralBalance, Message: "insufficient collateral balance"}
	ErrUserHasNoAssociatedPositions     = &OrderError{Code: CodeUserHasNoAssociatedPositions, Message: "user has no positions in contract"}
)

// NewOrderError returns a copy of sentinel bound to an order hash and detail.
func NewOrderError(sentinel *OrderError, orderHash string, detail string) *OrderError {
	msg := sentinel.Message
	if detail != "" {
		msg = msg + ": " + detail
	}
	return &OrderError{
		Code:      sentinel.Code,
		Message:   msg,
		OrderHash: orderHash,
	}
}
