package ledger

import "errors"

var (
	ErrInvalidSender         = errors.New("invalid sender address")
	ErrInvalidReceiver       = errors.New("invalid receiver address")
	ErrInvalidApprover       = errors.New("invalid approver address")
	ErrInvalidSpender        = errors.New("invalid spender address")
	ErrInvalidAmount         = errors.New("amount must be positive")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
)
