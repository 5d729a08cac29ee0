package state

import "errors"

var (
	ErrAccountExists        = errors.New("state: account already exists")
	ErrAccountNotFound      = errors.New("state: account not found")
	ErrUnauthorizedDebit    = errors.New("state: authority cannot debit account")
	ErrInsufficientLamports = errors.New("state: insufficient lamports")
	ErrInsufficientTokens   = errors.New("state: insufficient token balance")
	ErrNotSystemAccount     = errors.New("state: lamports can only move out of system accounts")
	ErrMintNotFound         = errors.New("state: mint not found")
	ErrMintMismatch         = errors.New("state: token account mint mismatch")
	ErrDecimalsMismatch     = errors.New("state: transfer decimals do not match mint")
	ErrBalanceOverflow      = errors.New("state: balance overflow")
)
