package merchant

import "errors"

// Input validation.
var (
	ErrInvalidMerchantName         = errors.New("merchant: invalid merchant name: must be 1-32 bytes after trimming")
	ErrZeroAmount                  = errors.New("merchant: amount must be greater than zero")
	ErrZeroAmountRefund            = errors.New("merchant: refund amount must be greater than zero")
	ErrBelowMinimumWithdrawal      = errors.New("merchant: amount is below the minimum withdrawal")
	ErrInvalidWithdrawalAmount     = errors.New("merchant: amount too small to give every split leg a non-zero share")
	ErrInvalidTransactionSignature = errors.New("merchant: invalid transaction signature format")
	ErrExcessiveRefundAmount       = errors.New("merchant: refund amount exceeds the allowed maximum")
	ErrInvalidRecipient            = errors.New("merchant: invalid recipient")
)

// Authorization.
var (
	ErrNotMerchantOwner         = errors.New("merchant: only the merchant owner can call this instruction")
	ErrUnauthorizedStatusChange = errors.New("merchant: only an admin key can change merchant status")
	ErrUnauthorized             = errors.New("merchant: caller is not an admin key")
	ErrSeedMismatch             = errors.New("merchant: derived address does not match stored seeds")
	ErrFeeIneligibleMerchant    = errors.New("merchant: merchant is not eligible for fee sponsorship")
	ErrSponsorUnavailable       = errors.New("merchant: fee sponsor not configured")
)

// Balances.
var (
	ErrInsufficientFunds      = errors.New("merchant: insufficient funds in custody")
	ErrRentExemptionViolation = errors.New("merchant: withdrawal would leave the vault below the rent-exempt minimum")
	ErrCustodyNotEmpty        = errors.New("merchant: custody still holds funds")
	ErrPayerInsufficientFunds = errors.New("merchant: payer balance too low")
)

// Arithmetic.
var ErrArithmeticOverflow = errors.New("merchant: arithmetic overflow")

// Duplicates and lookups.
var (
	ErrAccountAlreadyExists = errors.New("merchant: account already exists")
	ErrDuplicateRefund      = errors.New("merchant: transaction already refunded")
	ErrMerchantNotFound     = errors.New("merchant: merchant not found")
	ErrRefundNotFound       = errors.New("merchant: refund record not found")
)

// Configuration mismatches.
var (
	ErrUnsupportedMint      = errors.New("merchant: mint is not configured")
	ErrMintDecimalsMismatch = errors.New("merchant: mint decimals do not match configuration")
	ErrInvalidSchedule      = errors.New("merchant: invalid split schedule")
	ErrInvalidParams        = errors.New("merchant: invalid params")
)

var errNilState = errors.New("merchant engine: state not configured")

// ErrorClass groups errors by the kind of failure they report.
type ErrorClass string

const (
	ClassValidation    ErrorClass = "validation"
	ClassAuthorization ErrorClass = "authorization"
	ClassBalance       ErrorClass = "balance"
	ClassArithmetic    ErrorClass = "arithmetic"
	ClassDuplicate     ErrorClass = "duplicate"
	ClassConfiguration ErrorClass = "configuration"
	ClassInternal      ErrorClass = "internal"
)

type errorInfo struct {
	code  uint32
	name  string
	class ErrorClass
}

// Codes are stable across releases and never reused.
var errorTable = []struct {
	err  error
	info errorInfo
}{
	{ErrInsufficientFunds, errorInfo{6000, "InsufficientFunds", ClassBalance}},
	{ErrNotMerchantOwner, errorInfo{6001, "NotMerchantOwner", ClassAuthorization}},
	{ErrZeroAmount, errorInfo{6002, "ZeroAmount", ClassValidation}},
	{ErrInvalidMerchantName, errorInfo{6003, "InvalidMerchantName", ClassValidation}},
	{ErrFeeIneligibleMerchant, errorInfo{6004, "FeeIneligibleMerchant", ClassAuthorization}},
	{ErrUnauthorizedStatusChange, errorInfo{6005, "UnauthorizedStatusChange", ClassAuthorization}},
	{ErrInvalidTransactionSignature, errorInfo{6006, "InvalidTransactionSignature", ClassValidation}},
	{ErrExcessiveRefundAmount, errorInfo{6007, "ExcessiveRefundAmount", ClassValidation}},
	{ErrArithmeticOverflow, errorInfo{6008, "ArithmeticOverflow", ClassArithmetic}},
	{ErrBelowMinimumWithdrawal, errorInfo{6009, "BelowMinimumWithdrawal", ClassValidation}},
	{ErrInvalidWithdrawalAmount, errorInfo{6010, "InvalidWithdrawalAmount", ClassValidation}},
	{ErrZeroAmountRefund, errorInfo{6011, "ZeroAmountRefund", ClassValidation}},
	{ErrRentExemptionViolation, errorInfo{6012, "RentExemptionViolation", ClassBalance}},
	{ErrCustodyNotEmpty, errorInfo{6013, "CustodyNotEmpty", ClassBalance}},
	{ErrAccountAlreadyExists, errorInfo{6014, "AccountAlreadyExists", ClassDuplicate}},
	{ErrDuplicateRefund, errorInfo{6015, "DuplicateRefund", ClassDuplicate}},
	{ErrUnauthorized, errorInfo{6016, "Unauthorized", ClassAuthorization}},
	{ErrSeedMismatch, errorInfo{6017, "SeedMismatch", ClassAuthorization}},
	{ErrSponsorUnavailable, errorInfo{6018, "SponsorUnavailable", ClassConfiguration}},
	{ErrUnsupportedMint, errorInfo{6019, "UnsupportedMint", ClassConfiguration}},
	{ErrMintDecimalsMismatch, errorInfo{6020, "MintDecimalsMismatch", ClassConfiguration}},
	{ErrInvalidSchedule, errorInfo{6021, "InvalidSchedule", ClassConfiguration}},
	{ErrInvalidParams, errorInfo{6022, "InvalidParams", ClassConfiguration}},
	{ErrMerchantNotFound, errorInfo{6023, "MerchantNotFound", ClassValidation}},
	{ErrRefundNotFound, errorInfo{6024, "RefundNotFound", ClassValidation}},
	{ErrInvalidRecipient, errorInfo{6025, "InvalidRecipient", ClassValidation}},
	{ErrPayerInsufficientFunds, errorInfo{6026, "PayerInsufficientFunds", ClassBalance}},
}

// Code resolves the stable numeric code, name and class of a merchant error.
// ok is false for errors that did not originate in this package.
func Code(err error) (code uint32, name string, class ErrorClass, ok bool) {
	if err == nil {
		return 0, "", "", false
	}
	for _, entry := range errorTable {
		if errors.Is(err, entry.err) {
			return entry.info.code, entry.info.name, entry.info.class, true
		}
	}
	return 0, "", ClassInternal, false
}
