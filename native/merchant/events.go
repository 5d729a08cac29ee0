package merchant

import (
	"strconv"

	"github.com/gagliardetto/solana-go"

	"gotsol/core/types"
)

const (
	EventTypeMerchantCreated       = "merchant.created"
	EventTypeMerchantClosed        = "merchant.closed"
	EventTypeMerchantWithdrawn     = "merchant.withdrawn"
	EventTypeMerchantRefunded      = "merchant.refunded"
	EventTypeMerchantStatusChanged = "merchant.status_changed"
	EventTypeRefundClosed          = "merchant.refund_closed"
	EventTypeMerchantPayment       = "merchant.payment"
	EventTypeCompliancePaid        = "merchant.compliance_paid"
	EventTypeRefundLimitSet        = "merchant.refund_limit_set"
)

type merchantEvent struct {
	evt *types.Event
}

func (e merchantEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e merchantEvent) Event() *types.Event { return e.evt }

func formatUint(v uint64) string { return strconv.FormatUint(v, 10) }

// NewCreatedEvent returns the payload emitted when a merchant registers.
func NewCreatedEvent(addr solana.PublicKey, m *Merchant) *types.Event {
	return &types.Event{
		Type: EventTypeMerchantCreated,
		Attributes: map[string]string{
			"merchant":    addr.String(),
			"owner":       m.Owner.String(),
			"name":        m.EntityName,
			"feeEligible": strconv.FormatBool(m.FeeEligible),
			"createdAt":   strconv.FormatInt(m.CreatedAt, 10),
		},
	}
}

// NewClosedEvent returns the payload emitted when a merchant record is closed.
func NewClosedEvent(addr solana.PublicKey, m *Merchant, reclaimed uint64) *types.Event {
	return &types.Event{
		Type: EventTypeMerchantClosed,
		Attributes: map[string]string{
			"merchant":  addr.String(),
			"owner":     m.Owner.String(),
			"reclaimed": formatUint(reclaimed),
		},
	}
}

// NewRefundLimitSetEvent records a change to the per-refund cap.
func NewRefundLimitSetEvent(addr solana.PublicKey, limit uint64) *types.Event {
	return &types.Event{
		Type: EventTypeRefundLimitSet,
		Attributes: map[string]string{
			"merchant": addr.String(),
			"limit":    formatUint(limit),
		},
	}
}

// NewWithdrawnEvent returns the payload of a completed withdrawal. Each leg is
// reported under its role name.
func NewWithdrawnEvent(r *Receipt) *types.Event {
	attrs := map[string]string{
		"merchant":  r.Merchant.String(),
		"asset":     AssetLabel(r.Asset),
		"amount":    formatUint(r.Gross),
		"remainder": formatUint(r.Remainder),
	}
	for _, leg := range r.Legs {
		attrs[string(leg.Role)+"Amount"] = formatUint(leg.Amount)
	}
	return &types.Event{Type: EventTypeMerchantWithdrawn, Attributes: attrs}
}

// NewRefundedEvent returns the payload of a processed refund.
func NewRefundedEvent(rec *RefundRecord) *types.Event {
	return &types.Event{
		Type: EventTypeMerchantRefunded,
		Attributes: map[string]string{
			"merchant":      rec.Merchant.String(),
			"originalTxSig": rec.OriginalTxSig,
			"asset":         AssetLabel(rec.Asset),
			"recipient":     rec.Recipient.String(),
			"amount":        formatUint(rec.Amount),
		},
	}
}

// NewStatusChangedEvent returns the payload of a fee eligibility change.
func NewStatusChangedEvent(addr, admin solana.PublicKey, feeEligible bool, ts int64) *types.Event {
	return &types.Event{
		Type: EventTypeMerchantStatusChanged,
		Attributes: map[string]string{
			"merchant":    addr.String(),
			"admin":       admin.String(),
			"feeEligible": strconv.FormatBool(feeEligible),
			"timestamp":   strconv.FormatInt(ts, 10),
		},
	}
}

// NewRefundClosedEvent returns the payload emitted when an admin reclaims a
// refund record.
func NewRefundClosedEvent(sig string, admin solana.PublicKey, reclaimed uint64, denylisted bool) *types.Event {
	return &types.Event{
		Type: EventTypeRefundClosed,
		Attributes: map[string]string{
			"originalTxSig": sig,
			"admin":         admin.String(),
			"reclaimed":     formatUint(reclaimed),
			"denylisted":    strconv.FormatBool(denylisted),
		},
	}
}

// NewPaymentEvent returns the payload of a customer deposit into custody.
func NewPaymentEvent(addr, payer, asset solana.PublicKey, amount uint64) *types.Event {
	return &types.Event{
		Type: EventTypeMerchantPayment,
		Attributes: map[string]string{
			"merchant": addr.String(),
			"payer":    payer.String(),
			"asset":    AssetLabel(asset),
			"amount":   formatUint(amount),
		},
	}
}

// NewCompliancePaidEvent returns the payload of a compliance escrow sweep.
func NewCompliancePaidEvent(addr, mint, recipient solana.PublicKey, amount uint64) *types.Event {
	return &types.Event{
		Type: EventTypeCompliancePaid,
		Attributes: map[string]string{
			"merchant":  addr.String(),
			"mint":      mint.String(),
			"recipient": recipient.String(),
			"amount":    formatUint(amount),
		},
	}
}
