package state

import (
	"fmt"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/vitwit/x402-escrow/types"
)

// PaymentRequestSpace is the allocated size of a payment request account, with
// both strings at their maximum length.
const PaymentRequestSpace = DiscriminatorLen +
	(4 + types.MaxRequestIDLen) + 32 + 8 + (4 + types.MaxResourceTagLen) +
	1 + 8 + 32 + 8 + 1

// PaymentRequest is the flat on-ledger layout. Use State for the paid/unpaid view.
type PaymentRequest struct {
	RequestID   string           `json:"requestId"`
	Requester   solana.PublicKey `json:"requester"`
	Amount      uint64           `json:"amount"`
	ResourceTag string           `json:"resourceIdentifier"`
	IsPaid      bool             `json:"isPaid"`
	PaidAt      int64            `json:"paidAt"`
	Payer       solana.PublicKey `json:"payer"`
	CreatedAt   int64            `json:"createdAt"`
	Bump        uint8            `json:"bump"`
}

func (r PaymentRequest) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := writeDiscriminator(enc, PaymentRequestDiscriminator); err != nil {
		return err
	}
	if err := writeString(enc, r.RequestID); err != nil {
		return err
	}
	if err := writeKey(enc, r.Requester); err != nil {
		return err
	}
	if err := enc.WriteUint64(r.Amount, le); err != nil {
		return err
	}
	if err := writeString(enc, r.ResourceTag); err != nil {
		return err
	}
	if err := writeBool(enc, r.IsPaid); err != nil {
		return err
	}
	if err := enc.WriteInt64(r.PaidAt, le); err != nil {
		return err
	}
	if err := writeKey(enc, r.Payer); err != nil {
		return err
	}
	if err := enc.WriteInt64(r.CreatedAt, le); err != nil {
		return err
	}
	return enc.WriteUint8(r.Bump)
}

func (r *PaymentRequest) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	if err = readDiscriminator(dec, PaymentRequestDiscriminator); err != nil {
		return err
	}
	if r.RequestID, err = readString(dec, "request_id", types.MaxRequestIDLen); err != nil {
		return err
	}
	if r.Requester, err = readKey(dec, "requester"); err != nil {
		return err
	}
	if r.Amount, err = dec.ReadUint64(le); err != nil {
		return fieldErr("amount", err)
	}
	if r.ResourceTag, err = readString(dec, "resource_identifier", types.MaxResourceTagLen); err != nil {
		return err
	}
	if r.IsPaid, err = readBool(dec, "is_paid"); err != nil {
		return err
	}
	if r.PaidAt, err = dec.ReadInt64(le); err != nil {
		return fieldErr("paid_at", err)
	}
	if r.Payer, err = readKey(dec, "payer"); err != nil {
		return err
	}
	if r.CreatedAt, err = dec.ReadInt64(le); err != nil {
		return fieldErr("created_at", err)
	}
	if r.Bump, err = dec.ReadUint8(); err != nil {
		return fieldErr("bump", err)
	}
	return r.checkSettlementFields()
}

// checkSettlementFields rejects flat layouts that do not map onto Unpaid or Paid.
func (r *PaymentRequest) checkSettlementFields() error {
	if r.IsPaid {
		if r.Payer.IsZero() {
			return fieldErr("payer", fmt.Errorf("paid request without payer"))
		}
		return nil
	}
	if !r.Payer.IsZero() || r.PaidAt != 0 {
		return fieldErr("payer", fmt.Errorf("unpaid request carries settlement fields"))
	}
	return nil
}

// Marshal returns the account data, padded to PaymentRequestSpace.
func (r PaymentRequest) Marshal() ([]byte, error) {
	return marshal(PaymentRequestSpace, r.MarshalWithEncoder)
}

// DecodePaymentRequest parses raw account data. Any failure is a decode error.
func DecodePaymentRequest(data []byte) (*PaymentRequest, error) {
	var r PaymentRequest
	if err := r.UnmarshalWithDecoder(bin.NewBorshDecoder(data)); err != nil {
		return nil, err
	}
	return &r, nil
}

// MarkPaid performs the one-way unpaid -> paid transition.
func (r *PaymentRequest) MarkPaid(payer solana.PublicKey, at int64) error {
	if r.IsPaid {
		return types.ErrAlreadyPaid
	}
	r.IsPaid = true
	r.Payer = payer
	r.PaidAt = at
	return nil
}

// RequestState is either Unpaid or Paid.
type RequestState interface {
	isRequestState()
}

type Unpaid struct{}

type Paid struct {
	Payer  solana.PublicKey
	PaidAt time.Time
}

func (Unpaid) isRequestState() {}
func (Paid) isRequestState()   {}

// State returns the settlement view of the record.
func (r *PaymentRequest) State() RequestState {
	if !r.IsPaid {
		return Unpaid{}
	}
	return Paid{Payer: r.Payer, PaidAt: time.Unix(r.PaidAt, 0).UTC()}
}

// Status maps the record onto the read-side status.
func (r *PaymentRequest) Status() types.RequestStatus {
	switch r.State().(type) {
	case Paid:
		return types.StatusPaid
	default:
		return types.StatusUnpaid
	}
}
