package program

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"unicode/utf8"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/vitwit/x402-escrow/pda"
	"github.com/vitwit/x402-escrow/types"
)

// Discriminator is sha256("global:<instruction_name>")[:8].
type Discriminator [8]byte

var (
	InitializeConfigDiscriminator     = Discriminator{208, 127, 21, 1, 194, 190, 196, 70}
	CreatePaymentRequestDiscriminator = Discriminator{246, 150, 103, 37, 15, 36, 93, 100}
	VerifyPaymentDiscriminator        = Discriminator{70, 155, 98, 44, 176, 110, 74, 169}
	CancelPaymentRequestDiscriminator = Discriminator{246, 129, 93, 79, 189, 140, 84, 7}
	CloseConfigDiscriminator          = Discriminator{145, 9, 72, 157, 95, 125, 61, 85}
	CheckPaymentStatusDiscriminator   = Discriminator{245, 156, 156, 89, 32, 67, 155, 23}
)

// Instruction names, as used in logs and metric labels.
const (
	InstructionInitializeConfig     = "initialize_config"
	InstructionCreatePaymentRequest = "create_payment_request"
	InstructionVerifyPayment        = "verify_payment"
	InstructionCancelPaymentRequest = "cancel_payment_request"
	InstructionCloseConfig          = "close_config"
	InstructionCheckPaymentStatus   = "check_payment_status"
)

// maxArgString bounds any string argument before it is read, independent of
// the per-field limits enforced by the handlers.
const maxArgString = 1024

var le = binary.LittleEndian

type InitializeConfigArgs struct {
	Treasury   solana.PublicKey
	MinPayment uint64
}

func (a InitializeConfigArgs) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := enc.WriteBytes(a.Treasury[:], false); err != nil {
		return err
	}
	return enc.WriteUint64(a.MinPayment, le)
}

func (a *InitializeConfigArgs) UnmarshalWithDecoder(dec *bin.Decoder) error {
	key, err := dec.ReadNBytes(solana.PublicKeyLength)
	if err != nil {
		return err
	}
	a.Treasury = solana.PublicKeyFromBytes(key)
	a.MinPayment, err = dec.ReadUint64(le)
	return err
}

type CreatePaymentRequestArgs struct {
	RequestID   string
	Amount      uint64
	ResourceTag string
}

func (a CreatePaymentRequestArgs) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := writeArgString(enc, a.RequestID); err != nil {
		return err
	}
	if err := enc.WriteUint64(a.Amount, le); err != nil {
		return err
	}
	return writeArgString(enc, a.ResourceTag)
}

func (a *CreatePaymentRequestArgs) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	if a.RequestID, err = readArgString(dec); err != nil {
		return err
	}
	if a.Amount, err = dec.ReadUint64(le); err != nil {
		return err
	}
	a.ResourceTag, err = readArgString(dec)
	return err
}

// noArgs is the empty argument list of closeConfig.
type noArgs struct{}

func (noArgs) MarshalWithEncoder(*bin.Encoder) error   { return nil }
func (noArgs) UnmarshalWithDecoder(*bin.Decoder) error { return nil }

// RequestArgs carries the identifier for verify, cancel and status checks.
type RequestArgs struct {
	RequestID string
}

func (a RequestArgs) MarshalWithEncoder(enc *bin.Encoder) error {
	return writeArgString(enc, a.RequestID)
}

func (a *RequestArgs) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	a.RequestID, err = readArgString(dec)
	return err
}

func writeArgString(enc *bin.Encoder, s string) error {
	if err := enc.WriteUint32(uint32(len(s)), le); err != nil {
		return err
	}
	return enc.WriteBytes([]byte(s), false)
}

func readArgString(dec *bin.Decoder) (string, error) {
	n, err := dec.ReadUint32(le)
	if err != nil {
		return "", err
	}
	if n > maxArgString || int(n) > dec.Remaining() {
		return "", fmt.Errorf("string length %d out of range", n)
	}
	b, err := dec.ReadNBytes(int(n))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", fmt.Errorf("string is not valid utf-8")
	}
	return string(b), nil
}

// decodeArgs reads the borsh arguments following the discriminator. Trailing
// bytes are rejected.
func decodeArgs(data []byte, v bin.BinaryUnmarshaler) error {
	dec := bin.NewBorshDecoder(data)
	if err := v.UnmarshalWithDecoder(dec); err != nil {
		return types.ErrInstructionDidNotDeserialize.WithData(err.Error())
	}
	if dec.Remaining() != 0 {
		return types.ErrInstructionDidNotDeserialize.WithData(fmt.Sprintf("%d trailing bytes", dec.Remaining()))
	}
	return nil
}

func encodeInstruction(d Discriminator, args bin.BinaryMarshaler) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Write(d[:])
	if err := args.MarshalWithEncoder(bin.NewBorshEncoder(buf)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// NewInitializeConfigInstruction builds initializeConfig. Accounts:
// authority (w, s), config (w), system program.
func NewInitializeConfigInstruction(programID, authority, treasury solana.PublicKey, minPayment uint64) (*solana.GenericInstruction, error) {
	cfg, err := pda.Config(programID)
	if err != nil {
		return nil, err
	}
	data, err := encodeInstruction(InitializeConfigDiscriminator, InitializeConfigArgs{Treasury: treasury, MinPayment: minPayment})
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(programID, solana.AccountMetaSlice{
		solana.Meta(authority).WRITE().SIGNER(),
		solana.Meta(cfg.Key).WRITE(),
		solana.Meta(solana.SystemProgramID),
	}, data), nil
}

// NewCreatePaymentRequestInstruction builds createPaymentRequest. Accounts:
// requester (w, s), payment request (w), config, system program.
// requestID seeds the request address, so at most 32 bytes are usable.
func NewCreatePaymentRequestInstruction(programID, requester solana.PublicKey, requestID string, amount uint64, resourceTag string) (*solana.GenericInstruction, error) {
	req, err := pda.PaymentRequest(programID, requestID)
	if err != nil {
		return nil, err
	}
	cfg, err := pda.Config(programID)
	if err != nil {
		return nil, err
	}
	data, err := encodeInstruction(CreatePaymentRequestDiscriminator, CreatePaymentRequestArgs{
		RequestID:   requestID,
		Amount:      amount,
		ResourceTag: resourceTag,
	})
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(programID, solana.AccountMetaSlice{
		solana.Meta(requester).WRITE().SIGNER(),
		solana.Meta(req.Key).WRITE(),
		solana.Meta(cfg.Key),
		solana.Meta(solana.SystemProgramID),
	}, data), nil
}

// NewVerifyPaymentInstruction builds verifyPayment. Accounts: payment request
// (w), config (w), payer (w, s), payer token account (w), treasury token
// account (w), token program.
func NewVerifyPaymentInstruction(programID, payer, payerTokenAccount, treasuryTokenAccount solana.PublicKey, requestID string) (*solana.GenericInstruction, error) {
	req, err := pda.PaymentRequest(programID, requestID)
	if err != nil {
		return nil, err
	}
	cfg, err := pda.Config(programID)
	if err != nil {
		return nil, err
	}
	data, err := encodeInstruction(VerifyPaymentDiscriminator, RequestArgs{RequestID: requestID})
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(programID, solana.AccountMetaSlice{
		solana.Meta(req.Key).WRITE(),
		solana.Meta(cfg.Key).WRITE(),
		solana.Meta(payer).WRITE().SIGNER(),
		solana.Meta(payerTokenAccount).WRITE(),
		solana.Meta(treasuryTokenAccount).WRITE(),
		solana.Meta(solana.TokenProgramID),
	}, data), nil
}

// NewCancelPaymentRequestInstruction builds cancelPaymentRequest. Accounts:
// payment request (w), requester (w, s).
func NewCancelPaymentRequestInstruction(programID, requester solana.PublicKey, requestID string) (*solana.GenericInstruction, error) {
	req, err := pda.PaymentRequest(programID, requestID)
	if err != nil {
		return nil, err
	}
	data, err := encodeInstruction(CancelPaymentRequestDiscriminator, RequestArgs{RequestID: requestID})
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(programID, solana.AccountMetaSlice{
		solana.Meta(req.Key).WRITE(),
		solana.Meta(requester).WRITE().SIGNER(),
	}, data), nil
}

// NewCloseConfigInstruction builds closeConfig against the current singleton.
// Accounts: authority (w, s), config (w).
func NewCloseConfigInstruction(programID, authority solana.PublicKey) (*solana.GenericInstruction, error) {
	cfg, err := pda.Config(programID)
	if err != nil {
		return nil, err
	}
	return newCloseConfigInstruction(programID, authority, cfg.Key)
}

// NewCloseLegacyConfigInstruction builds closeConfig against the singleton
// address of the first deployment.
func NewCloseLegacyConfigInstruction(programID, authority solana.PublicKey) (*solana.GenericInstruction, error) {
	cfg, err := pda.LegacyConfig(programID)
	if err != nil {
		return nil, err
	}
	return newCloseConfigInstruction(programID, authority, cfg.Key)
}

func newCloseConfigInstruction(programID, authority, config solana.PublicKey) (*solana.GenericInstruction, error) {
	data, err := encodeInstruction(CloseConfigDiscriminator, noArgs{})
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(programID, solana.AccountMetaSlice{
		solana.Meta(authority).WRITE().SIGNER(),
		solana.Meta(config).WRITE(),
	}, data), nil
}

// NewCheckPaymentStatusInstruction builds checkPaymentStatus. Accounts:
// payment request.
func NewCheckPaymentStatusInstruction(programID solana.PublicKey, requestID string) (*solana.GenericInstruction, error) {
	req, err := pda.PaymentRequest(programID, requestID)
	if err != nil {
		return nil, err
	}
	data, err := encodeInstruction(CheckPaymentStatusDiscriminator, RequestArgs{RequestID: requestID})
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(programID, solana.AccountMetaSlice{
		solana.Meta(req.Key),
	}, data), nil
}
