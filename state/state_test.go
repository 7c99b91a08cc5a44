package state

import (
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitwit/x402-escrow/types"
)

func newKey() solana.PublicKey {
	return solana.NewWallet().PublicKey()
}

func TestConfigLayout(t *testing.T) {
	cfg := Config{
		Authority:      newKey(),
		Treasury:       newKey(),
		MinPayment:     1_000_000,
		TotalProcessed: 42,
		Bump:           254,
	}
	data, err := cfg.Marshal()
	require.NoError(t, err)
	require.Len(t, data, ConfigSpace)

	assert.Equal(t, ConfigDiscriminator[:], data[:8])
	assert.Equal(t, cfg.Authority[:], data[8:40])
	assert.Equal(t, cfg.Treasury[:], data[40:72])
	assert.Equal(t, uint64(1_000_000), binary.LittleEndian.Uint64(data[72:80]))
	assert.Equal(t, uint64(42), binary.LittleEndian.Uint64(data[80:88]))
	assert.Equal(t, byte(254), data[88])

	got, err := DecodeConfig(data)
	require.NoError(t, err)
	assert.Equal(t, cfg, *got)
}

func TestPaymentRequestLayout(t *testing.T) {
	req := PaymentRequest{
		RequestID:   "req-1",
		Requester:   newKey(),
		Amount:      5_000_000,
		ResourceTag: "/svc",
		CreatedAt:   1_700_000_000,
		Bump:        253,
	}
	data, err := req.Marshal()
	require.NoError(t, err)
	require.Len(t, data, PaymentRequestSpace)

	assert.Equal(t, PaymentRequestDiscriminator[:], data[:8])
	assert.Equal(t, uint32(5), binary.LittleEndian.Uint32(data[8:12]))
	assert.Equal(t, "req-1", string(data[12:17]))
	assert.Equal(t, req.Requester[:], data[17:49])
	assert.Equal(t, uint64(5_000_000), binary.LittleEndian.Uint64(data[49:57]))
	assert.Equal(t, uint32(4), binary.LittleEndian.Uint32(data[57:61]))
	assert.Equal(t, "/svc", string(data[61:65]))
	assert.Equal(t, byte(0), data[65])

	got, err := DecodePaymentRequest(data)
	require.NoError(t, err)
	assert.Equal(t, req, *got)
	assert.Equal(t, Unpaid{}, got.State())
	assert.Equal(t, types.StatusUnpaid, got.Status())
}

func TestPaymentRequestMaxLengthsFit(t *testing.T) {
	req := PaymentRequest{
		RequestID:   string(make([]byte, types.MaxRequestIDLen)),
		ResourceTag: string(make([]byte, types.MaxResourceTagLen)),
		Requester:   newKey(),
		Amount:      1,
	}
	data, err := req.Marshal()
	require.NoError(t, err)
	assert.Len(t, data, PaymentRequestSpace)
}

func TestMarkPaidIsOneWay(t *testing.T) {
	req := PaymentRequest{RequestID: "r", Requester: newKey(), Amount: 1}
	payer := newKey()

	require.NoError(t, req.MarkPaid(payer, 100))
	err := req.MarkPaid(newKey(), 200)
	assert.ErrorIs(t, err, types.ErrAlreadyPaid)

	assert.Equal(t, payer, req.Payer)
	assert.Equal(t, int64(100), req.PaidAt)
	paid, ok := req.State().(Paid)
	require.True(t, ok)
	assert.Equal(t, payer, paid.Payer)

	data, err := req.Marshal()
	require.NoError(t, err)
	got, err := DecodePaymentRequest(data)
	require.NoError(t, err)
	assert.Equal(t, types.StatusPaid, got.Status())
}

func TestDecodeErrors(t *testing.T) {
	cfgData, err := Config{Authority: newKey(), Treasury: newKey(), MinPayment: 1}.Marshal()
	require.NoError(t, err)
	reqData, err := PaymentRequest{RequestID: "req-1", Requester: newKey(), Amount: 1, ResourceTag: "/x"}.Marshal()
	require.NoError(t, err)

	tests := []struct {
		name   string
		decode func() error
		want   error
	}{
		{
			name:   "config bytes read as payment request",
			decode: func() error { _, err := DecodePaymentRequest(cfgData); return err },
			want:   types.ErrAccountDiscriminatorMismatch,
		},
		{
			name:   "payment request bytes read as config",
			decode: func() error { _, err := DecodeConfig(reqData); return err },
			want:   types.ErrAccountDiscriminatorMismatch,
		},
		{
			name:   "truncated config",
			decode: func() error { _, err := DecodeConfig(cfgData[:50]); return err },
			want:   types.ErrAccountDidNotDeserialize,
		},
		{
			name:   "shorter than discriminator",
			decode: func() error { _, err := DecodeConfig(cfgData[:3]); return err },
			want:   types.ErrAccountDidNotDeserialize,
		},
		{
			name: "request id length prefix beyond max",
			decode: func() error {
				bad := append([]byte(nil), reqData...)
				binary.LittleEndian.PutUint32(bad[8:12], types.MaxRequestIDLen+1)
				_, err := DecodePaymentRequest(bad)
				return err
			},
			want: types.ErrAccountDidNotDeserialize,
		},
		{
			name: "request id length prefix beyond data",
			decode: func() error {
				bad := append([]byte(nil), reqData[:20]...)
				binary.LittleEndian.PutUint32(bad[8:12], 60)
				_, err := DecodePaymentRequest(bad)
				return err
			},
			want: types.ErrAccountDidNotDeserialize,
		},
		{
			name: "invalid bool byte",
			decode: func() error {
				bad := append([]byte(nil), reqData...)
				// discriminator + "req-1" + requester + amount + "/x"
				bad[8+4+5+32+8+4+2] = 7
				_, err := DecodePaymentRequest(bad)
				return err
			},
			want: types.ErrAccountDidNotDeserialize,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.decode()
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, types.IsDecodeError(err))
			assert.False(t, types.IsNotFound(err))
		})
	}
}

func TestDecodeRejectsUnpaidWithPayer(t *testing.T) {
	req := PaymentRequest{RequestID: "r", Requester: newKey(), Amount: 1, Payer: newKey()}
	data, err := req.Marshal()
	require.NoError(t, err)

	_, err = DecodePaymentRequest(data)
	assert.True(t, types.IsDecodeError(err))
}

func TestLoadDistinguishesAbsentFromCorrupted(t *testing.T) {
	program := types.DefaultProgramID

	_, err := LoadConfig(solana.SystemProgramID, program, nil)
	assert.True(t, types.IsNotFound(err))
	assert.False(t, types.IsDecodeError(err))

	_, err = LoadConfig(program, program, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9})
	assert.True(t, types.IsDecodeError(err))
	assert.False(t, types.IsNotFound(err))

	data, err := Config{Authority: newKey(), Treasury: newKey(), MinPayment: 1}.Marshal()
	require.NoError(t, err)
	_, err = LoadConfig(newKey(), program, data)
	assert.ErrorIs(t, err, types.ErrAccountOwnedByWrongProgram)

	cfg, err := LoadConfig(program, program, data)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), cfg.MinPayment)
}

func TestAddProcessedOverflow(t *testing.T) {
	cfg := Config{TotalProcessed: ^uint64(0) - 1}
	require.NoError(t, cfg.AddProcessed(1))
	assert.ErrorIs(t, cfg.AddProcessed(1), types.ErrArithmeticOverflow)
	assert.Equal(t, ^uint64(0), cfg.TotalProcessed)
}
