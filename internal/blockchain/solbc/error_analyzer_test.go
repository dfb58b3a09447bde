// internal/blockchain/solbc/error_analyzer_test.go
package solbc

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/stretchr/testify/assert"
)

func TestDescribeError(t *testing.T) {
	anchorLog := "Program log: AnchorError occurred. Error Code: SlippageExceeded. Error Number: 6001. Error Message: Slippage tolerance exceeded."

	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "plain error", err: errors.New("User rejected the request"), want: "User rejected the request"},
		{
			name: "anchor log",
			err: &jsonrpc.RPCError{
				Code:    -32002,
				Message: "Transaction simulation failed",
				Data:    map[string]interface{}{"logs": []interface{}{"Program invoke [1]", anchorLog}},
			},
			want: "SlippageExceeded (6001): Slippage tolerance exceeded",
		},
		{
			name: "instruction error",
			err: fmt.Errorf("send: %w", &jsonrpc.RPCError{
				Message: "Transaction simulation failed",
				Data: map[string]interface{}{
					"err": map[string]interface{}{"InstructionError": []interface{}{float64(1), map[string]interface{}{"Custom": float64(1)}}},
				},
			}),
			want: `Transaction simulation failed: instruction 1 failed: {"Custom":1}`,
		},
		{
			name: "message only",
			err:  &jsonrpc.RPCError{Message: "Blockhash not found"},
			want: "Blockhash not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DescribeError(tt.err))
		})
	}
}

func TestDescribeTransactionError(t *testing.T) {
	assert.Equal(t, "", DescribeTransactionError(nil))
	assert.Equal(t, "AccountInUse", DescribeTransactionError("AccountInUse"))
	assert.Equal(t, `{"InsufficientFundsForRent":{"account_index":0}}`,
		DescribeTransactionError(map[string]interface{}{"InsufficientFundsForRent": map[string]interface{}{"account_index": float64(0)}}))
}
