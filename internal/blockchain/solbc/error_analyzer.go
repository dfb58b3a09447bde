// internal/blockchain/solbc/error_analyzer.go
package solbc

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
)

// AnchorError represents an error from Anchor framework
type AnchorError struct {
	Code int    `json:"code"`
	Name string `json:"name"`
	Msg  string `json:"msg"`
}

// DescribeError turns an RPC or wallet error into a short user-facing description.
// Simulation failures are reduced to the Anchor error message when the logs carry one.
func DescribeError(err error) string {
	if err == nil {
		return ""
	}

	var rpcErr *jsonrpc.RPCError
	if !errors.As(err, &rpcErr) {
		return err.Error()
	}

	if dataMap, ok := rpcErr.Data.(map[string]interface{}); ok {
		if logs, ok := dataMap["logs"].([]interface{}); ok {
			for _, logEntry := range logs {
				logStr, ok := logEntry.(string)
				if !ok || !strings.Contains(logStr, "AnchorError occurred") {
					continue
				}
				anchorErr := parseAnchorErrorLog(logStr)
				if anchorErr.Msg != "" {
					return fmt.Sprintf("%s (%d): %s", anchorErr.Name, anchorErr.Code, anchorErr.Msg)
				}
			}
		}
		if txErr, ok := dataMap["err"]; ok && txErr != nil {
			return fmt.Sprintf("%s: %s", rpcErr.Message, DescribeTransactionError(txErr))
		}
	}
	return rpcErr.Message
}

// DescribeTransactionError formats the err payload of a signature notification or status,
// e.g. {"InstructionError":[1,{"Custom":6001}]}.
func DescribeTransactionError(payload interface{}) string {
	switch v := payload.(type) {
	case nil:
		return ""
	case string:
		return v
	case map[string]interface{}:
		if ie, ok := v["InstructionError"].([]interface{}); ok && len(ie) == 2 {
			return fmt.Sprintf("instruction %v failed: %s", ie[0], compactJSON(ie[1]))
		}
	}
	return compactJSON(payload)
}

func compactJSON(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// parseAnchorErrorLog parses an Anchor error log string
// Example: "Program log: AnchorError occurred. Error Code: InstructionFallbackNotFound. Error Number: 101. Error Message: Fallback functions are not supported."
func parseAnchorErrorLog(logStr string) AnchorError {
	result := AnchorError{}

	if parts := strings.Split(logStr, "Error Number:"); len(parts) > 1 {
		numParts := strings.Split(parts[1], ".")
		if len(numParts) > 0 {
			fmt.Sscanf(strings.TrimSpace(numParts[0]), "%d", &result.Code)
		}
	}

	if parts := strings.Split(logStr, "Error Code:"); len(parts) > 1 {
		nameParts := strings.Split(parts[1], ".")
		if len(nameParts) > 0 {
			result.Name = strings.TrimSpace(nameParts[0])
		}
	}

	if parts := strings.Split(logStr, "Error Message:"); len(parts) > 1 {
		result.Msg = strings.TrimSpace(strings.Split(parts[1], ".")[0])
	}

	return result
}
