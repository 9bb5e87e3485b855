package economy

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"

	"vaultcrack/internal/codec"
)

var (
	// ErrNotInitialized is absorbed by the read methods and only surfaces from
	// the low-level decoders.
	ErrNotInitialized          = codec.ErrNotInitialized
	ErrInvalidPrivateKeyLength = errors.New("invalid private key length")
	ErrTransport               = errors.New("rpc transport error")
	ErrInstructionRejected     = errors.New("instruction rejected")
	ErrConfirmationTimeout     = errors.New("transaction not confirmed before timeout")

	ErrInsufficientLedgerBalance = errors.New("insufficient ledger balance")
	ErrSignerBelowFloor          = errors.New("backend signer below minimum operating balance")
)

// RejectedError is returned when the node or the program refuses a
// transaction. Rejections are final; callers must not resubmit automatically.
type RejectedError struct {
	Instruction string
	Reason      string
	Logs        []string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s rejected: %s", e.Instruction, e.Reason)
}

func (e *RejectedError) Unwrap() error {
	return ErrInstructionRejected
}

func transportErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrTransport, op, err)
}

func isTransport(err error) bool {
	return errors.Is(err, ErrTransport)
}

// classifySendError separates program/preflight rejections, which carry
// simulation logs, from connectivity failures.
func classifySendError(instruction string, err error) error {
	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) {
		logs := rpcErrorLogs(rpcErr)
		if len(logs) > 0 || rpcErr.Code == -32002 || rpcErr.Code == -32003 {
			return &RejectedError{Instruction: instruction, Reason: rpcErr.Message, Logs: logs}
		}
	}
	return transportErr("send "+instruction, err)
}

func rpcErrorLogs(rpcErr *jsonrpc.RPCError) []string {
	data, ok := rpcErr.Data.(map[string]interface{})
	if !ok {
		return nil
	}
	raw, ok := data["logs"].([]interface{})
	if !ok {
		return nil
	}
	logs := make([]string, 0, len(raw))
	for _, l := range raw {
		if s, ok := l.(string); ok {
			logs = append(logs, s)
		}
	}
	return logs
}

// ProgramError extracts the last "Error Message:" line from program logs.
func (e *RejectedError) ProgramError() string {
	for i := len(e.Logs) - 1; i >= 0; i-- {
		if _, msg, ok := strings.Cut(e.Logs[i], "Error Message: "); ok {
			return strings.TrimSuffix(msg, ".")
		}
	}
	return ""
}
