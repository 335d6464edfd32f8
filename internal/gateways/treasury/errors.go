package treasury

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// RevertError is a contract revert with its decoded reason. Reverts are
// deterministic, so callers treat them as unrecoverable.
type RevertError struct {
	Reason string
	Raw    error
}

func (e *RevertError) Error() string {
	return fmt.Sprintf("treasury contract reverted: %s", e.Reason)
}

func (e *RevertError) Unwrap() error { return e.Raw }

// dataError is the shape rpc errors expose revert payloads through.
type dataError interface {
	Error() string
	ErrorData() interface{}
}

// decodeRevert recognizes an Error(string) revert payload inside an rpc
// error and rewraps it with the embedded message. Other errors pass through.
func decodeRevert(err error) error {
	if err == nil {
		return nil
	}
	de, ok := err.(dataError)
	if !ok {
		return err
	}
	hexData, ok := de.ErrorData().(string)
	if !ok {
		return err
	}
	reason, unpackErr := abi.UnpackRevert(common.FromHex(hexData))
	if unpackErr != nil {
		return err
	}
	return &RevertError{Reason: reason, Raw: err}
}
