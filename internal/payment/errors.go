package payment

import "fmt"

// TransferErrorKind classifies payout transfer failures into the three
// buckets the settlement processor reacts to.
type TransferErrorKind string

const (
	// TransferInsufficientBalance: the platform balance cannot cover the
	// transfer yet. Retryable later.
	TransferInsufficientBalance TransferErrorKind = "insufficient_balance"
	// TransferPayeeNotConnected: the destination is not a usable connected
	// account. Requires seller action.
	TransferPayeeNotConnected TransferErrorKind = "payee_not_connected"
	// TransferOther: anything else the provider rejected. Requires manual
	// intervention.
	TransferOther TransferErrorKind = "other"
)

type TransferError struct {
	Kind TransferErrorKind
	Msg  string
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer failed (%s): %s", e.Kind, e.Msg)
}
