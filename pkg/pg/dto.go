package pg

import (
	"encoding/json"

	"github.com/minsu-cho/commerce-backend/pkg/enums"
)

// PaymentRequest is the body posted to the gateway's POST /payments.
type PaymentRequest struct {
	OrderID     string         `json:"orderId"`
	CardType    enums.CardType `json:"cardType"`
	CardNo      string         `json:"cardNo"`
	Amount      int64          `json:"amount"`
	CallbackURL string         `json:"callbackUrl"`
}

// Meta carries the gateway's result envelope.
type Meta struct {
	Result    string  `json:"result"`
	ErrorCode *string `json:"errorCode,omitempty"`
	Message   *string `json:"message,omitempty"`
}

// Transaction is a single gateway-side payment attempt.
type Transaction struct {
	TransactionKey string                    `json:"transactionKey"`
	Status         enums.PGTransactionStatus `json:"status"`
	Reason         *string                   `json:"reason,omitempty"`
}

// OrderTransactions is the inquiry view of every attempt for one order.
type OrderTransactions struct {
	OrderID      string        `json:"orderId"`
	Transactions []Transaction `json:"transactions"`
}

type apiEnvelope struct {
	Meta Meta            `json:"meta"`
	Data json.RawMessage `json:"data"`
}

const (
	metaResultSuccess = "SUCCESS"
	metaResultFail    = "FAIL"
)

// Latest returns the most recent transaction, preferring a terminal one.
// The gateway appends attempts in order, so the last entry is newest.
func (o OrderTransactions) Latest() (Transaction, bool) {
	if len(o.Transactions) == 0 {
		return Transaction{}, false
	}
	for i := len(o.Transactions) - 1; i >= 0; i-- {
		if o.Transactions[i].Status.IsValid() && o.Transactions[i].Status != enums.PGTransactionPending {
			return o.Transactions[i], true
		}
	}
	return o.Transactions[len(o.Transactions)-1], true
}
