package mempool

import (
	"encoding/json"
	"sync"
)

// TxType classifies transactions into proposal-ordering buckets.
type TxType int

const (
	TxToken    TxType = iota // ledger ops: transfer, approve, approval-for-all
	TxCancel                 // offer cancellations
	TxExchange               // everything else on the exchange engines
)

// ClassifyRaw classifies a raw transaction by parsing the JSON envelope.
//
//	{"type": "token", ...}                               -> TxToken
//	{"type": "exchange", "exchange": {"action": "cancel_*"}} -> TxCancel
//	{"type": "exchange", ...}                            -> TxExchange
//
// Malformed transactions classify as TxExchange; they are rejected later
// during execution, classification only affects ordering.
func ClassifyRaw(b []byte) TxType {
	if len(b) == 0 || b[0] != '{' {
		return TxExchange
	}

	var envelope struct {
		Type     string `json:"type"`
		Exchange struct {
			Action string `json:"action"`
		} `json:"exchange"`
	}

	if err := json.Unmarshal(b, &envelope); err != nil {
		return TxExchange
	}

	switch envelope.Type {
	case "token":
		return TxToken
	case "exchange":
		if envelope.Exchange.Action == "cancel_buying_offer" ||
			envelope.Exchange.Action == "cancel_selling_offer" {
			return TxCancel
		}
		return TxExchange
	default:
		return TxExchange
	}
}

// Mempool maintains three queues: (1) token ledger ops, (2) cancels,
// (3) exchange flow. Ledger ops run first so approvals land before the
// offers that need them; cancels run before new flow so withdrawals beat
// matches racing for the same offer. Within each bucket, FIFO by proposer
// admission order.
type Mempool struct {
	mu       sync.Mutex
	token    [][]byte
	cancel   [][]byte
	exchange [][]byte
}

func NewMempool() *Mempool {
	return &Mempool{}
}

// PushRaw classifies and enqueues a tx.
func (m *Mempool) PushRaw(b []byte) {
	cp := append([]byte(nil), b...)
	m.mu.Lock()
	defer m.mu.Unlock()
	switch ClassifyRaw(b) {
	case TxToken:
		m.token = append(m.token, cp)
	case TxCancel:
		m.cancel = append(m.cancel, cp)
	default:
		m.exchange = append(m.exchange, cp)
	}
}

// SelectForProposal returns up to maxBytes worth of txs in bucket order,
// removing selected txs from the mempool.
func (m *Mempool) SelectForProposal(maxBytes int64) [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out [][]byte
	var used int64

	pull := func(q *[][]byte) {
		for len(*q) > 0 {
			tx := (*q)[0]
			n := int64(len(tx))
			if maxBytes > 0 && used+n > maxBytes {
				return
			}
			out = append(out, tx)
			used += n
			*q = (*q)[1:]
		}
	}

	// Order: token -> cancel -> exchange
	pull(&m.token)
	pull(&m.cancel)
	pull(&m.exchange)

	return out
}

// Len returns total pending txs (for tests/metrics if needed).
func (m *Mempool) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.token) + len(m.cancel) + len(m.exchange)
}
