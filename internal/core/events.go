package core

import "time"

type EventKind string

const (
	EventTransactionCreated EventKind = "transaction.created"
	EventTransactionUpdated EventKind = "transaction.updated"
	EventTransactionDeleted EventKind = "transaction.deleted"
	EventTransferCreated    EventKind = "transfer.created"
	EventBatchCreated       EventKind = "batch.created"
	EventObligationPaid     EventKind = "obligation.paid"
	EventWalletRecomputed   EventKind = "wallet.recomputed"
	EventWalletDrift        EventKind = "wallet.drift"
)

// LedgerEvent announces a committed change to the ledger. Consumers load
// the records they need by id.
type LedgerEvent struct {
	Kind           EventKind `json:"kind"`
	OwnerID        string    `json:"ownerId"`
	TransactionIDs []string  `json:"transactionIds,omitempty"`
	WalletIDs      []string  `json:"walletIds,omitempty"`
	OccurredAt     time.Time `json:"occurredAt"`
}

// NewLedgerEvent builds an event stamped with the current time. Empty
// wallet ids are dropped.
func NewLedgerEvent(kind EventKind, ownerID string, txIDs []string, walletIDs ...string) LedgerEvent {
	var wallets []string
	seen := map[string]bool{}
	for _, id := range walletIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		wallets = append(wallets, id)
	}
	return LedgerEvent{
		Kind:           kind,
		OwnerID:        ownerID,
		TransactionIDs: txIDs,
		WalletIDs:      wallets,
		OccurredAt:     time.Now().UTC(),
	}
}
