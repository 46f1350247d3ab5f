package service

import (
	"context"
	"fmt"
	"time"

	"procurement/internal/repository"
)

// DocumentKind selects a numbering scheme
type DocumentKind int

const (
	DocRequest DocumentKind = iota
	DocOrder
	DocPurchaseOrder
	DocVoucher
	DocPettyCash
)

const maxNumberAttempts = 3

// Prefix returns the counter scope for documents issued at t. Counters restart whenever
// the prefix changes, i.e. daily for requests, monthly for orders and yearly otherwise.
func (k DocumentKind) Prefix(t time.Time) string {
	switch k {
	case DocRequest:
		return "REQ-" + t.Format("20060102") + "-"
	case DocOrder:
		return "ORD-" + t.Format("200601")
	case DocPurchaseOrder:
		return "PO-" + t.Format("2006") + "-"
	case DocVoucher:
		return "V-" + t.Format("2006") + "-"
	case DocPettyCash:
		return "PCV-" + t.Format("2006") + "-"
	}
	panic(fmt.Sprintf("unknown document kind %d", k))
}

// FormatNumber zero-pads seq to four digits; larger sequences simply grow wider.
func FormatNumber(prefix string, seq int64) string {
	return fmt.Sprintf("%s%04d", prefix, seq)
}

// Numberer issues document numbers from the atomic per-prefix counters
type Numberer struct {
	seq repository.SequenceRepository
	tx  repository.TransactionManager
	now func() time.Time
}

func NewNumberer(seq repository.SequenceRepository, tx repository.TransactionManager) *Numberer {
	return &Numberer{seq: seq, tx: tx, now: time.Now}
}

// Issue allocates a number and passes it to insert. Both run inside the caller's
// transaction. When insert hits a unique violation the insert alone is rolled back to a
// savepoint and retried with the next number.
func (n *Numberer) Issue(ctx context.Context, kind DocumentKind, insert func(number string) error) (string, error) {
	prefix := kind.Prefix(n.now())

	var lastErr error
	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		seq, err := n.seq.Next(ctx, prefix)
		if err != nil {
			return "", err
		}
		number := FormatNumber(prefix, seq)

		err = n.tx.Savepoint(ctx, "doc_number", func() error { return insert(number) })
		if err == nil {
			return number, nil
		}
		if !repository.IsUniqueViolation(err) {
			return "", err
		}
		lastErr = err
	}
	return "", fmt.Errorf("could not allocate a unique %s number after %d attempts: %w", prefix, maxNumberAttempts, lastErr)
}
