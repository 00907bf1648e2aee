package repository

import (
	"context"
	"sync"
	"time"

	"github.com/unclebandit/fundraiser-backend/internal/model"
)

// MemoryReceiptRepository is the in-process receipt store.
type MemoryReceiptRepository struct {
	mu       sync.Mutex
	receipts []model.Receipt
	byEvent  map[string]bool
}

func NewMemoryReceiptRepository() *MemoryReceiptRepository {
	return &MemoryReceiptRepository{byEvent: map[string]bool{}}
}

func (r *MemoryReceiptRepository) CreateReceipt(_ context.Context, rc *model.Receipt) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.byEvent[rc.EventID] {
		return false, nil
	}
	rc.ID = len(r.receipts) + 1
	rc.CreatedAt = time.Now().UTC()
	r.byEvent[rc.EventID] = true
	r.receipts = append(r.receipts, *rc)
	return true, nil
}

// ListReceipts returns donor's receipts, newest first.
func (r *MemoryReceiptRepository) ListReceipts(_ context.Context, donor model.Address, limit int) ([]model.Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := []model.Receipt{}
	for i := len(r.receipts) - 1; i >= 0 && len(out) < limit; i-- {
		if r.receipts[i].Donor == donor {
			out = append(out, r.receipts[i])
		}
	}
	return out, nil
}

var _ ReceiptRepositoryInterface = (*MemoryReceiptRepository)(nil)
