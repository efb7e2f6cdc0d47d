package testsupport

import (
	"context"
	"testing"

	"trustlabel/internal/config"
	"trustlabel/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// SeedUser inserts a directory user for tests.
func SeedUser(t testing.TB, store *queue.Store, id, name string, role queue.Role) *queue.User {
	t.Helper()

	user, err := store.SeedUser(context.Background(), queue.User{
		ID:    id,
		Name:  name,
		Email: id + "@example.test",
		Role:  role,
	})
	if err != nil {
		t.Fatalf("store.SeedUser: %v", err)
	}
	return user
}

// SeedProduct inserts a product row for tests.
func SeedProduct(t testing.TB, store *queue.Store, id, name, ownerID string) *queue.Product {
	t.Helper()

	product, err := store.SeedProduct(context.Background(), queue.Product{
		ID:      id,
		Name:    name,
		OwnerID: ownerID,
	})
	if err != nil {
		t.Fatalf("store.SeedProduct: %v", err)
	}
	return product
}

// NewEntry creates a pending queue entry for tests.
func NewEntry(t testing.TB, store *queue.Store, productID, requesterID, category string, priority queue.Priority) *queue.Entry {
	t.Helper()

	entry, err := store.Create(context.Background(), queue.NewEntry{
		ProductID:     productID,
		RequestedByID: requesterID,
		Category:      category,
		Priority:      priority,
	})
	if err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return entry
}
