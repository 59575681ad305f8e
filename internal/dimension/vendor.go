// Package dimension resolves natural keys from the trip data to the surrogate
// keys of the dimension tables.
package dimension

import (
	"context"
	"fmt"
	"log"
)

// VendorStore is the slice of storage.Repository the resolver needs.
type VendorStore interface {
	LookupVendor(ctx context.Context, code string) (id int64, found bool, err error)
	InsertVendor(ctx context.Context, code, name string) (int64, error)
}

// VendorName is the display name given to a vendor created on first sight.
func VendorName(code string) string { return "Vendor " + code }

// VendorResolver maps vendor codes to vendor_id, creating missing vendors.
// Its cache lives for one run and is not safe for concurrent use.
type VendorResolver struct {
	store   VendorStore
	cache   map[string]int64
	created int
}

// NewVendorResolver returns a resolver with an empty cache.
func NewVendorResolver(store VendorStore) *VendorResolver {
	return &VendorResolver{store: store, cache: make(map[string]int64)}
}

// Resolve returns the vendor_id for code, or nil when code is nil. A code is
// looked up in the store at most once per run; an unknown code is inserted
// and committed by the store before Resolve returns.
func (r *VendorResolver) Resolve(ctx context.Context, code *string) (*int64, error) {
	if code == nil {
		return nil, nil
	}
	c := *code
	if id, ok := r.cache[c]; ok {
		return &id, nil
	}

	id, found, err := r.store.LookupVendor(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("resolve vendor %q: %w", c, err)
	}
	if !found {
		id, err = r.store.InsertVendor(ctx, c, VendorName(c))
		if err != nil {
			return nil, fmt.Errorf("create vendor %q: %w", c, err)
		}
		r.created++
		log.Printf("vendor: created code=%q vendor_id=%d", c, id)
	}
	r.cache[c] = id
	return &id, nil
}

// Created is the number of vendors inserted by this resolver.
func (r *VendorResolver) Created() int { return r.created }

// Cached is the number of distinct codes resolved so far.
func (r *VendorResolver) Cached() int { return len(r.cache) }
