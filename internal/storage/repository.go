package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"financas/internal/core"
)

// Repository gives typed access to a user's collections on top of a Store.
type Repository struct {
	store Store
	newID func() string
}

func NewRepository(store Store) *Repository {
	return &Repository{store: store, newID: uuid.NewString}
}

// Store exposes the underlying document store for multi-path patches.
func (r *Repository) Store() Store { return r.store }

// NewID generates an id for a new document.
func (r *Repository) NewID() string { return r.newID() }

// Update applies a multi-path patch atomically.
func (r *Repository) Update(ctx context.Context, p Patch) error {
	if len(p) == 0 {
		return nil
	}
	return r.store.Update(ctx, p)
}

func (r *Repository) UserIDs(ctx context.Context) ([]string, error) {
	return r.store.UserIDs(ctx)
}

func getDoc[T any](ctx context.Context, s Store, uid, collection, id, kind string, setID func(*T, string)) (T, error) {
	var v T
	raw, err := s.Get(ctx, DocPath(uid, collection, id))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return v, core.NotFound(kind, id)
		}
		return v, err
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("decode %s %s: %w", kind, id, err)
	}
	setID(&v, id)
	return v, nil
}

func listDocs[T any](ctx context.Context, s Store, uid, collection string, setID func(*T, string)) ([]T, error) {
	raws, err := s.List(ctx, CollectionPath(uid, collection))
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(raws))
	for id := range raws {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]T, 0, len(raws))
	for _, id := range ids {
		var v T
		if err := json.Unmarshal(raws[id], &v); err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", collection, id, err)
		}
		setID(&v, id)
		out = append(out, v)
	}
	return out, nil
}

func setTxID(t *core.Transaction, id string)      { t.ID = id }
func setAccountID(a *core.Account, id string)     { a.ID = id }
func setCardID(c *core.CreditCard, id string)     { c.ID = id }
func setInvoiceID(i *core.Invoice, id string)     { i.ID = id }
func setGoalID(g *core.Goal, id string)           { g.ID = id }
func setCategoryID(c *core.Category, id string)   { c.ID = id }
func setMemberID(m *core.FamilyMember, id string) { m.ID = id }

func (r *Repository) Transaction(ctx context.Context, uid, id string) (core.Transaction, error) {
	return getDoc(ctx, r.store, uid, Transactions, id, "transaction", setTxID)
}

// Transactions returns every transaction ordered by date, then id.
func (r *Repository) Transactions(ctx context.Context, uid string) ([]core.Transaction, error) {
	txs, err := listDocs(ctx, r.store, uid, Transactions, setTxID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(txs, func(i, j int) bool {
		if !txs[i].Date.Equal(txs[j].Date.Time) {
			return txs[i].Date.Before(txs[j].Date.Time)
		}
		return txs[i].ID < txs[j].ID
	})
	return txs, nil
}

func (r *Repository) Account(ctx context.Context, uid, id string) (core.Account, error) {
	return getDoc(ctx, r.store, uid, Accounts, id, "account", setAccountID)
}

func (r *Repository) Accounts(ctx context.Context, uid string) ([]core.Account, error) {
	return listDocs(ctx, r.store, uid, Accounts, setAccountID)
}

func (r *Repository) Card(ctx context.Context, uid, id string) (core.CreditCard, error) {
	return getDoc(ctx, r.store, uid, CreditCards, id, "card", setCardID)
}

func (r *Repository) Cards(ctx context.Context, uid string) ([]core.CreditCard, error) {
	return listDocs(ctx, r.store, uid, CreditCards, setCardID)
}

func (r *Repository) Invoice(ctx context.Context, uid, id string) (core.Invoice, error) {
	return getDoc(ctx, r.store, uid, Invoices, id, "invoice", setInvoiceID)
}

// Invoices returns every invoice ordered by period, newest first.
func (r *Repository) Invoices(ctx context.Context, uid string) ([]core.Invoice, error) {
	invs, err := listDocs(ctx, r.store, uid, Invoices, setInvoiceID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(invs, func(i, j int) bool {
		if invs[i].Year != invs[j].Year {
			return invs[i].Year > invs[j].Year
		}
		return invs[i].Month > invs[j].Month
	})
	return invs, nil
}

func (r *Repository) Goal(ctx context.Context, uid, id string) (core.Goal, error) {
	return getDoc(ctx, r.store, uid, Goals, id, "goal", setGoalID)
}

func (r *Repository) Goals(ctx context.Context, uid string) ([]core.Goal, error) {
	return listDocs(ctx, r.store, uid, Goals, setGoalID)
}

func (r *Repository) Categories(ctx context.Context, uid string) ([]core.Category, error) {
	return listDocs(ctx, r.store, uid, Categories, setCategoryID)
}

func (r *Repository) Family(ctx context.Context, uid string) ([]core.FamilyMember, error) {
	return listDocs(ctx, r.store, uid, Family, setMemberID)
}

func (r *Repository) PutTransaction(ctx context.Context, uid string, t core.Transaction) error {
	return r.store.Put(ctx, DocPath(uid, Transactions, t.ID), t)
}

func (r *Repository) PutAccount(ctx context.Context, uid string, a core.Account) error {
	return r.store.Put(ctx, DocPath(uid, Accounts, a.ID), a)
}

func (r *Repository) PutCard(ctx context.Context, uid string, c core.CreditCard) error {
	return r.store.Put(ctx, DocPath(uid, CreditCards, c.ID), c)
}

func (r *Repository) PutInvoice(ctx context.Context, uid string, inv core.Invoice) error {
	return r.store.Put(ctx, DocPath(uid, Invoices, inv.ID), inv)
}

func (r *Repository) PutGoal(ctx context.Context, uid string, g core.Goal) error {
	return r.store.Put(ctx, DocPath(uid, Goals, g.ID), g)
}

func (r *Repository) PutCategory(ctx context.Context, uid string, c core.Category) error {
	return r.store.Put(ctx, DocPath(uid, Categories, c.ID), c)
}

func (r *Repository) RemoveInvoice(ctx context.Context, uid, id string) error {
	return r.store.Remove(ctx, DocPath(uid, Invoices, id))
}

// Snapshot is a point-in-time read of a user's collections.
type Snapshot struct {
	Transactions []core.Transaction
	Accounts     []core.Account
	Cards        []core.CreditCard
	Invoices     []core.Invoice
	Goals        []core.Goal
	Categories   []core.Category
}

// Snapshot loads all collections of a user concurrently.
func (r *Repository) Snapshot(ctx context.Context, uid string) (Snapshot, error) {
	var snap Snapshot
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		snap.Transactions, err = r.Transactions(ctx, uid)
		return err
	})
	g.Go(func() (err error) {
		snap.Accounts, err = r.Accounts(ctx, uid)
		return err
	})
	g.Go(func() (err error) {
		snap.Cards, err = r.Cards(ctx, uid)
		return err
	})
	g.Go(func() (err error) {
		snap.Invoices, err = r.Invoices(ctx, uid)
		return err
	})
	g.Go(func() (err error) {
		snap.Goals, err = r.Goals(ctx, uid)
		return err
	})
	g.Go(func() (err error) {
		snap.Categories, err = r.Categories(ctx, uid)
		return err
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, fmt.Errorf("snapshot %s: %w", uid, err)
	}
	return snap, nil
}

// CardByID indexes the snapshot's cards.
func (s Snapshot) CardByID() map[string]core.CreditCard {
	m := make(map[string]core.CreditCard, len(s.Cards))
	for _, c := range s.Cards {
		m[c.ID] = c
	}
	return m
}
