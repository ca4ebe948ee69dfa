package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang-options/internal/dto"
	"golang-options/internal/model"
	"golang-options/pkg/utils"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// memoryDB backs the in-process store used for paper trading and tests.
//
// Writes made outside a unit of work take txMu so they never interleave with
// a running transaction. Writes inside one are recognised by the non-empty
// option list the unit of work hands to fn; they skip txMu since Run holds it.
type memoryDB struct {
	mu   sync.RWMutex
	txMu sync.Mutex

	automations map[uint]model.Automation
	positions   map[uint]model.Position
	trades      map[uint]model.Trade
	accounts    map[uint]model.Account
	cycles      map[uint]model.CycleHistory
	rejections  map[uint]model.PriceRejection
	seq         map[string]uint
}

type memorySnapshot struct {
	automations map[uint]model.Automation
	positions   map[uint]model.Position
	trades      map[uint]model.Trade
	accounts    map[uint]model.Account
	cycles      map[uint]model.CycleHistory
	seq         map[string]uint
}

func newMemoryDB() *memoryDB {
	return &memoryDB{
		automations: make(map[uint]model.Automation),
		positions:   make(map[uint]model.Position),
		trades:      make(map[uint]model.Trade),
		accounts:    make(map[uint]model.Account),
		cycles:      make(map[uint]model.CycleHistory),
		rejections:  make(map[uint]model.PriceRejection),
		seq:         make(map[string]uint),
	}
}

var memoryTx utils.DBOption = func(db *gorm.DB) *gorm.DB { return db }

func (m *memoryDB) write(opts []utils.DBOption, fn func() error) error {
	if len(opts) == 0 {
		m.txMu.Lock()
		defer m.txMu.Unlock()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn()
}

func (m *memoryDB) read(fn func()) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fn()
}

func (m *memoryDB) nextID(table string) uint {
	m.seq[table]++
	return m.seq[table]
}

func (m *memoryDB) snapshot() memorySnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return memorySnapshot{
		automations: cloneMap(m.automations),
		positions:   cloneMap(m.positions),
		trades:      cloneMap(m.trades),
		accounts:    cloneMap(m.accounts),
		cycles:      cloneMap(m.cycles),
		seq:         cloneMap(m.seq),
	}
}

func (m *memoryDB) restore(s memorySnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.automations = s.automations
	m.positions = s.positions
	m.trades = s.trades
	m.accounts = s.accounts
	m.cycles = s.cycles
	m.seq = s.seq
}

func cloneMap[K comparable, V any](src map[K]V) map[K]V {
	dst := make(map[K]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func sortedValues[V any](src map[uint]V) []V {
	ids := make([]uint, 0, len(src))
	for id := range src {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]V, 0, len(ids))
	for _, id := range ids {
		out = append(out, src[id])
	}
	return out
}

type memoryUnitOfWork struct {
	db *memoryDB
}

// Run snapshots the store and restores it when fn fails or panics.
func (u *memoryUnitOfWork) Run(ctx context.Context, fn func(ctx context.Context, opts ...utils.DBOption) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	u.db.txMu.Lock()
	defer u.db.txMu.Unlock()

	snap := u.db.snapshot()
	defer func() {
		if r := recover(); r != nil {
			u.db.restore(snap)
			panic(r)
		}
		if err != nil {
			u.db.restore(snap)
		}
	}()

	err = fn(ctx, memoryTx)
	return
}

type memoryAutomationRepository struct{ db *memoryDB }

func (r *memoryAutomationRepository) Get(_ context.Context, param model.GetAutomationsParam, _ ...utils.DBOption) ([]model.Automation, error) {
	var out []model.Automation
	r.db.read(func() {
		for _, a := range sortedValues(r.db.automations) {
			if len(param.IDs) > 0 && !containsID(param.IDs, a.ID) {
				continue
			}
			if param.AccountID != nil && a.AccountID != *param.AccountID {
				continue
			}
			if param.IsActive != nil && a.IsActive != *param.IsActive {
				continue
			}
			out = append(out, a)
		}
	})
	return out, nil
}

func (r *memoryAutomationRepository) FindByID(_ context.Context, id uint, _ ...utils.DBOption) (*model.Automation, error) {
	var (
		a     model.Automation
		found bool
	)
	r.db.read(func() { a, found = r.db.automations[id] })
	if !found {
		return nil, fmt.Errorf("automation %d: %w", id, dto.ErrNotFound)
	}
	return &a, nil
}

func (r *memoryAutomationRepository) Create(_ context.Context, a *model.Automation, opts ...utils.DBOption) error {
	return r.db.write(opts, func() error {
		now := time.Now().UTC()
		a.ID = r.db.nextID("automations")
		a.CreatedAt, a.UpdatedAt = now, now
		r.db.automations[a.ID] = *a
		return nil
	})
}

func (r *memoryAutomationRepository) Update(_ context.Context, a *model.Automation, opts ...utils.DBOption) error {
	return r.db.write(opts, func() error {
		if _, ok := r.db.automations[a.ID]; !ok {
			return fmt.Errorf("automation %d: %w", a.ID, dto.ErrNotFound)
		}
		a.UpdatedAt = time.Now().UTC()
		r.db.automations[a.ID] = *a
		return nil
	})
}

func (r *memoryAutomationRepository) RecordEvaluation(_ context.Context, id uint, failures int, lastError *string, evaluatedAt time.Time, opts ...utils.DBOption) error {
	return r.db.write(opts, func() error {
		a, ok := r.db.automations[id]
		if !ok {
			return fmt.Errorf("automation %d: %w", id, dto.ErrNotFound)
		}
		a.ConsecutiveFailures = failures
		a.LastError = lastError
		a.LastEvaluatedAt = &evaluatedAt
		r.db.automations[id] = a
		return nil
	})
}

type memoryPositionRepository struct{ db *memoryDB }

func (r *memoryPositionRepository) Get(_ context.Context, param model.GetPositionsParam, _ ...utils.DBOption) ([]model.Position, error) {
	var out []model.Position
	r.db.read(func() {
		for _, p := range sortedValues(r.db.positions) {
			if len(param.IDs) > 0 && !containsID(param.IDs, p.ID) {
				continue
			}
			if param.AccountID != nil && p.AccountID != *param.AccountID {
				continue
			}
			if param.AutomationID != nil && (p.AutomationID == nil || *p.AutomationID != *param.AutomationID) {
				continue
			}
			if len(param.Statuses) > 0 && !containsStatus(param.Statuses, p.Status) {
				continue
			}
			if param.OpenOnly && !p.IsOpen() {
				continue
			}
			out = append(out, p)
		}
	})
	return out, nil
}

func (r *memoryPositionRepository) FindByID(_ context.Context, id uint, _ ...utils.DBOption) (*model.Position, error) {
	var (
		p     model.Position
		found bool
	)
	r.db.read(func() { p, found = r.db.positions[id] })
	if !found {
		return nil, fmt.Errorf("position %d: %w", id, dto.ErrNotFound)
	}
	return &p, nil
}

func (r *memoryPositionRepository) Create(_ context.Context, p *model.Position, opts ...utils.DBOption) error {
	return r.db.write(opts, func() error {
		now := time.Now().UTC()
		p.ID = r.db.nextID("positions")
		p.CreatedAt, p.UpdatedAt = now, now
		r.db.positions[p.ID] = *p
		return nil
	})
}

func (r *memoryPositionRepository) Update(_ context.Context, p *model.Position, opts ...utils.DBOption) error {
	return r.db.write(opts, func() error {
		if _, ok := r.db.positions[p.ID]; !ok {
			return fmt.Errorf("position %d: %w", p.ID, dto.ErrNotFound)
		}
		p.UpdatedAt = time.Now().UTC()
		r.db.positions[p.ID] = *p
		return nil
	})
}

func (r *memoryPositionRepository) UpdateIfOpen(_ context.Context, p *model.Position, opts ...utils.DBOption) (bool, error) {
	updated := false
	err := r.db.write(opts, func() error {
		stored, ok := r.db.positions[p.ID]
		if !ok || !stored.IsOpen() {
			return nil
		}
		stored.Status = p.Status
		stored.CurrentPrice = p.CurrentPrice
		stored.UnrealizedPnL = p.UnrealizedPnL
		stored.LastRefreshedAt = p.LastRefreshedAt
		stored.UpdatedAt = time.Now().UTC()
		r.db.positions[p.ID] = stored
		updated = true
		return nil
	})
	return updated, err
}

type memoryTradeRepository struct{ db *memoryDB }

func (r *memoryTradeRepository) Create(_ context.Context, t *model.Trade, opts ...utils.DBOption) error {
	return r.db.write(opts, func() error {
		t.ID = r.db.nextID("trades")
		t.CreatedAt = time.Now().UTC()
		r.db.trades[t.ID] = *t
		return nil
	})
}

func (r *memoryTradeRepository) ListByPosition(_ context.Context, positionID uint, _ ...utils.DBOption) ([]model.Trade, error) {
	var out []model.Trade
	r.db.read(func() {
		for _, t := range sortedValues(r.db.trades) {
			if t.PositionID == positionID {
				out = append(out, t)
			}
		}
	})
	return out, nil
}

func (r *memoryTradeRepository) SumRealizedPnLSince(_ context.Context, accountID uint, since time.Time, _ ...utils.DBOption) (decimal.Decimal, error) {
	total := decimal.Zero
	r.db.read(func() {
		for _, t := range r.db.trades {
			if t.AccountID == accountID && !t.ExecutedAt.Before(since) && t.RealizedPnL.Valid {
				total = total.Add(t.RealizedPnL.Decimal)
			}
		}
	})
	return total, nil
}

type memoryAccountRepository struct{ db *memoryDB }

func (r *memoryAccountRepository) FindByID(_ context.Context, id uint, _ ...utils.DBOption) (*model.Account, error) {
	var (
		a     model.Account
		found bool
	)
	r.db.read(func() { a, found = r.db.accounts[id] })
	if !found {
		return nil, fmt.Errorf("account %d: %w", id, dto.ErrNotFound)
	}
	return &a, nil
}

func (r *memoryAccountRepository) Create(_ context.Context, a *model.Account, opts ...utils.DBOption) error {
	return r.db.write(opts, func() error {
		now := time.Now().UTC()
		if a.ID == 0 {
			a.ID = r.db.nextID("accounts")
		} else if a.ID > r.db.seq["accounts"] {
			r.db.seq["accounts"] = a.ID
		}
		a.CreatedAt, a.UpdatedAt = now, now
		r.db.accounts[a.ID] = *a
		return nil
	})
}

func (r *memoryAccountRepository) Update(_ context.Context, a *model.Account, opts ...utils.DBOption) error {
	return r.db.write(opts, func() error {
		if _, ok := r.db.accounts[a.ID]; !ok {
			return fmt.Errorf("account %d: %w", a.ID, dto.ErrNotFound)
		}
		a.UpdatedAt = time.Now().UTC()
		r.db.accounts[a.ID] = *a
		return nil
	})
}

type memoryCycleHistoryRepository struct{ db *memoryDB }

func (r *memoryCycleHistoryRepository) Create(_ context.Context, h *model.CycleHistory, opts ...utils.DBOption) error {
	return r.db.write(opts, func() error {
		h.ID = r.db.nextID("cycle_histories")
		h.CreatedAt = time.Now().UTC()
		r.db.cycles[h.ID] = *h
		return nil
	})
}

func (r *memoryCycleHistoryRepository) Update(_ context.Context, h *model.CycleHistory, opts ...utils.DBOption) error {
	return r.db.write(opts, func() error {
		r.db.cycles[h.ID] = *h
		return nil
	})
}

func (r *memoryCycleHistoryRepository) Latest(_ context.Context, limit int, _ ...utils.DBOption) ([]model.CycleHistory, error) {
	var out []model.CycleHistory
	r.db.read(func() {
		all := sortedValues(r.db.cycles)
		for i := len(all) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
			out = append(out, all[i])
		}
	})
	return out, nil
}

func (r *memoryCycleHistoryRepository) DeleteOlderThan(_ context.Context, date time.Time, opts ...utils.DBOption) (int64, error) {
	var deleted int64
	err := r.db.write(opts, func() error {
		for id, h := range r.db.cycles {
			if h.StartedAt.Before(date) {
				delete(r.db.cycles, id)
				deleted++
			}
		}
		return nil
	})
	return deleted, err
}

type memoryPriceRejectionRepository struct{ db *memoryDB }

func (r *memoryPriceRejectionRepository) Create(_ context.Context, p *model.PriceRejection, opts ...utils.DBOption) error {
	return r.db.write(opts, func() error {
		p.ID = r.db.nextID("price_rejections")
		p.CreatedAt = time.Now().UTC()
		r.db.rejections[p.ID] = *p
		return nil
	})
}

func (r *memoryPriceRejectionRepository) Latest(_ context.Context, limit int, _ ...utils.DBOption) ([]model.PriceRejection, error) {
	var out []model.PriceRejection
	r.db.read(func() {
		all := sortedValues(r.db.rejections)
		for i := len(all) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
			out = append(out, all[i])
		}
	})
	return out, nil
}

func containsID(ids []uint, id uint) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func containsStatus(statuses []model.PositionStatus, s model.PositionStatus) bool {
	for _, v := range statuses {
		if v == s {
			return true
		}
	}
	return false
}
