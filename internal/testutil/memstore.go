// Package testutil holds in-memory fakes shared by tests.
package testutil

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"jobpilot-edge/internal/credits"
	"jobpilot-edge/internal/identity"
	"jobpilot-edge/internal/models"
)

// MemStore is an in-memory identity.Store and credits.Ledger. Deductions are
// atomic under one mutex, like the ledger procedure.
type MemStore struct {
	mu           sync.Mutex
	records      map[string]map[string]*models.FeatureRecord // table -> id -> row
	users        map[string]*models.User
	profiles     map[string]*models.UserProfile
	credits      map[string]*models.UserCredits
	transactions []models.CreditTransaction
	nextTx       int

	// failure injection
	DeductErr    error
	CreditsErr   error
	GrantErr     error
	ForceRefusal bool // Deduct/UseInterviewCredit return false without touching balance
}

var (
	_ identity.Store = (*MemStore)(nil)
	_ credits.Ledger = (*MemStore)(nil)
)

func NewMemStore() *MemStore {
	return &MemStore{
		records:  make(map[string]map[string]*models.FeatureRecord),
		users:    make(map[string]*models.User),
		profiles: make(map[string]*models.UserProfile),
		credits:  make(map[string]*models.UserCredits),
	}
}

func (m *MemStore) AddRecord(table string, r models.FeatureRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.records[table] == nil {
		m.records[table] = make(map[string]*models.FeatureRecord)
	}
	m.records[table][r.ID] = &r
}

func (m *MemStore) AddUser(u models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = &u
}

func (m *MemStore) User(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, identity.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

func (m *MemStore) UserByAuthID(_ context.Context, authID string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.AuthID == authID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, identity.ErrNoRows
}

func (m *MemStore) AddProfile(p models.UserProfile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.ID] = &p
}

func (m *MemStore) DeleteProfile(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.profiles, id)
}

// SetBalance creates or overwrites the credits row for userID.
func (m *MemStore) SetBalance(userID, balance string) {
	m.SetCredits(models.UserCredits{
		UserID:         userID,
		CurrentBalance: decimal.RequireFromString(balance),
	})
}

func (m *MemStore) SetCredits(c models.UserCredits) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credits[c.UserID] = &c
}

// Balance returns the general balance for userID.
func (m *MemStore) Balance(userID string) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.credits[userID]; ok {
		return c.CurrentBalance
	}
	return decimal.Zero
}

// Transactions returns a copy of the ledger rows for userID.
func (m *MemStore) Transactions(userID string) []models.CreditTransaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.CreditTransaction
	for _, tx := range m.transactions {
		if tx.UserID == userID {
			out = append(out, tx)
		}
	}
	return out
}

func (m *MemStore) FeatureRecord(_ context.Context, table, id string) (*models.FeatureRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[table][id]
	if !ok {
		return nil, identity.ErrNoRows
	}
	cp := *r
	return &cp, nil
}

func (m *MemStore) Profile(_ context.Context, id string) (*models.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, identity.ErrNoRows
	}
	cp := *p
	return &cp, nil
}

func (m *MemStore) ProfileByTelegramChat(_ context.Context, chatID int64) (*models.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.profiles {
		if p.TelegramChatID != nil && *p.TelegramChatID == chatID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, identity.ErrNoRows
}

func (m *MemStore) Credits(_ context.Context, userID string) (*models.UserCredits, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreditsErr != nil {
		return nil, m.CreditsErr
	}
	c, ok := m.credits[userID]
	if !ok {
		return nil, credits.ErrNoCredits
	}
	cp := *c
	return &cp, nil
}

func (m *MemStore) Deduct(_ context.Context, userID string, amount decimal.Decimal, feature, description string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeductErr != nil {
		return false, m.DeductErr
	}
	c, ok := m.credits[userID]
	if !ok || m.ForceRefusal || c.CurrentBalance.LessThan(amount) {
		return false, nil
	}
	c.CurrentBalance = c.CurrentBalance.Sub(amount)
	m.appendTx(userID, "general", amount.Neg(), feature, description)
	return true, nil
}

func (m *MemStore) UseInterviewCredit(_ context.Context, userID, description string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeductErr != nil {
		return false, m.DeductErr
	}
	one := decimal.NewFromInt(1)
	c, ok := m.credits[userID]
	if !ok || m.ForceRefusal || c.AIInterviewCredits.LessThan(one) {
		return false, nil
	}
	c.AIInterviewCredits = c.AIInterviewCredits.Sub(one)
	m.appendTx(userID, "ai_interview", one.Neg(), "ai_phone_interview", description)
	return true, nil
}

// Grant adds credits like the add_credits procedure, once per non-empty
// feature/reference pair.
func (m *MemStore) Grant(_ context.Context, userID string, amount decimal.Decimal, feature, reference, description string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GrantErr != nil {
		return false, m.GrantErr
	}
	if reference != "" {
		for _, tx := range m.transactions {
			if tx.FeatureUsed == feature && tx.Reference == reference {
				return false, nil
			}
		}
	}
	c, ok := m.credits[userID]
	if !ok {
		c = &models.UserCredits{UserID: userID}
		m.credits[userID] = c
	}
	c.CurrentBalance = c.CurrentBalance.Add(amount)
	c.PaidCredits = c.PaidCredits.Add(amount)
	m.appendTx(userID, "general", amount, feature, description)
	m.transactions[len(m.transactions)-1].Reference = reference
	return true, nil
}

func (m *MemStore) appendTx(userID, pool string, amount decimal.Decimal, feature, description string) {
	m.nextTx++
	m.transactions = append(m.transactions, models.CreditTransaction{
		ID:          "tx-" + strconv.Itoa(m.nextTx),
		UserID:      userID,
		Pool:        pool,
		Amount:      amount,
		FeatureUsed: feature,
		Description: description,
		CreatedAt:   time.Now(),
	})
}
