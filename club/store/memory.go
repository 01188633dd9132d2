// Package store provides club.Store implementations.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/clubworks/club-backoffice/club"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu sync.RWMutex

	sports   map[club.SportID]club.Sport
	students map[club.StudentID]club.Student
	fees     map[club.FeeID]club.Fee
	payments map[club.PaymentID]club.Payment
	users    map[club.UserID]club.User
	roles    map[string]bool
	runs     []club.BillingRun

	nextSport   club.SportID
	nextStudent club.StudentID
	nextFee     club.FeeID
	nextPayment club.PaymentID
	nextUser    club.UserID
}

func NewMemory() *Memory {
	return &Memory{
		sports:      make(map[club.SportID]club.Sport),
		students:    make(map[club.StudentID]club.Student),
		fees:        make(map[club.FeeID]club.Fee),
		payments:    make(map[club.PaymentID]club.Payment),
		users:       make(map[club.UserID]club.User),
		roles:       make(map[string]bool),
		nextSport:   1,
		nextStudent: 1,
		nextFee:     1,
		nextPayment: 1,
		nextUser:    1,
	}
}

// =============================================================================
// SPORTS
// =============================================================================

func (m *Memory) CreateSport(_ context.Context, s *club.Sport) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.sports {
		if existing.Name == s.Name {
			return club.ErrConflict
		}
	}
	s.ID = m.nextSport
	m.nextSport++
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	m.sports[s.ID] = *s
	return nil
}

func (m *Memory) UpdateSport(_ context.Context, s *club.Sport) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sports[s.ID]; !ok {
		return club.ErrSportNotFound
	}
	m.sports[s.ID] = *s
	return nil
}

func (m *Memory) GetSport(_ context.Context, id club.SportID) (*club.Sport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sports[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *Memory) GetSportByName(_ context.Context, name string) (*club.Sport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, s := range m.sports {
		if strings.EqualFold(s.Name, name) {
			cp := s
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *Memory) ListSports(_ context.Context) ([]club.Sport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sports := make([]club.Sport, 0, len(m.sports))
	for _, s := range m.sports {
		sports = append(sports, s)
	}
	sort.Slice(sports, func(i, j int) bool { return sports[i].Name < sports[j].Name })
	return sports, nil
}

// =============================================================================
// STUDENTS
// =============================================================================

func (m *Memory) CreateStudent(_ context.Context, s *club.Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.students {
		if existing.Document == s.Document {
			return club.ErrDuplicateDocument
		}
	}
	s.ID = m.nextStudent
	m.nextStudent++
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	m.students[s.ID] = *s
	return nil
}

func (m *Memory) GetStudent(_ context.Context, id club.StudentID) (*club.Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.students[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *Memory) FindStudentsByName(_ context.Context, term string) ([]club.Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	term = strings.ToUpper(term)
	var out []club.Student
	for _, s := range m.students {
		if strings.Contains(strings.ToUpper(s.FirstName), term) ||
			strings.Contains(strings.ToUpper(s.LastName), term) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) ListStudents(_ context.Context, f club.StudentFilter) ([]club.Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var all []club.Student
	for _, s := range m.students {
		if f.Active != nil && s.IsActive != *f.Active {
			continue
		}
		all = append(all, s)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	if f.Offset > 0 {
		if f.Offset >= len(all) {
			return nil, nil
		}
		all = all[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(all) {
		all = all[:f.Limit]
	}
	return all, nil
}

func (m *Memory) UpdateStudent(_ context.Context, s *club.Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.students[s.ID]; !ok {
		return club.ErrStudentNotFound
	}
	m.students[s.ID] = *s
	return nil
}

// =============================================================================
// FEES
// =============================================================================

func (m *Memory) CreateFee(_ context.Context, f *club.Fee) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.fees {
		if existing.StudentID == f.StudentID &&
			existing.Month == f.Month && existing.Year == f.Year {
			return club.ErrConflict
		}
	}
	f.ID = m.nextFee
	m.nextFee++
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	m.fees[f.ID] = *f
	return nil
}

func (m *Memory) GetFee(_ context.Context, id club.FeeID) (*club.Fee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	f, ok := m.fees[id]
	if !ok {
		return nil, nil
	}
	return &f, nil
}

func (m *Memory) FeeExists(_ context.Context, studentID club.StudentID, bm club.BillingMonth) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, f := range m.fees {
		if f.StudentID == studentID && f.Year == bm.Year && f.Month == bm.Month {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) ListStudentFees(_ context.Context, studentID club.StudentID) ([]club.Fee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []club.Fee
	for _, f := range m.fees {
		if f.StudentID == studentID {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

func (m *Memory) ListUnpaidFeesBefore(_ context.Context, studentID club.StudentID, before time.Time) ([]club.Fee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []club.Fee
	for _, f := range m.fees {
		if f.StudentID == studentID && f.StartDate.Before(before) && f.AmountPaid.LessThan(f.Value) {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

func (m *Memory) ListFees(_ context.Context, filter club.FeeFilter) ([]club.Fee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []club.Fee
	for _, f := range m.fees {
		if filter.StudentID != nil && f.StudentID != *filter.StudentID {
			continue
		}
		if filter.Month != nil && f.Month != *filter.Month {
			continue
		}
		if filter.Year != nil && f.Year != *filter.Year {
			continue
		}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

func (m *Memory) UpdateFeeAmountPaid(_ context.Context, id club.FeeID, observed, newPaid decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.fees[id]
	if !ok {
		return club.ErrFeeNotFound
	}
	if !f.AmountPaid.Equal(observed) {
		return club.ErrConflict
	}
	f.AmountPaid = newPaid
	m.fees[id] = f
	return nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

func (m *Memory) CreatePayment(_ context.Context, p *club.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.payments {
		if existing.Receipt == p.Receipt {
			return club.ErrConflict
		}
	}
	p.ID = m.nextPayment
	m.nextPayment++
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	m.payments[p.ID] = *p
	return nil
}

func (m *Memory) ListFeePayments(_ context.Context, feeID club.FeeID) ([]club.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []club.Payment
	for _, p := range m.payments {
		if p.FeeID == feeID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) ListStudentPayments(_ context.Context, studentID club.StudentID) ([]club.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []club.Payment
	for _, p := range m.payments {
		if p.StudentID == studentID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// =============================================================================
// USERS & ROLES
// =============================================================================

func (m *Memory) CreateUser(_ context.Context, u *club.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return club.ErrConflict
		}
	}
	u.ID = m.nextUser
	m.nextUser++
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	m.users[u.ID] = *u
	return nil
}

func (m *Memory) GetUserByEmail(_ context.Context, email string) (*club.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			cp := u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *Memory) EnsureRole(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roles[name] = true
	return nil
}

// =============================================================================
// BILLING RUNS
// =============================================================================

func (m *Memory) CreateBillingRun(_ context.Context, r *club.BillingRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, *r)
	return nil
}

func (m *Memory) HasCompletedRun(_ context.Context, bm club.BillingMonth) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.runs {
		if r.Year == bm.Year && r.Month == bm.Month && r.Status == club.RunStatusCompleted {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) ListBillingRuns(_ context.Context, limit int) ([]club.BillingRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]club.BillingRun, len(m.runs))
	copy(out, m.runs)
	// newest first
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx runs fn against a snapshot-backed view: on error the previous
// state is restored. Coarse but sufficient for tests.
func (m *Memory) WithTx(_ context.Context, fn func(club.Store) error) error {
	m.mu.Lock()
	snapshot := m.copyStateLocked()
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.restoreStateLocked(snapshot)
		m.mu.Unlock()
		return err
	}
	return nil
}

type memState struct {
	sports   map[club.SportID]club.Sport
	students map[club.StudentID]club.Student
	fees     map[club.FeeID]club.Fee
	payments map[club.PaymentID]club.Payment
	users    map[club.UserID]club.User
	runs     []club.BillingRun

	nextSport   club.SportID
	nextStudent club.StudentID
	nextFee     club.FeeID
	nextPayment club.PaymentID
	nextUser    club.UserID
}

func (m *Memory) copyStateLocked() memState {
	st := memState{
		sports:      make(map[club.SportID]club.Sport, len(m.sports)),
		students:    make(map[club.StudentID]club.Student, len(m.students)),
		fees:        make(map[club.FeeID]club.Fee, len(m.fees)),
		payments:    make(map[club.PaymentID]club.Payment, len(m.payments)),
		users:       make(map[club.UserID]club.User, len(m.users)),
		nextSport:   m.nextSport,
		nextStudent: m.nextStudent,
		nextFee:     m.nextFee,
		nextPayment: m.nextPayment,
		nextUser:    m.nextUser,
	}
	for k, v := range m.sports {
		st.sports[k] = v
	}
	for k, v := range m.students {
		st.students[k] = v
	}
	for k, v := range m.fees {
		st.fees[k] = v
	}
	for k, v := range m.payments {
		st.payments[k] = v
	}
	for k, v := range m.users {
		st.users[k] = v
	}
	st.runs = make([]club.BillingRun, len(m.runs))
	copy(st.runs, m.runs)
	return st
}

func (m *Memory) restoreStateLocked(st memState) {
	m.sports = st.sports
	m.students = st.students
	m.fees = st.fees
	m.payments = st.payments
	m.users = st.users
	m.runs = st.runs
	m.nextSport = st.nextSport
	m.nextStudent = st.nextStudent
	m.nextFee = st.nextFee
	m.nextPayment = st.nextPayment
	m.nextUser = st.nextUser
}
