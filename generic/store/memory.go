// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/enterprise-dashboard/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements generic.Store. WithTx is simulated with a snapshot of the
// whole state and a rollback when fn fails.
type Memory struct {
	ops
	mu sync.RWMutex
	s  *state

	// failures injected by tests, keyed by method name
	fmu      sync.Mutex
	failures map[string]error
}

func NewMemory() *Memory {
	m := &Memory{s: newState(), failures: make(map[string]error)}
	m.ops = ops{read: m.read, write: m.write}
	return m
}

// FailOn makes the next call of the named method return err.
func (m *Memory) FailOn(method string, err error) {
	m.fmu.Lock()
	defer m.fmu.Unlock()
	m.failures[method] = err
}

func (m *Memory) fail(method string) error {
	m.fmu.Lock()
	defer m.fmu.Unlock()
	if err, ok := m.failures[method]; ok {
		delete(m.failures, method)
		return err
	}
	return nil
}

// read runs fn under the read lock.
func (m *Memory) read(method string, fn func(s *state)) error {
	if err := m.fail(method); err != nil {
		return err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	fn(m.s)
	return nil
}

// write runs fn under the write lock.
func (m *Memory) write(method string, fn func(s *state)) error {
	if err := m.fail(method); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m.s)
	return nil
}

// =============================================================================
// STATE
// =============================================================================

type state struct {
	enterprises map[generic.EnterpriseID]generic.Enterprise
	profiles    map[generic.UserID]generic.Profile
	employees   map[generic.EmployeeID]generic.Employee
	clients     map[generic.ClientID]generic.Client
	equipment   map[generic.EquipmentID]generic.Equipment
	expenses    map[generic.ExpenseID]generic.Expense
	rates       map[string]generic.EmployeeClientRate
	costs       map[string]generic.ClientCost
	settings    map[string]generic.Setting
	app         map[generic.UserID]generic.AppPermissions
	access      map[generic.UserID][]generic.EnterpriseID
	modules     map[generic.UserID][]generic.ModulePermission
}

func newState() *state {
	return &state{
		enterprises: make(map[generic.EnterpriseID]generic.Enterprise),
		profiles:    make(map[generic.UserID]generic.Profile),
		employees:   make(map[generic.EmployeeID]generic.Employee),
		clients:     make(map[generic.ClientID]generic.Client),
		equipment:   make(map[generic.EquipmentID]generic.Equipment),
		expenses:    make(map[generic.ExpenseID]generic.Expense),
		rates:       make(map[string]generic.EmployeeClientRate),
		costs:       make(map[string]generic.ClientCost),
		settings:    make(map[string]generic.Setting),
		app:         make(map[generic.UserID]generic.AppPermissions),
		access:      make(map[generic.UserID][]generic.EnterpriseID),
		modules:     make(map[generic.UserID][]generic.ModulePermission),
	}
}

func copyMap[K comparable, V any](dst, src map[K]V) {
	for k, v := range src {
		dst[k] = v
	}
}

func (s *state) clone() *state {
	c := newState()
	copyMap(c.enterprises, s.enterprises)
	copyMap(c.profiles, s.profiles)
	copyMap(c.employees, s.employees)
	copyMap(c.clients, s.clients)
	copyMap(c.equipment, s.equipment)
	copyMap(c.expenses, s.expenses)
	copyMap(c.rates, s.rates)
	copyMap(c.costs, s.costs)
	copyMap(c.settings, s.settings)
	copyMap(c.app, s.app)
	for k, v := range s.access {
		c.access[k] = append([]generic.EnterpriseID(nil), v...)
	}
	for k, v := range s.modules {
		c.modules[k] = append([]generic.ModulePermission(nil), v...)
	}
	return c
}

func idSet(ids []generic.EnterpriseID) map[generic.EnterpriseID]bool {
	set := make(map[generic.EnterpriseID]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// filterScoped returns the values of m whose enterprise is in ids, sorted by key.
func filterScoped[K ~string, V any](m map[K]V, ids []generic.EnterpriseID, enterpriseOf func(V) (generic.EnterpriseID, bool)) []V {
	scope := idSet(ids)
	keys := make([]K, 0, len(m))
	for k, v := range m {
		if id, ok := enterpriseOf(v); ok && scope[id] {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	out := make([]V, 0, len(keys))
	for _, k := range keys {
		out = append(out, m[k])
	}
	return out
}

func (s *state) listEnterprises() []generic.Enterprise {
	out := make([]generic.Enterprise, 0, len(s.enterprises))
	for _, e := range s.enterprises {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *state) getProfile(id generic.UserID) *generic.Profile {
	p, ok := s.profiles[id]
	if !ok {
		return nil
	}
	return &p
}

func (s *state) listProfiles() []generic.Profile {
	out := make([]generic.Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out
}

func (s *state) listEmployees(ids []generic.EnterpriseID) []generic.Employee {
	return filterScoped(s.employees, ids, func(e generic.Employee) (generic.EnterpriseID, bool) {
		return e.EnterpriseID, true
	})
}

func (s *state) listClients(ids []generic.EnterpriseID) []generic.Client {
	return filterScoped(s.clients, ids, func(c generic.Client) (generic.EnterpriseID, bool) {
		return c.EnterpriseID, true
	})
}

func (s *state) listEquipment(ids []generic.EnterpriseID) []generic.Equipment {
	return filterScoped(s.equipment, ids, func(e generic.Equipment) (generic.EnterpriseID, bool) {
		return e.EnterpriseID, true
	})
}

func (s *state) clientEnterprise(id generic.ClientID) (generic.EnterpriseID, bool) {
	c, ok := s.clients[id]
	return c.EnterpriseID, ok
}

func (s *state) listRates(ids []generic.EnterpriseID) []generic.EmployeeClientRate {
	return filterScoped(s.rates, ids, func(r generic.EmployeeClientRate) (generic.EnterpriseID, bool) {
		return s.clientEnterprise(r.ClientID)
	})
}

func (s *state) listCosts(ids []generic.EnterpriseID) []generic.ClientCost {
	return filterScoped(s.costs, ids, func(c generic.ClientCost) (generic.EnterpriseID, bool) {
		return s.clientEnterprise(c.ClientID)
	})
}

func (s *state) listExpenses(f generic.ExpenseFilter) []generic.Expense {
	var scope map[generic.EnterpriseID]bool
	if f.EnterpriseIDs != nil {
		scope = idSet(f.EnterpriseIDs)
	}
	var out []generic.Expense
	for _, e := range s.expenses {
		if f.Type != "" && e.Type != f.Type {
			continue
		}
		if scope != nil && (e.EnterpriseID == nil || !scope[*e.EnterpriseID]) {
			continue
		}
		if !f.From.IsZero() && e.Date.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && e.Date.After(f.To) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *state) getSettings(keys []string) []generic.Setting {
	var out []generic.Setting
	for _, k := range keys {
		if v, ok := s.settings[k]; ok {
			out = append(out, v)
		}
	}
	return out
}

func (s *state) getApp(userID generic.UserID) *generic.AppPermissions {
	p, ok := s.app[userID]
	if !ok {
		return nil
	}
	return &p
}

func (s *state) insertAccess(rows []generic.EnterpriseAccess) {
	for _, r := range rows {
		s.access[r.UserID] = append(s.access[r.UserID], r.EnterpriseID)
	}
}

func (s *state) insertModules(rows []generic.ModulePermission) {
	for _, r := range rows {
		s.modules[r.UserID] = append(s.modules[r.UserID], r)
	}
}

// =============================================================================
// STORE METHODS
// =============================================================================

// ops binds the Store methods to a state accessor. Memory goes through its
// locks; the transaction view uses the state directly because WithTx already
// holds the write lock.
type ops struct {
	read  func(method string, fn func(s *state)) error
	write func(method string, fn func(s *state)) error
}

func (o ops) ListEnterprises(_ context.Context) (out []generic.Enterprise, err error) {
	err = o.read("ListEnterprises", func(s *state) { out = s.listEnterprises() })
	return out, err
}

func (o ops) SaveEnterprise(_ context.Context, e generic.Enterprise) error {
	return o.write("SaveEnterprise", func(s *state) { s.enterprises[e.ID] = e })
}

func (o ops) GetProfile(_ context.Context, id generic.UserID) (out *generic.Profile, err error) {
	err = o.read("GetProfile", func(s *state) { out = s.getProfile(id) })
	return out, err
}

func (o ops) ListProfiles(_ context.Context) (out []generic.Profile, err error) {
	err = o.read("ListProfiles", func(s *state) { out = s.listProfiles() })
	return out, err
}

func (o ops) SaveProfile(_ context.Context, p generic.Profile) error {
	return o.write("SaveProfile", func(s *state) { s.profiles[p.ID] = p })
}

func (o ops) ListEmployees(_ context.Context, ids []generic.EnterpriseID) (out []generic.Employee, err error) {
	err = o.read("ListEmployees", func(s *state) { out = s.listEmployees(ids) })
	return out, err
}

func (o ops) ListClients(_ context.Context, ids []generic.EnterpriseID) (out []generic.Client, err error) {
	err = o.read("ListClients", func(s *state) { out = s.listClients(ids) })
	return out, err
}

func (o ops) ListEquipment(_ context.Context, ids []generic.EnterpriseID) (out []generic.Equipment, err error) {
	err = o.read("ListEquipment", func(s *state) { out = s.listEquipment(ids) })
	return out, err
}

func (o ops) ListExpenses(_ context.Context, f generic.ExpenseFilter) (out []generic.Expense, err error) {
	err = o.read("ListExpenses", func(s *state) { out = s.listExpenses(f) })
	return out, err
}

func (o ops) ListEmployeeClientRates(_ context.Context, ids []generic.EnterpriseID) (out []generic.EmployeeClientRate, err error) {
	err = o.read("ListEmployeeClientRates", func(s *state) { out = s.listRates(ids) })
	return out, err
}

func (o ops) ListClientCosts(_ context.Context, ids []generic.EnterpriseID) (out []generic.ClientCost, err error) {
	err = o.read("ListClientCosts", func(s *state) { out = s.listCosts(ids) })
	return out, err
}

func (o ops) SaveEmployee(_ context.Context, e generic.Employee) error {
	return o.write("SaveEmployee", func(s *state) { s.employees[e.ID] = e })
}

func (o ops) SaveClient(_ context.Context, c generic.Client) error {
	return o.write("SaveClient", func(s *state) { s.clients[c.ID] = c })
}

func (o ops) SaveEquipment(_ context.Context, e generic.Equipment) error {
	return o.write("SaveEquipment", func(s *state) { s.equipment[e.ID] = e })
}

func (o ops) SaveExpense(_ context.Context, e generic.Expense) error {
	return o.write("SaveExpense", func(s *state) { s.expenses[e.ID] = e })
}

func (o ops) SaveEmployeeClientRate(_ context.Context, r generic.EmployeeClientRate) error {
	return o.write("SaveEmployeeClientRate", func(s *state) { s.rates[r.ID] = r })
}

func (o ops) SaveClientCost(_ context.Context, c generic.ClientCost) error {
	return o.write("SaveClientCost", func(s *state) { s.costs[c.ID] = c })
}

func (o ops) GetSettings(_ context.Context, keys []string) (out []generic.Setting, err error) {
	err = o.read("GetSettings", func(s *state) { out = s.getSettings(keys) })
	return out, err
}

func (o ops) UpsertSetting(_ context.Context, st generic.Setting) error {
	return o.write("UpsertSetting", func(s *state) { s.settings[st.Key] = st })
}

func (o ops) GetAppPermissions(_ context.Context, userID generic.UserID) (out *generic.AppPermissions, err error) {
	err = o.read("GetAppPermissions", func(s *state) { out = s.getApp(userID) })
	return out, err
}

func (o ops) UpsertAppPermissions(_ context.Context, userID generic.UserID, perms generic.AppPermissions) error {
	return o.write("UpsertAppPermissions", func(s *state) { s.app[userID] = perms })
}

func (o ops) ListEnterpriseAccess(_ context.Context, userID generic.UserID) (out []generic.EnterpriseID, err error) {
	err = o.read("ListEnterpriseAccess", func(s *state) {
		out = append([]generic.EnterpriseID(nil), s.access[userID]...)
	})
	return out, err
}

func (o ops) DeleteEnterpriseAccess(_ context.Context, userID generic.UserID) error {
	return o.write("DeleteEnterpriseAccess", func(s *state) { delete(s.access, userID) })
}

func (o ops) InsertEnterpriseAccess(_ context.Context, rows []generic.EnterpriseAccess) error {
	return o.write("InsertEnterpriseAccess", func(s *state) { s.insertAccess(rows) })
}

func (o ops) ListModulePermissions(_ context.Context, userID generic.UserID) (out []generic.ModulePermission, err error) {
	err = o.read("ListModulePermissions", func(s *state) {
		out = append([]generic.ModulePermission(nil), s.modules[userID]...)
	})
	return out, err
}

func (o ops) DeleteModulePermissions(_ context.Context, userID generic.UserID) error {
	return o.write("DeleteModulePermissions", func(s *state) { delete(s.modules, userID) })
}

func (o ops) InsertModulePermissions(_ context.Context, rows []generic.ModulePermission) error {
	return o.write("InsertModulePermissions", func(s *state) { s.insertModules(rows) })
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
// Writers outside the transaction block until it finishes.
func (m *Memory) WithTx(ctx context.Context, fn func(generic.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.s.clone()
	tx := &txMemory{parent: m}
	tx.ops = ops{read: tx.direct, write: tx.direct}
	if err := fn(tx); err != nil {
		m.s = snapshot
		return err
	}
	return nil
}

// txMemory operates on the parent state while WithTx holds its lock.
type txMemory struct {
	ops
	parent *Memory
}

func (tm *txMemory) direct(method string, fn func(s *state)) error {
	if err := tm.parent.fail(method); err != nil {
		return err
	}
	fn(tm.parent.s)
	return nil
}

// WithTx inside a transaction runs fn inline.
func (tm *txMemory) WithTx(_ context.Context, fn func(generic.Store) error) error {
	return fn(tm)
}

var (
	_ generic.Store = (*Memory)(nil)
	_ generic.Store = (*txMemory)(nil)
)
