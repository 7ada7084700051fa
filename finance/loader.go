package finance

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/warp/enterprise-dashboard/currency"
	"github.com/warp/enterprise-dashboard/generic"
)

// =============================================================================
// LOADER - Concurrent batch read of a statement input
// =============================================================================

// Loader issues the independent reads behind a statement concurrently and
// waits for all of them. Any failure fails the whole load; partial results
// are never used.
type Loader struct {
	store  generic.Store
	rates  *currency.Service
	logger *zap.Logger
}

func NewLoader(store generic.Store, rates *currency.Service, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{store: store, rates: rates, logger: logger}
}

// Load reads everything needed for month over the enterprises in scope.
// today is the reference date for proration.
func (l *Loader) Load(ctx context.Context, scope []generic.EnterpriseID, month generic.Month, today time.Time) (Input, error) {
	in := Input{
		Accessible: scope,
		Month:      month,
		Today:      today,
	}
	if len(scope) == 0 {
		in.Rates = l.rates.Get(ctx).Rates
		return in, nil
	}

	loc := today.Location()
	monthRange := month.Period(loc)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		in.Enterprises, err = l.store.ListEnterprises(gctx)
		return generic.Persist("list enterprises", err)
	})
	g.Go(func() (err error) {
		in.Employees, err = l.store.ListEmployees(gctx, scope)
		return generic.Persist("list employees", err)
	})
	g.Go(func() (err error) {
		in.Clients, err = l.store.ListClients(gctx, scope)
		return generic.Persist("list clients", err)
	})
	g.Go(func() (err error) {
		in.Equipment, err = l.store.ListEquipment(gctx, scope)
		return generic.Persist("list equipment", err)
	})
	g.Go(func() (err error) {
		in.Expenses, err = l.store.ListExpenses(gctx, generic.ExpenseFilter{
			Type:          generic.ExpenseProfessional,
			EnterpriseIDs: scope,
			From:          monthRange.Start,
			To:            monthRange.End,
		})
		return generic.Persist("list professional expenses", err)
	})
	g.Go(func() (err error) {
		in.PersonalExpenses, err = l.store.ListExpenses(gctx, generic.ExpenseFilter{
			Type: generic.ExpensePersonal,
			From: monthRange.Start,
			To:   monthRange.End,
		})
		return generic.Persist("list personal expenses", err)
	})
	g.Go(func() (err error) {
		in.ClientRates, err = l.store.ListEmployeeClientRates(gctx, scope)
		return generic.Persist("list client rates", err)
	})
	g.Go(func() (err error) {
		in.ClientCosts, err = l.store.ListClientCosts(gctx, scope)
		return generic.Persist("list client costs", err)
	})
	g.Go(func() error {
		in.Rates = l.rates.Get(gctx).Rates
		return nil
	})

	if err := g.Wait(); err != nil {
		l.logger.Error("statement load failed", zap.String("month", month.String()), zap.Error(err))
		return Input{}, err
	}
	return in, nil
}
