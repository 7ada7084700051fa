package currency

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/enterprise-dashboard/generic"
)

// Settings keys of the three canonical rates.
const (
	KeyEURDZD = "eur_dzd"
	KeyUSDDZD = "usd_dzd"
	KeyAEDDZD = "aed_dzd"
)

var rateKeys = []string{KeyEURDZD, KeyUSDDZD, KeyAEDDZD}

func keyFor(c generic.Currency) string {
	switch c {
	case generic.EUR:
		return KeyEURDZD
	case generic.USD:
		return KeyUSDDZD
	case generic.AED:
		return KeyAEDDZD
	}
	return string(c)
}

// AnyVersion skips the optimistic version check (last write wins).
const AnyVersion int64 = -1

// Snapshot is a read of the rates together with the version it was taken at.
// Version is the highest version among the three rows, 0 when none exist.
type Snapshot struct {
	Rates     Rates     `json:"rates"`
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
	Defaulted []string  `json:"defaulted,omitempty"`
}

// =============================================================================
// SERVICE
// =============================================================================

type Service struct {
	store  generic.Store
	logger *zap.Logger
	now    func() time.Time
}

func NewService(store generic.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger, now: time.Now}
}

// Get reads the current rates. It never fails: store errors and bad rows
// fall back to Defaults and are logged.
func (s *Service) Get(ctx context.Context) Snapshot {
	rows, err := s.store.GetSettings(ctx, rateKeys)
	if err != nil {
		s.logger.Warn("exchange rates unavailable, using defaults", zap.Error(err))
		return Snapshot{Rates: Defaults, Defaulted: append([]string(nil), rateKeys...)}
	}
	return s.fromRows(rows)
}

func (s *Service) fromRows(rows []generic.Setting) Snapshot {
	byKey := make(map[string]generic.Setting, len(rows))
	for _, r := range rows {
		byKey[r.Key] = r
	}

	snap := Snapshot{Rates: Defaults}
	for _, key := range rateKeys {
		row, ok := byKey[key]
		if !ok {
			snap.Defaulted = append(snap.Defaulted, key)
			continue
		}
		if row.Version > snap.Version {
			snap.Version = row.Version
		}
		if row.UpdatedAt.After(snap.UpdatedAt) {
			snap.UpdatedAt = row.UpdatedAt
		}

		v, err := decimal.NewFromString(row.Value)
		if err != nil || !v.IsPositive() {
			s.logger.Warn("invalid exchange rate setting, using default",
				zap.String("key", key), zap.String("value", row.Value))
			snap.Defaulted = append(snap.Defaulted, key)
			continue
		}
		switch key {
		case KeyEURDZD:
			snap.Rates.EURDZD = v
		case KeyUSDDZD:
			snap.Rates.USDDZD = v
		case KeyAEDDZD:
			snap.Rates.AEDDZD = v
		}
	}
	return snap
}

// Set validates and persists rates. expectedVersion must match the stored
// version unless it is AnyVersion; a mismatch returns
// ErrConcurrentModification and nothing is written.
func (s *Service) Set(ctx context.Context, rates Rates, expectedVersion int64) (Snapshot, error) {
	if err := rates.Validate(); err != nil {
		return Snapshot{}, err
	}

	var saved Snapshot
	err := s.store.WithTx(ctx, func(tx generic.Store) error {
		rows, err := tx.GetSettings(ctx, rateKeys)
		if err != nil {
			return generic.Persist("get settings", err)
		}
		current := s.fromRows(rows)
		if expectedVersion != AnyVersion && expectedVersion != current.Version {
			return fmt.Errorf("%w: exchange rates at version %d, expected %d",
				generic.ErrConcurrentModification, current.Version, expectedVersion)
		}

		now := s.now()
		next := current.Version + 1
		values := map[string]decimal.Decimal{
			KeyEURDZD: rates.EURDZD,
			KeyUSDDZD: rates.USDDZD,
			KeyAEDDZD: rates.AEDDZD,
		}
		for _, key := range rateKeys {
			row := generic.Setting{Key: key, Value: values[key].String(), Version: next, UpdatedAt: now}
			if err := tx.UpsertSetting(ctx, row); err != nil {
				return generic.Persist("upsert setting "+key, err)
			}
		}
		saved = Snapshot{Rates: rates, Version: next, UpdatedAt: now}
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}

	s.logger.Info("exchange rates saved",
		zap.String("eur_dzd", rates.EURDZD.String()),
		zap.String("usd_dzd", rates.USDDZD.String()),
		zap.String("aed_dzd", rates.AEDDZD.String()),
		zap.Int64("version", saved.Version))
	return saved, nil
}

// SetRelative applies a full relative view against base, checked against
// expectedVersion like Set.
func (s *Service) SetRelative(ctx context.Context, base generic.Currency, view RelativeView, expectedVersion int64) (Snapshot, error) {
	rates, err := FromRelative(base, view)
	if err != nil {
		return Snapshot{}, err
	}
	return s.Set(ctx, rates, expectedVersion)
}
