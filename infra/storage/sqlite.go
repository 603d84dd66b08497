package storage

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"cross/domain/history"
)

// Store is the order and execution history on SQLite (pure Go driver).
type Store struct {
	db *gorm.DB
}

// Open creates the database file and its directory if needed and migrates
// the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "create db directory %s", dir)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "open history db %s", path)
	}
	if err := db.AutoMigrate(&OrderRecord{}, &ExecutionRecord{}); err != nil {
		return nil, errors.Wrap(err, "migrate history db")
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ======================================================================================
// Writes
// ======================================================================================

// Record appends everything one command produced in a single transaction.
func (s *Store) Record(ctx context.Context, e history.Entry) error {
	if e.Empty() {
		return nil
	}
	at := e.At.UnixNano()

	orders := make([]OrderRecord, 0, len(e.Orders))
	for _, o := range e.Orders {
		orders = append(orders, OrderRecord{
			Seq:       e.Seq,
			AtNano:    at,
			OrderID:   o.ID,
			Owner:     o.Owner,
			Side:      o.Side.String(),
			Kind:      o.Kind.String(),
			Status:    o.Status.String(),
			Price:     o.Price,
			Size:      o.Size,
			Requested: o.Requested,
			Filled:    o.Filled,
		})
	}
	execs := make([]ExecutionRecord, 0, len(e.Fills))
	for _, f := range e.Fills {
		execs = append(execs, ExecutionRecord{
			Seq:        e.Seq,
			AtNano:     f.At.UnixNano(),
			MakerID:    f.MakerID,
			TakerID:    f.TakerID,
			MakerOwner: f.MakerOwner,
			TakerOwner: f.TakerOwner,
			TakerSide:  f.TakerSide.String(),
			Price:      f.Price,
			Size:       f.Size,
		})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(orders) > 0 {
			if err := tx.Create(&orders).Error; err != nil {
				return err
			}
		}
		if len(execs) > 0 {
			if err := tx.Create(&execs).Error; err != nil {
				return err
			}
		}
		return nil
	})
	return errors.Wrapf(err, "record seq %d", e.Seq)
}

// ======================================================================================
// Reads
// ======================================================================================

// PriceHistory folds the executions of month into daily prices. Year 0
// reads every year.
func (s *Store) PriceHistory(ctx context.Context, year int, month time.Month) ([]history.DayPrice, error) {
	q := s.db.WithContext(ctx).Model(&ExecutionRecord{})
	if year > 0 {
		from, to := history.MonthRange(year, month)
		q = q.Where("at_ns >= ? AND at_ns < ?", from.UnixNano(), to.UnixNano())
	}

	var rows []ExecutionRecord
	if err := q.Order("at_ns, seq, id").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "load executions")
	}

	execs := make([]history.Execution, 0, len(rows))
	for _, r := range rows {
		execs = append(execs, history.Execution{
			Seq:   r.Seq,
			At:    time.Unix(0, r.AtNano).UTC(),
			Price: r.Price,
			Size:  r.Size,
		})
	}
	return history.Fold(execs, year, month), nil
}

// OrderHistory returns every recorded state of orderID, oldest first.
func (s *Store) OrderHistory(ctx context.Context, orderID uint64) ([]OrderRecord, error) {
	var rows []OrderRecord
	err := s.db.WithContext(ctx).Where("order_id = ?", orderID).Order("seq, id").Find(&rows).Error
	return rows, errors.Wrapf(err, "order %d", orderID)
}
