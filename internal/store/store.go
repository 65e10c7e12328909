// Package store records terminal execution results so they can be fetched
// after the request that started them has returned.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"dualplan/internal/dualplan"
	"dualplan/internal/logging"
)

// ErrNotFound is returned when no run has the requested ID
var ErrNotFound = errors.New("plan run not found")

// Status of a run
type Status string

const (
	StatusRunning    Status = "running"
	StatusComplete   Status = "complete"
	StatusEscalation Status = "escalation"
	StatusError      Status = "error"
)

// PlanRun is one execution's ledger row
type PlanRun struct {
	ID             string     `gorm:"primaryKey;size:36" json:"id"`
	Status         Status     `gorm:"size:16;index" json:"status"`
	SpecName       string     `gorm:"size:255" json:"specName"`
	ResultJSON     string     `gorm:"type:text" json:"-"`
	Coverage       int        `json:"coverage"`
	ReplanAttempts int        `json:"replanAttempts"`
	Rounds         int        `json:"rounds"`
	Error          string     `gorm:"type:text" json:"error,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
}

// Result decodes the stored terminal result. ok is false while the run is
// still in progress.
func (r *PlanRun) Result() (res dualplan.Result, ok bool, err error) {
	if r.ResultJSON == "" {
		return res, false, nil
	}
	if err := json.Unmarshal([]byte(r.ResultJSON), &res); err != nil {
		return res, false, fmt.Errorf("decode stored result: %w", err)
	}
	return res, true, nil
}

// Store is the run ledger
type Store struct {
	db *gorm.DB
}

// Open connects to driver ("sqlite" or "postgres") and migrates the schema
func Open(driver, dsn string, log *zap.Logger) (*Store, error) {
	log = logging.OrDefault(log)
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	var dialector gorm.Dialector
	switch driver {
	case "sqlite", "":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver == "postgres" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
		}
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	s, err := New(db)
	if err != nil {
		return nil, err
	}
	log.Info("run ledger ready", zap.String("driver", dialector.Name()))
	return s, nil
}

// New wraps an open gorm handle and migrates the schema
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&PlanRun{}); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return &Store{db: db}, nil
}

// Create records a run that has just started
func (s *Store) Create(ctx context.Context, id, specName string) (*PlanRun, error) {
	run := &PlanRun{ID: id, Status: StatusRunning, SpecName: specName}
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, fmt.Errorf("create plan run: %w", err)
	}
	return run, nil
}

// Finish stores the terminal result of a run
func (s *Store) Finish(ctx context.Context, id string, res dualplan.Result) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":       statusOf(res.Type),
		"result_json":  string(data),
		"error":        res.Error,
		"completed_at": &now,
	}
	switch {
	case res.Architecture != nil:
		updates["coverage"] = res.Architecture.Validation.Coverage
		updates["replan_attempts"] = res.Architecture.Validation.ReplanAttempts
		updates["rounds"] = res.Architecture.Consensus.Rounds
	case res.Escalation != nil:
		updates["rounds"] = res.Escalation.Rounds
	}

	tx := s.db.WithContext(ctx).Model(&PlanRun{}).Where("id = ?", id).Updates(updates)
	if tx.Error != nil {
		return fmt.Errorf("finish plan run: %w", tx.Error)
	}
	if tx.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Get returns a run by ID
func (s *Store) Get(ctx context.Context, id string) (*PlanRun, error) {
	var run PlanRun
	err := s.db.WithContext(ctx).First(&run, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get plan run: %w", err)
	}
	return &run, nil
}

// Close releases the underlying connection pool
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func statusOf(t dualplan.ResultType) Status {
	switch t {
	case dualplan.ResultComplete:
		return StatusComplete
	case dualplan.ResultEscalation:
		return StatusEscalation
	default:
		return StatusError
	}
}
