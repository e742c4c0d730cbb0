package archive

import (
	"context"
	"database/sql"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// BunStore is the Postgres-backed Store, used in production deployments that
// want run history to survive a restart.
type BunStore struct {
	db *bun.DB
}

// NewBunStore opens a Postgres connection via dsn. Callers own the lifetime of
// the returned store and should call Close when done.
func NewBunStore(dsn string) *BunStore {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	return &BunStore{db: db}
}

// InitSchema creates the runs table if it doesn't already exist.
func (s *BunStore) InitSchema(ctx context.Context) error {
	_, err := s.db.NewCreateTable().Model((*runModel)(nil)).IfNotExists().Exec(ctx)
	return err
}

type runModel struct {
	bun.BaseModel `bun:"table:runs,alias:r"`

	RunID     string    `bun:"run_id,pk"`
	Task      string    `bun:"task"`
	StartedAt time.Time `bun:"started_at"`
	EndedAt   time.Time `bun:"ended_at"`
	Status    string    `bun:"status"`

	Graph    any    `bun:"graph,type:jsonb"`
	Workflow any    `bun:"workflow,type:jsonb"`
	Result   any    `bun:"result,type:jsonb"`
	ErrMsg   string `bun:"err_msg"`
}

func newRunModel(rec Record) *runModel {
	return &runModel{
		RunID:     rec.Meta.RunID,
		Task:      rec.Meta.Task,
		StartedAt: rec.Meta.StartedAt,
		EndedAt:   rec.Meta.EndedAt,
		Status:    rec.Meta.Status,
		Graph:     rec.Graph,
		Workflow:  rec.Workflow,
		Result:    rec.Result,
		ErrMsg:    rec.ErrMsg,
	}
}

func (m *runModel) toRecord() Record {
	return Record{
		Meta: Meta{
			RunID:     m.RunID,
			Task:      m.Task,
			StartedAt: m.StartedAt,
			EndedAt:   m.EndedAt,
			Status:    m.Status,
		},
		Graph:    m.Graph,
		Workflow: m.Workflow,
		Result:   m.Result,
		ErrMsg:   m.ErrMsg,
	}
}

func (s *BunStore) Save(ctx context.Context, rec Record) error {
	model := newRunModel(rec)
	_, err := s.db.NewInsert().Model(model).On("CONFLICT (run_id) DO UPDATE").Exec(ctx)
	return err
}

func (s *BunStore) Get(ctx context.Context, runID string) (Record, error) {
	model := new(runModel)
	err := s.db.NewSelect().Model(model).Where("run_id = ?", runID).Scan(ctx)
	if err == sql.ErrNoRows {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	return model.toRecord(), nil
}

func (s *BunStore) List(ctx context.Context) ([]Meta, error) {
	var models []runModel
	err := s.db.NewSelect().Model(&models).Order("started_at DESC").Scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Meta, len(models))
	for i, m := range models {
		out[i] = Meta{
			RunID:     m.RunID,
			Task:      m.Task,
			StartedAt: m.StartedAt,
			EndedAt:   m.EndedAt,
			Status:    m.Status,
		}
	}
	return out, nil
}

// Ping checks the database connection is alive.
func (s *BunStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database connection.
func (s *BunStore) Close() error {
	return s.db.Close()
}
