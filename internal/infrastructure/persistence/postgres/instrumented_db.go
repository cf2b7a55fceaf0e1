package postgres

import (
	"context"
	"database/sql"
	"time"
)

// OperationRecorder принимает длительность выполненных запросов (service.MetricAggregator)
type OperationRecorder interface {
	RecordOperation(description string, duration time.Duration, metadata map[string]interface{})
}

// InstrumentedDB оборачивает *sql.DB и сообщает длительность каждого запроса recorder'у.
// Текст запроса очищается на стороне recorder'а.
type InstrumentedDB struct {
	db       *sql.DB
	recorder OperationRecorder
}

// NewInstrumentedDB создает обертку
func NewInstrumentedDB(db *sql.DB, recorder OperationRecorder) *InstrumentedDB {
	return &InstrumentedDB{db: db, recorder: recorder}
}

// DB возвращает исходный пул
func (i *InstrumentedDB) DB() *sql.DB {
	return i.db
}

func (i *InstrumentedDB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	start := time.Now()
	res, err := i.db.ExecContext(ctx, query, args...)
	i.record("exec", query, start, err)
	return res, err
}

func (i *InstrumentedDB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	start := time.Now()
	rows, err := i.db.QueryContext(ctx, query, args...)
	i.record("query", query, start, err)
	return rows, err
}

// QueryRowScan выполняет запрос одной строки и сразу сканирует результат,
// чтобы в длительность попало и чтение строки
func (i *InstrumentedDB) QueryRowScan(ctx context.Context, query string, args []interface{}, dest ...interface{}) error {
	start := time.Now()
	err := i.db.QueryRowContext(ctx, query, args...).Scan(dest...)
	i.record("query_row", query, start, err)
	return err
}

func (i *InstrumentedDB) record(kind, query string, start time.Time, err error) {
	if i.recorder == nil {
		return
	}

	metadata := map[string]interface{}{"kind": kind}
	if err != nil {
		metadata["error"] = err.Error()
	}
	i.recorder.RecordOperation(query, time.Since(start), metadata)
}
