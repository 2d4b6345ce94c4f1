package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/theoremus-urban-solutions/gtfsrt-delay-features/features"
	"github.com/theoremus-urban-solutions/gtfsrt-delay-features/internal/logging"
	"github.com/theoremus-urban-solutions/gtfsrt-delay-features/utils"
)

const (
	featureTable     = "delay_features"
	defaultBatchSize = 200
)

const createTableSQL = `CREATE TABLE IF NOT EXISTS ` + featureTable + ` (
	operator TEXT NOT NULL,
	service_date DATE NOT NULL,
	route_type INTEGER NOT NULL,
	arrival_time_bin TIMESTAMPTZ NOT NULL,
	mean_delay_change_seconds DOUBLE PRECISION NOT NULL,
	max_delay_change_seconds DOUBLE PRECISION NOT NULL,
	min_delay_change_seconds DOUBLE PRECISION NOT NULL,
	var_delay_change_seconds DOUBLE PRECISION NOT NULL,
	mean_arrival_delay_seconds DOUBLE PRECISION NOT NULL,
	max_arrival_delay_seconds DOUBLE PRECISION NOT NULL,
	min_arrival_delay_seconds DOUBLE PRECISION NOT NULL,
	var_arrival_delay DOUBLE PRECISION NOT NULL,
	mean_departure_delay_seconds DOUBLE PRECISION NOT NULL,
	max_departure_delay_seconds DOUBLE PRECISION NOT NULL,
	min_departure_delay_seconds DOUBLE PRECISION NOT NULL,
	var_departure_delay DOUBLE PRECISION NOT NULL,
	mean_on_time_percent DOUBLE PRECISION NOT NULL,
	mean_final_stop_delay_seconds DOUBLE PRECISION NOT NULL,
	mean_arrival_delay_seconds_lag_5stops DOUBLE PRECISION NOT NULL,
	mean_departure_delay_seconds_lag_5stops DOUBLE PRECISION NOT NULL,
	mean_delay_change_seconds_lag_5stops DOUBLE PRECISION NOT NULL,
	stop_count DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (operator, route_type, arrival_time_bin)
)`

// upsertSQL inserts one row keyed by (operator, route_type, arrival_time_bin)
// and overwrites every metric on conflict.
var upsertSQL = buildUpsert()

func buildUpsert() string {
	cols := append([]string{"operator", "service_date"}, features.Columns...)
	params := make([]string, len(cols))
	for i := range cols {
		params[i] = fmt.Sprintf("$%d", i+1)
	}
	var updates []string
	for _, c := range cols {
		switch c {
		case "operator", "route_type", "arrival_time_bin":
			continue
		}
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (operator, route_type, arrival_time_bin) DO UPDATE SET %s",
		featureTable, strings.Join(cols, ", "), strings.Join(params, ", "), strings.Join(updates, ", "))
}

func rowArgs(operator string, date time.Time, row features.FeatureRow) []interface{} {
	return append([]interface{}{operator, date}, row.Values()...)
}

// PostgresSink upserts feature rows through a pgx pool.
type PostgresSink struct {
	pool  *pgxpool.Pool
	batch int
}

// NewPostgresSink connects to dsn, checks the connection and creates the
// feature table if needed.
func NewPostgresSink(ctx context.Context, dsn string) (*PostgresSink, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 2
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create %s: %w", featureTable, err)
	}
	return &PostgresSink{pool: pool, batch: defaultBatchSize}, nil
}

func (s *PostgresSink) Name() string { return "postgres" }

func (s *PostgresSink) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *PostgresSink) Write(ctx context.Context, operator, date string, rows []features.FeatureRow) (string, error) {
	day, err := utils.ParseDate(date)
	if err != nil {
		return "", err
	}
	total := 0
	for i := 0; i < len(rows); i += s.batch {
		j := i + s.batch
		if j > len(rows) {
			j = len(rows)
		}
		b := &pgx.Batch{}
		for _, row := range rows[i:j] {
			b.Queue(upsertSQL, rowArgs(operator, day, row)...)
		}
		br := s.pool.SendBatch(ctx, b)
		for k := i; k < j; k++ {
			tag, err := br.Exec()
			if err != nil {
				_ = br.Close()
				return "", fmt.Errorf("upsert feature row: %w", err)
			}
			total += int(tag.RowsAffected())
		}
		if err := br.Close(); err != nil {
			return "", err
		}
	}
	logging.Logf("Upserted %d feature rows for %s %s into %s", total, operator, date, featureTable)
	return "postgres:" + featureTable, nil
}
