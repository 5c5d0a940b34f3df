package audit

import (
	"context"
	"fmt"
	"log"
	"net"
	"strconv"
	"time"

	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"
	greptime "github.com/GreptimeTeam/greptimedb-ingester-go"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table/types"
)

const defaultGreptimePort = 4001

type greptimeClient interface {
	Write(ctx context.Context, tables ...*table.Table) (*gpb.GreptimeResponse, error)
}

// GreptimeDBWriter stores events as rows of a GreptimeDB time series table.
type GreptimeDBWriter struct {
	client  greptimeClient
	table   string
	timeout time.Duration
}

// NewGreptimeDBWriter connects to endpoint ("host" or "host:port").
func NewGreptimeDBWriter(endpoint, database, tableName string) (*GreptimeDBWriter, error) {
	host, port := endpoint, defaultGreptimePort
	if h, p, err := net.SplitHostPort(endpoint); err == nil {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("greptime endpoint %q: %w", endpoint, err)
		}
		host, port = h, n
	}
	if tableName == "" {
		tableName = "sync_events"
	}
	cfg := greptime.NewConfig(host).WithPort(port).WithDatabase(database)
	cli, err := greptime.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &GreptimeDBWriter{client: cli, table: tableName, timeout: 5 * time.Second}, nil
}

// Write inserts a single event row.
func (w *GreptimeDBWriter) Write(e Event) error {
	return w.WriteBatch([]Event{e})
}

// WriteBatch inserts multiple event rows.
func (w *GreptimeDBWriter) WriteBatch(events []Event) error {
	if len(events) == 0 {
		return nil
	}
	tbl, err := w.newTable()
	if err != nil {
		return err
	}
	for _, e := range events {
		if err := tbl.AddRow(
			e.OperationID,
			e.Object,
			e.ID,
			e.Operation,
			int64(e.Index),
			int64(e.Attempt),
			string(e.Outcome),
			e.LatencyMS,
			e.Error,
			e.Timestamp,
		); err != nil {
			return err
		}
	}

	timeout := w.timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if _, err := w.client.Write(ctx, tbl); err != nil {
		log.Printf("[GreptimeDBWriter] Write failed: %v", err)
		return err
	}
	return nil
}

func (w *GreptimeDBWriter) newTable() (*table.Table, error) {
	tbl, err := table.New(w.table)
	if err != nil {
		return nil, err
	}
	columns := []struct {
		name string
		kind types.ColumnType
		tag  bool
	}{
		{"operation_id", types.STRING, true},
		{"object", types.STRING, true},
		{"event_id", types.STRING, false},
		{"operation", types.STRING, false},
		{"idx", types.INT64, false},
		{"attempt", types.INT64, false},
		{"outcome", types.STRING, false},
		{"latency_ms", types.FLOAT64, false},
		{"error", types.STRING, false},
	}
	for _, c := range columns {
		if c.tag {
			err = tbl.AddTagColumn(c.name, c.kind)
		} else {
			err = tbl.AddFieldColumn(c.name, c.kind)
		}
		if err != nil {
			return nil, err
		}
	}
	if err := tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND); err != nil {
		return nil, err
	}
	return tbl, nil
}
