package core

import (
	"context"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"popgraph/internal/blob"
	"popgraph/internal/chart"
	"popgraph/internal/extract"
	"popgraph/internal/infra/persistence/memory"
	"popgraph/pkg/domain"
)

var header = []any{"時間軸コード", "人口", "地域", "年齢階級", "注記", "単位", "男女計", "男", "女"}

func popRow(age string, total, male, female any) []any {
	return []any{"2020000000", extract.DefaultCategory, "全国", age, "", "人", total, male, female}
}

// fiveRows is the round-trip fixture: two rows share a bracket, one bracket
// has no digits and one row belongs to another category.
func fiveRows() [][]any {
	return [][]any{
		header,
		popRow("85歳以上", 300, 100, 200),
		popRow("0～4歳", 1000, 510, 490),
		popRow("0～4歳", 500, 260, 240),
		popRow("不詳", 7, "-", 3),
		{"2020000000", "日本人人口", "全国", "0～4歳", "", "人", 900, 460, 440},
	}
}

func buildWorkbook(t *testing.T, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		values := r
		if err := f.SetSheetRow("Sheet1", cell, &values); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

type stubClock struct{ t time.Time }

func (s stubClock) Now() time.Time { return s.t }

type logCall struct {
	level string
	msg   string
	args  []any
}

type captureLogger struct{ calls []logCall }

func (c *captureLogger) Debug(msg string, args ...any) { c.add("debug", msg, args) }
func (c *captureLogger) Info(msg string, args ...any)  { c.add("info", msg, args) }
func (c *captureLogger) Warn(msg string, args ...any)  { c.add("warn", msg, args) }
func (c *captureLogger) Error(msg string, args ...any) { c.add("error", msg, args) }

func (c *captureLogger) add(level, msg string, args []any) {
	c.calls = append(c.calls, logCall{level: level, msg: msg, args: args})
}

// find returns the attributes of the first call with msg.
func (c *captureLogger) find(msg string) (map[string]any, bool) {
	for _, call := range c.calls {
		if call.msg != msg {
			continue
		}
		attrs := make(map[string]any, len(call.args)/2)
		for i := 0; i+1 < len(call.args); i += 2 {
			if k, ok := call.args[i].(string); ok {
				attrs[k] = call.args[i+1]
			}
		}
		return attrs, true
	}
	return nil, false
}

type metricsCall struct {
	op      string
	success bool
}

type captureMetricsRecorder struct{ calls []metricsCall }

func (c *captureMetricsRecorder) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	c.calls = append(c.calls, metricsCall{op: op, success: success})
}

func (c *captureMetricsRecorder) has(op string, success bool) bool {
	for _, call := range c.calls {
		if call.op == op && call.success == success {
			return true
		}
	}
	return false
}

func newTestService(t *testing.T, opts ...ServiceOption) (*Service, blob.Store) {
	t.Helper()
	blobs := blob.NewMemory()
	return NewService(memory.NewStore(), chart.New(blobs), opts...), blobs
}

// failingStore fails every write with a persistence error against an
// existing dataset 7.
type failingStore struct {
	*memory.Store
}

func (failingStore) UpsertByFingerprint(_ context.Context, fp, _ string, _ []domain.Row) (domain.UpsertResult, error) {
	return domain.UpsertResult{}, &domain.Error{Kind: domain.ErrPersistence, Op: "upsert", Fingerprint: fp, DatasetID: 7, Err: context.DeadlineExceeded}
}
