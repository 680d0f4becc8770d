package writer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"github.com/sethvargo/go-retry"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/storefront-backend/internal/analytics/types"
)

const (
	defaultBatchSize      = 1
	defaultMaxAttempts    = 3
	defaultInitialBackoff = 250 * time.Millisecond
	defaultMaximumBackoff = 2 * time.Second
)

type Config struct {
	CartEventsTable string
	BatchSize       int
	RetryPolicy     RetryPolicy
}

// RetryPolicy bounds streaming-insert retries. MaxAttempts counts the first
// try.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaximumBackoff time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultMaxAttempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = defaultInitialBackoff
	}
	if p.MaximumBackoff <= 0 {
		p.MaximumBackoff = defaultMaximumBackoff
	}
	p.MaximumBackoff = max(p.MaximumBackoff, p.InitialBackoff)
	return p
}

func (p RetryPolicy) backoff() retry.Backoff {
	b := retry.NewExponential(p.InitialBackoff)
	b = retry.WithCappedDuration(p.MaximumBackoff, b)
	return retry.WithMaxRetries(uint64(p.MaxAttempts-1), b)
}

type tableInserter interface {
	InsertRows(ctx context.Context, table string, rows []cbigquery.ValueSaver) error
}

// BigQueryWriter buffers cart event rows and streams them to BigQuery. Each
// row is keyed by its event id so a retried batch does not double count.
type BigQueryWriter struct {
	client    tableInserter
	table     string
	batchSize int
	retry     RetryPolicy
	schema    cbigquery.Schema

	mu     sync.Mutex
	buffer []types.CartEventRow
}

func New(client tableInserter, cfg Config) (*BigQueryWriter, error) {
	if client == nil {
		return nil, errors.New("bigquery client required")
	}
	table := strings.TrimSpace(cfg.CartEventsTable)
	if table == "" {
		return nil, errors.New("cart events table is required")
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	return &BigQueryWriter{
		client:    client,
		table:     table,
		batchSize: batchSize,
		retry:     cfg.RetryPolicy.withDefaults(),
		schema:    types.CartEventSchema(),
	}, nil
}

// InsertCartEvent buffers a row and flushes once the batch is full. A row
// whose event id is already buffered is not appended again. When the
// warehouse refuses the row itself the error wraps types.ErrRowRejected.
func (w *BigQueryWriter) InsertCartEvent(ctx context.Context, row types.CartEventRow) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.buffered(row.EventID) {
		w.buffer = append(w.buffer, row)
	}
	if len(w.buffer) < w.batchSize {
		return nil
	}
	rejected, err := w.flushLocked(ctx)
	if cause, ok := rejected[row.EventID]; ok {
		return fmt.Errorf("%w: event %s: %v", types.ErrRowRejected, row.EventID, cause)
	}
	if w.buffered(row.EventID) {
		return err
	}
	return nil
}

func (w *BigQueryWriter) Flush(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	rejected, err := w.flushLocked(ctx)
	if err == nil && len(rejected) > 0 {
		err = fmt.Errorf("%w: %d rows dropped from %s", types.ErrRowRejected, len(rejected), w.table)
	}
	return err
}

func (w *BigQueryWriter) buffered(eventID string) bool {
	return slices.ContainsFunc(w.buffer, func(r types.CartEventRow) bool { return r.EventID == eventID })
}

// flushLocked streams the buffer. Rows the warehouse refuses permanently are
// dropped and returned by event id, and the remainder is sent again. Rows
// that only failed transiently stay buffered so the next flush retries them
// under the same insert ids.
func (w *BigQueryWriter) flushLocked(ctx context.Context) (map[string]error, error) {
	var rejected map[string]error
	for len(w.buffer) > 0 {
		err := w.insert(ctx, w.buffer)
		if err == nil {
			w.buffer = w.buffer[:0]
			return rejected, nil
		}
		refused := refusedRows(err, w.buffer)
		if len(refused) == 0 {
			return rejected, fmt.Errorf("insert %d rows into %s: %w", len(w.buffer), w.table, err)
		}
		if rejected == nil {
			rejected = make(map[string]error, len(refused))
		}
		for id, cause := range refused {
			rejected[id] = cause
		}
		before := len(w.buffer)
		w.buffer = slices.DeleteFunc(w.buffer, func(r types.CartEventRow) bool {
			_, drop := refused[r.EventID]
			return drop
		})
		if len(w.buffer) == before {
			return rejected, fmt.Errorf("insert %d rows into %s: %w", before, w.table, err)
		}
	}
	return rejected, nil
}

func (w *BigQueryWriter) insert(ctx context.Context, buffer []types.CartEventRow) error {
	rows := make([]cbigquery.ValueSaver, len(buffer))
	for i := range buffer {
		rows[i] = &cbigquery.StructSaver{
			Struct:   &buffer[i],
			Schema:   w.schema,
			InsertID: buffer[i].EventID,
		}
	}
	return retry.Do(ctx, w.retry.backoff(), func(ctx context.Context) error {
		err := w.client.InsertRows(ctx, w.table, rows)
		if err != nil && isRetryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

// refusedRows names the rows err rejects for good. A PutMultiError names
// rows individually; rows it only marks "stopped" were fine but aborted with
// the request. Any other permanent error refuses the whole batch.
func refusedRows(err error, buffer []types.CartEventRow) map[string]error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	var put cbigquery.PutMultiError
	if errors.As(err, &put) {
		refused := map[string]error{}
		for _, rowErr := range put {
			if !rowRefused(rowErr.Errors) {
				continue
			}
			id := rowErr.InsertID
			if id == "" && rowErr.RowIndex >= 0 && rowErr.RowIndex < len(buffer) {
				id = buffer[rowErr.RowIndex].EventID
			}
			refused[id] = rowErr.Errors
		}
		return refused
	}
	if isRetryable(err) {
		return nil
	}
	refused := make(map[string]error, len(buffer))
	for _, row := range buffer {
		refused[row.EventID] = err
	}
	return refused
}

func rowRefused(errs cbigquery.MultiError) bool {
	for _, inner := range errs {
		var bqErr *cbigquery.Error
		if errors.As(inner, &bqErr) && bqErr.Reason == "stopped" {
			continue
		}
		if isRetryable(inner) {
			continue
		}
		return true
	}
	return false
}

// isRetryable reports whether every failure inside err is transient. A
// batch with any permanently rejected row is not retried.
func isRetryable(err error) bool {
	var multi cbigquery.MultiError
	if errors.As(err, &multi) {
		return allRetryable(multi)
	}
	var put cbigquery.PutMultiError
	if errors.As(err, &put) {
		if len(put) == 0 {
			return false
		}
		for _, rowErr := range put {
			if !allRetryable(rowErr.Errors) {
				return false
			}
		}
		return true
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests, http.StatusRequestTimeout, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}

	if st, ok := status.FromError(err); ok && err != nil {
		switch st.Code() {
		case codes.Aborted, codes.DeadlineExceeded, codes.Internal, codes.ResourceExhausted, codes.Unavailable:
			return true
		}
	}
	return false
}

func allRetryable(errs cbigquery.MultiError) bool {
	if len(errs) == 0 {
		return false
	}
	for _, inner := range errs {
		if !isRetryable(inner) {
			return false
		}
	}
	return true
}
