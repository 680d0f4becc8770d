package types

import (
	"encoding/json"
	"errors"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
)

// ErrRowRejected marks a row the warehouse refused permanently. Redelivering
// the same event cannot succeed.
var ErrRowRejected = errors.New("analytics row rejected")

// CartEventRow mirrors the cart_events BigQuery schema. Columns that only one
// event type fills are nullable.
type CartEventRow struct {
	EventID       string             `bigquery:"event_id"`
	EventType     string             `bigquery:"event_type"`
	OccurredAt    time.Time          `bigquery:"occurred_at"`
	Identity      string             `bigquery:"identity"`
	UserID        *string            `bigquery:"user_id"`
	SessionID     *string            `bigquery:"session_id"`
	CartID        string             `bigquery:"cart_id"`
	ProductID     *string            `bigquery:"product_id"`
	VariantID     *string            `bigquery:"variant_id"`
	Quantity      *int64             `bigquery:"quantity"`
	Source        *string            `bigquery:"source"`
	ProductName   *string            `bigquery:"product_name"`
	OriginalInput *string            `bigquery:"original_input"`
	LineCount     *int64             `bigquery:"line_count"`
	TotalItems    *int64             `bigquery:"total_items"`
	Payload       cbigquery.NullJSON `bigquery:"payload"`
}

// CartEventsPartitionField is the day-partitioning column of cart_events.
const CartEventsPartitionField = "occurred_at"

// CartEventSchema is the table layout EnsureTable uses when cart_events is
// missing. It must stay in step with CartEventRow's bigquery tags.
func CartEventSchema() cbigquery.Schema {
	required := func(name string, t cbigquery.FieldType) *cbigquery.FieldSchema {
		return &cbigquery.FieldSchema{Name: name, Type: t, Required: true}
	}
	optional := func(name string, t cbigquery.FieldType) *cbigquery.FieldSchema {
		return &cbigquery.FieldSchema{Name: name, Type: t}
	}
	return cbigquery.Schema{
		required("event_id", cbigquery.StringFieldType),
		required("event_type", cbigquery.StringFieldType),
		required(CartEventsPartitionField, cbigquery.TimestampFieldType),
		required("identity", cbigquery.StringFieldType),
		optional("user_id", cbigquery.StringFieldType),
		optional("session_id", cbigquery.StringFieldType),
		required("cart_id", cbigquery.StringFieldType),
		optional("product_id", cbigquery.StringFieldType),
		optional("variant_id", cbigquery.StringFieldType),
		optional("quantity", cbigquery.IntegerFieldType),
		optional("source", cbigquery.StringFieldType),
		optional("product_name", cbigquery.StringFieldType),
		optional("original_input", cbigquery.StringFieldType),
		optional("line_count", cbigquery.IntegerFieldType),
		optional("total_items", cbigquery.IntegerFieldType),
		optional("payload", cbigquery.JSONFieldType),
	}
}

var errInvalidPayload = errors.New("payload is not valid json")

// JSONColumn stores a raw event payload in a JSON column. Empty payloads
// become NULL.
func JSONColumn(raw json.RawMessage) (cbigquery.NullJSON, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return cbigquery.NullJSON{}, nil
	}
	if !json.Valid(raw) {
		return cbigquery.NullJSON{}, errInvalidPayload
	}
	return cbigquery.NullJSON{Valid: true, JSONVal: string(raw)}, nil
}
