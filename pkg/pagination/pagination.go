// Package pagination implements opaque keyset cursors over (key, id) ordered
// result sets.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100
)

// ErrInvalidCursor is returned for any cursor that did not come from Encode.
var ErrInvalidCursor = errors.New("invalid cursor")

// Params holds cursor pagination inputs from controllers or services.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor is the position just past the last row of a page.
type Cursor struct {
	Key string    `json:"k"`
	ID  uuid.UUID `json:"id"`
}

// Encode renders c as an opaque URL-safe token.
func (c Cursor) Encode() string {
	raw, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(raw)
}

// ParseCursor decodes a token produced by Encode. A blank token is the first
// page and yields a nil cursor.
func ParseCursor(token string) (*Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil || c.ID == uuid.Nil {
		return nil, ErrInvalidCursor
	}
	return &c, nil
}

// NormalizeLimit clamps limit into [1, MaxLimit], substituting DefaultLimit
// for non-positive values.
func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// Keyset scopes a query to rows ordered by (keyColumn, id) strictly after c
// and fetches one extra row so Window can tell whether another page exists.
func Keyset(c *Cursor, keyColumn string, limit int) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if c != nil {
			db = db.Where("("+keyColumn+" > ?) OR ("+keyColumn+" = ? AND id > ?)", c.Key, c.Key, c.ID)
		}
		return db.Order(keyColumn + " ASC").Order("id ASC").Limit(NormalizeLimit(limit) + 1)
	}
}

// Window trims rows fetched through Keyset to one page and returns the token
// for the next page, or "" on the last page.
func Window[T any](rows []T, limit int, position func(T) Cursor) ([]T, string) {
	limit = NormalizeLimit(limit)
	if len(rows) <= limit {
		return rows, ""
	}
	page := rows[:limit]
	return page, position(page[limit-1]).Encode()
}
