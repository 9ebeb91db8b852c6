package pagination

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	// DefaultLimit is the standard page size when a limit is not provided.
	DefaultLimit = 20
	// MaxLimit caps how many rows any cursor query can request.
	MaxLimit = 100

	separator = "_"
)

// ErrInvalidCursor is returned for any cursor that cannot be decoded.
var ErrInvalidCursor = errors.New("invalid cursor")

// Params holds cursor pagination inputs from controllers or services.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor is a keyset position over (created_at, id).
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// AmountCursor is a keyset position over (amount, id).
type AmountCursor struct {
	Amount decimal.Decimal
	ID     uuid.UUID
}

// NormalizeLimit enforces the configured default and maximum limits.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// LimitWithBuffer returns the normalization result plus one to detect the next page.
func LimitWithBuffer(limit int) int {
	return NormalizeLimit(limit) + 1
}

// EncodeCursor renders "<RFC3339Nano>_<uuid>".
func EncodeCursor(cursor Cursor) string {
	return cursor.CreatedAt.UTC().Format(time.RFC3339Nano) + separator + cursor.ID.String()
}

// ParseCursor decodes a created_at cursor. An empty value yields nil.
func ParseCursor(value string) (*Cursor, error) {
	head, id, err := split(value)
	if err != nil || head == "" {
		return nil, err
	}

	t, err := time.Parse(time.RFC3339Nano, head)
	if err != nil {
		return nil, fmt.Errorf("%w: timestamp: %v", ErrInvalidCursor, err)
	}
	return &Cursor{CreatedAt: t.UTC(), ID: id}, nil
}

// EncodeAmountCursor renders "<decimal>_<uuid>".
func EncodeAmountCursor(cursor AmountCursor) string {
	return cursor.Amount.String() + separator + cursor.ID.String()
}

// ParseAmountCursor decodes an amount cursor. An empty value yields nil.
func ParseAmountCursor(value string) (*AmountCursor, error) {
	head, id, err := split(value)
	if err != nil || head == "" {
		return nil, err
	}

	amount, err := decimal.NewFromString(head)
	if err != nil {
		return nil, fmt.Errorf("%w: amount: %v", ErrInvalidCursor, err)
	}
	return &AmountCursor{Amount: amount, ID: id}, nil
}

func split(value string) (string, uuid.UUID, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", uuid.Nil, nil
	}

	idx := strings.LastIndex(value, separator)
	if idx <= 0 || idx == len(value)-1 {
		return "", uuid.Nil, fmt.Errorf("%w: expected <value>_<id>", ErrInvalidCursor)
	}

	id, err := uuid.Parse(value[idx+1:])
	if err != nil {
		return "", uuid.Nil, fmt.Errorf("%w: id: %v", ErrInvalidCursor, err)
	}
	return value[:idx], id, nil
}
