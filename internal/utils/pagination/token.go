package pagination

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

const (
	// DefaultLimit is used when the caller asks for no limit.
	DefaultLimit = 50
	// MaxLimit caps a single page.
	MaxLimit = 500
)

// ClampLimit normalizes a requested page size.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// EncodeLedgerToken creates a base64 token naming the ledger and the last id returned.
// Binding the ledger into the token stops a cursor from one ledger being replayed on another.
func EncodeLedgerToken(studentID, academicYearID string, lastID int64) string {
	tokenStr := strings.Join([]string{studentID, academicYearID, strconv.FormatInt(lastID, 10)}, "|")
	return base64.URLEncoding.EncodeToString([]byte(tokenStr))
}

// DecodeLedgerToken parses a token from EncodeLedgerToken and checks it belongs to the ledger.
func DecodeLedgerToken(token, studentID, academicYearID string) (int64, error) {
	decodedBytes, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return 0, fmt.Errorf("invalid pagination token format (base64 decode): %w", err)
	}
	parts := strings.Split(string(decodedBytes), "|")
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid pagination token format (split)")
	}
	if parts[0] != studentID || parts[1] != academicYearID {
		return 0, fmt.Errorf("invalid pagination token (ledger mismatch)")
	}
	lastID, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil || lastID < 0 {
		return 0, fmt.Errorf("invalid pagination token format (id parse)")
	}
	return lastID, nil
}
