package common

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"net"
	"os"
	"reflect"
	"strings"
	"time"

	"sirius/internal/httpclient"

	"github.com/shopspring/decimal"
)

const (
	uniqueIDAlphabet      = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	DefaultUniqueIDLength = 16
	timestampLayout       = "2006-01-02T15:04:05Z"
)

// GetUniqueID returns a random alphanumeric ID of length characters, grouped in blocks of 4
func GetUniqueID(length int) string {
	if length <= 0 {
		length = DefaultUniqueIDLength
	}

	limit := big.NewInt(int64(len(uniqueIDAlphabet)))
	raw := make([]byte, length)
	for i := range raw {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
		}
		raw[i] = uniqueIDAlphabet[n.Int64()]
	}

	blocks := make([]string, 0, (length+3)/4)
	for i := 0; i < length; i += 4 {
		end := min(i+4, length)
		blocks = append(blocks, string(raw[i:end]))
	}
	return strings.Join(blocks, "-")
}

// GetDecimalString formats d with thousands separators and two decimal places, e.g. 1,234.50
func GetDecimalString(d decimal.Decimal) string {
	fixed := d.Abs().StringFixed(2)
	whole, fraction, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	if d.IsNegative() && !d.Round(2).IsZero() {
		b.WriteByte('-')
	}
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteByte('.')
	b.WriteString(fraction)
	return b.String()
}

// GetTimestampFromString parses 2006-01-02T15:04:05Z. A non-empty timezone re-reads the wall clock in that location.
func GetTimestampFromString(value string, timezone string) (time.Time, error) {
	ts, err := time.Parse(timestampLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", value, err)
	}
	if timezone == "" {
		return ts, nil
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}
	return time.Date(ts.Year(), ts.Month(), ts.Day(), ts.Hour(), ts.Minute(), ts.Second(), ts.Nanosecond(), loc), nil
}

// IsMapSubset reports whether every key of subset is in superset with an equal value
func IsMapSubset[K comparable, V any](superset, subset map[K]V) bool {
	for key, value := range subset {
		other, ok := superset[key]
		if !ok || !reflect.DeepEqual(other, value) {
			return false
		}
	}
	return true
}

// GetServersFQDN resolves the host name through reverse DNS, falling back to the bare host name
func GetServersFQDN() (string, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return "", fmt.Errorf("failed to get hostname: %w", err)
	}

	addrs, err := net.LookupHost(hostname)
	if err != nil || len(addrs) == 0 {
		return hostname, nil
	}
	for _, addr := range addrs {
		names, err := net.LookupAddr(addr)
		if err != nil {
			continue
		}
		for _, name := range names {
			name = strings.TrimSuffix(name, ".")
			if strings.Contains(name, ".") {
				return name, nil
			}
		}
	}
	return hostname, nil
}

var createTemp = os.CreateTemp

// DownloadFileFromURL saves the body at fileURL to a new temporary file and returns its path.
// The file is removed again when it cannot be written in full.
func DownloadFileFromURL(ctx context.Context, fileURL string) (string, error) {
	resp, err := httpclient.NewSession("", nil).Get(ctx, fileURL, nil)
	if err != nil {
		return "", err
	}

	file, err := createTemp("", "sirius-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := file.Write(resp.Body); err != nil {
		_ = file.Close()
		_ = os.Remove(file.Name())
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(file.Name())
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}
	return file.Name(), nil
}
