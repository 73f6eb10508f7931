package engine

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strings"
)

var (
	ErrNetwork       = errors.New("engine unreachable")
	ErrNotFound      = errors.New("no data for symbol")
	ErrServer        = errors.New("engine server error")
	ErrTimeout       = errors.New("engine request timed out")
	ErrDecode        = errors.New("malformed engine response")
	ErrInvalidSymbol = errors.New("symbol must be 1-10 letters or digits")
	ErrInvalidPeriod = errors.New("period must be year or quarter")
)

// AppError is an engine reply that carried success=false or an error status
type AppError struct {
	StatusCode int
	Message    string
}

func (e *AppError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("engine error (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("engine error (status %d): %s", e.StatusCode, e.Message)
}

// Unwrap lets errors.Is match ErrNotFound / ErrServer by status
func (e *AppError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case e.StatusCode >= 500:
		return ErrServer
	}
	return nil
}

// classifyTransport maps a transport error to ErrTimeout or ErrNetwork
func classifyTransport(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrNetwork, err)
}

var symbolPattern = regexp.MustCompile(`^[A-Z0-9]{1,10}$`)

// NormalizeSymbol trims and upper-cases a ticker and validates it
func NormalizeSymbol(s string) (string, error) {
	sym := strings.ToUpper(strings.TrimSpace(s))
	if !symbolPattern.MatchString(sym) {
		return "", fmt.Errorf("%w: %q", ErrInvalidSymbol, s)
	}
	return sym, nil
}

// ParsePeriod accepts year or quarter; empty means year
func ParsePeriod(s string) (Period, error) {
	switch Period(strings.ToLower(strings.TrimSpace(s))) {
	case "", PeriodYear:
		return PeriodYear, nil
	case PeriodQuarter:
		return PeriodQuarter, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
}
