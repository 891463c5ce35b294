// Package symbol canonicalizes A-share ticker notations into a (code,
// exchange) pair. Every other package resolves symbols through Normalize.
package symbol

import (
	"fmt"
	"strings"

	"github.com/alanyoungcy/ashare-quant/internal/domain"
)

// exchangeAliases maps accepted suffixes onto exchange tags.
var exchangeAliases = map[string]domain.Exchange{
	"SH":   domain.ExchangeSSE,
	"SZ":   domain.ExchangeSZSE,
	"SSE":  domain.ExchangeSSE,
	"SZSE": domain.ExchangeSZSE,
}

// Info is a normalized symbol. The zero value is invalid; construct it with
// Normalize.
type Info struct {
	Raw      string
	Code     string
	Exchange domain.Exchange
}

// VTSymbol returns the canonical "code.EXCHANGE" identifier.
func (i Info) VTSymbol() string {
	return i.Code + "." + string(i.Exchange)
}

func (i Info) String() string { return i.VTSymbol() }

// Normalize accepts a bare 6-digit code, code.SH/SZ or code.SSE/SZSE and
// returns the canonical Info. An explicit suffix wins over prefix inference.
func Normalize(input string) (Info, error) {
	s := strings.ToUpper(strings.TrimSpace(input))

	code, suffix, hasSuffix := strings.Cut(s, ".")
	if hasSuffix {
		ex, ok := exchangeAliases[suffix]
		if !ok {
			return Info{}, fmt.Errorf("symbol: unsupported suffix in %q: %w", input, domain.ErrInvalidExchange)
		}
		if !validCode(code) {
			return Info{}, fmt.Errorf("symbol: malformed code in %q: %w", input, domain.ErrInvalidSymbol)
		}
		return Info{Raw: input, Code: code, Exchange: ex}, nil
	}

	ex, err := InferExchange(code)
	if err != nil {
		return Info{}, err
	}
	return Info{Raw: input, Code: code, Exchange: ex}, nil
}

// InferExchange derives the exchange from the leading digit of a 6-digit
// code: 5, 6 and 9 list on SSE, 0 through 3 on SZSE.
func InferExchange(code string) (domain.Exchange, error) {
	if !validCode(code) {
		return "", fmt.Errorf("symbol: %q is not a 6-digit code: %w", code, domain.ErrInvalidSymbol)
	}
	switch code[0] {
	case '5', '6', '9':
		return domain.ExchangeSSE, nil
	case '0', '1', '2', '3':
		return domain.ExchangeSZSE, nil
	}
	return "", fmt.Errorf("symbol: cannot infer exchange for %q: %w", code, domain.ErrInvalidSymbol)
}

// Code returns the bare 6-digit code used by quote providers and the source
// daily table.
func Code(input string) (string, error) {
	info, err := Normalize(input)
	if err != nil {
		return "", err
	}
	return info.Code, nil
}

// MustNormalize is Normalize for compile-time constants. It panics on error.
func MustNormalize(input string) Info {
	info, err := Normalize(input)
	if err != nil {
		panic(err)
	}
	return info
}

func validCode(code string) bool {
	if len(code) != 6 {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
