package market

import "strings"

// Symbol identifies a currency pair ("eurusd", "usdjpy", ...).
// The empty string means undefined.
type Symbol string

const SymbolUndefined Symbol = ""

// quote currencies priced with 2 fractional digits; everything else uses 4.
// The pip is one step of the least significant quote digit plus one
// (5-digit / 3-digit broker pricing).
var bigPipQuotes = map[string]struct{}{
	"jpy": {},
	"huf": {},
}

// ParseSymbol normalizes a pair name to lower case. Anything that is not
// six letters comes back undefined.
func ParseSymbol(s string) Symbol {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 6 {
		return SymbolUndefined
	}
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return SymbolUndefined
		}
	}
	return Symbol(s)
}

func (s Symbol) String() string { return string(s) }

func (s Symbol) Upper() string { return strings.ToUpper(string(s)) }

// Pip returns the minimum price increment for the pair.
func (s Symbol) Pip() float64 {
	if len(s) != 6 {
		return 0.0001
	}
	if _, ok := bigPipQuotes[string(s[3:])]; ok {
		return 0.01
	}
	return 0.0001
}

// Precision returns the number of fractional digits quotes carry: one more
// than the pip position (5-digit or 3-digit pricing).
func (s Symbol) Precision() int {
	if s.Pip() == 0.01 {
		return 3
	}
	return 5
}
