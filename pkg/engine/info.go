package engine

import (
	"fmt"
	"strings"

	"github.com/kalaytan/fxsim/pkg/market"
)

// Info is the per-tick scratch record a strategy fills through
// Engine.AddInfo. At the end of each tick cycle a non-empty record is
// rendered once and published, then reset. Every rendered message gets a
// monotonically increasing id so viewers can drop stale blobs.
type Info struct {
	sym     market.Symbol
	counter uint64
	keys    []string
	values  []string
}

func newInfo(sym market.Symbol) *Info {
	return &Info{sym: sym}
}

func (i *Info) Reset() {
	i.keys = i.keys[:0]
	i.values = i.values[:0]
}

func (i *Info) Add(key, value string) {
	i.keys = append(i.keys, key)
	i.values = append(i.values, value)
}

func (i *Info) Empty() bool { return len(i.keys) == 0 }

// XML renders the record as an info message with the entries as free-form
// child elements, in insertion order, and bumps the counter.
func (i *Info) XML() string {
	i.counter++
	var b strings.Builder
	b.WriteString("<message id=\"info\">\n")
	fmt.Fprintf(&b, "  <symbol>%s</symbol>\n", i.sym)
	fmt.Fprintf(&b, "  <info_id>%d</info_id>\n", i.counter)
	for n, k := range i.keys {
		fmt.Fprintf(&b, "  <%s>%s</%s>\n", k, xmlEscape(i.values[n]), k)
	}
	b.WriteString("</message>")
	return b.String()
}

func xmlEscape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}
