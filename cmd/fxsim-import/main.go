// fxsim-import loads tick history from CSV files into the tick store.
//
// Each row is time,bid,ask where time is either RFC 3339 or unix
// milliseconds. Rows must be in time order for a given symbol.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/kalaytan/fxsim/pkg/feed"
	"github.com/kalaytan/fxsim/pkg/market"
	"github.com/kalaytan/fxsim/pkg/util"
)

// Exit codes.
const (
	exitOK = iota
	exitBadArgs
	exitBadInput
	exitStore
)

const batchSize = 10000

func main() {
	os.Exit(run())
}

func run() int {
	fs := flag.NewFlagSet("fxsim-import", flag.ContinueOnError)
	dataPath := fs.String("d", "data/ticks", "tick store path")
	symName := fs.String("s", "", "symbol, e.g. eurusd")
	csvPath := fs.String("f", "", "csv file, - for stdin")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: fxsim-import -s <symbol> -f <csv> [-d <store>]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			return exitOK
		}
		return exitBadArgs
	}
	if *symName == "" || *csvPath == "" || fs.NArg() > 0 {
		fs.Usage()
		return exitBadArgs
	}

	sym := market.ParseSymbol(*symName)
	if sym == market.SymbolUndefined {
		fmt.Fprintf(os.Stderr, "fxsim-import: unknown symbol %q\n", *symName)
		return exitBadArgs
	}

	logger, err := util.NewLogger()
	if err != nil {
		log.Printf("logger: %v", err)
		return exitBadArgs
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	in := os.Stdin
	if *csvPath != "-" {
		f, err := os.Open(*csvPath)
		if err != nil {
			sugar.Errorw("csv_open_failed", "path", *csvPath, "err", err)
			return exitBadInput
		}
		defer f.Close()
		in = f
	}

	store, err := feed.OpenTickStore(*dataPath)
	if err != nil {
		sugar.Errorw("tick_store_open_failed", "path", *dataPath, "err", err)
		return exitStore
	}
	defer store.Close()

	n, err := importCSV(store, sym, in)
	if err != nil {
		sugar.Errorw("import_failed", "symbol", sym.String(), "ticks", n, "err", err)
		return exitBadInput
	}
	sugar.Infow("import_done", "symbol", sym.String(), "ticks", n)
	return exitOK
}

func importCSV(store *feed.TickStore, sym market.Symbol, in io.Reader) (int, error) {
	r := csv.NewReader(in)
	r.FieldsPerRecord = 3
	r.ReuseRecord = true

	total := 0
	batch := make([]market.Tick, 0, batchSize)
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return total, err
		}
		tick, err := parseRow(rec)
		if err != nil {
			return total, fmt.Errorf("row %d: %w", total+1, err)
		}
		batch = append(batch, tick)
		if len(batch) == batchSize {
			if err := store.PutBatch(sym, batch); err != nil {
				return total, err
			}
			total += len(batch)
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if err := store.PutBatch(sym, batch); err != nil {
			return total, err
		}
		total += len(batch)
	}
	return total, nil
}

func parseRow(rec []string) (market.Tick, error) {
	t, err := parseTime(rec[0])
	if err != nil {
		return market.Tick{}, err
	}
	bid, err := strconv.ParseFloat(rec[1], 64)
	if err != nil {
		return market.Tick{}, fmt.Errorf("bid %q: %w", rec[1], err)
	}
	ask, err := strconv.ParseFloat(rec[2], 64)
	if err != nil {
		return market.Tick{}, fmt.Errorf("ask %q: %w", rec[2], err)
	}
	tick := market.Tick{Time: t, Bid: bid, Ask: ask}
	if !tick.Valid() {
		return market.Tick{}, fmt.Errorf("invalid tick bid=%v ask=%v", bid, ask)
	}
	return tick, nil
}

func parseTime(s string) (time.Time, error) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("time %q: %w", s, err)
	}
	return t.UTC(), nil
}
