package main

import (
	"bufio"
	"flag"
	"os"
	"strings"
	"time"

	"pxfeed/internal/mdg"
	"pxfeed/internal/model"
	"pxfeed/internal/replay"

	"github.com/yanun0323/logs"
)

func main() {
	out := flag.String("out", "testdata/synthetic.jsonl", "Output feed path")
	symbols := flag.String("symbols", "AAA,BBB", "Comma separated symbols")
	backfill := flag.Int("backfill", 60, "Historical bars per symbol")
	updates := flag.Int("updates", 120, "Live bar updates per symbol")
	gap := flag.Duration("gap", 500*time.Millisecond, "Feed time between live updates")
	basePrice := flag.Float64("base-price", 100, "Starting price")
	seed := flag.Int64("seed", 1, "Random walk seed")
	flag.Parse()

	var contracts []model.Contract
	for i, sym := range strings.Split(*symbols, ",") {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" {
			continue
		}
		contracts = append(contracts, model.Contract{
			ConID:    int64(i + 1),
			Symbol:   sym,
			SecType:  "STK",
			Exchange: "SMART",
			Currency: "USD",
			MinTick:  0.01,
		})
	}

	generator, err := mdg.NewGenerator(mdg.Config{
		Contracts: contracts,
		Backfill:  *backfill,
		Updates:   *updates,
		UpdateGap: *gap,
		BasePrice: *basePrice,
		Seed:      *seed,
	})
	if err != nil {
		logs.Errorf("generator init, err: %+v", err)
		os.Exit(1)
	}

	file, err := os.Create(*out)
	if err != nil {
		logs.Errorf("create %s, err: %+v", *out, err)
		os.Exit(1)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	n, err := generator.Generate(replay.NewEncoder(w))
	if err == nil {
		err = w.Flush()
	}
	if err != nil {
		logs.Errorf("generate feed, err: %+v", err)
		os.Exit(1)
	}
	logs.Infof("wrote %d lines for %d symbols to %s", n, len(contracts), *out)
}
