package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"bitbucket.org/mmdatafocus/stockverify_backend/config"
	"bitbucket.org/mmdatafocus/stockverify_backend/erp"
	"bitbucket.org/mmdatafocus/stockverify_backend/stocksync"
	"bitbucket.org/mmdatafocus/stockverify_backend/utils"
)

// sync-once runs a single batch cycle against the configured ERP and exits.
// Intended for cron fallbacks and for verifying a new table mapping before
// deploying the service.
func main() {
	mode := flag.String("mode", "qty", "Cycle to run: qty, changes, both, or quantities (dump the ERP code->qty map without writing)")
	itemCode := flag.String("item", "", "Optional: run a realtime check for one item code instead of a batch cycle")
	timeout := flag.Duration("timeout", 10*time.Minute, "Overall deadline for the run")
	flag.Parse()

	config.ConnectErpDatabaseWithRetry()
	config.ConnectMongoWithRetry()
	defer config.DisconnectMongo()

	mapping := erp.MappingFromEnv()
	if err := mapping.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "erp table mapping: %v\n", err)
		os.Exit(1)
	}
	source := erp.NewAdapter(config.GetErpDB(), mapping, utils.DefaultRetryPolicy(), 30*time.Second)

	engine := stocksync.NewEngine(stocksync.Config{
		Source: source,
		Items:  stocksync.NewMongoItemStore(config.GetMongoDB(), 15*time.Second),
		Meta:   stocksync.NewMongoMetaStore(config.GetMongoDB(), 15*time.Second),
		Logger: config.GetLogger(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if *itemCode != "" {
		res, err := engine.CheckItemQuantityRealtime(ctx, *itemCode)
		if err != nil {
			fmt.Fprintf(os.Stderr, "realtime check: %v\n", err)
			os.Exit(1)
		}
		printJSON(res)
		return
	}

	switch *mode {
	case "quantities":
		qtys, err := source.GetItemQuantitiesOnly(ctx)
		exitOnErr("fetch quantities", err)
		printJSON(qtys)
	case "qty":
		stats, err := engine.SyncNow(ctx)
		exitOnErr("quantity sync", err)
		printJSON(stats)
	case "changes":
		stats, err := engine.SyncChangesNow(ctx)
		exitOnErr("change detection", err)
		printJSON(stats)
	case "both":
		qstats, err := engine.SyncNow(ctx)
		exitOnErr("quantity sync", err)
		printJSON(qstats)
		cstats, err := engine.SyncChangesNow(ctx)
		exitOnErr("change detection", err)
		printJSON(cstats)
	default:
		fmt.Fprintf(os.Stderr, "unknown mode %q (want qty, changes, or both)\n", *mode)
		os.Exit(1)
	}
}

func exitOnErr(what string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", what, err)
		os.Exit(1)
	}
}

func printJSON(v any) {
	out, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(out))
}
