package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/rl1809/inventory-ledger/internal/adapter/notify"
	"github.com/rl1809/inventory-ledger/internal/adapter/storage"
	"github.com/rl1809/inventory-ledger/internal/config"
	"github.com/rl1809/inventory-ledger/internal/core/domain"
	"github.com/rl1809/inventory-ledger/internal/core/service"
	"github.com/rl1809/inventory-ledger/internal/logger"
)

const (
	initialStock  = 10
	minimumStock  = 5
	totalRequests = 200
	outboundDelta = -3
	inboundDelta  = 5
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(logger.Config{Level: "warn", Format: "console"})

	db, err := sql.Open("mysql", cfg.Database.DSN())
	if err != nil {
		log.Fatal("failed to open mysql", zap.Error(err))
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	if err := db.PingContext(ctx); err != nil {
		log.Fatal("failed to ping mysql", zap.Error(err))
	}

	dispatcher := service.NewNotificationDispatcher(notify.NewLogSink(log), service.DispatcherConfig{}, log)
	dispatcher.Start()
	defer dispatcher.Close()

	engine := service.NewInventoryEngine(
		storage.NewMySQLAdapter(db),
		dispatcher,
		service.Config{AdminNotificationAddress: cfg.Notification.AdminAddress},
		log,
	)

	item, err := engine.CreateItem(ctx, domain.NewItem{
		Name:         fmt.Sprintf("%s %d", gofakeit.ProductName(), time.Now().UnixNano()),
		Stock:        initialStock,
		MinimumStock: minimumStock,
	})
	if err != nil {
		log.Fatal("failed to create item", zap.Error(err))
	}

	actors := make([]string, 8)
	for i := range actors {
		actors[i] = gofakeit.Username()
	}

	// Counters
	var inbound, outbound, rejected, failed atomic.Int32

	// Spawn concurrent requests, alternating outbound and inbound
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			delta := inboundDelta
			if n%2 == 0 {
				delta = outboundDelta
			}

			_, err := engine.ApplyStockDelta(ctx, item.ID, delta, actors[n%len(actors)])
			switch {
			case err == nil && delta > 0:
				inbound.Add(1)
			case err == nil:
				outbound.Add(1)
			case errors.Is(err, domain.ErrInsufficientStock):
				rejected.Add(1)
			default:
				failed.Add(1)
				log.Error("stock update failed", zap.Error(err))
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	expected := initialStock + int(inbound.Load())*inboundDelta + int(outbound.Load())*outboundDelta

	final, err := engine.GetItem(ctx, item.ID)
	if err != nil {
		log.Fatal("failed to read item", zap.Error(err))
	}
	ledger, err := engine.ListLedger(ctx, item.ID)
	if err != nil {
		log.Fatal("failed to read ledger", zap.Error(err))
	}
	ledgerSum := initialStock
	for _, e := range ledger {
		ledgerSum += e.Delta
	}

	// Results
	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Item ID:          %d\n", item.ID)
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Inbound OK:       %d\n", inbound.Load())
	fmt.Printf("Outbound OK:      %d\n", outbound.Load())
	fmt.Printf("Rejected:         %d\n", rejected.Load())
	fmt.Printf("Errors:           %d\n", failed.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	// Assertions
	ok := true
	if final.Stock != expected {
		fmt.Printf("FAIL: expected stock %d, got %d\n", expected, final.Stock)
		ok = false
	} else {
		fmt.Printf("PASS: final stock %d matches accepted deltas\n", final.Stock)
	}

	accepted := int(inbound.Load() + outbound.Load())
	if len(ledger) != accepted || ledgerSum != final.Stock {
		fmt.Printf("FAIL: ledger has %d entries summing to %d, want %d entries summing to %d\n",
			len(ledger), ledgerSum, accepted, final.Stock)
		ok = false
	} else {
		fmt.Printf("PASS: %d ledger entries reconcile with stock\n", len(ledger))
	}

	if failed.Load() > 0 {
		ok = false
	}
	if !ok {
		os.Exit(1)
	}
}
