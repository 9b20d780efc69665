package main

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rl1809/marketplace/internal/adapter/storage"
	"github.com/rl1809/marketplace/internal/app"
	"github.com/rl1809/marketplace/internal/core/domain"
	"github.com/rl1809/marketplace/internal/port"
	"github.com/rl1809/marketplace/internal/core/service"
)

const (
	sellerID = "stress-seller"
	itemID   = "flash-sale-item"
)

type options struct {
	redisAddr string
	stock     int
	requests  int
	workers   int
	queueSize int
}

func main() {
	var opts options
	cmd := &cobra.Command{
		Use:          "stress_test",
		Short:        "Fire concurrent checkouts at a single product and verify it never oversells",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.redisAddr, "redis", "", "Redis address; empty uses the in-process cache")
	cmd.Flags().IntVar(&opts.stock, "stock", 20, "initial stock")
	cmd.Flags().IntVar(&opts.requests, "requests", 50, "concurrent checkout requests")
	cmd.Flags().IntVar(&opts.workers, "workers", 4, "order workers")
	cmd.Flags().IntVar(&opts.queueSize, "queue", 100, "order queue size")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	logger := zap.NewNop()

	store, err := storage.OpenMemory(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	if _, err := app.Seed(ctx, store, &app.SeedFile{
		Sellers: []app.SeedSeller{{
			ID: sellerID, Name: "Stress", Email: "stress@example.com", StoreName: "Stress",
			Status: domain.SellerStatusApproved,
		}},
		Products: []app.SeedProduct{{
			ID: itemID, SellerID: sellerID, Name: "Flash sale item",
			PriceCents: 1000, Stock: opts.stock, Status: domain.ProductStatusActive,
		}},
	}); err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	var cache port.CacheRepository
	if opts.redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: opts.redisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect redis: %w", err)
		}
		defer rdb.Close()
		cache = storage.NewRedisAdapter(rdb)
	} else {
		cache = storage.NewMemoryCache()
	}
	if err := cache.SetStock(ctx, itemID, opts.stock); err != nil {
		return fmt.Errorf("failed to set stock: %w", err)
	}

	orderService := service.NewOrderService(store, cache, nil, logger, opts.queueSize)
	pool := service.NewOrderWorkerPool(orderService.GetOrderQueue(), store, cache, nil, logger, opts.workers)
	done := make(chan struct{})
	go func() {
		pool.Run()
		close(done)
	}()

	var successCount, failCount atomic.Int32
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < opts.requests; i++ {
		wg.Add(1)
		go func(userID int) {
			defer wg.Done()
			_, err := orderService.Checkout(ctx, service.CheckoutRequest{
				RequestID: uuid.NewString(),
				BuyerID:   fmt.Sprintf("user-%d", userID),
				ProductID: itemID,
				Quantity:  1,
			})
			if err == nil {
				successCount.Add(1)
			} else {
				failCount.Add(1)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)
	orderService.Close()
	<-done

	success := successCount.Load()
	fail := failCount.Load()
	expectSuccess := min(opts.stock, opts.requests)

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", opts.stock)
	fmt.Printf("Total Requests:   %d\n", opts.requests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Failed:           %d\n", fail)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	ok := true
	if int(success) == expectSuccess && int(fail) == opts.requests-expectSuccess {
		fmt.Printf("PASS: Exactly %d orders succeeded, %d failed\n", success, fail)
	} else {
		fmt.Printf("FAIL: Expected %d success/%d fail, got %d/%d\n",
			expectSuccess, opts.requests-expectSuccess, success, fail)
		ok = false
	}

	product, err := store.GetProduct(ctx, itemID)
	if err != nil {
		return err
	}
	orders, err := store.ListOrders(ctx, domain.OrderFilter{SellerID: sellerID, Limit: 500})
	if err != nil {
		return err
	}
	fmt.Printf("Final DB Stock:    %d\n", product.Stock)
	fmt.Printf("Persisted Orders:  %d\n", len(orders))

	if product.Stock == opts.stock-expectSuccess && len(orders) == expectSuccess {
		fmt.Println("PASS: Database matches reservations")
	} else {
		fmt.Println("FAIL: Database does not match reservations")
		ok = false
	}

	if !ok {
		return fmt.Errorf("stress test failed")
	}
	return nil
}
