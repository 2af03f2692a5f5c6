// Command ledger-replay rebuilds the ledger from its journal and checks that
// the result verifies. With --source=db it also compares the rebuilt ledger
// against the persisted state.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"ticket-ledger/internal/config"
	"ticket-ledger/internal/database"
	"ticket-ledger/internal/kafka"
	"ticket-ledger/internal/ledger"
	ledgerdb "ticket-ledger/internal/ledger/db"
	"ticket-ledger/internal/logger"
	"ticket-ledger/internal/models"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(2)
	}

	var (
		source     = pflag.String("source", "db", "where to read the journal from: db or kafka")
		driver     = pflag.String("db-driver", cfg.Database.Driver, "database driver (postgres or sqlite)")
		dsn        = pflag.String("dsn", cfg.Database.DSN, "database DSN")
		brokers    = pflag.StringSlice("brokers", cfg.Kafka.Brokers, "kafka brokers")
		topic      = pflag.String("topic", cfg.Kafka.Topics.Entries, "journal topic")
		admin      = pflag.String("admin", cfg.Ledger.Admin, "ledger administrator address")
		listingFee = pflag.String("listing-fee", fmt.Sprint(cfg.Ledger.ListingFee), "listing fee in wei, or ETH with an eth suffix")
		idle       = pflag.Duration("idle", 5*time.Second, "stop reading kafka after this long without messages")
		verbose    = pflag.BoolP("verbose", "v", false, "log every replayed entry")
	)
	pflag.Parse()

	log := logger.NewLogger("")
	defer log.Close()
	if !*verbose {
		log.SetLevel(logger.WARN)
	}

	if err := run(context.Background(), log, replayFlags{
		source:     *source,
		database:   config.DatabaseConfig{Driver: *driver, DSN: *dsn, AutoMigrate: false, MaxOpenConns: 2, MaxIdleConns: 2, MaxLifetime: time.Minute},
		brokers:    *brokers,
		topic:      *topic,
		admin:      *admin,
		listingFee: *listingFee,
		idle:       *idle,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "ledger-replay: %v\n", err)
		os.Exit(1)
	}
}

type replayFlags struct {
	source     string
	database   config.DatabaseConfig
	brokers    []string
	topic      string
	admin      string
	listingFee string
	idle       time.Duration
}

func run(ctx context.Context, log *logger.Logger, f replayFlags) error {
	admin, err := models.ParseAddress(f.admin)
	if err != nil {
		return fmt.Errorf("--admin: %w", err)
	}
	fee, err := config.ParseWei(f.listingFee)
	if err != nil {
		return fmt.Errorf("--listing-fee: %w", err)
	}
	opts := ledger.Options{Admin: admin, ListingFee: fee, Logger: log}

	var (
		entries []models.Entry
		store   *ledgerdb.DB
	)
	switch strings.ToLower(f.source) {
	case "db":
		bunDB, err := database.Open(ctx, f.database, log)
		if err != nil {
			return err
		}
		defer bunDB.Close()
		store = &ledgerdb.DB{Bun: bunDB}
		if entries, err = store.Entries(ctx, 1); err != nil {
			return err
		}
	case "kafka":
		consumer := kafka.NewConsumer(f.brokers, f.topic, "", log)
		defer consumer.Close()
		if entries, err = consumer.Drain(ctx, f.idle); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown --source %q", f.source)
	}

	replayed, err := ledger.Replay(ctx, opts, entries)
	if err != nil {
		return err
	}
	if err := replayed.Verify(); err != nil {
		return err
	}
	seq, hash := replayed.Head()
	stats := replayed.Stats()
	fmt.Printf("replayed %d entries: head %d %s\n", len(entries), seq, hash)
	fmt.Printf("events=%d tickets=%d fees=%d\n", stats.TotalEvents, stats.TotalTickets, stats.FeeBalance)

	if store == nil {
		return nil
	}
	opts.Store = store
	persisted, err := ledger.Open(ctx, opts)
	if err != nil {
		return fmt.Errorf("persisted state does not verify: %w", err)
	}
	if persisted.Stats() != stats {
		return fmt.Errorf("persisted state %+v differs from replayed state %+v: %w", persisted.Stats(), stats, ledger.ErrCorruptJournal)
	}
	for _, id := range tokenRange(stats.TotalTickets) {
		want, _ := replayed.GetTicket(id)
		got, _ := persisted.GetTicket(id)
		if !sameTicket(want, got) {
			return fmt.Errorf("ticket %d differs from its replay: %w", id, ledger.ErrCorruptJournal)
		}
	}
	fmt.Println("persisted state matches the journal")
	return nil
}

func tokenRange(n uint64) []uint64 {
	ids := make([]uint64, 0, n)
	for id := uint64(1); id <= n; id++ {
		ids = append(ids, id)
	}
	return ids
}

// sameTicket compares tickets ignoring time zone differences from the store.
func sameTicket(a, b models.Ticket) bool {
	if !a.MintedAt.Equal(b.MintedAt) || !a.CheckedInAt.Equal(b.CheckedInAt) {
		return false
	}
	a.MintedAt, b.MintedAt = time.Time{}, time.Time{}
	a.CheckedInAt, b.CheckedInAt = time.Time{}, time.Time{}
	return a == b
}
