package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"treasury/cmd"
	"treasury/database"

	log "github.com/sirupsen/logrus"
)

func main() {
	// Check for migration subcommands
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := handleMigrationCommand(); err != nil {
			log.Fatal("Migration error: ", err)
		}
		return
	}

	// Check for operator deposits
	if len(os.Args) > 1 && os.Args[1] == "deposit" {
		if err := handleDeposit(); err != nil {
			log.Fatal("Deposit error: ", err)
		}
		return
	}

	// Normal service operation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Received shutdown signal, shutting down gracefully...")
		cancel()
	}()

	if err := cmd.Run(ctx); err != nil {
		log.Fatal("Application error: ", err)
	}
}

func handleMigrationCommand() error {
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: treasury migrate [up|down|status] [args...]")
	}

	command := os.Args[2]
	switch command {
	case "up":
		return database.MigrateUp()
	case "down":
		steps := "1"
		if len(os.Args) > 3 {
			steps = os.Args[3]
		}
		return database.MigrateDown(steps)
	case "status":
		return database.MigrateStatus()
	default:
		return fmt.Errorf("unknown migration command: %s", command)
	}
}

func handleDeposit() error {
	if len(os.Args) < 5 {
		return fmt.Errorf("usage: treasury deposit deposited-by amount-usd method [external-ref]")
	}

	var externalRef *string
	if len(os.Args) > 5 {
		externalRef = &os.Args[5]
	}
	return cmd.Deposit(context.Background(), os.Args[2], os.Args[3], os.Args[4], externalRef)
}
