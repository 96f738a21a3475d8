// Command costboard-notify announces a refreshed snapshot so running
// costboard instances drop their cached copy.
//
//	costboard-notify -brand mlb -period 202510
//	costboard-notify -brand mlb -kind headcount
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"costboard/internal/amqp"
	"costboard/internal/cli"
	"costboard/internal/config"
	"costboard/internal/core"
	"costboard/internal/log"
)

func main() {
	cli.LoadEnvFile()

	var (
		brand   = flag.String("brand", "", "brand id (required)")
		period  = flag.String("period", "", "refreshed month as YYYYMM; empty means every month")
		kind    = flag.String("kind", amqp.KindCost, "snapshot kind: cost, headcount or revenue")
		timeout = flag.Duration("timeout", 10*time.Second, "publish timeout")
	)
	flag.Parse()

	cfg := config.Load()
	logger := cli.SetupLogger(cfg.LogLevel)

	if err := run(cfg, logger, *brand, *period, *kind, *timeout); err != nil {
		logger.Error("Notification failed", log.FieldError, err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *log.Logger, brand, period, kind string, timeout time.Duration) error {
	if cfg.AMQPURL == "" {
		return fmt.Errorf("AMQP_URL is not set")
	}

	var p core.Period
	if period != "" {
		var err error
		if p, err = core.ParsePeriod(period); err != nil {
			return err
		}
	}
	msg := amqp.NewSnapshotUpdatedMessage(brand, p, kind)
	if err := msg.Validate(); err != nil {
		return err
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := client.PublishSnapshotUpdated(ctx, msg); err != nil {
		return err
	}

	logger.Info("Snapshot update published",
		log.FieldBrand, msg.Brand, log.FieldPeriod, msg.Period.String(), "kind", msg.EffectiveKind())
	return nil
}
