package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"property-registry/backend/internal/config"
	"property-registry/backend/internal/domain/property"
	"property-registry/backend/internal/firebase"
)

func main() {
	q := flag.String("q", "", "only print properties matching this term")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svcs, err := firebase.NewServices(ctx, cfg.Firebase)
	if err != nil {
		log.Fatalf("firebase: %v", err)
	}
	defer svcs.Close()

	svc := property.NewService(property.NewRepo(svcs.Firestore, cfg.PropertiesCollection))
	sub, err := svc.Subscribe(ctx, func(props []property.Property) {
		printSnapshot(props, *q)
	})
	if err != nil {
		log.Fatalf("subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "stopped")
	case <-sub.Done():
		if err := sub.Err(); err != nil {
			log.Printf("listener failed: %v", err)
			svcs.Close()
			os.Exit(1)
		}
	}
}

func printSnapshot(props []property.Property, term string) {
	matched := property.Filter(props, term)
	fmt.Printf("--- %s: %d of %d properties\n", time.Now().Format(time.TimeOnly), len(matched), len(props))
	for _, p := range matched {
		fmt.Printf("%s\tplot=%s\tdistrict=%s\tblock=%s\towner=%s\n", p.ID, p.PlotNumber, p.District, p.Block, p.OwnerInfo)
	}
}
