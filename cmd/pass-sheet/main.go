package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"ms-passes/internal/config"
	"ms-passes/internal/database"
	"ms-passes/internal/kafka"
	"ms-passes/internal/logger"
	passdb "ms-passes/internal/passes/db"
	"ms-passes/internal/passes/layout"
	qr "ms-passes/internal/passes/qr_generator"
	passes "ms-passes/internal/passes/service"
	"ms-passes/internal/passes/template"
)

func main() {
	eventID := flag.Int64("event", 0, "id of the event to render")
	layoutName := flag.String("layout", "", "margin-flow or fixed-grid (defaults to PASS_SHEET_LAYOUT)")
	output := flag.String("out", "", "output PDF path (defaults to <event name>_passes.pdf)")
	flag.Parse()

	if *eventID <= 0 {
		fmt.Fprintln(os.Stderr, "usage: pass-sheet -event <id> [-layout margin-flow|fixed-grid] [-out file.pdf]")
		os.Exit(2)
	}

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Options{Console: os.Stderr, MinLevel: logger.WARN})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	name := *layoutName
	if name == "" {
		name = cfg.Passes.DefaultLayout
	}
	policy, err := layout.ParsePolicy(name)
	if err != nil {
		log.Fatal("CONFIG", err.Error())
	}

	fonts := template.DefaultFonts()
	if cfg.Passes.FontDir != "" {
		if fonts, err = template.LoadFonts(cfg.Passes.FontDir); err != nil {
			log.Fatal("PDF", err.Error())
		}
	}

	ctx := context.Background()
	bunDB, err := database.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	sheets := template.NewSheetPDFGenerator(qr.NewQRGenerator(), fonts)
	service := passes.NewPassService(&passdb.DB{Bun: bunDB}, kafka.NopPublisher{}, sheets, log)
	service.MaxAttempts = cfg.Passes.CodeRetries

	path := *output
	if path == "" {
		event, err := service.GetEvent(ctx, *eventID)
		if err != nil {
			log.Fatal("PASS", err.Error())
		}
		path = template.Filename(event.Name)
	}

	if err := service.ExportSheetFile(ctx, *eventID, policy, path); err != nil {
		log.Fatal("PDF", err.Error())
	}
	fmt.Println(path)
}
