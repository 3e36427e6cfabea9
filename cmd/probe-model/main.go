package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/kdimtricp/listenlog/internal/config"
	"github.com/kdimtricp/listenlog/internal/database"
	"github.com/kdimtricp/listenlog/internal/model"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (optional)")
	catalog := flag.Bool("catalog", false, "Also list recently loaded models from the database")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal("failed to load config", err)
	}

	url := flag.Arg(0)
	if url == "" {
		url = cfg.Model.DefaultURL
	}

	ctx := context.Background()

	if url != "" {
		fmt.Printf("Probing model %s\n", model.NormalizeBaseURL(url))
		fmt.Println("================================")

		info, err := model.NewLoader(cfg.Model.FetchTimeout).Load(ctx, url)
		if err != nil {
			fatal("failed to load model", err)
		}
		fmt.Printf("Model:    %s\n", info.ModelURL)
		fmt.Printf("Metadata: %s\n", info.MetadataURL)
		fmt.Printf("Found %d classes: %s\n", len(info.Labels), strings.Join(info.Labels, ", "))
	} else if !*catalog {
		fmt.Fprintln(os.Stderr, "usage: probe-model [-config file] [-catalog] <model-base-url>")
		os.Exit(2)
	}

	if !*catalog {
		return
	}

	db, err := database.NewDB(database.Config{
		Type:       cfg.Database.Type,
		Host:       cfg.Database.Host,
		Port:       cfg.Database.Port,
		User:       cfg.Database.User,
		Password:   cfg.Database.Password,
		Name:       cfg.Database.Name,
		SQLitePath: cfg.Database.Path,
	})
	if err != nil {
		fatal("failed to open database", err)
	}
	defer db.Close()

	list, err := database.NewModelRepository(db).ListRecent(ctx, cfg.Model.RecentLimit)
	if err != nil {
		fatal("failed to list models", err)
	}

	fmt.Println()
	fmt.Println("Recently loaded models:")
	fmt.Println("-----------------------")
	if len(list) == 0 {
		fmt.Println("None yet. Load a model from the page first.")
		return
	}
	for _, m := range list {
		fmt.Printf("%s  %s (%d classes)\n", m.LoadedAt.Format("2006-01-02 15:04"), m.BaseURL, len(m.Labels))
	}
}

func fatal(msg string, err error) {
	slog.Error(msg, "err", err)
	os.Exit(1)
}
