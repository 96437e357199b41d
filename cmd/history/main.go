// File: cmd/history/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/config"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/infra/db/badger"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/infra/logging"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/infra/persist"
	"github.com/Team-Lightning-LLC/Scout-v3-Pulse-onward/internal/usecase"
)

// history exports the research submission log from a local badger store.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	format := flag.String("format", "md", "md | html")
	out := flag.String("out", "", "output file; defaults to the dated export name")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Store.Driver != "badger" || cfg.Store.Path == "" {
		log.Fatalf("history export needs store.driver=badger with a store.path")
	}
	logger := logging.New(cfg.Log, false)

	st, err := badger.Open(cfg.Store.Path, logger)
	if err != nil {
		log.Fatalf("badger: %v", err)
	}
	defer st.Close()

	uc := usecase.NewHistoryUseCase(persist.NewHistoryLog(st, cfg.Jobs.HistoryKey, logger))
	ctx := context.Background()

	var body string
	switch *format {
	case "html":
		body, err = uc.HTML(ctx)
	default:
		*format = "md"
		body, err = uc.Markdown(ctx)
	}
	if err != nil {
		log.Fatalf("export: %v", err)
	}

	name := *out
	if name == "" {
		name = uc.FileName(*format)
	}
	if err := os.WriteFile(name, []byte(body), 0o644); err != nil {
		log.Fatalf("write %s: %v", name, err)
	}
	fmt.Println(name)
}
