package main

import (
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"judgment-rag/internal/app"
	"judgment-rag/internal/bootstrap"
	"judgment-rag/internal/config"
	"judgment-rag/internal/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cliApp := &cli.App{
		Name:  "judgmentctl",
		Usage: "Ingest legal judgments and ask questions about them",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the TOML config file",
				Value:   "configs/config.toml",
				EnvVars: []string{"CONFIG_FILE"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error); overrides app.log_level",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "bootstrap",
				Usage:  "Create the vector collection for the configured embedding model",
				Action: bootstrapCommand,
			},
			{
				Name:      "ingest",
				Usage:     "Extract, persist and index a judgment document",
				ArgsUsage: "<file.pdf>",
				Action:    ingestCommand,
			},
			{
				Name:      "ask",
				Usage:     "Answer a question from the indexed judgments",
				ArgsUsage: "<question>",
				Action:    askCommand,
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// openApp loads config, installs the logger and wires the application.
func openApp(c *cli.Context) (*bootstrap.App, error) {
	cfg, err := config.LoadFile(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if level := c.String("log-level"); level != "" {
		cfg.App.LogLevel = level
	}

	logger, err := logging.New(os.Stderr, cfg.App.LogLevel, cfg.App.LogFormat)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	return bootstrap.New(c.Context, cfg, logger)
}

func bootstrapCommand(c *cli.Context) error {
	a, err := openApp(c)
	if err != nil {
		return err
	}
	defer a.Close()

	dim := a.Config.Embedding.Dimension
	if err := a.Provisioner.EnsureCollection(c.Context, dim); err != nil {
		return fmt.Errorf("ensure collection: %w", err)
	}
	fmt.Printf("collection %q ready (dimension %d, cosine)\n", a.Config.Vector.Collection, dim)
	return nil
}

func ingestCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: judgmentctl ingest <file.pdf>", 2)
	}
	path := c.Args().First()

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	a, err := openApp(c)
	if err != nil {
		return err
	}
	defer a.Close()

	record, err := a.Pipeline.Ingest(c.Context, app.IngestInput{
		Filename:    filepath.Base(path),
		ContentType: mime.TypeByExtension(filepath.Ext(path)),
		Data:        data,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(record)
}

func askCommand(c *cli.Context) error {
	question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if question == "" {
		return cli.Exit("usage: judgmentctl ask <question>", 2)
	}

	a, err := openApp(c)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.Pipeline.Query(c.Context, question)
	if err != nil {
		return err
	}
	fmt.Println(result.Answer)
	return nil
}
