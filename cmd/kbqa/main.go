package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"kbqa/internal/config"
	"kbqa/internal/loader"
	"kbqa/internal/logging"
	"kbqa/internal/server"
	"kbqa/internal/tui"
)

var (
	rootCmd = &cobra.Command{
		Use:   "kbqa",
		Short: "Answer questions from a local knowledge base of text, markdown and PDF files.",
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			// .env is optional
			_ = godotenv.Load()
			return nil
		},
		SilenceUsage: true,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Index the knowledge directory and serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	askCmd = &cobra.Command{
		Use:   "ask <question>",
		Short: "Index the knowledge directory and answer a single question",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runAsk,
	}

	tuiCmd = &cobra.Command{
		Use:   "tui",
		Short: "Index the knowledge directory and ask questions interactively",
		Args:  cobra.NoArgs,
		RunE:  runTUI,
	}

	chunkCmd = &cobra.Command{
		Use:   "chunk <file>...",
		Short: "Print the chunks produced for the given files",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runChunk,
	}
)

func init() {
	rootCmd.PersistentFlags().String("config", "", "path to YAML config file (default ./config.yaml, then ~/.config/kbqa/config.yaml)")
	rootCmd.PersistentFlags().String("knowledge-dir", "", "directory of documents to index, overrides knowledge.dir")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error), overrides log.level")
	serveCmd.Flags().String("addr", "", "listen address, overrides server.addr")

	for key, flag := range map[string]string{
		"config":        "config",
		"knowledge-dir": "knowledge-dir",
		"log-level":     "log-level",
	} {
		if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(err)
		}
	}
	if err := viper.BindPFlag("addr", serveCmd.Flags().Lookup("addr")); err != nil {
		panic(err)
	}

	viper.SetEnvPrefix("kbqa")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(serveCmd, askCmd, tuiCmd, chunkCmd)
}

// loadConfig reads the config file and applies flag and KBQA_* env overrides.
func loadConfig() (*config.AppConfig, error) {
	var (
		cfg  *config.AppConfig
		path string
		err  error
	)
	if path = viper.GetString("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, path, err = config.LoadDefault()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}
	if v := viper.GetString("knowledge-dir"); v != "" {
		cfg.Knowledge.Dir = v
	}
	if v := viper.GetString("log-level"); v != "" {
		cfg.Log.Level = v
	}
	if v := viper.GetString("addr"); v != "" {
		cfg.Server.Addr = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func setup() (*config.AppConfig, *slog.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	svc, err := newService(cfg, logger, reg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := svc.Reindex(ctx); err != nil {
		return fmt.Errorf("initial index build failed: %w", err)
	}

	srv := server.New(svc, server.Config{
		Addr:           cfg.Server.Addr,
		ReadTimeout:    seconds(cfg.Server.ReadTimeoutSecs),
		WriteTimeout:   seconds(cfg.Server.WriteTimeoutSecs),
		ReindexTimeout: seconds(cfg.Server.ReindexTimeoutSecs),
	}, reg, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("server: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	svc, err := newService(cfg, logger, nil)
	if err != nil {
		return err
	}
	if _, err := svc.Reindex(cmd.Context()); err != nil {
		return err
	}
	ans := svc.AnswerQuery(cmd.Context(), strings.Join(args, " "))
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(ans)
}

func runTUI(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	// keep log output from corrupting the terminal UI
	logger = logging.Discard()
	slog.SetDefault(logger)

	svc, err := newService(cfg, logger, nil)
	if err != nil {
		return err
	}
	stats, err := svc.Reindex(cmd.Context())
	if err != nil {
		return err
	}
	header := fmt.Sprintf("%d documents, %d chunks, %d intents from %s", stats.Documents, stats.Chunks, stats.Intents, cfg.Knowledge.Dir)
	_, err = tea.NewProgram(tui.New(svc, header), tea.WithAltScreen()).Run()
	return err
}

func runChunk(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	ch, err := newChunker(cfg)
	if err != nil {
		return err
	}
	ldr := loader.New(nil, logger)
	out := cmd.OutOrStdout()
	var failed error
	for _, path := range args {
		doc, err := ldr.LoadFile(path)
		if err != nil {
			failed = errors.Join(failed, fmt.Errorf("%s: %w", path, err))
			continue
		}
		chunks, err := ch.Chunk(doc)
		if err != nil {
			failed = errors.Join(failed, fmt.Errorf("%s: %w", path, err))
			continue
		}
		fmt.Fprintf(out, "%s: %d chunks\n", doc.Source, len(chunks))
		for _, c := range chunks {
			fmt.Fprintf(out, "  [%d] qa=%t %s\n", c.Index, c.IsQA(), c.Text)
		}
	}
	return failed
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
