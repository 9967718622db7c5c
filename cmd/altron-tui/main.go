package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"altron/internal/backend"
	"altron/internal/chat"
	"altron/internal/config"
	"altron/internal/liveness"
	"altron/internal/logging"
	"altron/internal/reply"
)

type cliFlags struct {
	configPath   string
	envFile      string
	backendURL   string
	pollInterval time.Duration
	replyMode    string
	model        string
	modelsLimit  int
	modelsType   string
	threadID     string
	logFile      string
	logLevel     string
	altScreen    bool
}

func parseFlags(args []string) (cliFlags, map[string]bool, error) {
	fs := flag.NewFlagSet("altron-tui", flag.ContinueOnError)
	var f cliFlags
	fs.StringVar(&f.configPath, "config", "", "Optional YAML config file")
	fs.StringVar(&f.envFile, "env-file", ".env", "Optional .env file")
	fs.StringVar(&f.backendURL, "backend-url", "", "Backend base URL (e.g. http://127.0.0.1:8000/api/v1)")
	fs.DurationVar(&f.pollInterval, "poll-interval", 0, "Health poll interval (5s-60s)")
	fs.StringVar(&f.replyMode, "reply-mode", "", "Reply synthesis: none|echo|canned|backend|openai")
	fs.StringVar(&f.model, "model", "", "Preferred model id or alias")
	fs.IntVar(&f.modelsLimit, "models-limit", 0, "Maximum number of models to list")
	fs.StringVar(&f.modelsType, "models-type", "", "Model type filter: chat|embedding|undefined")
	fs.StringVar(&f.threadID, "thread-id", "", "Thread id (generated when empty)")
	fs.StringVar(&f.logFile, "log-file", "", "Log file path")
	fs.StringVar(&f.logLevel, "log-level", "", "Log level (debug|info|warn|error)")
	fs.BoolVar(&f.altScreen, "alt-screen", true, "Use alternate screen buffer")
	if err := fs.Parse(args); err != nil {
		return cliFlags{}, nil, err
	}
	set := map[string]bool{}
	fs.Visit(func(fl *flag.Flag) { set[fl.Name] = true })
	return f, set, nil
}

// applyFlags lets explicitly passed flags win over file and environment.
func applyFlags(cfg *config.Config, f cliFlags, set map[string]bool) {
	if set["backend-url"] {
		cfg.BackendURL = f.backendURL
	}
	if set["poll-interval"] {
		cfg.PollInterval = f.pollInterval
	}
	if set["reply-mode"] {
		cfg.Reply.Mode = f.replyMode
	}
	if set["model"] {
		cfg.Model = f.model
	}
	if set["models-limit"] {
		cfg.Models.Limit = f.modelsLimit
	}
	if set["models-type"] {
		cfg.Models.Type = f.modelsType
	}
	if set["thread-id"] {
		cfg.ThreadID = f.threadID
	}
	if set["log-file"] {
		cfg.Log.File = f.logFile
	}
	if set["log-level"] {
		cfg.Log.Level = f.logLevel
	}
	if set["alt-screen"] {
		cfg.AltScreen = f.altScreen
	}
	cfg.Normalize()
}

func loadConfig(args []string) (*config.Config, error) {
	f, set, err := parseFlags(args)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(f.configPath, f.envFile)
	if err != nil {
		return nil, err
	}
	applyFlags(cfg, f, set)
	return cfg, nil
}

func modelQuery(cfg *config.Config) backend.ModelQuery {
	q := backend.ModelQuery{Limit: cfg.Models.Limit}
	if cfg.Models.Type != "" {
		q.Type = backend.ParseModelType(cfg.Models.Type)
	}
	return q
}

func run(args []string) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	client := backend.New(cfg.BackendURL,
		backend.WithLogger(logger.Named("backend")),
		backend.WithRequestTimeout(cfg.RequestTimeout),
		backend.WithConverseRate(cfg.Reply.RatePerSecond),
	)

	mode, err := reply.ParseMode(cfg.Reply.Mode)
	if err != nil {
		return err
	}
	responder, err := reply.FromMode(mode, reply.Deps{
		Backend:      client,
		DefaultModel: cfg.Model,
		CannedText:   cfg.Reply.CannedText,
		CannedDelay:  cfg.Reply.CannedDelay,
		OpenAI: reply.OpenAIConfig{
			BaseURL:     cfg.OpenAI.BaseURL,
			APIKey:      cfg.OpenAI.APIKey,
			Model:       cfg.OpenAI.Model,
			MaxTokens:   cfg.OpenAI.MaxTokens,
			Temperature: float32(cfg.OpenAI.Temperature),
		},
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	thread := chat.NewThread(cfg.ThreadID)
	submitter := chat.NewSubmitter(thread, responder, logger.Named("chat"))

	poller := liveness.NewPoller(
		liveness.HTTPProber{URL: client.HealthURL(), Client: &http.Client{}},
		liveness.WithInterval(cfg.PollInterval),
		liveness.WithTimeout(cfg.ProbeTimeout),
		liveness.WithLogger(logger.Named("liveness")),
	)
	health := poller.Start(ctx)
	defer health.Stop()

	m, err := newModel(deps{
		ctx:       ctx,
		submitter: submitter,
		models:    client,
		health:    health,
		logger:    logger.Named("ui"),
		query:     modelQuery(cfg),
		preferred: cfg.Model,
	})
	if err != nil {
		return err
	}

	logger.Info("starting",
		zap.String("backend", client.BaseURL()),
		zap.String("thread_id", thread.ID()),
		zap.String("reply_mode", string(mode)),
		zap.Duration("poll_interval", poller.Interval()),
	)

	opts := []tea.ProgramOption{tea.WithMouseCellMotion(), tea.WithContext(ctx)}
	if cfg.AltScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	if _, err := tea.NewProgram(m, opts...).Run(); err != nil {
		return fmt.Errorf("altron-tui fatal error: %w", err)
	}
	logger.Info("stopped", zap.String("thread_id", thread.ID()), zap.Int("messages", thread.Len()))
	return nil
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
