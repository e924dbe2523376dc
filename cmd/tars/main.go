package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"tars/internal/config"
	"tars/internal/engine"
	"tars/internal/logging"
)

var (
	// Global flags
	configPath string
	verbose    bool

	// Logger
	logger *zap.Logger

	cfg *config.Config
)

// rootCmd starts the interactive chat loop when run without arguments.
var rootCmd = &cobra.Command{
	Use:   "tars",
	Short: "TARS - sarcastic conversational AI assistant",
	Long: `TARS is a conversational assistant with the personality of the
Interstellar robot: adjustable humor and honesty dials, local command
interception, conversation memory and a physics knowledge base.

Run without arguments to start an interactive chat session.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapCfg := zap.NewProductionConfig()
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if verbose {
			cfg.Logging.Debug = true
			cfg.Logging.Level = "debug"
		}

		if err := logging.Initialize(cfg.DataDir, logging.Options{
			Debug:      cfg.Logging.Debug,
			Level:      cfg.Logging.Level,
			JSONFormat: cfg.Logging.JSONFormat,
		}); err != nil {
			logger.Warn("debug logging unavailable", zap.Error(err))
		}
		logging.Boot("configuration loaded: provider=%s data_dir=%s", cfg.Provider.Name, cfg.DataDir)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd)
	},
}

var exitWords = map[string]bool{"bye": true, "goodbye": true, "exit": true, "quit": true}

func isExitCommand(input string) bool {
	for _, word := range strings.Fields(strings.ToLower(input)) {
		if exitWords[strings.Trim(word, ".,!?")] {
			return true
		}
	}
	return false
}

// runChat drives the interactive stdin loop, streaming each reply.
func runChat(cmd *cobra.Command) error {
	eng, err := engine.New(cfg)
	if err != nil {
		logging.BootError("engine construction failed: %v", err)
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Println(eng.Greeting())
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("You: ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if strings.HasPrefix(input, "/") {
			handleSlashCommand(eng, input)
			fmt.Println()
			continue
		}

		fmt.Print("TARS: ")
		for chunk := range eng.ChatStream(ctx, input) {
			fmt.Print(chunk)
		}
		fmt.Println()
		fmt.Println()

		if isExitCommand(input) {
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

const chatHelp = `Commands:
  /help           Show this help message
  /clear          Clear conversation history
  /humor <0-100>  Set humor level
  /honesty <0-100> Set honesty level
  /settings       Show current settings
  /history        Show recent conversation history
  /sessions       List stored conversations
  /resume <id>    Continue a stored conversation

Type anything else to chat with TARS. Say bye to exit.`

// handleSlashCommand services in-session commands without a model call.
func handleSlashCommand(eng *engine.Engine, input string) {
	fields := strings.Fields(strings.ToLower(input))
	cmd := fields[0]

	switch cmd {
	case "/help":
		fmt.Println(chatHelp)

	case "/clear":
		if err := eng.ClearMemory(); err != nil {
			fmt.Println("Couldn't clear history:", err)
			return
		}
		fmt.Println("Conversation history cleared.")

	case "/humor", "/honesty":
		if len(fields) < 2 {
			fmt.Printf("Usage: %s <0-100>\n", cmd)
			return
		}
		value, err := strconv.Atoi(fields[1])
		if err != nil {
			fmt.Printf("Usage: %s <0-100>\n", cmd)
			return
		}
		dial := float64(value) / 100
		var settings engine.SettingsPercent
		if cmd == "/humor" {
			settings = eng.UpdateSettings(&dial, nil)
			fmt.Printf("Humor set to %d%%\n", settings.Humor)
		} else {
			settings = eng.UpdateSettings(nil, &dial)
			fmt.Printf("Honesty set to %d%%\n", settings.Honesty)
		}

	case "/settings":
		s := eng.Settings()
		fmt.Printf("Humor: %d%%  Honesty: %d%%  Discretion: %d%%\n", s.Humor, s.Honesty, s.Discretion)

	case "/history":
		msgs := eng.History()
		if len(msgs) == 0 {
			fmt.Println("No conversation history.")
			return
		}
		if len(msgs) > 10 {
			msgs = msgs[len(msgs)-10:]
		}
		for _, m := range msgs {
			who := "You"
			if m.Role != "user" {
				who = "TARS"
			}
			fmt.Printf("%s: %s\n", who, m.Content)
		}

	case "/sessions":
		if err := runSessionsList(); err != nil {
			fmt.Println("Couldn't list sessions:", err)
		}

	case "/resume":
		if len(fields) < 2 {
			fmt.Println("Usage: /resume <conversation-id>")
			return
		}
		// ids are case-sensitive; take the raw token
		id := strings.Fields(input)[1]
		if err := eng.ResumeConversation(id); err != nil {
			fmt.Println("Couldn't resume:", err)
			return
		}
		fmt.Printf("Resumed %s (%d messages)\n", id, len(eng.History()))

	default:
		fmt.Printf("Unknown command: %s. Type /help for commands.\n", cmd)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
