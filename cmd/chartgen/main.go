package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vbonduro/chartgen/internal/config"
	"github.com/vbonduro/chartgen/internal/detect"
	"github.com/vbonduro/chartgen/internal/logging"
	"github.com/vbonduro/chartgen/internal/normalize"
	"github.com/vbonduro/chartgen/internal/provider"
	"github.com/vbonduro/chartgen/internal/service"
	"github.com/vbonduro/chartgen/internal/web"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "chartgen",
		Short: "Turn natural-language requests into chart, diagram and markup configs",
		Long: `chartgen asks a language model for a chart configuration, validates it
and keeps a history of what was generated. Without a subcommand it serves the
HTTP API.`,
		SilenceUsage: true,
		RunE:         runServe,
	}
	root.AddCommand(newServeCmd(), newDetectCmd(), newGenerateCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, cleanup, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer cleanup()

	a, err := newApp(cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		return err
	}
	defer a.close()

	server := web.NewServer(a.service, cfg, logging.Component(logger, "web"))
	if err := server.ListenAndServe(cfg.ListenAddr); err != nil {
		logger.Error("server error", "error", err)
		return err
	}
	return nil
}

func newDetectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detect [file]",
		Short: "Classify edited text and print its canonical config",
		Long: `detect reads a chart config, a diagram or markup from file (or stdin when
no file is given) and prints the canonical config it resolves to.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runDetect,
	}
}

func runDetect(cmd *cobra.Command, args []string) error {
	in := cmd.InOrStdin()
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open input: %w", err)
		}
		defer func() { _ = f.Close() }()
		in = f
	}
	text, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	det, err := detect.New(1)
	if err != nil {
		return err
	}
	cfg, err := det.Detect(string(text))
	if err != nil {
		return err
	}
	source, err := normalize.Encode(cfg)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), source)
	return err
}

type generateFlags struct {
	provider  string
	platform  string
	language  string
	mode      string
	model     string
	imagePath string
}

func newGenerateCmd() *cobra.Command {
	var f generateFlags
	cmd := &cobra.Command{
		Use:   "generate [prompt]",
		Short: "Generate a config from a prompt and record it in history",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, args, f)
		},
	}
	cmd.Flags().StringVarP(&f.provider, "provider", "p", "", "Provider: gemini, openai, compatible, anthropic (default: DEFAULT_PROVIDER)")
	cmd.Flags().StringVar(&f.platform, "platform", "", "OpenAI-compatible platform: "+strings.Join(provider.PlatformNames(), ", "))
	cmd.Flags().StringVarP(&f.language, "lang", "l", "", "Reply language: zh or en (default: DEFAULT_LANGUAGE)")
	cmd.Flags().StringVarP(&f.mode, "mode", "m", "auto", "Generation mode: auto, standard, markup")
	cmd.Flags().StringVar(&f.model, "model", "", "Override the configured model")
	cmd.Flags().StringVarP(&f.imagePath, "image", "i", "", "Reference image (JPEG, PNG, GIF or WebP)")
	return cmd
}

func runGenerate(cmd *cobra.Command, args []string, f generateFlags) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger, cleanup, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return err
	}
	defer cleanup()

	mode, err := provider.ParseMode(f.mode)
	if err != nil {
		return err
	}
	lang := f.language
	if lang == "" {
		lang = cfg.DefaultLanguage
	}
	sel, err := cfg.Selection(f.provider, f.platform)
	if err != nil {
		return err
	}
	if f.model != "" {
		sel.Credentials.Model = f.model
	}

	in := service.GenerateInput{
		Selection: sel,
		Language:  provider.ParseLanguage(lang),
		Mode:      mode,
	}
	if len(args) == 1 {
		in.Prompt = args[0]
	}
	if f.imagePath != "" {
		in.Image, err = readImage(f.imagePath)
		if err != nil {
			return err
		}
	}

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	entry, err := a.service.Generate(ctx, in)
	if err != nil {
		return err
	}
	source, err := normalize.Encode(entry.Config)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), source)
	return err
}

func readImage(path string) (*provider.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	mimeType := http.DetectContentType(data)
	if !strings.HasPrefix(mimeType, "image/") {
		// DetectContentType has no WebP signature.
		if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WEBP" {
			return nil, fmt.Errorf("%s is not a supported image", path)
		}
		mimeType = "image/webp"
	}
	return &provider.Image{Data: data, MIMEType: provider.NormaliseMIME(mimeType)}, nil
}
