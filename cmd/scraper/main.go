package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dgallion1/issuedoc/internal/attach"
	"github.com/dgallion1/issuedoc/internal/config"
	"github.com/dgallion1/issuedoc/internal/convert"
	"github.com/dgallion1/issuedoc/internal/extract"
	"github.com/dgallion1/issuedoc/internal/fetch"
	"github.com/dgallion1/issuedoc/internal/issues"
	"github.com/dgallion1/issuedoc/internal/pipeline"
	"github.com/dgallion1/issuedoc/internal/report"
	"github.com/dgallion1/issuedoc/internal/session"
)

func main() {
	os.Exit(run())
}

func run() int {
	envErr := config.LoadEnvFiles()

	cfg := config.Load()
	log := newLogger(cfg.LogFormat, cfg.LogLevel)
	if envErr != nil {
		log.Warn("env file not loaded", "error", envErr)
	}
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	ids, err := issues.Load(cfg.IssueFile)
	if err != nil {
		log.Error("cannot read issue list", "error", err)
		return 1
	}

	fields := extract.DefaultFieldMap()
	if cfg.FieldMapPath != "" {
		fields, err = extract.LoadFieldMap(cfg.FieldMapPath)
		if err != nil {
			log.Error("cannot read field map", "error", err)
			return 1
		}
	}

	tmpl, err := report.LoadTemplate(cfg.TemplatePath, fields)
	if err != nil {
		log.Error("report template unusable", "error", err)
		return 1
	}

	username, password, err := config.Credentials(cfg, os.Stdin, os.Stdout, config.TerminalPassword)
	if err != nil {
		log.Error("cannot read credentials", "error", err)
		return 1
	}

	sess, err := session.NewClient(cfg.BaseURL, session.Options{
		Timeout:   cfg.HTTPTimeout,
		UserAgent: cfg.UserAgent,
	}, log)
	if err != nil {
		log.Error("cannot create session", "error", err)
		return 1
	}
	defer sess.Close()

	if err := sess.Authenticate(ctx, cfg.UsernameURL, cfg.PasswordURL, username, password); err != nil {
		log.Error("login failed", "error", err)
		return 1
	}

	var conv convert.Converter
	if cfg.ConverterBin != "" {
		conv = convert.NewCommand(cfg.ConverterBin, cfg.ConvertTimeout, log)
	}

	worker := pipeline.NewWorker(
		fetch.NewFetcher(sess, nil, log),
		fields,
		attach.NewDownloader(sess, sess.BaseURL(), log),
		report.NewAssembler(tmpl, log),
		conv,
		cfg.ReportDir,
		log,
	)
	orch := pipeline.NewOrchestrator(worker, log)

	sum, runErr := orch.Run(ctx, ids)
	if err := sum.WriteIndex(cfg.ReportDir); err != nil {
		log.Error("cannot write run index", "error", err)
	}
	if runErr != nil {
		return 1
	}
	return 0
}

func newLogger(format, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "text":
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	case "json", "":
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	default:
		l := slog.New(slog.NewJSONHandler(os.Stderr, opts))
		l.Warn(fmt.Sprintf("unknown LOG_FORMAT %q, using json", format))
		return l
	}
}
