// Command build_dictionaries builds the per-language dictionary and
// character/letter index artifacts from corpus directories.
//
// Usage:
//
//	build_dictionaries [en_dir] [cn_dir] [en_stop] [cn_stop] [out_dir]
//
// Missing corpus directories default to corpus/en and corpus/cn; the
// other missing arguments fall back to the config file values.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/qianzhou/goso/internal/lexicon"
	"github.com/qianzhou/goso/internal/tokenizer"
	"github.com/qianzhou/goso/pkg/config"
	"github.com/qianzhou/goso/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config file (key=value or YAML)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging)

	enDir := argOr(0, "corpus/en")
	cnDir := argOr(1, "corpus/cn")
	enStopPath := argOr(2, cfg.Data.EnStopwordsFile)
	cnStopPath := argOr(3, cfg.Data.CnStopwordsFile)
	outDir := argOr(4, cfg.Data.DataDir)

	if err := os.MkdirAll(outDir, 0755); err != nil {
		slog.Error("failed to create output directory", "dir", outDir, "error", err)
		os.Exit(1)
	}

	enStop, err := tokenizer.LoadStopWords(enStopPath)
	if err != nil {
		slog.Error("failed to load english stop-words", "error", err)
		os.Exit(1)
	}
	cnStop, err := tokenizer.LoadStopWords(cnStopPath)
	if err != nil {
		slog.Error("failed to load chinese stop-words", "error", err)
		os.Exit(1)
	}
	tok, err := tokenizer.New(cfg.Data.SegmenterDict, cnStop, enStop)
	if err != nil {
		slog.Error("failed to load segmenter", "error", err)
		os.Exit(1)
	}

	builder := lexicon.NewBuilder(tok)
	if err := builder.BuildEnglish(enDir, outDir); err != nil {
		slog.Error("english build failed", "error", err)
		os.Exit(1)
	}
	if err := builder.BuildChinese(cnDir, outDir); err != nil {
		slog.Error("chinese build failed", "error", err)
		os.Exit(1)
	}
	slog.Info("dictionaries built", "out_dir", outDir)
}

func argOr(i int, fallback string) string {
	if flag.NArg() > i {
		return flag.Arg(i)
	}
	return fallback
}
