// Command build_webpages ingests RSS XML corpora, removes near-duplicate
// pages, and writes the page store, offset table, and inverted index.
//
// Usage:
//
//	build_webpages [xml_dir] [cn_stop] [out_dir] [top_k] [threshold]
//
// A missing xml_dir defaults to corpus/xml; the other missing arguments
// fall back to the config file values.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/qianzhou/goso/internal/invindex"
	"github.com/qianzhou/goso/internal/tokenizer"
	"github.com/qianzhou/goso/internal/webpages"
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

	xmlDir := argOr(0, "corpus/xml")
	cnStopPath := argOr(1, cfg.Data.CnStopwordsFile)
	outDir := argOr(2, cfg.Data.DataDir)
	topK := intArgOr(3, cfg.Simhash.TopK)
	threshold := intArgOr(4, cfg.Simhash.Threshold)

	cnStop, err := tokenizer.LoadStopWords(cnStopPath)
	if err != nil {
		slog.Error("failed to load chinese stop-words", "error", err)
		os.Exit(1)
	}
	tok, err := tokenizer.New(cfg.Data.SegmenterDict, cnStop, nil)
	if err != nil {
		slog.Error("failed to load segmenter", "error", err)
		os.Exit(1)
	}

	pages, err := webpages.NewIngestor().IngestDir(xmlDir)
	if err != nil {
		slog.Error("ingest failed", "error", err)
		os.Exit(1)
	}
	fp := webpages.NewFingerprinter(tok.CutChinese, topK)
	kept := webpages.Deduplicate(pages, fp, threshold)

	if err := webpages.WriteArtifacts(outDir, kept); err != nil {
		slog.Error("writing page artifacts failed", "error", err)
		os.Exit(1)
	}
	entries := invindex.NewBuilder(tok.CutChinese).Build(kept)
	if err := invindex.WriteFile(outDir, entries); err != nil {
		slog.Error("writing inverted index failed", "error", err)
		os.Exit(1)
	}
	slog.Info("web-page artifacts built",
		"out_dir", outDir,
		"pages", len(kept),
		"terms", len(entries),
	)
}

func argOr(i int, fallback string) string {
	if flag.NArg() > i {
		return flag.Arg(i)
	}
	return fallback
}

func intArgOr(i int, fallback int) int {
	if flag.NArg() > i {
		if n, err := strconv.Atoi(flag.Arg(i)); err == nil {
			return n
		}
		fmt.Fprintf(os.Stderr, "invalid numeric argument %q\n", flag.Arg(i))
		os.Exit(1)
	}
	return fallback
}
