package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"guardia/internal/adapters/knowledge"
	"guardia/internal/adapters/observability"
	"guardia/internal/shared"
)

func main() {
	ctx := context.Background()
	cfg := shared.Load()

	log.Logger = observability.NewLogger(cfg.AppEnv)

	log.Info().
		Str("dir", cfg.KnowledgeDir).
		Str("index", cfg.KnowledgeIndex).
		Int("workers", cfg.IndexWorkers).
		Msg("indexer starting")

	store, err := knowledge.New(cfg.ElasticURL, cfg.KnowledgeIndex)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize knowledge store")
	}
	if err := store.EnsureIndex(ctx); err != nil {
		log.Fatal().Err(err).Msg("ensure index failed")
	}

	files, err := knowledgeFiles(cfg.KnowledgeDir)
	if err != nil {
		log.Fatal().Err(err).Msg("scan knowledge dir failed")
	}
	if len(files) == 0 {
		log.Warn().Str("dir", cfg.KnowledgeDir).Msg("no .md or .txt files found")
		return
	}

	sem := semaphore.NewWeighted(int64(cfg.IndexWorkers))
	var wg sync.WaitGroup

	for _, path := range files {
		path := path

		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, int64(1)); err != nil {
			log.Fatal().Err(err).Msg("semaphore acquire failed")
		}

		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			defer sem.Release(int64(1))

			raw, err := os.ReadFile(path)
			if err != nil {
				log.Warn().Str("file", path).Err(err).Msg("read failed")
				return
			}
			chunks := knowledge.Chunk(string(raw))
			if len(chunks) == 0 {
				log.Warn().Str("file", path).Msg("no indexable content")
				return
			}
			source := filepath.Base(path)
			if err := store.IndexPassages(ctx, source, chunks); err != nil {
				log.Warn().Str("file", path).Err(err).Msg("index failed")
				return
			}
			log.Info().Str("file", path).Int("chunks", len(chunks)).Msg("index ok")
		}(path)
	}

	wg.Wait()
	log.Info().Msg("indexing completed")
}

func knowledgeFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".md", ".txt":
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
