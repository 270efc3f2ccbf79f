package content

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"renderbot/internal/domain"

	"gopkg.in/yaml.v3"
)

// libraryFile is the YAML schema for one content library file.
type libraryFile struct {
	Categories []struct {
		ID          string `yaml:"id"`
		Renderer    string `yaml:"renderer"`
		Description string `yaml:"description"`
	} `yaml:"categories"`
	Items []struct {
		ID       string         `yaml:"id"`
		Category string         `yaml:"category"`
		Data     map[string]any `yaml:"data"`
	} `yaml:"items"`
}

// LoadLibrary loads content categories and items from YAML files in dir
// into the store. Files that fail to parse are skipped with a warning so
// one bad file cannot take the library down.
func LoadLibrary(ctx context.Context, dir string, store domain.ContentStore, logger *slog.Logger) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		logger.Debug("content library directory does not exist, skipping", "dir", dir)
		return nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read content library dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}

		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("cannot read content file", "path", path, "err", err)
			continue
		}

		var file libraryFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			logger.Warn("cannot parse content file", "path", path, "err", err)
			continue
		}

		for _, c := range file.Categories {
			if err := store.PutCategory(ctx, domain.ContentCategory{
				ID:          c.ID,
				Renderer:    c.Renderer,
				Description: c.Description,
			}); err != nil {
				logger.Warn("cannot store category", "id", c.ID, "path", path, "err", err)
				continue
			}
		}

		count := 0
		for _, it := range file.Items {
			if err := store.PutItem(ctx, domain.ContentItem{
				ID:         it.ID,
				CategoryID: it.Category,
				Data:       it.Data,
			}); err != nil {
				logger.Warn("cannot store item", "id", it.ID, "path", path, "err", err)
				continue
			}
			count++
		}

		logger.Info("loaded content file", "path", path, "categories", len(file.Categories), "items", count)
	}

	return nil
}
