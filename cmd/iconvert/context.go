package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"

	"github.com/aliskhannn/iconverter/internal/config"
	"github.com/aliskhannn/iconverter/internal/model"
	"github.com/aliskhannn/iconverter/internal/processor"
	batchrepo "github.com/aliskhannn/iconverter/internal/repository/batch"
	itemrepo "github.com/aliskhannn/iconverter/internal/repository/item"
	itemsvc "github.com/aliskhannn/iconverter/internal/service/item"
	"github.com/aliskhannn/iconverter/internal/storage/file"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		c.config, c.configErr = config.Load(path)
	})
	return c.config, c.configErr
}

// newService builds a synchronous service whose previews live in a
// scratch directory. The returned cleanup removes it.
func (c *commandContext) newService() (*itemsvc.Service, func(), error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}

	dir, err := os.MkdirTemp("", "iconvert-*")
	if err != nil {
		return nil, nil, fmt.Errorf("create scratch dir: %w", err)
	}

	svc := itemsvc.NewService(
		itemrepo.NewRepository(),
		batchrepo.NewRepository(),
		file.NewStorage(dir),
		processor.New(),
		nil,
		itemsvc.Limits{
			MaxFileSize: cfg.Limits.MaxFileSize,
			MaxPDFPages: cfg.Limits.MaxPDFPages,
		},
	)

	return svc, func() { _ = os.RemoveAll(dir) }, nil
}

// readSources loads the named files. Media types are detected from content.
func readSources(paths []string) ([]model.SourceFile, error) {
	files := make([]model.SourceFile, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}

		mediaType, _, _ := strings.Cut(mimetype.Detect(data).String(), ";")
		files = append(files, model.SourceFile{
			Name:      filepath.Base(p),
			Size:      int64(len(data)),
			MediaType: mediaType,
			Data:      data,
		})
	}

	return files, nil
}
