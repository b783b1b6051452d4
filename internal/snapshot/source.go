package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"stacks/internal/catalog"
	"stacks/internal/config"
	"stacks/internal/fileutil"
	"stacks/internal/logging"
	"stacks/internal/services"
)

const (
	defaultPrefix   = "library"
	timestampLayout = "20060102T150405Z"
	manifestSuffix  = "-manifest.json"
	stageName       = "snapshot"
)

// Source loads the prior dataset and persists new ones.
type Source interface {
	Load(ctx context.Context) (*catalog.Dataset, error)
	Save(ctx context.Context, dataset catalog.Dataset, manifest catalog.Manifest) (Paths, error)
}

// Paths names the files written by Save.
type Paths struct {
	Dataset  string
	Manifest string
}

// FileSource is the file-backed Source.
type FileSource struct {
	inputFile string
	outputDir string
	prefix    string
	now       func() time.Time
	logger    *slog.Logger
}

// Option customizes the source.
type Option func(*FileSource)

// WithClock overrides the timestamp used in snapshot names.
func WithClock(now func() time.Time) Option {
	return func(s *FileSource) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *FileSource) {
		s.logger = logging.NewComponentLogger(logger, "snapshot")
	}
}

// NewFileSource constructs a FileSource. inputFile may be empty.
func NewFileSource(inputFile, outputDir, prefix string, opts ...Option) *FileSource {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = defaultPrefix
	}
	s := &FileSource{
		inputFile: strings.TrimSpace(inputFile),
		outputDir: strings.TrimSpace(outputDir),
		prefix:    prefix,
		now:       time.Now,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewFromConfig builds a FileSource from the [paths] section.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) *FileSource {
	return NewFileSource(cfg.Paths.InputFile, cfg.Paths.OutputDir, cfg.Paths.SnapshotPrefix, WithLogger(logger))
}

// SnapshotName returns the dataset file name written at t.
func (s *FileSource) SnapshotName(t time.Time) string {
	return s.prefix + "-" + t.UTC().Format(timestampLayout) + ".json"
}

// ManifestPath returns the fixed manifest location.
func (s *FileSource) ManifestPath() string {
	return filepath.Join(s.outputDir, s.prefix+manifestSuffix)
}

// Locate returns the dataset file Load would read. found is false when there
// is no configured input file and no snapshot in the output directory.
func (s *FileSource) Locate() (path string, found bool, err error) {
	if s.inputFile != "" {
		return s.inputFile, true, nil
	}
	if s.outputDir == "" {
		return "", false, nil
	}
	matches, err := filepath.Glob(filepath.Join(s.outputDir, s.prefix+"-*.json"))
	if err != nil {
		return "", false, fmt.Errorf("list snapshots: %w", err)
	}
	snapshots := make([]string, 0, len(matches))
	for _, match := range matches {
		if strings.HasSuffix(match, manifestSuffix) {
			continue
		}
		snapshots = append(snapshots, match)
	}
	if len(snapshots) == 0 {
		return "", false, nil
	}
	sort.Strings(snapshots)
	return snapshots[len(snapshots)-1], true, nil
}

// Load reads and validates the prior dataset. It returns nil without error
// when there is none. Unreadable, malformed, or wrong-schema datasets are
// reported as services.ErrFatalInput.
func (s *FileSource) Load(ctx context.Context) (*catalog.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, found, err := s.Locate()
	if err != nil {
		return nil, services.Wrap(services.ErrFatalInput, stageName, "locate", "", err)
	}
	if !found {
		s.logger.Info("no prior dataset; starting from an empty catalog",
			logging.String("output_dir", s.outputDir),
			logging.String(logging.FieldEventType, "dataset_absent"),
		)
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrFatalInput, stageName, "load", "input dataset "+path+" does not exist", nil)
		}
		return nil, services.Wrap(services.ErrFatalInput, stageName, "load", "read "+path, err)
	}
	var dataset catalog.Dataset
	if err := json.Unmarshal(data, &dataset); err != nil {
		return nil, services.Wrap(services.ErrFatalInput, stageName, "load", "malformed dataset "+path, err)
	}
	if err := dataset.Validate(); err != nil {
		return nil, services.Wrap(services.ErrFatalInput, stageName, "load", path, err)
	}

	s.logger.Info("prior dataset loaded",
		logging.String("path", path),
		logging.Int("books", len(dataset.Books)),
		logging.String("fetch_date", dataset.Metadata.FetchDate),
		logging.String(logging.FieldEventType, "dataset_loaded"),
	)
	return &dataset, nil
}

// Save writes dataset to a new timestamped snapshot and replaces the manifest.
func (s *FileSource) Save(ctx context.Context, dataset catalog.Dataset, manifest catalog.Manifest) (Paths, error) {
	if err := ctx.Err(); err != nil {
		return Paths{}, err
	}
	if s.outputDir == "" {
		return Paths{}, services.Wrap(services.ErrConfiguration, stageName, "save", "output directory not configured", nil)
	}
	paths := Paths{
		Dataset:  filepath.Join(s.outputDir, s.SnapshotName(s.now())),
		Manifest: s.ManifestPath(),
	}
	if err := fileutil.WriteJSONAtomic(paths.Dataset, dataset, 0o644); err != nil {
		return Paths{}, fmt.Errorf("save dataset: %w", err)
	}
	if err := fileutil.WriteJSONAtomic(paths.Manifest, manifest, 0o644); err != nil {
		return paths, fmt.Errorf("save manifest: %w", err)
	}
	s.logger.Info("snapshot saved",
		logging.String("dataset", paths.Dataset),
		logging.String("manifest", paths.Manifest),
		logging.Int("books", len(dataset.Books)),
		logging.String(logging.FieldEventType, "snapshot_saved"),
	)
	return paths, nil
}

// LoadManifest reads the manifest written by the last Save. found is false when
// none exists.
func (s *FileSource) LoadManifest() (manifest catalog.Manifest, found bool, err error) {
	data, err := os.ReadFile(s.ManifestPath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return catalog.Manifest{}, false, nil
		}
		return catalog.Manifest{}, false, fmt.Errorf("read manifest: %w", err)
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		return catalog.Manifest{}, false, fmt.Errorf("decode manifest: %w", err)
	}
	return manifest, true, nil
}
