package registry

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/GriffinCanCode/stubterm/backend/internal/logging"
	"github.com/GriffinCanCode/stubterm/backend/internal/shared/types"
	"github.com/goccy/go-yaml"
	"go.uber.org/zap"
)

// SeedFile is the layout of a shell seed file.
type SeedFile struct {
	Shells []SeedShell `yaml:"shells"`
}

// SeedShell is one shell entry in a seed file.
type SeedShell struct {
	Location   string `yaml:"location"`
	Type       string `yaml:"type"`
	SourceIP   string `yaml:"source_ip"`
	Credential string `yaml:"credential"`
	Encoding   string `yaml:"encoding"`
	Label      string `yaml:"label"`
	Note       string `yaml:"note"`
}

// SeedReport counts the outcome of one seeding run.
type SeedReport struct {
	Loaded  int
	Skipped int
	Failed  int
}

// Seeder registers shells listed in a YAML file
type Seeder struct {
	manager *Manager
	path    string
	logger  *logging.Logger
}

// NewSeeder creates a new shell seeder
func NewSeeder(manager *Manager, path string, logger *logging.Logger) *Seeder {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Seeder{manager: manager, path: path, logger: logger}
}

// Seed registers every listed shell. Entries already registered are
// skipped and invalid entries are logged; neither stops the run. A missing
// file is not an error.
func (s *Seeder) Seed(ctx context.Context) (SeedReport, error) {
	var report SeedReport

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("shell seed file not found", zap.String("path", s.path))
		return report, nil
	}
	if err != nil {
		return report, fmt.Errorf("read seed file: %w", err)
	}

	var file SeedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return report, fmt.Errorf("parse seed file %s: %w", s.path, err)
	}

	for i, entry := range file.Shells {
		_, err := s.manager.AddNewShell(ctx, types.Shell{
			Location:   entry.Location,
			Type:       types.ShellType(entry.Type),
			SourceIP:   entry.SourceIP,
			Credential: entry.Credential,
			Encoding:   entry.Encoding,
			Label:      entry.Label,
			Note:       entry.Note,
		})

		var dup *DuplicateShellError
		switch {
		case err == nil:
			report.Loaded++
		case errors.As(err, &dup):
			report.Skipped++
		default:
			report.Failed++
			s.logger.Warn("failed to seed shell",
				zap.Int("index", i),
				zap.String("url", entry.Location),
				zap.Error(err))
		}
	}

	s.logger.Info("shell seeding complete",
		zap.String("path", s.path),
		zap.Int("loaded", report.Loaded),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed))
	return report, nil
}
