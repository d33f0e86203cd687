// Package database persists shell records in SQLite through gorm.
//
// Ids come from a sequence row in the settings table rather than from
// SQLite's rowid, so a deleted id is never handed out again. Credentials
// are sealed with fernet before they touch disk.
package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/GriffinCanCode/stubterm/backend/internal/shared/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const shellSeqSetting = "shell_seq"

// ErrNotFound is returned for unknown shell ids.
var ErrNotFound = errors.New("shell not found")

// DuplicateError reports a fingerprint already owned by another shell.
type DuplicateError struct {
	ExistingID uint
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate of shell %d", e.ExistingID)
}

// Config controls how the store is opened.
type Config struct {
	// Path of the SQLite file. ":memory:" keeps everything in memory.
	Path string
	// FernetKey seals credentials. Empty generates and stores a key.
	FernetKey string
	// Quiet silences gorm's own logger.
	Quiet bool
}

// Store is the gorm-backed shell store.
type Store struct {
	db     *gorm.DB
	sealer *Sealer
}

// Open opens (creating if needed) the database and migrates the schema.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		cfg.Path = ":memory:"
	}
	if cfg.Path != ":memory:" {
		if dir := filepath.Dir(cfg.Path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create db directory: %w", err)
			}
		}
	}

	level := logger.Warn
	if cfg.Quiet {
		level = logger.Silent
	}
	db, err := gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	// One connection: SQLite serializes writers anyway, and every pooled
	// connection to ":memory:" would otherwise see its own empty database.
	sqlDB.SetMaxOpenConns(1)
	if cfg.Path != ":memory:" {
		if _, err := sqlDB.Exec("PRAGMA journal_mode=WAL"); err != nil {
			return nil, fmt.Errorf("set WAL mode: %w", err)
		}
	}

	if err := db.AutoMigrate(&Shell{}, &Setting{}); err != nil {
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}

	var sealer *Sealer
	if cfg.FernetKey != "" {
		sealer, err = NewSealer(cfg.FernetKey)
	} else {
		sealer, err = loadSealer(db)
	}
	if err != nil {
		return nil, err
	}

	return &Store{db: db, sealer: sealer}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Create assigns the next id to shell and inserts it. The fingerprint
// identifies the location+credential pair.
func (s *Store) Create(ctx context.Context, shell *types.Shell, fingerprint string) error {
	sealed, err := s.sealer.Seal(shell.Credential)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := duplicateCheck(tx, fingerprint, 0); err != nil {
			return err
		}
		next, err := nextID(tx)
		if err != nil {
			return err
		}

		row := toRow(shell)
		row.ID = next
		row.Credential = sealed
		row.Fingerprint = fingerprint
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("insert shell: %w", err)
		}

		shell.ID = row.ID
		shell.CreatedAt = row.CreatedAt
		shell.UpdatedAt = row.UpdatedAt
		return nil
	})
}

// Get loads one shell.
func (s *Store) Get(ctx context.Context, id uint) (*types.Shell, error) {
	var row Shell
	err := s.db.WithContext(ctx).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load shell %d: %w", id, err)
	}
	return s.fromRow(row)
}

// List returns shells matching filter in creation order.
func (s *Store) List(ctx context.Context, filter types.ShellFilter) ([]types.Shell, error) {
	q := s.db.WithContext(ctx).Model(&Shell{})
	if filter.Type != "" {
		q = q.Where("type = ?", string(filter.Type))
	}
	if filter.Status != "" {
		q = q.Where("status = ?", string(filter.Status))
	}
	if filter.Query != "" {
		like := "%" + strings.ToLower(filter.Query) + "%"
		q = q.Where("LOWER(location) LIKE ? OR LOWER(label) LIKE ? OR LOWER(note) LIKE ?", like, like, like)
	}

	var rows []Shell
	if err := q.Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list shells: %w", err)
	}

	shells := make([]types.Shell, 0, len(rows))
	for _, row := range rows {
		shell, err := s.fromRow(row)
		if err != nil {
			return nil, err
		}
		shells = append(shells, *shell)
	}
	return shells, nil
}

// Update writes every mutable field of shell.
func (s *Store) Update(ctx context.Context, shell *types.Shell, fingerprint string) error {
	sealed, err := s.sealer.Seal(shell.Credential)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := duplicateCheck(tx, fingerprint, shell.ID); err != nil {
			return err
		}
		res := tx.Model(&Shell{ID: shell.ID}).Updates(map[string]interface{}{
			"location":    shell.Location,
			"type":        string(shell.Type),
			"credential":  sealed,
			"encoding":    shell.Encoding,
			"label":       shell.Label,
			"note":        shell.Note,
			"fingerprint": fingerprint,
		})
		if res.Error != nil {
			return fmt.Errorf("update shell %d: %w", shell.ID, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// SetStatus records a probe outcome. seen is stored only for alive shells.
func (s *Store) SetStatus(ctx context.Context, id uint, status types.ShellStatus, seen time.Time) error {
	updates := map[string]interface{}{"status": string(status)}
	if status == types.StatusAlive {
		updates["last_seen_at"] = seen
	}
	res := s.db.WithContext(ctx).Model(&Shell{ID: id}).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("set status of shell %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a shell. Its id is not reused.
func (s *Store) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&Shell{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete shell %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetSetting returns a stored setting.
func (s *Store) GetSetting(key string) (string, error) {
	var row Setting
	if err := s.db.Where("key = ?", key).First(&row).Error; err != nil {
		return "", err
	}
	return row.Value, nil
}

// SetSetting upserts a setting.
func (s *Store) SetSetting(key, value string) error {
	return s.db.Where("key = ?", key).Assign(Setting{Value: value}).FirstOrCreate(&Setting{Key: key}).Error
}

func duplicateCheck(tx *gorm.DB, fingerprint string, self uint) error {
	var existing Shell
	err := tx.Select("id").Where("fingerprint = ? AND id <> ?", fingerprint, self).First(&existing).Error
	if err == nil {
		return &DuplicateError{ExistingID: existing.ID}
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("check duplicate: %w", err)
	}
	return nil
}

func nextID(tx *gorm.DB) (uint, error) {
	var seq Setting
	err := tx.Where("key = ?", shellSeqSetting).First(&seq).Error
	current := uint64(0)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
	case err != nil:
		return 0, fmt.Errorf("read id sequence: %w", err)
	default:
		current, err = strconv.ParseUint(seq.Value, 10, 32)
		if err != nil {
			return 0, fmt.Errorf("corrupt id sequence %q: %w", seq.Value, err)
		}
	}

	next := current + 1
	if err := tx.Save(&Setting{Key: shellSeqSetting, Value: strconv.FormatUint(next, 10)}).Error; err != nil {
		return 0, fmt.Errorf("advance id sequence: %w", err)
	}
	return uint(next), nil
}

func toRow(shell *types.Shell) Shell {
	status := shell.Status
	if status == "" {
		status = types.StatusUnknown
	}
	return Shell{
		ID:         shell.ID,
		Location:   shell.Location,
		Type:       string(shell.Type),
		SourceIP:   shell.SourceIP,
		Encoding:   shell.Encoding,
		Status:     string(status),
		Label:      shell.Label,
		Note:       shell.Note,
		LastSeenAt: shell.LastSeenAt,
	}
}

func (s *Store) fromRow(row Shell) (*types.Shell, error) {
	credential, err := s.sealer.Open(row.Credential)
	if err != nil {
		return nil, fmt.Errorf("shell %d credential: %w", row.ID, err)
	}
	return &types.Shell{
		ID:         row.ID,
		Location:   row.Location,
		Type:       types.ShellType(row.Type),
		SourceIP:   row.SourceIP,
		Credential: credential,
		Encoding:   row.Encoding,
		Status:     types.ShellStatus(row.Status),
		Label:      row.Label,
		Note:       row.Note,
		LastSeenAt: row.LastSeenAt,
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}, nil
}
