package main

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"rea/internal/config"
)

// Archive layout: config.json, runs.db (+ -wal/-shm), cost.txt and steps/*.json.
const (
	archiveConfig = "config.json"
	archiveDB     = "runs.db"
	archiveCost   = "cost.txt"
	archiveSteps  = "steps/"
)

// archiveEntry maps a file on disk to its name inside a backup.
type archiveEntry struct {
	name string
	path string
}

// backupEntries lists the files worth saving for cfg. Missing files are skipped.
func backupEntries(cfg *config.Config, cfgPath string) ([]archiveEntry, error) {
	var entries []archiveEntry
	add := func(name, p string) {
		if p == "" {
			return
		}
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			entries = append(entries, archiveEntry{name: name, path: p})
		}
	}
	add(archiveConfig, cfgPath)
	add(archiveDB, cfg.Recorder.DBPath)
	add(archiveDB+"-wal", cfg.Recorder.DBPath+"-wal")
	add(archiveDB+"-shm", cfg.Recorder.DBPath+"-shm")
	add(archiveCost, cfg.Recorder.CostFile)

	if cfg.Recorder.StepsDir != "" {
		files, err := os.ReadDir(cfg.Recorder.StepsDir)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read steps dir: %w", err)
		}
		for _, f := range files {
			if !f.IsDir() && strings.HasSuffix(f.Name(), ".json") {
				add(archiveSteps+f.Name(), filepath.Join(cfg.Recorder.StepsDir, f.Name()))
			}
		}
	}
	return entries, nil
}

// restoreTarget maps an archive name back to a path on disk, or "" to skip it.
func restoreTarget(cfg *config.Config, cfgPath, name string) string {
	name = path.Clean(name)
	switch {
	case name == archiveConfig:
		return cfgPath
	case name == archiveDB, name == archiveDB+"-wal", name == archiveDB+"-shm":
		return cfg.Recorder.DBPath + strings.TrimPrefix(name, archiveDB)
	case name == archiveCost:
		return cfg.Recorder.CostFile
	case strings.HasPrefix(name, archiveSteps) && cfg.Recorder.StepsDir != "":
		base := path.Base(name)
		if base != strings.TrimPrefix(name, archiveSteps) || !strings.HasSuffix(base, ".json") {
			return ""
		}
		return filepath.Join(cfg.Recorder.StepsDir, base)
	}
	return ""
}

func backupCmd() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Archive the run history (database, step files, cost log and config)",
		Long: `Creates a compressed .tar.gz archive containing the run database, the
per-run step files, the cost log and the configuration file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			cfgPath := resolveConfigPath()

			if outputPath == "" {
				backupDir := filepath.Join(filepath.Dir(cfgPath), "backups")
				if err := os.MkdirAll(backupDir, 0o755); err != nil {
					return fmt.Errorf("cannot create backup directory: %w", err)
				}
				ts := time.Now().Format("20060102-150405")
				outputPath = filepath.Join(backupDir, fmt.Sprintf("rea-backup-%s.tar.gz", ts))
			}

			entries, err := backupEntries(cfg, cfgPath)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				return fmt.Errorf("nothing to back up (db: %s, config: %s)", cfg.Recorder.DBPath, cfgPath)
			}
			size, err := writeArchive(outputPath, entries)
			if err != nil {
				return fmt.Errorf("backup failed: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Backup created: %s (%s)\n", outputPath, humanSize(size))
			fmt.Fprintf(out, "Files included: %d\n", len(entries))
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file (default: <config dir>/backups/rea-backup-<timestamp>.tar.gz)")
	return cmd
}

func restoreCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "restore [file.tar.gz]",
		Short: "Restore run history from a backup archive",
		Long: `Restores the files written by 'rea backup' to the locations the current
configuration points at.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			cfgPath := resolveConfigPath()

			if !force {
				for _, p := range []string{cfg.Recorder.DBPath, cfgPath} {
					if _, err := os.Stat(p); err == nil {
						return fmt.Errorf("%s exists; restore aborted (use --force to overwrite)", p)
					}
				}
			}

			restored, err := extractArchive(args[0], func(name string) string {
				return restoreTarget(cfg, cfgPath, name)
			})
			if err != nil {
				return fmt.Errorf("restore failed: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Restore completed from: %s\n", args[0])
			fmt.Fprintf(out, "Files restored: %d\n", len(restored))
			for _, f := range restored {
				fmt.Fprintf(out, "  - %s\n", f)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing data")
	return cmd
}

// writeArchive writes entries to a .tar.gz at outputPath and returns its size.
func writeArchive(outputPath string, entries []archiveEntry) (int64, error) {
	tmp := outputPath + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return 0, err
	}
	defer os.Remove(tmp)

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)
	for _, e := range entries {
		if err := addFileToTar(tw, e); err != nil {
			f.Close()
			return 0, fmt.Errorf("add %s: %w", e.path, err)
		}
	}
	if err := errors.Join(tw.Close(), gz.Close()); err != nil {
		f.Close()
		return 0, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return 0, err
	}
	if err := f.Close(); err != nil {
		return 0, err
	}
	return info.Size(), os.Rename(tmp, outputPath)
}

func addFileToTar(tw *tar.Writer, e archiveEntry) error {
	file, err := os.Open(e.path)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}
	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	header.Name = e.name
	if err := tw.WriteHeader(header); err != nil {
		return err
	}
	_, err = io.Copy(tw, file)
	return err
}

// extractArchive writes each regular file whose target is non-empty.
func extractArchive(archivePath string, target func(name string) string) ([]string, error) {
	file, err := os.Open(archivePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("not a valid gzip file: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	var restored []string
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}
		dst := target(header.Name)
		if dst == "" {
			logger.Warn("skipping unknown archive entry", "name", header.Name)
			continue
		}
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return nil, err
		}
		out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", dst, err)
		}
		if _, err := io.Copy(out, tr); err != nil {
			out.Close()
			return nil, fmt.Errorf("extract %s: %w", dst, err)
		}
		if err := out.Close(); err != nil {
			return nil, err
		}
		restored = append(restored, dst)
	}
	return restored, nil
}

func humanSize(bytes int64) string {
	const (
		kb = 1024
		mb = 1024 * kb
		gb = 1024 * mb
	)
	switch {
	case bytes >= gb:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(gb))
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(kb))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
