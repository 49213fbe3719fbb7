// Package config loads pipeline configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/jkdev/speaking/internal/sources"
)

type Config struct {
	Env     string        `yaml:"env" env:"SPEAKING_ENV" env-default:"local"`
	Data    DataConfig    `yaml:"data"`
	Merge   MergeConfig   `yaml:"merge"`
	Videos  VideosConfig  `yaml:"videos"`
	Fetch   FetchConfig   `yaml:"fetch"`
	Server  ServerConfig  `yaml:"server"`
	History HistoryConfig `yaml:"history"`
}

// DataConfig locates the source documents and the canonical dataset.
type DataConfig struct {
	Dir            string `yaml:"dir" env:"SPEAKING_DATA_DIR" env-default:"data/talks"`
	SpeakingFile   string `yaml:"speakingFile" env-default:"speaking.json"`
	LegacyFile     string `yaml:"legacyFile" env-default:"jkdev-legacy.json"`
	SessionizeFile string `yaml:"sessionizeFile" env-default:"sessionize.json"`
	MVPFile        string `yaml:"mvpFile" env-default:"mvp-contributions.json"`
	ManualFile     string `yaml:"manualFile" env-default:"manual-additions.json"`
	CandidatesFile string `yaml:"candidatesFile" env-default:"video-candidates.json"`
	ReportFile     string `yaml:"reportFile" env-default:"video-match-report.json"`
}

type MergeConfig struct {
	// SourceOrder is the merge priority: earlier sources win field conflicts.
	SourceOrder []string `yaml:"sourceOrder" env-default:"legacy,sessionize,mvp,manual"`
	// FillMode is "first" (earlier sources keep their fields) or "override"
	// (later sources replace them).
	FillMode string `yaml:"fillMode" env:"SPEAKING_FILL_MODE" env-default:"first"`
}

type VideosConfig struct {
	AutoApplyScore    float64  `yaml:"autoApplyScore" env-default:"0.74"`
	TopicOverlapFloor float64  `yaml:"topicOverlapFloor" env-default:"0.38"`
	SuggestFloor      float64  `yaml:"suggestFloor" env-default:"0.58"`
	AuthorPattern     string   `yaml:"authorPattern" env-default:"jernej|kavka|\\bjk\\b"`
	ExtraStopwords    []string `yaml:"extraStopwords"`
}

type FetchConfig struct {
	SessionizeURL string        `yaml:"sessionizeUrl" env:"SESSIONIZE_URL" env-default:"https://sessionize.com/api/speaker/json/o0943azdh6"`
	MVPExportFile string        `yaml:"mvpExportFile" env:"MVP_EXPORT_FILE" env-default:".private-data/MVP Account Privacy Data.json"`
	Retries       int           `yaml:"retries" env-default:"2"`
	Timeout       time.Duration `yaml:"timeout" env-default:"15s"`
}

type ServerConfig struct {
	Address string `yaml:"address" env:"SPEAKING_ADDR" env-default:":8080"`
	// RefreshCron re-runs the merge on a schedule while serving; empty
	// disables it.
	RefreshCron string `yaml:"refreshCron" env:"SPEAKING_REFRESH_CRON" env-default:""`
}

type HistoryConfig struct {
	Enabled bool   `yaml:"enabled" env:"SPEAKING_HISTORY" env-default:"true"`
	Path    string `yaml:"path" env:"SPEAKING_HISTORY_PATH" env-default:"data/talks/history.db"`
}

// SourcePaths maps each source name to its file under the data directory.
func (d DataConfig) SourcePaths() map[string]string {
	return map[string]string{
		sources.SourceLegacy:     filepath.Join(d.Dir, d.LegacyFile),
		sources.SourceSessionize: filepath.Join(d.Dir, d.SessionizeFile),
		sources.SourceMVP:        filepath.Join(d.Dir, d.MVPFile),
		sources.SourceManual:     filepath.Join(d.Dir, d.ManualFile),
	}
}

// SpeakingPath is the canonical dataset location.
func (d DataConfig) SpeakingPath() string {
	return filepath.Join(d.Dir, d.SpeakingFile)
}

// CandidatesPath is the video candidate scan location.
func (d DataConfig) CandidatesPath() string {
	return filepath.Join(d.Dir, d.CandidatesFile)
}

// ReportPath is the video match report location.
func (d DataConfig) ReportPath() string {
	return filepath.Join(d.Dir, d.ReportFile)
}

// Load reads the config file at path, or environment/defaults only when path
// is empty or missing.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := cleanenv.ReadConfig(path, &cfg); err != nil {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
			return &cfg, nil
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("stat config %s: %w", path, err)
		}
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read config from environment: %w", err)
	}
	return &cfg, nil
}
