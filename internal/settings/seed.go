package settings

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/emilythestrangee/reviewers-portal/backend/internal/models"
)

//go:embed defaults.yaml
var defaultSeed []byte

type seedFile struct {
	Settings []struct {
		Key         string `yaml:"key"`
		Value       string `yaml:"value"`
		Description string `yaml:"description"`
	} `yaml:"settings"`
}

// LoadSeed parses the settings seed at path, or the embedded defaults when
// path is empty.
func LoadSeed(path string) ([]models.Setting, error) {
	data := defaultSeed
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read seed file: %w", err)
		}
	}

	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}

	out := make([]models.Setting, 0, len(file.Settings))
	for _, s := range file.Settings {
		if s.Key == "" {
			return nil, errors.New("parse seed file: setting without key")
		}
		value, err := NormalizeValue(s.Key, s.Value)
		if err != nil {
			return nil, fmt.Errorf("seed %s: %w", s.Key, err)
		}
		out = append(out, models.Setting{Key: s.Key, Value: value, Description: s.Description})
	}
	return out, nil
}

// Seed inserts every seed setting that does not exist yet. Existing rows
// are left untouched.
func Seed(ctx context.Context, backend Backend, seed []models.Setting) (int, error) {
	created := 0
	for i := range seed {
		existing, err := backend.GetSetting(ctx, seed[i].Key)
		if err != nil {
			return created, fmt.Errorf("load setting %s: %w", seed[i].Key, err)
		}
		if existing != nil {
			continue
		}
		_, _, err = backend.SaveSetting(ctx, Change{
			Key:         seed[i].Key,
			Value:       seed[i].Value,
			Description: seed[i].Description,
		})
		if err != nil {
			return created, fmt.Errorf("seed setting %s: %w", seed[i].Key, err)
		}
		created++
		slog.Info("seeded setting", "key", seed[i].Key, "value", seed[i].Value)
	}
	return created, nil
}
