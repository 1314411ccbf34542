package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/thebtf/ecoscore/pkg/models"
)

// readSignals reads a signal object from path, or from stdin when path is
// empty or "-". YAML is used for .yaml/.yml files and for stdin input that is
// not a JSON object.
func readSignals(cmd *cobra.Command, path string) (models.Signals, error) {
	var (
		data []byte
		err  error
	)
	if path == "" || path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading signals: %w", err)
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return models.Signals{}, nil
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".json" || (ext != ".yaml" && ext != ".yml" && data[0] == '{') {
		var signals models.Signals
		if err := json.Unmarshal(data, &signals); err != nil {
			return nil, fmt.Errorf("parsing JSON signals: %w", err)
		}
		return signals, nil
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing YAML signals: %w", err)
	}
	return models.SignalsFromMap(raw), nil
}

// parseDate resolves the --date flag. Empty means now.
func parseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Now().UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date %q: want YYYY-MM-DD", value)
	}
	return t, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
