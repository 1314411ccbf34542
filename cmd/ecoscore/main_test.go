package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/ecoscore/internal/auth"
	"github.com/thebtf/ecoscore/internal/features"
	"github.com/thebtf/ecoscore/internal/model"
	"github.com/thebtf/ecoscore/internal/prediction"
	"github.com/thebtf/ecoscore/pkg/models"
)

// carKmModel scores 90 - car_km.
const carKmModel = `{"type":"linear","version":"cli-test","bias":90,"coefficients":[-1]}`

func writeModelDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, model.DefaultModelFile), []byte(carKmModel), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, model.DefaultFeatureNamesFile), []byte(`["car_km"]`), 0o600))
	return dir
}

// run executes the root command with an isolated data directory.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	dataDir := t.TempDir()
	t.Setenv("ECOSCORE_DATA_DIR", dataDir)

	rootCmd := newRootCommand()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(append([]string{"--config", filepath.Join(dataDir, "settings.json")}, args...))

	err := rootCmd.Execute()
	return out.String(), err
}

func TestFeaturesCommand_CanonicalOrderWithoutModel(t *testing.T) {
	out, err := run(t, "car_km: 12\nbike_km: 3\n", "features", "--model-dir", t.TempDir(), "--date", "2026-10-14")
	require.NoError(t, err)

	var got []featureValue
	require.NoError(t, json.Unmarshal([]byte(out), &got))

	names := features.CanonicalFeatureNames()
	require.Len(t, got, len(names))
	for i, fv := range got {
		require.Equal(t, names[i], fv.Name)
		if fv.Name == features.CarKm {
			require.Equal(t, 12.0, fv.Value)
		}
	}
}

func TestFeaturesCommand_ModelOrder(t *testing.T) {
	out, err := run(t, `{"car_km": 7, "unknown": "x"}`, "features", "--model-dir", writeModelDir(t))
	require.NoError(t, err)

	var got []featureValue
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Equal(t, []featureValue{{Name: "car_km", Value: 7}}, got)
}

func TestFeaturesCommand_AllFeatures(t *testing.T) {
	out, err := run(t, `{"car_km": 5}`, "features", "--all", "--model-dir", t.TempDir())
	require.NoError(t, err)

	var got map[string]float64
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Equal(t, 5.0, got[features.CarKm])
	require.Contains(t, got, "total_distance_km")
}

func TestFeaturesCommand_InputFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signals.yaml")
	require.NoError(t, os.WriteFile(path, []byte("car_km: 4\n"), 0o600))

	out, err := run(t, "", "features", "-i", path, "--model-dir", writeModelDir(t))
	require.NoError(t, err)
	require.Contains(t, out, `"value": 4`)
}

func TestFeaturesCommand_Errors(t *testing.T) {
	_, err := run(t, "{}", "features", "--date", "14/10/2026")
	require.ErrorContains(t, err, "invalid --date")

	_, err = run(t, `{"car_km": [1]}`, "features")
	require.ErrorContains(t, err, "parsing JSON signals")

	_, err = run(t, "", "features", "-i", filepath.Join(t.TempDir(), "missing.json"))
	require.ErrorContains(t, err, "reading signals")
}

func TestQuickCommand_Scores(t *testing.T) {
	out, err := run(t, `{"car_km": 30}`, "quick", "--model-dir", writeModelDir(t))
	require.NoError(t, err)

	var outcome models.PredictionOutcome
	require.NoError(t, json.Unmarshal([]byte(out), &outcome))
	require.Equal(t, 60.0, outcome.Score)
	require.Equal(t, "cli-test", outcome.ModelVersion)
	require.Empty(t, outcome.PredictionID)
	require.LessOrEqual(t, len(outcome.Recommendations), prediction.MaxQuickRecommendations)
}

func TestQuickCommand_ModelUnavailable(t *testing.T) {
	_, err := run(t, `{"car_km": 30}`, "quick", "--model-dir", t.TempDir())
	require.ErrorIs(t, err, prediction.ErrModelUnavailable)
}

func TestModelCommand(t *testing.T) {
	dir := writeModelDir(t)
	out, err := run(t, "", "model", "--model-dir", dir)
	require.NoError(t, err)

	var got struct {
		Dir      string       `json:"dir"`
		Features []string     `json:"features"`
		Status   model.Status `json:"status"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Equal(t, dir, got.Dir)
	require.Equal(t, []string{"car_km"}, got.Features)
	require.True(t, got.Status.Loaded)
	require.Equal(t, 1, got.Status.FeatureCount)
	require.Equal(t, "cli-test", got.Status.Version)
}

func TestModelCommand_MissingArtifacts(t *testing.T) {
	out, err := run(t, "", "model", "--model-dir", t.TempDir())
	require.NoError(t, err)
	require.Contains(t, out, `"loaded": false`)
	require.Contains(t, out, "load_error")
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("ECOSCORE_JWT_SECRET", "cli-secret")

	out, err := run(t, "", "token", "--user", "u1", "--ttl", "1m")
	require.NoError(t, err)

	subject, err := auth.NewVerifier(auth.Config{Secret: "cli-secret"}).Verify(strings.TrimSpace(out))
	require.NoError(t, err)
	require.Equal(t, "u1", subject)
}

func TestTokenCommand_Errors(t *testing.T) {
	t.Setenv("ECOSCORE_JWT_SECRET", "")

	_, err := run(t, "", "token")
	require.ErrorContains(t, err, "--user is required")

	_, err = run(t, "", "token", "--user", "u1")
	require.ErrorContains(t, err, "no secret configured")
}
