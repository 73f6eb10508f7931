package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/vnvalue/internal/valuation"
)

func TestLoad_ShippedProfile(t *testing.T) {
	path := "../../config/valuation/default.yaml"
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Skip("profile file not found")
	}

	p, data, err := Load(path)
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	assert.Equal(t, "vn_equity_default", p.Meta.ProfileID)
	assert.Equal(t, valuation.DefaultAssumptions(), p.Assumptions)
	assert.Equal(t, valuation.EqualWeights(), p.Weights)
	assert.Equal(t, valuation.DefaultThresholds(), p.Thresholds)
}

func TestParse_PartialKeepsDefaults(t *testing.T) {
	p, err := Parse([]byte(`
meta:
  profile_id: banks
weights:
  fcfe: 40
  fcff: 0
  justified_pe: 30
  justified_pb: 30
missing_policy: exclude_from_weight_sum
`))
	require.NoError(t, err)

	assert.Equal(t, 40.0, p.Weights.FCFE)
	assert.Equal(t, valuation.DefaultAssumptions(), p.Assumptions)
	assert.Equal(t, valuation.ExcludeFromWeightSum, p.Options().Policy)
	assert.Equal(t, 15.0, p.Options().Thresholds.Buy)
}

func TestParse_UnknownFieldFails(t *testing.T) {
	_, err := Parse([]byte(`
meta:
  profile_id: typo
thresholds:
  buyy: 20
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "buyy")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *Profile)
		field  string
	}{
		{"missing id", func(p *Profile) { p.Meta.ProfileID = "" }, "meta.profile_id"},
		{"zero years", func(p *Profile) { p.Assumptions.ProjectionYears = 0 }, "assumptions.projection_years"},
		{"weight over 100", func(p *Profile) { p.Weights.JustifiedPB = 120 }, "weights.justified_pb"},
		{"negative weight", func(p *Profile) { p.Weights.FCFF = -5 }, "weights.fcff"},
		{"negative buy", func(p *Profile) { p.Thresholds.Buy = -1 }, "thresholds.buy"},
		{"positive sell", func(p *Profile) { p.Thresholds.Sell = 5 }, "thresholds.sell"},
		{"negative tolerance", func(p *Profile) { p.WeightTolerance = -0.1 }, "weight_tolerance"},
		{"bad policy", func(p *Profile) { p.MissingPolicy = "renormalize" }, "missing_policy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Default()
			tt.mutate(p)

			err := Validate(p)
			var verr ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}

	assert.NoError(t, Validate(Default()))
}

func TestHash_Deterministic(t *testing.T) {
	h1, err := Hash(Default())
	require.NoError(t, err)
	assert.Len(t, h1, 64)

	h2, _ := Hash(Default())
	assert.Equal(t, h1, h2)

	changed := Default()
	changed.Weights.FCFE = 30
	h3, _ := Hash(changed)
	assert.NotEqual(t, h1, h3)
}

func TestLoadOrDefault(t *testing.T) {
	p, err := LoadOrDefault("")
	require.NoError(t, err)
	assert.Equal(t, "default", p.Meta.ProfileID)

	path := filepath.Join(t.TempDir(), "p.yaml")
	require.NoError(t, os.WriteFile(path, []byte("meta:\n  profile_id: tmp\n"), 0o600))
	p, err = LoadOrDefault(path)
	require.NoError(t, err)
	assert.Equal(t, "tmp", p.Meta.ProfileID)

	_, err = LoadOrDefault(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWarn(t *testing.T) {
	p := Default()
	codes := func(ws []Warning) []string {
		var out []string
		for _, w := range ws {
			out = append(out, w.Code)
		}
		return out
	}

	assert.Equal(t, []string{"MISSING_AS_ZERO"}, codes(Warn(p)))

	p.Weights.FCFE = 50
	p.Assumptions.TerminalGrowth = 11
	p.MissingPolicy = "fail"
	assert.Equal(t, []string{"WEIGHT_TOTAL", "TERMINAL_GROWTH"}, codes(Warn(p)))
}
