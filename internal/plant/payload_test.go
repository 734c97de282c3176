package plant

import "testing"

func TestHealthScore(t *testing.T) {
	tests := []struct {
		name   string
		data   map[string]any
		want   float64
		wantOK bool
	}{
		{
			name:   "top level",
			data:   map[string]any{"healthScore": 72.5},
			want:   72.5,
			wantOK: true,
		},
		{
			name:   "nested under analysis",
			data:   map[string]any{"analysis": map[string]any{"healthScore": 45.0}},
			want:   45.0,
			wantOK: true,
		},
		{
			name:   "top level wins over nested",
			data:   map[string]any{"healthScore": 80.0, "analysis": map[string]any{"healthScore": 20.0}},
			want:   80.0,
			wantOK: true,
		},
		{
			name:   "integer value",
			data:   map[string]any{"healthScore": 55},
			want:   55,
			wantOK: true,
		},
		{
			name:   "absent",
			data:   map[string]any{"stage": "flowering"},
			wantOK: false,
		},
		{
			name:   "non-numeric",
			data:   map[string]any{"healthScore": "good"},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := HealthScore(tt.data)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("HealthScore() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTrichomeAccessors(t *testing.T) {
	data := map[string]any{
		"trichomeAnalysis": map[string]any{
			"overallMaturity": map[string]any{
				"stage":           "amber",
				"amberPercentage": 34.0,
			},
			"harvestReadiness": map[string]any{
				"ready": true,
			},
		},
	}

	if got := TrichomeStage(data); got != "amber" {
		t.Errorf("TrichomeStage() = %q, want %q", got, "amber")
	}
	if got := AmberPercentage(data); got != 34.0 {
		t.Errorf("AmberPercentage() = %v, want 34", got)
	}
	if !HarvestReady(data) {
		t.Error("HarvestReady() = false, want true")
	}
}

func TestTrichomeAccessors_Defaults(t *testing.T) {
	empty := map[string]any{}

	if got := TrichomeStage(empty); got != "" {
		t.Errorf("TrichomeStage() = %q, want empty", got)
	}
	if got := AmberPercentage(empty); got != 0 {
		t.Errorf("AmberPercentage() = %v, want 0", got)
	}
	if HarvestReady(empty) {
		t.Error("HarvestReady() = true, want false")
	}
}

func TestGrowthStageAndSeverity(t *testing.T) {
	data := map[string]any{"stage": "flowering", "severity": "critical"}

	if got := GrowthStage(data); got != "flowering" {
		t.Errorf("GrowthStage() = %q", got)
	}
	if got := Severity(data); got != "critical" {
		t.Errorf("Severity() = %q", got)
	}
}

func TestAnalysisTypeValid(t *testing.T) {
	for _, typ := range AllAnalysisTypes() {
		if !typ.Valid() {
			t.Errorf("%q should be valid", typ)
		}
	}
	if AnalysisType("sonar").Valid() {
		t.Error("unknown type should not be valid")
	}
}
