package models

import "testing"

func TestTaskStatus_Valid(t *testing.T) {
	tests := []struct {
		name   string
		status TaskStatus
		want   bool
	}{
		{"pending is valid", TaskStatusPending, true},
		{"running is valid", TaskStatusRunning, true},
		{"done is valid", TaskStatusDone, true},
		{"failed is valid", TaskStatusFailed, true},
		{"empty string is invalid", TaskStatus(""), false},
		{"unknown status is invalid", TaskStatus("unknown"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.Valid(); got != tt.want {
				t.Errorf("TaskStatus(%q).Valid() = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func TestRunStatus_Valid(t *testing.T) {
	for _, s := range []RunStatus{RunActive, RunSucceeded, RunFailed, RunInterrupted} {
		if !s.Valid() {
			t.Errorf("RunStatus(%q).Valid() = false, want true", s)
		}
	}
	if RunStatus("done").Valid() {
		t.Error("RunStatus(\"done\").Valid() = true, want false")
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
	}{
		{"production", ModeProduction},
		{"PRODUCTION", ModeProduction},
		{" prod ", ModeProduction},
		{"development", ModeDevelopment},
		{"", ModeDevelopment},
		{"staging", ModeDevelopment},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := ParseMode(tt.in)
			if got != tt.want {
				t.Errorf("ParseMode(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if !got.Valid() {
				t.Errorf("ParseMode(%q) returned invalid mode %q", tt.in, got)
			}
		})
	}
}

func TestMode_IsProduction(t *testing.T) {
	if !ModeProduction.IsProduction() {
		t.Error("ModeProduction.IsProduction() = false")
	}
	if ModeDevelopment.IsProduction() {
		t.Error("ModeDevelopment.IsProduction() = true")
	}
}
