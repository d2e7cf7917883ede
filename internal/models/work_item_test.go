package models

import (
	"testing"
	"time"
)

func TestNewWorkItem(t *testing.T) {
	item := NewWorkItem("model-a", []byte("payload"), "completion", 2)

	if item.ID == "" {
		t.Error("expected a generated ID")
	}
	if item.Key != "model-a" {
		t.Errorf("Key = %q, want model-a", item.Key)
	}
	if item.Priority != 2 {
		t.Errorf("Priority = %d, want 2", item.Priority)
	}
	if item.EnqueuedAt.IsZero() {
		t.Error("EnqueuedAt not stamped")
	}

	other := NewWorkItem("model-a", []byte("payload"), "completion", 2)
	if other.ID == item.ID {
		t.Error("two items share an ID")
	}
}

func TestWorkItem_Age(t *testing.T) {
	enqueued := time.Now().Add(-3 * time.Second)
	item := WorkItem{EnqueuedAt: enqueued}

	age := item.Age(enqueued.Add(3 * time.Second))
	if age != 3*time.Second {
		t.Errorf("Age() = %v, want 3s", age)
	}
}

func TestBatchConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  BatchConfig
		wantErr bool
	}{
		{
			name:    "Valid config",
			config:  BatchConfig{MaxBatchSize: 20, MinBatchSize: 2, MaxWaitTime: 30 * time.Second},
			wantErr: false,
		},
		{
			name:    "Min equals max",
			config:  BatchConfig{MaxBatchSize: 5, MinBatchSize: 5, MaxWaitTime: time.Second},
			wantErr: false,
		},
		{
			name:    "Min exceeds max",
			config:  BatchConfig{MaxBatchSize: 3, MinBatchSize: 5, MaxWaitTime: time.Second},
			wantErr: true,
		},
		{
			name:    "Zero max batch size",
			config:  BatchConfig{MaxBatchSize: 0, MinBatchSize: 1, MaxWaitTime: time.Second},
			wantErr: true,
		},
		{
			name:    "Zero min batch size",
			config:  BatchConfig{MaxBatchSize: 5, MinBatchSize: 0, MaxWaitTime: time.Second},
			wantErr: true,
		},
		{
			name:    "Zero wait time",
			config:  BatchConfig{MaxBatchSize: 5, MinBatchSize: 1, MaxWaitTime: 0},
			wantErr: true,
		},
		{
			name:    "Negative wait time",
			config:  BatchConfig{MaxBatchSize: 5, MinBatchSize: 1, MaxWaitTime: -time.Second},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if _, ok := err.(*ConfigInvalidError); !ok {
					t.Errorf("error type = %T, want *ConfigInvalidError", err)
				}
			}
		})
	}
}
