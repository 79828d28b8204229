package models_test

import (
	"encoding/json"
	"testing"
	"time"

	"task-navigator/internal/models"

	"github.com/gofrs/uuid"
)

func TestTask_TableName(t *testing.T) {
	if name := (models.Task{}).TableName(); name != "user_tasks" {
		t.Errorf("Expected table 'user_tasks', got '%s'", name)
	}
}

func TestTask_BeforeCreateDefaults(t *testing.T) {
	task := models.Task{
		UserID:  uuid.Must(uuid.NewV4()),
		Title:   "Buy milk",
		DueDate: time.Now().Add(24 * time.Hour),
	}

	if err := task.BeforeCreate(nil); err != nil {
		t.Fatalf("BeforeCreate returned error: %v", err)
	}

	if task.ID == uuid.Nil {
		t.Error("Expected an ID to be assigned")
	}
	if task.Status != models.StatusPending {
		t.Errorf("Expected status 'pending', got '%s'", task.Status)
	}
	if task.Priority != models.PriorityMedium {
		t.Errorf("Expected priority 'medium', got '%s'", task.Priority)
	}
}

func TestTask_BeforeCreateKeepsExplicitValues(t *testing.T) {
	id := uuid.Must(uuid.NewV4())
	task := models.Task{ID: id, Priority: models.PriorityHigh, Status: models.StatusInProgress}

	if err := task.BeforeCreate(nil); err != nil {
		t.Fatalf("BeforeCreate returned error: %v", err)
	}

	if task.ID != id || task.Priority != models.PriorityHigh || task.Status != models.StatusInProgress {
		t.Errorf("Expected explicit values to survive, got %+v", task)
	}
}

func TestTaskStatus_Transitions(t *testing.T) {
	tests := []struct {
		from, to models.TaskStatus
		allowed  bool
	}{
		{models.StatusPending, models.StatusInProgress, true},
		{models.StatusPending, models.StatusCompleted, true},
		{models.StatusInProgress, models.StatusCompleted, true},
		{models.StatusCompleted, models.StatusCompleted, true},
		{models.StatusCompleted, models.StatusPending, false},
		{models.StatusInProgress, models.StatusPending, false},
		{models.StatusPending, "cancelled", false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.allowed {
			t.Errorf("%s -> %s: expected %v, got %v", tt.from, tt.to, tt.allowed, got)
		}
	}
}

func TestTaskPriority_Valid(t *testing.T) {
	for _, p := range []models.TaskPriority{models.PriorityHigh, models.PriorityMedium, models.PriorityLow} {
		if !p.Valid() {
			t.Errorf("Expected %q to be valid", p)
		}
	}
	if models.TaskPriority("Low").Valid() {
		t.Error("Expected priorities to be case sensitive")
	}
}

func TestStringList_ValueAndScan(t *testing.T) {
	list := models.StringList{"Break it into steps", "Start with the outline"}

	value, err := list.Value()
	if err != nil {
		t.Fatalf("Value returned error: %v", err)
	}

	var scanned models.StringList
	if err := scanned.Scan(value); err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if len(scanned) != 2 || scanned[1] != "Start with the outline" {
		t.Errorf("Unexpected scanned list %v", scanned)
	}

	var fromBytes models.StringList
	if err := fromBytes.Scan([]byte(`["a"]`)); err != nil || len(fromBytes) != 1 {
		t.Errorf("Expected to scan bytes, got %v (%v)", fromBytes, err)
	}

	var fromNil models.StringList
	if err := fromNil.Scan(nil); err != nil || fromNil == nil || len(fromNil) != 0 {
		t.Errorf("Expected empty non-nil list from NULL, got %#v (%v)", fromNil, err)
	}

	var bad models.StringList
	if err := bad.Scan(42); err == nil {
		t.Error("Expected error scanning an int")
	}
}

func TestStringList_MarshalNilAsEmptyArray(t *testing.T) {
	data, err := json.Marshal(models.Task{Title: "No suggestions"})
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}

	suggestions, ok := decoded["ai_suggestions"].([]interface{})
	if !ok || len(suggestions) != 0 {
		t.Errorf("Expected empty ai_suggestions array, got %v", decoded["ai_suggestions"])
	}
	if decoded["completed_at"] != nil {
		t.Errorf("Expected null completed_at, got %v", decoded["completed_at"])
	}
}

func TestToken_IsExpired(t *testing.T) {
	now := time.Now()
	token := models.Token{
		ID:           uuid.Must(uuid.NewV4()),
		UserID:       uuid.Must(uuid.NewV4()),
		RefreshToken: uuid.Must(uuid.NewV4()),
		ExpiresAt:    now.Add(time.Hour),
	}

	if token.IsExpired(now) {
		t.Error("Expected token to be valid before expiry")
	}
	if !token.IsExpired(now.Add(time.Hour)) {
		t.Error("Expected token to be expired at expiry")
	}
}
