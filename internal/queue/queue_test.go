package queue

import (
	"testing"
)

func TestImageJobTaskRoundTrip(t *testing.T) {
	task := NewImageJobTask("job-123")
	if task.Name != TaskProcessImageJob {
		t.Errorf("Name = %q, want %q", task.Name, TaskProcessImageJob)
	}
	if task.Key != "job-123" {
		t.Errorf("Key = %q, want job-123", task.Key)
	}

	data, err := task.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := DecodeTask(data)
	if err != nil {
		t.Fatalf("DecodeTask: %v", err)
	}
	if decoded.Name != task.Name || decoded.Args["job_id"] != "job-123" {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestImageUpdateTaskCarriesStatusAndURL(t *testing.T) {
	task := NewImageUpdateTask("job-9", "succeeded", "https://cdn.example.com/x.jpg")
	if task.Name != TaskImageUpdate {
		t.Errorf("Name = %q, want %q", task.Name, TaskImageUpdate)
	}
	if task.Args["status"] != "succeeded" || task.Args["url"] != "https://cdn.example.com/x.jpg" {
		t.Errorf("Args = %v", task.Args)
	}
	if task.Key != "job-9" {
		t.Errorf("Key = %q, update must partition by job id", task.Key)
	}
}

func TestDecodeTaskRejectsGarbage(t *testing.T) {
	if _, err := DecodeTask([]byte("not json")); err == nil {
		t.Error("expected error for non-JSON payload")
	}
	if _, err := DecodeTask([]byte(`{"key": "x"}`)); err == nil {
		t.Error("expected error for task without a name")
	}
}
