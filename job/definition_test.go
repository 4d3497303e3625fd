package job

import (
	"context"
	"testing"

	"github.com/scribeq/scribeq/id"
	"github.com/scribeq/scribeq/workflow"
)

type transcriptionParams struct {
	ModelSize string `json:"modelSize"`
	Language  string `json:"language"`
}

func TestRegisterDefinitionDecodesNodeParams(t *testing.T) {
	r := NewRegistry(discardLogger())

	var got transcriptionParams
	RegisterDefinition(r, NewDefinition("transcription",
		func(ctx context.Context, p Payload, params transcriptionParams) (*Result, error) {
			got = params
			return &Result{Path: p.FilePath + ".txt"}, nil
		}))

	p := Payload{
		JobID:    id.NewJobID(),
		TenantID: id.NewTenantID(),
		FilePath: "in/audio.wav",
		WorkflowConfig: &workflow.Config{Nodes: []workflow.Node{
			{Type: "TranscriptionNode", Data: map[string]any{
				"modelSize": "large",
				"language":  "de",
			}},
		}},
	}
	res, err := r.Dispatch(context.Background(), "transcription", p)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if got.ModelSize != "large" || got.Language != "de" {
		t.Errorf("params = %+v", got)
	}
	if res.Path != "in/audio.wav.txt" {
		t.Errorf("result path = %q", res.Path)
	}
}

func TestRegisterDefinitionZeroParamsWithoutWorkflow(t *testing.T) {
	r := NewRegistry(discardLogger())

	var got transcriptionParams
	RegisterDefinition(r, NewDefinition("transcription",
		func(ctx context.Context, p Payload, params transcriptionParams) (*Result, error) {
			got = params
			return nil, nil
		}))

	if _, err := r.Dispatch(context.Background(), "transcription", Payload{}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if got != (transcriptionParams{}) {
		t.Errorf("expected zero params, got %+v", got)
	}
}

func TestRegisterDefinitionBadParamType(t *testing.T) {
	r := NewRegistry(discardLogger())

	RegisterDefinition(r, NewDefinition("transcription",
		func(ctx context.Context, p Payload, params struct {
			ModelSize int `json:"modelSize"`
		}) (*Result, error) {
			return nil, nil
		}))

	p := Payload{
		WorkflowConfig: &workflow.Config{Nodes: []workflow.Node{
			{Type: "TranscriptionNode", Data: map[string]any{"modelSize": "large"}},
		}},
	}
	if _, err := r.Dispatch(context.Background(), "transcription", p); err == nil {
		t.Fatal("expected decode error")
	}
}
