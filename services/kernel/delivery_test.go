package kernel

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"omniversal/services/layers"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestGenerateArtifactsRoundRobin(t *testing.T) {
	all := layers.AllKinds()
	for k := 1; k <= len(all); k++ {
		kinds := all[:k]
		for _, count := range []int{1, k, 2*k + 1, 23} {
			t.Run(fmt.Sprintf("k=%d/n=%d", k, count), func(t *testing.T) {
				artifacts, err := GenerateArtifacts(0, count, kinds, nil)
				if err != nil {
					t.Fatalf("GenerateArtifacts() error = %v", err)
				}
				if len(artifacts) != count {
					t.Fatalf("generated %d, want %d", len(artifacts), count)
				}
				for i, a := range artifacts {
					if a.LayerKind != kinds[i%k] {
						t.Fatalf("artifact %d kind = %q, want %q", i, a.LayerKind, kinds[i%k])
					}
				}
			})
		}
	}
}

func TestGenerateArtifactsRequiresKinds(t *testing.T) {
	if _, err := GenerateArtifacts(0, 3, nil, nil); err != ErrNoDeliverableKinds {
		t.Fatalf("error = %v, want ErrNoDeliverableKinds", err)
	}
	artifacts, err := GenerateArtifacts(0, 0, nil, nil)
	if err != nil || artifacts != nil {
		t.Fatalf("zero count = %v, %v", artifacts, err)
	}
}

func TestGenerateArtifactsIDsContinueFromOffset(t *testing.T) {
	artifacts, err := GenerateArtifacts(20, 2, []layers.Kind{layers.KindZakat}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if artifacts[0].ID != "ARTIFACT-00000020" || artifacts[1].ID != "ARTIFACT-00000021" {
		t.Fatalf("ids = %s, %s", artifacts[0].ID, artifacts[1].ID)
	}
	if artifacts[1].Content["data"] != "payload_21" {
		t.Fatalf("content = %v", artifacts[1].Content)
	}
}

func TestDeliverBatchDeliversEveryArtifact(t *testing.T) {
	s := NewDeliverySystem(0, testLogger(), nil)
	artifacts, _ := GenerateArtifacts(0, 50, layers.DefaultDeliverableKinds(), nil)

	res := s.DeliverBatch(context.Background(), artifacts)
	if res.Delivered != 50 || res.Total != 50 {
		t.Fatalf("result = %+v, want 50/50", res)
	}
	if s.DeliveryCount() != 50 {
		t.Fatalf("delivery count = %d, want 50", s.DeliveryCount())
	}
	for _, a := range artifacts {
		if !a.Delivered() {
			t.Fatalf("%s not delivered", a.ID)
		}
	}

	more, _ := GenerateArtifacts(50, 5, layers.DefaultDeliverableKinds(), nil)
	s.DeliverBatch(context.Background(), more)
	if s.DeliveryCount() != 55 {
		t.Fatalf("delivery count = %d, want 55", s.DeliveryCount())
	}
}

func TestDeliverOneIsOnce(t *testing.T) {
	s := NewDeliverySystem(0, testLogger(), nil)
	a := &Artifact{ID: "ARTIFACT-00000001", LayerKind: layers.KindAIML, Timestamp: time.Now()}
	if !s.DeliverOne(context.Background(), a) {
		t.Fatal("first delivery failed")
	}
	if s.DeliverOne(context.Background(), a) {
		t.Fatal("second delivery succeeded")
	}
	if s.DeliveryCount() != 1 || len(s.Delivered()) != 1 {
		t.Fatalf("count = %d, history = %d", s.DeliveryCount(), len(s.Delivered()))
	}
}

func TestDeliveryHistoryIsBounded(t *testing.T) {
	s := NewDeliverySystem(4, testLogger(), nil)
	artifacts, _ := GenerateArtifacts(0, 10, []layers.Kind{layers.KindAIML}, nil)
	for _, a := range artifacts {
		s.DeliverOne(context.Background(), a)
	}
	history := s.Delivered()
	if len(history) != 4 {
		t.Fatalf("history = %d, want 4", len(history))
	}
	if history[0].ID != "ARTIFACT-00000006" || history[3].ID != "ARTIFACT-00000009" {
		t.Fatalf("history ids = %s..%s", history[0].ID, history[3].ID)
	}
	if s.DeliveryCount() != 10 {
		t.Fatalf("delivery count = %d, want 10", s.DeliveryCount())
	}
}

func TestArtifactJSON(t *testing.T) {
	a := &Artifact{ID: "ARTIFACT-00000000", LayerKind: layers.KindCRMAnalytics, Content: map[string]any{"data": "payload_0"}}
	a.delivered.Store(true)
	data, err := json.Marshal(a)
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatal(err)
	}
	if doc["artifact_id"] != "ARTIFACT-00000000" || doc["layer"] != "crm_analytics" || doc["delivered"] != true {
		t.Fatalf("json = %s", data)
	}
}
