package events

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestTopics_AreDistinct(t *testing.T) {
	seen := map[string]bool{}
	for _, topic := range []string{TopicMovementRecorded, TopicStockLow, TopicCheckApproved, TopicSaleCompleted, TopicSaleCancelled} {
		if seen[topic] {
			t.Fatalf("duplicate topic %q", topic)
		}
		seen[topic] = true
	}
}

func TestMovementRecordedEvent_JSONShape(t *testing.T) {
	evt := MovementRecordedEvent{
		EventID:       uuid.New(),
		Version:       Version,
		MovementID:    uuid.New(),
		ProductID:     uuid.New(),
		Kind:          "OUT",
		Quantity:      3,
		QuantityAfter: 7,
		OccurredAt:    time.Now().UTC(),
	}
	b, err := json.Marshal(evt)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(b)
	for _, key := range []string{`"movement_id"`, `"kind":"OUT"`, `"quantity_after":7`} {
		if !strings.Contains(s, key) {
			t.Errorf("expected %s in %s", key, s)
		}
	}
	if strings.Contains(s, "reference_id") {
		t.Errorf("nil reference_id should be omitted: %s", s)
	}
}

func TestSaleEvent_AmountIsString(t *testing.T) {
	b, err := json.Marshal(SaleEvent{FinalAmount: decimal.RequireFromString("19.90")})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(b), `"final_amount":"19.9"`) {
		t.Errorf("expected decimal encoded as string, got %s", b)
	}
}
