package kafka

import "testing"

func TestTopicForEventType(t *testing.T) {
	cases := []struct {
		eventType EventType
		topic     string
		known     bool
	}{
		{EventTypeOrderPlaced, TopicOrderEvents, true},
		{EventTypeOrderCancelled, TopicOrderEvents, true},
		{EventTypeStockRolledBack, TopicOrderEvents, true},
		{EventTypePaymentCompleted, TopicPaymentEvents, true},
		{EventTypePaymentFailed, TopicPaymentEvents, true},
		{EventType("user.registered"), "", false},
		{EventType(""), "", false},
	}

	for _, tc := range cases {
		topic, known := TopicForEventType(tc.eventType)
		if topic != tc.topic || known != tc.known {
			t.Fatalf("TopicForEventType(%q) = (%q, %v), want (%q, %v)", tc.eventType, topic, known, tc.topic, tc.known)
		}
	}
}

func TestKnownTopic(t *testing.T) {
	for _, topic := range []string{TopicOrderEvents, TopicPaymentEvents, TopicDeadLetterQueue} {
		if !KnownTopic(topic) {
			t.Fatalf("expected %q to be a known topic", topic)
		}
	}
	if KnownTopic("billing.invoices") {
		t.Fatal("foreign topic must not be known")
	}
	if KnownTopic("") {
		t.Fatal("empty topic must not be known")
	}
}
