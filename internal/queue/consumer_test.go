package queue

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/iliyamo/venue-booking/internal/bus"
)

var at = time.Date(2025, 3, 1, 18, 30, 0, 0, time.UTC)

func TestFormat(t *testing.T) {
	cases := []struct {
		name  string
		queue string
		topic bus.Topic
		body  any
		want  []string
	}{
		{
			"confirmed", QueueReservationConfirmed, bus.TopicReservationConfirmed,
			bus.ReservationConfirmed{BookingID: "b1", EventID: "e1", NumberOfPersons: 4, Email: "ada@example.com", ContactName: "Ada L"},
			[]string{"Reservation confirmed", "booking_id=b1", "persons=4", "<ada@example.com>"},
		},
		{
			"cancelled", QueueReservationCancelled, bus.TopicReservationCancelled,
			bus.ReservationCancelled{BookingID: "b2", EventID: "e1", NumberOfPersons: 2},
			[]string{"Reservation cancelled", "booking_id=b2"},
		},
		{
			"spots", QueueSpotsAvailable, bus.TopicWaitlistSpotsAvailable,
			bus.WaitlistSpotsAvailable{EventID: "e1", AvailableCapacity: 5, Entries: []bus.PromotedEntry{
				{EntryID: "w1", NumberOfPersons: 2, CustomerEmail: "a@x.nl"},
				{EntryID: "w3", NumberOfPersons: 3, CustomerEmail: "c@x.nl"},
			}},
			[]string{"available=5", "contact=[w1(2)<a@x.nl>,w3(3)<c@x.nl>]"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body, err := Encode(tc.topic, tc.body, at)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			line, err := Format(tc.queue, body)
			if err != nil {
				t.Fatalf("format: %v", err)
			}
			if !strings.HasPrefix(line, "[2025-03-01T18:30:00Z]") || !strings.HasSuffix(line, "\n") {
				t.Fatalf("unexpected framing: %q", line)
			}
			for _, w := range tc.want {
				if !strings.Contains(line, w) {
					t.Fatalf("expected %q in %q", w, line)
				}
			}
		})
	}
}

func TestFormat_Rejects(t *testing.T) {
	if _, err := Format(QueueReservationConfirmed, []byte("nope")); err == nil {
		t.Fatalf("expected error for bad body")
	}
	body, _ := Encode(bus.TopicCapacityFreed, bus.CapacityFreed{}, at)
	if _, err := Format("somewhere.else", body); err == nil {
		t.Fatalf("expected error for unknown queue")
	}
}

func TestNotifier_Appends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "notifications.log")
	n := NewNotifier(path)
	body, _ := Encode(bus.TopicReservationCancelled, bus.ReservationCancelled{BookingID: "b"}, at)
	for i := 0; i < 2; i++ {
		if err := n.Handle(QueueReservationCancelled, body); err != nil {
			t.Fatalf("handle: %v", err)
		}
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got := strings.Count(string(raw), "\n"); got != 2 {
		t.Fatalf("expected 2 lines, got %d", got)
	}
}
