package livegateway

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/samlnz/PS-controller/internal/event"
)

type parsedSSE struct {
	ID    string
	Event string
	Data  string
}

func readEventWithTimeout(t *testing.T, rd *bufio.Reader, timeout time.Duration) parsedSSE {
	t.Helper()
	ch := make(chan parsedSSE, 1)
	errCh := make(chan error, 1)
	go func() {
		ev, err := readSSEEvent(rd)
		if err != nil {
			errCh <- err
			return
		}
		ch <- ev
	}()
	select {
	case ev := <-ch:
		return ev
	case err := <-errCh:
		t.Fatalf("read event: %v", err)
	case <-time.After(timeout):
		t.Fatal("timeout waiting for sse event")
	}
	return parsedSSE{}
}

func readSSEEvent(rd *bufio.Reader) (parsedSSE, error) {
	ev := parsedSSE{}
	for {
		line, err := rd.ReadString('\n')
		if err != nil {
			return ev, err
		}
		line = strings.TrimRight(line, "\n")
		if line == "" {
			return ev, nil
		}
		if strings.HasPrefix(line, "id: ") {
			ev.ID = strings.TrimPrefix(line, "id: ")
		}
		if strings.HasPrefix(line, "event: ") {
			ev.Event = strings.TrimPrefix(line, "event: ")
		}
		if strings.HasPrefix(line, "data: ") {
			ev.Data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func TestEventsSSEReplayThenLive(t *testing.T) {
	evlog := event.NewLog(100)
	first := evlog.Append(event.Event{Type: event.TypeVideoRequest, HouseID: "house1", Timestamp: 1})
	second := evlog.Append(event.Event{Type: event.TypeSessionEnded, HouseID: "house1", Timestamp: 2, DurationMS: 5000})

	srv := httptest.NewServer(EventsHandler(evlog))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("open sse: %v", err)
	}
	defer resp.Body.Close()
	rd := bufio.NewReader(resp.Body)

	ev1 := readEventWithTimeout(t, rd, time.Second)
	ev2 := readEventWithTimeout(t, rd, time.Second)
	if ev1.ID != first.ID || ev2.ID != second.ID {
		t.Fatalf("replay order wrong: %q then %q", ev1.ID, ev2.ID)
	}
	if ev1.Event != event.TypeVideoRequest || ev2.Event != event.TypeSessionEnded {
		t.Fatalf("wrong event names: %q %q", ev1.Event, ev2.Event)
	}

	live := evlog.Append(event.Event{Type: event.TypeCounterOnline, HouseID: "house2", Timestamp: 3})
	ev3 := readEventWithTimeout(t, rd, time.Second)
	if ev3.ID != live.ID || ev3.Event != event.TypeCounterOnline {
		t.Fatalf("live event not delivered: %+v", ev3)
	}

	var decoded event.Event
	if err := json.Unmarshal([]byte(ev3.Data), &decoded); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if decoded.HouseID != "house2" {
		t.Fatalf("wrong payload: %+v", decoded)
	}
}

func TestEventsSSELastEventIDSkipsSeen(t *testing.T) {
	evlog := event.NewLog(100)
	first := evlog.Append(event.Event{Type: event.TypeVideoRequest, HouseID: "house1"})
	second := evlog.Append(event.Event{Type: event.TypeYieldAlert, HouseID: "house1"})

	srv := httptest.NewServer(EventsHandler(evlog))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	req.Header.Set("Last-Event-ID", first.ID)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open sse: %v", err)
	}
	defer resp.Body.Close()

	ev := readEventWithTimeout(t, bufio.NewReader(resp.Body), time.Second)
	if ev.ID != second.ID {
		t.Fatalf("expected replay from %q, got %q", second.ID, ev.ID)
	}
}
