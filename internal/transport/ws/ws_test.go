package ws

import (
	"bytes"
	"context"
	"errors"
	"log"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"tilescape.dev/internal/protocol"
	"tilescape.dev/internal/sched"
)

type fakeProvider struct {
	payloads map[string][]byte
	gate     chan struct{} // when set, Payload blocks until closed
}

func (p *fakeProvider) Payload(contentID string) ([]byte, bool, error) {
	if p.gate != nil {
		<-p.gate
	}
	b, ok := p.payloads[contentID]
	return b, ok, nil
}

func testScene() protocol.SceneParams {
	return protocol.SceneParams{
		Seed:          42,
		MaxDepth:      6,
		TileMaxSizePx: 512,
		MaxRefinement: 2,
		BoundsLow:     [3]float64{-512, -512, -512},
		BoundsHigh:    [3]float64{512, 512, 512},
	}
}

func startPair(t *testing.T, p Provider) (*Client, func()) {
	t.Helper()
	logger := log.New(os.Stdout, "[test] ", 0)
	srv := httptest.NewServer(NewServer(p, testScene(), logger).Handler())
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	client, err := Dial(context.Background(), url, "test_viewer", logger)
	if err != nil {
		srv.Close()
		t.Fatalf("dial: %v", err)
	}
	return client, func() {
		_ = client.Close()
		srv.Close()
	}
}

func TestClientFetchRoundtrip(t *testing.T) {
	payload := []byte("encoded tile bytes")
	client, stop := startPair(t, &fakeProvider{payloads: map[string][]byte{"1/0/0/0": payload}})
	defer stop()

	if client.Scene().Seed != 42 || client.Scene().MaxDepth != 6 {
		t.Fatalf("scene params not carried by welcome: %+v", client.Scene())
	}

	got, err := client.Fetch(context.Background(), "1/0/0/0")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload corrupted in transit: %q", got)
	}
}

func TestClientFetchNotFound(t *testing.T) {
	client, stop := startPair(t, &fakeProvider{})
	defer stop()

	_, err := client.Fetch(context.Background(), "3/1/1/1")
	if !errors.Is(err, sched.ErrNotFound) {
		t.Fatalf("fetch error = %v, want ErrNotFound", err)
	}
}

func TestClientFetchHonorsContextCancel(t *testing.T) {
	gate := make(chan struct{})
	defer close(gate)
	client, stop := startPair(t, &fakeProvider{gate: gate})
	defer stop()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := client.Fetch(ctx, "1/0/0/0")
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("fetch error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("canceled fetch did not return")
	}
}

func TestClientMatchesConcurrentRepliesByRequest(t *testing.T) {
	payloads := map[string][]byte{}
	ids := []string{"1/0/0/0", "1/1/0/0", "1/0/1/0", "1/1/1/0"}
	for i, id := range ids {
		payloads[id] = bytes.Repeat([]byte{byte(i + 1)}, 32+i)
	}
	client, stop := startPair(t, &fakeProvider{payloads: payloads})
	defer stop()

	var wg sync.WaitGroup
	errs := make(chan error, len(ids))
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			got, err := client.Fetch(context.Background(), id)
			if err != nil {
				errs <- err
				return
			}
			if !bytes.Equal(got, payloads[id]) {
				errs <- errors.New("reply matched to wrong request: " + id)
			}
		}(id)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
}

func TestClientFetchFailsFastWhenClosed(t *testing.T) {
	client, stop := startPair(t, &fakeProvider{})
	stop()

	if _, err := client.Fetch(context.Background(), "1/0/0/0"); err == nil {
		t.Fatalf("fetch on closed client succeeded")
	}
}
