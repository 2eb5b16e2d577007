package remotestore

import (
	"bytes"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer

	want := frame{op: opStore, requestID: 42, payload: []byte("hello page")}

	if err := writeFrame(&buf, want); err != nil {
		t.Fatalf("writeFrame: %v", err)
	}

	got, err := readFrame(&buf)
	if err != nil {
		t.Fatalf("readFrame: %v", err)
	}

	if got.op != want.op || got.requestID != want.requestID || !bytes.Equal(got.payload, want.payload) {
		t.Fatalf("round trip = %+v, want %+v", got, want)
	}
}

func TestFrameEmptyPayload(t *testing.T) {
	var buf bytes.Buffer

	if err := writeFrame(&buf, frame{op: opHello, requestID: 1}); err != nil {
		t.Fatalf("writeFrame: %v", err)
	}

	got, err := readFrame(&buf)
	if err != nil {
		t.Fatalf("readFrame: %v", err)
	}

	if len(got.payload) != 0 {
		t.Fatalf("payload = %v, want empty", got.payload)
	}
}

func TestReadFrameRejectsOversizePayload(t *testing.T) {
	var buf bytes.Buffer

	oversized := frame{op: opFetch, requestID: 1, payload: make([]byte, maxFrame+1)}

	// writeFrame accepts this payload: the size cap is enforced only on the
	// read side (a client should never trust a length prefix from the wire).
	if err := writeFrame(&buf, oversized); err != nil {
		t.Fatalf("writeFrame: %v", err)
	}

	if _, err := readFrame(&buf); err == nil {
		t.Fatalf("readFrame accepted an oversize payload")
	}
}
