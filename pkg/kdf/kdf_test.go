package kdf

import (
	"bytes"
	"testing"
	"time"

	"github.com/example/oqskem/pkg/kem"
)

type exchange struct {
	pk         kem.PublicKey
	ct         kem.Ciphertext
	sender     kem.SharedSecret
	receiver   kem.SharedSecret
	transcript []byte
}

func runExchange(t *testing.T) exchange {
	t.Helper()
	if !kem.MLKEM768.IsEnabled() {
		t.Skip("ML-KEM-768 disabled")
	}
	k, err := kem.New(kem.MLKEM768)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer k.Close()

	pk, sk, err := k.Keypair()
	if err != nil {
		t.Fatalf("keypair: %v", err)
	}
	ct, sender, err := k.Encapsulate(pk)
	if err != nil {
		t.Fatalf("encapsulate: %v", err)
	}
	receiver, err := k.Decapsulate(sk, ct)
	if err != nil {
		t.Fatalf("decapsulate: %v", err)
	}

	tr := NewTranscript("test", kem.MLKEM768)
	if err := tr.AppendExchange(pk, ct); err != nil {
		t.Fatalf("transcript: %v", err)
	}
	return exchange{pk: pk, ct: ct, sender: sender, receiver: receiver, transcript: tr.Sum()}
}

func TestDeriveAgreesOnBothSides(t *testing.T) {
	ex := runExchange(t)

	a, err := Derive(ex.sender, ex.transcript, Config{Label: "demo"})
	if err != nil {
		t.Fatalf("derive sender: %v", err)
	}
	b, err := Derive(ex.receiver, ex.transcript, Config{Label: "demo"})
	if err != nil {
		t.Fatalf("derive receiver: %v", err)
	}
	if !bytes.Equal(a.InitiatorKey, b.InitiatorKey) || !bytes.Equal(a.ResponderKey, b.ResponderKey) {
		t.Fatal("directional keys differ")
	}
	if !bytes.Equal(a.SessionID, b.SessionID) {
		t.Fatal("session ids differ")
	}
	if bytes.Equal(a.InitiatorKey, a.ResponderKey) {
		t.Fatal("directional keys must differ from each other")
	}
	if len(a.ExporterSecret) != 32 {
		t.Fatalf("exporter length %d", len(a.ExporterSecret))
	}
	if !a.NextRotation.After(a.EstablishedAt) {
		t.Fatal("rotation deadline not after establishment")
	}

	other, err := Derive(ex.sender, ex.transcript, Config{Label: "other"})
	if err != nil {
		t.Fatalf("derive other: %v", err)
	}
	if bytes.Equal(a.InitiatorKey, other.InitiatorKey) {
		t.Fatal("label must separate derivations")
	}

	a.Wipe()
	if !bytes.Equal(a.InitiatorKey, make([]byte, 32)) {
		t.Fatal("wipe left key material")
	}
}

func TestDeriveRejectsEmptyInputs(t *testing.T) {
	if _, err := Derive(kem.SharedSecret{}, []byte("t"), Config{}); err == nil {
		t.Fatal("expected error for empty shared secret")
	}
	ex := runExchange(t)
	if _, err := Derive(ex.sender, nil, Config{}); err == nil {
		t.Fatal("expected error for empty transcript")
	}
}

func TestTranscriptBindsOrderAndAlgorithm(t *testing.T) {
	a := NewTranscript("d", kem.Kyber512)
	b := NewTranscript("d", kem.Kyber768)
	if bytes.Equal(a.Sum(), b.Sum()) {
		t.Fatal("algorithm not bound")
	}

	x := NewTranscript("d", kem.Kyber512)
	y := NewTranscript("d", kem.Kyber512)
	_ = x.Append("a", []byte("12"))
	_ = x.Append("b", []byte("3"))
	_ = y.Append("a", []byte("1"))
	_ = y.Append("b", []byte("23"))
	if bytes.Equal(x.Sum(), y.Sum()) {
		t.Fatal("length prefix must separate entries")
	}
	if got := x.Labels(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("labels %v", got)
	}
	if err := x.Append("", nil); err == nil {
		t.Fatal("expected error for empty label")
	}
}

func TestConfirm(t *testing.T) {
	tag, err := Confirm([]byte("key"), []byte("transcript"))
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	again, _ := Confirm([]byte("key"), []byte("transcript"))
	if !bytes.Equal(tag, again) {
		t.Fatal("confirm not deterministic")
	}
	other, _ := Confirm([]byte("key2"), []byte("transcript"))
	if bytes.Equal(tag, other) {
		t.Fatal("confirm ignores key")
	}
	if _, err := Confirm(nil, []byte("t")); err == nil {
		t.Fatal("expected error for empty key")
	}
}

func TestRotationByMessages(t *testing.T) {
	now := time.Now()
	r := NewRotation(RotationConfig{Interval: time.Hour, MaxMessages: 3}, now, 1)
	for i := 0; i < 2; i++ {
		if r.Record(now) {
			t.Fatalf("unexpected rekey at message %d", i)
		}
	}
	if !r.Record(now) {
		t.Fatal("expected rekey at message threshold")
	}
	r.Rekeyed(now)
	if r.Epoch() != 2 {
		t.Fatalf("epoch %d, want 2", r.Epoch())
	}
	if r.Due(now) {
		t.Fatal("counters not reset")
	}
}

func TestRotationByTime(t *testing.T) {
	start := time.Now()
	r := NewRotation(RotationConfig{Interval: time.Second}, start, 1)
	if r.Due(start.Add(500 * time.Millisecond)) {
		t.Fatal("unexpected rekey before interval")
	}
	if !r.Due(start.Add(1500 * time.Millisecond)) {
		t.Fatal("expected rekey after interval")
	}
}
