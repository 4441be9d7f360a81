package main

import (
	"bytes"
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/example/oqskem/pkg/channel"
	"github.com/example/oqskem/pkg/kdf"
	"github.com/example/oqskem/pkg/kem"
)

const demoDomain = "oqskem/demo/v1"

var errConfirm = errors.New("key confirmation mismatch")

// session is one side's view of an established key set.
type session struct {
	keys    kdf.Keys
	channel *channel.Channel
}

func runDemo(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("demo", e)
	var (
		algName    = fs.String("alg", "ML-KEM-768", "algorithm")
		messages   = fs.Int("messages", 8, "messages to exchange")
		rekeyAfter = fs.Uint64("rekey-after", 3, "messages per key set before a fresh encapsulation")
		split      = fs.Bool("split", false, "encapsulate in two steps")
	)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	alg, err := kem.ParseAlgorithm(*algName)
	if err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}

	k, err := kem.New(alg, kem.WithLogger(e.logger))
	if err != nil {
		return err
	}
	defer k.Close()
	if *split && !k.SupportsSplit() {
		return fmt.Errorf("%s: %w", alg, kem.ErrNotSupported)
	}

	rotation := kdf.RotationConfig{Interval: time.Hour, MaxMessages: *rekeyAfter}
	var epoch uint64
	initiator, responder, err := establish(k, *split, epoch, rotation)
	if err != nil {
		return err
	}
	defer func() {
		initiator.keys.Wipe()
		responder.keys.Wipe()
	}()
	fmt.Fprintf(e.stdout, "epoch %d session %x\n", epoch, initiator.channel.SessionID()[:8])

	aad := []byte(alg.Identifier())
	for i := 0; i < *messages; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := []byte(fmt.Sprintf("message %d", i))
		sealed, rekey, err := initiator.channel.Seal(msg, aad)
		if err != nil {
			return err
		}
		got, _, err := responder.channel.Open(sealed, aad)
		if err != nil {
			return err
		}
		if !bytes.Equal(got, msg) {
			return fmt.Errorf("message %d corrupted", i)
		}
		fmt.Fprintf(e.stdout, "epoch %d seq %d %q\n", sealed.Epoch, sealed.Sequence, got)

		if rekey {
			epoch++
			nextI, nextR, err := establish(k, *split, epoch, rotation)
			if err != nil {
				return err
			}
			initiator.keys.Wipe()
			responder.keys.Wipe()
			initiator, responder = nextI, nextR
			e.logger.Info("rekeyed", zap.Uint64("epoch", epoch))
			fmt.Fprintf(e.stdout, "epoch %d session %x\n", epoch, initiator.channel.SessionID()[:8])
		}
	}
	return nil
}

// establish runs one KEM exchange: the responder publishes a key pair, the
// initiator encapsulates to it, and both derive and confirm channel keys.
func establish(k *kem.Kem, split bool, epoch uint64, rotation kdf.RotationConfig) (*session, *session, error) {
	pk, sk, err := k.Keypair()
	if err != nil {
		return nil, nil, err
	}
	defer sk.Wipe()

	var (
		ct       kem.Ciphertext
		ssSender kem.SharedSecret
	)
	if split {
		var es kem.EphemeralSecret
		ct, es, err = k.EncapsulateSplit(pk)
		if err != nil {
			return nil, nil, err
		}
		ssSender, err = k.FinalizeSharedSecret(ct, es, pk)
		es.Wipe()
	} else {
		ct, ssSender, err = k.Encapsulate(pk)
	}
	if err != nil {
		return nil, nil, err
	}
	defer ssSender.Wipe()

	ssReceiver, err := k.Decapsulate(sk, ct)
	if err != nil {
		return nil, nil, err
	}
	defer ssReceiver.Wipe()

	cfg := kdf.Config{Label: demoDomain, RotationInterval: rotation.Interval}
	initiator, err := derive(k.Algorithm(), pk, ct, ssSender, cfg, channel.RoleInitiator, epoch, rotation)
	if err != nil {
		return nil, nil, err
	}
	responder, err := derive(k.Algorithm(), pk, ct, ssReceiver, cfg, channel.RoleResponder, epoch, rotation)
	if err != nil {
		initiator.keys.Wipe()
		return nil, nil, err
	}

	tagI, err := kdf.Confirm(initiator.keys.InitiatorKey, initiator.keys.Transcript)
	if err != nil {
		return nil, nil, err
	}
	tagR, err := kdf.Confirm(responder.keys.InitiatorKey, responder.keys.Transcript)
	if err != nil {
		return nil, nil, err
	}
	if subtle.ConstantTimeCompare(tagI, tagR) != 1 {
		initiator.keys.Wipe()
		responder.keys.Wipe()
		return nil, nil, errConfirm
	}
	return initiator, responder, nil
}

func derive(alg kem.Algorithm, pk kem.PublicKey, ct kem.Ciphertext, ss kem.SharedSecret, cfg kdf.Config, role channel.Role, epoch uint64, rotation kdf.RotationConfig) (*session, error) {
	t := kdf.NewTranscript(demoDomain, alg)
	if err := t.AppendExchange(pk, ct); err != nil {
		return nil, err
	}
	keys, err := kdf.Derive(ss, t.Sum(), cfg)
	if err != nil {
		return nil, err
	}
	ch, err := channel.New(channel.Config{
		Role:     role,
		Keys:     keys,
		Rotation: rotation,
		Epoch:    epoch,
	})
	if err != nil {
		keys.Wipe()
		return nil, err
	}
	return &session{keys: keys, channel: ch}, nil
}
