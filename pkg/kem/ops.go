package kem

// Keypair generates a fresh key pair.
func (k *Kem) Keypair() (PublicKey, SecretKey, error) {
	d, done, err := k.acquire()
	if err != nil {
		return PublicKey{}, SecretKey{}, err
	}
	defer done()
	keypair := d.Keypair
	if keypair == nil {
		keypair = d.KeypairAsync
	}
	if keypair == nil {
		return PublicKey{}, SecretKey{}, k.fail("keypair", ErrNotSupported)
	}

	pk := allocate(k.LengthPublicKey())
	sk := allocate(k.LengthSecretKey())
	if err := statusToError("keypair", keypair(pk.spare(), sk.spare())); err != nil {
		pk.discard()
		sk.discard()
		return PublicKey{}, SecretKey{}, k.fail("keypair", err)
	}
	return PublicKey{pk.commit()}, SecretKey{sk.commit()}, nil
}

// Encapsulate produces a ciphertext and the shared secret it carries for
// the holder of pk.
func (k *Kem) Encapsulate(pk PublicKeyBytes) (Ciphertext, SharedSecret, error) {
	d, done, err := k.acquire()
	if err != nil {
		return Ciphertext{}, SharedSecret{}, err
	}
	defer done()

	pub := publicKeyOf(pk)
	if err := checkLength(KindPublicKey, k.LengthPublicKey(), pub); err != nil {
		return Ciphertext{}, SharedSecret{}, k.fail("encaps", err)
	}
	encaps := d.Encaps
	if encaps == nil {
		encaps = d.EncapsAsync
	}
	if encaps == nil {
		return Ciphertext{}, SharedSecret{}, k.fail("encaps", ErrNotSupported)
	}

	ct := allocate(k.LengthCiphertext())
	ss := allocate(k.LengthSharedSecret())
	if err := statusToError("encaps", encaps(ct.spare(), ss.spare(), pub)); err != nil {
		ct.discard()
		ss.discard()
		return Ciphertext{}, SharedSecret{}, k.fail("encaps", err)
	}
	return Ciphertext{ct.commit()}, SharedSecret{ss.commit()}, nil
}

// EncapsulateSplit runs the first half of a split encapsulation. It returns
// the ciphertext and the ephemeral secret that FinalizeSharedSecret turns
// into the shared secret. It fails with ErrNotSupported when the algorithm
// has no split path.
func (k *Kem) EncapsulateSplit(pk PublicKeyBytes) (Ciphertext, EphemeralSecret, error) {
	d, done, err := k.acquire()
	if err != nil {
		return Ciphertext{}, EphemeralSecret{}, err
	}
	defer done()

	pub := publicKeyOf(pk)
	if err := checkLength(KindPublicKey, k.LengthPublicKey(), pub); err != nil {
		return Ciphertext{}, EphemeralSecret{}, k.fail("encaps_ciphertext", err)
	}
	if d.EncapsCiphertext == nil {
		return Ciphertext{}, EphemeralSecret{}, k.fail("encaps_ciphertext", ErrNotSupported)
	}

	ct := allocate(k.LengthCiphertext())
	es := allocate(k.LengthEphemeralSecret())
	if err := statusToError("encaps_ciphertext", d.EncapsCiphertext(ct.spare(), es.spare(), pub)); err != nil {
		ct.discard()
		es.discard()
		return Ciphertext{}, EphemeralSecret{}, k.fail("encaps_ciphertext", err)
	}
	return Ciphertext{ct.commit()}, EphemeralSecret{es.commit()}, nil
}

// FinalizeSharedSecret completes a split encapsulation. The public key is
// validated first, then the ciphertext, then the ephemeral secret.
func (k *Kem) FinalizeSharedSecret(ct CiphertextBytes, es EphemeralSecretBytes, pk PublicKeyBytes) (SharedSecret, error) {
	d, done, err := k.acquire()
	if err != nil {
		return SharedSecret{}, err
	}
	defer done()

	pub, c, eph := publicKeyOf(pk), ciphertextOf(ct), ephemeralSecretOf(es)
	if err := checkLength(KindPublicKey, k.LengthPublicKey(), pub); err != nil {
		return SharedSecret{}, k.fail("encaps_shared_secret", err)
	}
	if err := checkLength(KindCiphertext, k.LengthCiphertext(), c); err != nil {
		return SharedSecret{}, k.fail("encaps_shared_secret", err)
	}
	if err := checkLength(KindEphemeralSecret, k.LengthEphemeralSecret(), eph); err != nil {
		return SharedSecret{}, k.fail("encaps_shared_secret", err)
	}
	if d.EncapsSharedSecret == nil {
		return SharedSecret{}, k.fail("encaps_shared_secret", ErrNotSupported)
	}

	ss := allocate(k.LengthSharedSecret())
	if err := statusToError("encaps_shared_secret", d.EncapsSharedSecret(ss.spare(), c, eph, pub)); err != nil {
		ss.discard()
		return SharedSecret{}, k.fail("encaps_shared_secret", err)
	}
	return SharedSecret{ss.commit()}, nil
}

// Decapsulate recovers the shared secret carried by ct. The secret key is
// validated before the ciphertext.
//
// IND-CCA algorithms reject malformed ciphertexts implicitly: a tampered
// ciphertext of the right length yields an unrelated shared secret rather
// than an error.
func (k *Kem) Decapsulate(sk SecretKeyBytes, ct CiphertextBytes) (SharedSecret, error) {
	d, done, err := k.acquire()
	if err != nil {
		return SharedSecret{}, err
	}
	defer done()

	priv, c := secretKeyOf(sk), ciphertextOf(ct)
	if err := checkLength(KindSecretKey, k.LengthSecretKey(), priv); err != nil {
		return SharedSecret{}, k.fail("decaps", err)
	}
	if err := checkLength(KindCiphertext, k.LengthCiphertext(), c); err != nil {
		return SharedSecret{}, k.fail("decaps", err)
	}
	if d.Decaps == nil {
		return SharedSecret{}, k.fail("decaps", ErrNotSupported)
	}

	ss := allocate(k.LengthSharedSecret())
	if err := statusToError("decaps", d.Decaps(ss.spare(), c, priv)); err != nil {
		ss.discard()
		return SharedSecret{}, k.fail("decaps", err)
	}
	return SharedSecret{ss.commit()}, nil
}

// The helpers below tolerate nil interfaces, which then fail validation.

func publicKeyOf(b PublicKeyBytes) []byte {
	if b == nil {
		return nil
	}
	return b.publicKeyBytes()
}

func secretKeyOf(b SecretKeyBytes) []byte {
	if b == nil {
		return nil
	}
	return b.secretKeyBytes()
}

func ciphertextOf(b CiphertextBytes) []byte {
	if b == nil {
		return nil
	}
	return b.ciphertextBytes()
}

func ephemeralSecretOf(b EphemeralSecretBytes) []byte {
	if b == nil {
		return nil
	}
	return b.ephemeralSecretBytes()
}
