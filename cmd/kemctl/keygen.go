package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/awnumar/memguard"
	"go.uber.org/zap"

	"github.com/example/oqskem/internal/platform/policy"
	"github.com/example/oqskem/internal/platform/secrets"
	"github.com/example/oqskem/pkg/kem"
)

func runKeygen(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("keygen", e)
	var (
		algName   = fs.String("alg", "ML-KEM-768", "algorithm")
		minLevel  = fs.Int("min-level", 1, "minimum claimed NIST level admitted")
		vaultAddr = fs.String("vault-addr", envOr("VAULT_ADDR", ""), "Vault address; empty writes files instead")
		mount     = fs.String("vault-mount", "secret", "KV v2 mount")
		path      = fs.String("vault-path", "", "KV v2 path for the key pair")
		out       = fs.String("out", "", "file prefix for <out>.pub and <out>.key when Vault is not used")
	)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	alg, err := kem.ParseAlgorithm(*algName)
	if err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}

	admission, err := policy.NewAlgorithmPolicy(ctx, policy.AlgorithmConfig{MinNISTLevel: *minLevel})
	if err != nil {
		return err
	}
	if err := admission.Require(ctx, alg); err != nil {
		return err
	}

	k, err := kem.New(alg, kem.WithLogger(e.logger))
	if err != nil {
		return err
	}
	defer k.Close()

	pk, sk, err := k.Keypair()
	if err != nil {
		return err
	}
	defer sk.Wipe()
	fingerprint := secrets.Fingerprint(pk.Bytes())

	switch {
	case *vaultAddr != "":
		if *path == "" {
			return fmt.Errorf("%w: -vault-path required with -vault-addr", errUsage)
		}
		mgr, err := secrets.New(secrets.Config{Address: *vaultAddr, MountPath: *mount})
		if err != nil {
			return err
		}
		if _, err := mgr.StoreKeyPair(ctx, *path, alg, pk, sk); err != nil {
			return err
		}
		e.logger.Info("key pair stored", zap.String("path", *path), zap.String("fingerprint", fingerprint))
	case *out != "":
		if err := writeKeyFiles(*out, pk, sk); err != nil {
			return err
		}
		e.logger.Info("key pair written", zap.String("prefix", *out), zap.String("fingerprint", fingerprint))
	default:
		return fmt.Errorf("%w: one of -vault-addr or -out is required", errUsage)
	}

	fmt.Fprintf(e.stdout, "algorithm:   %s\nfingerprint: %s\npublic key:  %d bytes\n", alg, fingerprint, pk.Len())
	return nil
}

// writeKeyFiles stores hex encoded keys. The secret key is staged in a
// locked buffer so it never sits in swappable memory as hex.
func writeKeyFiles(prefix string, pk kem.PublicKey, sk kem.SecretKey) error {
	if err := os.WriteFile(prefix+".pub", []byte(hex.EncodeToString(pk.Bytes())+"\n"), 0o644); err != nil {
		return fmt.Errorf("write public key: %w", err)
	}

	raw := sk.Bytes()
	encoded := memguard.NewBuffer(hex.EncodedLen(len(raw)) + 1)
	defer encoded.Destroy()
	hex.Encode(encoded.Bytes(), raw)
	memguard.WipeBytes(raw)
	encoded.Bytes()[encoded.Size()-1] = '\n'

	if err := os.WriteFile(prefix+".key", encoded.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write secret key: %w", err)
	}
	return nil
}
