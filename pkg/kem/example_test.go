package kem_test

import (
	"fmt"
	"log"

	"github.com/example/oqskem/pkg/kem"
)

func Example() {
	kem.Init()
	defer kem.Cleanup()

	k, err := kem.New(kem.MLKEM768)
	if err != nil {
		log.Fatal(err)
	}
	defer k.Close()

	// Receiver.
	pk, sk, err := k.Keypair()
	if err != nil {
		log.Fatal(err)
	}

	// Sender, holding only the public key bytes.
	pkRef, ok := k.PublicKeyFromBytes(pk.Bytes())
	if !ok {
		log.Fatal("bad public key length")
	}
	ct, senderSecret, err := k.Encapsulate(pkRef)
	if err != nil {
		log.Fatal(err)
	}

	// Receiver again.
	receiverSecret, err := k.Decapsulate(sk, ct)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(senderSecret.Equal(receiverSecret), receiverSecret.Len())
	// Output: true 32
}

func ExampleParseAlgorithm() {
	alg, err := kem.ParseAlgorithm("kyber1024")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(alg, alg.Family())
	// Output: Kyber1024 Kyber
}
