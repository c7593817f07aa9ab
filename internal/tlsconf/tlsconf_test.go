package tlsconf

import "testing"

func TestServerConfigProducesUsableCertificates(t *testing.T) {
	serverA, clientA, err := ServerConfig("correct horse")
	if err != nil {
		t.Fatalf("server config: %v", err)
	}
	if len(serverA.Certificates) != 1 || len(serverA.Certificates[0].Certificate) == 0 {
		t.Fatal("expected a non-empty leaf certificate")
	}
	if clientA.VerifyPeerCertificate == nil {
		t.Fatal("expected client config to verify the server's public key")
	}
}

func TestDifferentPassphrasesProduceDifferentKeys(t *testing.T) {
	keyA, err := deriveKey("passphrase-one")
	if err != nil {
		t.Fatalf("derive a: %v", err)
	}
	keyB, err := deriveKey("passphrase-two")
	if err != nil {
		t.Fatalf("derive b: %v", err)
	}
	if keyA.D.Cmp(keyB.D) == 0 {
		t.Fatal("expected different passphrases to derive different private keys")
	}
}

func TestSamePassphraseProducesSameKey(t *testing.T) {
	keyA, err := deriveKey("same-passphrase")
	if err != nil {
		t.Fatalf("derive a: %v", err)
	}
	keyB, err := deriveKey("same-passphrase")
	if err != nil {
		t.Fatalf("derive b: %v", err)
	}
	if keyA.D.Cmp(keyB.D) != 0 {
		t.Fatal("expected same passphrase to derive the same private key")
	}
}
