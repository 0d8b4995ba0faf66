package hectx

import "testing"

func TestEncryptDecryptScalarRoundTrip(t *testing.T) {
	priv, pub, err := Provision()
	if err != nil {
		t.Fatal(err)
	}
	ct := pub.EncryptScalar(42)
	if got := priv.DecryptScalar(ct); got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
}

func TestDotProduct(t *testing.T) {
	priv, pub, err := Provision()
	if err != nil {
		t.Fatal(err)
	}
	oneHot := make([]uint64, 8)
	oneHot[3] = 1
	w := []uint64{10, 20, 30, 40, 50, 60, 70, 80}

	ct, err := pub.EncryptVec(oneHot)
	if err != nil {
		t.Fatal(err)
	}
	dot := pub.Dot(ct, w)
	if got := priv.DecryptScalar(dot); got != 40 {
		t.Fatalf("expected dot product 40, got %d", got)
	}
}

func TestSerializeLoadPublic(t *testing.T) {
	priv, pub, err := Provision()
	if err != nil {
		t.Fatal(err)
	}
	blob, err := pub.Serialize()
	if err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadPublic(blob)
	if err != nil {
		t.Fatal(err)
	}
	ct := loaded.EncryptScalar(7)
	if got := priv.DecryptScalar(ct); got != 7 {
		t.Fatalf("expected 7, got %d", got)
	}
}

func TestSerializeLoadPrivate(t *testing.T) {
	priv, _, err := Provision()
	if err != nil {
		t.Fatal(err)
	}
	blob, err := priv.Serialize()
	if err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadPrivate(blob)
	if err != nil {
		t.Fatal(err)
	}
	ct := loaded.EncryptScalar(99)
	if got := loaded.DecryptScalar(ct); got != 99 {
		t.Fatalf("expected 99, got %d", got)
	}
}

func TestSquareAndSub(t *testing.T) {
	priv, pub, err := Provision()
	if err != nil {
		t.Fatal(err)
	}
	ct := pub.EncryptScalar(12)
	diff := pub.SubPlainScalar(ct, 10)
	sq := pub.Square(diff)
	if got := priv.DecryptScalar(sq); got != 4 {
		t.Fatalf("expected (12-10)^2=4, got %d", got)
	}
}
