package key

import (
	"errors"
	"testing"
)

func TestIdentityIsPermutation(t *testing.T) {
	if !Validate(Identity()) {
		t.Fatal("identity key must validate")
	}
}

func TestGenerateIsPermutation(t *testing.T) {
	for i := 0; i < 20; i++ {
		k, err := Generate()
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if !Validate(k) {
			t.Fatalf("generated key failed validation: %v", k)
		}
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		b    []byte
		want bool
	}{
		{"identity", Identity(), true},
		{"too short", make([]byte, 255), false},
		{"too long", make([]byte, 257), false},
		{"duplicate value", func() []byte {
			b := []byte(Identity())
			b[1] = b[0]
			return b
		}(), false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := Validate(c.b); got != c.want {
				t.Errorf("Validate(%v) = %v, want %v", c.name, got, c.want)
			}
		})
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	k, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	s := Encode(k)
	decoded, err := Decode(s)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if string(decoded) != string(k) {
		t.Fatalf("round trip mismatch: got %v, want %v", decoded, k)
	}
}

func TestDecodeRejectsTruncated(t *testing.T) {
	k, _ := Generate()
	s := Encode(k)
	_, err := Decode(s[:len(s)-4])
	if !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
}

func TestDecodeRejectsNonPermutation(t *testing.T) {
	b := make([]byte, Length) // all zeros: not a permutation
	s := Encode(Key(b))
	_, err := Decode(s)
	if !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode("not valid base64url!!")
	if !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
}
