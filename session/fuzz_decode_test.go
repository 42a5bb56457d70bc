package session

import (
	"testing"
)

// FuzzSessionDecode feeds arbitrary bytes to the decoder.
// Goal: no panics, graceful error handling.
func FuzzSessionDecode(f *testing.F) {
	encoded, err := Encode(&Session{
		UserID:    "user1",
		Name:      "Administrador",
		Email:     "admin@exemplo.com",
		Role:      "admin",
		CreatedAt: 1700000000,
	})
	if err == nil {
		f.Add(encoded)
	}

	f.Add([]byte{})
	f.Add([]byte{0})
	f.Add([]byte{CurrentSchemaVersion})
	f.Add([]byte{255, 255, 255})
	f.Add([]byte(`{"id":"1","nome":"Ana","email":"ana@x.com","role":"pendente"}`))
	f.Add([]byte(`{"id":`))

	if len(encoded) > 10 {
		f.Add(encoded[:10])
	}

	f.Fuzz(func(t *testing.T, data []byte) {
		s, err := Decode(data)
		if err != nil {
			return
		}

		if s.SchemaVersion == CurrentSchemaVersion {
			again, err := Encode(s)
			if err != nil {
				t.Fatalf("re-encode of decoded session failed: %v", err)
			}
			back, err := Decode(again)
			if err != nil {
				t.Fatalf("decode of re-encoded session failed: %v", err)
			}
			if *back != *s {
				t.Fatalf("round trip mismatch: %+v != %+v", back, s)
			}
		}
	})
}
