package session

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
)

const (
	// CurrentSchemaVersion is the binary layout written by Encode.
	CurrentSchemaVersion uint8 = 2
	// LegacySchemaVersion marks sessions decoded from the JSON document written by
	// earlier dashboard releases.
	LegacySchemaVersion uint8 = 1

	legacyJSONPrefix = '{'

	// MaxTextBytes is the longest name or email a session can carry.
	MaxTextBytes = math.MaxUint16
	// MaxIDBytes is the longest user id or role a session can carry.
	MaxIDBytes = math.MaxUint8
)

var (
	// ErrUnsupportedSchema is returned for version bytes this package does not know.
	ErrUnsupportedSchema = errors.New("unsupported session schema version")
	// ErrCorruptSession is returned when a stored session cannot be decoded.
	ErrCorruptSession = errors.New("corrupt session")
)

// legacySession is the JSON shape of pk_system_current_user before the binary format.
type legacySession struct {
	ID    string `json:"id"`
	Name  string `json:"nome"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Encode writes s in the current binary layout:
//
//	version | uid(u8 len) | name(u16 len) | email(u16 len) | role(u8 len) | createdAt(i64)
func Encode(s *Session) ([]byte, error) {
	if s == nil {
		return nil, errors.New("nil session")
	}

	var buf bytes.Buffer
	buf.WriteByte(CurrentSchemaVersion)

	if err := writeShort(&buf, "userID", s.UserID); err != nil {
		return nil, err
	}
	if err := writeLong(&buf, "name", s.Name); err != nil {
		return nil, err
	}
	if err := writeLong(&buf, "email", s.Email); err != nil {
		return nil, err
	}
	if err := writeShort(&buf, "role", s.Role); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, s.CreatedAt); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode reads either the binary layout or the legacy JSON document.
// SchemaVersion on the result reports which one was found.
func Decode(data []byte) (*Session, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrCorruptSession)
	}

	switch data[0] {
	case CurrentSchemaVersion:
		return decodeV2(data[1:])
	case legacyJSONPrefix:
		return decodeLegacy(data)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedSchema, data[0])
	}
}

// EncodeString encodes s for a string-valued store.
func EncodeString(s *Session) (string, error) {
	raw, err := Encode(s)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeString is the inverse of EncodeString. Legacy JSON values, which were
// stored verbatim, are accepted as well.
func DecodeString(value string) (*Session, error) {
	if value != "" && value[0] == legacyJSONPrefix {
		return decodeLegacy([]byte(value))
	}

	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSession, err)
	}
	return Decode(raw)
}

func decodeV2(data []byte) (*Session, error) {
	r := bytes.NewReader(data)
	s := &Session{SchemaVersion: CurrentSchemaVersion}

	var err error
	if s.UserID, err = readShort(r); err != nil {
		return nil, err
	}
	if s.Name, err = readLong(r); err != nil {
		return nil, err
	}
	if s.Email, err = readLong(r); err != nil {
		return nil, err
	}
	if s.Role, err = readShort(r); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.BigEndian, &s.CreatedAt); err != nil {
		return nil, fmt.Errorf("%w: createdAt: %v", ErrCorruptSession, err)
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCorruptSession, r.Len())
	}
	if s.UserID == "" {
		return nil, fmt.Errorf("%w: empty userID", ErrCorruptSession)
	}

	return s, nil
}

func decodeLegacy(data []byte) (*Session, error) {
	var legacy legacySession
	if err := json.Unmarshal(data, &legacy); err != nil {
		return nil, fmt.Errorf("%w: legacy json: %v", ErrCorruptSession, err)
	}
	if legacy.ID == "" {
		return nil, fmt.Errorf("%w: legacy session without id", ErrCorruptSession)
	}

	return &Session{
		SchemaVersion: LegacySchemaVersion,
		UserID:        legacy.ID,
		Name:          legacy.Name,
		Email:         legacy.Email,
		Role:          legacy.Role,
	}, nil
}

func writeShort(buf *bytes.Buffer, field, v string) error {
	if len(v) > MaxIDBytes {
		return fmt.Errorf("%s too long", field)
	}
	buf.WriteByte(byte(len(v)))
	buf.WriteString(v)
	return nil
}

func writeLong(buf *bytes.Buffer, field, v string) error {
	if len(v) > MaxTextBytes {
		return fmt.Errorf("%s too long", field)
	}
	if err := binary.Write(buf, binary.BigEndian, uint16(len(v))); err != nil {
		return err
	}
	buf.WriteString(v)
	return nil
}

func readShort(r *bytes.Reader) (string, error) {
	n, err := r.ReadByte()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCorruptSession, err)
	}
	return readN(r, int(n))
}

func readLong(r *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", fmt.Errorf("%w: %v", ErrCorruptSession, err)
	}
	return readN(r, int(n))
}

func readN(r *bytes.Reader, n int) (string, error) {
	if n > r.Len() {
		return "", fmt.Errorf("%w: length %d exceeds payload", ErrCorruptSession, n)
	}
	out := make([]byte, n)
	if _, err := io.ReadFull(r, out); err != nil {
		return "", fmt.Errorf("%w: %v", ErrCorruptSession, err)
	}
	return string(out), nil
}
