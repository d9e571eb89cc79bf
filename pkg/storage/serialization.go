package storage

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/crypto/blake2b"
)

// Serializer selects the record encoding used by BadgerEngine.
type Serializer string

const (
	SerializerGob     Serializer = "gob"
	SerializerMsgpack Serializer = "msgpack"
)

// Every stored record starts with magic, a format version and the serializer
// id, so an engine can read records written under another serializer.
const (
	recordMagic       = "\xffGXE"
	recordVersion     = byte(1)
	serializerIDGob   = byte(1)
	serializerIDMsgpk = byte(2)
)

// propertyDigestSize is the number of blake2b bytes kept in property index keys.
const propertyDigestSize = 16

func init() {
	// gob needs concrete types registered for interface{} property values.
	gob.Register(int64(0))
	gob.Register(float64(0))
	gob.Register("")
	gob.Register(true)
	gob.Register(time.Time{})
	gob.Register([]interface{}{})
	gob.Register([]string{})
	gob.Register(map[string]interface{}{})
}

// ParseSerializer normalizes and validates a serializer name.
func ParseSerializer(name string) (Serializer, error) {
	s := Serializer(strings.ToLower(strings.TrimSpace(name)))
	switch s {
	case "":
		return SerializerGob, nil
	case SerializerGob, SerializerMsgpack:
		return s, nil
	}
	return "", fmt.Errorf("unsupported storage serializer: %s", name)
}

func (s Serializer) id() (byte, error) {
	switch s {
	case SerializerGob:
		return serializerIDGob, nil
	case SerializerMsgpack:
		return serializerIDMsgpk, nil
	}
	return 0, fmt.Errorf("unsupported storage serializer: %s", s)
}

func serializerFromID(id byte) (Serializer, error) {
	switch id {
	case serializerIDGob:
		return SerializerGob, nil
	case serializerIDMsgpk:
		return SerializerMsgpack, nil
	}
	return "", fmt.Errorf("unsupported storage serializer id: %d", id)
}

func (s Serializer) encode(v any) ([]byte, error) {
	id, err := s.id()
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch s {
	case SerializerGob:
		var buf bytes.Buffer
		if err := gob.NewEncoder(&buf).Encode(v); err != nil {
			return nil, err
		}
		payload = buf.Bytes()
	case SerializerMsgpack:
		payload, err = msgpack.Marshal(v)
		if err != nil {
			return nil, err
		}
	}

	out := make([]byte, 0, len(recordMagic)+2+len(payload))
	out = append(out, recordMagic...)
	out = append(out, recordVersion, id)
	return append(out, payload...), nil
}

func decodeRecord(data []byte, v any) error {
	if len(data) < len(recordMagic)+2 || string(data[:len(recordMagic)]) != recordMagic {
		return fmt.Errorf("%w: missing record header", ErrInvalidData)
	}
	if version := data[len(recordMagic)]; version != recordVersion {
		return fmt.Errorf("unsupported record version: %d", version)
	}
	s, err := serializerFromID(data[len(recordMagic)+1])
	if err != nil {
		return err
	}
	payload := data[len(recordMagic)+2:]
	switch s {
	case SerializerGob:
		return gob.NewDecoder(bytes.NewReader(payload)).Decode(v)
	default:
		return msgpack.Unmarshal(payload, v)
	}
}

func (s Serializer) encodeNode(n *Node) ([]byte, error) {
	data, err := s.encode(n)
	if err != nil {
		return nil, fmt.Errorf("encoding node: %w", err)
	}
	return data, nil
}

func decodeNode(data []byte) (*Node, error) {
	var node Node
	if err := decodeRecord(data, &node); err != nil {
		return nil, fmt.Errorf("decoding node: %w", err)
	}
	if node.Properties == nil {
		node.Properties = map[string]any{}
	}
	return &node, nil
}

func (s Serializer) encodeEdge(e *Edge) ([]byte, error) {
	data, err := s.encode(e)
	if err != nil {
		return nil, fmt.Errorf("encoding edge: %w", err)
	}
	return data, nil
}

func decodeEdge(data []byte) (*Edge, error) {
	var edge Edge
	if err := decodeRecord(data, &edge); err != nil {
		return nil, fmt.Errorf("decoding edge: %w", err)
	}
	if edge.Properties == nil {
		edge.Properties = map[string]any{}
	}
	return &edge, nil
}

// propertyDigest hashes a normalized property value for use in index keys.
// Map keys are sorted so equal maps hash equally; numeric widths are
// normalized so 1, int64(1) and 1.0 share a digest.
func propertyDigest(value any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(normalizeProperty(value)); err != nil {
		return nil, fmt.Errorf("hashing property value: %w", err)
	}
	sum := blake2b.Sum256(buf.Bytes())
	return sum[:propertyDigestSize], nil
}
