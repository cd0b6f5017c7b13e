package protocol

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"relaychat/models"
)

var (
	ErrInvalidEnvelope = errors.New("invalid envelope")
	ErrUnknownKind     = errors.New("unknown message kind")
)

const (
	KindChat     = "chat"
	KindPresence = "presence"
)

// Envelope frames one message on the wire: a kind discriminator plus the
// variant payload. Envelopes are newline-delimited JSON, one per line.
type Envelope struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// Marshal wraps msg in an envelope and renders it as a single line
// (terminating newline included).
func Marshal(msg models.Message) ([]byte, error) {
	var kind string
	switch msg.(type) {
	case *models.ChatMessage:
		kind = KindChat
	case *models.PresenceUpdate:
		kind = KindPresence
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownKind, msg)
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}

	line, err := json.Marshal(Envelope{Kind: kind, Payload: payload})
	if err != nil {
		return nil, err
	}

	return append(line, '\n'), nil
}

// Unmarshal decodes one envelope line into its concrete variant.
func Unmarshal(line []byte) (models.Message, error) {
	var env Envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}

	switch env.Kind {
	case KindChat:
		var msg models.ChatMessage
		if err := json.Unmarshal(env.Payload, &msg); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
		}
		return &msg, nil
	case KindPresence:
		var msg models.PresenceUpdate
		if err := json.Unmarshal(env.Payload, &msg); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
		}
		return &msg, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, env.Kind)
	}
}

// Reader decodes a stream of envelopes from a connection.
type Reader struct {
	r *bufio.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Read blocks until the next complete envelope line arrives and returns
// the decoded message. io.EOF signals an orderly close.
func (r *Reader) Read() (models.Message, error) {
	line, err := r.r.ReadBytes('\n')
	if err != nil {
		return nil, err
	}
	return Unmarshal(line)
}

// Writer encodes envelopes onto a connection.
type Writer struct {
	w io.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (w *Writer) Write(msg models.Message) error {
	line, err := Marshal(msg)
	if err != nil {
		return err
	}
	_, err = w.w.Write(line)
	return err
}
