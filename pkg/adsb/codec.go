package adsb

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec encodes envelopes for the push channel.
type Codec interface {
	Name() string
	// Binary reports whether frames must be sent as binary websocket messages.
	Binary() bool
	Encode(Envelope) ([]byte, error)
	Decode([]byte) (Envelope, error)
}

// CodecFor returns the codec registered under name ("json" or "msgpack").
// An empty name selects JSON.
func CodecFor(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSONCodec{}, nil
	case "msgpack":
		return MsgpackCodec{}, nil
	default:
		return nil, fmt.Errorf("unsupported feed encoding %q", name)
	}
}

// DecodeEvent decodes and validates one frame.
func DecodeEvent(c Codec, frame []byte) (Event, error) {
	env, err := c.Decode(frame)
	if err != nil {
		return Event{}, err
	}
	return env.ToEvent()
}

// JSONCodec is the default text codec.
type JSONCodec struct{}

func (JSONCodec) Name() string { return "json" }
func (JSONCodec) Binary() bool { return false }

func (JSONCodec) Encode(env Envelope) ([]byte, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to encode envelope: %w", err)
	}
	return data, nil
}

// nonFinite matches the bare NaN/Infinity literals Python's json module emits for
// fields the decoder has not filled in yet.
var nonFinite = regexp.MustCompile(`([:\[,]\s*)-?(NaN|Infinity)\b`)

func (JSONCodec) Decode(frame []byte) (Envelope, error) {
	var env Envelope
	err := json.Unmarshal(frame, &env)
	if err != nil && nonFinite.Match(frame) {
		env = Envelope{}
		err = json.Unmarshal(nonFinite.ReplaceAll(frame, []byte("${1}null")), &env)
	}
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to decode envelope: %w", err)
	}
	return env, nil
}

// MsgpackCodec is the compact binary codec.
type MsgpackCodec struct{}

func (MsgpackCodec) Name() string { return "msgpack" }
func (MsgpackCodec) Binary() bool { return true }

func (MsgpackCodec) Encode(env Envelope) ([]byte, error) {
	data, err := msgpack.Marshal(&env)
	if err != nil {
		return nil, fmt.Errorf("failed to encode envelope: %w", err)
	}
	return data, nil
}

func (MsgpackCodec) Decode(frame []byte) (Envelope, error) {
	var env Envelope
	if err := msgpack.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("failed to decode envelope: %w", err)
	}
	return env, nil
}
