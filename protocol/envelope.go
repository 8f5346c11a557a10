// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"fmt"

	"github.com/bureau-foundation/sandbox-invoke/lib/codec"
)

// Envelope is the wire form of a message: {name, args}.
type Envelope struct {
	Name string             `cbor:"name"`
	Args []codec.RawMessage `cbor:"args"`
}

// DecodeError reports an envelope that does not form a valid message:
// an unknown name, a wrong argument count, or an argument of the wrong
// type.
type DecodeError struct {
	Name   string
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("protocol: message %q: %s", e.Name, e.Reason)
}

// Encode converts a message to its envelope.
func Encode(message Message) (Envelope, error) {
	arguments := message.arguments()
	envelope := Envelope{
		Name: message.Kind().String(),
		Args: make([]codec.RawMessage, len(arguments)),
	}
	for index, argument := range arguments {
		data, err := codec.Marshal(argument)
		if err != nil {
			return Envelope{}, fmt.Errorf("encoding %s argument %d: %w", envelope.Name, index, err)
		}
		envelope.Args[index] = data
	}
	return envelope, nil
}

// Decode converts an envelope to its concrete message.
func Decode(envelope Envelope) (Message, error) {
	kind, ok := ParseKind(envelope.Name)
	if !ok {
		return nil, &DecodeError{Name: envelope.Name, Reason: "unknown message name"}
	}
	return decoders[kind](argumentList{kind: kind, raw: envelope.Args})
}

type decodeFunc func(argumentList) (Message, error)

// decoders has one entry per Kind. The package tests fail if a Kind is
// missing.
var decoders = [kindLimit]decodeFunc{
	KindStart:           decodeStart,
	KindInvoke:          decodeInvoke,
	KindRunning:         decodeRunning,
	KindDone:            decodeDone,
	KindFault:           decodeFault,
	KindXRayException:   decodeXRayException,
	KindUserInitStart:   decodeMarker(UserInitStart{}),
	KindUserInitEnd:     decodeMarker(UserInitEnd{}),
	KindUserInvokeStart: decodeMarker(UserInvokeStart{}),
	KindUserInvokeEnd:   decodeMarker(UserInvokeEnd{}),
	KindConsole:         decodeConsole,
	KindLog:             decodeLog,
	KindRemaining:       decodeRemaining,
}

// argumentList is the positional argument list of one envelope.
type argumentList struct {
	kind Kind
	raw  []codec.RawMessage
}

func (a argumentList) arityError(want string) error {
	return &DecodeError{
		Name:   a.kind.String(),
		Reason: fmt.Sprintf("got %d arguments, want %s", len(a.raw), want),
	}
}

func (a argumentList) expect(count int) error {
	if len(a.raw) != count {
		return a.arityError(fmt.Sprint(count))
	}
	return nil
}

// decode unmarshals argument index into target.
func (a argumentList) decode(index int, target any) error {
	if err := codec.Unmarshal(a.raw[index], target); err != nil {
		diagnostic, diagnoseErr := codec.Diagnose(a.raw[index])
		if diagnoseErr != nil {
			diagnostic = fmt.Sprintf("%x", []byte(a.raw[index]))
		}
		return &DecodeError{
			Name:   a.kind.String(),
			Reason: fmt.Sprintf("argument %d (%s): %v", index, diagnostic, err),
		}
	}
	return nil
}

// decodeBytes accepts either a byte string or a text string, since
// bootstraps differ in how they send opaque payloads. Null decodes to nil.
func (a argumentList) decodeBytes(index int) ([]byte, error) {
	var data []byte
	if err := codec.Unmarshal(a.raw[index], &data); err == nil {
		return data, nil
	}
	var text string
	if err := a.decode(index, &text); err != nil {
		return nil, err
	}
	return []byte(text), nil
}

func decodeStart(arguments argumentList) (Message, error) {
	if err := arguments.expect(5); err != nil {
		return nil, err
	}
	var message Start
	for index, target := range []any{&message.InvocationID, &message.Mode, &message.Handler, &message.SuppressInit, &message.Credentials} {
		if err := arguments.decode(index, target); err != nil {
			return nil, err
		}
	}
	return message, nil
}

func decodeInvoke(arguments argumentList) (Message, error) {
	switch len(arguments.raw) {
	case 6:
		var message Invoke
		if err := arguments.decode(0, &message.InvocationID); err != nil {
			return nil, err
		}
		if err := arguments.decode(1, &message.Credentials); err != nil {
			return nil, err
		}
		event, err := arguments.decodeBytes(2)
		if err != nil {
			return nil, err
		}
		message.Event = event
		for offset, target := range []any{&message.Context, &message.InvokedFunctionARN, &message.TraceID} {
			if err := arguments.decode(3+offset, target); err != nil {
				return nil, err
			}
		}
		return message, nil
	case 2:
		event, err := arguments.decodeBytes(0)
		if err != nil {
			return nil, err
		}
		invocationContext, err := arguments.decodeBytes(1)
		if err != nil {
			return nil, err
		}
		return ChainedInvoke{Event: event, Context: invocationContext}, nil
	case 1:
		var message InvokeAccepted
		if err := arguments.decode(0, &message.Status); err != nil {
			return nil, err
		}
		return message, nil
	default:
		return nil, arguments.arityError("6, 2, or 1")
	}
}

func decodeRunning(arguments argumentList) (Message, error) {
	if err := arguments.expect(1); err != nil {
		return nil, err
	}
	var message Running
	if err := arguments.decode(0, &message.InvocationID); err != nil {
		return nil, err
	}
	return message, nil
}

func decodeDone(arguments argumentList) (Message, error) {
	if err := arguments.expect(3); err != nil {
		return nil, err
	}
	var message Done
	if err := arguments.decode(0, &message.InvocationID); err != nil {
		return nil, err
	}
	var errorType *string
	if err := arguments.decode(1, &errorType); err != nil {
		return nil, err
	}
	if errorType != nil {
		message.ErrorType = *errorType
	}
	payload, err := arguments.decodeBytes(2)
	if err != nil {
		return nil, err
	}
	message.Payload = payload
	return message, nil
}

func decodeFault(arguments argumentList) (Message, error) {
	if err := arguments.expect(4); err != nil {
		return nil, err
	}
	var message Fault
	for index, target := range []any{&message.InvocationID, &message.Message, &message.Exception, &message.Trace} {
		if err := arguments.decode(index, target); err != nil {
			return nil, err
		}
	}
	return message, nil
}

func decodeXRayException(arguments argumentList) (Message, error) {
	if err := arguments.expect(1); err != nil {
		return nil, err
	}
	var message XRayException
	if err := arguments.decode(0, &message.Payload); err != nil {
		return nil, err
	}
	return message, nil
}

func decodeMarker(marker Message) decodeFunc {
	return func(arguments argumentList) (Message, error) {
		if err := arguments.expect(0); err != nil {
			return nil, err
		}
		return marker, nil
	}
}

func decodeConsole(arguments argumentList) (Message, error) {
	if err := arguments.expect(1); err != nil {
		return nil, err
	}
	var message Console
	if err := arguments.decode(0, &message.Text); err != nil {
		return nil, err
	}
	return message, nil
}

func decodeLog(arguments argumentList) (Message, error) {
	if err := arguments.expect(1); err != nil {
		return nil, err
	}
	data, err := arguments.decodeBytes(0)
	if err != nil {
		return nil, err
	}
	return Log{Data: data}, nil
}

func decodeRemaining(arguments argumentList) (Message, error) {
	switch len(arguments.raw) {
	case 0:
		return RemainingQuery{}, nil
	case 1:
		var message Remaining
		if err := arguments.decode(0, &message.Milliseconds); err != nil {
			return nil, err
		}
		return message, nil
	default:
		return nil, arguments.arityError("0 or 1")
	}
}
