package actor

import (
	"crypto/hmac"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
)

// frameSeparator delimits the four fields of a wire frame:
// magic ":::" sig ":::" len(body) ":::" body.
const frameSeparator = ":::"

// wireHeader is the JSON body carried inside a frame:
// {"message": base64(payload), "sender": [id,host,port],
// "sender_addr": "<repr>", "target": "<repr>?"}.
type wireHeader struct {
	Message    string `json:"message"`
	Sender     tuple  `json:"sender"`
	SenderAddr string `json:"sender_addr"`
	Target     string `json:"target,omitempty"`
}

// Encode serializes payload for transmission from sender to target under
// sec, producing the full wire frame.
func Encode(payload Message, sender, target Address, sec SecurityConfig) ([]byte, error) {
	inner, err := wrapMessage(payload)
	if err != nil {
		return nil, err
	}

	rawMsg, err := json.Marshal(inner)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotSerializable, err)
	}

	header := wireHeader{
		Message:    base64.StdEncoding.EncodeToString(rawMsg),
		Sender:     sender.toTuple(),
		SenderAddr: sender.String(),
		Target:     target.ID,
	}

	body, err := json.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotSerializable, err)
	}

	sig, err := signBody(body, sec)
	if err != nil {
		return nil, err
	}

	frame := make([]byte, 0, len(sec.magic())+len(sig)+len(body)+3*len(frameSeparator)+8)
	frame = append(frame, sec.magic()...)
	frame = append(frame, frameSeparator...)
	frame = append(frame, sig...)
	frame = append(frame, frameSeparator...)
	frame = append(frame, strconv.Itoa(len(body))...)
	frame = append(frame, frameSeparator...)
	frame = append(frame, body...)

	return frame, nil
}

func signBody(body []byte, sec SecurityConfig) (string, error) {
	hashFn := sec.hashFn()
	mac := hmac.New(hashFn, sec.HMACKey)
	if mac.Size() != hashFn().Size() {
		return "", ErrHashSizeMismatch
	}

	if _, err := mac.Write(body); err != nil {
		return "", fmt.Errorf("hmac write: %w", err)
	}

	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// DecodedEnvelope is the result of decoding a wire frame: the payload, the
// sender address reconstructed from the wire tuple, and the raw target id
// string the frame was addressed to (empty if none was set).
type DecodedEnvelope struct {
	Payload  Message
	Sender   Address
	TargetID string
}

// Decode parses and authenticates a wire frame under sec. It rejects frames
// with a magic mismatch, invalid signature,
// malformed structure, or a declared body length exceeding sec's
// BufferSize before trusting the rest of the frame.
func Decode(data []byte, sec SecurityConfig) (DecodedEnvelope, error) {
	parts, ok := splitFrame(data)
	if !ok {
		return DecodedEnvelope{}, ErrFrameMalformed
	}
	magic, sigB64, lenStr, body := parts[0], parts[1], parts[2], parts[3]

	if magic != sec.magic() {
		return DecodedEnvelope{}, ErrMagicMismatch
	}

	declaredLen, err := strconv.Atoi(lenStr)
	if err != nil || declaredLen < 0 {
		return DecodedEnvelope{}, fmt.Errorf("%w: non-numeric length", ErrFrameMalformed)
	}
	if declaredLen > sec.bufferSize() {
		return DecodedEnvelope{}, ErrFrameTooLarge
	}
	if declaredLen == 0 {
		return DecodedEnvelope{}, ErrEmptyPayload
	}
	if len(body) != declaredLen {
		return DecodedEnvelope{}, fmt.Errorf("%w: declared length %d, got %d",
			ErrFrameMalformed, declaredLen, len(body))
	}

	bodyBytes := []byte(body)

	wantSig, err := signBody(bodyBytes, sec)
	if err != nil {
		return DecodedEnvelope{}, err
	}
	if subtle.ConstantTimeCompare([]byte(wantSig), []byte(sigB64)) != 1 {
		return DecodedEnvelope{}, ErrSignatureInvalid
	}

	var header wireHeader
	if err := json.Unmarshal(bodyBytes, &header); err != nil {
		return DecodedEnvelope{}, fmt.Errorf("%w: %v", ErrFrameMalformed, err)
	}

	rawMsg, err := base64.StdEncoding.DecodeString(header.Message)
	if err != nil {
		return DecodedEnvelope{}, fmt.Errorf("%w: bad base64 payload: %v", ErrFrameMalformed, err)
	}

	var inner wireEnvelope
	if err := json.Unmarshal(rawMsg, &inner); err != nil {
		return DecodedEnvelope{}, fmt.Errorf("%w: %v", ErrFrameMalformed, err)
	}

	payload, err := unwrapMessage(inner)
	if err != nil {
		return DecodedEnvelope{}, err
	}

	return DecodedEnvelope{
		Payload:  payload,
		Sender:   fromTuple(header.Sender),
		TargetID: header.Target,
	}, nil
}

// splitFrame splits data into exactly [magic, sig, lenStr, body]. It uses a
// bounded split on the first three occurrences of the separator so that the
// body itself may contain the separator sequence verbatim without being
// truncated.
func splitFrame(data []byte) (out [4]string, ok bool) {
	rest := data
	for i := 0; i < 3; i++ {
		idx := indexSeparator(rest)
		if idx < 0 {
			return [4]string{}, false
		}
		out[i] = string(rest[:idx])
		rest = rest[idx+len(frameSeparator):]
	}
	out[3] = string(rest)

	return out, true
}

func indexSeparator(data []byte) int {
	sep := []byte(frameSeparator)
	n := len(sep)
	for i := 0; i+n <= len(data); i++ {
		if string(data[i:i+n]) == frameSeparator {
			return i
		}
	}
	return -1
}
