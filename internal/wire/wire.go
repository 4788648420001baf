// Package wire defines websocket frames and the codecs that carry them.
// Frames are JSON text messages unless the client negotiates the CBOR
// subprotocol, in which case they are binary CBOR messages.
package wire

import (
	"encoding/json"
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"github.com/gorilla/websocket"
)

const CBORSubprotocol = "tripwise.cbor"

// Subprotocols lists what the server accepts, in preference order.
var Subprotocols = []string{CBORSubprotocol}

// Frame types.
const (
	TypeSubscribe      = "subscribe"
	TypeUnsubscribe    = "unsubscribe"
	TypePhotoUploaded  = "photo_uploaded"
	TypeSession        = "session"
	TypeRender         = "render"
	TypeNotice         = "notice"
	TypeUploadComplete = "upload_complete"
	TypeError          = "error"
)

// Notice levels.
const (
	LevelInfo  = "info"
	LevelError = "error"
)

// Frame is a single websocket message in either direction. Numeric fields
// that are absent read as zero.
type Frame struct {
	Type string `json:"type"`

	// subscribe / unsubscribe / render
	SubID  string            `json:"sub_id,omitempty"`
	View   string            `json:"view,omitempty"`
	Params map[string]string `json:"params,omitempty"`

	// render
	Section string `json:"section,omitempty"`
	Seq     uint64 `json:"seq,omitempty"`
	Count   int    `json:"count,omitempty"`
	Ops     any    `json:"ops,omitempty"`

	// photo_uploaded / upload_complete
	BatchID  string `json:"batch_id,omitempty"`
	PhotoID  string `json:"photo_id,omitempty"`
	OK       *bool  `json:"ok,omitempty"`
	Uploaded int    `json:"uploaded,omitempty"`
	Failed   int    `json:"failed,omitempty"`

	// notice / error
	Level   string `json:"level,omitempty"`
	Message string `json:"message,omitempty"`

	// session
	Session *Session `json:"session,omitempty"`
}

// Session is the authentication state pushed when a socket opens.
type Session struct {
	UserID        string `json:"user_id"`
	Username      string `json:"username"`
	Anonymous     bool   `json:"anonymous"`
	Ready         bool   `json:"ready"`
	NeedsUsername bool   `json:"needs_username"`
}

// Codec encodes frames for one websocket message type.
type Codec interface {
	Name() string
	MessageType() int
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

var (
	JSON Codec = jsonCodec{}
	CBOR Codec = newCBORCodec()
)

// ForSubprotocol picks the codec for the subprotocol a connection agreed on.
func ForSubprotocol(name string) Codec {
	if name == CBORSubprotocol {
		return CBOR
	}
	return JSON
}

type jsonCodec struct{}

func (jsonCodec) Name() string                       { return "json" }
func (jsonCodec) MessageType() int                   { return websocket.TextMessage }
func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

type cborCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

func newCBORCodec() cborCodec {
	encOptions := cbor.CoreDetEncOptions()
	encOptions.Time = cbor.TimeRFC3339Nano
	enc, err := encOptions.EncMode()
	if err != nil {
		panic("wire: CBOR encoder initialization failed: " + err.Error())
	}
	dec, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("wire: CBOR decoder initialization failed: " + err.Error())
	}
	return cborCodec{enc: enc, dec: dec}
}

func (cborCodec) Name() string                         { return "cbor" }
func (cborCodec) MessageType() int                     { return websocket.BinaryMessage }
func (c cborCodec) Marshal(v any) ([]byte, error)      { return c.enc.Marshal(v) }
func (c cborCodec) Unmarshal(data []byte, v any) error { return c.dec.Unmarshal(data, v) }
