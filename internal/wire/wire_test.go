package wire

import (
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
	"github.com/gorilla/websocket"
)

func TestForSubprotocol(t *testing.T) {
	assert.Equal(t, "cbor", ForSubprotocol(CBORSubprotocol).Name())
	assert.Equal(t, websocket.BinaryMessage, ForSubprotocol(CBORSubprotocol).MessageType())
	assert.Equal(t, "json", ForSubprotocol("").Name())
	assert.Equal(t, websocket.TextMessage, ForSubprotocol("chat").MessageType())
}

func TestClientFramesDecodeFromBothCodecs(t *testing.T) {
	ok := true
	in := Frame{
		Type:    TypePhotoUploaded,
		BatchID: "b1",
		PhotoID: "p1",
		OK:      &ok,
	}
	for _, codec := range []Codec{JSON, CBOR} {
		data, err := codec.Marshal(in)
		assert.Equal(t, nil, err)

		var out Frame
		assert.Equal(t, nil, codec.Unmarshal(data, &out))
		assert.Equal(t, in.Type, out.Type)
		assert.Equal(t, "b1", out.BatchID)
		assert.Equal(t, true, *out.OK)
	}
}

func TestJSONFieldNames(t *testing.T) {
	data, err := JSON.Marshal(Frame{Type: TypeSubscribe, SubID: "s1", View: "timeline", Params: map[string]string{"trip_id": "t1"}})
	assert.Equal(t, nil, err)
	assert.Equal(t, `{"type":"subscribe","sub_id":"s1","view":"timeline","params":{"trip_id":"t1"}}`, string(data))
}

func TestCBORUsesJSONNamesAndTextTimes(t *testing.T) {
	at := time.Date(2025, 7, 1, 9, 30, 0, 0, time.UTC)
	data, err := CBOR.Marshal(Frame{Type: TypeRender, SubID: "s1", Seq: 3, Ops: []map[string]any{{"kind": "insert", "at": at}}})
	assert.Equal(t, nil, err)

	var generic map[string]any
	assert.Equal(t, nil, CBOR.Unmarshal(data, &generic))
	assert.Equal(t, "render", generic["type"])
	assert.Equal(t, "s1", generic["sub_id"])
	assert.Equal(t, uint64(3), generic["seq"])

	ops := generic["ops"].([]any)
	op := ops[0].(map[string]any)
	assert.Equal(t, "2025-07-01T09:30:00Z", op["at"])
}
