package shared

import (
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FreePeak/golang-cdp-client/internal/domain"
)

func TestParseMessageResponse(t *testing.T) {
	msg, err := ParseMessage([]byte(`{"id": 12, "result": {"frameId": "F1"}}`))
	require.NoError(t, err)

	assert.Equal(t, KindResponse, msg.Kind)
	require.NotNil(t, msg.Response)
	assert.Nil(t, msg.Event)
	assert.Equal(t, int64(12), msg.Response.ID)
	assert.JSONEq(t, `{"frameId": "F1"}`, string(msg.Response.Result))
	assert.Nil(t, msg.Response.Error)
	assert.Equal(t, "", msg.Method())
}

func TestParseMessageErrorResponse(t *testing.T) {
	msg, err := ParseMessage([]byte(`{"id": 3, "error": {"code": -32601, "message": "'Foo.bar' wasn't found"}}`))
	require.NoError(t, err)

	require.NotNil(t, msg.Response)
	require.NotNil(t, msg.Response.Error)
	assert.Equal(t, -32601, msg.Response.Error.Code)
	assert.Equal(t, "'Foo.bar' wasn't found", msg.Response.Error.Message)
}

func TestParseMessageEvent(t *testing.T) {
	msg, err := ParseMessage([]byte(`{"method": "Page.loadEventFired", "params": {"timestamp": 1.5}}`))
	require.NoError(t, err)

	assert.Equal(t, KindEvent, msg.Kind)
	require.NotNil(t, msg.Event)
	assert.Nil(t, msg.Response)
	assert.Equal(t, "Page.loadEventFired", msg.Method())
	assert.Equal(t, "Page", msg.Event.Domain())
	assert.JSONEq(t, `{"timestamp": 1.5}`, string(msg.Event.Params))
}

func TestParseMessageInvalid(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{name: "Not JSON", payload: `{"id": `},
		{name: "Event without method", payload: `{"params": {}}`},
		{name: "Event with result", payload: `{"method": "A.b", "result": {}}`},
		{name: "String id", payload: `{"id": "7", "result": {}}`},
		{name: "Null id", payload: `{"id": null, "result": {}}`},
		{name: "Both result and error", payload: `{"id": 1, "result": {}, "error": {"code": 1, "message": "x"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMessage([]byte(tt.payload))
			require.Error(t, err)
			assert.True(t, domain.IsProtocol(err), "expected protocol error, got %T", err)
		})
	}
}

func TestParseMessageNonIntegerID(t *testing.T) {
	_, err := ParseMessage([]byte(`{"id": 1.5, "result": {}}`))

	var protoErr *domain.ProtocolError
	require.ErrorAs(t, err, &protoErr)
	assert.EqualError(t, protoErr.Cause, "correlation id 1.5 is not an integer")

	_, hasStack := protoErr.Cause.(interface{ StackTrace() errors.StackTrace })
	assert.True(t, hasStack, "cause should carry a stack trace")
}

func TestEncodeRequest(t *testing.T) {
	data, err := EncodeRequest(5, "Runtime.evaluate", map[string]any{"expression": "1+1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id": 5, "method": "Runtime.evaluate", "params": {"expression": "1+1"}}`, string(data))

	data, err = EncodeRequest(6, "Page.enable", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id": 6, "method": "Page.enable"}`, string(data))

	data, err = EncodeRequest(7, "Page.navigate", json.RawMessage(`{"url":"about:blank"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"id": 7, "method": "Page.navigate", "params": {"url": "about:blank"}}`, string(data))

	_, err = EncodeRequest(8, "Bad.params", map[string]any{"ch": make(chan int)})
	assert.Error(t, err)
}

func TestToRemoteError(t *testing.T) {
	assert.Nil(t, ToRemoteError("A.b", nil))

	remote := ToRemoteError("DOM.querySelector", &Error{Code: -32000, Message: "Could not find node", Data: json.RawMessage(`{"nodeId": 4}`)})
	require.NotNil(t, remote)
	assert.Equal(t, "DOM.querySelector", remote.Method)
	assert.Equal(t, -32000, remote.Code)
	assert.Equal(t, "Could not find node", remote.Message)
	assert.Equal(t, map[string]any{"nodeId": float64(4)}, remote.Data)
}
