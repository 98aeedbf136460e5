package serializer

import (
	"reflect"
	"testing"

	"github.com/JonasWeidner/oDB/rpc/common"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() IRPCSerializer{
	"JSON":   NewJSONSerializer,
	"GOB":    NewGOBSerializer,
	"Binary": NewBinarySerializer,
}

// testMessages creates a set of test messages with different fields filled
func testMessages() []common.Message {
	return []common.Message{
		// Basic message with just a type
		{MsgType: common.MsgTSuccess},

		// Get request with a tagged key
		{
			MsgType:    common.MsgTGet,
			Database:   "app",
			Collection: "todos",
			Key:        []byte(`{"type":"int","value":1}`),
		},

		// Get response
		{
			MsgType: common.MsgTGet,
			Value:   []byte(`{"id":1,"text":"a"}`),
			Found:   true,
		},

		// Index query request with a tagged range
		{
			MsgType:    common.MsgTGetByIndex,
			Database:   "app",
			Collection: "events",
			Index:      "by_timestamp",
			Range: []byte(`{"type":"bound","lower":{"type":"posix","value":1000},` +
				`"upper":{"type":"posix","value":3000}}`),
		},

		// Batch request with positional records
		{
			MsgType:    common.MsgTPutManyAt,
			Database:   "app",
			Collection: "items",
			Keys: [][]byte{
				[]byte(`{"type":"int","value":1}`),
				[]byte(`{"type":"int","value":2}`),
			},
			Values: [][]byte{
				[]byte(`{"n":1}`),
				[]byte(`{"n":2}`),
			},
		},

		// Open request carrying a schema
		{
			MsgType:  common.MsgTOpen,
			Database: "app",
			Schema:   []byte(`{"name":"app","version":1,"collections":[]}`),
		},

		// Count response
		{
			MsgType: common.MsgTCount,
			Count:   42,
		},

		// Error response with a wire error string
		{
			MsgType: common.MsgTError,
			Err:     "DATABASE_ERROR:database \"app\" is not open",
		},
	}
}

// TestSerializerRoundTrip tests that messages can be serialized and deserialized correctly
func TestSerializerRoundTrip(t *testing.T) {
	messages := testMessages()

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for i, msg := range messages {
				// Serialize
				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message %d: %v", i, err)
					continue
				}

				// Deserialize
				var result common.Message
				err = serializer.Deserialize(data, &result)
				if err != nil {
					t.Errorf("Failed to deserialize message %d: %v", i, err)
					continue
				}

				// Compare
				if !reflect.DeepEqual(msg, result) {
					t.Errorf("Message %d doesn't match after round trip:\nOriginal: %+v\nResult: %+v",
						i, msg, result)
				}
			}
		})
	}
}

// TestMessageTypes tests each message type with each serializer
func TestMessageTypes(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			// Test each message type (don't test MsgTUnknown since this should raise an error)
			for msgType := common.MsgTSuccess; msgType <= common.MsgTCountByIndex; msgType++ {
				msg := common.Message{MsgType: msgType}

				// Serialize
				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message type %s: %v", msgType.String(), err)
					continue
				}

				// Deserialize
				var result common.Message
				err = serializer.Deserialize(data, &result)
				if err != nil {
					t.Errorf("Failed to deserialize message type %s: %v", msgType.String(), err)
					continue
				}

				// Check type
				if result.MsgType != msgType {
					t.Errorf("Message type doesn't match after round trip: Expected %s, got %s",
						msgType.String(), result.MsgType.String())
				}
			}
		})
	}
}

// TestBinarySerializerSpecific tests specific edge cases for the binary serializer
func TestBinarySerializerSpecific(t *testing.T) {
	serializer := NewBinarySerializer()

	testCases := []struct {
		name string
		msg  common.Message
	}{
		{
			name: "Empty message",
			msg:  common.Message{},
		},
		{
			name: "Message with empty strings and zero values",
			msg: common.Message{
				MsgType:    common.MsgTPutAt,
				Database:   "",
				Collection: "",
				Count:      0,
				Found:      false,
			},
		},
		{
			name: "Found without value",
			msg: common.Message{
				MsgType: common.MsgTGet,
				Found:   true,
				Value:   nil,
			},
		},
		{
			name: "Message with empty value slice but not nil",
			msg: common.Message{
				MsgType: common.MsgTPut,
				Value:   []byte{},
			},
		},
		{
			name: "Message with empty lists but not nil",
			msg: common.Message{
				MsgType: common.MsgTInsertMany,
				Keys:    [][]byte{},
				Values:  [][]byte{},
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Serialize
			data, err := serializer.Serialize(tc.msg)
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}

			// Deserialize
			var result common.Message
			err = serializer.Deserialize(data, &result)
			if err != nil {
				t.Fatalf("Failed to deserialize: %v", err)
			}

			if !reflect.DeepEqual(tc.msg, result) {
				t.Errorf("Message doesn't match after round trip:\nOriginal: %+v\nResult: %+v",
					tc.msg, result)
			}
		})
	}
}

// TestInvalidBinaryData tests how the binary serializer handles corrupt or invalid data
func TestInvalidBinaryData(t *testing.T) {
	serializer := NewBinarySerializer()

	testCases := []struct {
		name        string
		data        []byte
		expectError bool
	}{
		{
			name:        "Empty data",
			data:        []byte{},
			expectError: true,
		},
		{
			name:        "Too short header",
			data:        []byte{1, 0}, // Missing the second flag byte
			expectError: true,
		},
		{
			name:        "Valid header only",
			data:        []byte{1, 0, 0}, // Message type 1, no flags
			expectError: false,
		},
		{
			name:        "Invalid length for database",
			data:        []byte{1, 1, 0, 0, 0, 0, 5, 'a', 'b', 'c'}, // Claims length 5 but only 3 bytes provided
			expectError: true,
		},
		{
			name:        "Invalid length for value",
			data:        []byte{1, 32, 0, 0, 0, 0, 10}, // Claims value length 10 but no bytes provided
			expectError: true,
		},
		{
			name:        "Truncated list",
			data:        []byte{1, 0, 1, 0, 0, 0, 2, 0, 0, 0, 1, 'x'}, // Claims 2 keys but only 1 present
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var msg common.Message
			err := serializer.Deserialize(tc.data, &msg)

			if tc.expectError && err == nil {
				t.Errorf("Expected error but got none")
			} else if !tc.expectError && err != nil {
				t.Errorf("Did not expect error but got: %v", err)
			}
		})
	}
}
