package serializer

import (
	"testing"

	"github.com/JonasWeidner/oDB/rpc/common"
)

// benchmarkMessages returns a set of messages for targeted benchmarking
func benchmarkMessages() map[string]common.Message {
	return map[string]common.Message{
		"Empty": {
			MsgType: common.MsgTSuccess,
		},
		"KeyOnly": {
			MsgType:    common.MsgTGet,
			Database:   "app",
			Collection: "todos",
			Key:        []byte(`{"type":"int","value":1}`),
		},
		"CompoundKey": {
			MsgType:    common.MsgTGet,
			Database:   "app",
			Collection: "sessions",
			Key: []byte(`{"type":"compound","value":[{"type":"string","value":"user-42"},` +
				`{"type":"posix","value":1700000000000}]}`),
		},
		"SmallValue": {
			MsgType:    common.MsgTPut,
			Database:   "app",
			Collection: "todos",
			Value:      []byte(`{"id":1}`),
		},
		"LargeValue": {
			MsgType:    common.MsgTPut,
			Database:   "app",
			Collection: "blobs",
			Value:      make([]byte, 1024), // 1KB of data
		},
		"VeryLargeValue": {
			MsgType:    common.MsgTPut,
			Database:   "app",
			Collection: "blobs",
			Value:      make([]byte, 1024*16), // 16KB of data
		},
		"Batch": {
			MsgType:    common.MsgTPutManyAt,
			Database:   "app",
			Collection: "items",
			Keys: [][]byte{
				[]byte(`{"type":"int","value":1}`),
				[]byte(`{"type":"int","value":2}`),
				[]byte(`{"type":"int","value":3}`),
			},
			Values: [][]byte{
				[]byte(`{"n":1}`),
				[]byte(`{"n":2}`),
				[]byte(`{"n":3}`),
			},
		},
		"ErrorMessage": {
			MsgType: common.MsgTError,
			Err:     "TRANSACTION_ERROR:transaction aborted after constraint violation on index by_email",
		},
	}
}

// BenchmarkSerialize benchmarks serialization for all implementations with various message types
func BenchmarkSerialize(b *testing.B) {
	messages := benchmarkMessages()

	for name, factory := range testSerializers {
		for msgName, msg := range messages {
			b.Run(name+"_"+msgName, func(b *testing.B) {
				serializer := factory()
				b.ResetTimer()

				for i := 0; i < b.N; i++ {
					if _, err := serializer.Serialize(msg); err != nil {
						b.Fatalf("Failed to serialize: %v", err)
					}
				}
			})
		}
	}
}

// BenchmarkDeserialize benchmarks deserialization for all implementations with various message types
func BenchmarkDeserialize(b *testing.B) {
	messages := benchmarkMessages()

	for name, factory := range testSerializers {
		for msgName, msg := range messages {
			b.Run(name+"_"+msgName, func(b *testing.B) {
				serializer := factory()
				data, err := serializer.Serialize(msg)
				if err != nil {
					b.Fatalf("Failed to serialize: %v", err)
				}
				b.ResetTimer()

				for i := 0; i < b.N; i++ {
					var result common.Message
					if err := serializer.Deserialize(data, &result); err != nil {
						b.Fatalf("Failed to deserialize: %v", err)
					}
				}
			})
		}
	}
}
