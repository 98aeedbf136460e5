package common

import (
	"encoding/json"
	"fmt"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message. Keys and ranges
// travel in their tagged JSON wire form; record lists travel as positional
// Keys/Values pairs.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// Addressing
	Database   string `json:"database,omitempty"`   // Used for: all operations
	Collection string `json:"collection,omitempty"` // Used for: all collection operations
	Index      string `json:"index,omitempty"`      // Used for: index queries

	// Payloads
	Key    []byte   `json:"key,omitempty"`    // Tagged JSON key (request) or reported key (response)
	Range  []byte   `json:"range,omitempty"`  // Tagged JSON range
	Value  []byte   `json:"value,omitempty"`  // Raw record value
	Keys   [][]byte `json:"keys,omitempty"`   // Tagged JSON keys, positional with Values for records
	Values [][]byte `json:"values,omitempty"` // Raw record values
	Schema []byte   `json:"schema,omitempty"` // JSON-encoded schema (Open request)

	// Response only fields
	Count uint64 `json:"count,omitempty"` // Used for: Count, CountByIndex responses
	Found bool   `json:"found,omitempty"` // Used for: Get responses
	Err   string `json:"err,omitempty"`   // Empty if no error, otherwise the wire error string
}

// --------------------------------------------------------------------------
// Request Factory Functions
// --------------------------------------------------------------------------

// NewOpenRequest creates a new Open request for a JSON-encoded schema.
func NewOpenRequest(database string, schema []byte) *Message {
	return &Message{MsgType: MsgTOpen, Database: database, Schema: schema}
}

// NewCloseRequest creates a new Close request.
func NewCloseRequest(database string) *Message {
	return &Message{MsgType: MsgTClose, Database: database}
}

// NewDeleteDatabaseRequest creates a new DeleteDatabase request.
func NewDeleteDatabaseRequest(database string) *Message {
	return &Message{MsgType: MsgTDeleteDatabase, Database: database}
}

// NewKeyRequest creates a request addressing one key (Get, Delete, Replace
// with value, PutAt/AddAt with value).
func NewKeyRequest(t MessageType, database, collection string, key, value []byte) *Message {
	return &Message{MsgType: t, Database: database, Collection: collection, Key: key, Value: value}
}

// NewRangeRequest creates a request addressing a key range (GetAll,
// GetAllKeys, GetAllRecords, Count, DeleteMany).
func NewRangeRequest(t MessageType, database, collection string, r []byte) *Message {
	return &Message{MsgType: t, Database: database, Collection: collection, Range: r}
}

// NewIndexRequest creates an index query request.
func NewIndexRequest(t MessageType, database, collection, index string, r []byte) *Message {
	return &Message{MsgType: t, Database: database, Collection: collection, Index: index, Range: r}
}

// NewValueRequest creates a request carrying one value without a key
// (Put, Add, Insert on engine-keyed collections).
func NewValueRequest(t MessageType, database, collection string, value []byte) *Message {
	return &Message{MsgType: t, Database: database, Collection: collection, Value: value}
}

// NewValuesRequest creates a batch request carrying values only (PutMany,
// InsertMany).
func NewValuesRequest(t MessageType, database, collection string, values [][]byte) *Message {
	return &Message{MsgType: t, Database: database, Collection: collection, Values: values}
}

// NewRecordsRequest creates a batch request carrying positional key/value
// pairs (PutManyAt, ReplaceMany).
func NewRecordsRequest(t MessageType, database, collection string, keys, values [][]byte) *Message {
	return &Message{MsgType: t, Database: database, Collection: collection, Keys: keys, Values: values}
}

// NewClearRequest creates a Clear request.
func NewClearRequest(database, collection string) *Message {
	return &Message{MsgType: MsgTClear, Database: database, Collection: collection}
}

// --------------------------------------------------------------------------
// Response Factory Functions
// --------------------------------------------------------------------------

// NewAckResponse creates a response carrying only success or an error.
func NewAckResponse(t MessageType, err error) *Message {
	msg := &Message{MsgType: t}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewValueResponse creates a Get response.
func NewValueResponse(t MessageType, value []byte, found bool, err error) *Message {
	msg := &Message{MsgType: t, Value: value, Found: found}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewKeyResponse creates a response reporting one key in wire form.
func NewKeyResponse(t MessageType, key []byte, err error) *Message {
	msg := &Message{MsgType: t, Key: key}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewKeysResponse creates a response reporting a list of keys in wire form.
func NewKeysResponse(t MessageType, keys [][]byte, err error) *Message {
	msg := &Message{MsgType: t, Keys: keys}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewValuesResponse creates a response reporting a list of raw values.
func NewValuesResponse(t MessageType, values [][]byte, err error) *Message {
	msg := &Message{MsgType: t, Values: values}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewRecordsResponse creates a response reporting positional key/value
// pairs.
func NewRecordsResponse(t MessageType, keys, values [][]byte, err error) *Message {
	msg := &Message{MsgType: t, Keys: keys, Values: values}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewCountResponse creates a Count response.
func NewCountResponse(t MessageType, count uint64, err error) *Message {
	msg := &Message{MsgType: t, Count: count}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewErrorResponse creates a new Error response.
func NewErrorResponse(err string) *Message {
	return &Message{MsgType: MsgTError, Err: err}
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred

	// Database lifecycle

	MsgTOpen           // Open a database with a schema
	MsgTClose          // Close an open database
	MsgTDeleteDatabase // Delete a database with all its data

	// Reads

	MsgTGet           // Get one value by key
	MsgTGetAll        // Get all values in a range
	MsgTGetAllKeys    // Get all keys in a range
	MsgTGetAllRecords // Get keys and values in a range
	MsgTCount         // Count records in a range

	// Writes on explicit-keyed collections

	MsgTPutAt     // Upsert one record under a caller-supplied key
	MsgTAddAt     // Insert one record under a caller-supplied key
	MsgTPutManyAt // Upsert a batch of records with keys

	// Writes on inline-keyed collections

	MsgTPut     // Upsert one record, key extracted from the value
	MsgTAdd     // Insert one record, key extracted from the value
	MsgTPutMany // Upsert a batch of values

	// Writes on generated-keyed collections

	MsgTInsert      // Insert one record under a generated key
	MsgTReplace     // Upsert one record under a previously generated key
	MsgTInsertMany  // Insert a batch of values under generated keys
	MsgTReplaceMany // Upsert a batch of records with keys

	// Deletes

	MsgTDelete     // Delete one record by key
	MsgTDeleteMany // Delete all records in a range
	MsgTClear      // Delete all records of a collection

	// Index queries

	MsgTGetByIndex     // Get records by index range
	MsgTGetKeysByIndex // Get primary keys by index range
	MsgTCountByIndex   // Count index entries in a range
)

// msgTypeNames maps each MessageType to its wire name.
var msgTypeNames = map[MessageType]string{
	MsgTSuccess:        "success",
	MsgTError:          "error",
	MsgTOpen:           "open",
	MsgTClose:          "close",
	MsgTDeleteDatabase: "deleteDatabase",
	MsgTGet:            "get",
	MsgTGetAll:         "getAll",
	MsgTGetAllKeys:     "getAllKeys",
	MsgTGetAllRecords:  "getAllRecords",
	MsgTCount:          "count",
	MsgTPutAt:          "putAt",
	MsgTAddAt:          "addAt",
	MsgTPutManyAt:      "putManyAt",
	MsgTPut:            "put",
	MsgTAdd:            "add",
	MsgTPutMany:        "putMany",
	MsgTInsert:         "insert",
	MsgTReplace:        "replace",
	MsgTInsertMany:     "insertMany",
	MsgTReplaceMany:    "replaceMany",
	MsgTDelete:         "delete",
	MsgTDeleteMany:     "deleteMany",
	MsgTClear:          "clear",
	MsgTGetByIndex:     "getByIndex",
	MsgTGetKeysByIndex: "getKeysByIndex",
	MsgTCountByIndex:   "countByIndex",
}

// msgTypeValues is the inverse of msgTypeNames.
var msgTypeValues = func() map[string]MessageType {
	m := make(map[string]MessageType, len(msgTypeNames))
	for t, name := range msgTypeNames {
		m[name] = t
	}
	return m
}()

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	if name, ok := msgTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
// This allows MessageType to be deserialized from a string in JSON.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, ok := msgTypeValues[s]
	if !ok {
		return fmt.Errorf("unknown message type: %s", s)
	}
	*t = v
	return nil
}
