package client

import (
	"encoding/json"

	"github.com/JonasWeidner/oDB/lib/key"
	"github.com/JonasWeidner/oDB/lib/odb"
	"github.com/JonasWeidner/oDB/rpc/common"
	"github.com/JonasWeidner/oDB/rpc/serializer"
	"github.com/JonasWeidner/oDB/rpc/transport"
)

// NewRPCClient creates a client for a remote object store server.
// The function takes a shard ID, a config, a transport and a serializer as
// parameters, connects the transport and returns the client.
func NewRPCClient(
	shardId uint64,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (*RPCClient, error) {

	// Connect the transport
	if err := transport.Connect(config); err != nil {
		return nil, err
	}

	return &RPCClient{
		shardId:    shardId,
		config:     config,
		transport:  transport,
		serializer: serializer,
	}, nil
}

// RPCClient forwards object store operations to a remote server. Keys and
// ranges are sent in their tagged JSON wire form; server-side failures come
// back as errors of the odb taxonomy.
//
// Thread-safety: all methods are safe for concurrent use.
type RPCClient struct {
	shardId    uint64
	config     common.ClientConfig
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer
}

// Disconnect closes the underlying transport.
func (c *RPCClient) Disconnect() error {
	return c.transport.Close()
}

// --------------------------------------------------------------------------
// Database Lifecycle
// --------------------------------------------------------------------------

// Open opens (or creates) the database described by the schema on the
// remote server.
func (c *RPCClient) Open(schema odb.Schema) error {
	data, err := json.Marshal(schema)
	if err != nil {
		return err
	}
	_, err = c.invoke(common.NewOpenRequest(schema.Name, data))
	return err
}

// Close closes the named database on the remote server.
func (c *RPCClient) Close(database string) error {
	_, err := c.invoke(common.NewCloseRequest(database))
	return err
}

// DeleteDatabase deletes the named database and all of its data.
func (c *RPCClient) DeleteDatabase(database string) error {
	_, err := c.invoke(common.NewDeleteDatabaseRequest(database))
	return err
}

// --------------------------------------------------------------------------
// Reads
// --------------------------------------------------------------------------

// Get returns the raw value stored under k. A missing key is reported via
// the boolean, not as an error.
func (c *RPCClient) Get(database, collection string, k key.Key) ([]byte, bool, error) {
	wk, err := key.EncodeJSON(k)
	if err != nil {
		return nil, false, err
	}
	resp, err := c.invoke(common.NewKeyRequest(common.MsgTGet, database, collection, wk, nil))
	if err != nil {
		return nil, false, err
	}
	return resp.Value, resp.Found, nil
}

// GetAll returns the raw values of every record in the range.
func (c *RPCClient) GetAll(database, collection string, r key.Range) ([][]byte, error) {
	wr, err := encodeRangeWire(r)
	if err != nil {
		return nil, err
	}
	resp, err := c.invoke(common.NewRangeRequest(common.MsgTGetAll, database, collection, wr))
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

// GetAllKeys returns the typed keys of every record in the range.
func (c *RPCClient) GetAllKeys(database, collection string, r key.Range) ([]key.Key, error) {
	wr, err := encodeRangeWire(r)
	if err != nil {
		return nil, err
	}
	resp, err := c.invoke(common.NewRangeRequest(common.MsgTGetAllKeys, database, collection, wr))
	if err != nil {
		return nil, err
	}
	return decodeKeysWire(resp.Keys)
}

// GetAllRecords returns keys and values together for every record in the
// range.
func (c *RPCClient) GetAllRecords(database, collection string, r key.Range) ([]odb.Record, error) {
	wr, err := encodeRangeWire(r)
	if err != nil {
		return nil, err
	}
	resp, err := c.invoke(common.NewRangeRequest(common.MsgTGetAllRecords, database, collection, wr))
	if err != nil {
		return nil, err
	}
	return decodeRecordsWire(resp.Keys, resp.Values)
}

// Count returns the number of records in the range.
func (c *RPCClient) Count(database, collection string, r key.Range) (uint64, error) {
	wr, err := encodeRangeWire(r)
	if err != nil {
		return 0, err
	}
	resp, err := c.invoke(common.NewRangeRequest(common.MsgTCount, database, collection, wr))
	if err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// --------------------------------------------------------------------------
// Deletes
// --------------------------------------------------------------------------

// Delete removes the record stored under k.
func (c *RPCClient) Delete(database, collection string, k key.Key) error {
	wk, err := key.EncodeJSON(k)
	if err != nil {
		return err
	}
	_, err = c.invoke(common.NewKeyRequest(common.MsgTDelete, database, collection, wk, nil))
	return err
}

// DeleteMany removes every record in the range.
func (c *RPCClient) DeleteMany(database, collection string, r key.Range) error {
	wr, err := encodeRangeWire(r)
	if err != nil {
		return err
	}
	_, err = c.invoke(common.NewRangeRequest(common.MsgTDeleteMany, database, collection, wr))
	return err
}

// Clear removes every record of the collection.
func (c *RPCClient) Clear(database, collection string) error {
	_, err := c.invoke(common.NewClearRequest(database, collection))
	return err
}

// --------------------------------------------------------------------------
// Index Queries
// --------------------------------------------------------------------------

// GetByIndex returns the records whose index key under the named index
// falls in the range.
func (c *RPCClient) GetByIndex(database, collection, index string, r key.Range) ([]odb.Record, error) {
	wr, err := encodeRangeWire(r)
	if err != nil {
		return nil, err
	}
	resp, err := c.invoke(common.NewIndexRequest(common.MsgTGetByIndex, database, collection, index, wr))
	if err != nil {
		return nil, err
	}
	return decodeRecordsWire(resp.Keys, resp.Values)
}

// GetKeysByIndex returns the primary keys of the matching records.
func (c *RPCClient) GetKeysByIndex(database, collection, index string, r key.Range) ([]key.Key, error) {
	wr, err := encodeRangeWire(r)
	if err != nil {
		return nil, err
	}
	resp, err := c.invoke(common.NewIndexRequest(common.MsgTGetKeysByIndex, database, collection, index, wr))
	if err != nil {
		return nil, err
	}
	return decodeKeysWire(resp.Keys)
}

// CountByIndex returns the number of index entries in the range.
func (c *RPCClient) CountByIndex(database, collection, index string, r key.Range) (uint64, error) {
	wr, err := encodeRangeWire(r)
	if err != nil {
		return 0, err
	}
	resp, err := c.invoke(common.NewIndexRequest(common.MsgTCountByIndex, database, collection, index, wr))
	if err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// --------------------------------------------------------------------------
// Writes on Explicit-Keyed Collections
// --------------------------------------------------------------------------

// PutAt upserts value under k.
func (c *RPCClient) PutAt(database, collection string, k key.Key, value []byte) error {
	return c.writeAt(common.MsgTPutAt, database, collection, k, value)
}

// AddAt inserts value under k, failing with AlreadyExists if the key is
// already present.
func (c *RPCClient) AddAt(database, collection string, k key.Key, value []byte) error {
	return c.writeAt(common.MsgTAddAt, database, collection, k, value)
}

// PutManyAt upserts all records inside one server-side transaction.
func (c *RPCClient) PutManyAt(database, collection string, records []odb.Record) error {
	wireKeys, values, err := encodeRecordsWire(records)
	if err != nil {
		return err
	}
	_, err = c.invoke(common.NewRecordsRequest(common.MsgTPutManyAt, database, collection, wireKeys, values))
	return err
}

// --------------------------------------------------------------------------
// Writes on Inline-Keyed Collections
// --------------------------------------------------------------------------

// Put upserts value and returns the key the server extracted from it.
func (c *RPCClient) Put(database, collection string, value []byte) (key.Key, error) {
	return c.inlineWrite(common.MsgTPut, database, collection, value)
}

// Add inserts value and returns the extracted key, failing with
// AlreadyExists if a record with that key is already present.
func (c *RPCClient) Add(database, collection string, value []byte) (key.Key, error) {
	return c.inlineWrite(common.MsgTAdd, database, collection, value)
}

// PutMany upserts all values inside one server-side transaction and
// returns the extracted keys in input order.
func (c *RPCClient) PutMany(database, collection string, values [][]byte) ([]key.Key, error) {
	resp, err := c.invoke(common.NewValuesRequest(common.MsgTPutMany, database, collection, values))
	if err != nil {
		return nil, err
	}
	return decodeKeysWire(resp.Keys)
}

// --------------------------------------------------------------------------
// Writes on Generated-Keyed Collections
// --------------------------------------------------------------------------

// Insert stores value under a freshly generated key and returns that key.
func (c *RPCClient) Insert(database, collection string, value []byte) (key.Key, error) {
	resp, err := c.invoke(common.NewValueRequest(common.MsgTInsert, database, collection, value))
	if err != nil {
		return nil, err
	}
	return key.DecodeJSON(resp.Key)
}

// Replace upserts value under a previously generated key.
func (c *RPCClient) Replace(database, collection string, k key.Key, value []byte) error {
	return c.writeAt(common.MsgTReplace, database, collection, k, value)
}

// InsertMany stores all values inside one server-side transaction and
// returns the generated keys in input order.
func (c *RPCClient) InsertMany(database, collection string, values [][]byte) ([]key.Key, error) {
	resp, err := c.invoke(common.NewValuesRequest(common.MsgTInsertMany, database, collection, values))
	if err != nil {
		return nil, err
	}
	return decodeKeysWire(resp.Keys)
}

// ReplaceMany upserts all records inside one server-side transaction.
func (c *RPCClient) ReplaceMany(database, collection string, records []odb.Record) error {
	wireKeys, values, err := encodeRecordsWire(records)
	if err != nil {
		return err
	}
	_, err = c.invoke(common.NewRecordsRequest(common.MsgTReplaceMany, database, collection, wireKeys, values))
	return err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (c *RPCClient) invoke(req *common.Message) (*common.Message, error) {
	return invokeRPCRequest(c.shardId, req, c.transport, c.serializer)
}

func (c *RPCClient) writeAt(t common.MessageType, database, collection string, k key.Key, value []byte) error {
	wk, err := key.EncodeJSON(k)
	if err != nil {
		return err
	}
	_, err = c.invoke(common.NewKeyRequest(t, database, collection, wk, value))
	return err
}

func (c *RPCClient) inlineWrite(t common.MessageType, database, collection string, value []byte) (key.Key, error) {
	resp, err := c.invoke(common.NewValueRequest(t, database, collection, value))
	if err != nil {
		return nil, err
	}
	return key.DecodeJSON(resp.Key)
}

// encodeRangeWire renders a range in wire form. The zero range (match all)
// travels as an absent field.
func encodeRangeWire(r key.Range) ([]byte, error) {
	if r.Lower == nil && r.Upper == nil {
		return nil, nil
	}
	return key.EncodeRangeJSON(r)
}

func decodeKeysWire(wireKeys [][]byte) ([]key.Key, error) {
	keys := make([]key.Key, len(wireKeys))
	for i, wk := range wireKeys {
		k, err := key.DecodeJSON(wk)
		if err != nil {
			return nil, err
		}
		keys[i] = k
	}
	return keys, nil
}

func decodeRecordsWire(wireKeys, values [][]byte) ([]odb.Record, error) {
	if len(wireKeys) != len(values) {
		return nil, odb.NewDatabaseError("mismatched response: %d keys for %d values",
			len(wireKeys), len(values))
	}
	records := make([]odb.Record, len(wireKeys))
	for i, wk := range wireKeys {
		k, err := key.DecodeJSON(wk)
		if err != nil {
			return nil, err
		}
		records[i] = odb.Record{Key: k, Value: values[i]}
	}
	return records, nil
}

func encodeRecordsWire(records []odb.Record) (wireKeys, values [][]byte, err error) {
	wireKeys = make([][]byte, len(records))
	values = make([][]byte, len(records))
	for i, rec := range records {
		wk, err := key.EncodeJSON(rec.Key)
		if err != nil {
			return nil, nil, err
		}
		wireKeys[i] = wk
		values[i] = rec.Value
	}
	return wireKeys, values, nil
}
