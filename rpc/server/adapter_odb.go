package server

import (
	"encoding/json"

	"github.com/JonasWeidner/oDB/lib/key"
	"github.com/JonasWeidner/oDB/lib/odb"
	"github.com/JonasWeidner/oDB/rpc/common"
	"github.com/puzpuzpuz/xsync/v3"
)

// NewObjectStoreAdapter creates an adapter that serves object store
// requests against the given registry. Database handles obtained via Open
// requests are cached per database name.
func NewObjectStoreAdapter(reg *odb.Registry) IRPCServerAdapter {
	return &objectStoreAdapter{
		registry: reg,
		handles:  xsync.NewMapOf[string, *odb.DB](),
	}
}

type objectStoreAdapter struct {
	registry *odb.Registry
	handles  *xsync.MapOf[string, *odb.DB]
}

// --------------------------------------------------------------------------
// Interface Methods (docu see server.IRPCServerAdapter)
// --------------------------------------------------------------------------

func (a *objectStoreAdapter) Handle(req *common.Message) *common.Message {
	switch req.MsgType {

	// Database lifecycle

	case common.MsgTOpen:
		return a.handleOpen(req)
	case common.MsgTClose:
		a.handles.Delete(req.Database)
		return common.NewAckResponse(req.MsgType, a.registry.Close(req.Database))
	case common.MsgTDeleteDatabase:
		a.handles.Delete(req.Database)
		return common.NewAckResponse(req.MsgType, a.registry.DeleteDatabase(req.Database))

	// Reads, deletes and index queries (any key configuration)

	case common.MsgTGet:
		return a.handleGet(req)
	case common.MsgTGetAll:
		return a.handleGetAll(req)
	case common.MsgTGetAllKeys:
		return a.handleGetAllKeys(req)
	case common.MsgTGetAllRecords:
		return a.handleGetAllRecords(req)
	case common.MsgTCount:
		return a.handleCount(req)
	case common.MsgTDelete:
		return a.handleDelete(req)
	case common.MsgTDeleteMany:
		return a.handleDeleteMany(req)
	case common.MsgTClear:
		return a.handleClear(req)
	case common.MsgTGetByIndex:
		return a.handleGetByIndex(req)
	case common.MsgTGetKeysByIndex:
		return a.handleGetKeysByIndex(req)
	case common.MsgTCountByIndex:
		return a.handleCountByIndex(req)

	// Writes on explicit-keyed collections

	case common.MsgTPutAt, common.MsgTAddAt:
		return a.handleWriteAt(req)
	case common.MsgTPutManyAt:
		return a.handlePutManyAt(req)

	// Writes on inline-keyed collections

	case common.MsgTPut, common.MsgTAdd:
		return a.handleInlineWrite(req)
	case common.MsgTPutMany:
		return a.handlePutMany(req)

	// Writes on generated-keyed collections

	case common.MsgTInsert:
		return a.handleInsert(req)
	case common.MsgTReplace:
		return a.handleReplace(req)
	case common.MsgTInsertMany:
		return a.handleInsertMany(req)
	case common.MsgTReplaceMany:
		return a.handleReplaceMany(req)

	default:
		return common.NewErrorResponse(
			odb.NewDatabaseError("unsupported message type: %s", req.MsgType).Error(),
		)
	}
}

// --------------------------------------------------------------------------
// Lifecycle Handlers
// --------------------------------------------------------------------------

func (a *objectStoreAdapter) handleOpen(req *common.Message) *common.Message {
	var schema odb.Schema
	if err := json.Unmarshal(req.Schema, &schema); err != nil {
		return common.NewAckResponse(req.MsgType,
			odb.NewDatabaseError("malformed schema: %v", err))
	}
	if req.Database != "" && req.Database != schema.Name {
		return common.NewAckResponse(req.MsgType,
			odb.NewDatabaseError("schema names database %q, request addresses %q",
				schema.Name, req.Database))
	}

	db, err := a.registry.Open(schema)
	if err != nil {
		return common.NewAckResponse(req.MsgType, err)
	}
	a.handles.Store(schema.Name, db)
	return common.NewAckResponse(req.MsgType, nil)
}

// --------------------------------------------------------------------------
// Read Handlers
// --------------------------------------------------------------------------

func (a *objectStoreAdapter) handleGet(req *common.Message) *common.Message {
	cs, k, err := a.collectionAndKey(req)
	if err != nil {
		return common.NewValueResponse(req.MsgType, nil, false, err)
	}
	value, found, err := cs.Get(k)
	return common.NewValueResponse(req.MsgType, value, found, err)
}

func (a *objectStoreAdapter) handleGetAll(req *common.Message) *common.Message {
	cs, r, err := a.collectionAndRange(req)
	if err != nil {
		return common.NewValuesResponse(req.MsgType, nil, err)
	}
	values, err := cs.GetAll(r)
	return common.NewValuesResponse(req.MsgType, values, err)
}

func (a *objectStoreAdapter) handleGetAllKeys(req *common.Message) *common.Message {
	cs, r, err := a.collectionAndRange(req)
	if err != nil {
		return common.NewKeysResponse(req.MsgType, nil, err)
	}
	keys, err := cs.GetAllKeys(r)
	if err != nil {
		return common.NewKeysResponse(req.MsgType, nil, err)
	}
	wireKeys, err := encodeKeys(keys)
	return common.NewKeysResponse(req.MsgType, wireKeys, err)
}

func (a *objectStoreAdapter) handleGetAllRecords(req *common.Message) *common.Message {
	cs, r, err := a.collectionAndRange(req)
	if err != nil {
		return common.NewRecordsResponse(req.MsgType, nil, nil, err)
	}
	records, err := cs.GetAllRecords(r)
	if err != nil {
		return common.NewRecordsResponse(req.MsgType, nil, nil, err)
	}
	wireKeys, values, err := encodeRecords(records)
	return common.NewRecordsResponse(req.MsgType, wireKeys, values, err)
}

func (a *objectStoreAdapter) handleCount(req *common.Message) *common.Message {
	cs, r, err := a.collectionAndRange(req)
	if err != nil {
		return common.NewCountResponse(req.MsgType, 0, err)
	}
	n, err := cs.Count(r)
	return common.NewCountResponse(req.MsgType, n, err)
}

func (a *objectStoreAdapter) handleDelete(req *common.Message) *common.Message {
	cs, k, err := a.collectionAndKey(req)
	if err != nil {
		return common.NewAckResponse(req.MsgType, err)
	}
	return common.NewAckResponse(req.MsgType, cs.Delete(k))
}

func (a *objectStoreAdapter) handleDeleteMany(req *common.Message) *common.Message {
	cs, r, err := a.collectionAndRange(req)
	if err != nil {
		return common.NewAckResponse(req.MsgType, err)
	}
	return common.NewAckResponse(req.MsgType, cs.DeleteMany(r))
}

func (a *objectStoreAdapter) handleClear(req *common.Message) *common.Message {
	cs, err := a.collection(req)
	if err != nil {
		return common.NewAckResponse(req.MsgType, err)
	}
	return common.NewAckResponse(req.MsgType, cs.Clear())
}

func (a *objectStoreAdapter) handleGetByIndex(req *common.Message) *common.Message {
	cs, r, err := a.collectionAndRange(req)
	if err != nil {
		return common.NewRecordsResponse(req.MsgType, nil, nil, err)
	}
	records, err := cs.GetByIndex(req.Index, r)
	if err != nil {
		return common.NewRecordsResponse(req.MsgType, nil, nil, err)
	}
	wireKeys, values, err := encodeRecords(records)
	return common.NewRecordsResponse(req.MsgType, wireKeys, values, err)
}

func (a *objectStoreAdapter) handleGetKeysByIndex(req *common.Message) *common.Message {
	cs, r, err := a.collectionAndRange(req)
	if err != nil {
		return common.NewKeysResponse(req.MsgType, nil, err)
	}
	keys, err := cs.GetKeysByIndex(req.Index, r)
	if err != nil {
		return common.NewKeysResponse(req.MsgType, nil, err)
	}
	wireKeys, err := encodeKeys(keys)
	return common.NewKeysResponse(req.MsgType, wireKeys, err)
}

func (a *objectStoreAdapter) handleCountByIndex(req *common.Message) *common.Message {
	cs, r, err := a.collectionAndRange(req)
	if err != nil {
		return common.NewCountResponse(req.MsgType, 0, err)
	}
	n, err := cs.CountByIndex(req.Index, r)
	return common.NewCountResponse(req.MsgType, n, err)
}

// --------------------------------------------------------------------------
// Write Handlers
// --------------------------------------------------------------------------

func (a *objectStoreAdapter) handleWriteAt(req *common.Message) *common.Message {
	db, err := a.db(req.Database)
	if err != nil {
		return common.NewAckResponse(req.MsgType, err)
	}
	es, err := db.Explicit(req.Collection)
	if err != nil {
		return common.NewAckResponse(req.MsgType, err)
	}
	k, err := decodeKey(req.Key)
	if err != nil {
		return common.NewAckResponse(req.MsgType, err)
	}
	if req.MsgType == common.MsgTAddAt {
		return common.NewAckResponse(req.MsgType, es.AddAt(k, req.Value))
	}
	return common.NewAckResponse(req.MsgType, es.PutAt(k, req.Value))
}

func (a *objectStoreAdapter) handlePutManyAt(req *common.Message) *common.Message {
	db, err := a.db(req.Database)
	if err != nil {
		return common.NewAckResponse(req.MsgType, err)
	}
	es, err := db.Explicit(req.Collection)
	if err != nil {
		return common.NewAckResponse(req.MsgType, err)
	}
	records, err := decodeRecords(req.Keys, req.Values)
	if err != nil {
		return common.NewAckResponse(req.MsgType, err)
	}
	return common.NewAckResponse(req.MsgType, es.PutManyAt(records))
}

func (a *objectStoreAdapter) handleInlineWrite(req *common.Message) *common.Message {
	db, err := a.db(req.Database)
	if err != nil {
		return common.NewKeyResponse(req.MsgType, nil, err)
	}
	is, err := db.Inline(req.Collection)
	if err != nil {
		return common.NewKeyResponse(req.MsgType, nil, err)
	}

	var k key.Key
	if req.MsgType == common.MsgTAdd {
		k, err = is.Add(req.Value)
	} else {
		k, err = is.Put(req.Value)
	}
	if err != nil {
		return common.NewKeyResponse(req.MsgType, nil, err)
	}

	wireKey, err := key.EncodeJSON(k)
	return common.NewKeyResponse(req.MsgType, wireKey, normalize(err))
}

func (a *objectStoreAdapter) handlePutMany(req *common.Message) *common.Message {
	db, err := a.db(req.Database)
	if err != nil {
		return common.NewKeysResponse(req.MsgType, nil, err)
	}
	is, err := db.Inline(req.Collection)
	if err != nil {
		return common.NewKeysResponse(req.MsgType, nil, err)
	}
	keys, err := is.PutMany(req.Values)
	if err != nil {
		return common.NewKeysResponse(req.MsgType, nil, err)
	}
	wireKeys, err := encodeKeys(keys)
	return common.NewKeysResponse(req.MsgType, wireKeys, err)
}

func (a *objectStoreAdapter) handleInsert(req *common.Message) *common.Message {
	db, err := a.db(req.Database)
	if err != nil {
		return common.NewKeyResponse(req.MsgType, nil, err)
	}
	gs, err := db.Generated(req.Collection)
	if err != nil {
		return common.NewKeyResponse(req.MsgType, nil, err)
	}
	k, err := gs.Insert(req.Value)
	if err != nil {
		return common.NewKeyResponse(req.MsgType, nil, err)
	}
	wireKey, err := key.EncodeJSON(k)
	return common.NewKeyResponse(req.MsgType, wireKey, normalize(err))
}

func (a *objectStoreAdapter) handleReplace(req *common.Message) *common.Message {
	db, err := a.db(req.Database)
	if err != nil {
		return common.NewAckResponse(req.MsgType, err)
	}
	gs, err := db.Generated(req.Collection)
	if err != nil {
		return common.NewAckResponse(req.MsgType, err)
	}
	k, err := decodeKey(req.Key)
	if err != nil {
		return common.NewAckResponse(req.MsgType, err)
	}
	return common.NewAckResponse(req.MsgType, gs.Replace(k, req.Value))
}

func (a *objectStoreAdapter) handleInsertMany(req *common.Message) *common.Message {
	db, err := a.db(req.Database)
	if err != nil {
		return common.NewKeysResponse(req.MsgType, nil, err)
	}
	gs, err := db.Generated(req.Collection)
	if err != nil {
		return common.NewKeysResponse(req.MsgType, nil, err)
	}
	keys, err := gs.InsertMany(req.Values)
	if err != nil {
		return common.NewKeysResponse(req.MsgType, nil, err)
	}
	wireKeys, err := encodeKeys(keys)
	return common.NewKeysResponse(req.MsgType, wireKeys, err)
}

func (a *objectStoreAdapter) handleReplaceMany(req *common.Message) *common.Message {
	db, err := a.db(req.Database)
	if err != nil {
		return common.NewAckResponse(req.MsgType, err)
	}
	gs, err := db.Generated(req.Collection)
	if err != nil {
		return common.NewAckResponse(req.MsgType, err)
	}
	records, err := decodeRecords(req.Keys, req.Values)
	if err != nil {
		return common.NewAckResponse(req.MsgType, err)
	}
	return common.NewAckResponse(req.MsgType, gs.ReplaceMany(records))
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// db resolves a database name to the handle cached by a previous Open.
func (a *objectStoreAdapter) db(name string) (*odb.DB, error) {
	db, ok := a.handles.Load(name)
	if !ok {
		return nil, odb.NewDatabaseError("database %q is not open", name)
	}
	return db, nil
}

func (a *objectStoreAdapter) collection(req *common.Message) (*odb.CollectionStore, error) {
	db, err := a.db(req.Database)
	if err != nil {
		return nil, err
	}
	return db.Collection(req.Collection)
}

func (a *objectStoreAdapter) collectionAndKey(req *common.Message) (*odb.CollectionStore, key.Key, error) {
	cs, err := a.collection(req)
	if err != nil {
		return nil, nil, err
	}
	k, err := decodeKey(req.Key)
	if err != nil {
		return nil, nil, err
	}
	return cs, k, nil
}

func (a *objectStoreAdapter) collectionAndRange(req *common.Message) (*odb.CollectionStore, key.Range, error) {
	cs, err := a.collection(req)
	if err != nil {
		return nil, key.Range{}, err
	}
	r, err := decodeRange(req.Range)
	if err != nil {
		return nil, key.Range{}, err
	}
	return cs, r, nil
}

func decodeKey(data []byte) (key.Key, error) {
	k, err := key.DecodeJSON(data)
	if err != nil {
		return nil, normalize(err)
	}
	return k, nil
}

// decodeRange treats an absent range as the whole collection.
func decodeRange(data []byte) (key.Range, error) {
	if len(data) == 0 {
		return key.Range{}, nil
	}
	r, err := key.DecodeRangeJSON(data)
	if err != nil {
		return key.Range{}, normalize(err)
	}
	return r, nil
}

func decodeRecords(wireKeys, values [][]byte) ([]odb.Record, error) {
	if len(wireKeys) != len(values) {
		return nil, odb.NewDatabaseError("mismatched batch: %d keys for %d values",
			len(wireKeys), len(values))
	}
	records := make([]odb.Record, len(wireKeys))
	for i, wk := range wireKeys {
		k, err := decodeKey(wk)
		if err != nil {
			return nil, err
		}
		records[i] = odb.Record{Key: k, Value: values[i]}
	}
	return records, nil
}

func encodeKeys(keys []key.Key) ([][]byte, error) {
	out := make([][]byte, len(keys))
	for i, k := range keys {
		wk, err := key.EncodeJSON(k)
		if err != nil {
			return nil, normalize(err)
		}
		out[i] = wk
	}
	return out, nil
}

func encodeRecords(records []odb.Record) (wireKeys, values [][]byte, err error) {
	wireKeys = make([][]byte, len(records))
	values = make([][]byte, len(records))
	for i, rec := range records {
		wk, err := key.EncodeJSON(rec.Key)
		if err != nil {
			return nil, nil, normalize(err)
		}
		wireKeys[i] = wk
		values[i] = rec.Value
	}
	return wireKeys, values, nil
}

// normalize maps local errors into the wire error taxonomy while keeping a
// nil error nil. Errors coming out of the facade are already normalized.
func normalize(err error) error {
	if err == nil {
		return nil
	}
	return odb.NewDatabaseError("%v", err)
}
