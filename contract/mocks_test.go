package contract

import (
	"crypto/x509"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hyperledger/fabric-chaincode-go/shim"
	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/hyperledger/fabric-protos-go/ledger/queryresult"
	"github.com/hyperledger/fabric-protos-go/peer"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// Test identities. Full IDs follow the "x509::" convention the identity
// manager validates; the CN segment doubles as the fallback alias.
const (
	adminFullID     = "x509::CN=admin::CN=ca.org1.example.com"
	aliceFullID     = "x509::CN=alice::CN=ca.org1.example.com"
	bobFullID       = "x509::CN=bob::CN=ca.org1.example.com"
	carolFullID     = "x509::CN=carol::CN=ca.org2.example.com"
	treasurerFullID = "x509::CN=treasurer::CN=ca.org1.example.com"
	testMSPID       = "Org1MSP"
)

const compositeKeySep = "\x00"

// mockStub is a map-backed in-memory ledger. It embeds the stub interface so
// only the methods the contract actually touches need implementations; calling
// anything else panics, which is what we want in a test.
type mockStub struct {
	shim.ChaincodeStubInterface
	state  map[string][]byte
	events map[string][]byte
	txTime time.Time
}

func newMockStub() *mockStub {
	return &mockStub{
		state:  map[string][]byte{},
		events: map[string][]byte{},
		txTime: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (ms *mockStub) GetState(key string) ([]byte, error) {
	value, ok := ms.state[key]
	if !ok {
		return nil, nil
	}
	return value, nil
}

func (ms *mockStub) PutState(key string, value []byte) error {
	ms.state[key] = value
	return nil
}

func (ms *mockStub) DelState(key string) error {
	delete(ms.state, key)
	return nil
}

func (ms *mockStub) CreateCompositeKey(objectType string, attributes []string) (string, error) {
	key := compositeKeySep + objectType + compositeKeySep
	for _, attr := range attributes {
		key += attr + compositeKeySep
	}
	return key, nil
}

func (ms *mockStub) GetTxTimestamp() (*timestamppb.Timestamp, error) {
	return timestamppb.New(ms.txTime), nil
}

func (ms *mockStub) SetEvent(name string, payload []byte) error {
	ms.events[name] = payload
	return nil
}

func (ms *mockStub) matchingKeys(objectType string, attributes []string) []string {
	prefix := compositeKeySep + objectType + compositeKeySep
	for _, attr := range attributes {
		prefix += attr + compositeKeySep
	}
	keys := []string{}
	for key := range ms.state {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

func (ms *mockStub) GetStateByPartialCompositeKey(objectType string, attributes []string) (shim.StateQueryIteratorInterface, error) {
	keys := ms.matchingKeys(objectType, attributes)
	return &mockIterator{stub: ms, keys: keys}, nil
}

func (ms *mockStub) GetStateByPartialCompositeKeyWithPagination(objectType string, attributes []string,
	pageSize int32, bookmark string) (shim.StateQueryIteratorInterface, *peer.QueryResponseMetadata, error) {

	keys := ms.matchingKeys(objectType, attributes)
	start := 0
	if bookmark != "" {
		for i, key := range keys {
			if key >= bookmark {
				start = i
				break
			}
			start = i + 1
		}
	}
	end := start + int(pageSize)
	if end > len(keys) {
		end = len(keys)
	}
	page := keys[start:end]
	nextBookmark := ""
	if end < len(keys) {
		nextBookmark = keys[end]
	}
	metadata := &peer.QueryResponseMetadata{
		FetchedRecordsCount: int32(len(page)),
		Bookmark:            nextBookmark,
	}
	return &mockIterator{stub: ms, keys: page}, metadata, nil
}

// mockIterator iterates a fixed key list snapshot against the stub's state.
type mockIterator struct {
	stub *mockStub
	keys []string
	pos  int
}

func (it *mockIterator) HasNext() bool {
	return it.pos < len(it.keys)
}

func (it *mockIterator) Next() (*queryresult.KV, error) {
	if !it.HasNext() {
		return nil, fmt.Errorf("no more items in iterator")
	}
	key := it.keys[it.pos]
	it.pos++
	return &queryresult.KV{Key: key, Value: it.stub.state[key]}, nil
}

func (it *mockIterator) Close() error {
	return nil
}

// mockClientIdentity satisfies cid.ClientIdentity for a fixed full ID and MSP.
type mockClientIdentity struct {
	id    string
	mspID string
}

func (mc *mockClientIdentity) GetID() (string, error) {
	return mc.id, nil
}

func (mc *mockClientIdentity) GetMSPID() (string, error) {
	return mc.mspID, nil
}

func (mc *mockClientIdentity) GetAttributeValue(string) (string, bool, error) {
	return "", false, nil
}

func (mc *mockClientIdentity) AssertAttributeValue(attrName, attrValue string) error {
	return fmt.Errorf("attribute '%s' not found", attrName)
}

func (mc *mockClientIdentity) GetX509Certificate() (*x509.Certificate, error) {
	return nil, nil
}

// ctxFor builds a transaction context over the shared stub, invoked as the
// given identity. Tests switch callers by building a new context on the same stub.
func ctxFor(stub *mockStub, fullID string) *contractapi.TransactionContext {
	ctx := &contractapi.TransactionContext{}
	ctx.SetStub(stub)
	ctx.SetClientIdentity(&mockClientIdentity{id: fullID, mspID: testMSPID})
	return ctx
}

// setupBootstrapped creates a fresh ledger whose first admin is adminFullID.
func setupBootstrapped() (*TrustGovSmartContract, *mockStub, *contractapi.TransactionContext) {
	sc := &TrustGovSmartContract{}
	stub := newMockStub()
	adminCtx := ctxFor(stub, adminFullID)
	if err := sc.BootstrapLedger(adminCtx); err != nil {
		panic("bootstrap failed in test setup: " + err.Error())
	}
	return sc, stub, adminCtx
}

// registerApproved registers a participant as the admin and approves them.
func registerApproved(sc *TrustGovSmartContract, adminCtx *contractapi.TransactionContext, fullID, alias string) error {
	if err := sc.RegisterParticipant(adminCtx, fullID, alias, alias); err != nil {
		return err
	}
	return sc.ApproveParticipant(adminCtx, fullID)
}
