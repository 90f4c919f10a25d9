package custody

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/custodia-labs/safevault-backend/internal/pkg/model"
	"github.com/custodia-labs/safevault-backend/internal/pkg/reject"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu      sync.Mutex
	nextId  uint64
	records map[string]*model.CustodyRecord
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]*model.CustodyRecord)}
}

func (s *memStore) FindByOwnerId(ownerId string) (*model.CustodyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[ownerId]
	if !ok {
		return nil, nil
	}
	found := *record
	return &found, nil
}

func (s *memStore) FindByCustodialAddress(address string) (*model.CustodyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, record := range s.records {
		if record.CustodialAddress == address {
			found := *record
			return &found, nil
		}
	}
	return nil, nil
}

func (s *memStore) Insert(record *model.CustodyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextId++
	record.Id = s.nextId
	stored := *record
	s.records[record.OwnerId] = &stored
	return nil
}

func (s *memStore) AttachContractAddress(ownerId string, contractAddress string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[ownerId]
	if !ok || record.ContractAddress != nil {
		return false, nil
	}
	record.ContractAddress = &contractAddress
	return true, nil
}

type countingProvider struct {
	creates int32
	delay   time.Duration
	address string
}

func (p *countingProvider) Create(_ context.Context, chainType string) (*ProviderWallet, *reject.ProblemWithTrace) {
	atomic.AddInt32(&p.creates, 1)
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	return &ProviderWallet{
		Id:        "wallet-1",
		Address:   p.address,
		ChainType: chainType,
		CreatedAt: time.Now().UnixMilli(),
	}, nil
}

func (p *countingProvider) ExportSigningKey(_ context.Context, _ string) (string, *reject.ProblemWithTrace) {
	return "", &reject.ProblemWithTrace{Problem: reject.ProviderRejectedProblem("export not supported in this stub")}
}

func TestGetOrCreateIsIdempotent(t *testing.T) {
	provider := &countingProvider{address: "0xabc0000000000000000000000000000000000001"}
	registry := NewRegistry(newMemStore(), provider)

	first, problem := registry.GetOrCreate(context.Background(), "acct-42", "ethereum")
	require.Nil(t, problem)
	require.Equal(t, "0xabc0000000000000000000000000000000000001", first.CustodialAddress)
	require.Equal(t, "ethereum", first.ChainType)

	second, problem := registry.GetOrCreate(context.Background(), "acct-42", "ethereum")
	require.Nil(t, problem)
	require.Equal(t, first.Id, second.Id)
	require.Equal(t, first.CustodialAddress, second.CustodialAddress)

	require.Equal(t, int32(1), atomic.LoadInt32(&provider.creates))
}

func TestGetOrCreateRacingCallersShareOneWallet(t *testing.T) {
	provider := &countingProvider{
		address: "0xabc0000000000000000000000000000000000001",
		delay:   20 * time.Millisecond,
	}
	registry := NewRegistry(newMemStore(), provider)

	var wg sync.WaitGroup
	addresses := make([]string, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			record, problem := registry.GetOrCreate(context.Background(), "acct-42", "ethereum")
			require.Nil(t, problem)
			addresses[slot] = record.CustodialAddress
		}(i)
	}
	wg.Wait()

	require.Equal(t, int32(1), atomic.LoadInt32(&provider.creates))
	for _, address := range addresses {
		require.Equal(t, "0xabc0000000000000000000000000000000000001", address)
	}
}

func TestAttachContractAddressIsSetOnce(t *testing.T) {
	provider := &countingProvider{address: "0xabc0000000000000000000000000000000000001"}
	registry := NewRegistry(newMemStore(), provider)

	_, problem := registry.GetOrCreate(context.Background(), "acct-42", "ethereum")
	require.Nil(t, problem)

	require.Nil(t, registry.AttachContractAddress("acct-42", "0xdef0000000000000000000000000000000000002"))

	again := registry.AttachContractAddress("acct-42", "0x1230000000000000000000000000000000000003")
	require.NotNil(t, again)
	require.Equal(t, reject.CodeAlreadyDeployed, again.Problem.Code)
	require.Equal(t, "0xdef0000000000000000000000000000000000002", again.Problem.Params["contractAddress"])

	record, problem := registry.FindByOwner("acct-42")
	require.Nil(t, problem)
	require.NotNil(t, record.ContractAddress)
	require.Equal(t, "0xdef0000000000000000000000000000000000002", *record.ContractAddress)
}

func TestFindByCustodialAddress(t *testing.T) {
	provider := &countingProvider{address: "0xabc0000000000000000000000000000000000001"}
	registry := NewRegistry(newMemStore(), provider)

	_, problem := registry.GetOrCreate(context.Background(), "acct-42", "ethereum")
	require.Nil(t, problem)

	record, problem := registry.FindByCustodialAddress("0xabc0000000000000000000000000000000000001")
	require.Nil(t, problem)
	require.Equal(t, "acct-42", record.OwnerId)

	_, problem = registry.FindByCustodialAddress("0x9990000000000000000000000000000000000009")
	require.NotNil(t, problem)
	require.Equal(t, reject.CodeNotFound, problem.Problem.Code)
}
