package ipfs

import "context"

// MockBlobStore is a test double for BlobStore. All function fields must
// be set before the corresponding method is called.
type MockBlobStore struct {
	PutFn      func(ctx context.Context, data []byte, name string) (string, error)
	GetFn      func(ctx context.Context, cid string) ([]byte, error)
	UnpinFn    func(ctx context.Context, cid string) error
	ListFn     func(ctx context.Context) ([]string, error)
	TestAuthFn func(ctx context.Context) (bool, error)
}

func (m *MockBlobStore) Put(ctx context.Context, data []byte, name string) (string, error) {
	return m.PutFn(ctx, data, name)
}
func (m *MockBlobStore) Get(ctx context.Context, cid string) ([]byte, error) {
	return m.GetFn(ctx, cid)
}
func (m *MockBlobStore) Unpin(ctx context.Context, cid string) error {
	return m.UnpinFn(ctx, cid)
}
func (m *MockBlobStore) List(ctx context.Context) ([]string, error) {
	return m.ListFn(ctx)
}
func (m *MockBlobStore) TestAuth(ctx context.Context) (bool, error) {
	return m.TestAuthFn(ctx)
}
