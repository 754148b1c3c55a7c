package mocks

import (
	"github.com/eigerco/boxtx/pkg/db"
	"github.com/stretchr/testify/mock"
)

// MockNativeTx implements db.NativeTx for testing
type MockNativeTx struct {
	mock.Mock
}

var _ db.NativeTx = (*MockNativeTx)(nil)

func NewMockNativeTx() *MockNativeTx {
	return &MockNativeTx{}
}

func (m *MockNativeTx) ID() uint64 {
	args := m.Called()
	return args.Get(0).(uint64)
}

func (m *MockNativeTx) Destroy() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockNativeTx) Commit() ([]uint32, error) {
	args := m.Called()
	ids, _ := args.Get(0).([]uint32)
	return ids, args.Error(1)
}

func (m *MockNativeTx) Abort() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockNativeTx) Reset() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockNativeTx) Recycle() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockNativeTx) Renew() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockNativeTx) CreateKeyValueCursor() (db.KVCursor, error) {
	args := m.Called()
	c, _ := args.Get(0).(db.KVCursor)
	return c, args.Error(1)
}

func (m *MockNativeTx) CreateCursor(entityName string, entityTypeID uint32) (db.Cursor, error) {
	args := m.Called(entityName, entityTypeID)
	c, _ := args.Get(0).(db.Cursor)
	return c, args.Error(1)
}

func (m *MockNativeTx) IsActive() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockNativeTx) IsRecycled() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockNativeTx) IsReadOnly() bool {
	args := m.Called()
	return args.Bool(0)
}

// MockCursor implements db.Cursor for testing
type MockCursor struct {
	mock.Mock
}

var _ db.Cursor = (*MockCursor)(nil)

func NewMockCursor() *MockCursor {
	return &MockCursor{}
}

func (m *MockCursor) Get(id uint64) ([]byte, error) {
	args := m.Called(id)
	b, _ := args.Get(0).([]byte)
	return b, args.Error(1)
}

func (m *MockCursor) Put(id uint64, value []byte) error {
	args := m.Called(id, value)
	return args.Error(0)
}

func (m *MockCursor) Delete(id uint64) error {
	args := m.Called(id)
	return args.Error(0)
}

func (m *MockCursor) First() (bool, error) {
	args := m.Called()
	return args.Bool(0), args.Error(1)
}

func (m *MockCursor) Next() (bool, error) {
	args := m.Called()
	return args.Bool(0), args.Error(1)
}

func (m *MockCursor) Seek(id uint64) (bool, error) {
	args := m.Called(id)
	return args.Bool(0), args.Error(1)
}

func (m *MockCursor) ID() uint64 {
	args := m.Called()
	return args.Get(0).(uint64)
}

func (m *MockCursor) Value() ([]byte, error) {
	args := m.Called()
	b, _ := args.Get(0).([]byte)
	return b, args.Error(1)
}

func (m *MockCursor) MaxID() (uint64, error) {
	args := m.Called()
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockCursor) Count() (uint64, error) {
	args := m.Called()
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockCursor) Close() error {
	args := m.Called()
	return args.Error(0)
}
