package txn

import "github.com/eigerco/boxtx/pkg/db"

// KeyValueCursor gives raw access to keys outside of any entity schema.
type KeyValueCursor struct {
	tx     *Transaction
	native db.KVCursor
}

func (c *KeyValueCursor) Tx() *Transaction {
	return c.tx
}

func (c *KeyValueCursor) Get(key []byte) ([]byte, error) {
	if err := c.tx.checkOpen(); err != nil {
		return nil, err
	}
	return c.native.Get(key)
}

func (c *KeyValueCursor) Put(key, value []byte) error {
	if err := c.tx.checkOpen(); err != nil {
		return err
	}
	return c.native.Put(key, value)
}

func (c *KeyValueCursor) Delete(key []byte) error {
	if err := c.tx.checkOpen(); err != nil {
		return err
	}
	return c.native.Delete(key)
}

func (c *KeyValueCursor) First() (bool, error) {
	if err := c.tx.checkOpen(); err != nil {
		return false, err
	}
	return c.native.First()
}

func (c *KeyValueCursor) Next() (bool, error) {
	if err := c.tx.checkOpen(); err != nil {
		return false, err
	}
	return c.native.Next()
}

func (c *KeyValueCursor) Seek(key []byte) (bool, error) {
	if err := c.tx.checkOpen(); err != nil {
		return false, err
	}
	return c.native.Seek(key)
}

func (c *KeyValueCursor) Key() []byte {
	if c.tx.IsClosed() {
		return nil
	}
	return c.native.Key()
}

func (c *KeyValueCursor) Value() ([]byte, error) {
	if err := c.tx.checkOpen(); err != nil {
		return nil, err
	}
	return c.native.Value()
}

func (c *KeyValueCursor) Close() error {
	return c.native.Close()
}
