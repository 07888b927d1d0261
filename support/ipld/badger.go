package ipld

import (
	"errors"

	badger "github.com/dgraph-io/badger/v4"
	block "github.com/ipfs/go-block-format"
	cid "github.com/ipfs/go-cid"
	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/xerrors"
)

var log = logging.Logger("capsule/ipld")

// ErrNotFound is returned when a block is absent from a blockstore.
var ErrNotFound = errors.New("block not found")

// BadgerBlockStore persists blocks in a badger database, keyed by the binary form of their CID.
type BadgerBlockStore struct {
	db *badger.DB
}

// OpenBadgerBlockStore opens (creating if needed) a badger database in dir.
func OpenBadgerBlockStore(dir string) (*BadgerBlockStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, xerrors.Errorf("opening badger blockstore at %s: %w", dir, err)
	}
	log.Infow("opened blockstore", "dir", dir)
	return &BadgerBlockStore{db: db}, nil
}

// OpenBadgerBlockStoreInMemory opens a badger database that never touches disk.
func OpenBadgerBlockStoreInMemory() (*BadgerBlockStore, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, xerrors.Errorf("opening in-memory badger blockstore: %w", err)
	}
	return &BadgerBlockStore{db: db}, nil
}

func (bs *BadgerBlockStore) Get(c cid.Cid) (block.Block, error) {
	var data []byte
	err := bs.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(c.Bytes())
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, xerrors.Errorf("block %s: %w", c, ErrNotFound)
	}
	if err != nil {
		return nil, xerrors.Errorf("reading block %s: %w", c, err)
	}
	return block.NewBlockWithCid(data, c)
}

func (bs *BadgerBlockStore) Put(b block.Block) error {
	return bs.db.Update(func(txn *badger.Txn) error {
		return txn.Set(b.Cid().Bytes(), b.RawData())
	})
}

// Close flushes and closes the underlying database.
func (bs *BadgerBlockStore) Close() error {
	return bs.db.Close()
}
