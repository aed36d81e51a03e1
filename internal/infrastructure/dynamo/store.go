package dynamo

import (
	"context"
	"time"

	"github.com/phone-auth-api/internal/config"
	"github.com/phone-auth-api/internal/storage"
)

// Store implements storage.Store over DynamoDB.
//
// Phone uniqueness is enforced by a claim item per number in the phone
// numbers table. Inside WithinTx, writes are buffered and committed in one
// TransactWriteItems call; reads go straight to the table (consistent reads)
// and do not observe the transaction's own pending writes.
type Store struct {
	db     API
	tables config.DynamoTables
	w      writer
	now    func() time.Time
}

var _ storage.Store = (*Store)(nil)

func NewStore(db API, tables config.DynamoTables) *Store {
	return &Store{
		db:     db,
		tables: tables,
		w:      directWriter{db: db},
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) error {
	tw := newTxWriter()
	tx := *s
	tx.w = tw
	if err := fn(ctx, &tx); err != nil {
		return err
	}
	return tw.commit(ctx, s.db)
}

// Close is a no-op; the SDK client holds no resources that need releasing.
func (s *Store) Close() error { return nil }
