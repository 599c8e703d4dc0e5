package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goodnatureofminers/blockinsight7000-ledger/internal/utxo/model"
	"github.com/goodnatureofminers/blockinsight7000-ledger/pkg/safe"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const (
	ensureAddressQuery = `
INSERT INTO ledger_addresses (coin, network, address)
VALUES ($1, $2, $3)
ON CONFLICT (coin, network, address) DO NOTHING`

	lockAddressQuery = `
SELECT total_received, total_sent, tx_count
FROM ledger_addresses
WHERE coin = $1 AND network = $2 AND address = $3
FOR UPDATE`

	insertAddressTxIDsQuery = `
INSERT INTO ledger_address_transactions (coin, network, address, txid)
SELECT $1, $2, $3, txid FROM unnest($4::text[]) AS t(txid)
ON CONFLICT (coin, network, address, txid) DO NOTHING
RETURNING txid`

	updateAddressTotalsQuery = `
UPDATE ledger_addresses
SET total_received = $4,
    total_sent = $5,
    balance = $6,
    tx_count = $7,
    last_updated = now()
WHERE coin = $1 AND network = $2 AND address = $3`

	selectAddressQuery = `
SELECT balance, total_received, total_sent, tx_count, last_updated
FROM ledger_addresses
WHERE coin = $1 AND network = $2 AND address = $3`
)

// MergeAddressDelta folds the flows of delta into the address row. Only
// txids not yet linked to the address contribute; the balance is recomputed
// from the totals. It returns the updated row and the number of new txids.
func (r *Repository) MergeAddressDelta(ctx context.Context, coin model.Coin, network model.Network, delta *model.AddressDelta) (addr model.Address, added int, err error) {
	start := time.Now()
	defer func() {
		r.metrics.Observe("merge_address_delta", coin, network, err, start)
	}()

	txids := delta.TxIDs()
	err = r.inTx(ctx, "merge_address_delta", func(tx pgx.Tx) error {
		addr, added, err = mergeAddressDelta(ctx, tx, coin, network, delta, txids)
		return err
	})
	if err != nil {
		err = storageErr("merge address delta", err)
		return model.Address{}, 0, err
	}
	if _, negative := addr.ExpectedBalance(); negative {
		r.logger.Warn("address sent more than it received, balance clamped to zero",
			zap.String("coin", string(coin)),
			zap.String("network", string(network)),
			zap.String("address", addr.Address),
			zap.Uint64("total_received", addr.TotalReceived),
			zap.Uint64("total_sent", addr.TotalSent),
		)
	}
	return addr, added, nil
}

func mergeAddressDelta(ctx context.Context, tx pgx.Tx, coin model.Coin, network model.Network, delta *model.AddressDelta, txids []string) (model.Address, int, error) {
	key := []any{string(coin), string(network), delta.Address}

	if _, err := tx.Exec(ctx, ensureAddressQuery, key...); err != nil {
		return model.Address{}, 0, fmt.Errorf("ensure address: %w", err)
	}

	var received, sent, txCount int64
	if err := tx.QueryRow(ctx, lockAddressQuery, key...).Scan(&received, &sent, &txCount); err != nil {
		return model.Address{}, 0, fmt.Errorf("lock address: %w", err)
	}

	rows, err := tx.Query(ctx, insertAddressTxIDsQuery, append(key, txids)...)
	if err != nil {
		return model.Address{}, 0, fmt.Errorf("link txids: %w", err)
	}
	fresh, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return model.Address{}, 0, fmt.Errorf("link txids: %w", err)
	}

	addr := model.Address{Coin: coin, Network: network, Address: delta.Address}
	if addr.TotalReceived, err = safe.Uint64(received); err != nil {
		return model.Address{}, 0, fmt.Errorf("stored total_received: %w", err)
	}
	if addr.TotalSent, err = safe.Uint64(sent); err != nil {
		return model.Address{}, 0, fmt.Errorf("stored total_sent: %w", err)
	}
	if addr.TxCount, err = safe.Uint64(txCount); err != nil {
		return model.Address{}, 0, fmt.Errorf("stored tx_count: %w", err)
	}

	for _, txid := range fresh {
		flow := delta.Flows[txid]
		if addr.TotalReceived, err = addUint64(addr.TotalReceived, flow.Received); err != nil {
			return model.Address{}, 0, fmt.Errorf("total_received: %w", err)
		}
		if addr.TotalSent, err = addUint64(addr.TotalSent, flow.Sent); err != nil {
			return model.Address{}, 0, fmt.Errorf("total_sent: %w", err)
		}
	}
	addr.TxCount += uint64(len(fresh))
	addr.Balance, _ = addr.ExpectedBalance()

	args, err := int64Args(addr.TotalReceived, addr.TotalSent, addr.Balance, addr.TxCount)
	if err != nil {
		return model.Address{}, 0, err
	}
	if _, err := tx.Exec(ctx, updateAddressTotalsQuery, append(key, args...)...); err != nil {
		return model.Address{}, 0, fmt.Errorf("update address totals: %w", err)
	}
	addr.LastUpdated = time.Now().UTC()
	return addr, len(fresh), nil
}

// Address returns the stored row for address. ok is false when it does not exist.
func (r *Repository) Address(ctx context.Context, coin model.Coin, network model.Network, address string) (addr model.Address, ok bool, err error) {
	start := time.Now()
	defer func() {
		r.metrics.Observe("address", coin, network, err, start)
	}()

	var balance, received, sent, txCount int64
	addr = model.Address{Coin: coin, Network: network, Address: address}
	err = r.pool.QueryRow(ctx, selectAddressQuery, string(coin), string(network), address).
		Scan(&balance, &received, &sent, &txCount, &addr.LastUpdated)
	if errors.Is(err, pgx.ErrNoRows) {
		err = nil
		return model.Address{}, false, nil
	}
	if err != nil {
		err = storageErr("address", err)
		return model.Address{}, false, err
	}

	values, err := uint64Values(balance, received, sent, txCount)
	if err != nil {
		err = storageErr("address", err)
		return model.Address{}, false, err
	}
	addr.Balance, addr.TotalReceived, addr.TotalSent, addr.TxCount = values[0], values[1], values[2], values[3]
	return addr, true, nil
}

func addUint64(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, fmt.Errorf("overflow adding %d to %d", b, a)
	}
	return sum, nil
}

func int64Args(values ...uint64) ([]any, error) {
	args := make([]any, 0, len(values))
	for _, v := range values {
		n, err := safe.Int64(v)
		if err != nil {
			return nil, err
		}
		args = append(args, n)
	}
	return args, nil
}

func uint64Values(values ...int64) ([]uint64, error) {
	out := make([]uint64, 0, len(values))
	for _, v := range values {
		n, err := safe.Uint64(v)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
