package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/goodnatureofminers/blockinsight7000-ledger/internal/utxo/model"
	"github.com/goodnatureofminers/blockinsight7000-ledger/pkg/safe"
	"github.com/jackc/pgx/v5"
)

const (
	firstBalancePageQuery = `
SELECT address, balance, total_received, total_sent
FROM ledger_addresses
WHERE coin = $1 AND network = $2
ORDER BY balance DESC, address ASC
LIMIT $3`

	nextBalancePageQuery = `
SELECT address, balance, total_received, total_sent
FROM ledger_addresses
WHERE coin = $1 AND network = $2
  AND (balance < $3 OR (balance = $3 AND address > $4))
ORDER BY balance DESC, address ASC
LIMIT $5`

	lockBalancesQuery = `
SELECT address, balance, total_received, total_sent
FROM ledger_addresses
WHERE coin = $1 AND network = $2 AND address = ANY($3::text[])
ORDER BY address
FOR UPDATE`

	updateBalanceQuery = `
UPDATE ledger_addresses
SET balance = $4,
    last_updated = now()
WHERE coin = $1 AND network = $2 AND address = $3`
)

// BalancePage reads up to limit address rows ordered by balance descending and
// address ascending, starting after the cursor. A nil cursor starts at the top.
func (r *Repository) BalancePage(ctx context.Context, coin model.Coin, network model.Network, after *model.BalanceCursor, limit int) (page []model.AddressBalance, err error) {
	start := time.Now()
	defer func() {
		r.metrics.Observe("balance_page", coin, network, err, start)
	}()

	var rows pgx.Rows
	if after == nil {
		rows, err = r.pool.Query(ctx, firstBalancePageQuery, string(coin), string(network), limit)
	} else {
		var balance int64
		if balance, err = safe.Int64(after.Balance); err != nil {
			err = storageErr("balance page", err)
			return nil, err
		}
		rows, err = r.pool.Query(ctx, nextBalancePageQuery, string(coin), string(network), balance, after.Address, limit)
	}
	if err != nil {
		err = storageErr("balance page", err)
		return nil, err
	}

	page, err = collectBalances(rows)
	if err != nil {
		err = storageErr("balance page", err)
		return nil, err
	}
	return page, nil
}

// UpdateBalances locks the rows of addresses in one transaction, passes them to
// decide and writes back the balances it returns. Addresses without a row are
// not passed to decide. Returning an error rolls the whole batch back.
func (r *Repository) UpdateBalances(
	ctx context.Context,
	coin model.Coin,
	network model.Network,
	addresses []string,
	decide func(locked []model.AddressBalance) ([]model.BalanceUpdate, error),
) (err error) {
	start := time.Now()
	defer func() {
		r.metrics.Observe("update_balances", coin, network, err, start)
	}()

	err = r.inTx(ctx, "update_balances", func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, lockBalancesQuery, string(coin), string(network), addresses)
		if err != nil {
			return fmt.Errorf("lock balances: %w", err)
		}
		locked, err := collectBalances(rows)
		if err != nil {
			return fmt.Errorf("lock balances: %w", err)
		}

		updates, err := decide(locked)
		if err != nil {
			return err
		}
		for _, u := range updates {
			balance, err := safe.Int64(u.Balance)
			if err != nil {
				return fmt.Errorf("balance of %s: %w", u.Address, err)
			}
			if _, err := tx.Exec(ctx, updateBalanceQuery, string(coin), string(network), u.Address, balance); err != nil {
				return fmt.Errorf("update balance of %s: %w", u.Address, err)
			}
		}
		return nil
	})
	if err != nil {
		err = storageErr("update balances", err)
		return err
	}
	return nil
}

func collectBalances(rows pgx.Rows) ([]model.AddressBalance, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.AddressBalance, error) {
		var (
			b                       model.AddressBalance
			balance, received, sent int64
		)
		if err := row.Scan(&b.Address, &balance, &received, &sent); err != nil {
			return model.AddressBalance{}, err
		}
		values, err := uint64Values(balance, received, sent)
		if err != nil {
			return model.AddressBalance{}, fmt.Errorf("address %s: %w", b.Address, err)
		}
		b.Balance, b.TotalReceived, b.TotalSent = values[0], values[1], values[2]
		return b, nil
	})
}
