package fhe

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/silentvote/types"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

// Allow implements Coprocessor. The caller must itself be allowed on h.
func (cp *ElGamalCoprocessor) Allow(h types.Handle, account, caller common.Address) error {
	cp.mu.Lock()
	defer cp.mu.Unlock()

	if _, err := cp.record(h); err != nil {
		return err
	}
	if !cp.isAllowed(h, caller) {
		return fmt.Errorf("%w: %s for %s", ErrAccessDenied, h, caller)
	}
	tx := cp.db.WriteTx()
	defer tx.Discard()
	if err := prefixeddb.NewPrefixedWriteTx(tx, aclPrefix).Set(aclKey(h, account), []byte{1}); err != nil {
		return err
	}
	return tx.Commit()
}

// IsAllowed reports whether account may use h as an operand.
func (cp *ElGamalCoprocessor) IsAllowed(h types.Handle, account common.Address) bool {
	cp.mu.RLock()
	defer cp.mu.RUnlock()
	return cp.isAllowed(h, account)
}

// ClearTransient implements Coprocessor.
func (cp *ElGamalCoprocessor) ClearTransient(caller common.Address) {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	delete(cp.transient, caller)
}

func (cp *ElGamalCoprocessor) isAllowed(h types.Handle, account common.Address) bool {
	if _, ok := cp.transient[account][h]; ok {
		return true
	}
	_, err := prefixeddb.NewPrefixedReader(cp.db, aclPrefix).Get(aclKey(h, account))
	return err == nil
}

func (cp *ElGamalCoprocessor) allowTransient(h types.Handle, account common.Address) {
	if cp.transient[account] == nil {
		cp.transient[account] = make(map[types.Handle]struct{})
	}
	cp.transient[account][h] = struct{}{}
}

func aclKey(h types.Handle, account common.Address) []byte {
	return append(h.Bytes(), account.Bytes()...)
}
